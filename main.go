package main

import (
	"context"
	"os"
	"strings"
	"time"

	api "dealdesk-backend/cmd/api"
	crmdomain "dealdesk-backend/internal/crm/domain"
	crmRepo "dealdesk-backend/internal/crm/repository"
	crmUsecase "dealdesk-backend/internal/crm/usecase"
	importerdomain "dealdesk-backend/internal/importer/domain"
	"dealdesk-backend/internal/importer/parser"
	importerRepo "dealdesk-backend/internal/importer/repository"
	importerUsecase "dealdesk-backend/internal/importer/usecase"
	"dealdesk-backend/internal/notification"
	oauthDelivery "dealdesk-backend/internal/oauth/delivery"
	oauthdomain "dealdesk-backend/internal/oauth/domain"
	oauthRepo "dealdesk-backend/internal/oauth/repository"
	oauthUsecase "dealdesk-backend/internal/oauth/usecase"
	"dealdesk-backend/internal/queue"
	syncDelivery "dealdesk-backend/internal/sync/delivery"
	syncdomain "dealdesk-backend/internal/sync/domain"
	syncRepo "dealdesk-backend/internal/sync/repository"
	syncUsecase "dealdesk-backend/internal/sync/usecase"
	"dealdesk-backend/pkg/config"
	"dealdesk-backend/pkg/database"
	"dealdesk-backend/pkg/drive"
	"dealdesk-backend/pkg/gmail"
	"dealdesk-backend/pkg/googleauth"
	"dealdesk-backend/pkg/logger"
	"dealdesk-backend/pkg/ratelimit"
	"dealdesk-backend/pkg/redisdb"
	"dealdesk-backend/pkg/spool"
	"dealdesk-backend/pkg/tokencipher"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogJSON)

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&oauthdomain.OAuthToken{},
		&syncdomain.SyncConfiguration{},
		&syncdomain.SyncRun{},
		&syncdomain.SyncedItem{},
		&importerdomain.SourceFile{},
		&importerdomain.ImportIssue{},
		&crmdomain.Vendor{},
		&crmdomain.DealRegistration{},
		&crmdomain.Contact{},
		&crmdomain.Provenance{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize redis (job queue, admission markers, locks)
	ctx := context.Background()
	rdb, err := redisdb.New(ctx, cfg.RedisAddress)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	// Token encryption at rest
	cipher, err := tokencipher.New(cfg.TokenCipherKey)
	if err != nil {
		log.Fatalf("TOKEN_CIPHER_KEY invalid: %v", err)
	}

	// Google API plumbing: one shared rate limiter for all connector calls
	factory := googleauth.NewClientFactory(cfg.GoogleClientID, cfg.GoogleClientSecret)
	limiter := ratelimit.New(cfg.SyncRateLimit, 0)
	gmailClient := gmail.NewClient(factory, limiter, logger.WithComponent(log, "gmail"))
	driveClient := drive.NewClient(factory, limiter, logger.WithComponent(log, "drive"))

	// Initialize repositories (dependency injection)
	tokenRepo := oauthRepo.NewGormTokenRepository(db)
	configRepo := syncRepo.NewGormConfigRepository(db)
	runRepo := syncRepo.NewGormRunRepository(db)
	syncedItemRepo := syncRepo.NewGormSyncedItemRepository(db)
	sourceFileRepo := importerRepo.NewGormSourceFileRepository(db)
	vendorRepo := crmRepo.NewGormVendorRepository()
	dealRepo := crmRepo.NewGormDealRepository()
	contactRepo := crmRepo.NewGormContactRepository()
	provenanceRepo := crmRepo.NewGormProvenanceRepository()

	// OAuth account lifecycle
	stateStore := oauthUsecase.NewMemoryStateStore(10 * time.Minute)
	defer stateStore.Close()
	oauthUc := oauthUsecase.NewOAuthUsecase(
		tokenRepo, cipher, factory, stateStore, configRepo,
		cfg.GoogleRedirectURI, logger.WithComponent(log, "oauth"),
	)

	// File processing pipeline
	tracker := importerUsecase.NewGormErrorTracker(db, logger.WithComponent(log, "tracker"))
	fileProcessor := importerUsecase.NewFileProcessor(
		db, sourceFileRepo, parser.NewRegistry(),
		vendorRepo, dealRepo, contactRepo, provenanceRepo,
		crmUsecase.NewPolicyGate(), tracker,
		logger.WithComponent(log, "processor"),
	)

	// Service account JSON backs both delegated connectors and Pub/Sub.
	var saCredentials []byte
	if cfg.GoogleCredentials != "" {
		saCredentials, err = os.ReadFile(cfg.GoogleCredentials)
		if err != nil {
			log.Warnf("Failed to read service account credentials: %v", err)
		}
	}

	// Sync orchestration
	connectorFactory := syncUsecase.NewGoogleConnectorFactory(oauthUc, gmailClient, driveClient, saCredentials, cfg.SyncPageSize)
	syncService := syncUsecase.NewSyncService(
		configRepo, runRepo, syncedItemRepo, sourceFileRepo,
		connectorFactory, fileProcessor, spool.NewWriter(cfg.SpoolDir),
		logger.WithComponent(log, "sync"),
	)
	configService := syncUsecase.NewConfigService(configRepo, runRepo, tokenRepo, logger.WithComponent(log, "sync"))

	// Job queue and worker
	queueService := queue.NewService(rdb, logger.WithComponent(log, "queue"))
	worker := queue.NewWorker(rdb, syncService, cfg.SyncJobTimeout, logger.WithComponent(log, "worker"))
	worker.Start()
	defer worker.Stop()

	// Scheduler for recurring configurations
	scheduler := syncUsecase.NewScheduler(configRepo, queueService, logger.WithComponent(log, "scheduler"))
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Gmail push notifications (optional, needs a GCP project)
	if cfg.GoogleProjectID != "" {
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		notifService, err := notification.NewService(
			cfg.GoogleProjectID, topicName, cfg.GoogleCredentials,
			configRepo, queueService, logger.WithComponent(log, "notification"),
		)
		if err != nil {
			log.Errorf("Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(ctx)
			defer notifService.Close()
		}
	} else {
		log.Warn("GOOGLE_PROJECT_ID not configured, push-triggered sync disabled")
	}

	// HTTP surface
	oauthHandler := oauthDelivery.NewOAuthHandler(oauthUc, cfg.FrontendURL)
	syncHandler := syncDelivery.NewSyncHandler(configService, queueService)

	r := gin.Default()
	api.SetupRoutes(r, cfg, oauthHandler, syncHandler)

	log.Infof("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
