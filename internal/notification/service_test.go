package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	oauthdomain "dealdesk-backend/internal/oauth/domain"
	oauthrepo "dealdesk-backend/internal/oauth/repository"
	syncdomain "dealdesk-backend/internal/sync/domain"
	syncrepo "dealdesk-backend/internal/sync/repository"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type recordingEnqueuer struct {
	configIDs []string
	err       error
}

func (e *recordingEnqueuer) EnqueueSync(ctx context.Context, configID, service, triggerType, triggeredBy string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	e.configIDs = append(e.configIDs, configID)
	return "job-" + configID, nil
}

func newNotificationFixture(t *testing.T) (*gorm.DB, syncrepo.ConfigRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&oauthdomain.OAuthToken{},
		&syncdomain.SyncConfiguration{},
		&syncdomain.SyncRun{},
		&syncdomain.SyncedItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, syncrepo.NewGormConfigRepository(db)
}

func seedAccountWithConfig(t *testing.T, db *gorm.DB, configs syncrepo.ConfigRepository, email string, enabled bool) *syncdomain.SyncConfiguration {
	t.Helper()
	token := &oauthdomain.OAuthToken{
		UserID:       "user-1",
		AccountEmail: email,
		Service:      oauthdomain.ServiceGmail,
		AccessToken:  "enc",
		RefreshToken: "enc",
		TokenExpiry:  time.Now().Add(time.Hour),
	}
	if err := oauthrepo.NewGormTokenRepository(db).Upsert(token); err != nil {
		t.Fatalf("upsert token: %v", err)
	}

	cfg := &syncdomain.SyncConfiguration{
		UserID:   "user-1",
		Name:     "Inbox",
		Service:  oauthdomain.ServiceGmail,
		TokenID:  token.ID,
		Schedule: syncdomain.ScheduleManual,
		Enabled:  enabled,
	}
	if err := configs.Create(cfg); err != nil {
		t.Fatalf("create config: %v", err)
	}
	return cfg
}

func newTestNotificationService(configs syncrepo.ConfigRepository, enqueuer *recordingEnqueuer) *Service {
	return &Service{
		configs:       configs,
		enqueuer:      enqueuer,
		log:           logrus.NewEntry(logrus.New()),
		lastHistoryID: make(map[string]uint64),
	}
}

func TestHandleMessageEnqueuesEnabledConfigs(t *testing.T) {
	db, configs := newNotificationFixture(t)
	enabled := seedAccountWithConfig(t, db, configs, "sales@example.com", true)
	seedAccountWithConfig(t, db, configs, "other@example.com", true)

	enqueuer := &recordingEnqueuer{}
	svc := newTestNotificationService(configs, enqueuer)

	payload, _ := json.Marshal(GmailNotification{EmailAddress: "sales@example.com", HistoryID: 10})
	svc.handleMessage(context.Background(), payload)

	if len(enqueuer.configIDs) != 1 || enqueuer.configIDs[0] != enabled.ID {
		t.Fatalf("enqueued = %v, want [%s]", enqueuer.configIDs, enabled.ID)
	}
}

func TestHandleMessageSkipsDisabledConfigs(t *testing.T) {
	db, configs := newNotificationFixture(t)
	seedAccountWithConfig(t, db, configs, "sales@example.com", false)

	enqueuer := &recordingEnqueuer{}
	svc := newTestNotificationService(configs, enqueuer)

	payload, _ := json.Marshal(GmailNotification{EmailAddress: "sales@example.com", HistoryID: 10})
	svc.handleMessage(context.Background(), payload)

	if len(enqueuer.configIDs) != 0 {
		t.Fatalf("enqueued = %v, want none", enqueuer.configIDs)
	}
}

func TestHandleMessageDeduplicatesByHistoryID(t *testing.T) {
	db, configs := newNotificationFixture(t)
	seedAccountWithConfig(t, db, configs, "sales@example.com", true)

	enqueuer := &recordingEnqueuer{}
	svc := newTestNotificationService(configs, enqueuer)

	first, _ := json.Marshal(GmailNotification{EmailAddress: "sales@example.com", HistoryID: 10})
	replay, _ := json.Marshal(GmailNotification{EmailAddress: "sales@example.com", HistoryID: 10})
	newer, _ := json.Marshal(GmailNotification{EmailAddress: "sales@example.com", HistoryID: 11})

	svc.handleMessage(context.Background(), first)
	svc.handleMessage(context.Background(), replay)
	svc.handleMessage(context.Background(), newer)

	if len(enqueuer.configIDs) != 2 {
		t.Fatalf("enqueue calls = %d, want 2 (replay dropped)", len(enqueuer.configIDs))
	}
}

func TestHandleMessageToleratesAdmissionRejection(t *testing.T) {
	db, configs := newNotificationFixture(t)
	seedAccountWithConfig(t, db, configs, "sales@example.com", true)

	enqueuer := &recordingEnqueuer{err: errors.New("A sync job for this configuration is already in progress.")}
	svc := newTestNotificationService(configs, enqueuer)

	payload, _ := json.Marshal(GmailNotification{EmailAddress: "sales@example.com", HistoryID: 10})
	// Must not panic or surface the error.
	svc.handleMessage(context.Background(), payload)
}

func TestHandleMessageMalformedPayload(t *testing.T) {
	_, configs := newNotificationFixture(t)
	enqueuer := &recordingEnqueuer{}
	svc := newTestNotificationService(configs, enqueuer)

	svc.handleMessage(context.Background(), []byte("not json"))
	if len(enqueuer.configIDs) != 0 {
		t.Fatalf("enqueued = %v, want none", enqueuer.configIDs)
	}
}
