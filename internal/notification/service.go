package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	oauthdomain "dealdesk-backend/internal/oauth/domain"
	syncdomain "dealdesk-backend/internal/sync/domain"
	syncrepo "dealdesk-backend/internal/sync/repository"
	syncusecase "dealdesk-backend/internal/sync/usecase"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GmailNotification is the Gmail push payload delivered over Pub/Sub when
// a watched mailbox changes.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Service listens for Gmail push notifications and enqueues sync jobs for
// the enabled configurations of the notified mailbox.
type Service struct {
	pubsubClient *pubsub.Client
	configs      syncrepo.ConfigRepository
	enqueuer     syncusecase.SyncEnqueuer
	topicName    string
	subName      string
	log          *logrus.Entry

	// Deduplication: Gmail redelivers aggressively, so track the last
	// historyId seen per mailbox.
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewService(projectID, topicName, credentialsFile string, configs syncrepo.ConfigRepository, enqueuer syncusecase.SyncEnqueuer, log *logrus.Entry) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Service{
		pubsubClient:  client,
		configs:       configs,
		enqueuer:      enqueuer,
		topicName:     topicName,
		subName:       topicName + "-sub",
		log:           log,
		lastHistoryID: make(map[string]uint64),
	}, nil
}

// Start blocks receiving messages until ctx is cancelled. The subscription
// is created on demand when only the topic exists.
func (s *Service) Start(ctx context.Context) {
	s.log.WithFields(logrus.Fields{
		"topic":        s.topicName,
		"subscription": s.subName,
	}).Info("starting gmail notification listener")

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		s.log.Errorf("failed to check subscription: %v", err)
		return
	}
	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil || !topicExists {
			s.log.Errorf("topic %s unavailable, push sync disabled: %v", s.topicName, err)
			return
		}
		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			s.log.Errorf("failed to create subscription: %v", err)
			return
		}
		s.log.Infof("created subscription %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg.Data)
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		s.log.Errorf("pubsub receive stopped: %v", err)
	}
}

func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

func (s *Service) handleMessage(ctx context.Context, data []byte) {
	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		s.log.Warnf("discarding malformed notification: %v", err)
		return
	}
	if notification.EmailAddress == "" {
		return
	}

	if s.isDuplicate(notification) {
		s.log.WithField("account", notification.EmailAddress).
			Debugf("duplicate notification for historyId %d", notification.HistoryID)
		return
	}

	configs, err := s.configs.ListEnabledByAccountEmail(notification.EmailAddress, oauthdomain.ServiceGmail)
	if err != nil {
		s.log.Errorf("failed to look up configs for %s: %v", notification.EmailAddress, err)
		return
	}
	if len(configs) == 0 {
		return
	}

	for _, cfg := range configs {
		_, err := s.enqueuer.EnqueueSync(ctx, cfg.ID, cfg.Service, syncdomain.TriggerScheduled, "gmail-push")
		if err != nil {
			// Usually the admission rejection while a run is in flight;
			// the running sync will pick the new message up anyway.
			s.log.WithField("config_id", cfg.ID).Infof("push enqueue skipped: %v", err)
			continue
		}
		s.log.WithFields(logrus.Fields{
			"config_id": cfg.ID,
			"account":   notification.EmailAddress,
		}).Info("push-triggered sync enqueued")
	}
}

func (s *Service) isDuplicate(n GmailNotification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[n.EmailAddress]; ok && n.HistoryID <= last {
		return true
	}
	s.lastHistoryID[n.EmailAddress] = n.HistoryID
	return false
}
