package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dealdesk-backend/pkg/redisdb"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	jobsKey       = "dealdesk:sync:jobs"
	markerPrefix  = "dealdesk:sync:pending:"
	resultPrefix  = "dealdesk:sync:result:"
	progressKey   = "dealdesk:sync:progress:"
	resultTTL     = time.Hour
	progressTTL   = time.Hour
	admissionTTL  = 35 * time.Minute
)

// ErrJobAlreadyQueued is the admission rejection for a config that already
// has an active or waiting job of the same type.
var ErrJobAlreadyQueued = errors.New("A sync job for this configuration is already in progress.")

// Job is the queued sync payload.
type Job struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // gmail_sync | drive_sync
	ConfigID    string    `json:"configId"`
	TriggerType string    `json:"triggerType"`
	TriggeredBy string    `json:"triggeredBy,omitempty"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}

// markerStore tracks per-(type, config) admission markers. The redis
// implementation backs production; tests swap in an in-memory one.
type markerStore interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisMarkerStore struct {
	rdb *redis.Client
}

func (s *redisMarkerStore) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, "1", ttl).Result()
}

func (s *redisMarkerStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// Service enqueues sync jobs with one-active-job-per-config admission.
type Service struct {
	rdb     *redisdb.Client
	markers markerStore
	push    func(ctx context.Context, payload []byte) error
	log     *logrus.Entry
}

func NewService(rdb *redisdb.Client, log *logrus.Entry) *Service {
	s := &Service{
		rdb:     rdb,
		markers: &redisMarkerStore{rdb: rdb.Redis},
		log:     log,
	}
	s.push = func(ctx context.Context, payload []byte) error {
		return rdb.Redis.LPush(ctx, jobsKey, payload).Err()
	}
	return s
}

// EnqueueSync submits one sync job. The admission marker is held until the
// worker finishes the job (or its TTL lapses after a crash).
func (s *Service) EnqueueSync(ctx context.Context, configID, service, triggerType, triggeredBy string) (string, error) {
	jobType := service + "_sync"
	marker := markerKey(jobType, configID)

	acquired, err := s.markers.TryAcquire(ctx, marker, admissionTTL)
	if err != nil {
		return "", fmt.Errorf("admission check: %w", err)
	}
	if !acquired {
		return "", ErrJobAlreadyQueued
	}

	job := Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		ConfigID:    configID,
		TriggerType: triggerType,
		TriggeredBy: triggeredBy,
		EnqueuedAt:  time.Now(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		_ = s.markers.Release(ctx, marker)
		return "", err
	}
	if err := s.push(ctx, payload); err != nil {
		_ = s.markers.Release(ctx, marker)
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"job_type":  job.Type,
		"config_id": configID,
		"trigger":   triggerType,
	}).Info("sync job enqueued")
	return job.ID, nil
}

// RemoveQueued cancels a job that has not started yet. A running job cannot
// be cancelled mid-flight; it runs to completion or failure.
func (s *Service) RemoveQueued(ctx context.Context, jobID string) (bool, error) {
	payloads, err := s.rdb.Redis.LRange(ctx, jobsKey, 0, -1).Result()
	if err != nil {
		return false, err
	}

	for _, payload := range payloads {
		var job Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			continue
		}
		if job.ID != jobID {
			continue
		}
		removed, err := s.rdb.Redis.LRem(ctx, jobsKey, 1, payload).Result()
		if err != nil {
			return false, err
		}
		if removed > 0 {
			_ = s.markers.Release(ctx, markerKey(job.Type, job.ConfigID))
			return true, nil
		}
	}
	return false, nil
}

// Progress returns the advisory progress of the latest job for a config.
func (s *Service) Progress(ctx context.Context, configID string) (map[string]string, error) {
	fields, err := s.rdb.Redis.HGetAll(ctx, progressKey+configID).Result()
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func markerKey(jobType, configID string) string {
	return markerPrefix + jobType + ":" + configID
}
