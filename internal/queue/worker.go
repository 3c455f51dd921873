package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	syncusecase "dealdesk-backend/internal/sync/usecase"
	"dealdesk-backend/pkg/redisdb"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const lockPrefix = "dealdesk:sync:lock:"

// SyncExecutor is the abstract boundary between the queue and the sync
// orchestration; the concrete sync service is wired in at startup.
type SyncExecutor interface {
	Run(ctx context.Context, configID, service, triggerType, triggeredBy string, progress syncusecase.ProgressFunc) (*syncusecase.RunResult, error)
}

// Worker dequeues sync jobs one at a time and drives them through the
// executor under a per-config lock with a hard run ceiling.
type Worker struct {
	rdb      *redisdb.Client
	markers  markerStore
	executor SyncExecutor
	timeout  time.Duration
	log      *logrus.Entry
	stop     chan struct{}
	done     chan struct{}
}

func NewWorker(rdb *redisdb.Client, executor SyncExecutor, jobTimeout time.Duration, log *logrus.Entry) *Worker {
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}
	return &Worker{
		rdb:      rdb,
		markers:  &redisMarkerStore{rdb: rdb.Redis},
		executor: executor,
		timeout:  jobTimeout,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go w.loop()
	w.log.Info("sync worker started")
}

// Stop waits for the in-flight job to finish.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		payload, err := w.rdb.Redis.BRPop(context.Background(), 5*time.Second, jobsKey).Result()
		if err != nil {
			if err != redis.Nil {
				w.log.Errorf("dequeue failed: %v", err)
				time.Sleep(time.Second)
			}
			continue
		}
		// BRPop returns [key, value].
		if len(payload) < 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(payload[1]), &job); err != nil {
			w.log.Errorf("discarding malformed job payload: %v", err)
			continue
		}
		w.process(job)
	}
}

func (w *Worker) process(job Job) {
	log := w.log.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"job_type":  job.Type,
		"config_id": job.ConfigID,
	})

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	defer func() {
		if err := w.markers.Release(context.Background(), markerKey(job.Type, job.ConfigID)); err != nil {
			log.Warnf("failed to release admission marker: %v", err)
		}
	}()

	// The per-config lock is a second guard against duplicate runs when the
	// admission marker expired under a still-running job.
	lock, err := w.rdb.Locker.Obtain(ctx, lockPrefix+job.ConfigID, w.timeout, nil)
	if err == redislock.ErrNotObtained {
		log.Warn("another worker holds the lock for this config, dropping job")
		return
	}
	if err != nil {
		log.Errorf("failed to obtain sync lock: %v", err)
		return
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil && err != redislock.ErrLockNotHeld {
			log.Warnf("failed to release sync lock: %v", err)
		}
	}()

	service := strings.TrimSuffix(job.Type, "_sync")
	progress := func(percent int, status string) {
		w.publishProgress(job.ConfigID, job.ID, percent, status)
	}

	started := time.Now()
	result, err := w.executor.Run(ctx, job.ConfigID, service, job.TriggerType, job.TriggeredBy, progress)
	if err != nil {
		log.Errorf("sync job failed after %s: %v", time.Since(started).Round(time.Millisecond), err)
		w.recordResult(job.ID, map[string]interface{}{
			"configId": job.ConfigID,
			"error":    err.Error(),
			"duration": time.Since(started).Milliseconds(),
		})
		return
	}

	log.WithFields(logrus.Fields{
		"items_found":     result.ItemsFound,
		"items_processed": result.ItemsProcessed,
		"deals_created":   result.DealsCreated,
	}).Info("sync job completed")
	w.recordResult(job.ID, map[string]interface{}{
		"configId":       result.ConfigID,
		"syncRunId":      result.SyncRunID,
		"itemsFound":     result.ItemsFound,
		"itemsProcessed": result.ItemsProcessed,
		"dealsCreated":   result.DealsCreated,
		"errorsCount":    result.ErrorsCount,
		"duration":       result.Duration.Milliseconds(),
	})
}

func (w *Worker) publishProgress(configID, jobID string, percent int, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := progressKey + configID
	pipe := w.rdb.Redis.TxPipeline()
	pipe.HSet(ctx, key, "jobId", jobID, "percent", percent, "status", status)
	pipe.Expire(ctx, key, progressTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Debugf("failed to publish progress: %v", err)
	}
}

func (w *Worker) recordResult(jobID string, fields map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := w.rdb.Redis.Set(ctx, resultPrefix+jobID, payload, resultTTL).Err(); err != nil {
		w.log.Debugf("failed to record job result: %v", err)
	}
}
