package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	importerdomain "dealdesk-backend/internal/importer/domain"
	importerrepo "dealdesk-backend/internal/importer/repository"
	"dealdesk-backend/internal/sync/domain"
	"dealdesk-backend/internal/sync/repository"
	"dealdesk-backend/pkg/spool"

	"github.com/sirupsen/logrus"
)

var (
	ErrConfigNotFound  = errors.New("sync configuration not found")
	ErrConfigDisabled  = errors.New("sync configuration is disabled")
	ErrWrongConfigType = errors.New("sync configuration is for a different service")
)

// Progress allocation across the per-item loop. Searching happens before
// itemStart; finalizing after itemEnd.
const (
	progressItemStart = 15
	progressItemEnd   = 85
)

// ProgressFunc receives advisory percentage/status updates during a run.
// It never influences control flow.
type ProgressFunc func(percent int, status string)

// RunResult is the summary handed back to the job queue.
type RunResult struct {
	ConfigID       string        `json:"configId"`
	SyncRunID      string        `json:"syncRunId"`
	ItemsFound     int           `json:"itemsFound"`
	ItemsProcessed int           `json:"itemsProcessed"`
	DealsCreated   int           `json:"dealsCreated"`
	ErrorsCount    int           `json:"errorsCount"`
	HasMore        bool          `json:"hasMore"`
	Duration       time.Duration `json:"duration"`
}

// FileProcessor turns one spooled source file into CRM rows and reports how
// many deals it created.
type FileProcessor interface {
	ProcessSourceFile(ctx context.Context, sourceFileID string) (dealsCreated int, err error)
}

// SyncService drives one sync run: search, dedupe against the ledger, fetch,
// spool, hand off to the file processor, record.
type SyncService struct {
	configs    repository.ConfigRepository
	runs       repository.RunRepository
	ledger     repository.SyncedItemRepository
	files      importerrepo.SourceFileRepository
	connectors ConnectorFactory
	processor  FileProcessor
	spool      *spool.Writer
	log        *logrus.Entry
	now        func() time.Time
}

func NewSyncService(
	configs repository.ConfigRepository,
	runs repository.RunRepository,
	ledger repository.SyncedItemRepository,
	files importerrepo.SourceFileRepository,
	connectors ConnectorFactory,
	processor FileProcessor,
	spoolWriter *spool.Writer,
	log *logrus.Entry,
) *SyncService {
	return &SyncService{
		configs:    configs,
		runs:       runs,
		ledger:     ledger,
		files:      files,
		connectors: connectors,
		processor:  processor,
		spool:      spoolWriter,
		log:        log,
		now:        time.Now,
	}
}

// Run executes one sync for a configuration. service guards against a job
// of the wrong type reaching the wrong handler. A nil progress is allowed.
func (s *SyncService) Run(ctx context.Context, configID, service, triggerType, triggeredBy string, progress ProgressFunc) (*RunResult, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	started := s.now()

	cfg, err := s.configs.FindByID(configID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	if cfg.Service != service {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrWrongConfigType, cfg.Service, service)
	}
	if !cfg.Enabled {
		return nil, ErrConfigDisabled
	}

	run := &domain.SyncRun{
		ConfigID:    cfg.ID,
		Status:      domain.RunStatusRunning,
		TriggerType: triggerType,
		TriggeredBy: triggeredBy,
		StartedAt:   started,
	}
	if err := s.runs.Create(run); err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"config_id": cfg.ID,
		"run_id":    run.ID,
		"service":   cfg.Service,
	})
	progress(5, "initializing")

	connector, err := s.connectors.ForConfig(ctx, cfg)
	if err != nil {
		return s.failRun(run, started, err, log)
	}

	progress(10, "searching")
	refs, truncated, err := connector.Search(ctx)
	if err != nil {
		return s.failRun(run, started, fmt.Errorf("search failed: %w", err), log)
	}

	run.ItemsFound = len(refs)
	run.HasMore = truncated
	if err := s.runs.Update(run); err != nil {
		log.Warnf("failed to record items_found: %v", err)
	}
	log.WithField("items_found", run.ItemsFound).Info("search complete")

	for i, ref := range refs {
		if err := s.processItem(ctx, cfg, run, connector, ref, log); err != nil {
			run.ErrorsCount++
			log.WithField("external_id", ref.ExternalID).Warnf("item failed: %v", err)
		} else {
			run.ItemsProcessed++
		}
		progress(itemProgress(i+1, len(refs)), "processing")
	}

	progress(90, "finalizing")
	now := s.now()
	run.Status = domain.RunStatusCompleted
	run.CompletedAt = &now
	if err := s.runs.Update(run); err != nil {
		return nil, err
	}
	if err := s.configs.UpdateSyncTimes(cfg.ID, now, NextRunTime(cfg.Schedule, now)); err != nil {
		log.Warnf("failed to update last_sync_at: %v", err)
	}

	progress(100, "completed")
	result := &RunResult{
		ConfigID:       cfg.ID,
		SyncRunID:      run.ID,
		ItemsFound:     run.ItemsFound,
		ItemsProcessed: run.ItemsProcessed,
		DealsCreated:   run.DealsCreated,
		ErrorsCount:    run.ErrorsCount,
		HasMore:        run.HasMore,
		Duration:       now.Sub(started),
	}
	log.WithFields(logrus.Fields{
		"items_processed": result.ItemsProcessed,
		"deals_created":   result.DealsCreated,
		"errors":          result.ErrorsCount,
		"has_more":        result.HasMore,
	}).Info("sync run completed")
	return result, nil
}

// processItem handles one candidate. A ledger hit is a successful no-op so
// re-synced items still count as processed.
func (s *SyncService) processItem(ctx context.Context, cfg *domain.SyncConfiguration, run *domain.SyncRun, connector Connector, ref ItemRef, log *logrus.Entry) error {
	seen, err := s.ledger.Seen(cfg.ID, ref.ExternalID)
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}
	if seen {
		log.WithField("external_id", ref.ExternalID).Debug("already synced, skipping")
		return nil
	}

	item, err := connector.Fetch(ctx, ref)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	path, err := s.spool.Write(connector.Name(), connector.QueryName(), ref.ExternalID, item.Description, item.Ext, item.Content)
	if err != nil {
		return err
	}
	sidecar := map[string]interface{}{
		"connector":     connector.Name(),
		"queryName":     connector.QueryName(),
		item.SidecarKey: item.Summary,
	}
	if _, err := s.spool.WriteSidecar(path, sidecar); err != nil {
		return err
	}

	metadata := map[string]interface{}{
		"sync_config_id": cfg.ID,
		"sync_run_id":    run.ID,
	}
	for k, v := range item.Provenance {
		metadata[k] = v
	}
	file := &importerdomain.SourceFile{
		Filename:    filepath.Base(path),
		FileType:    item.FileType,
		StoragePath: path,
		SizeBytes:   int64(len(item.Content)),
		Metadata:    metadata,
		UploadedBy:  "sync",
	}
	if err := s.files.Create(file); err != nil {
		return err
	}

	dealsCreated, err := s.processor.ProcessSourceFile(ctx, file.ID)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}
	run.DealsCreated += dealsCreated

	return s.ledger.MarkSynced(cfg.ID, ref.ExternalID, file.ID, s.now())
}

func (s *SyncService) failRun(run *domain.SyncRun, started time.Time, cause error, log *logrus.Entry) (*RunResult, error) {
	now := s.now()
	run.Status = domain.RunStatusFailed
	run.CompletedAt = &now
	run.ErrorMessage = cause.Error()
	if err := s.runs.Update(run); err != nil {
		log.Warnf("failed to record run failure: %v", err)
	}
	log.Warnf("sync run failed: %v", cause)
	return nil, cause
}

func itemProgress(done, total int) int {
	if total == 0 {
		return progressItemEnd
	}
	return progressItemStart + (progressItemEnd-progressItemStart)*done/total
}

// NextRunTime computes when a schedule fires next, or nil for manual
// configurations.
func NextRunTime(schedule string, from time.Time) *time.Time {
	var next time.Time
	switch schedule {
	case domain.ScheduleHourly:
		next = from.Add(time.Hour)
	case domain.ScheduleDaily:
		next = from.Add(24 * time.Hour)
	case domain.ScheduleWeekly:
		next = from.Add(7 * 24 * time.Hour)
	default:
		return nil
	}
	return &next
}
