package usecase

import (
	"time"

	"dealdesk-backend/internal/importer/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrorTracker records parser and import issues for later review. Tracking
// is best-effort: a failed write is logged at warn level and dropped, never
// surfaced to the import itself.
type ErrorTracker interface {
	Track(sourceFileID, phase, severity, message string)
}

type gormErrorTracker struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewGormErrorTracker(db *gorm.DB, log *logrus.Entry) ErrorTracker {
	return &gormErrorTracker{db: db, log: log}
}

func (t *gormErrorTracker) Track(sourceFileID, phase, severity, message string) {
	issue := &domain.ImportIssue{
		ID:           uuid.New().String(),
		SourceFileID: sourceFileID,
		Phase:        phase,
		Severity:     severity,
		Message:      message,
		CreatedAt:    time.Now(),
	}
	if err := t.db.Create(issue).Error; err != nil {
		t.log.WithFields(logrus.Fields{
			"source_file_id": sourceFileID,
			"phase":          phase,
		}).Warnf("failed to record import issue: %v", err)
	}
}
