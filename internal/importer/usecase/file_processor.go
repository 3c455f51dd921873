package usecase

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	crmdomain "dealdesk-backend/internal/crm/domain"
	crmrepo "dealdesk-backend/internal/crm/repository"
	crmusecase "dealdesk-backend/internal/crm/usecase"
	"dealdesk-backend/internal/importer/domain"
	"dealdesk-backend/internal/importer/parser"
	"dealdesk-backend/internal/importer/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FileProcessor turns one spooled source file into vendor/deal/contact
// rows. The three import phases run sequentially inside one transaction:
// vendors first because deals and contacts resolve vendor ids against the
// map that phase builds. Expected per-entity failures are collected, only
// unexpected database errors roll the transaction back.
type FileProcessor struct {
	db         *gorm.DB
	files      repository.SourceFileRepository
	parsers    *parser.Registry
	vendors    crmrepo.VendorRepository
	deals      crmrepo.DealRepository
	contacts   crmrepo.ContactRepository
	provenance crmrepo.ProvenanceRepository
	gate       crmusecase.VendorApprovalGate
	tracker    ErrorTracker
	log        *logrus.Entry
	now        func() time.Time
}

func NewFileProcessor(
	db *gorm.DB,
	files repository.SourceFileRepository,
	parsers *parser.Registry,
	vendors crmrepo.VendorRepository,
	deals crmrepo.DealRepository,
	contacts crmrepo.ContactRepository,
	provenance crmrepo.ProvenanceRepository,
	gate crmusecase.VendorApprovalGate,
	tracker ErrorTracker,
	log *logrus.Entry,
) *FileProcessor {
	return &FileProcessor{
		db:         db,
		files:      files,
		parsers:    parsers,
		vendors:    vendors,
		deals:      deals,
		contacts:   contacts,
		provenance: provenance,
		gate:       gate,
		tracker:    tracker,
		log:        log,
		now:        time.Now,
	}
}

// ProcessSourceFile runs the full parse-and-import pipeline for one file
// and returns how many deals it created.
func (p *FileProcessor) ProcessSourceFile(ctx context.Context, sourceFileID string) (int, error) {
	file, err := p.files.FindByID(sourceFileID)
	if err != nil {
		return 0, err
	}
	if file == nil {
		return 0, fmt.Errorf("source file %s not found", sourceFileID)
	}

	if file.ScanStatus != "" && file.ScanStatus != domain.ScanPassed {
		return 0, p.fail(file, fmt.Errorf("file failed scanning: %s", file.ScanStatus))
	}
	if file.StoragePath == "" {
		return 0, p.fail(file, fmt.Errorf("source file has no storage path"))
	}
	content, err := os.ReadFile(file.StoragePath)
	if err != nil {
		return 0, p.fail(file, fmt.Errorf("read spool file: %w", err))
	}

	fileParser, err := p.parsers.ForFileType(file.FileType)
	if err != nil {
		return 0, p.fail(file, err)
	}

	if err := p.files.UpdateStatus(file.ID, domain.ProcessingInProgress, ""); err != nil {
		return 0, err
	}

	log := p.log.WithFields(logrus.Fields{
		"source_file_id": file.ID,
		"file_type":      file.FileType,
		"parser":         fileParser.Name(),
	})

	parseStart := p.now()
	result, err := fileParser.Parse(content)
	if err != nil {
		return 0, p.fail(file, fmt.Errorf("parse failed: %w", err))
	}
	parseElapsed := p.now().Sub(parseStart)

	for _, msg := range result.Errors {
		p.tracker.Track(file.ID, "parse", "error", msg)
	}
	for _, msg := range result.Warnings {
		p.tracker.Track(file.ID, "parse", "warning", msg)
	}

	var (
		vendorOutcome, dealOutcome, contactOutcome domain.ImportOutcome
		vendorElapsed, dealElapsed, contactElapsed time.Duration
	)
	txErr := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		phaseStart := p.now()
		vendorMap := make(map[string]string)
		vendorOutcome = p.processVendors(tx, file, result.Vendors, vendorMap)
		vendorElapsed = p.now().Sub(phaseStart)

		phaseStart = p.now()
		dealOutcome = p.processDeals(tx, file, result.Deals, vendorMap)
		dealElapsed = p.now().Sub(phaseStart)

		phaseStart = p.now()
		contactOutcome = p.processContacts(tx, file, result.Contacts, vendorMap)
		contactElapsed = p.now().Sub(phaseStart)
		return nil
	})
	if txErr != nil {
		return 0, p.fail(file, fmt.Errorf("import transaction: %w", txErr))
	}

	outcome := vendorOutcome.Merge(dealOutcome).Merge(contactOutcome)
	for _, importErr := range outcome.Errors {
		p.tracker.Track(file.ID, importErr.Entity, "error", importErr.Reason)
	}

	if err := p.files.UpdateStatus(file.ID, domain.ProcessingCompleted, ""); err != nil {
		return dealOutcome.Created, err
	}
	metadata := map[string]interface{}{
		"progress":         100,
		"parserName":       result.ParserName,
		"parserVersion":    result.ParserVersion,
		"parserWarnings":   result.Warnings,
		"parserSourceTags": result.SourceTags,
		"importErrors":     len(outcome.Errors),
	}
	if err := p.files.MergeMetadata(file.ID, metadata); err != nil {
		log.Warnf("failed to merge processing metadata: %v", err)
	}

	log.WithFields(logrus.Fields{
		"vendors_created":  vendorOutcome.Created,
		"deals_created":    dealOutcome.Created,
		"contacts_created": contactOutcome.Created,
		"import_errors":    len(outcome.Errors),
		"parse_ms":         parseElapsed.Milliseconds(),
		"vendor_ms":        vendorElapsed.Milliseconds(),
		"deal_ms":          dealElapsed.Milliseconds(),
		"contact_ms":       contactElapsed.Milliseconds(),
	}).Info("source file processed")

	return dealOutcome.Created, nil
}

// processVendors gates and creates vendors, filling vendorMap keyed by both
// the original and the lowercased name so later phases match
// case-insensitively.
func (p *FileProcessor) processVendors(tx *gorm.DB, file *domain.SourceFile, vendors []domain.NormalizedVendor, vendorMap map[string]string) domain.ImportOutcome {
	var outcome domain.ImportOutcome

	for i, v := range vendors {
		decision, reason := p.gate.Approve(v.Name)
		if decision != crmusecase.ApprovalApproved {
			outcome.Errors = append(outcome.Errors, domain.ImportError{
				Entity: "vendor",
				Name:   v.Name,
				Reason: fmt.Sprintf("Vendor approval %s: %s", decision, reason),
			})
			continue
		}

		normalized := crmdomain.NormalizeVendorName(v.Name)
		existing, err := p.vendors.FindByNormalizedName(tx, normalized)
		if err != nil {
			outcome.Errors = append(outcome.Errors, domain.ImportError{
				Entity: "vendor", Name: v.Name, Reason: err.Error(),
			})
			continue
		}

		var vendorID string
		if existing != nil {
			vendorID = existing.ID
		} else {
			vendor := &crmdomain.Vendor{
				Name:           v.Name,
				NormalizedName: normalized,
				Website:        v.Website,
				Industry:       v.Industry,
			}
			if err := createWithSavepoint(tx, fmt.Sprintf("vendor_%d", i), func(tx *gorm.DB) error {
				return p.vendors.Create(tx, vendor)
			}); err != nil {
				outcome.Errors = append(outcome.Errors, domain.ImportError{
					Entity: "vendor", Name: v.Name, Reason: fmt.Sprintf("failed to create vendor: %v", err),
				})
				continue
			}
			vendorID = vendor.ID
			outcome.Created++
		}

		vendorMap[v.Name] = vendorID
		vendorMap[strings.ToLower(v.Name)] = vendorID
	}
	return outcome
}

func (p *FileProcessor) processDeals(tx *gorm.DB, file *domain.SourceFile, deals []domain.NormalizedDeal, vendorMap map[string]string) domain.ImportOutcome {
	var outcome domain.ImportOutcome

	for i, d := range deals {
		vendorID, ok := resolveVendor(vendorMap, d.VendorName)
		if !ok {
			outcome.Errors = append(outcome.Errors, domain.ImportError{
				Entity: "deal",
				Name:   d.DealName,
				Reason: fmt.Sprintf("No vendor found for deal: %s", d.DealName),
			})
			continue
		}

		deal := &crmdomain.DealRegistration{
			DealName:      d.DealName,
			VendorID:      vendorID,
			Value:         d.Value,
			Currency:      d.Currency,
			Stage:         d.Stage,
			CloseDate:     d.CloseDate,
			SourceFileID:  file.ID,
			ParserName:    d.Extraction.ParserName,
			ParserVersion: d.Extraction.ParserVersion,
			SourceTags:    strings.Join(d.Extraction.SourceTags, ","),
			Confidence:    d.Extraction.Confidence,
		}
		if err := createWithSavepoint(tx, fmt.Sprintf("deal_%d", i), func(tx *gorm.DB) error {
			return p.deals.Create(tx, deal)
		}); err != nil {
			outcome.Errors = append(outcome.Errors, domain.ImportError{
				Entity: "deal", Name: d.DealName, Reason: fmt.Sprintf("failed to create deal: %v", err),
			})
			continue
		}
		outcome.Created++

		p.trackProvenance(tx, "deal", deal.ID, file.ID, d.Extraction)
	}
	return outcome
}

func (p *FileProcessor) processContacts(tx *gorm.DB, file *domain.SourceFile, contacts []domain.NormalizedContact, vendorMap map[string]string) domain.ImportOutcome {
	var outcome domain.ImportOutcome

	for i, c := range contacts {
		var vendorID *string
		if c.VendorName != "" {
			id, ok := resolveVendor(vendorMap, c.VendorName)
			if !ok {
				outcome.Errors = append(outcome.Errors, domain.ImportError{
					Entity: "contact",
					Name:   c.Name,
					Reason: fmt.Sprintf("No vendor found for contact: %s", c.Name),
				})
				continue
			}
			vendorID = &id
		}

		contact := &crmdomain.Contact{
			Name:         c.Name,
			VendorID:     vendorID,
			Email:        c.Email,
			Phone:        c.Phone,
			Role:         c.Role,
			SourceFileID: file.ID,
		}
		if err := createWithSavepoint(tx, fmt.Sprintf("contact_%d", i), func(tx *gorm.DB) error {
			return p.contacts.Create(tx, contact)
		}); err != nil {
			outcome.Errors = append(outcome.Errors, domain.ImportError{
				Entity: "contact", Name: c.Name, Reason: fmt.Sprintf("failed to create contact: %v", err),
			})
			continue
		}
		outcome.Created++
	}
	return outcome
}

// trackProvenance is best-effort: a failed insert is logged and ignored.
func (p *FileProcessor) trackProvenance(tx *gorm.DB, entityType, entityID, sourceFileID string, meta domain.ExtractionMeta) {
	err := createWithSavepoint(tx, "provenance", func(tx *gorm.DB) error {
		return p.provenance.Create(tx, &crmdomain.Provenance{
			EntityType:    entityType,
			EntityID:      entityID,
			SourceFileID:  sourceFileID,
			ParserName:    meta.ParserName,
			ParserVersion: meta.ParserVersion,
			SourceTags:    strings.Join(meta.SourceTags, ","),
			Confidence:    meta.Confidence,
		})
	})
	if err != nil {
		p.log.WithField("entity_id", entityID).Warnf("failed to track provenance: %v", err)
	}
}

func (p *FileProcessor) fail(file *domain.SourceFile, cause error) error {
	if err := p.files.UpdateStatus(file.ID, domain.ProcessingFailed, cause.Error()); err != nil {
		p.log.WithField("source_file_id", file.ID).Warnf("failed to mark file failed: %v", err)
	}
	return cause
}

func resolveVendor(vendorMap map[string]string, name string) (string, bool) {
	if id, ok := vendorMap[name]; ok {
		return id, true
	}
	id, ok := vendorMap[strings.ToLower(name)]
	return id, ok
}

// createWithSavepoint isolates one insert so an expected failure (usually
// a constraint violation) does not poison the surrounding transaction.
func createWithSavepoint(tx *gorm.DB, name string, fn func(*gorm.DB) error) error {
	if err := tx.SavePoint(name).Error; err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
			return rbErr
		}
		return err
	}
	return nil
}
