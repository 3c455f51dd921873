package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	crmdomain "dealdesk-backend/internal/crm/domain"
	crmrepo "dealdesk-backend/internal/crm/repository"
	crmusecase "dealdesk-backend/internal/crm/usecase"
	"dealdesk-backend/internal/importer/domain"
	"dealdesk-backend/internal/importer/parser"
	"dealdesk-backend/internal/importer/repository"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type processorFixture struct {
	db    *gorm.DB
	files repository.SourceFileRepository
	proc  *FileProcessor
	dir   string
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.SourceFile{},
		&domain.ImportIssue{},
		&crmdomain.Vendor{},
		&crmdomain.DealRegistration{},
		&crmdomain.Contact{},
		&crmdomain.Provenance{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := logrus.NewEntry(logrus.New())
	files := repository.NewGormSourceFileRepository(db)
	proc := NewFileProcessor(
		db,
		files,
		parser.NewRegistry(),
		crmrepo.NewGormVendorRepository(),
		crmrepo.NewGormDealRepository(),
		crmrepo.NewGormContactRepository(),
		crmrepo.NewGormProvenanceRepository(),
		crmusecase.NewPolicyGate(),
		NewGormErrorTracker(db, log),
		log,
	)
	return &processorFixture{db: db, files: files, proc: proc, dir: t.TempDir()}
}

func (f *processorFixture) seedFile(t *testing.T, name, fileType, content string) *domain.SourceFile {
	t.Helper()
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	file := &domain.SourceFile{
		Filename:    name,
		FileType:    fileType,
		StoragePath: path,
		SizeBytes:   int64(len(content)),
	}
	if err := f.files.Create(file); err != nil {
		t.Fatalf("create source file: %v", err)
	}
	return file
}

func TestProcessSourceFileHappyPath(t *testing.T) {
	f := newProcessorFixture(t)
	csv := strings.Join([]string{
		"deal_name,vendor,amount,contact_name,email",
		"Network Refresh,Acme Corp,12500,Jane Roe,jane@acme.example",
		"Storage Upgrade,Acme Corp,8000,,",
	}, "\n")
	file := f.seedFile(t, "deals.csv", "csv", csv)

	dealsCreated, err := f.proc.ProcessSourceFile(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("ProcessSourceFile: %v", err)
	}
	if dealsCreated != 2 {
		t.Errorf("deals created = %d, want 2", dealsCreated)
	}

	var vendorCount, dealCount, contactCount int64
	f.db.Model(&crmdomain.Vendor{}).Count(&vendorCount)
	f.db.Model(&crmdomain.DealRegistration{}).Count(&dealCount)
	f.db.Model(&crmdomain.Contact{}).Count(&contactCount)
	if vendorCount != 1 || dealCount != 2 || contactCount != 1 {
		t.Errorf("rows = vendors:%d deals:%d contacts:%d, want 1/2/1", vendorCount, dealCount, contactCount)
	}

	stored, _ := f.files.FindByID(file.ID)
	if stored.ProcessingStatus != domain.ProcessingCompleted {
		t.Errorf("status = %q, want completed", stored.ProcessingStatus)
	}
	if stored.Metadata["progress"] == nil {
		t.Error("completed file missing progress metadata")
	}
	if stored.Metadata["parserName"] != "standardized_csv" {
		t.Errorf("parser metadata = %v, want standardized_csv", stored.Metadata["parserName"])
	}

	var deals []crmdomain.DealRegistration
	f.db.Find(&deals)
	for _, deal := range deals {
		if deal.ParserName == "" {
			t.Errorf("deal %s missing extraction metadata", deal.DealName)
		}
	}

	var provCount int64
	f.db.Model(&crmdomain.Provenance{}).Count(&provCount)
	if provCount != 2 {
		t.Errorf("provenance rows = %d, want 2", provCount)
	}
}

func TestProcessSourceFileVendorDenialIsNotFatal(t *testing.T) {
	f := newProcessorFixture(t)
	csv := strings.Join([]string{
		"deal_name,vendor,amount",
		"Bad Deal,12345,100",
		"Good Deal,Acme Corp,200",
	}, "\n")
	file := f.seedFile(t, "mixed.csv", "csv", csv)

	dealsCreated, err := f.proc.ProcessSourceFile(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("ProcessSourceFile: %v", err)
	}
	// The denied vendor's deal cannot resolve, the valid one imports.
	if dealsCreated != 1 {
		t.Errorf("deals created = %d, want 1", dealsCreated)
	}

	var vendorCount int64
	f.db.Model(&crmdomain.Vendor{}).Count(&vendorCount)
	if vendorCount != 1 {
		t.Errorf("vendors = %d, want 1 (denied vendor not created)", vendorCount)
	}

	var issues []domain.ImportIssue
	f.db.Where("source_file_id = ?", file.ID).Find(&issues)
	foundDenial, foundNoVendor := false, false
	for _, issue := range issues {
		if issue.Phase == "vendor" && strings.Contains(issue.Message, "denied") {
			foundDenial = true
		}
		if issue.Phase == "deal" && strings.Contains(issue.Message, "No vendor found for deal: Bad Deal") {
			foundNoVendor = true
		}
	}
	if !foundDenial {
		t.Errorf("vendor denial not tracked: %+v", issues)
	}
	if !foundNoVendor {
		t.Errorf("unresolved deal vendor not tracked: %+v", issues)
	}

	stored, _ := f.files.FindByID(file.ID)
	if stored.ProcessingStatus != domain.ProcessingCompleted {
		t.Errorf("status = %q, want completed despite per-entity errors", stored.ProcessingStatus)
	}
}

func TestProcessSourceFileVendorMatchIsCaseInsensitive(t *testing.T) {
	f := newProcessorFixture(t)
	csv := strings.Join([]string{
		"deal_name,vendor,amount",
		"First,Acme Corp,100",
		"Second,ACME CORP,200",
	}, "\n")
	file := f.seedFile(t, "case.csv", "csv", csv)

	dealsCreated, err := f.proc.ProcessSourceFile(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("ProcessSourceFile: %v", err)
	}
	if dealsCreated != 2 {
		t.Errorf("deals created = %d, want 2", dealsCreated)
	}

	var vendorCount int64
	f.db.Model(&crmdomain.Vendor{}).Count(&vendorCount)
	if vendorCount != 1 {
		t.Errorf("vendors = %d, want 1 (case-insensitive match)", vendorCount)
	}
}

func TestProcessSourceFileMissingFile(t *testing.T) {
	f := newProcessorFixture(t)

	if _, err := f.proc.ProcessSourceFile(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown source file id")
	}
}

func TestProcessSourceFileUnreadablePath(t *testing.T) {
	f := newProcessorFixture(t)
	file := f.seedFile(t, "gone.csv", "csv", "a,b\n1,2\n")
	if err := os.Remove(file.StoragePath); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := f.proc.ProcessSourceFile(context.Background(), file.ID); err == nil {
		t.Fatal("expected error for unreadable storage path")
	}

	stored, _ := f.files.FindByID(file.ID)
	if stored.ProcessingStatus != domain.ProcessingFailed {
		t.Errorf("status = %q, want failed", stored.ProcessingStatus)
	}
	if stored.ErrorMessage == "" {
		t.Error("failed file missing error message")
	}
}

func TestProcessSourceFileRejectsFailedScan(t *testing.T) {
	f := newProcessorFixture(t)
	file := f.seedFile(t, "infected.csv", "csv", "a,b\n")
	f.db.Model(&domain.SourceFile{}).Where("id = ?", file.ID).Update("scan_status", "infected")

	if _, err := f.proc.ProcessSourceFile(context.Background(), file.ID); err == nil {
		t.Fatal("expected error for failed scan status")
	}
}

func TestProcessSourceFileUnknownType(t *testing.T) {
	f := newProcessorFixture(t)
	file := f.seedFile(t, "binary.exe", "exe", "MZ")

	if _, err := f.proc.ProcessSourceFile(context.Background(), file.ID); err == nil {
		t.Fatal("expected error for unregistered file type")
	}

	stored, _ := f.files.FindByID(file.ID)
	if stored.ProcessingStatus != domain.ProcessingFailed {
		t.Errorf("status = %q, want failed", stored.ProcessingStatus)
	}
}
