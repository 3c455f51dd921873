package repository

import (
	"dealdesk-backend/internal/crm/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repositories take the transaction handle explicitly so the file processor
// can run all three import phases on one transaction.

type VendorRepository interface {
	FindByNormalizedName(tx *gorm.DB, normalized string) (*domain.Vendor, error)
	Create(tx *gorm.DB, vendor *domain.Vendor) error
	ListAll(tx *gorm.DB) ([]*domain.Vendor, error)
}

type DealRepository interface {
	Create(tx *gorm.DB, deal *domain.DealRegistration) error
	ListByVendor(tx *gorm.DB, vendorID string) ([]*domain.DealRegistration, error)
}

type ContactRepository interface {
	Create(tx *gorm.DB, contact *domain.Contact) error
}

type ProvenanceRepository interface {
	Create(tx *gorm.DB, p *domain.Provenance) error
}

type gormVendorRepository struct{}

func NewGormVendorRepository() VendorRepository {
	return &gormVendorRepository{}
}

func (r *gormVendorRepository) FindByNormalizedName(tx *gorm.DB, normalized string) (*domain.Vendor, error) {
	var vendor domain.Vendor
	err := tx.Where("normalized_name = ?", normalized).First(&vendor).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &vendor, nil
}

func (r *gormVendorRepository) Create(tx *gorm.DB, vendor *domain.Vendor) error {
	if vendor.ID == "" {
		vendor.ID = uuid.New().String()
	}
	if vendor.NormalizedName == "" {
		vendor.NormalizedName = domain.NormalizeVendorName(vendor.Name)
	}
	return tx.Create(vendor).Error
}

func (r *gormVendorRepository) ListAll(tx *gorm.DB) ([]*domain.Vendor, error) {
	var vendors []*domain.Vendor
	err := tx.Order("name ASC").Find(&vendors).Error
	return vendors, err
}

type gormDealRepository struct{}

func NewGormDealRepository() DealRepository {
	return &gormDealRepository{}
}

func (r *gormDealRepository) Create(tx *gorm.DB, deal *domain.DealRegistration) error {
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}
	return tx.Create(deal).Error
}

func (r *gormDealRepository) ListByVendor(tx *gorm.DB, vendorID string) ([]*domain.DealRegistration, error) {
	var deals []*domain.DealRegistration
	err := tx.Where("vendor_id = ?", vendorID).Find(&deals).Error
	return deals, err
}

type gormContactRepository struct{}

func NewGormContactRepository() ContactRepository {
	return &gormContactRepository{}
}

func (r *gormContactRepository) Create(tx *gorm.DB, contact *domain.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	return tx.Create(contact).Error
}

type gormProvenanceRepository struct{}

func NewGormProvenanceRepository() ProvenanceRepository {
	return &gormProvenanceRepository{}
}

func (r *gormProvenanceRepository) Create(tx *gorm.DB, p *domain.Provenance) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return tx.Create(p).Error
}
