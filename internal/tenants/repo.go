package tenants

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository is the tenant directory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByHostname(ctx context.Context, host string) (*models.Tenant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, status *enums.TenantStatus) ([]models.Tenant, error)
	Create(ctx context.Context, tenant *models.Tenant) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TenantStatus, at time.Time) error
	UpsertConfig(ctx context.Context, cfg *models.TenantConfig) error
	ListDomains(ctx context.Context, tenantID uuid.UUID) ([]models.TenantDomain, error)
	FindDomainByHostname(ctx context.Context, host string) (*models.TenantDomain, error)
	CreateDomain(ctx context.Context, domain *models.TenantDomain) error
	DeleteDomain(ctx context.Context, tenantID, domainID uuid.UUID) error
	SetPrimaryDomain(ctx context.Context, tenantID, domainID uuid.UUID) error
	MarkDomainVerified(ctx context.Context, tenantID, domainID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a tenant repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByHostname resolves the owning tenant of a hostname with its config and all domains.
func (r *repository) FindByHostname(ctx context.Context, host string) (*models.Tenant, error) {
	var tenant models.Tenant
	owner := r.db.Model(&models.TenantDomain{}).Select("tenant_id").Where("hostname = ?", host)
	err := r.db.WithContext(ctx).
		Where("id IN (?)", owner).
		Preload("Config").
		Preload("Domains", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_primary DESC").Order("created_at ASC")
		}).
		First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).
		Preload("Config").
		Preload("Domains", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_primary DESC").Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tenant{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *repository) List(ctx context.Context, status *enums.TenantStatus) ([]models.Tenant, error) {
	var tenants []models.Tenant
	query := r.db.WithContext(ctx).
		Preload("Domains", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_primary DESC").Order("created_at ASC")
		}).
		Order("created_at DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *repository) Create(ctx context.Context, tenant *models.Tenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TenantStatus, at time.Time) error {
	updates := map[string]any{"status": status}
	switch status {
	case enums.TenantStatusSuspended:
		updates["suspended_at"] = at
	case enums.TenantStatusArchived:
		updates["archived_at"] = at
	case enums.TenantStatusActive:
		updates["suspended_at"] = nil
	}
	res := r.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpsertConfig(ctx context.Context, cfg *models.TenantConfig) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(cfg).Error
}

func (r *repository) ListDomains(ctx context.Context, tenantID uuid.UUID) ([]models.TenantDomain, error) {
	var domains []models.TenantDomain
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("is_primary DESC").
		Order("created_at ASC").
		Find(&domains).Error
	return domains, err
}

func (r *repository) FindDomainByHostname(ctx context.Context, host string) (*models.TenantDomain, error) {
	var domain models.TenantDomain
	if err := r.db.WithContext(ctx).Where("hostname = ?", host).First(&domain).Error; err != nil {
		return nil, err
	}
	return &domain, nil
}

func (r *repository) CreateDomain(ctx context.Context, domain *models.TenantDomain) error {
	return r.db.WithContext(ctx).Create(domain).Error
}

func (r *repository) DeleteDomain(ctx context.Context, tenantID, domainID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", domainID, tenantID).
		Delete(&models.TenantDomain{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetPrimaryDomain clears the previous primary before flagging the new one.
func (r *repository) SetPrimaryDomain(ctx context.Context, tenantID, domainID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.TenantDomain{}).
		Where("tenant_id = ? AND is_primary = ?", tenantID, true).
		Update("is_primary", false).Error; err != nil {
		return err
	}
	res := db.Model(&models.TenantDomain{}).
		Where("id = ? AND tenant_id = ?", domainID, tenantID).
		Update("is_primary", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) MarkDomainVerified(ctx context.Context, tenantID, domainID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.TenantDomain{}).
		Where("id = ? AND tenant_id = ?", domainID, tenantID).
		Updates(map[string]any{
			"verification_status": enums.DomainVerificationVerified,
			"verified_at":         at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
