package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Tenant is an independent storefront served by the platform.
type Tenant struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name        string             `gorm:"column:name;not null"`
	Slug        string             `gorm:"column:slug;not null;uniqueIndex"`
	Status      enums.TenantStatus `gorm:"column:status;type:text;not null;default:DRAFT"`
	SuspendedAt *time.Time         `gorm:"column:suspended_at"`
	ArchivedAt  *time.Time         `gorm:"column:archived_at"`
	Domains     []TenantDomain     `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	Config      *TenantConfig      `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Tenant) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// TenantDomain binds a hostname to exactly one tenant.
type TenantDomain struct {
	ID                 uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	TenantID           uuid.UUID                      `gorm:"column:tenant_id;type:uuid;not null;index"`
	Hostname           string                         `gorm:"column:hostname;not null;uniqueIndex"`
	IsPrimary          bool                           `gorm:"column:is_primary;not null;default:false"`
	VerificationStatus enums.DomainVerificationStatus `gorm:"column:verification_status;type:text;not null;default:PENDING"`
	VerifiedAt         *time.Time                     `gorm:"column:verified_at"`
	CreatedAt          time.Time                      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                      `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *TenantDomain) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// TenantConfig holds branding and contact settings, one per tenant.
type TenantConfig struct {
	TenantID      uuid.UUID         `gorm:"column:tenant_id;type:uuid;primaryKey"`
	DisplayName   string            `gorm:"column:display_name"`
	LogoURL       *string           `gorm:"column:logo_url"`
	PrimaryColor  *string           `gorm:"column:primary_color"`
	Locale        string            `gorm:"column:locale;not null;default:nl-BE"`
	Currency      string            `gorm:"column:currency;not null;default:EUR"`
	ContactEmail  *string           `gorm:"column:contact_email"`
	ContactPhone  *string           `gorm:"column:contact_phone"`
	BusinessHours dbtypes.StringMap `gorm:"column:business_hours;type:jsonb"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
