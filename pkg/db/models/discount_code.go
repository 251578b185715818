package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// DiscountCode is a tenant promotion applied at checkout and counted at settlement.
type DiscountCode struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID       uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	Code           string              `gorm:"column:code;not null"`
	Type           enums.DiscountType  `gorm:"column:type;type:text;not null"`
	Value          decimal.Decimal     `gorm:"column:value;type:numeric(12,2);not null"`
	StartsAt       *time.Time          `gorm:"column:starts_at"`
	ExpiresAt      *time.Time          `gorm:"column:expires_at"`
	UsageLimit     *int                `gorm:"column:usage_limit"`
	UsageCount     int                 `gorm:"column:usage_count;not null;default:0"`
	MinOrderAmount decimal.NullDecimal `gorm:"column:min_order_amount;type:numeric(12,2)"`
	MaxDiscount    decimal.NullDecimal `gorm:"column:max_discount;type:numeric(12,2)"`
	IsActive       bool                `gorm:"column:is_active;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DiscountCode) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
