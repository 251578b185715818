package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is a tenant-owned purchase created at checkout.
type Order struct {
	ID                    uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TenantID              uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null;index"`
	OrderNumber           string                `gorm:"column:order_number;not null;uniqueIndex"`
	Status                enums.OrderStatus     `gorm:"column:status;type:text;not null;default:PENDING"`
	FulfillmentType       enums.FulfillmentType `gorm:"column:fulfillment_type;type:text;not null;default:SHIPPING"`
	Subtotal              decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount             decimal.Decimal       `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	ShippingAmount        decimal.Decimal       `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	DiscountAmount        decimal.Decimal       `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	Total                 decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null"`
	CustomerEmail         string                `gorm:"column:customer_email;not null;index"`
	CustomerName          string                `gorm:"column:customer_name;not null"`
	CustomerPhone         *string               `gorm:"column:customer_phone"`
	ShippingAddress       *dbtypes.Address      `gorm:"column:shipping_address;type:jsonb"`
	DiscountCodeID        *uuid.UUID            `gorm:"column:discount_code_id;type:uuid"`
	StripeSessionID       *string               `gorm:"column:stripe_session_id;uniqueIndex"`
	StripePaymentIntentID *string               `gorm:"column:stripe_payment_intent_id"`
	AdminNotes            *string               `gorm:"column:admin_notes"`
	TrackingNumber        *string               `gorm:"column:tracking_number"`
	CancellationReason    *string               `gorm:"column:cancellation_reason"`
	PaidAt                *time.Time            `gorm:"column:paid_at"`
	ShippedAt             *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt           *time.Time            `gorm:"column:delivered_at"`
	Items                 []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem snapshots a product line at order time.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID    *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	ProductName  string          `gorm:"column:product_name;not null"`
	ProductSKU   *string         `gorm:"column:product_sku"`
	ProductImage *string         `gorm:"column:product_image"`
	Quantity     int             `gorm:"column:quantity;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalPrice   decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// OrderStatusHistory is an append-only audit entry per status change.
type OrderStatusHistory struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	PreviousStatus enums.OrderStatus `gorm:"column:previous_status;type:text;not null"`
	NewStatus      enums.OrderStatus `gorm:"column:new_status;type:text;not null"`
	ChangedBy      string            `gorm:"column:changed_by;not null"`
	ChangedByName  string            `gorm:"column:changed_by_name;not null"`
	ChangedByType  enums.ActorType   `gorm:"column:changed_by_type;type:text;not null"`
	Notes          *string           `gorm:"column:notes"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}
