package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when checkout persists a pending order.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID             `json:"order_id"`
	TenantID        uuid.UUID             `json:"tenant_id"`
	OrderNumber     string                `json:"order_number"`
	Total           decimal.Decimal       `json:"total"`
	FulfillmentType enums.FulfillmentType `json:"fulfillment_type"`
	ItemCount       int                   `json:"item_count"`
	DiscountCodeID  *uuid.UUID            `json:"discount_code_id,omitempty"`
}

// OrderPaidEvent is emitted once per order when settlement commits.
type OrderPaidEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	OrderNumber     string          `json:"order_number"`
	Total           decimal.Decimal `json:"total"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	PaidAt          time.Time       `json:"paid_at"`
}

// OrderStatusChangedEvent reports an administrative status transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	TenantID       uuid.UUID         `json:"tenant_id"`
	OrderNumber    string            `json:"order_number"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	NewStatus      enums.OrderStatus `json:"new_status"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
}

// TenantUpdatedEvent signals that cached tenant data should be refreshed elsewhere.
type TenantUpdatedEvent struct {
	TenantID  uuid.UUID          `json:"tenant_id"`
	Change    string             `json:"change"`
	Status    enums.TenantStatus `json:"status"`
	Hostnames []string           `json:"hostnames,omitempty"`
}
