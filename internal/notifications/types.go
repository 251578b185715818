package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Shop carries the tenant branding used in customer email.
type Shop struct {
	Name         string
	ContactEmail string
	PrimaryColor string
}

// StatusUpdate is the customer email sent after an administrative transition.
type StatusUpdate struct {
	TenantID           uuid.UUID
	OrderID            uuid.UUID
	OrderNumber        string
	To                 string
	CustomerName       string
	NewStatus          enums.OrderStatus
	TrackingNumber     string
	TrackingURL        string
	CancellationReason string
	Shop               Shop
}

type ConfirmationItem struct {
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// OrderConfirmation is the customer email sent once an order is paid.
type OrderConfirmation struct {
	TenantID        uuid.UUID
	OrderID         uuid.UUID
	OrderNumber     string
	To              string
	CustomerName    string
	Items           []ConfirmationItem
	Subtotal        decimal.Decimal
	DiscountAmount  decimal.Decimal
	ShippingAmount  decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress *dbtypes.Address
	FulfillmentType enums.FulfillmentType
	InvoicePDF      []byte
	InvoiceName     string
	Shop            Shop
}

// Mailer delivers customer email.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error
	SendOrderStatusUpdate(ctx context.Context, msg StatusUpdate) error
}

// InvoiceGenerator renders the invoice PDF for a paid order.
type InvoiceGenerator interface {
	GenerateInvoiceForOrder(ctx context.Context, orderID uuid.UUID) ([]byte, error)
}
