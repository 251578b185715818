package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CartItem is one line posted by the storefront. Name and Price are display
// hints only; checkout always prices from the catalog.
type CartItem struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=999"`
	Image     *string   `json:"image,omitempty"`
}

type AddressInput struct {
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=120"`
	State      *string `json:"state,omitempty" validate:"omitempty,max=120"`
	PostalCode string  `json:"postalCode" validate:"required,max=20"`
	Country    string  `json:"country" validate:"omitempty,len=2"`
}

// CreateCheckoutInput is the storefront checkout request.
type CreateCheckoutInput struct {
	Items           []CartItem             `json:"items" validate:"dive"`
	CustomerEmail   string                 `json:"customerEmail" validate:"required,email,max=254"`
	CustomerName    string                 `json:"customerName" validate:"required,max=200"`
	CustomerPhone   *string                `json:"customerPhone,omitempty" validate:"omitempty,max=40"`
	FulfillmentType *enums.FulfillmentType `json:"fulfillmentType,omitempty"`
	ShippingAddress *AddressInput          `json:"shippingAddress,omitempty" validate:"omitempty"`
	DiscountCodeID  *uuid.UUID             `json:"discountCodeId,omitempty"`
}

// Result is returned once the hosted payment page is ready.
type Result struct {
	CheckoutURL string    `json:"checkoutUrl"`
	SessionID   string    `json:"sessionId"`
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
}

func (in CreateCheckoutInput) fulfillment() enums.FulfillmentType {
	if in.FulfillmentType == nil || *in.FulfillmentType == "" {
		return enums.FulfillmentTypeShipping
	}
	return *in.FulfillmentType
}

func (in CreateCheckoutInput) country() string {
	if in.ShippingAddress == nil {
		return ""
	}
	return in.ShippingAddress.Country
}

func (in CreateCheckoutInput) lines() []helpers.Line {
	lines := make([]helpers.Line, 0, len(in.Items))
	for _, item := range in.Items {
		lines = append(lines, helpers.Line{ProductID: item.ProductID, Quantity: item.Quantity, Image: item.Image})
	}
	return helpers.MergeLines(lines)
}
