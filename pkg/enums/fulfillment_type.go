package enums

import "fmt"

// FulfillmentType captures how the customer receives the order.
type FulfillmentType string

const (
	FulfillmentTypeShipping FulfillmentType = "SHIPPING"
	FulfillmentTypePickup   FulfillmentType = "PICKUP"
)

// IsValid reports whether the value is a known FulfillmentType.
func (f FulfillmentType) IsValid() bool {
	return f == FulfillmentTypeShipping || f == FulfillmentTypePickup
}

// ParseFulfillmentType converts raw input into a FulfillmentType.
// Empty input defaults to shipping.
func ParseFulfillmentType(value string) (FulfillmentType, error) {
	if value == "" {
		return FulfillmentTypeShipping, nil
	}
	f := FulfillmentType(value)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid fulfillment type %q", value)
	}
	return f, nil
}

// ActorType identifies who changed an order status.
type ActorType string

const (
	ActorTypeAdmin   ActorType = "admin"
	ActorTypeSystem  ActorType = "system"
	ActorTypeWebhook ActorType = "webhook"
)
