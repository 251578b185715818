package helpers

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// ShippingRates holds the flat rates charged per destination.
type ShippingRates struct {
	HomeCountry   string
	Domestic      decimal.Decimal
	International decimal.Decimal
}

// Shipping returns the rate for the fulfillment type and destination.
// Pickup is free; an empty country counts as the home country.
func (r ShippingRates) Shipping(fulfillment enums.FulfillmentType, country string) decimal.Decimal {
	if fulfillment == enums.FulfillmentTypePickup {
		return decimal.Zero
	}
	country = strings.TrimSpace(country)
	if country == "" || strings.EqualFold(country, r.HomeCountry) {
		return r.Domestic
	}
	return r.International
}

// IncludedVAT returns the VAT portion contained in a tax-inclusive total,
// rounded half-up to cents. A zero rate yields zero.
func IncludedVAT(total, ratePercent decimal.Decimal) decimal.Decimal {
	if !ratePercent.IsPositive() || !total.IsPositive() {
		return decimal.Zero
	}
	net := total.Div(decimal.NewFromInt(1).Add(ratePercent.Div(hundred)))
	return total.Sub(net).Round(2)
}

// Total is subtotal minus discount plus shipping, never below zero.
func Total(subtotal, discount, shipping decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount).Add(shipping)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
