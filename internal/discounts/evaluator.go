// Package discounts evaluates tenant discount codes against a cart subtotal.
package discounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Reason explains why a code was not applied.
type Reason string

const (
	ReasonApplied       Reason = ""
	ReasonMissing       Reason = "not_found"
	ReasonInactive      Reason = "inactive"
	ReasonNotStarted    Reason = "not_started"
	ReasonExpired       Reason = "expired"
	ReasonUsageExceeded Reason = "usage_limit_reached"
	ReasonBelowMinimum  Reason = "below_minimum"
)

// Result is the outcome of evaluating a code. An unusable code yields a zero
// amount and a nil CodeID.
type Result struct {
	Amount decimal.Decimal
	CodeID *uuid.UUID
	Code   string
	Type   enums.DiscountType
	Reason Reason
}

// Applied reports whether the code contributed to the order.
func (r Result) Applied() bool {
	return r.CodeID != nil
}

var hundred = decimal.NewFromInt(100)

// Evaluate computes the discount for subtotal at now. It never fails.
func Evaluate(code *models.DiscountCode, subtotal decimal.Decimal, now time.Time) Result {
	if code == nil {
		return Result{Amount: decimal.Zero, Reason: ReasonMissing}
	}
	if reason := usable(code, subtotal, now); reason != ReasonApplied {
		return Result{Amount: decimal.Zero, Reason: reason}
	}

	var amount decimal.Decimal
	switch code.Type {
	case enums.DiscountTypePercentage:
		amount = subtotal.Mul(code.Value).Div(hundred)
		if code.MaxDiscount.Valid && amount.GreaterThan(code.MaxDiscount.Decimal) {
			amount = code.MaxDiscount.Decimal
		}
	case enums.DiscountTypeFixed:
		amount = decimal.Min(code.Value, subtotal)
	default:
		return Result{Amount: decimal.Zero, Reason: ReasonInactive}
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	id := code.ID
	return Result{
		Amount: amount.Round(2),
		CodeID: &id,
		Code:   code.Code,
		Type:   code.Type,
	}
}

func usable(code *models.DiscountCode, subtotal decimal.Decimal, now time.Time) Reason {
	switch {
	case !code.IsActive:
		return ReasonInactive
	case code.StartsAt != nil && now.Before(*code.StartsAt):
		return ReasonNotStarted
	case code.ExpiresAt != nil && now.After(*code.ExpiresAt):
		return ReasonExpired
	case code.UsageLimit != nil && code.UsageCount >= *code.UsageLimit:
		return ReasonUsageExceeded
	case code.MinOrderAmount.Valid && subtotal.LessThan(code.MinOrderAmount.Decimal):
		return ReasonBelowMinimum
	}
	return ReasonApplied
}
