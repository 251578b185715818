package discounts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var evalNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func activeCode(kind enums.DiscountType, value string) *models.DiscountCode {
	return &models.DiscountCode{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Code:     "SPRING",
		Type:     kind,
		Value:    dec(value),
		IsActive: true,
	}
}

func TestEvaluateArithmetic(t *testing.T) {
	capped := activeCode(enums.DiscountTypePercentage, "10")
	capped.MaxDiscount = nullDec("5.00")

	cases := []struct {
		name     string
		code     *models.DiscountCode
		subtotal string
		want     string
	}{
		{"percentage", activeCode(enums.DiscountTypePercentage, "10"), "100.00", "10.00"},
		{"percentage capped", capped, "100.00", "5.00"},
		{"fixed below subtotal", activeCode(enums.DiscountTypeFixed, "15"), "100.00", "15.00"},
		{"fixed clamped to subtotal", activeCode(enums.DiscountTypeFixed, "150"), "100.00", "100.00"},
		{"percentage rounds half up", activeCode(enums.DiscountTypePercentage, "15"), "0.50", "0.08"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Evaluate(tc.code, dec(tc.subtotal), evalNow)
			if !res.Applied() {
				t.Fatalf("expected code applied, reason %q", res.Reason)
			}
			if !res.Amount.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, res.Amount)
			}
			if *res.CodeID != tc.code.ID {
				t.Fatalf("expected code id %s, got %s", tc.code.ID, *res.CodeID)
			}
		})
	}
}

func TestEvaluateUnusableCodesYieldZero(t *testing.T) {
	inactive := activeCode(enums.DiscountTypeFixed, "5")
	inactive.IsActive = false

	future := activeCode(enums.DiscountTypeFixed, "5")
	future.StartsAt = timePtr(evalNow.Add(time.Hour))

	expired := activeCode(enums.DiscountTypeFixed, "5")
	expired.ExpiresAt = timePtr(evalNow.Add(-time.Hour))

	exhausted := activeCode(enums.DiscountTypeFixed, "5")
	exhausted.UsageLimit = intPtr(3)
	exhausted.UsageCount = 3

	minimum := activeCode(enums.DiscountTypeFixed, "5")
	minimum.MinOrderAmount = nullDec("50.00")

	cases := []struct {
		name   string
		code   *models.DiscountCode
		reason Reason
	}{
		{"missing", nil, ReasonMissing},
		{"inactive", inactive, ReasonInactive},
		{"not started", future, ReasonNotStarted},
		{"expired", expired, ReasonExpired},
		{"usage exhausted", exhausted, ReasonUsageExceeded},
		{"below minimum", minimum, ReasonBelowMinimum},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Evaluate(tc.code, dec("40.00"), evalNow)
			if res.Applied() {
				t.Fatalf("expected code rejected")
			}
			if !res.Amount.IsZero() {
				t.Fatalf("expected zero amount, got %s", res.Amount)
			}
			if res.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, res.Reason)
			}
		})
	}
}

func TestEvaluateWindowBoundsInclusive(t *testing.T) {
	code := activeCode(enums.DiscountTypeFixed, "5")
	code.StartsAt = timePtr(evalNow)
	code.ExpiresAt = timePtr(evalNow)
	code.MinOrderAmount = nullDec("40.00")

	res := Evaluate(code, dec("40.00"), evalNow)
	if !res.Applied() {
		t.Fatalf("expected code usable at window bounds, reason %q", res.Reason)
	}
}
