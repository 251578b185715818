package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/coupon"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// ShippingLineName labels the shipping line shown on the hosted checkout page.
const ShippingLineName = "Verzending"

const defaultRequestTimeout = 15 * time.Second

// LineItem is one product line in major currency units.
type LineItem struct {
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int64
	ImageURL    string
}

// SessionParams describes a hosted checkout session for one order.
type SessionParams struct {
	OrderID       string
	LineItems     []LineItem
	Shipping      decimal.Decimal
	Metadata      map[string]string
	CustomerEmail string
	CouponID      string
	SuccessURL    string
	CancelURL     string
}

// Session is the gateway handle returned to the browser.
type Session struct {
	ID  string
	URL string
}

// Gateway is the payment provider surface used by checkout and webhooks.
type Gateway interface {
	CreateSession(ctx context.Context, params SessionParams) (*Session, error)
	CreateOneTimeCoupon(ctx context.Context, amountOff decimal.Decimal, currency, name string) (string, error)
	VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error)
}

type (
	sessionCreator func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	couponCreator  func(*stripe.CouponParams) (*stripe.Coupon, error)
)

// CheckoutGateway implements Gateway on top of the Stripe API.
type CheckoutGateway struct {
	signingSecret string
	currency      string
	timeout       time.Duration
	newSession    sessionCreator
	newCoupon     couponCreator
}

// NewGateway builds the gateway from an initialized client.
func NewGateway(client *Client, cfg config.StripeConfig) (*CheckoutGateway, error) {
	if client == nil {
		return nil, errors.New("stripe client is required")
	}
	return newGateway(client.SigningSecret(), cfg, session.New, coupon.New), nil
}

func newGateway(secret string, cfg config.StripeConfig, newSession sessionCreator, newCoupon couponCreator) *CheckoutGateway {
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "eur"
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &CheckoutGateway{
		signingSecret: secret,
		currency:      currency,
		timeout:       timeout,
		newSession:    newSession,
		newCoupon:     newCoupon,
	}
}

// CreateSession opens a payment-mode checkout session. Session creation is
// keyed on the order id so a retried request never opens a second session.
func (g *CheckoutGateway) CreateSession(ctx context.Context, p SessionParams) (*Session, error) {
	if len(p.LineItems) == 0 {
		return nil, errors.New("at least one line item is required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems:  g.lineItems(p),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: copyMetadata(p.Metadata),
		},
	}
	params.Context = ctx
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	if p.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(p.CouponID)}}
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.OrderID != "" {
		params.SetIdempotencyKey("checkout:" + p.OrderID)
	}

	sess, err := g.newSession(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if sess == nil || sess.ID == "" {
		return nil, errors.New("create checkout session: empty response")
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// CreateOneTimeCoupon creates an amount-off coupon redeemable once.
func (g *CheckoutGateway) CreateOneTimeCoupon(ctx context.Context, amountOff decimal.Decimal, currency, name string) (string, error) {
	cents := ToMinorUnits(amountOff)
	if cents <= 0 {
		return "", errors.New("coupon amount must be positive")
	}
	if currency == "" {
		currency = g.currency
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CouponParams{
		AmountOff:      stripe.Int64(cents),
		Currency:       stripe.String(strings.ToLower(currency)),
		Duration:       stripe.String(string(stripe.CouponDurationOnce)),
		MaxRedemptions: stripe.Int64(1),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx

	c, err := g.newCoupon(params)
	if err != nil {
		return "", fmt.Errorf("create coupon: %w", err)
	}
	return c.ID, nil
}

// VerifyWebhook checks the signature against the raw request body.
func (g *CheckoutGateway) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	if g.signingSecret == "" {
		return stripe.Event{}, errSecretRequired
	}
	return webhook.ConstructEventWithOptions(payload, signatureHeader, g.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

func (g *CheckoutGateway) lineItems(p SessionParams) []*stripe.CheckoutSessionLineItemParams {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.LineItems)+1)
	for _, li := range p.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if li.Description != "" {
			product.Description = stripe.String(li.Description)
		}
		if li.ImageURL != "" {
			product.Images = []*string{stripe.String(li.ImageURL)}
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(g.currency),
				UnitAmount:  stripe.Int64(ToMinorUnits(li.UnitPrice)),
				ProductData: product,
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}
	if p.Shipping.IsPositive() {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(ToMinorUnits(p.Shipping)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(ShippingLineName),
				},
			},
			Quantity: stripe.Int64(1),
		})
	}
	return items
}

// ToMinorUnits converts a major-unit amount to cents, rounding half up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
