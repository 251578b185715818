// Package checkout turns a storefront cart into a pending order and a hosted
// payment session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const (
	maxDescriptionLen = 500

	msgProductsUnavailable = "one or more products are not available"
	msgInsufficientStock   = "insufficient stock"
	msgSessionFailed       = "failed to create checkout session, please try again"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type domainLookup interface {
	GetPrimaryDomain(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// Service runs the checkout saga: persist a PENDING order, open a gateway
// session, and delete the order again when the gateway fails.
type Service interface {
	CreateCheckout(ctx context.Context, tenantID uuid.UUID, input CreateCheckoutInput) (*Result, error)
}

type ServiceParams struct {
	DB          txRunner
	Orders      orders.Repository
	Catalog     catalog.Repository
	Discounts   discounts.Service
	Gateway     stripe.Gateway
	Outbox      outbox.Emitter
	Domains     domainLookup
	Checkout    config.CheckoutConfig
	PlatformURL string
	Currency    string
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
	Now         func() time.Time
	Numbers     *NumberGenerator
}

type service struct {
	db         txRunner
	orders     orders.Repository
	catalog    catalog.Repository
	discounts  discounts.Service
	gateway    stripe.Gateway
	outbox     outbox.Emitter
	domains    domainLookup
	rates      helpers.ShippingRates
	vatRate    decimal.Decimal
	successURL string
	cancelURL  string
	currency   string
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
	now        func() time.Time
	numbers    *NumberGenerator
}

// NewService validates collaborators and parses the pricing configuration.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Discounts == nil {
		return nil, fmt.Errorf("discount service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	domestic, international, err := params.Checkout.ShippingRates()
	if err != nil {
		return nil, err
	}
	vat, err := params.Checkout.VATRate()
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	numbers := params.Numbers
	if numbers == nil {
		numbers = NewNumberGenerator(params.Checkout.OrderNumberPrefix)
	}
	platform := strings.TrimRight(strings.TrimSpace(params.PlatformURL), "/")
	successURL := strings.TrimSpace(params.Checkout.SuccessURL)
	if successURL == "" {
		successURL = platform + "/checkout/success"
	}
	cancelURL := strings.TrimSpace(params.Checkout.CancelURL)
	if cancelURL == "" {
		cancelURL = platform + "/cart"
	}
	homeCountry := strings.TrimSpace(params.Checkout.HomeCountry)
	if homeCountry == "" {
		homeCountry = orders.DefaultLabelCountry
	}
	return &service{
		db:        params.DB,
		orders:    params.Orders,
		catalog:   params.Catalog,
		discounts: params.Discounts,
		gateway:   params.Gateway,
		outbox:    params.Outbox,
		domains:   params.Domains,
		rates: helpers.ShippingRates{
			HomeCountry:   homeCountry,
			Domestic:      domestic,
			International: international,
		},
		vatRate:    vat,
		successURL: successURL + "?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:  cancelURL + "?cancelled=true",
		currency:   params.Currency,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        now,
		numbers:    numbers,
	}, nil
}

// priced is the outcome of the pure pricing steps, before anything is written.
type priced struct {
	lines       []helpers.Line
	products    map[uuid.UUID]models.Product
	fulfillment enums.FulfillmentType
	subtotal    decimal.Decimal
	discount    discounts.Result
	shipping    decimal.Decimal
	tax         decimal.Decimal
	total       decimal.Decimal
}

func (s *service) CreateCheckout(ctx context.Context, tenantID uuid.UUID, input CreateCheckoutInput) (*Result, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	ctx = s.logg.WithTenantID(ctx, tenantID.String())

	quote, err := s.price(ctx, tenantID, input)
	if err != nil {
		return nil, err
	}

	order, err := s.persistOrder(ctx, tenantID, input, quote)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
	})

	session, err := s.openSession(ctx, tenantID, order, input, quote)
	if err != nil {
		s.metrics.IncSession("failed")
		s.logg.Error(ctx, "checkout session creation failed", err)
		s.compensate(ctx, tenantID, order)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgSessionFailed)
	}
	s.metrics.IncSession("created")

	if err := s.orders.SetSessionID(ctx, tenantID, order.ID, session.ID); err != nil {
		// The webhook settles by metadata orderId, so the payment stays reconcilable.
		s.logg.Error(s.logg.WithField(ctx, "session_id", session.ID), "failed to store checkout session id", err)
	}

	s.logg.Info(ctx, "checkout session created")
	return &Result{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	}, nil
}

func (s *service) price(ctx context.Context, tenantID uuid.UUID, input CreateCheckoutInput) (*priced, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil || item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each cart item needs a product id and a quantity of at least 1")
		}
	}
	fulfillment := input.fulfillment()
	if !fulfillment.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fulfillment type").
			WithDetails(map[string]any{"validTypes": []enums.FulfillmentType{enums.FulfillmentTypeShipping, enums.FulfillmentTypePickup}})
	}

	lines := input.lines()
	rows, err := s.catalog.FindActiveByIDs(ctx, tenantID, helpers.ProductIDs(lines))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	if len(rows) != len(lines) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgProductsUnavailable)
	}
	products := make(map[uuid.UUID]models.Product, len(rows))
	for _, p := range rows {
		products[p.ID] = p
	}

	if violations := helpers.StockViolations(lines, products); len(violations) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgInsufficientStock).
			WithDetails(map[string]any{"items": violations})
	}

	subtotal := helpers.Subtotal(lines, products)
	discount := discounts.Result{Amount: decimal.Zero}
	if input.DiscountCodeID != nil && *input.DiscountCodeID != uuid.Nil {
		discount, err = s.discounts.EvaluateByID(ctx, tenantID, *input.DiscountCodeID, subtotal)
		if err != nil {
			return nil, err
		}
		if !discount.Applied() {
			s.logg.Warn(s.logg.WithField(ctx, "reason", string(discount.Reason)), "discount code not applied")
		}
	}
	shipping := s.rates.Shipping(fulfillment, input.country())
	total := helpers.Total(subtotal, discount.Amount, shipping)

	return &priced{
		lines:       lines,
		products:    products,
		fulfillment: fulfillment,
		subtotal:    subtotal,
		discount:    discount,
		shipping:    shipping,
		tax:         helpers.IncludedVAT(total, s.vatRate),
		total:       total,
	}, nil
}

func (s *service) persistOrder(ctx context.Context, tenantID uuid.UUID, input CreateCheckoutInput, quote *priced) (*models.Order, error) {
	number, err := s.numbers.Next(s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}

	order := &models.Order{
		ID:              uuid.New(),
		TenantID:        tenantID,
		OrderNumber:     number,
		Status:          enums.OrderStatusPending,
		FulfillmentType: quote.fulfillment,
		Subtotal:        quote.subtotal,
		TaxAmount:       quote.tax,
		ShippingAmount:  quote.shipping,
		DiscountAmount:  quote.discount.Amount,
		Total:           quote.total,
		CustomerEmail:   strings.TrimSpace(input.CustomerEmail),
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerPhone:   input.CustomerPhone,
		ShippingAddress: toAddress(input.ShippingAddress),
		DiscountCodeID:  quote.discount.CodeID,
		Items:           orderItems(quote),
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			TenantID:      tenantID,
			Data: payloads.OrderCreatedEvent{
				OrderID:         order.ID,
				TenantID:        tenantID,
				OrderNumber:     order.OrderNumber,
				Total:           order.Total,
				FulfillmentType: order.FulfillmentType,
				ItemCount:       len(order.Items),
				DiscountCodeID:  order.DiscountCodeID,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	return order, nil
}

func (s *service) openSession(ctx context.Context, tenantID uuid.UUID, order *models.Order, input CreateCheckoutInput, quote *priced) (*stripe.Session, error) {
	var couponID string
	if quote.discount.Applied() && quote.discount.Amount.IsPositive() {
		id, err := s.gateway.CreateOneTimeCoupon(ctx, quote.discount.Amount, s.currency, "Korting: "+quote.discount.Code)
		if err != nil {
			return nil, err
		}
		couponID = id
	}

	discountCodeID := ""
	if quote.discount.CodeID != nil {
		discountCodeID = quote.discount.CodeID.String()
	}
	return s.gateway.CreateSession(ctx, stripe.SessionParams{
		OrderID:   order.ID.String(),
		LineItems: lineItems(input, quote),
		Shipping:  quote.shipping,
		Metadata: map[string]string{
			"orderId":        order.ID.String(),
			"orderNumber":    order.OrderNumber,
			"discountCodeId": discountCodeID,
			"tenantId":       tenantID.String(),
			"tenantDomain":   s.tenantDomain(ctx, tenantID),
		},
		CustomerEmail: order.CustomerEmail,
		CouponID:      couponID,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
	})
}

// compensate removes the order created for a session that never opened.
func (s *service) compensate(ctx context.Context, tenantID uuid.UUID, order *models.Order) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.orders.WithTx(tx).Delete(ctx, tenantID, order.ID)
	})
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.metrics.IncCompensation("failed")
		s.logg.Error(ctx, "failed to clean up orphan order", err)
		return
	}
	s.metrics.IncCompensation("deleted")
	s.logg.Info(ctx, "cleaned up orphan order after gateway failure")
}

func (s *service) tenantDomain(ctx context.Context, tenantID uuid.UUID) string {
	if s.domains == nil {
		return ""
	}
	domain, err := s.domains.GetPrimaryDomain(ctx, tenantID)
	if err != nil {
		s.logg.Warn(ctx, "primary domain lookup failed: "+err.Error())
		return ""
	}
	return domain
}

func orderItems(quote *priced) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(quote.lines))
	for _, line := range quote.lines {
		product := quote.products[line.ProductID]
		productID := product.ID
		qty := decimal.NewFromInt(int64(line.Quantity))
		items = append(items, models.OrderItem{
			ProductID:    &productID,
			ProductName:  product.Name,
			ProductSKU:   product.SKU,
			ProductImage: firstImage(line.Image, product.ImageURL),
			Quantity:     line.Quantity,
			UnitPrice:    product.Price,
			TotalPrice:   product.Price.Mul(qty),
		})
	}
	return items
}

func lineItems(input CreateCheckoutInput, quote *priced) []stripe.LineItem {
	out := make([]stripe.LineItem, 0, len(quote.lines))
	for _, line := range quote.lines {
		product := quote.products[line.ProductID]
		item := stripe.LineItem{
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  int64(line.Quantity),
		}
		if product.Description != nil {
			item.Description = truncate(strings.TrimSpace(*product.Description), maxDescriptionLen)
		}
		if img := firstImage(line.Image, product.ImageURL); img != nil {
			item.ImageURL = *img
		}
		out = append(out, item)
	}
	return out
}

func toAddress(in *AddressInput) *dbtypes.Address {
	if in == nil {
		return nil
	}
	addr := &dbtypes.Address{
		Line1:      strings.TrimSpace(in.Line1),
		City:       strings.TrimSpace(in.City),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
	}
	if in.Line2 != nil {
		addr.Line2 = strings.TrimSpace(*in.Line2)
	}
	if in.State != nil {
		addr.State = strings.TrimSpace(*in.State)
	}
	return addr
}

func firstImage(candidates ...*string) *string {
	for _, c := range candidates {
		if c != nil && strings.TrimSpace(*c) != "" {
			v := strings.TrimSpace(*c)
			return &v
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
