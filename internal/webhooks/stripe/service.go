// Package stripewebhook settles orders from verified payment provider events.
package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const (
	metadataOrderID  = "orderId"
	metadataTenantID = "tenantId"

	webhookActorID   = "stripe"
	webhookActorName = "Stripe"
)

var errAlreadySettled = errors.New("order already settled")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type usageCounter interface {
	IncrementUsage(ctx context.Context, codeID uuid.UUID) error
}

type ServiceParams struct {
	Orders    orders.Repository
	Catalog   catalog.Repository
	Discounts usageCounter
	Notifier  notifications.Notifier
	Outbox    outbox.Emitter
	DB        txRunner
	Metrics   *metrics.SettlementMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Service applies checkout completions to orders exactly once.
type Service struct {
	orders    orders.Repository
	catalog   catalog.Repository
	discounts usageCounter
	notifier  notifications.Notifier
	outbox    outbox.Emitter
	db        txRunner
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Discounts == nil {
		return nil, fmt.Errorf("discount usage counter required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		orders:    params.Orders,
		catalog:   params.Catalog,
		discounts: params.Discounts,
		notifier:  params.Notifier,
		outbox:    params.Outbox,
		db:        params.DB,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// HandleEvent settles checkout completions. A nil error means the provider
// may be acknowledged; the outcome says what actually happened.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return s.record(ctx, OutcomeSkipped, nil)
	}
	kind := ClassifyEvent(event.Type)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"event_kind": kind.String(),
	})

	switch kind {
	case EventKindCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			s.logg.Error(ctx, "decode checkout session", err)
			return s.record(ctx, OutcomeSkipped, nil)
		}
		return s.settle(ctx, &session)
	default:
		return s.record(ctx, OutcomeIgnored, nil)
	}
}

func (s *Service) settle(ctx context.Context, session *stripe.CheckoutSession) (Outcome, error) {
	ctx = s.logg.WithField(ctx, "session_id", session.ID)
	rawOrderID := strings.TrimSpace(session.Metadata[metadataOrderID])
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		s.logg.Warn(ctx, "checkout session carries no usable orderId")
		return s.record(ctx, OutcomeSkipped, nil)
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	order, err := s.orders.FindByIDAnyTenant(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "order for checkout session not found")
			return s.record(ctx, OutcomeSkipped, nil)
		}
		return s.record(ctx, OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order"))
	}
	ctx = s.logg.WithTenantID(ctx, order.TenantID.String())

	if rawTenant := strings.TrimSpace(session.Metadata[metadataTenantID]); rawTenant != "" && rawTenant != order.TenantID.String() {
		err := pkgerrors.New(pkgerrors.CodeForbidden, "payment tenant does not match order tenant").
			WithDetails(map[string]any{"sessionTenantId": rawTenant})
		s.logg.Error(s.logg.WithField(ctx, "session_tenant_id", rawTenant), "tenant mismatch on payment settlement", err)
		return s.record(ctx, OutcomeTenantMismatch, err)
	}

	if order.Status.IsSettled() {
		return s.record(ctx, OutcomeDuplicate, nil)
	}

	paidAt := s.now().UTC()
	paymentIntentID := paymentIntentOf(session)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.markPaid(ctx, tx, order, paymentIntentID, paidAt)
	})
	if errors.Is(err, errAlreadySettled) {
		return s.record(ctx, OutcomeDuplicate, nil)
	}
	if err != nil {
		return s.record(ctx, OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle order"))
	}

	order.Status = enums.OrderStatusPaid
	order.PaidAt = &paidAt
	order.StripePaymentIntentID = paymentIntentID
	s.afterCommit(ctx, *order)
	return s.record(ctx, OutcomeSettled, nil)
}

// markPaid runs inside the settlement transaction. The conditional update is
// the guard that keeps stock and events to one application per order.
func (s *Service) markPaid(ctx context.Context, tx *gorm.DB, order *models.Order, paymentIntentID *string, paidAt time.Time) error {
	orderRepo := s.orders.WithTx(tx)
	catalogRepo := s.catalog.WithTx(tx)

	updated, err := orderRepo.MarkPaid(ctx, order.ID, paymentIntentID, paidAt)
	if err != nil {
		return err
	}
	if !updated {
		return errAlreadySettled
	}

	var notes *string
	if paymentIntentID != nil {
		n := "Payment " + *paymentIntentID
		notes = &n
	}
	if err := orderRepo.AppendHistory(ctx, &models.OrderStatusHistory{
		OrderID:        order.ID,
		PreviousStatus: order.Status,
		NewStatus:      enums.OrderStatusPaid,
		ChangedBy:      webhookActorID,
		ChangedByName:  webhookActorName,
		ChangedByType:  enums.ActorTypeWebhook,
		Notes:          notes,
	}); err != nil {
		return err
	}

	for _, item := range order.Items {
		if item.ProductID == nil {
			s.logg.Warn(ctx, "order item has no product, skipping stock update")
			continue
		}
		itemCtx := s.logg.WithField(ctx, "product_id", item.ProductID.String())
		product, err := catalogRepo.FindByID(ctx, order.TenantID, *item.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(itemCtx, "product no longer exists, skipping stock update")
			continue
		}
		if err != nil {
			return err
		}
		if product.StockQty < item.Quantity {
			s.logg.Warn(s.logg.WithFields(itemCtx, map[string]any{
				"requested": item.Quantity,
				"available": product.StockQty,
			}), "insufficient stock for paid order")
		}
		if err := catalogRepo.DecrementStock(ctx, order.TenantID, product.ID, item.Quantity); err != nil {
			return err
		}
	}

	pi := ""
	if paymentIntentID != nil {
		pi = *paymentIntentID
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		TenantID:      order.TenantID,
		Actor:         &outbox.ActorRef{ID: webhookActorID, Name: webhookActorName, Type: enums.ActorTypeWebhook},
		OccurredAt:    paidAt,
		Data: payloads.OrderPaidEvent{
			OrderID:         order.ID,
			TenantID:        order.TenantID,
			OrderNumber:     order.OrderNumber,
			Total:           order.Total,
			PaymentIntentID: pi,
			PaidAt:          paidAt,
		},
	})
}

// afterCommit runs the best-effort follow-ups. Failures are logged only.
func (s *Service) afterCommit(ctx context.Context, order models.Order) {
	if order.DiscountCodeID != nil {
		if err := s.discounts.IncrementUsage(ctx, *order.DiscountCodeID); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "discount_code_id", order.DiscountCodeID.String()), "failed to increment discount usage", err)
		}
	}
	if s.notifier != nil {
		s.notifier.NotifyOrderPaid(ctx, order)
	}
}

func (s *Service) record(ctx context.Context, outcome Outcome, err error) (Outcome, error) {
	s.metrics.IncOutcome(string(outcome))
	ctx = s.logg.WithField(ctx, "outcome", string(outcome))
	switch outcome {
	case OutcomeSettled:
		s.logg.Info(ctx, "order settled")
	case OutcomeFailed:
		s.logg.Error(ctx, "payment settlement failed", err)
	case OutcomeTenantMismatch:
		// already logged with the offending tenant id
	default:
		s.logg.Info(ctx, "payment event acknowledged")
	}
	return outcome, err
}

func paymentIntentOf(session *stripe.CheckoutSession) *string {
	if session.PaymentIntent == nil || session.PaymentIntent.ID == "" {
		return nil
	}
	id := session.PaymentIntent.ID
	return &id
}
