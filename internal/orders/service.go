package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const (
	defaultActorID   = "admin"
	defaultActorName = "Admin"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type domainLookup interface {
	GetPrimaryDomain(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// Service exposes order reads and administrative fulfillment. All methods
// except ResolveSession are scoped to one tenant.
type Service interface {
	GetBySession(ctx context.Context, tenantID uuid.UUID, sessionID string) (*OrderDTO, error)
	GetByID(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderDTO, error)
	GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*TrackingDTO, error)
	ListByEmail(ctx context.Context, tenantID uuid.UUID, email string) ([]OrderDTO, error)
	List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderListDTO, error)
	History(ctx context.Context, tenantID, orderID uuid.UUID) ([]HistoryDTO, error)
	Update(ctx context.Context, tenantID, orderID uuid.UUID, input UpdateInput, actor Actor) (*OrderDTO, error)
	BulkUpdateStatus(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, status string, actor Actor) (*BulkResult, error)
	BulkLabels(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (*LabelsDTO, error)
	ResolveSession(ctx context.Context, sessionID string) (*SessionResolution, error)
}

type ServiceParams struct {
	Repository Repository
	DB         txRunner
	Outbox     outbox.Emitter
	Notifier   notifications.Notifier
	Domains    domainLookup
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo     Repository
	db       txRunner
	outbox   outbox.Emitter
	notifier notifications.Notifier
	domains  domainLookup
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the order service. Notifier and Domains are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repository,
		db:       params.DB,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		domains:  params.Domains,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) GetBySession(ctx context.Context, tenantID uuid.UUID, sessionID string) (*OrderDTO, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	order, err := s.repo.FindBySession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, notFoundOr(err, "load order by session")
	}
	dto := ToOrderDTO(order)
	return &dto, nil
}

func (s *service) GetByID(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	dto := ToOrderDTO(order)
	return &dto, nil
}

func (s *service) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*TrackingDTO, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	order, err := s.repo.FindByNumber(ctx, tenantID, number)
	if err != nil {
		return nil, notFoundOr(err, "load order by number")
	}
	dto := toTrackingDTO(order)
	return &dto, nil
}

func (s *service) ListByEmail(ctx context.Context, tenantID uuid.UUID, email string) ([]OrderDTO, error) {
	if strings.TrimSpace(email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	rows, err := s.repo.ListByEmail(ctx, tenantID, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders by email")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ToOrderDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderListDTO, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.List(ctx, tenantID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := &OrderListDTO{Orders: make([]OrderDTO, 0, len(page.Orders)), NextCursor: page.NextCursor}
	for i := range page.Orders {
		out.Orders = append(out.Orders, ToOrderDTO(&page.Orders[i]))
	}
	return out, nil
}

func (s *service) History(ctx context.Context, tenantID, orderID uuid.UUID) ([]HistoryDTO, error) {
	if _, err := s.repo.FindByID(ctx, tenantID, orderID); err != nil {
		return nil, notFoundOr(err, "load order")
	}
	rows, err := s.repo.History(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order history")
	}
	out := make([]HistoryDTO, 0, len(rows))
	for _, h := range rows {
		out = append(out, toHistoryDTO(h))
	}
	return out, nil
}

// Update applies an admin edit. Transitions are not restricted; a changed
// status is recorded in the history and announced to the customer after commit.
func (s *service) Update(ctx context.Context, tenantID, orderID uuid.UUID, input UpdateInput, actor Actor) (*OrderDTO, error) {
	var next *enums.OrderStatus
	if input.Status != nil {
		status, err := parseStatus(*input.Status)
		if err != nil {
			return nil, err
		}
		next = &status
	}
	if actor.ID == "" {
		actor.ID = defaultActorID
	}
	if actor.Name == "" {
		actor.Name = defaultActorName
	}

	var (
		order    *models.Order
		previous enums.OrderStatus
		changed  bool
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.FindByIDForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		previous = order.Status
		now := s.now().UTC()

		fields := map[string]any{}
		if next != nil {
			order.Status = *next
			fields["status"] = order.Status
			for column, at := range applyMilestone(order, *next, now) {
				fields[column] = at
			}
		}
		if input.AdminNotes != nil {
			order.AdminNotes = optionalText(*input.AdminNotes)
			fields["admin_notes"] = order.AdminNotes
		}
		if input.TrackingNumber != nil {
			order.TrackingNumber = optionalText(*input.TrackingNumber)
			fields["tracking_number"] = order.TrackingNumber
		}
		if input.CancellationReason != nil {
			order.CancellationReason = optionalText(*input.CancellationReason)
			fields["cancellation_reason"] = order.CancellationReason
		}
		if err := repo.UpdateFields(ctx, tenantID, order.ID, fields); err != nil {
			return notFoundOr(err, "save order")
		}

		changed = next != nil && *next != previous
		if !changed {
			return nil
		}
		entry := &models.OrderStatusHistory{
			OrderID:        order.ID,
			PreviousStatus: previous,
			NewStatus:      order.Status,
			ChangedBy:      actor.ID,
			ChangedByName:  actor.Name,
			ChangedByType:  enums.ActorTypeAdmin,
			Notes:          historyNotes(input),
		}
		if err := repo.AppendHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append order history")
		}
		return s.emitStatusChanged(ctx, tx, order, previous, actor)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":        order.ID.String(),
		"previous_status": previous.String(),
		"status":          order.Status.String(),
	})
	if changed {
		s.logg.Info(logCtx, "order status updated")
		if order.Status.Notifies() && s.notifier != nil {
			s.notifier.NotifyStatusChanged(ctx, notifications.StatusUpdate{
				TenantID:           order.TenantID,
				OrderID:            order.ID,
				OrderNumber:        order.OrderNumber,
				To:                 order.CustomerEmail,
				CustomerName:       order.CustomerName,
				NewStatus:          order.Status,
				TrackingNumber:     deref(order.TrackingNumber),
				CancellationReason: deref(order.CancellationReason),
			})
		}
	}

	dto := ToOrderDTO(order)
	return &dto, nil
}

func (s *service) BulkUpdateStatus(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, status string, actor Actor) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ids are required")
	}
	if _, err := parseStatus(status); err != nil {
		return nil, err
	}

	result := &BulkResult{Success: []uuid.UUID{}, Failed: []BulkFailure{}}
	for _, id := range ids {
		input := UpdateInput{Status: &status}
		if _, err := s.Update(ctx, tenantID, id, input, actor); err != nil {
			msg := err.Error()
			if typed := pkgerrors.As(err); typed != nil {
				msg = typed.Message()
			}
			result.Failed = append(result.Failed, BulkFailure{ID: id, Error: msg})
			continue
		}
		result.Success = append(result.Success, id)
	}
	return result, nil
}

func (s *service) BulkLabels(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (*LabelsDTO, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ids are required")
	}
	rows, err := s.repo.ListByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load orders for labels")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no orders found")
	}
	out := &LabelsDTO{Labels: make([]LabelDTO, 0, len(rows)), Count: len(rows)}
	for i := range rows {
		out.Labels = append(out.Labels, toLabelDTO(&rows[i]))
	}
	return out, nil
}

// ResolveSession maps a payment session to its order and shop without a
// tenant context, for the shared checkout success page.
func (s *service) ResolveSession(ctx context.Context, sessionID string) (*SessionResolution, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	order, err := s.repo.FindBySessionAnyTenant(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, "resolve session")
	}
	res := &SessionResolution{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		Status:       order.Status,
		CustomerName: order.CustomerName,
		Total:        order.Total,
		TenantID:     order.TenantID,
	}
	if s.domains != nil {
		host, err := s.domains.GetPrimaryDomain(ctx, order.TenantID)
		if err != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "primary domain lookup failed")
		} else if host != "" {
			res.TenantDomain = &host
		}
	}
	return res, nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, previous enums.OrderStatus, actor Actor) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		TenantID:      order.TenantID,
		Actor:         &outbox.ActorRef{ID: actor.ID, Name: actor.Name, Type: enums.ActorTypeAdmin},
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			TenantID:       order.TenantID,
			OrderNumber:    order.OrderNumber,
			PreviousStatus: previous,
			NewStatus:      order.Status,
			TrackingNumber: order.TrackingNumber,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order_status_changed")
	}
	return nil
}

func parseStatus(raw string) (enums.OrderStatus, error) {
	status, err := enums.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
			WithDetails(map[string]any{"validStatuses": enums.OrderStatuses()})
	}
	return status, nil
}

// applyMilestone stamps the timestamp for status unless it is already set and
// returns the column it stamped, if any.
func applyMilestone(order *models.Order, status enums.OrderStatus, now time.Time) map[string]time.Time {
	var (
		field  **time.Time
		column string
	)
	switch status {
	case enums.OrderStatusPaid:
		field, column = &order.PaidAt, "paid_at"
	case enums.OrderStatusShipped:
		field, column = &order.ShippedAt, "shipped_at"
	case enums.OrderStatusDelivered:
		field, column = &order.DeliveredAt, "delivered_at"
	default:
		return nil
	}
	if *field != nil {
		return nil
	}
	*field = &now
	return map[string]time.Time{column: now}
}

func historyNotes(input UpdateInput) *string {
	if input.CancellationReason != nil && strings.TrimSpace(*input.CancellationReason) != "" {
		note := strings.TrimSpace(*input.CancellationReason)
		return &note
	}
	if input.TrackingNumber != nil && strings.TrimSpace(*input.TrackingNumber) != "" {
		note := "Tracking: " + strings.TrimSpace(*input.TrackingNumber)
		return &note
	}
	return nil
}

func optionalText(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
