package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders, their items and status history.
// Methods taking a tenantID never return rows of another tenant.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	SetSessionID(ctx context.Context, tenantID, id uuid.UUID, sessionID string) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error)
	FindBySession(ctx context.Context, tenantID uuid.UUID, sessionID string) (*models.Order, error)
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Order, error)
	ListByEmail(ctx context.Context, tenantID uuid.UUID, email string) ([]models.Order, error)
	ListByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.Order, error)
	List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderPage, error)
	UpdateFields(ctx context.Context, tenantID, id uuid.UUID, fields map[string]any) error
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID *string, paidAt time.Time) (bool, error)
	AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)

	// Tenant-agnostic lookups for platform routes and webhook settlement.
	FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindBySessionAnyTenant(ctx context.Context, sessionID string) (*models.Order, error)
}

// ListFilters narrows the admin order list.
type ListFilters struct {
	Status *enums.OrderStatus
	Search string
}

// OrderPage is one cursor page of orders, newest first.
type OrderPage struct {
	Orders     []models.Order
	NextCursor string
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// Delete removes a PENDING order and its items.
func (r *repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	res := db.Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&models.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) SetSessionID(ctx context.Context, tenantID, id uuid.UUID, sessionID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("stripe_session_id", sessionID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	return r.first(ctx, "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByIDForUpdate loads the order and, on postgres, holds its row lock until
// the surrounding transaction ends. It must run inside WithTx.
func (r *repository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	db := r.db
	if db.Dialector != nil && db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return (&repository{db: db}).first(ctx, "tenant_id = ? AND id = ?", tenantID, id)
}

func (r *repository) FindBySession(ctx context.Context, tenantID uuid.UUID, sessionID string) (*models.Order, error) {
	return r.first(ctx, "tenant_id = ? AND stripe_session_id = ?", tenantID, sessionID)
}

func (r *repository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Order, error) {
	return r.first(ctx, "tenant_id = ? AND order_number = ?", tenantID, number)
}

func (r *repository) FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindBySessionAnyTenant(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.first(ctx, "stripe_session_id = ?", sessionID)
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where(query, args...).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByEmail(ctx context.Context, tenantID uuid.UUID, email string) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND LOWER(customer_email) = ?", tenantID, strings.ToLower(strings.TrimSpace(email))).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ?", tenantID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(order_number) LIKE ? OR LOWER(customer_email) LIKE ? OR LOWER(customer_name) LIKE ?)", like, like, like)
	}

	var rows []models.Order
	if err := pagination.Keyset(query, cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	page := &OrderPage{}
	page.Orders, page.NextCursor = pagination.Trim(rows, params.Limit, func(o *models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, nil
}

// UpdateFields writes only the given columns, so a concurrent settlement is
// never overwritten by values the caller did not change.
func (r *repository) UpdateFields(ctx context.Context, tenantID, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkPaid moves a PENDING order to PAID. It reports false when the order was
// not PENDING, which callers treat as an already-settled duplicate.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID *string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":                   enums.OrderStatusPaid,
			"stripe_payment_intent_id": paymentIntentID,
			"paid_at":                  paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	return rows, err
}
