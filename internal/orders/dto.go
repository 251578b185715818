package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// DefaultLabelCountry fills label addresses that carry no country.
const DefaultLabelCountry = "BE"

// Actor identifies the admin performing a change.
type Actor struct {
	ID   string
	Name string
}

// UpdateInput carries an admin edit. Nil fields are left unchanged.
type UpdateInput struct {
	Status             *string `json:"status"`
	AdminNotes         *string `json:"adminNotes" validate:"omitempty,max=2000"`
	TrackingNumber     *string `json:"trackingNumber" validate:"omitempty,max=120"`
	CancellationReason *string `json:"cancellationReason" validate:"omitempty,max=500"`
}

type BulkStatusInput struct {
	OrderIDs []uuid.UUID `json:"orderIds"`
	Status   string      `json:"status"`
}

type BulkLabelsInput struct {
	OrderIDs []uuid.UUID `json:"orderIds"`
}

type BulkFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

type BulkResult struct {
	Success []uuid.UUID   `json:"success"`
	Failed  []BulkFailure `json:"failed"`
}

type ItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    *uuid.UUID      `json:"productId,omitempty"`
	ProductName  string          `json:"productName"`
	ProductSKU   *string         `json:"productSku,omitempty"`
	ProductImage *string         `json:"productImage,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

// OrderDTO is the full admin and customer view of an order.
type OrderDTO struct {
	ID                 uuid.UUID             `json:"id"`
	OrderNumber        string                `json:"orderNumber"`
	Status             enums.OrderStatus     `json:"status"`
	FulfillmentType    enums.FulfillmentType `json:"fulfillmentType"`
	Subtotal           decimal.Decimal       `json:"subtotal"`
	TaxAmount          decimal.Decimal       `json:"taxAmount"`
	ShippingAmount     decimal.Decimal       `json:"shippingAmount"`
	DiscountAmount     decimal.Decimal       `json:"discountAmount"`
	Total              decimal.Decimal       `json:"total"`
	CustomerEmail      string                `json:"customerEmail"`
	CustomerName       string                `json:"customerName"`
	CustomerPhone      *string               `json:"customerPhone,omitempty"`
	ShippingAddress    *dbtypes.Address      `json:"shippingAddress,omitempty"`
	DiscountCodeID     *uuid.UUID            `json:"discountCodeId,omitempty"`
	AdminNotes         *string               `json:"adminNotes,omitempty"`
	TrackingNumber     *string               `json:"trackingNumber,omitempty"`
	CancellationReason *string               `json:"cancellationReason,omitempty"`
	PaidAt             *time.Time            `json:"paidAt,omitempty"`
	ShippedAt          *time.Time            `json:"shippedAt,omitempty"`
	DeliveredAt        *time.Time            `json:"deliveredAt,omitempty"`
	Items              []ItemDTO             `json:"items"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

type TrackingItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// TrackingDTO is the public projection served by order tracking.
type TrackingDTO struct {
	OrderNumber     string                `json:"orderNumber"`
	Status          enums.OrderStatus     `json:"status"`
	CustomerName    string                `json:"customerName"`
	Total           decimal.Decimal       `json:"total"`
	FulfillmentType enums.FulfillmentType `json:"fulfillmentType"`
	CreatedAt       time.Time             `json:"createdAt"`
	PaidAt          *time.Time            `json:"paidAt,omitempty"`
	ShippedAt       *time.Time            `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time            `json:"deliveredAt,omitempty"`
	Items           []TrackingItemDTO     `json:"items"`
}

type OrderListDTO struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type HistoryDTO struct {
	ID             uuid.UUID         `json:"id"`
	PreviousStatus enums.OrderStatus `json:"previousStatus"`
	NewStatus      enums.OrderStatus `json:"newStatus"`
	ChangedBy      string            `json:"changedBy"`
	ChangedByName  string            `json:"changedByName"`
	ChangedByType  enums.ActorType   `json:"changedByType"`
	Notes          *string           `json:"notes,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// SessionResolution tells the platform success page which shop to redirect to.
type SessionResolution struct {
	OrderID      uuid.UUID         `json:"orderId"`
	OrderNumber  string            `json:"orderNumber"`
	Status       enums.OrderStatus `json:"status"`
	CustomerName string            `json:"customerName"`
	Total        decimal.Decimal   `json:"total"`
	TenantID     uuid.UUID         `json:"tenantId"`
	TenantDomain *string           `json:"tenantDomain"`
}

type LabelAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type LabelItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type LabelDTO struct {
	OrderNumber     string                `json:"orderNumber"`
	CustomerName    string                `json:"customerName"`
	Address         *LabelAddress         `json:"address"`
	Items           []LabelItem           `json:"items"`
	FulfillmentType enums.FulfillmentType `json:"fulfillmentType"`
}

type LabelsDTO struct {
	Labels []LabelDTO `json:"labels"`
	Count  int        `json:"count"`
}

func toItemDTOs(items []models.OrderItem) []ItemDTO {
	out := make([]ItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, ItemDTO{
			ID:           it.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductSKU:   it.ProductSKU,
			ProductImage: it.ProductImage,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
		})
	}
	return out
}

// ToOrderDTO projects a loaded order.
func ToOrderDTO(o *models.Order) OrderDTO {
	return OrderDTO{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		Status:             o.Status,
		FulfillmentType:    o.FulfillmentType,
		Subtotal:           o.Subtotal,
		TaxAmount:          o.TaxAmount,
		ShippingAmount:     o.ShippingAmount,
		DiscountAmount:     o.DiscountAmount,
		Total:              o.Total,
		CustomerEmail:      o.CustomerEmail,
		CustomerName:       o.CustomerName,
		CustomerPhone:      o.CustomerPhone,
		ShippingAddress:    o.ShippingAddress,
		DiscountCodeID:     o.DiscountCodeID,
		AdminNotes:         o.AdminNotes,
		TrackingNumber:     o.TrackingNumber,
		CancellationReason: o.CancellationReason,
		PaidAt:             o.PaidAt,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
		Items:              toItemDTOs(o.Items),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func toTrackingDTO(o *models.Order) TrackingDTO {
	items := make([]TrackingItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, TrackingItemDTO{
			ID:          it.ID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return TrackingDTO{
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		CustomerName:    o.CustomerName,
		Total:           o.Total,
		FulfillmentType: o.FulfillmentType,
		CreatedAt:       o.CreatedAt,
		PaidAt:          o.PaidAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		Items:           items,
	}
}

func toHistoryDTO(h models.OrderStatusHistory) HistoryDTO {
	return HistoryDTO{
		ID:             h.ID,
		PreviousStatus: h.PreviousStatus,
		NewStatus:      h.NewStatus,
		ChangedBy:      h.ChangedBy,
		ChangedByName:  h.ChangedByName,
		ChangedByType:  h.ChangedByType,
		Notes:          h.Notes,
		CreatedAt:      h.CreatedAt,
	}
}

func toLabelDTO(o *models.Order) LabelDTO {
	label := LabelDTO{
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.CustomerName,
		FulfillmentType: o.FulfillmentType,
		Items:           make([]LabelItem, 0, len(o.Items)),
	}
	if a := o.ShippingAddress; a != nil {
		country := a.Country
		if country == "" {
			country = DefaultLabelCountry
		}
		label.Address = &LabelAddress{
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			PostalCode: a.PostalCode,
			Country:    country,
		}
	}
	for _, it := range o.Items {
		label.Items = append(label.Items, LabelItem{Name: it.ProductName, Quantity: it.Quantity})
	}
	return label
}
