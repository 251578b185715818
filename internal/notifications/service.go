package notifications

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	taskOrderConfirmation = "order_confirmation_email"
	taskStatusUpdate      = "order_status_email"

	trackingURLBase = "https://track.bpost.cloud/btr/web/#/search"
)

// Notifier queues customer notifications after a transaction commits. It
// never reports failure to the caller.
type Notifier interface {
	NotifyOrderPaid(ctx context.Context, order models.Order)
	NotifyStatusChanged(ctx context.Context, update StatusUpdate)
}

type submitter interface {
	Submit(ctx context.Context, name string, fn Task) bool
}

type tenantLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type ServiceParams struct {
	Dispatcher *Dispatcher
	Mailer     Mailer
	Invoices   InvoiceGenerator
	Tenants    tenantLookup
	Logger     *logger.Logger
}

type service struct {
	dispatch submitter
	mailer   Mailer
	invoices InvoiceGenerator
	tenants  tenantLookup
	logg     *logger.Logger
}

// NewService wires the notifier. Invoices and Tenants are optional.
func NewService(params ServiceParams) (Notifier, error) {
	if params.Dispatcher == nil {
		return nil, errors.New("dispatcher required")
	}
	return newService(params.Dispatcher, params)
}

func newService(dispatch submitter, params ServiceParams) (*service, error) {
	if params.Mailer == nil {
		return nil, errors.New("mailer required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		dispatch: dispatch,
		mailer:   params.Mailer,
		invoices: params.Invoices,
		tenants:  params.Tenants,
		logg:     params.Logger,
	}, nil
}

func (s *service) NotifyOrderPaid(ctx context.Context, order models.Order) {
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if strings.TrimSpace(order.CustomerEmail) == "" {
		s.logg.Warn(ctx, "order has no customer email; confirmation skipped")
		return
	}
	msg := OrderConfirmation{
		TenantID:        order.TenantID,
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		To:              order.CustomerEmail,
		CustomerName:    order.CustomerName,
		Subtotal:        order.Subtotal,
		DiscountAmount:  order.DiscountAmount,
		ShippingAmount:  order.ShippingAmount,
		Total:           order.Total,
		ShippingAddress: order.ShippingAddress,
		FulfillmentType: order.FulfillmentType,
	}
	for _, item := range order.Items {
		msg.Items = append(msg.Items, ConfirmationItem{
			Name:       item.ProductName,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		})
	}

	s.dispatch.Submit(ctx, taskOrderConfirmation, func(ctx context.Context) error {
		msg.Shop = s.shop(ctx, msg.TenantID)
		if s.invoices != nil {
			pdf, err := s.invoices.GenerateInvoiceForOrder(ctx, msg.OrderID)
			if err != nil {
				s.logg.Error(ctx, "invoice generation failed; sending confirmation without attachment", err)
			} else {
				msg.InvoicePDF = pdf
				msg.InvoiceName = "factuur-" + msg.OrderNumber + ".pdf"
			}
		}
		if err := s.mailer.SendOrderConfirmation(ctx, msg); err != nil {
			return err
		}
		s.logg.Info(ctx, "order confirmation sent")
		return nil
	})
}

func (s *service) NotifyStatusChanged(ctx context.Context, update StatusUpdate) {
	ctx = s.logg.WithOrderID(ctx, update.OrderID.String())
	if strings.TrimSpace(update.To) == "" {
		s.logg.Warn(ctx, "order has no customer email; status update skipped")
		return
	}
	if update.TrackingNumber != "" && update.TrackingURL == "" {
		update.TrackingURL = TrackingURL(update.TrackingNumber)
	}
	s.dispatch.Submit(ctx, taskStatusUpdate, func(ctx context.Context) error {
		update.Shop = s.shop(ctx, update.TenantID)
		if err := s.mailer.SendOrderStatusUpdate(ctx, update); err != nil {
			return err
		}
		s.logg.Info(s.logg.WithField(ctx, "status", update.NewStatus.String()), "order status email sent")
		return nil
	})
}

func (s *service) shop(ctx context.Context, tenantID uuid.UUID) Shop {
	if s.tenants == nil {
		return Shop{}
	}
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		s.logg.Warn(ctx, "tenant lookup for email branding failed")
		return Shop{}
	}
	shop := Shop{Name: tenant.Name}
	if cfg := tenant.Config; cfg != nil {
		if cfg.DisplayName != "" {
			shop.Name = cfg.DisplayName
		}
		if cfg.ContactEmail != nil {
			shop.ContactEmail = *cfg.ContactEmail
		}
		if cfg.PrimaryColor != nil {
			shop.PrimaryColor = *cfg.PrimaryColor
		}
	}
	return shop
}

// TrackingURL links a bpost tracking number to the public tracking page.
func TrackingURL(trackingNumber string) string {
	return trackingURLBase + "?itemCode=" + url.QueryEscape(trackingNumber) + "&lang=nl"
}
