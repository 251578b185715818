package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/invoice"
)

type orderLoader interface {
	FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// PDFInvoices renders invoices for paid orders with pkg/invoice.
type PDFInvoices struct {
	orders  orderLoader
	tenants tenantLookup
	issuer  invoice.Issuer
	vatRate decimal.Decimal
}

type PDFInvoicesParams struct {
	Orders  orderLoader
	Tenants tenantLookup
	Issuer  invoice.Issuer
	VATRate decimal.Decimal
}

func NewPDFInvoices(params PDFInvoicesParams) (*PDFInvoices, error) {
	if params.Orders == nil {
		return nil, errors.New("order loader required")
	}
	return &PDFInvoices{
		orders:  params.Orders,
		tenants: params.Tenants,
		issuer:  params.Issuer,
		vatRate: params.VATRate,
	}, nil
}

func (p *PDFInvoices) GenerateInvoiceForOrder(ctx context.Context, orderID uuid.UUID) ([]byte, error) {
	order, err := p.orders.FindByIDAnyTenant(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order for invoice: %w", err)
	}
	if order.PaidAt == nil {
		return nil, fmt.Errorf("order %s is not paid", order.OrderNumber)
	}

	issuer := p.issuer
	if p.tenants != nil {
		if tenant, err := p.tenants.FindByID(ctx, order.TenantID); err == nil {
			issuer.Name = tenant.Name
			if tenant.Config != nil {
				if tenant.Config.DisplayName != "" {
					issuer.Name = tenant.Config.DisplayName
				}
				if tenant.Config.ContactEmail != nil {
					issuer.Email = *tenant.Config.ContactEmail
				}
			}
		}
	}

	inv := invoice.Invoice{
		Number:       order.OrderNumber,
		IssuedAt:     *order.PaidAt,
		Issuer:       issuer,
		CustomerName: order.CustomerName,
		CustomerMail: order.CustomerEmail,
		Subtotal:     order.Subtotal,
		Discount:     order.DiscountAmount,
		Shipping:     order.ShippingAmount,
		VATRate:      p.vatRate,
		VATAmount:    order.TaxAmount,
		Total:        order.Total,
	}
	if addr := order.ShippingAddress; addr != nil {
		inv.Address = []string{addr.Line1, addr.Line2, addr.PostalCode + " " + addr.City, addr.Country}
	}
	for _, item := range order.Items {
		inv.Lines = append(inv.Lines, invoice.Line{
			Description: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.TotalPrice,
		})
	}
	return invoice.Render(inv)
}
