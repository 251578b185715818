package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
)

const defaultPrimaryColor = "#111827"

// EmailMailer renders customer email from the embedded templates and hands
// it to a mailer.Sender.
type EmailMailer struct {
	sender mailer.Sender
}

func NewEmailMailer(sender mailer.Sender) (*EmailMailer, error) {
	if sender == nil {
		return nil, errors.New("mail sender required")
	}
	return &EmailMailer{sender: sender}, nil
}

type confirmationView struct {
	ShopName       string
	PrimaryColor   string
	ContactEmail   string
	CustomerName   string
	OrderNumber    string
	Items          []itemView
	Subtotal       string
	DiscountAmount string
	HasDiscount    bool
	ShippingAmount string
	Total          string
	Pickup         bool
	Address        any
	HasInvoice     bool
}

type itemView struct {
	Name       string
	Quantity   int
	UnitPrice  string
	TotalPrice string
}

func (m *EmailMailer) SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error {
	view := confirmationView{
		ShopName:       shopName(msg.Shop),
		PrimaryColor:   primaryColor(msg.Shop),
		ContactEmail:   msg.Shop.ContactEmail,
		CustomerName:   msg.CustomerName,
		OrderNumber:    msg.OrderNumber,
		Subtotal:       msg.Subtotal.StringFixed(2),
		DiscountAmount: msg.DiscountAmount.StringFixed(2),
		HasDiscount:    msg.DiscountAmount.IsPositive(),
		ShippingAmount: msg.ShippingAmount.StringFixed(2),
		Total:          msg.Total.StringFixed(2),
		Pickup:         msg.FulfillmentType == enums.FulfillmentTypePickup,
		HasInvoice:     len(msg.InvoicePDF) > 0,
	}
	if msg.ShippingAddress != nil {
		view.Address = msg.ShippingAddress
	}
	for _, item := range msg.Items {
		view.Items = append(view.Items, itemView{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.StringFixed(2),
			TotalPrice: item.TotalPrice.StringFixed(2),
		})
	}

	body, err := mailer.Render(mailer.TemplateOrderConfirmation, view)
	if err != nil {
		return err
	}
	out := mailer.Message{
		To:       []string{msg.To},
		FromName: view.ShopName,
		ReplyTo:  msg.Shop.ContactEmail,
		Subject:  fmt.Sprintf("Bevestiging van je bestelling %s", msg.OrderNumber),
		HTMLBody: body,
	}
	if view.HasInvoice {
		out.Attachments = []mailer.Attachment{{
			Filename:    msg.InvoiceName,
			ContentType: "application/pdf",
			Data:        msg.InvoicePDF,
		}}
	}
	return m.sender.Send(ctx, out)
}

type statusView struct {
	ShopName           string
	PrimaryColor       string
	ContactEmail       string
	CustomerName       string
	OrderNumber        string
	Headline           string
	TrackingNumber     string
	TrackingURL        string
	CancellationReason string
}

func (m *EmailMailer) SendOrderStatusUpdate(ctx context.Context, msg StatusUpdate) error {
	subject, headline := statusCopy(msg.NewStatus, msg.OrderNumber)
	view := statusView{
		ShopName:           shopName(msg.Shop),
		PrimaryColor:       primaryColor(msg.Shop),
		ContactEmail:       msg.Shop.ContactEmail,
		CustomerName:       msg.CustomerName,
		OrderNumber:        msg.OrderNumber,
		Headline:           headline,
		TrackingNumber:     msg.TrackingNumber,
		TrackingURL:        msg.TrackingURL,
		CancellationReason: msg.CancellationReason,
	}
	body, err := mailer.Render(mailer.TemplateOrderStatus, view)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, mailer.Message{
		To:       []string{msg.To},
		FromName: view.ShopName,
		ReplyTo:  msg.Shop.ContactEmail,
		Subject:  subject,
		HTMLBody: body,
	})
}

func statusCopy(status enums.OrderStatus, number string) (subject, headline string) {
	switch status {
	case enums.OrderStatusProcessing:
		return "Je bestelling " + number + " wordt verwerkt", "We zijn begonnen met het verwerken van je bestelling."
	case enums.OrderStatusShipped:
		return "Je bestelling " + number + " is verzonden", "Goed nieuws: je bestelling is onderweg."
	case enums.OrderStatusDelivered:
		return "Je bestelling " + number + " is geleverd", "Je bestelling is geleverd. Veel plezier ermee!"
	case enums.OrderStatusCancelled:
		return "Je bestelling " + number + " is geannuleerd", "Je bestelling is geannuleerd."
	default:
		return "Update voor bestelling " + number, "De status van je bestelling is gewijzigd naar " + status.String() + "."
	}
}

func shopName(shop Shop) string {
	if shop.Name != "" {
		return shop.Name
	}
	return "Webshop"
}

func primaryColor(shop Shop) string {
	if shop.PrimaryColor != "" {
		return shop.PrimaryColor
	}
	return defaultPrimaryColor
}
