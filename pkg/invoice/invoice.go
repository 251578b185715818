// Package invoice renders order invoices as PDF documents.
package invoice

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

type Issuer struct {
	Name    string
	Address string
	VATID   string
	Email   string
}

type Line struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// Invoice holds the figures printed on a single order invoice. Amounts are
// VAT inclusive; VATAmount is the portion of Total that is tax.
type Invoice struct {
	Number       string
	IssuedAt     time.Time
	Issuer       Issuer
	CustomerName string
	CustomerMail string
	Address      []string
	Lines        []Line
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Shipping     decimal.Decimal
	VATRate      decimal.Decimal
	VATAmount    decimal.Decimal
	Total        decimal.Decimal
}

// Filename is the attachment name used for the invoice.
func (inv Invoice) Filename() string {
	return "factuur-" + inv.Number + ".pdf"
}

// Render produces the PDF bytes for inv.
func Render(inv Invoice) ([]byte, error) {
	if strings.TrimSpace(inv.Number) == "" {
		return nil, errors.New("invoice number is required")
	}
	if len(inv.Lines) == 0 {
		return nil, errors.New("invoice has no lines")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Pagina {current} van {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Factuur", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
	)
	m.AddRow(16,
		col.New(6).Add(
			text.New("Factuurnummer: "+inv.Number, props.Text{Top: 0}),
			text.New("Datum: "+inv.IssuedAt.Format("02-01-2006"), props.Text{Top: 4}),
		),
		col.New(6),
	)

	issuer := col.New(6).Add(
		text.New(inv.Issuer.Name, props.Text{Style: fontstyle.Bold}),
		text.New(inv.Issuer.Address, props.Text{Top: 5}),
	)
	if inv.Issuer.VATID != "" {
		issuer.Add(text.New("BTW: "+inv.Issuer.VATID, props.Text{Top: 10}))
	}
	if inv.Issuer.Email != "" {
		issuer.Add(text.New(inv.Issuer.Email, props.Text{Top: 15}))
	}
	customer := col.New(6).Add(
		text.New("Factuur aan", props.Text{Style: fontstyle.Bold}),
		text.New(inv.CustomerName, props.Text{Top: 5}),
	)
	top := 10.0
	for _, line := range inv.Address {
		if line == "" {
			continue
		}
		customer.Add(text.New(line, props.Text{Top: top}))
		top += 4
	}
	if inv.CustomerMail != "" {
		customer.Add(text.New(inv.CustomerMail, props.Text{Top: top}))
	}
	m.AddRow(35, issuer, customer)

	m.AddRow(10,
		text.NewCol(6, "Omschrijving", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Aantal", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Prijs", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Bedrag", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, line := range inv.Lines {
		m.AddRow(8,
			text.NewCol(6, line.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", line.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, Money(line.UnitPrice), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, Money(line.Amount), props.Text{Size: 9, Align: align.Right}),
		)
	}

	totalRow := func(label, value string, style fontstyle.Type) {
		m.AddRow(8,
			col.New(7),
			text.NewCol(3, label, props.Text{Size: 9, Style: style}),
			text.NewCol(2, value, props.Text{Size: 9, Style: style, Align: align.Right}),
		)
	}
	totalRow("Subtotaal", Money(inv.Subtotal), fontstyle.Normal)
	if inv.Discount.IsPositive() {
		totalRow("Korting", "-"+Money(inv.Discount), fontstyle.Normal)
	}
	totalRow("Verzending", Money(inv.Shipping), fontstyle.Normal)
	totalRow(fmt.Sprintf("Inbegrepen BTW (%s%%)", inv.VATRate.String()), Money(inv.VATAmount), fontstyle.Normal)
	totalRow("Totaal", Money(inv.Total), fontstyle.Bold)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

// Money formats an amount in euros with two decimals.
func Money(d decimal.Decimal) string {
	return "€ " + d.StringFixed(2)
}
