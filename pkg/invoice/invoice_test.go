package invoice

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPDF(t *testing.T) {
	inv := Invoice{
		Number:       "ND-LX1-AB12",
		IssuedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Issuer:       Issuer{Name: "Phone Repair Gent", Address: "Veldstraat 1, 9000 Gent", VATID: "BE0123456789"},
		CustomerName: "Jan Peeters",
		CustomerMail: "jan@example.com",
		Address:      []string{"Kerkstraat 5", "", "9000 Gent", "BE"},
		Lines: []Line{
			{Description: "Screen protector", Quantity: 2, UnitPrice: decimal.RequireFromString("20"), Amount: decimal.RequireFromString("40")},
		},
		Subtotal:  decimal.RequireFromString("40"),
		Shipping:  decimal.RequireFromString("5.95"),
		VATRate:   decimal.NewFromInt(21),
		VATAmount: decimal.RequireFromString("7.97"),
		Total:     decimal.RequireFromString("45.95"),
	}

	pdf, err := Render(inv)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Equal(t, "factuur-ND-LX1-AB12.pdf", inv.Filename())
}

func TestRenderRejectsIncompleteInvoice(t *testing.T) {
	_, err := Render(Invoice{Lines: []Line{{Description: "x"}}})
	assert.Error(t, err)

	_, err = Render(Invoice{Number: "ND-1"})
	assert.Error(t, err)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "€ 5.95", Money(decimal.RequireFromString("5.950")))
	assert.Equal(t, "€ 10.00", Money(decimal.NewFromInt(10)))
}
