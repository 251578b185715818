package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Line is one requested product after duplicate ids were merged.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
	Image     *string
}

// MergeLines folds repeated product ids into one line, keeping first-seen
// order and the first non-empty image.
func MergeLines(lines []Line) []Line {
	index := make(map[uuid.UUID]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			if out[i].Image == nil {
				out[i].Image = line.Image
			}
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}

// ProductIDs lists the product ids of lines.
func ProductIDs(lines []Line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// StockViolation describes one line the catalog cannot fulfil.
type StockViolation struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
}

// StockViolations returns every line whose quantity exceeds current stock.
func StockViolations(lines []Line, products map[uuid.UUID]models.Product) []StockViolation {
	var out []StockViolation
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			continue
		}
		if line.Quantity > product.StockQty {
			out = append(out, StockViolation{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.StockQty,
			})
		}
	}
	return out
}

// Subtotal sums live prices times quantities.
func Subtotal(lines []Line, products map[uuid.UUID]models.Product) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(products[line.ProductID].Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}
