package checkout

import (
	"github.com/google/uuid"

	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
)

// StockLine is one cart line to be checked against live stock.
type StockLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// StockSnapshot is the live state of a product read at validation time.
type StockSnapshot struct {
	ProductID uuid.UUID
	Name      string
	Stock     int
	Active    bool
}

// AggregateQuantities sums the requested quantity per product. The returned ids
// keep the order in which products first appear.
func AggregateQuantities(lines []StockLine) ([]uuid.UUID, map[uuid.UUID]int) {
	order := make([]uuid.UUID, 0, len(lines))
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if _, seen := totals[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		totals[line.ProductID] += line.Quantity
	}
	return order, totals
}

// ValidateStock checks every product before anything is written. It returns an
// INSUFFICIENT_STOCK error naming the first product that cannot cover its
// requested quantity. Missing or inactive products count as zero stock.
func ValidateStock(lines []StockLine, live map[uuid.UUID]StockSnapshot) error {
	order, totals := AggregateQuantities(lines)
	for _, productID := range order {
		requested := totals[productID]
		if requested <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart line quantity must be positive")
		}
		snapshot, ok := live[productID]
		available := 0
		name := productID.String()
		if ok {
			name = snapshot.Name
			if snapshot.Active {
				available = snapshot.Stock
			}
		}
		if requested > available {
			return pkgerrors.InsufficientStock(pkgerrors.StockShortfall{
				ProductID:   productID.String(),
				ProductName: name,
				Requested:   requested,
				Available:   available,
			})
		}
	}
	return nil
}
