package pricing

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Source supplies the most recent verified price for a product. The boolean
// reports whether any verified observation exists. Implementations must be
// safe for concurrent use and must not block indefinitely; evaluation treats
// errors and absent prices the same way, as "no price this cycle".
type Source interface {
	CurrentPrice(ctx context.Context, productID string) (decimal.Decimal, bool, error)
}

// FromFloat converts a caller-supplied float into a decimal price. NaN and
// infinities are rejected here so non-finite values cannot enter the
// pipeline.
func FromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Decimal{}, fmt.Errorf("pricing: non-finite price %v", v)
	}
	return decimal.NewFromFloat(v), nil
}
