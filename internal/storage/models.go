package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResultRecord captures one alert evaluation for auditing. CurrentPrice
// is nil when the price source had no usable quote for the product.
type ResultRecord struct {
	ID           int64
	AlertID      string
	ProductID    string
	Triggered    bool
	Debounced    bool
	CurrentPrice *decimal.Decimal
	TargetPrice  decimal.Decimal
	Error        *string
	CheckedAt    time.Time
	CreatedAt    time.Time
}
