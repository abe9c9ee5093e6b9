package alert

import (
	"time"

	"github.com/shopspring/decimal"
)

// Alert is a user's standing request to be notified when a product's price
// falls to or below a target.
type Alert struct {
	ID          string
	UserID      string
	ProductID   string
	TargetPrice decimal.Decimal
	Active      bool
	CreatedAt   time.Time
}

// validate checks the structural invariants enforced on insert.
// UserID and ProductID are immutable after creation; TargetPrice may be
// edited later but must stay positive.
func (a Alert) validate() error {
	if a.ID == "" {
		return errMissingField("alert id")
	}
	if a.UserID == "" {
		return errMissingField("user id")
	}
	if a.ProductID == "" {
		return errMissingField("product id")
	}
	if a.TargetPrice.LessThanOrEqual(decimal.Zero) {
		return &InvalidThresholdError{Price: a.TargetPrice}
	}
	return nil
}
