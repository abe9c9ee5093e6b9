package alert

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InvalidThresholdError reports a non-positive target price.
type InvalidThresholdError struct {
	Price decimal.Decimal
}

func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("alert: invalid threshold %s, target price must be positive", e.Price)
}

// NotFoundError reports an operation against an unknown alert id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("alert: %s not found", e.ID)
}

// DuplicateError reports an AddAlert id collision.
type DuplicateError struct {
	ID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("alert: %s already exists", e.ID)
}

func errMissingField(field string) error {
	return fmt.Errorf("alert: %s is required", field)
}
