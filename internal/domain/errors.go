package domain

import (
	"errors"
	"fmt"
)

// Client-side validation failures. They are raised before any network call.
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrMissingCustomer   = errors.New("customer name is required")
	ErrInvalidPhone      = errors.New("mobile number must be exactly 10 digits")
	ErrNoItems           = errors.New("bill has no items")
	ErrInvalidProduct    = errors.New("invalid product details")
)

// ValidationError attaches a user-facing detail to one of the sentinels above.
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, target := range []error{
		ErrProductNotFound, ErrOutOfStock, ErrInsufficientStock, ErrInvalidQuantity,
		ErrMissingCustomer, ErrInvalidPhone, ErrNoItems, ErrInvalidProduct,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
