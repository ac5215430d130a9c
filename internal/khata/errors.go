package khata

import "errors"

// ErrInsufficientStock is returned by SellStock when the requested amount
// exceeds the current total stock. The message is surfaced to clients as-is.
var ErrInsufficientStock = errors.New("Not enough stock!")

// ValidationError reports a missing date or a malformed amount. Operations
// that return one have not touched the store.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErr(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
