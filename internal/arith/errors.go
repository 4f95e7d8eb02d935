package arith

import "errors"

// Failure classes. Every error returned by this package wraps exactly one of
// them, so callers can branch with errors.Is.
var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrInvalidDomain  = errors.New("invalid domain")
)

// Error is a domain failure carrying a human-readable reason.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Kind }

func divisionByZero(reason string) error {
	return &Error{Kind: ErrDivisionByZero, Reason: reason}
}

func invalidDomain(reason string) error {
	return &Error{Kind: ErrInvalidDomain, Reason: reason}
}

// InvalidDomain builds an ErrInvalidDomain failure for checks made outside
// this package (for example result range limits).
func InvalidDomain(reason string) error {
	return invalidDomain(reason)
}
