package commission

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("commission configuration error")

// ConfigurationError reports a required upstream input that is missing or zero.
// It is fatal to the write that triggered the calculation.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

var (
	errNoPaymentCount = &ConfigurationError{Field: "number_of_payments", Reason: "deal has no payment count configured"}
	errNoFee          = &ConfigurationError{Field: "fee", Reason: "deal has no fee configured"}
)

// ErrNegativePercent rejects a percentage below zero. Values above 100 are
// normalized, not rejected.
var ErrNegativePercent = errors.New("Percentage cannot be negative")
