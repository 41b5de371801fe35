package engine

import (
	"errors"
	"fmt"

	"github.com/nieko-nera/core/internal/domain"
)

var (
	// ErrUnknownProperty is returned when a condition names a property no
	// accessor is registered for.
	ErrUnknownProperty = errors.New("unknown condition property")
	// ErrUnsupportedOperator is returned when an operator is applied to a
	// property family that does not define it.
	ErrUnsupportedOperator = errors.New("operator not supported for property")
	// ErrInvalidConditionValue is returned when a condition value cannot be
	// parsed into the shape its property family compares.
	ErrInvalidConditionValue = errors.New("invalid condition value")
)

func operatorError(cond domain.Condition) error {
	return fmt.Errorf("property %q with operator %q: %w", cond.Property, cond.Operator, ErrUnsupportedOperator)
}

func valueError(cond domain.Condition, reason string) error {
	return fmt.Errorf("property %q: %s: %w", cond.Property, reason, ErrInvalidConditionValue)
}
