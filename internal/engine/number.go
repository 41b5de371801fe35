package engine

import (
	"github.com/nieko-nera/core/internal/domain"
)

// checkNumber compares a numeric activity field against the condition value.
// Equality rounds both sides to the nearest integer; Approximate allows 3%
// either side of the condition value and Like 10%.
func checkNumber(field float64, cond domain.Condition) (bool, error) {
	target, ok := asFloat(cond.Value)
	if !ok {
		return false, valueError(cond, "numeric value required")
	}
	switch cond.Operator {
	case domain.OperatorEqual:
		return roundedEqual(field, target), nil
	case domain.OperatorApproximate:
		return withinPercent(field, target, approxTolerance), nil
	case domain.OperatorLike:
		return withinPercent(field, target, likeTolerance), nil
	case domain.OperatorGreater:
		return field > target, nil
	case domain.OperatorLess:
		return field < target, nil
	default:
		return false, operatorError(cond)
	}
}

// checkRecords is boolean-shaped over the broken-records collection. A
// numeric condition value instead compares against the collection length
// with full numeric semantics.
func checkRecords(records []string, cond domain.Condition) (bool, error) {
	if want, ok := asBool(cond.Value); ok {
		if cond.Operator != domain.OperatorEqual {
			return false, operatorError(cond)
		}
		return want == (len(records) > 0), nil
	}
	if _, ok := asFloat(cond.Value); ok {
		return checkNumber(float64(len(records)), cond)
	}
	return false, valueError(cond, "boolean or numeric value required")
}
