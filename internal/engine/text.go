package engine

import (
	"strings"

	"github.com/nieko-nera/core/internal/domain"
)

// checkText compares a textual activity field against the condition value.
// Matching is case-insensitive; Like means substring containment.
func checkText(field string, cond domain.Condition) (bool, error) {
	value := strings.ToLower(strings.TrimSpace(asString(cond.Value)))
	field = strings.ToLower(field)
	switch cond.Operator {
	case domain.OperatorEqual:
		return field == value, nil
	case domain.OperatorLike:
		return strings.Contains(field, value), nil
	case domain.OperatorNotLike:
		return !strings.Contains(field, value), nil
	default:
		return false, operatorError(cond)
	}
}

// checkBoolean treats an absent flag as an explicit false, so a condition
// expecting false matches activities that never set the flag.
func checkBoolean(field bool, cond domain.Condition) (bool, error) {
	want, ok := asBool(cond.Value)
	if !ok {
		return false, valueError(cond, "boolean value required")
	}
	return field == want, nil
}

// checkCategory matches a categorical field against a comma-separated
// allow-list. NotEqual also holds when the activity carries no value at all.
func checkCategory(field string, cond domain.Condition) (bool, error) {
	field = strings.TrimSpace(field)
	member := false
	for _, want := range splitList(asString(cond.Value)) {
		if strings.EqualFold(field, want) {
			member = true
			break
		}
	}
	switch cond.Operator {
	case domain.OperatorEqual:
		return field != "" && member, nil
	case domain.OperatorNotEqual:
		return field == "" || !member, nil
	default:
		return false, operatorError(cond)
	}
}
