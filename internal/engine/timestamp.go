package engine

import (
	"math"
	"strconv"
	"time"

	"github.com/nieko-nera/core/internal/domain"
)

// checkTimestamp compares paces, durations and clock times in seconds.
// Equal, Approximate and Like are absolute buffers sized per value kind;
// GreaterThan and LessThan are strict against the raw value.
func checkTimestamp(field float64, kind timeKind, cond domain.Condition) (bool, error) {
	target, ok := asFloat(cond.Value)
	if !ok {
		return false, valueError(cond, "numeric seconds required")
	}
	switch cond.Operator {
	case domain.OperatorEqual, domain.OperatorApproximate, domain.OperatorLike:
		return math.Abs(field-target) <= timeBuffer(kind, cond.Operator), nil
	case domain.OperatorGreater:
		return field > target, nil
	case domain.OperatorLess:
		return field < target, nil
	default:
		return false, operatorError(cond)
	}
}

// clockSeconds reduces an activity boundary to seconds since the athlete's
// local midnight, applying the recorded UTC offset.
func clockSeconds(a *domain.Activity, end bool) (float64, bool) {
	t := a.DateStart
	if end {
		t = a.DateEnd
	}
	if t.IsZero() {
		return 0, false
	}
	local := t.UTC().Add(time.Duration(a.UTCStartOffset) * time.Minute)
	return float64(local.Hour()*3600 + local.Minute()*60 + local.Second()), true
}

// checkWeekday matches the local start weekday against a comma-separated
// allow-list of day numbers, Sunday being 0.
func checkWeekday(a *domain.Activity, cond domain.Condition) (bool, error) {
	if a.DateStart.IsZero() {
		return false, nil
	}
	day := strconv.Itoa(int(a.LocalStart().Weekday()))
	for _, want := range splitList(asString(cond.Value)) {
		if want == day {
			return true, nil
		}
	}
	return false, nil
}
