package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nieko-nera/core/internal/domain"
)

// The accessor table is the single routing point from property names to
// typed getters, checker families and the operators each family defines.
// Centralising operator legality here keeps the checkers free of
// per-family whitelists.

type family int

const (
	familyText family = iota
	familyBoolean
	familyNumber
	familyLocation
	familyTimestamp
	familyCategory
	familyRecords
	familyWeekday
	familyWeather
	familyMusic
	familyFirstOfDay
)

func (f family) String() string {
	switch f {
	case familyText:
		return "text"
	case familyBoolean:
		return "boolean"
	case familyNumber:
		return "number"
	case familyLocation:
		return "location"
	case familyTimestamp:
		return "timestamp"
	case familyCategory:
		return "category"
	case familyRecords:
		return "records"
	case familyWeekday:
		return "weekday"
	case familyWeather:
		return "weather"
	case familyMusic:
		return "music"
	case familyFirstOfDay:
		return "first_of_day"
	default:
		return "unknown"
	}
}

type timeKind int

const (
	timeKindNone timeKind = iota
	timeKindClock
	timeKindDuration
	timeKindPace
)

// accessor binds one property to its family, legal operators and, for
// synchronous families, a getter returning (value, present).
type accessor struct {
	family    family
	kind      timeKind
	operators []domain.Operator
	value     func(*domain.Activity) (any, bool)
}

func (a accessor) allows(op domain.Operator) bool {
	for _, candidate := range a.operators {
		if candidate == op {
			return true
		}
	}
	return false
}

var (
	textOps       = []domain.Operator{domain.OperatorEqual, domain.OperatorLike, domain.OperatorNotLike}
	numericOps    = []domain.Operator{domain.OperatorEqual, domain.OperatorLike, domain.OperatorApproximate, domain.OperatorGreater, domain.OperatorLess}
	proximityOps  = []domain.Operator{domain.OperatorEqual, domain.OperatorApproximate, domain.OperatorLike}
	membershipOps = []domain.Operator{domain.OperatorEqual, domain.OperatorNotEqual}
	equalOnly     = []domain.Operator{domain.OperatorEqual}
)

var accessors = map[string]accessor{
	"name":        {family: familyText, operators: textOps, value: textValue(func(a *domain.Activity) string { return a.Name })},
	"description": {family: familyText, operators: textOps, value: textValue(func(a *domain.Activity) string { return a.Description })},

	"commute": {family: familyBoolean, operators: equalOnly, value: boolValue(func(a *domain.Activity) bool { return a.Commute })},
	"trainer": {family: familyBoolean, operators: equalOnly, value: boolValue(func(a *domain.Activity) bool { return a.Trainer })},

	"distance":      {family: familyNumber, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.Distance })},
	"elevationGain": {family: familyNumber, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.ElevationGain })},
	"speedAvg":      {family: familyNumber, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.SpeedAvg })},
	"speedMax":      {family: familyNumber, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.SpeedMax })},
	"wattsAvg":      {family: familyNumber, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.WattsAvg })},
	"wattsMax":      {family: familyNumber, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.WattsMax })},
	"hrAvg":         {family: familyNumber, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.HeartrateAvg })},
	"hrMax":         {family: familyNumber, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.HeartrateMax })},
	"cadenceAvg":    {family: familyNumber, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.CadenceAvg })},
	"calories":      {family: familyNumber, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.Calories })},

	"locationStart": {family: familyLocation, operators: proximityOps, value: startPoints},
	"locationEnd":   {family: familyLocation, operators: proximityOps, value: endPoints},
	"polyline":      {family: familyLocation, operators: proximityOps, value: polylinePoints},

	"dateStart":  {family: familyTimestamp, kind: timeKindClock, operators: numericOps, value: clockValue(func(a *domain.Activity) (float64, bool) { return clockSeconds(a, false) })},
	"dateEnd":    {family: familyTimestamp, kind: timeKindClock, operators: numericOps, value: clockValue(func(a *domain.Activity) (float64, bool) { return clockSeconds(a, true) })},
	"movingTime": {family: familyTimestamp, kind: timeKindDuration, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.MovingTime })},
	"totalTime":  {family: familyTimestamp, kind: timeKindDuration, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.TotalTime })},
	"paceAvg":    {family: familyTimestamp, kind: timeKindPace, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.PaceAvg })},
	"paceMax":    {family: familyTimestamp, kind: timeKindPace, operators: numericOps, value: numberValue(func(a *domain.Activity) float64 { return a.PaceMax })},

	"sportType": {family: familyCategory, operators: membershipOps, value: categoryValue(func(a *domain.Activity) string { return a.SportType })},
	"gear":      {family: familyCategory, operators: membershipOps, value: categoryValue(func(a *domain.Activity) string { return a.Gear })},

	"newRecords": {family: familyRecords, operators: numericOps, value: func(a *domain.Activity) (any, bool) { return a.NewRecords, true }},

	"weekday": {family: familyWeekday, operators: equalOnly},

	"music.track": {family: familyMusic, operators: textOps},

	"firstOfDay":           {family: familyFirstOfDay, operators: membershipOps},
	"firstOfDay.sameSport": {family: familyFirstOfDay, operators: membershipOps},
}

const weatherPrefix = "weather."

// accessorFor resolves a property name to its accessor. Weather properties
// are open-ended paths whose second segment names the attribute to compare.
func accessorFor(property string) (accessor, string, error) {
	if acc, ok := accessors[property]; ok {
		return acc, "", nil
	}
	if attribute, ok := strings.CutPrefix(property, weatherPrefix); ok && attribute != "" {
		return accessor{family: familyWeather, operators: numericOps}, attribute, nil
	}
	return accessor{}, "", fmt.Errorf("property %q: %w", property, ErrUnknownProperty)
}

func textValue(get func(*domain.Activity) string) func(*domain.Activity) (any, bool) {
	return func(a *domain.Activity) (any, bool) {
		s := get(a)
		return s, s != ""
	}
}

func boolValue(get func(*domain.Activity) bool) func(*domain.Activity) (any, bool) {
	return func(a *domain.Activity) (any, bool) {
		return get(a), true
	}
}

// numberValue treats a zero metric as absent: a rule referencing a metric
// the activity never recorded does not match.
func numberValue(get func(*domain.Activity) float64) func(*domain.Activity) (any, bool) {
	return func(a *domain.Activity) (any, bool) {
		v := get(a)
		return v, v != 0
	}
}

// categoryValue never reports absence; the category checker gives NotEqual
// its "no such attribute" meaning.
func categoryValue(get func(*domain.Activity) string) func(*domain.Activity) (any, bool) {
	return func(a *domain.Activity) (any, bool) {
		return get(a), true
	}
}

func clockValue(get func(*domain.Activity) (float64, bool)) func(*domain.Activity) (any, bool) {
	return func(a *domain.Activity) (any, bool) {
		v, ok := get(a)
		return v, ok
	}
}

func startPoints(a *domain.Activity) (any, bool) {
	if !a.HasLocation() {
		return nil, false
	}
	return []domain.Coordinates{*a.LocationStart}, true
}

// endPoints falls back to the last polyline point when the recorded end
// coordinate is missing.
func endPoints(a *domain.Activity) (any, bool) {
	if a.LocationEnd != nil && (a.LocationEnd.Lat != 0 || a.LocationEnd.Lon != 0) {
		return []domain.Coordinates{*a.LocationEnd}, true
	}
	if pts := decodePolyline(a.Polyline); len(pts) > 0 {
		return []domain.Coordinates{pts[len(pts)-1]}, true
	}
	return nil, false
}

func polylinePoints(a *domain.Activity) (any, bool) {
	pts := decodePolyline(a.Polyline)
	if len(pts) == 0 {
		return nil, false
	}
	return pts, true
}

// PropertyInfo describes one supported condition property for recipe
// authoring surfaces.
type PropertyInfo struct {
	Name      string            `json:"name"`
	Family    string            `json:"family"`
	Operators []domain.Operator `json:"operators"`
}

// Properties lists every supported property in lexical order. Weather is
// reported once as a path template since its attribute set is open-ended.
func Properties() []PropertyInfo {
	out := make([]PropertyInfo, 0, len(accessors)+1)
	for name, acc := range accessors {
		out = append(out, PropertyInfo{
			Name:      name,
			Family:    acc.family.String(),
			Operators: append([]domain.Operator(nil), acc.operators...),
		})
	}
	out = append(out, PropertyInfo{
		Name:      weatherPrefix + "<attribute>",
		Family:    familyWeather.String(),
		Operators: append([]domain.Operator(nil), numericOps...),
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
