// Package weather fetches condition summaries bracketing an activity from the
// upstream weather service.
package weather

// Point is one weather snapshot keyed by attribute name (temperature,
// humidity, wind, ...). Values arrive either as numbers or as unit-suffixed
// strings such as "22°C"; callers normalise before comparing.
type Point map[string]any

// Attribute looks up a named attribute on the snapshot.
func (p Point) Attribute(name string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p[name]
	return v, ok
}

// Summary holds the snapshots taken at the start and end of an activity.
// Either side may be nil when the provider has no sample for that moment.
type Summary struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Empty reports whether the summary carries no usable snapshot at all.
func (s *Summary) Empty() bool {
	return s == nil || (len(s.Start) == 0 && len(s.End) == 0)
}
