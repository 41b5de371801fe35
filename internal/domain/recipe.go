package domain

// Recipe groups the conditions that must all hold for an activity to match.
// Conditions are AND-combined; an empty set never matches.
type Recipe struct {
	ID         string      `json:"id" yaml:"id"`
	Title      string      `json:"title" yaml:"title"`
	Disabled   bool        `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
}
