package domain

// Operator is a comparison verb attached to a recipe condition.
type Operator string

const (
	OperatorEqual       Operator = "="
	OperatorNotEqual    Operator = "!="
	OperatorLike        Operator = "like"
	OperatorNotLike     Operator = "notlike"
	OperatorApproximate Operator = "approx"
	OperatorGreater     Operator = ">"
	OperatorLess        Operator = "<"
)

// Condition is a single property comparison inside a recipe. Value stays
// untyped until evaluation because the same property can carry strings,
// numbers or booleans depending on the recipe author's intent.
type Condition struct {
	Property string   `json:"property" yaml:"property"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}
