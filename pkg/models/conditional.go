package models

// Operator is a comparison used by a condition rule.
type Operator string

const (
	OperatorEq     Operator = "eq"
	OperatorNe     Operator = "ne"
	OperatorGt     Operator = "gt"
	OperatorGte    Operator = "gte"
	OperatorLt     Operator = "lt"
	OperatorLte    Operator = "lte"
	OperatorIn     Operator = "in"
	OperatorExists Operator = "exists"
)

// Valid reports whether the operator is known.
func (o Operator) Valid() bool {
	switch o {
	case OperatorEq, OperatorNe, OperatorGt, OperatorGte, OperatorLt, OperatorLte, OperatorIn, OperatorExists:
		return true
	}

	return false
}

// Rule compares one context field against a value.
type Rule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Conditions is a data-driven predicate over an instance context. All rules must hold and,
// when set, the Go template Expression must render to a truthy value.
type Conditions struct {
	Rules      []Rule `json:"rules,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// Empty reports whether the predicate has nothing to evaluate.
func (c *Conditions) Empty() bool {
	return c == nil || (len(c.Rules) == 0 && c.Expression == "")
}
