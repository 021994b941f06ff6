package template

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
)

// ErrInvalidCondition is returned for rules that cannot be evaluated.
var ErrInvalidCondition = errors.New("invalid condition")

// Evaluate reports whether every rule holds against values and, when an expression is set,
// whether it renders truthy. Empty conditions always hold.
func Evaluate(conditions *models.Conditions, values map[string]any) (bool, error) {
	if conditions.Empty() {
		return true, nil
	}

	for _, rule := range conditions.Rules {
		ok, err := evaluateRule(rule, values)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	if conditions.Expression == "" {
		return true, nil
	}

	result, err := Render(conditions.Expression, values)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidCondition, err)
	}

	return Truthy(result), nil
}

func evaluateRule(rule models.Rule, values map[string]any) (bool, error) {
	if rule.Field == "" {
		return false, fmt.Errorf("%w: rule field is required", ErrInvalidCondition)
	}

	actual, present := values[rule.Field]

	switch rule.Operator {
	case models.OperatorExists:
		return present && actual != nil, nil
	case models.OperatorEq:
		return equal(actual, rule.Value), nil
	case models.OperatorNe:
		return !equal(actual, rule.Value), nil
	case models.OperatorIn:
		options := reflect.ValueOf(rule.Value)
		if options.Kind() != reflect.Slice && options.Kind() != reflect.Array {
			return false, fmt.Errorf("%w: operator 'in' needs a list for field %s", ErrInvalidCondition, rule.Field)
		}

		for i := range options.Len() {
			if equal(actual, options.Index(i).Interface()) {
				return true, nil
			}
		}

		return false, nil
	case models.OperatorGt, models.OperatorGte, models.OperatorLt, models.OperatorLte:
		left, okLeft := ToFloat(actual)
		right, okRight := ToFloat(rule.Value)

		if !okRight {
			return false, fmt.Errorf("%w: non-numeric value for %s on field %s", ErrInvalidCondition, rule.Operator, rule.Field)
		}

		if !okLeft {
			return false, nil
		}

		switch rule.Operator {
		case models.OperatorGt:
			return left > right, nil
		case models.OperatorGte:
			return left >= right, nil
		case models.OperatorLt:
			return left < right, nil
		default:
			return left <= right, nil
		}
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, rule.Operator)
	}
}

func equal(a, b any) bool {
	fa, okA := ToFloat(a)
	fb, okB := ToFloat(b)

	if okA && okB {
		if _, isString := a.(string); !isString {
			return fa == fb
		}
	}

	return fmt.Sprint(a) == fmt.Sprint(b)
}
