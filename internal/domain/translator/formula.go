package translator

import (
	"github.com/Knetic/govaluate"
)

// evalFormula evaluates a per-device dim formula such as "x * 2.54" with x
// bound to the input level. Invalid or failing formulas fall back to the
// identity conversion.
func evalFormula(formula string, x float64) float64 {
	if formula == "" {
		return x
	}
	expr, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return x
	}
	result, err := expr.Evaluate(map[string]any{"x": x})
	if err != nil {
		return x
	}
	if v, ok := result.(float64); ok {
		return v
	}
	return x
}
