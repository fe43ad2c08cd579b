/*
Copyright © 2026 the gridextract authors.
This file is part of gridextract.

gridextract is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridextract is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridextract.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridextract

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Knetic/govaluate"
)

// deriveFuncs are the functions available to Derive expressions.
var deriveFuncs = map[string]govaluate.ExpressionFunction{
	"exp": unaryFunc("exp", math.Exp),
	"log": unaryFunc("log", math.Log),
	"abs": unaryFunc("abs", math.Abs),
}

// unaryFunc wraps f as an expression function that takes one numeric argument.
func unaryFunc(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("gridextract: got %d arguments for function '%s', but needs 1", len(arg), name)
		}
		x, ok := arg[0].(float64)
		if !ok {
			return nil, fmt.Errorf("gridextract: function '%s' needs a number but got %T", name, arg[0])
		}
		return f(x), nil
	}
}

// Derive returns copies of records with their values replaced by the result
// of expression, for example "value - 273.15" to convert from Kelvin to
// degrees Celsius. The variable `value` holds the sampled value, and
// attributes that parse as numbers are available by name. The functions
// exp(x), log(x), and abs(x) are available. Missing values stay missing.
func Derive(records []Record, expression string) ([]Record, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, deriveFuncs)
	if err != nil {
		return nil, fmt.Errorf("gridextract: parsing expression `%s`: %v", expression, err)
	}
	o := make([]Record, len(records))
	params := make(map[string]interface{})
	for i, rec := range records {
		o[i] = rec
		if rec.Missing() {
			continue
		}
		for k := range params {
			delete(params, k)
		}
		for k, v := range rec.Attributes {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				params[k] = f
			}
		}
		params["value"] = rec.Value
		result, err := expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("gridextract: evaluating `%s` for point %s layer %s: %v", expression, rec.PointID, rec.Layer, err)
		}
		v, ok := result.(float64)
		if !ok {
			return nil, fmt.Errorf("gridextract: expression `%s` returned %T but should return a number", expression, result)
		}
		o[i].Value = v
	}
	return o, nil
}
