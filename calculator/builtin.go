package calculator

import (
	"fmt"
	"strings"
	"time"

	"rulesengine/rule"
)

// builtinFunc adapts a pair of plain functions to the Calculator
// interface, avoiding a dedicated struct type per built-in.
type builtinFunc struct {
	validate func(rule.CalculatorParameters) error
	run      func(rule.CalculatorParameters, map[string]rule.Value) (rule.Value, error)
}

func (b builtinFunc) ValidateParameters(p rule.CalculatorParameters) error { return b.validate(p) }
func (b builtinFunc) Calculate(p rule.CalculatorParameters, ctx map[string]rule.Value) (rule.Value, error) {
	return b.run(p, ctx)
}

func requireFields(p rule.CalculatorParameters) error {
	if len(p.Fields) == 0 {
		return &calcErr{"parameters.fields must not be empty"}
	}
	return nil
}

func fieldNumbers(p rule.CalculatorParameters, ctx map[string]rule.Value) ([]float64, error) {
	nums := make([]float64, 0, len(p.Fields))
	for _, f := range p.Fields {
		v, ok := ctx[f]
		if !ok {
			return nil, &calcErr{fmt.Sprintf("field %q not present in context", f)}
		}
		n, ok := valueAsNumber(v)
		if !ok {
			return nil, &calcErr{fmt.Sprintf("field %q is not numeric", f)}
		}
		nums = append(nums, n)
	}
	return nums, nil
}

func valueAsNumber(v rule.Value) (float64, bool) {
	if v.Kind == rule.KindNumber {
		return v.Num, true
	}
	return 0, false
}

func defaultBuiltins() map[string]Calculator {
	return map[string]Calculator{
		"sum": builtinFunc{
			validate: requireFields,
			run: func(p rule.CalculatorParameters, ctx map[string]rule.Value) (rule.Value, error) {
				nums, err := fieldNumbers(p, ctx)
				if err != nil {
					return rule.Null, err
				}
				total := 0.0
				for _, n := range nums {
					total += n
				}
				return rule.Value{Kind: rule.KindNumber, Num: total}, nil
			},
		},
		"min": builtinFunc{
			validate: requireFields,
			run: func(p rule.CalculatorParameters, ctx map[string]rule.Value) (rule.Value, error) {
				nums, err := fieldNumbers(p, ctx)
				if err != nil {
					return rule.Null, err
				}
				m := nums[0]
				for _, n := range nums[1:] {
					if n < m {
						m = n
					}
				}
				return rule.Value{Kind: rule.KindNumber, Num: m}, nil
			},
		},
		"max": builtinFunc{
			validate: requireFields,
			run: func(p rule.CalculatorParameters, ctx map[string]rule.Value) (rule.Value, error) {
				nums, err := fieldNumbers(p, ctx)
				if err != nil {
					return rule.Null, err
				}
				m := nums[0]
				for _, n := range nums[1:] {
					if n > m {
						m = n
					}
				}
				return rule.Value{Kind: rule.KindNumber, Num: m}, nil
			},
		},
		"avg": builtinFunc{
			validate: requireFields,
			run: func(p rule.CalculatorParameters, ctx map[string]rule.Value) (rule.Value, error) {
				nums, err := fieldNumbers(p, ctx)
				if err != nil {
					return rule.Null, err
				}
				total := 0.0
				for _, n := range nums {
					total += n
				}
				return rule.Value{Kind: rule.KindNumber, Num: total / float64(len(nums))}, nil
			},
		},
		"count": builtinFunc{
			validate: requireFields,
			run: func(p rule.CalculatorParameters, ctx map[string]rule.Value) (rule.Value, error) {
				present := 0
				for _, f := range p.Fields {
					if v, ok := ctx[f]; ok && !v.IsNull() {
						present++
					}
				}
				return rule.Value{Kind: rule.KindNumber, Num: float64(present)}, nil
			},
		},
		"concat": builtinFunc{
			validate: requireFields,
			run: func(p rule.CalculatorParameters, ctx map[string]rule.Value) (rule.Value, error) {
				sep := p.Separator
				parts := make([]string, 0, len(p.Fields))
				for _, f := range p.Fields {
					if v, ok := ctx[f]; ok {
						parts = append(parts, v.String())
					}
				}
				return rule.Value{Kind: rule.KindString, Str: strings.Join(parts, sep)}, nil
			},
		},
		"dateAdd": builtinFunc{
			validate: func(p rule.CalculatorParameters) error {
				if len(p.Fields) != 1 {
					return &calcErr{"dateAdd requires exactly one field"}
				}
				return nil
			},
			run: func(p rule.CalculatorParameters, ctx map[string]rule.Value) (rule.Value, error) {
				v, ok := ctx[p.Fields[0]]
				if !ok {
					return rule.Null, &calcErr{fmt.Sprintf("field %q not present in context", p.Fields[0])}
				}
				t, err := parseDateValue(v)
				if err != nil {
					return rule.Null, err
				}
				unit := strings.ToLower(p.Unit)
				var result time.Time
				switch unit {
				case "days", "day", "":
					result = t.AddDate(0, 0, int(p.Amount))
				case "months", "month":
					result = t.AddDate(0, int(p.Amount), 0)
				case "years", "year":
					result = t.AddDate(int(p.Amount), 0, 0)
				default:
					return rule.Null, &calcErr{fmt.Sprintf("unknown unit %q", p.Unit)}
				}
				return rule.Value{Kind: rule.KindDate, Str: result.Format("2006-01-02")}, nil
			},
		},
		"dateDiff": builtinFunc{
			validate: func(p rule.CalculatorParameters) error {
				if len(p.Fields) != 2 {
					return &calcErr{"dateDiff requires exactly two fields"}
				}
				return nil
			},
			run: func(p rule.CalculatorParameters, ctx map[string]rule.Value) (rule.Value, error) {
				a, ok := ctx[p.Fields[0]]
				if !ok {
					return rule.Null, &calcErr{fmt.Sprintf("field %q not present in context", p.Fields[0])}
				}
				b, ok := ctx[p.Fields[1]]
				if !ok {
					return rule.Null, &calcErr{fmt.Sprintf("field %q not present in context", p.Fields[1])}
				}
				ta, err := parseDateValue(a)
				if err != nil {
					return rule.Null, err
				}
				tb, err := parseDateValue(b)
				if err != nil {
					return rule.Null, err
				}
				days := ta.Sub(tb).Hours() / 24
				return rule.Value{Kind: rule.KindNumber, Num: days}, nil
			},
		},
		"percentage": builtinFunc{
			validate: func(p rule.CalculatorParameters) error {
				if len(p.Fields) != 2 {
					return &calcErr{"percentage requires exactly two fields: [part, whole]"}
				}
				return nil
			},
			run: func(p rule.CalculatorParameters, ctx map[string]rule.Value) (rule.Value, error) {
				nums, err := fieldNumbers(p, ctx)
				if err != nil {
					return rule.Null, err
				}
				if nums[1] == 0 {
					return rule.Null, &calcErr{"percentage: whole is zero"}
				}
				return rule.Value{Kind: rule.KindNumber, Num: (nums[0] / nums[1]) * 100}, nil
			},
		},
	}
}

func parseDateValue(v rule.Value) (time.Time, error) {
	layouts := []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v.Str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &calcErr{fmt.Sprintf("value %q is not a recognized date", v.Str)}
}
