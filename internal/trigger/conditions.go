package trigger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"surveypilot/internal/model"
)

var (
	ErrUnknownField    = errors.New("unknown condition field")
	ErrUnknownOperator = errors.New("unknown condition operator")
	ErrBadOperand      = errors.New("invalid condition operand")
	ErrMissingField    = errors.New("condition field not set in context")
)

type valueKind int

const (
	kindText valueKind = iota
	kindList
	kindNumber
	kindClock // minutes since midnight
)

// fieldValue is a context field resolved for comparison
type fieldValue struct {
	kind valueKind
	strs []string
	num  float64
}

const attrPrefix = "attr."

func resolveField(field string, c model.EvaluationContext) (fieldValue, error) {
	switch strings.ToLower(field) {
	case "purchase_category", "purchase_categories":
		return fieldValue{kind: kindList, strs: c.PurchaseCategories}, nil
	case "purchase_item", "purchase_items":
		return fieldValue{kind: kindList, strs: c.PurchaseItems}, nil
	case "transaction_amount", "amount":
		return fieldValue{kind: kindNumber, num: c.TransactionAmount}, nil
	case "currency":
		return fieldValue{kind: kindText, strs: []string{c.Currency}}, nil
	case "transaction_hour", "hour":
		if c.TransactionTime.IsZero() {
			return fieldValue{}, fmt.Errorf("%w: %q needs transactionTime", ErrMissingField, field)
		}
		return fieldValue{kind: kindNumber, num: float64(c.TransactionTime.Hour())}, nil
	case "transaction_time":
		t := c.TransactionTime
		if t.IsZero() {
			return fieldValue{}, fmt.Errorf("%w: %q needs transactionTime", ErrMissingField, field)
		}
		return fieldValue{kind: kindClock, num: float64(t.Hour()*60 + t.Minute())}, nil
	case "day_of_week":
		if c.DayOfWeek == "" {
			return fieldValue{}, fmt.Errorf("%w: %q", ErrMissingField, field)
		}
		return fieldValue{kind: kindText, strs: []string{c.DayOfWeek}}, nil
	case "is_weekend", "weekend":
		if c.TransactionTime.IsZero() && c.DayOfWeek == "" {
			return fieldValue{}, fmt.Errorf("%w: %q", ErrMissingField, field)
		}
		return fieldValue{kind: kindText, strs: []string{strconv.FormatBool(c.IsWeekend)}}, nil
	case "time_of_day":
		if c.TimeOfDay == "" {
			return fieldValue{}, fmt.Errorf("%w: %q", ErrMissingField, field)
		}
		return fieldValue{kind: kindText, strs: []string{c.TimeOfDay}}, nil
	}
	if name, ok := strings.CutPrefix(field, attrPrefix); ok && name != "" {
		return fieldValue{kind: kindText, strs: []string{c.Attributes[name]}}, nil
	}
	return fieldValue{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
}

// operands returns Values when set, otherwise the single Value
func operands(c model.TriggerCondition) []string {
	if len(c.Values) > 0 {
		return c.Values
	}
	return []string{c.Value}
}

// matchCondition reports whether the context satisfies one condition
func matchCondition(c model.TriggerCondition, ctx model.EvaluationContext) (bool, error) {
	v, err := resolveField(c.Field, ctx)
	if err != nil {
		return false, err
	}

	switch c.Operator {
	case model.OpEquals:
		return equals(v, operands(c))
	case model.OpNotEquals:
		ok, err := equals(v, operands(c))
		return !ok && err == nil, err
	case model.OpContains:
		return contains(v, operands(c))
	case model.OpNotContains:
		ok, err := contains(v, operands(c))
		return !ok && err == nil, err
	case model.OpGreaterThan, model.OpLessThan:
		if !v.numeric() {
			return false, fmt.Errorf("%w: %s needs a numeric field, got %q", ErrBadOperand, c.Operator, c.Field)
		}
		target, err := v.parse(c.Value)
		if err != nil {
			return false, err
		}
		if c.Operator == model.OpGreaterThan {
			return v.num > target, nil
		}
		return v.num < target, nil
	case model.OpBetween, model.OpInRange:
		if !v.numeric() {
			return false, fmt.Errorf("%w: %s needs a numeric field, got %q", ErrBadOperand, c.Operator, c.Field)
		}
		lo, hi, err := bounds(v, c)
		if err != nil {
			return false, err
		}
		if c.Operator == model.OpBetween {
			return v.num >= lo && v.num <= hi, nil
		}
		if v.kind == kindClock && lo > hi {
			// window wraps midnight, e.g. 22:00-06:00
			return v.num >= lo || v.num < hi, nil
		}
		return v.num >= lo && v.num < hi, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
}

func (v fieldValue) numeric() bool {
	return v.kind == kindNumber || v.kind == kindClock
}

// parse converts an operand into the field's numeric domain
func (v fieldValue) parse(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v.kind == kindClock {
		return parseClock(s)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrBadOperand, s)
	}
	return n, nil
}

func bounds(v fieldValue, c model.TriggerCondition) (float64, float64, error) {
	vals := c.Values
	if len(vals) < 2 && strings.Contains(c.Value, "-") && v.kind == kindClock {
		vals = strings.SplitN(c.Value, "-", 2)
	}
	if len(vals) < 2 {
		return 0, 0, fmt.Errorf("%w: %s needs two values", ErrBadOperand, c.Operator)
	}
	lo, err := v.parse(vals[0])
	if err != nil {
		return 0, 0, err
	}
	hi, err := v.parse(vals[1])
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func parseClock(s string) (float64, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrBadOperand, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrBadOperand, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrBadOperand, s)
	}
	return float64(hour*60 + minute), nil
}

func equals(v fieldValue, targets []string) (bool, error) {
	if v.numeric() {
		for _, t := range targets {
			n, err := v.parse(t)
			if err != nil {
				return false, err
			}
			if v.num == n {
				return true, nil
			}
		}
		return false, nil
	}
	for _, s := range v.strs {
		for _, t := range targets {
			if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(t)) {
				return true, nil
			}
		}
	}
	return false, nil
}

func contains(v fieldValue, targets []string) (bool, error) {
	if v.numeric() {
		return false, fmt.Errorf("%w: contains needs a text field", ErrBadOperand)
	}
	for _, s := range v.strs {
		s = strings.ToLower(s)
		for _, t := range targets {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" && strings.Contains(s, t) {
				return true, nil
			}
		}
	}
	return false, nil
}
