package filterexpr

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type node interface {
	eval(vars map[string]any) any
}

type literal struct{ value any }

func (l literal) eval(map[string]any) any { return l.value }

type path []string

func (p path) eval(vars map[string]any) any {
	var cur any = vars
	for _, seg := range p {
		next, ok := field(cur, seg)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// field reads key from any map with string keys, including named map types.
func field(v any, key string) (any, bool) {
	if m, ok := v.(map[string]any); ok {
		val, found := m[key]
		return val, found
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
	if !val.IsValid() {
		return nil, false
	}
	return val.Interface(), true
}

type notNode struct{ inner node }

func (n notNode) eval(vars map[string]any) any { return !IsTruthy(n.inner.eval(vars)) }

type andNode struct{ left, right node }

func (n andNode) eval(vars map[string]any) any {
	return IsTruthy(n.left.eval(vars)) && IsTruthy(n.right.eval(vars))
}

type orNode struct{ left, right node }

func (n orNode) eval(vars map[string]any) any {
	return IsTruthy(n.left.eval(vars)) || IsTruthy(n.right.eval(vars))
}

type comparator func(left, right any) bool

type compareNode struct {
	op          string
	cmp         comparator
	left, right node
}

func (n compareNode) eval(vars map[string]any) any {
	return n.cmp(n.left.eval(vars), n.right.eval(vars))
}

var comparators = map[string]comparator{
	"==": equal,
	"!=": func(l, r any) bool { return !equal(l, r) },
	"<":  ordered(func(l, r float64) bool { return l < r }),
	">":  ordered(func(l, r float64) bool { return l > r }),
	"<=": ordered(func(l, r float64) bool { return l <= r }),
	">=": ordered(func(l, r float64) bool { return l >= r }),
}

func equal(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if lf, ok := number(l); ok {
		if rf, ok := number(r); ok {
			return lf == rf
		}
	}
	return fmt.Sprintf("%v", l) == fmt.Sprintf("%v", r)
}

func ordered(cmp func(l, r float64) bool) comparator {
	return func(l, r any) bool {
		lf, lok := ToFloat64(l)
		rf, rok := ToFloat64(r)
		return lok && rok && cmp(lf, rf)
	}
}

func contains(l, r any) bool {
	rv := reflect.ValueOf(l)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			if equal(rv.Index(i).Interface(), r) {
				return true
			}
		}
		return false
	}
	if l == nil {
		return false
	}
	return strings.Contains(fmt.Sprintf("%v", l), fmt.Sprintf("%v", r))
}

// number converts numeric kinds to float64. Strings are not numbers here.
func number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case int16:
		return float64(val), true
	case int8:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint8:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	return 0, false
}

// ToFloat64 converts numbers and numeric strings to float64.
// The second result is false when v has no numeric reading.
func ToFloat64(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

// IsTruthy returns whether a value is truthy.
// nil is false, bools return their value, empty strings are false,
// zero numbers are false, everything else is true.
func IsTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	return true
}
