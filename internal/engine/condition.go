package engine

import (
	"reflect"
	"strings"

	"github.com/mhalonen/virta/pkg/api"
)

// evaluate reports whether an edge condition matches the state. A nil
// condition is unconditional and always matches. Evaluation is total: an
// absent key or a type-incompatible comparison yields false, never an error.
// Unknown operators cannot reach this point; they are rejected at graph
// validation time.
func evaluate(cond *api.Condition, state api.State) bool {
	if cond == nil {
		return true
	}

	actual, ok := state.Lookup(cond.Key)
	if !ok {
		return false
	}

	switch cond.Op {
	case api.OpEq:
		return equalValues(actual, cond.Value)
	case api.OpNe:
		return !equalValues(actual, cond.Value)
	case api.OpGt, api.OpLt, api.OpGe, api.OpLe:
		c, ok := compareValues(actual, cond.Value)
		if !ok {
			return false
		}
		switch cond.Op {
		case api.OpGt:
			return c > 0
		case api.OpLt:
			return c < 0
		case api.OpGe:
			return c >= 0
		default:
			return c <= 0
		}
	}
	return false
}

// equalValues compares two values for equality, treating all numeric types
// as one domain so that e.g. int(3) equals float64(3) after a JSON round
// trip.
func equalValues(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values. Numbers compare numerically, strings
// lexically; anything else is incomparable (ok=false).
func compareValues(a, b any) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
