package pv

import (
	"fmt"
	"math"
)

// ToInt32 converts a scalar value to int32, rejecting values out of range
func ToInt32(v Value) (int32, error) {
	switch x := v.(type) {
	case int32:
		return x, nil
	case int:
		return checkedInt32(int64(x))
	case int64:
		return checkedInt32(x)
	case int16:
		return int32(x), nil
	case uint16:
		return int32(x), nil
	case float64:
		return floatInt32(x)
	case float32:
		return floatInt32(float64(x))
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []int32:
		if len(x) == 1 {
			return x[0], nil
		}
		return 0, fmt.Errorf("cannot use array of %d elements as scalar", len(x))
	default:
		return 0, fmt.Errorf("cannot convert %T to int32", v)
	}
}

// ToInt32Slice converts an array value to []int32
func ToInt32Slice(v Value) ([]int32, error) {
	switch x := v.(type) {
	case []int32:
		return x, nil
	case []int:
		out := make([]int32, len(x))
		for i, e := range x {
			n, err := checkedInt32(int64(e))
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case []float64:
		out := make([]int32, len(x))
		for i, e := range x {
			n, err := floatInt32(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		n, err := ToInt32(v)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %T to []int32", v)
		}
		return []int32{n}, nil
	}
}

// ToBytes converts a value to an opaque byte string
func ToBytes(v Value) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	default:
		return []byte(fmt.Sprint(v))
	}
}

func checkedInt32(n int64) (int32, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("value %d out of int32 range", n)
	}
	return int32(n), nil
}

// floatInt32 truncates toward zero like a control-system long conversion
func floatInt32(f float64) (int32, error) {
	if math.IsNaN(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("value %v out of int32 range", f)
	}
	return int32(f), nil
}
