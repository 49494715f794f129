package query

import "reflect"

// IntPtr returns a pointer to i, for use as a HighMark.
func IntPtr(i int) *int {
	return &i
}

// Values flattens the operand of an "in" or "nin" condition into []any. A
// slice or array of any element type is spread; any other value becomes a
// one-element list and nil becomes an empty one.
func Values(value FilterValue) []any {
	if value == nil {
		return nil
	}
	if vals, ok := value.([]any); ok {
		return vals
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{value}
	}
	vals := make([]any, rv.Len())
	for i := range vals {
		vals[i] = rv.Index(i).Interface()
	}
	return vals
}
