package arangodb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
)

// NoLimitValue stands in for "no upper bound" when only an offset is given.
// It is the largest integer a JSON number holds without loss.
const NoLimitValue = 9007199254740991

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// keywords are AQL reserved words. Names matching one (case-insensitively) must
// be back-quoted.
var keywords = map[string]struct{}{
	"AGGREGATE": {}, "ALL": {}, "AND": {}, "ANY": {}, "ASC": {}, "COLLECT": {},
	"DESC": {}, "DISTINCT": {}, "FALSE": {}, "FILTER": {}, "FOR": {}, "GRAPH": {},
	"IN": {}, "INBOUND": {}, "INSERT": {}, "INTO": {}, "K_PATHS": {},
	"K_SHORTEST_PATHS": {}, "LET": {}, "LIKE": {}, "LIMIT": {}, "NONE": {},
	"NOT": {}, "NULL": {}, "OR": {}, "OUTBOUND": {}, "REMOVE": {}, "REPLACE": {},
	"RETURN": {}, "SHORTEST_PATH": {}, "SORT": {}, "TRUE": {}, "UPDATE": {},
	"UPSERT": {}, "WITH": {}, "WINDOW": {},
}

// Operations is the AQL dialect strategy: how names are quoted, how columns are
// referenced and how values are shaped before they reach a statement.
type Operations struct{}

// NewOperations returns the AQL dialect operations.
func NewOperations() *Operations {
	return &Operations{}
}

// Name identifies the dialect.
func (o *Operations) Name() string {
	return "aql"
}

// QuoteName returns name unchanged when it is a plain identifier and
// back-quoted otherwise.
func (o *Operations) QuoteName(name string) string {
	if identifierPattern.MatchString(name) {
		if _, reserved := keywords[strings.ToUpper(name)]; !reserved {
			return name
		}
	}
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

// ColumnReference renders the access of column on the loop variable alias.
func (o *Operations) ColumnReference(alias, column string) string {
	return alias + "." + o.QuoteName(column)
}

// ObjectKey renders column as a key of an object literal.
func (o *Operations) ObjectKey(column string) string {
	if identifierPattern.MatchString(column) {
		if _, reserved := keywords[strings.ToUpper(column)]; !reserved {
			return column
		}
	}
	key, _ := o.Literal(column)
	return key
}

// BindVar returns the placeholder of the i-th parameter.
func (o *Operations) BindVar(i int) string {
	return "@" + query.ParamName(i)
}

// Literal renders a value as an AQL literal. AQL accepts JSON for every
// scalar, array and object, so values are encoded as JSON without HTML escaping.
func (o *Operations) Literal(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", fmt.Errorf("failed to render literal: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// DistinctSQL returns the distinct modifier. DISTINCT ON fields cannot be
// expressed in AQL.
func (o *Operations) DistinctSQL(fields []string) (string, error) {
	if len(fields) > 0 {
		return "", query.NewNotSupported("DISTINCT ON fields")
	}
	return "DISTINCT", nil
}

// NoLimitValue returns the limit used when only an offset is set.
func (o *Operations) NoLimitValue() int {
	return NoLimitValue
}

// ForceNoOrdering returns the ordering applied to a grouped read that has no
// explicit order: the grouping columns, ascending.
func (o *Operations) ForceNoOrdering(groupBy []string) []query.SortConfiguration {
	ordering := make([]query.SortConfiguration, 0, len(groupBy))
	for _, field := range groupBy {
		ordering = append(ordering, query.SortConfiguration{Field: field, Direction: query.SortDirectionAsc})
	}
	return ordering
}

// MaxNameLength returns the longest accepted collection or attribute name.
func (o *Operations) MaxNameLength() int {
	return schema.MaxNameLength
}

// PKDefaultValue is the key written for a new document. Nil lets the store
// assign one.
func (o *Operations) PKDefaultValue() any {
	return nil
}

// YearLookupBounds returns the half-open range [first, next) covering a year
// for a date or datetime field, as stored. The upper bound is exclusive.
func (o *Operations) YearLookupBounds(year int, datetime bool) (string, string) {
	first := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	if datetime {
		return first.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano)
	}
	return first.Format(time.DateOnly), last.Format(time.DateOnly)
}

// DocumentKey renders integral key values as decimal strings, since the store
// only accepts string keys. Any other value is returned unchanged.
func (o *Operations) DocumentKey(value any) any {
	if n, ok := integralString(value); ok {
		return n
	}
	return value
}

// YearValue reads a calendar year from an integral number or a numeric string.
func (o *Operations) YearValue(value any) (int, error) {
	if s, ok := value.(string); ok {
		year, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("invalid year %q", s)
		}
		return year, nil
	}
	n, ok := integralString(value)
	if !ok {
		return 0, fmt.Errorf("invalid year %v (%T)", value, value)
	}
	year, err := strconv.Atoi(n)
	if err != nil {
		return 0, fmt.Errorf("invalid year %v: %w", value, err)
	}
	return year, nil
}

func integralString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return v.String(), true
		}
		f, err := v.Float64()
		if err != nil {
			return "", false
		}
		return integralFloat(f)
	case float64:
		return integralFloat(v)
	case float32:
		return integralFloat(float64(v))
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	}
	return "", false
}

func integralFloat(f float64) (string, bool) {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

// PrepareValue shapes a Go value for storage according to its field: the
// field's Prepare hook first, then the type encoding.
func (o *Operations) PrepareValue(field *schema.FieldDefinition, value any) (any, error) {
	if field != nil && field.Prepare != nil {
		prepared, err := field.Prepare(value)
		if err != nil {
			return nil, fmt.Errorf("prepare hook for field '%s' failed: %w", field.Name, err)
		}
		value = prepared
	}
	if value == nil || field == nil {
		return value, nil
	}

	switch field.Type {
	case schema.FieldTypeBoolean:
		switch val := value.(type) {
		case bool:
			return val, nil
		case string:
			switch strings.ToLower(val) {
			case "true", "1":
				return true, nil
			case "false", "0":
				return false, nil
			}
		case int:
			return val != 0, nil
		case int64:
			return val != 0, nil
		case float64:
			return val != 0, nil
		}
		return nil, fmt.Errorf("expected boolean for field '%s', got %T", field.Name, value)

	case schema.FieldTypeEnum:
		if str, ok := value.(string); ok {
			return str, nil
		}
		if s, ok := value.(fmt.Stringer); ok {
			return s.String(), nil
		}
		return fmt.Sprintf("%v", value), nil

	case schema.FieldTypeDate:
		if t, ok := value.(time.Time); ok {
			return t.Format(time.DateOnly), nil
		}
		return value, nil

	case schema.FieldTypeDateTime:
		if t, ok := value.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
		return value, nil

	default:
		return value, nil
	}
}
