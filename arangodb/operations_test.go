package arangodb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperations_QuoteName(t *testing.T) {
	ops := NewOperations()
	tests := []struct {
		name     string
		expected string
	}{
		{"Person", "Person"},
		{"_key", "_key"},
		{"full_name", "full_name"},
		{"my-coll", "`my-coll`"},
		{"for", "`for`"},
		{"Return", "`Return`"},
		{"1st", "`1st`"},
		{"odd`name", "`odd\\`name`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ops.QuoteName(tt.name))
		})
	}

	assert.Equal(t, "item.age", ops.ColumnReference("item", "age"))
	assert.Equal(t, "item.`first name`", ops.ColumnReference("item", "first name"))
	assert.Equal(t, "age", ops.ObjectKey("age"))
	assert.Equal(t, `"first name"`, ops.ObjectKey("first name"))
	assert.Equal(t, "aql", ops.Name())
}

func TestOperations_Literal(t *testing.T) {
	ops := NewOperations()
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"string", "Eggs", `"Eggs"`},
		{"quotes", `say "hi"`, `"say \"hi\""`},
		{"backslash", `a\b`, `"a\\b"`},
		{"html kept", "<a&b>", `"<a&b>"`},
		{"number", 31, "31"},
		{"null", nil, "null"},
		{"array", []any{1, "x"}, `[1,"x"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ops.Literal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ops.Literal(make(chan int))
	assert.Error(t, err)
}

func TestOperations_Distinct(t *testing.T) {
	ops := NewOperations()
	distinct, err := ops.DistinctSQL(nil)
	require.NoError(t, err)
	assert.Equal(t, "DISTINCT", distinct)

	_, err = ops.DistinctSQL([]string{"name"})
	assert.True(t, query.IsNotSupported(err))
}

func TestOperations_Constants(t *testing.T) {
	ops := NewOperations()
	assert.Equal(t, 9007199254740991, ops.NoLimitValue())
	assert.Equal(t, 254, ops.MaxNameLength())
	assert.Nil(t, ops.PKDefaultValue())
	assert.Equal(t, "@p3", ops.BindVar(3))
	assert.Equal(t, []query.SortConfiguration{
		{Field: "age", Direction: query.SortDirectionAsc},
		{Field: "name", Direction: query.SortDirectionAsc},
	}, ops.ForceNoOrdering([]string{"age", "name"}))

	first, last := ops.YearLookupBounds(2024, false)
	assert.Equal(t, "2024-01-01", first)
	assert.Equal(t, "2025-01-01", last)

	first, last = ops.YearLookupBounds(2024, true)
	assert.Equal(t, "2024-01-01T00:00:00Z", first)
	assert.Equal(t, "2025-01-01T00:00:00Z", last)
}

func TestOperations_DocumentKey(t *testing.T) {
	ops := NewOperations()
	tests := []struct {
		name     string
		value    any
		expected any
	}{
		{name: "int", value: 7, expected: "7"},
		{name: "int8", value: int8(-3), expected: "-3"},
		{name: "int64", value: int64(9007199254740993), expected: "9007199254740993"},
		{name: "uint16", value: uint16(12), expected: "12"},
		{name: "uint64", value: uint64(18446744073709551615), expected: "18446744073709551615"},
		{name: "integral float64", value: float64(42), expected: "42"},
		{name: "integral float32", value: float32(5), expected: "5"},
		{name: "json number", value: json.Number("11"), expected: "11"},
		{name: "json number with exponent", value: json.Number("1e3"), expected: "1000"},
		{name: "fractional float stays", value: 1.5, expected: 1.5},
		{name: "fractional json number stays", value: json.Number("2.5"), expected: json.Number("2.5")},
		{name: "string stays", value: "abc", expected: "abc"},
		{name: "nil stays", value: nil, expected: nil},
		{name: "bool stays", value: true, expected: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ops.DocumentKey(tt.value))
		})
	}
}

func TestOperations_YearValue(t *testing.T) {
	ops := NewOperations()
	tests := []struct {
		name     string
		value    any
		expected int
		wantErr  bool
	}{
		{name: "int", value: 1999, expected: 1999},
		{name: "int64", value: int64(2001), expected: 2001},
		{name: "float64 from JSON", value: float64(2020), expected: 2020},
		{name: "numeric string", value: " 1984 ", expected: 1984},
		{name: "fractional float", value: 2020.5, wantErr: true},
		{name: "word", value: "soon", wantErr: true},
		{name: "nil", value: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			year, err := ops.YearValue(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, year)
		})
	}
}

type status int

func (s status) String() string {
	if s == 1 {
		return "active"
	}
	return "inactive"
}

func TestOperations_PrepareValue(t *testing.T) {
	ops := NewOperations()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("EAT", 3*3600))

	tests := []struct {
		name     string
		field    *schema.FieldDefinition
		value    any
		expected any
		wantErr  bool
	}{
		{"nil field", nil, "x", "x", false},
		{"nil value", &schema.FieldDefinition{Type: schema.FieldTypeBoolean}, nil, nil, false},
		{"bool", &schema.FieldDefinition{Type: schema.FieldTypeBoolean}, false, false, false},
		{"bool from string", &schema.FieldDefinition{Type: schema.FieldTypeBoolean}, "TRUE", true, false},
		{"bool from zero", &schema.FieldDefinition{Type: schema.FieldTypeBoolean}, 0, false, false},
		{"bool from float", &schema.FieldDefinition{Type: schema.FieldTypeBoolean}, 1.0, true, false},
		{"bool invalid", &schema.FieldDefinition{Type: schema.FieldTypeBoolean}, "maybe", nil, true},
		{"enum string", &schema.FieldDefinition{Type: schema.FieldTypeEnum}, "active", "active", false},
		{"enum stringer", &schema.FieldDefinition{Type: schema.FieldTypeEnum}, status(1), "active", false},
		{"enum number", &schema.FieldDefinition{Type: schema.FieldTypeEnum}, 3, "3", false},
		{"date", &schema.FieldDefinition{Type: schema.FieldTypeDate}, at, "2024-01-02", false},
		{"date text passes", &schema.FieldDefinition{Type: schema.FieldTypeDate}, "2024-01-02", "2024-01-02", false},
		{"datetime in utc", &schema.FieldDefinition{Type: schema.FieldTypeDateTime}, at, "2024-01-02T00:04:05Z", false},
		{"number passes", &schema.FieldDefinition{Type: schema.FieldTypeNumber}, 1.5, 1.5, false},
		{
			"prepare hook first",
			&schema.FieldDefinition{Type: schema.FieldTypeBoolean, Prepare: func(v any) (any, error) { return v == "yes", nil }},
			"yes", true, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ops.PrepareValue(tt.field, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDefaultFeatures(t *testing.T) {
	f := DefaultFeatures()
	assert.True(t, f.CanUseChunkedReads)
	assert.True(t, f.CanReturnIDFromInsert)
	assert.True(t, f.HasBulkInsert)
	assert.False(t, f.SupportsJoins)
	assert.True(t, f.HasSelectForUpdate)
	assert.False(t, f.HasSelectForUpdateNowait)
	assert.False(t, f.HasSelectForUpdateSkipLocked)
	assert.False(t, f.InlineParameters)
	assert.True(t, f.Autocommit)
}
