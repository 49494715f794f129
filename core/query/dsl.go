// Package query defines the Domain-Specific Language (DSL) for describing reads
// and bulk inserts against a single collection, the compiled form handed to the
// execution bridge, and the decoder that turns returned documents back into rows.
package query

import (
	"github.com/asaidimu/go-arangoql/core/schema"
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq          ComparisonOperator = "eq"
	ComparisonOperatorNeq         ComparisonOperator = "neq"
	ComparisonOperatorLt          ComparisonOperator = "lt"
	ComparisonOperatorLte         ComparisonOperator = "lte"
	ComparisonOperatorGt          ComparisonOperator = "gt"
	ComparisonOperatorGte         ComparisonOperator = "gte"
	ComparisonOperatorIn          ComparisonOperator = "in"
	ComparisonOperatorNin         ComparisonOperator = "nin"
	ComparisonOperatorContains    ComparisonOperator = "contains"
	ComparisonOperatorNotContains ComparisonOperator = "ncontains"
	ComparisonOperatorStartsWith  ComparisonOperator = "startswith"
	ComparisonOperatorEndsWith    ComparisonOperator = "endswith"
	ComparisonOperatorExists      ComparisonOperator = "exists"
	ComparisonOperatorNotExists   ComparisonOperator = "nexists"
	ComparisonOperatorIsNull      ComparisonOperator = "isnull"
	ComparisonOperatorYear        ComparisonOperator = "year"
)

// FilterValue represents the value used in a filter condition.
type FilterValue any

// FilterCondition defines a single condition for filtering the results of a query.
type FilterCondition struct {
	Field    string             // The field to apply the filter on.
	Operator ComparisonOperator // The comparison operator to use.
	Value    FilterValue        // The value to compare against.
}

// FilterGroup combines multiple filter conditions using a logical operator.
// A "not" group negates the conjunction of its conditions.
type FilterGroup struct {
	Operator   schema.LogicalOperator // The logical operator (AND, OR, NOT) to combine the conditions.
	Conditions []QueryFilter          // The list of conditions or nested groups.
}

// QueryFilter is a union type that can represent either a single filter condition
// or a group of conditions.
type QueryFilter struct {
	Condition *FilterCondition `json:",omitempty"` // A single filter condition.
	Group     *FilterGroup     `json:",omitempty"` // A group of filter conditions.
}

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SortConfiguration defines the sorting order for a specific field.
type SortConfiguration struct {
	Field     string        // The field to sort by.
	Direction SortDirection // The direction of the sort (ascending or descending).
}

// ProjectionField names a field to be returned. Include order is output order.
type ProjectionField struct {
	Name string
}

// ProjectionConfiguration defines which fields should be returned in the query result.
type ProjectionConfiguration struct {
	Include []ProjectionField `json:",omitempty"`
}

// LockOptions requests a locking read.
type LockOptions struct {
	NoWait     bool `json:",omitempty"`
	SkipLocked bool `json:",omitempty"`
}

// QueryDSL is the query descriptor consumed by a generator. The target
// collection comes from the schema the generator was created for.
type QueryDSL struct {
	Projection *ProjectionConfiguration `json:",omitempty"`
	Filters    *QueryFilter             `json:",omitempty"`
	GroupBy    []string                 `json:",omitempty"`
	Having     *QueryFilter             `json:",omitempty"`
	Sort       []SortConfiguration      `json:",omitempty"`
	Distinct   bool                     `json:",omitempty"`
	// DistinctFields requests DISTINCT ON semantics, which the store cannot express.
	DistinctFields []string     `json:",omitempty"`
	LowMark        int          `json:",omitempty"`
	HighMark       *int         `json:",omitempty"`
	Lock           *LockOptions `json:",omitempty"`
	// Objects holds the row objects of a bulk insert: documents, maps, structs or
	// FieldValuer implementations.
	Objects []any `json:"-"`
}

// FieldValuer is implemented by row objects that resolve their own field values.
type FieldValuer interface {
	FieldValue(field *schema.FieldDefinition) (any, bool)
}

// HasLimit reports whether the descriptor bounds the result window.
func (q *QueryDSL) HasLimit() bool {
	return q.HighMark != nil || q.LowMark > 0
}

// standardComparisonOperators is a set of all the standard, built-in comparison operators.
var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:          {},
	ComparisonOperatorNeq:         {},
	ComparisonOperatorLt:          {},
	ComparisonOperatorLte:         {},
	ComparisonOperatorGt:          {},
	ComparisonOperatorGte:         {},
	ComparisonOperatorIn:          {},
	ComparisonOperatorNin:         {},
	ComparisonOperatorContains:    {},
	ComparisonOperatorNotContains: {},
	ComparisonOperatorStartsWith:  {},
	ComparisonOperatorEndsWith:    {},
	ComparisonOperatorExists:      {},
	ComparisonOperatorNotExists:   {},
	ComparisonOperatorIsNull:      {},
	ComparisonOperatorYear:        {},
}

// IsStandard checks if a comparison operator is one of the standard, built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}

// Fields returns every field referenced by the filter tree, depth first.
func (f *QueryFilter) Fields() []string {
	if f == nil {
		return nil
	}
	if f.Condition != nil {
		return []string{f.Condition.Field}
	}
	var fields []string
	if f.Group != nil {
		for i := range f.Group.Conditions {
			fields = append(fields, f.Group.Conditions[i].Fields()...)
		}
	}
	return fields
}
