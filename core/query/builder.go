// Package query provides a fluent API for building query descriptors.
package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/asaidimu/go-arangoql/core/schema"
)

// QueryBuilder provides a fluent API for building QueryDSL structures.
type QueryBuilder struct {
	query QueryDSL
}

// NewQueryBuilder creates a new, empty query builder instance.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		query: QueryDSL{},
	}
}

// Build returns the constructed QueryDSL object.
func (qb *QueryBuilder) Build() QueryDSL {
	return qb.query
}

// Clone creates a copy of the builder. Slices are copied so appending to the
// clone never touches the original; filter trees are shared.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	q := qb.query
	q.GroupBy = slices.Clone(qb.query.GroupBy)
	q.Sort = slices.Clone(qb.query.Sort)
	q.DistinctFields = slices.Clone(qb.query.DistinctFields)
	q.Objects = slices.Clone(qb.query.Objects)
	if qb.query.Projection != nil {
		q.Projection = &ProjectionConfiguration{Include: slices.Clone(qb.query.Projection.Include)}
	}
	if qb.query.HighMark != nil {
		high := *qb.query.HighMark
		q.HighMark = &high
	}
	if qb.query.Lock != nil {
		lock := *qb.query.Lock
		q.Lock = &lock
	}
	return &QueryBuilder{query: q}
}

// Reset clears all configurations from the query builder, returning it to its initial state.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.query = QueryDSL{}
	return qb
}

// Select sets the projected fields, in output order.
func (qb *QueryBuilder) Select(fields ...string) *QueryBuilder {
	if qb.query.Projection == nil {
		qb.query.Projection = &ProjectionConfiguration{}
	}
	for _, field := range fields {
		qb.query.Projection.Include = append(qb.query.Projection.Include, ProjectionField{Name: field})
	}
	return qb
}

// Where begins the construction of a filter condition for a specific field.
// A second top-level filter is combined with the first using AND.
func (qb *QueryBuilder) Where(field string) *FilterConditionBuilder {
	return &FilterConditionBuilder{
		field: field,
		done: func(filter QueryFilter) *QueryBuilder {
			qb.query.Filters = and(qb.query.Filters, filter)
			return qb
		},
	}
}

// WhereGroup begins a group of filter conditions combined with a logical operator.
func (qb *QueryBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{
		operator: operator,
		end: func(filter QueryFilter) {
			qb.query.Filters = and(qb.query.Filters, filter)
		},
		parent: qb,
	}
}

// Filter installs a prebuilt filter tree, combined with any existing one using AND.
func (qb *QueryBuilder) Filter(filter QueryFilter) *QueryBuilder {
	qb.query.Filters = and(qb.query.Filters, filter)
	return qb
}

// GroupBy appends grouping fields.
func (qb *QueryBuilder) GroupBy(fields ...string) *QueryBuilder {
	qb.query.GroupBy = append(qb.query.GroupBy, fields...)
	return qb
}

// Having sets the post-grouping restriction.
func (qb *QueryBuilder) Having(filter QueryFilter) *QueryBuilder {
	qb.query.Having = &filter
	return qb
}

// OrderBy adds a sorting rule.
func (qb *QueryBuilder) OrderBy(field string, direction SortDirection) *QueryBuilder {
	qb.query.Sort = append(qb.query.Sort, SortConfiguration{Field: field, Direction: direction})
	return qb
}

// OrderByAsc adds an ascending sorting rule.
func (qb *QueryBuilder) OrderByAsc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionAsc)
}

// OrderByDesc adds a descending sorting rule.
func (qb *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionDesc)
}

// Distinct requests distinct rows. Passing fields requests DISTINCT ON, which
// compilation rejects.
func (qb *QueryBuilder) Distinct(fields ...string) *QueryBuilder {
	qb.query.Distinct = true
	qb.query.DistinctFields = append(qb.query.DistinctFields, fields...)
	return qb
}

// Slice sets the result window as [low, high). A negative high leaves the
// window unbounded.
func (qb *QueryBuilder) Slice(low, high int) *QueryBuilder {
	qb.query.LowMark = low
	if high >= 0 {
		qb.query.HighMark = &high
	} else {
		qb.query.HighMark = nil
	}
	return qb
}

// Limit bounds the number of rows returned after the current offset.
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	high := qb.query.LowMark + limit
	qb.query.HighMark = &high
	return qb
}

// Offset skips rows. An existing limit keeps its size.
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	if qb.query.HighMark != nil {
		high := *qb.query.HighMark - qb.query.LowMark + offset
		qb.query.HighMark = &high
	}
	qb.query.LowMark = offset
	return qb
}

// ForUpdate requests a locking read.
func (qb *QueryBuilder) ForUpdate(nowait, skipLocked bool) *QueryBuilder {
	qb.query.Lock = &LockOptions{NoWait: nowait, SkipLocked: skipLocked}
	return qb
}

// Objects appends row objects for a bulk insert.
func (qb *QueryBuilder) Objects(objects ...any) *QueryBuilder {
	qb.query.Objects = append(qb.query.Objects, objects...)
	return qb
}

func and(existing *QueryFilter, next QueryFilter) *QueryFilter {
	if existing == nil {
		return &next
	}
	if existing.Group != nil && existing.Group.Operator == schema.LogicalAnd {
		conditions := append(slices.Clone(existing.Group.Conditions), next)
		combined := CreateFilterGroup(schema.LogicalAnd, conditions...)
		return &combined
	}
	combined := CreateFilterGroup(schema.LogicalAnd, *existing, next)
	return &combined
}

// FilterConditionBuilder is used to build a single filter condition (e.g., field = value).
type FilterConditionBuilder struct {
	field string
	done  func(QueryFilter) *QueryBuilder
}

// Eq adds an equality condition to the query.
func (fcb *FilterConditionBuilder) Eq(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorEq, value)
}

// Neq adds a not-equal condition to the query.
func (fcb *FilterConditionBuilder) Neq(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorNeq, value)
}

// Lt adds a less-than condition to the query.
func (fcb *FilterConditionBuilder) Lt(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorLt, value)
}

// Lte adds a less-than-or-equal condition to the query.
func (fcb *FilterConditionBuilder) Lte(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorLte, value)
}

// Gt adds a greater-than condition to the query.
func (fcb *FilterConditionBuilder) Gt(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorGt, value)
}

// Gte adds a greater-than-or-equal condition to the query.
func (fcb *FilterConditionBuilder) Gte(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorGte, value)
}

// In adds an "in" condition, checking if a field's value is within a set of values.
func (fcb *FilterConditionBuilder) In(values ...FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorIn, toAnySlice(values))
}

// Nin adds a "not in" condition.
func (fcb *FilterConditionBuilder) Nin(values ...FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorNin, toAnySlice(values))
}

// Contains adds a condition to check if a string field contains a substring.
func (fcb *FilterConditionBuilder) Contains(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorContains, value)
}

// NotContains adds a condition to check if a string field does not contain a substring.
func (fcb *FilterConditionBuilder) NotContains(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorNotContains, value)
}

// StartsWith adds a condition to check if a string field starts with a specific prefix.
func (fcb *FilterConditionBuilder) StartsWith(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorStartsWith, value)
}

// EndsWith adds a condition to check if a string field ends with a specific suffix.
func (fcb *FilterConditionBuilder) EndsWith(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorEndsWith, value)
}

// Exists adds a condition to check if a field exists and is not null.
func (fcb *FilterConditionBuilder) Exists() *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorExists, nil)
}

// NotExists adds a condition to check if a field does not exist or is null.
func (fcb *FilterConditionBuilder) NotExists() *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorNotExists, nil)
}

// IsNull adds a null test. The value selects IS NULL (true) or IS NOT NULL (false).
func (fcb *FilterConditionBuilder) IsNull(isNull bool) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorIsNull, isNull)
}

// Year matches date and datetime fields falling within the given calendar year.
func (fcb *FilterConditionBuilder) Year(year int) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorYear, year)
}

func (fcb *FilterConditionBuilder) addCondition(operator ComparisonOperator, value FilterValue) *QueryBuilder {
	return fcb.done(CreateSimpleFilter(fcb.field, operator, value))
}

// FilterGroupBuilder is used to build a group of filter conditions.
type FilterGroupBuilder struct {
	operator   schema.LogicalOperator
	conditions []QueryFilter
	end        func(QueryFilter)
	parent     *QueryBuilder
	outer      *FilterGroupBuilder
}

// Where adds a new condition to the current filter group.
func (fgb *FilterGroupBuilder) Where(field string) *FilterConditionBuilderInGroup {
	return &FilterConditionBuilderInGroup{
		groupBuilder: fgb,
		field:        field,
	}
}

// WhereGroup opens a nested group. Its End returns to this group.
func (fgb *FilterGroupBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{
		operator: operator,
		end: func(filter QueryFilter) {
			fgb.conditions = append(fgb.conditions, filter)
		},
		parent: fgb.parent,
		outer:  fgb,
	}
}

// End closes the group and returns to the main query builder.
func (fgb *FilterGroupBuilder) End() *QueryBuilder {
	fgb.end(CreateFilterGroup(fgb.operator, fgb.conditions...))
	return fgb.parent
}

// EndGroup closes a nested group and returns to the enclosing one.
func (fgb *FilterGroupBuilder) EndGroup() *FilterGroupBuilder {
	fgb.end(CreateFilterGroup(fgb.operator, fgb.conditions...))
	if fgb.outer == nil {
		return fgb
	}
	return fgb.outer
}

// FilterConditionBuilderInGroup is used to build a filter condition within a group.
type FilterConditionBuilderInGroup struct {
	groupBuilder *FilterGroupBuilder
	field        string
}

// Eq adds an equality condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Eq(value FilterValue) *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorEq, value)
}

// Neq adds a not-equal condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Neq(value FilterValue) *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorNeq, value)
}

// Lt adds a less-than condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Lt(value FilterValue) *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorLt, value)
}

// Lte adds a less-than-or-equal condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Lte(value FilterValue) *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorLte, value)
}

// Gt adds a greater-than condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Gt(value FilterValue) *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorGt, value)
}

// Gte adds a greater-than-or-equal condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Gte(value FilterValue) *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorGte, value)
}

// In adds an "in" condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) In(values ...FilterValue) *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorIn, toAnySlice(values))
}

// Nin adds a "not in" condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Nin(values ...FilterValue) *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorNin, toAnySlice(values))
}

// Contains adds a contains condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Contains(value FilterValue) *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorContains, value)
}

// StartsWith adds a starts-with condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) StartsWith(value FilterValue) *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorStartsWith, value)
}

// Exists adds an exists condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Exists() *FilterGroupBuilder {
	return fcbg.addCondition(ComparisonOperatorExists, nil)
}

func (fcbg *FilterConditionBuilderInGroup) addCondition(operator ComparisonOperator, value FilterValue) *FilterGroupBuilder {
	fcbg.groupBuilder.conditions = append(fcbg.groupBuilder.conditions, CreateSimpleFilter(fcbg.field, operator, value))
	return fcbg.groupBuilder
}

func toAnySlice(values []FilterValue) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// QueryValidationError represents an error found during query validation.
type QueryValidationError struct {
	Field   string
	Message string
}

// Error returns the error message for a QueryValidationError.
func (ve QueryValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// QueryValidationResult contains the results of a query validation.
type QueryValidationResult struct {
	IsValid bool
	Errors  []QueryValidationError
}

// Validate checks the descriptor for mistakes that do not depend on a schema.
func (qb *QueryBuilder) Validate() QueryValidationResult {
	var errors []QueryValidationError

	if qb.query.LowMark < 0 {
		errors = append(errors, QueryValidationError{
			Field:   "low_mark",
			Message: "offset cannot be negative",
		})
	}
	if qb.query.HighMark != nil && *qb.query.HighMark < qb.query.LowMark {
		errors = append(errors, QueryValidationError{
			Field:   "high_mark",
			Message: "high mark cannot precede low mark",
		})
	}
	if len(qb.query.DistinctFields) > 0 {
		errors = append(errors, QueryValidationError{
			Field:   "distinct",
			Message: "distinct on fields is not supported",
		})
	}
	if qb.query.Having != nil && len(qb.query.GroupBy) == 0 {
		errors = append(errors, QueryValidationError{
			Field:   "having",
			Message: "having requires group by",
		})
	}
	for i, sort := range qb.query.Sort {
		if sort.Direction != SortDirectionAsc && sort.Direction != SortDirectionDesc {
			errors = append(errors, QueryValidationError{
				Field:   fmt.Sprintf("sort[%d].direction", i),
				Message: fmt.Sprintf("unknown direction '%s'", sort.Direction),
			})
		}
	}

	return QueryValidationResult{
		IsValid: len(errors) == 0,
		Errors:  errors,
	}
}

// String returns a human-readable representation of the built query.
func (qb *QueryBuilder) String() string {
	var parts []string

	if qb.query.Projection != nil && len(qb.query.Projection.Include) > 0 {
		fields := make([]string, len(qb.query.Projection.Include))
		for i, field := range qb.query.Projection.Include {
			fields[i] = field.Name
		}
		parts = append(parts, fmt.Sprintf("SELECT: %s", strings.Join(fields, ", ")))
	}

	if qb.query.Filters != nil {
		parts = append(parts, "FILTERS: present")
	}

	if len(qb.query.GroupBy) > 0 {
		parts = append(parts, fmt.Sprintf("GROUP BY: %s", strings.Join(qb.query.GroupBy, ", ")))
	}

	if len(qb.query.Sort) > 0 {
		sortFields := make([]string, len(qb.query.Sort))
		for i, sort := range qb.query.Sort {
			sortFields[i] = fmt.Sprintf("%s %s", sort.Field, sort.Direction)
		}
		parts = append(parts, fmt.Sprintf("ORDER BY: %s", strings.Join(sortFields, ", ")))
	}

	if qb.query.HighMark != nil {
		parts = append(parts, fmt.Sprintf("LIMIT: %d", *qb.query.HighMark-qb.query.LowMark))
	}
	if qb.query.LowMark > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET: %d", qb.query.LowMark))
	}

	if len(qb.query.Objects) > 0 {
		parts = append(parts, fmt.Sprintf("INSERT: %d", len(qb.query.Objects)))
	}

	if len(parts) == 0 {
		return "EMPTY QUERY"
	}

	return strings.Join(parts, " | ")
}

// CreateSimpleFilter is a helper function to create a simple filter condition.
func CreateSimpleFilter(field string, operator ComparisonOperator, value FilterValue) QueryFilter {
	return QueryFilter{
		Condition: &FilterCondition{
			Field:    field,
			Operator: operator,
			Value:    value,
		},
	}
}

// CreateFilterGroup is a helper function to create a filter group.
func CreateFilterGroup(operator schema.LogicalOperator, conditions ...QueryFilter) QueryFilter {
	return QueryFilter{
		Group: &FilterGroup{
			Operator:   operator,
			Conditions: conditions,
		},
	}
}
