package arangodb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
	"github.com/asaidimu/go-arangoql/utils"
)

// loopVariable is the name every compiled statement binds documents to.
const loopVariable = "item"

// AqlQueryGeneratorFactory implements the QueryGeneratorFactory for ArangoDB.
type AqlQueryGeneratorFactory struct {
	ops      *Operations
	features Features
}

// NewAqlQueryGeneratorFactory creates a factory whose generators honour features.
func NewAqlQueryGeneratorFactory(features Features) *AqlQueryGeneratorFactory {
	return &AqlQueryGeneratorFactory{ops: NewOperations(), features: features}
}

// CreateGenerator creates a new AqlQuery (which is a QueryGenerator) for the given schema.
func (f *AqlQueryGeneratorFactory) CreateGenerator(schema *schema.SchemaDefinition) (query.QueryGenerator, error) {
	return NewAqlQuery(schema, f.ops, f.features)
}

// AqlQuery is a schema-aware query generator for AQL.
// Generators hold no per-call state, so compiling the same descriptor twice
// yields identical statements and parameters.
type AqlQuery struct {
	schema   *schema.SchemaDefinition
	ops      *Operations
	features Features
}

// NewAqlQuery creates a new schema-aware query generator for AQL.
func NewAqlQuery(sc *schema.SchemaDefinition, ops *Operations, features Features) (*AqlQuery, error) {
	if sc == nil {
		return nil, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("schema must define a collection name")
	}
	if ops == nil {
		ops = NewOperations()
	}
	if len(sc.Name) > ops.MaxNameLength() {
		return nil, fmt.Errorf("collection name '%s' exceeds %d characters", sc.Name, ops.MaxNameLength())
	}
	return &AqlQuery{schema: sc, ops: ops, features: features}, nil
}

// statement accumulates the parameters of a single compilation.
type statement struct {
	ops    *Operations
	inline bool
	params []any
}

// placeholder records value and returns its reference in the statement.
func (s *statement) placeholder(value any) (string, error) {
	s.params = append(s.params, value)
	if s.inline {
		return s.ops.Literal(value)
	}
	return s.ops.BindVar(len(s.params) - 1), nil
}

// resolveField maps a descriptor field name onto the schema.
func (q *AqlQuery) resolveField(name string) (*schema.FieldDefinition, error) {
	if field := q.schema.FindField(name); field != nil {
		return field, nil
	}
	if field := q.schema.FindColumn(name); field != nil {
		return field, nil
	}
	if name == q.schema.PrimaryKeyColumn() {
		return q.schema.PrimaryKeyField(), nil
	}
	return nil, fmt.Errorf("field '%s' in collection '%s': %w", name, q.schema.Name, query.ErrUnknownField)
}

// reference renders the accessor of a field on the loop variable.
func (q *AqlQuery) reference(field *schema.FieldDefinition) string {
	return q.ops.ColumnReference(loopVariable, field.ColumnName())
}

// selectedFields returns the output fields in selection order.
func (q *AqlQuery) selectedFields(projection *query.ProjectionConfiguration) ([]*schema.FieldDefinition, error) {
	if projection == nil || len(projection.Include) == 0 {
		if len(q.schema.Fields) == 0 {
			return nil, fmt.Errorf("collection '%s' declares no fields to select: %w", q.schema.Name, query.ErrInvalidQuery)
		}
		return q.schema.Fields, nil
	}
	fields := make([]*schema.FieldDefinition, 0, len(projection.Include))
	for _, include := range projection.Include {
		field, err := q.resolveField(include.Name)
		if err != nil {
			return nil, fmt.Errorf("projection error: %w", err)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// checkLock rejects locking reads the session cannot serve. A target
// without locking reads ignores the request.
func (q *AqlQuery) checkLock(lock *query.LockOptions) error {
	if lock == nil || !q.features.HasSelectForUpdate {
		return nil
	}
	if q.features.Autocommit {
		return query.ErrTransactionState
	}
	if lock.NoWait && !q.features.HasSelectForUpdateNowait {
		return fmt.Errorf("NOWAIT: %w", query.ErrUnsupportedOption)
	}
	if lock.SkipLocked && !q.features.HasSelectForUpdateSkipLocked {
		return fmt.Errorf("SKIP LOCKED: %w", query.ErrUnsupportedOption)
	}
	return nil
}

// GenerateSelect creates a complete AQL read and its parameters from a
// QueryDSL. A descriptor that provably matches nothing yields
// ErrEmptyResultSet and no statement.
func (q *AqlQuery) GenerateSelect(dsl *query.QueryDSL) (*query.CompiledQuery, error) {
	if dsl == nil {
		return nil, fmt.Errorf("QueryDSL cannot be nil: %w", query.ErrInvalidQuery)
	}
	if err := q.checkLock(dsl.Lock); err != nil {
		return nil, err
	}
	if len(dsl.DistinctFields) > 0 && len(dsl.GroupBy) > 0 {
		return nil, query.NewNotSupported("DISTINCT ON fields with GROUP BY")
	}
	if dsl.Having != nil && len(dsl.GroupBy) == 0 {
		return nil, fmt.Errorf("HAVING requires GROUP BY: %w", query.ErrInvalidQuery)
	}
	if dsl.LowMark < 0 {
		return nil, fmt.Errorf("negative offset %d: %w", dsl.LowMark, query.ErrInvalidQuery)
	}

	fields, err := q.selectedFields(dsl.Projection)
	if err != nil {
		return nil, err
	}

	st := &statement{ops: q.ops, inline: q.features.InlineParameters}
	clauses := []string{fmt.Sprintf("FOR %s IN %s", loopVariable, q.ops.QuoteName(q.schema.Name))}

	if dsl.Filters != nil {
		filterAQL, err := q.buildFilter(dsl.Filters, st)
		if err != nil {
			if query.IsEmptyResultSet(err) {
				return nil, err
			}
			return nil, fmt.Errorf("error building FILTER clause: %w", err)
		}
		if filterAQL != "" {
			clauses = append(clauses, "FILTER "+filterAQL)
		}
	}

	returnClause := "RETURN "
	if dsl.Distinct || len(dsl.DistinctFields) > 0 {
		distinct, err := q.ops.DistinctSQL(dsl.DistinctFields)
		if err != nil {
			return nil, err
		}
		returnClause += distinct + " "
	}
	projected := make([]string, len(fields))
	for i, field := range fields {
		projected[i] = fmt.Sprintf("%s: %s", q.ops.ObjectKey(field.ColumnName()), q.reference(field))
	}
	clauses = append(clauses, returnClause+"{"+strings.Join(projected, ", ")+"}")

	if len(dsl.GroupBy) > 0 {
		grouping := make([]string, len(dsl.GroupBy))
		for i, name := range dsl.GroupBy {
			field, err := q.resolveField(name)
			if err != nil {
				return nil, fmt.Errorf("group error: %w", err)
			}
			grouping[i] = q.reference(field)
		}
		clauses = append(clauses, "GROUP BY "+strings.Join(grouping, ", "))
	}

	if dsl.Having != nil {
		havingAQL, err := q.buildFilter(dsl.Having, st)
		if err != nil {
			if query.IsEmptyResultSet(err) {
				return nil, err
			}
			return nil, fmt.Errorf("error building HAVING clause: %w", err)
		}
		if havingAQL != "" {
			clauses = append(clauses, "HAVING "+havingAQL)
		}
	}

	ordering := dsl.Sort
	if len(ordering) == 0 && len(dsl.GroupBy) > 0 {
		ordering = q.ops.ForceNoOrdering(dsl.GroupBy)
	}
	if len(ordering) > 0 {
		orderBy := make([]string, len(ordering))
		for i, sortCfg := range ordering {
			field, err := q.resolveField(sortCfg.Field)
			if err != nil {
				return nil, fmt.Errorf("sort error: %w", err)
			}
			direction := strings.ToUpper(string(sortCfg.Direction))
			if direction == "" {
				direction = "ASC"
			}
			if direction != "ASC" && direction != "DESC" {
				return nil, fmt.Errorf("sort direction '%s' for field '%s': %w", sortCfg.Direction, sortCfg.Field, query.ErrInvalidQuery)
			}
			orderBy[i] = fmt.Sprintf("%s %s", q.reference(field), direction)
		}
		clauses = append(clauses, "ORDER BY "+strings.Join(orderBy, ", "))
	}

	if dsl.HighMark != nil {
		count := max(*dsl.HighMark-dsl.LowMark, 0)
		if dsl.LowMark > 0 {
			clauses = append(clauses, fmt.Sprintf("LIMIT %d, %d", count, dsl.LowMark))
		} else {
			clauses = append(clauses, fmt.Sprintf("LIMIT %d", count))
		}
	} else if dsl.LowMark > 0 {
		clauses = append(clauses, fmt.Sprintf("LIMIT %d, %d", q.ops.NoLimitValue(), dsl.LowMark))
	}

	return &query.CompiledQuery{
		Query:      strings.Join(clauses, " "),
		Params:     st.params,
		Fields:     fields,
		Collection: q.schema.Name,
		Inline:     st.inline,
	}, nil
}

// buildFilter recursively builds a filter expression from a QueryFilter.
// An empty string means the filter matches everything. ErrEmptyResultSet
// means it matches nothing.
func (q *AqlQuery) buildFilter(filter *query.QueryFilter, st *statement) (string, error) {
	if filter.Condition != nil {
		return q.buildCondition(filter.Condition, st)
	}
	if filter.Group == nil {
		return "", fmt.Errorf("invalid filter structure: neither Condition nor Group is set")
	}

	var connector string
	negated := false
	switch filter.Group.Operator {
	case schema.LogicalAnd:
		connector = " AND "
	case schema.LogicalOr:
		connector = " OR "
	case schema.LogicalNot:
		connector = " AND "
		negated = true
	case "":
		return "", fmt.Errorf("logical operator missing in filter group")
	default:
		return "", fmt.Errorf("unsupported logical operator '%s'", filter.Group.Operator)
	}

	// A conjunction is empty as soon as one child is; a disjunction only when
	// every child is. Children that match everything settle the opposite case.
	fullNeeded, emptyNeeded := len(filter.Group.Conditions), 1
	if filter.Group.Operator == schema.LogicalOr {
		fullNeeded, emptyNeeded = 1, len(filter.Group.Conditions)
	}

	var clauses []string
	for i := range filter.Group.Conditions {
		clause, err := q.buildFilter(&filter.Group.Conditions[i], st)
		switch {
		case errors.Is(err, query.ErrEmptyResultSet):
			emptyNeeded--
		case err != nil:
			return "", err
		case clause != "":
			clauses = append(clauses, clause)
		default:
			fullNeeded--
		}
		if emptyNeeded == 0 {
			if negated {
				return "", nil
			}
			return "", query.ErrEmptyResultSet
		}
		if fullNeeded == 0 {
			if negated {
				return "", query.ErrEmptyResultSet
			}
			return "", nil
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	expr := "(" + strings.Join(clauses, connector) + ")"
	if negated {
		expr = "NOT " + expr
	}
	return expr, nil
}

// buildCondition translates a single FilterCondition into an AQL expression.
func (q *AqlQuery) buildCondition(cond *query.FilterCondition, st *statement) (string, error) {
	field, err := q.resolveField(cond.Field)
	if err != nil {
		return "", err
	}
	accessor := q.reference(field)

	switch cond.Operator {
	case query.ComparisonOperatorExists:
		return fmt.Sprintf("%s != null", accessor), nil
	case query.ComparisonOperatorNotExists:
		return fmt.Sprintf("%s == null", accessor), nil
	case query.ComparisonOperatorIsNull:
		if isNull, ok := cond.Value.(bool); ok && !isNull {
			return fmt.Sprintf("%s != null", accessor), nil
		}
		return fmt.Sprintf("%s == null", accessor), nil

	case query.ComparisonOperatorIn, query.ComparisonOperatorNin:
		values := query.Values(cond.Value)
		if len(values) == 0 {
			if cond.Operator == query.ComparisonOperatorIn {
				return "", query.ErrEmptyResultSet
			}
			return "", nil
		}
		prepared := make([]any, len(values))
		for i, v := range values {
			if prepared[i], err = q.ops.PrepareValue(field, v); err != nil {
				return "", fmt.Errorf("failed to prepare value for condition field '%s': %w", cond.Field, err)
			}
		}
		ref, err := st.placeholder(prepared)
		if err != nil {
			return "", err
		}
		if cond.Operator == query.ComparisonOperatorNin {
			return fmt.Sprintf("%s NOT IN %s", accessor, ref), nil
		}
		return fmt.Sprintf("%s IN %s", accessor, ref), nil

	case query.ComparisonOperatorContains, query.ComparisonOperatorNotContains:
		var expr string
		if field.Type == schema.FieldTypeArray || field.Type == schema.FieldTypeSet {
			ref, err := st.placeholder(cond.Value)
			if err != nil {
				return "", err
			}
			expr = fmt.Sprintf("%s IN %s", ref, accessor)
		} else {
			ref, err := st.placeholder(fmt.Sprintf("%v", cond.Value))
			if err != nil {
				return "", err
			}
			expr = fmt.Sprintf("CONTAINS(%s, %s)", accessor, ref)
		}
		if cond.Operator == query.ComparisonOperatorNotContains {
			return "NOT " + expr, nil
		}
		return expr, nil

	case query.ComparisonOperatorStartsWith:
		ref, err := st.placeholder(fmt.Sprintf("%v", cond.Value))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("STARTS_WITH(%s, %s)", accessor, ref), nil
	case query.ComparisonOperatorEndsWith:
		ref, err := st.placeholder("%" + escapeLike(fmt.Sprintf("%v", cond.Value)))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("LIKE(%s, %s)", accessor, ref), nil

	case query.ComparisonOperatorYear:
		if field.Type != schema.FieldTypeDate && field.Type != schema.FieldTypeDateTime {
			return "", fmt.Errorf("%w: year lookup on non-date field '%s'", query.ErrInvalidQuery, cond.Field)
		}
		year, err := q.ops.YearValue(cond.Value)
		if err != nil {
			return "", fmt.Errorf("%w: %v", query.ErrInvalidQuery, err)
		}
		first, next := q.ops.YearLookupBounds(year, field.Type == schema.FieldTypeDateTime)
		lo, err := st.placeholder(first)
		if err != nil {
			return "", err
		}
		hi, err := st.placeholder(next)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s >= %s AND %s < %s)", accessor, lo, accessor, hi), nil
	}

	comparison, ok := comparisonOperators[cond.Operator]
	if !ok {
		return "", query.NewNotSupported(fmt.Sprintf("comparison operator '%s'", cond.Operator))
	}
	preparedValue, err := q.ops.PrepareValue(field, cond.Value)
	if err != nil {
		return "", fmt.Errorf("failed to prepare value for condition field '%s': %w", cond.Field, err)
	}
	ref, err := st.placeholder(preparedValue)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", accessor, comparison, ref), nil
}

var comparisonOperators = map[query.ComparisonOperator]string{
	query.ComparisonOperatorEq:  "==",
	query.ComparisonOperatorNeq: "!=",
	query.ComparisonOperatorLt:  "<",
	query.ComparisonOperatorLte: "<=",
	query.ComparisonOperatorGt:  ">",
	query.ComparisonOperatorGte: ">=",
}

// escapeLike escapes the wildcards of a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GenerateInsert creates an AQL bulk insert of dsl.Objects. The documents are
// rendered inline and the statement returns the key of each new document in
// input order.
func (q *AqlQuery) GenerateInsert(dsl *query.QueryDSL) (*query.CompiledQuery, error) {
	if dsl == nil || len(dsl.Objects) == 0 {
		return nil, query.ErrEmptyResultSet
	}
	if len(dsl.Objects) > 1 && !q.features.HasBulkInsert {
		return nil, query.NewNotSupported("bulk insert")
	}

	documents := make([]string, len(dsl.Objects))
	for i, obj := range dsl.Objects {
		doc, err := q.document(obj)
		if err != nil {
			return nil, fmt.Errorf("insert error for object %d: %w", i, err)
		}
		rendered, err := doc.render(q.ops)
		if err != nil {
			return nil, fmt.Errorf("insert error for object %d: %w", i, err)
		}
		documents[i] = rendered
	}

	pk := q.schema.PrimaryKeyField()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("FOR %s IN [%s] INSERT %s IN %s",
		loopVariable, strings.Join(documents, ", "), loopVariable, q.ops.QuoteName(q.schema.Name)))

	compiled := &query.CompiledQuery{Collection: q.schema.Name, Inline: true}
	if q.features.CanReturnIDFromInsert {
		sb.WriteString(" RETURN NEW." + q.ops.QuoteName(pk.ColumnName()))
		compiled.Fields = []*schema.FieldDefinition{pk}
	}
	compiled.Query = sb.String()
	return compiled, nil
}

type attribute struct {
	column string
	value  any
}

// orderedDocument keeps attributes in schema order so rendering is deterministic.
type orderedDocument []attribute

func (d orderedDocument) render(ops *Operations) (string, error) {
	parts := make([]string, len(d))
	for i, attr := range d {
		key, err := ops.Literal(attr.column)
		if err != nil {
			return "", err
		}
		value, err := ops.Literal(attr.value)
		if err != nil {
			return "", fmt.Errorf("attribute '%s': %w", attr.column, err)
		}
		parts[i] = key + ":" + value
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// valueSource resolves the value a row object holds for a field.
type valueSource func(field *schema.FieldDefinition) (any, bool)

func mapSource(m map[string]any) valueSource {
	return func(field *schema.FieldDefinition) (any, bool) {
		if v, ok := m[field.Name]; ok {
			return v, true
		}
		v, ok := m[field.ColumnName()]
		return v, ok
	}
}

func sourceOf(obj any) (valueSource, error) {
	switch o := obj.(type) {
	case nil:
		return nil, fmt.Errorf("row object is nil: %w", query.ErrInvalidQuery)
	case query.FieldValuer:
		return o.FieldValue, nil
	case schema.Document:
		return mapSource(o), nil
	case map[string]any:
		return mapSource(o), nil
	default:
		m, err := utils.StructToMap(obj)
		if err != nil {
			return nil, err
		}
		return mapSource(m), nil
	}
}

// document builds the stored form of one row object: pre-save defaults, then
// value preparation, in schema order. An absent key is left to the store.
func (q *AqlQuery) document(obj any) (orderedDocument, error) {
	source, err := sourceOf(obj)
	if err != nil {
		return nil, err
	}

	pk := q.schema.PrimaryKeyField()
	fields := q.schema.Fields
	if q.schema.FindColumn(pk.ColumnName()) == nil {
		fields = append([]*schema.FieldDefinition{pk}, fields...)
	}

	doc := make(orderedDocument, 0, len(fields))
	for _, field := range fields {
		value, ok := source(field)
		if !ok && field.Default != nil {
			value, ok = field.Default, true
		}
		if field.ColumnName() == pk.ColumnName() {
			if !ok || value == nil {
				value = q.ops.PKDefaultValue()
			}
			if value == nil {
				continue
			}
			ok = true
			value = q.ops.DocumentKey(value)
		}
		if !ok {
			continue
		}
		prepared, err := q.ops.PrepareValue(field, value)
		if err != nil {
			return nil, err
		}
		doc = append(doc, attribute{column: field.ColumnName(), value: prepared})
	}
	return doc, nil
}
