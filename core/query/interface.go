// Package query defines the interfaces for generating database-specific queries
// from the abstract QueryDSL.
package query

import (
	"context"
	"fmt"
	"iter"

	"github.com/asaidimu/go-arangoql/core/schema"
)

// QueryGeneratorFactory defines the interface for a factory that creates QueryGenerator instances.
// This allows for the creation of query generators that are specific to a given database schema.
type QueryGeneratorFactory interface {
	// CreateGenerator creates a new QueryGenerator for a specific schema.
	CreateGenerator(schema *schema.SchemaDefinition) (QueryGenerator, error)
}

// QueryGenerator translates a QueryDSL into a statement of the store's dialect.
// Both entry points fail before any network activity when the descriptor cannot
// be compiled.
type QueryGenerator interface {
	// GenerateSelect compiles a read. The returned Fields are the selected
	// descriptors in output order, which the ResultDecoder consumes.
	GenerateSelect(dsl *QueryDSL) (*CompiledQuery, error)

	// GenerateInsert compiles a bulk insert of dsl.Objects. With no objects it
	// returns ErrEmptyResultSet instead of a statement.
	GenerateInsert(dsl *QueryDSL) (*CompiledQuery, error)
}

// CompiledQuery is the immutable result of compilation.
type CompiledQuery struct {
	Query      string
	Params     []any
	Fields     []*schema.FieldDefinition
	Collection string
	// Inline is set when parameters were rendered into Query as literals.
	Inline bool
}

// ParamName returns the bind variable name of the i-th parameter.
func ParamName(i int) string {
	return fmt.Sprintf("p%d", i)
}

// BindVars maps each placeholder name to its value.
func (c *CompiledQuery) BindVars() map[string]any {
	if c == nil || c.Inline || len(c.Params) == 0 {
		return nil
	}
	vars := make(map[string]any, len(c.Params))
	for i, p := range c.Params {
		vars[ParamName(i)] = p
	}
	return vars
}

// Columns returns the storage attributes of the decoded fields, in order.
func (c *CompiledQuery) Columns() []string {
	columns := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		columns[i] = f.ColumnName()
	}
	return columns
}

// ResultMode selects how the execution bridge hands results back.
type ResultMode int

const (
	// ResultMulti yields a lazy sequence of batches.
	ResultMulti ResultMode = iota
	// ResultSingle returns the first element and releases the cursor.
	ResultSingle
	// ResultCursor returns the raw cursor. The caller owns its lifecycle.
	ResultCursor
	// ResultNone executes, discards and releases.
	ResultNone
)

func (m ResultMode) String() string {
	switch m {
	case ResultMulti:
		return "multi"
	case ResultSingle:
		return "single"
	case ResultCursor:
		return "cursor"
	case ResultNone:
		return "no_results"
	default:
		return fmt.Sprintf("ResultMode(%d)", int(m))
	}
}

// Batch is one chunk of raw elements returned by the store.
type Batch []any

// Row is a decoded result, one value per selected field.
type Row []any

// Cursor iterates over the results of one statement. Close must be called
// exactly once, whatever the outcome of iteration.
type Cursor interface {
	// NextBatch returns the next chunk of raw elements, or io.EOF when drained.
	NextBatch(ctx context.Context) (Batch, error)
	// NextSingle returns the next raw element, or io.EOF when drained.
	NextSingle(ctx context.Context) (any, error)
	// Close releases the server-side cursor.
	Close() error
}

// ExecResult carries what one execution produced. Which field is set depends
// on the ResultMode it was executed with.
type ExecResult struct {
	QueryID string
	// Batches is set for ResultMulti. It is never nil in that mode.
	Batches iter.Seq2[Batch, error]
	// Single is the first element for ResultSingle, nil when there was none.
	Single any
	// Cursor is the raw cursor for ResultCursor. The caller must close it.
	Cursor Cursor
}
