package persistence

import (
	"context"
	"fmt"
	"iter"

	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
)

// Collection binds a schema to an Executor so callers do not have to pass the
// schema to every operation.
type Collection struct {
	schema   *schema.SchemaDefinition
	executor *Executor
}

// NewCollection returns a handle for the collection described by sc.
func NewCollection(sc *schema.SchemaDefinition, executor *Executor) (*Collection, error) {
	if executor == nil {
		return nil, fmt.Errorf("Executor cannot be nil")
	}
	if sc == nil {
		return nil, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema '%s': %w", sc.Name, err)
	}
	return &Collection{schema: sc, executor: executor}, nil
}

// Name returns the name of the collection.
func (c *Collection) Name() string {
	return c.schema.Name
}

// Schema returns the definition the handle was created for.
func (c *Collection) Schema() *schema.SchemaDefinition {
	return c.schema
}

// Create inserts a single row object and returns its key.
func (c *Collection) Create(ctx context.Context, object any) (any, error) {
	keys, err := c.executor.Insert(ctx, c.schema, []any{object})
	if err != nil {
		return nil, fmt.Errorf("failed to insert data into collection '%s': %w", c.schema.Name, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return keys[0], nil
}

// CreateMany inserts row objects in one round trip.
func (c *Collection) CreateMany(ctx context.Context, objects []any) ([]any, error) {
	keys, err := c.executor.Insert(ctx, c.schema, objects)
	if err != nil {
		return nil, fmt.Errorf("failed to insert data into collection '%s': %w", c.schema.Name, err)
	}
	return keys, nil
}

// Read streams the documents matched by dsl.
func (c *Collection) Read(ctx context.Context, dsl *query.QueryDSL) (iter.Seq2[schema.Document, error], error) {
	docs, err := c.executor.Documents(ctx, c.schema, dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from collection '%s': %w", c.schema.Name, err)
	}
	return docs, nil
}

// All drains Read into a slice.
func (c *Collection) All(ctx context.Context, dsl *query.QueryDSL) ([]schema.Document, error) {
	docs, err := c.Read(ctx, dsl)
	if err != nil {
		return nil, err
	}
	out := []schema.Document{}
	for doc, err := range docs {
		if err != nil {
			return nil, fmt.Errorf("failed to read data from collection '%s': %w", c.schema.Name, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// First returns the first document matched by dsl.
func (c *Collection) First(ctx context.Context, dsl *query.QueryDSL) (schema.Document, error) {
	compiled, err := c.executor.CompileSelect(c.schema, dsl)
	if err != nil {
		return nil, err
	}
	row, err := c.executor.Get(ctx, c.schema, dsl)
	if err != nil {
		return nil, err
	}
	return query.ToDocument(row, compiled.Fields), nil
}

// Exists reports whether dsl matches at least one document.
func (c *Collection) Exists(ctx context.Context, dsl *query.QueryDSL) (bool, error) {
	return c.executor.Exists(ctx, c.schema, dsl)
}

// Validate checks a document against the collection's schema.
func (c *Collection) Validate(data map[string]any, loose bool) schema.ValidationResult {
	valid, issues := schema.NewValidator(c.schema).Validate(data, loose)
	return schema.ValidationResult{Valid: valid, Issues: issues}
}

// Ensure creates the backing collection when it does not exist yet.
func (c *Collection) Ensure(ctx context.Context) (bool, error) {
	return c.executor.EnsureCollection(ctx, c.schema)
}
