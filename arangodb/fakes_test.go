package arangodb

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
)

type fakeCursor struct {
	batches []query.Batch
	pos     int
	elem    int
	// failAt makes NextBatch fail when pos reaches it.
	failAt int
	err    error
	closed int
}

func newFakeCursor(batches ...query.Batch) *fakeCursor {
	return &fakeCursor{batches: batches, failAt: -1}
}

func (c *fakeCursor) NextBatch(ctx context.Context) (query.Batch, error) {
	if c.err != nil && c.pos == c.failAt {
		return nil, c.err
	}
	if c.pos >= len(c.batches) {
		return nil, io.EOF
	}
	batch := c.batches[c.pos]
	c.pos++
	return batch, nil
}

func (c *fakeCursor) NextSingle(ctx context.Context) (any, error) {
	for c.pos < len(c.batches) {
		if c.elem < len(c.batches[c.pos]) {
			element := c.batches[c.pos][c.elem]
			c.elem++
			return element, nil
		}
		c.pos++
		c.elem = 0
	}
	return nil, io.EOF
}

func (c *fakeCursor) Close() error {
	c.closed++
	return nil
}

type fakeConnection struct {
	cursor       *fakeCursor
	err          error
	calls        int
	lastQuery    string
	lastBindVars map[string]any

	// echoKeys answers inserts with the "name" of every inserted document.
	echoKeys bool

	collections []schema.CollectionInfo
	created     map[string]schema.CollectionKind
	createErr   error
	indexes     []schema.IndexDefinition
	indexErr    error
}

func (c *fakeConnection) ExecuteQuery(ctx context.Context, aql string, bindVars map[string]any) (query.Cursor, error) {
	c.calls++
	c.lastQuery = aql
	c.lastBindVars = bindVars
	if c.err != nil {
		return nil, c.err
	}
	if c.echoKeys {
		start := strings.Index(aql, "[")
		end := strings.LastIndex(aql, "] INSERT")
		var docs []map[string]any
		if err := json.Unmarshal([]byte(aql[start:end+1]), &docs); err != nil {
			return nil, err
		}
		batch := make(query.Batch, len(docs))
		for i, doc := range docs {
			batch[i] = doc["name"]
		}
		c.cursor = newFakeCursor(batch)
	}
	if c.cursor == nil {
		c.cursor = newFakeCursor()
	}
	return c.cursor, nil
}

func (c *fakeConnection) Collections(ctx context.Context) ([]schema.CollectionInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	return append([]schema.CollectionInfo(nil), c.collections...), nil
}

func (c *fakeConnection) CollectionExists(ctx context.Context, name string) (bool, error) {
	for _, info := range c.collections {
		if info.Name == name {
			return true, nil
		}
	}
	_, ok := c.created[name]
	return ok, nil
}

func (c *fakeConnection) CreateCollection(ctx context.Context, name string, kind schema.CollectionKind) error {
	if c.createErr != nil {
		return c.createErr
	}
	if c.created == nil {
		c.created = make(map[string]schema.CollectionKind)
	}
	c.created[name] = kind
	return nil
}

func (c *fakeConnection) EnsureIndex(ctx context.Context, collection string, index schema.IndexDefinition) error {
	if c.indexErr != nil {
		return c.indexErr
	}
	c.indexes = append(c.indexes, index)
	return nil
}

func (c *fakeConnection) Version(ctx context.Context) (string, error) {
	return "3.11.0", c.err
}

func personSchema() *schema.SchemaDefinition {
	return &schema.SchemaDefinition{
		Name:    "Person",
		Version: "1.0.0",
		Fields: []*schema.FieldDefinition{
			{Name: "name", Type: schema.FieldTypeString},
			{Name: "age", Type: schema.FieldTypeInteger},
		},
	}
}
