package persistence_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-arangoql/arangodb"
	"github.com/asaidimu/go-arangoql/core/persistence"
	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCursor struct {
	batches []query.Batch
	closed  bool
}

func (c *memCursor) NextBatch(ctx context.Context) (query.Batch, error) {
	if len(c.batches) == 0 {
		return nil, io.EOF
	}
	b := c.batches[0]
	c.batches = c.batches[1:]
	return b, nil
}

func (c *memCursor) NextSingle(ctx context.Context) (any, error) {
	for len(c.batches) > 0 {
		if len(c.batches[0]) > 0 {
			e := c.batches[0][0]
			c.batches[0] = c.batches[0][1:]
			return e, nil
		}
		c.batches = c.batches[1:]
	}
	return nil, io.EOF
}

func (c *memCursor) Close() error {
	c.closed = true
	return nil
}

// memConnection answers reads with fixed batches and inserts with the "name"
// of every inserted document.
type memConnection struct {
	mu      sync.Mutex
	batches []query.Batch
	err     error
	queries []string
	created []string
}

func (c *memConnection) ExecuteQuery(ctx context.Context, aql string, bindVars map[string]any) (query.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, aql)
	if c.err != nil {
		return nil, c.err
	}
	if strings.Contains(aql, " INSERT ") {
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
		return &memCursor{batches: []query.Batch{batch}}, nil
	}
	return &memCursor{batches: append([]query.Batch(nil), c.batches...)}, nil
}

func (c *memConnection) Collections(ctx context.Context) ([]schema.CollectionInfo, error) {
	return []schema.CollectionInfo{{Name: "Person", Kind: schema.CollectionKindDocument}}, c.err
}

func (c *memConnection) CollectionExists(ctx context.Context, name string) (bool, error) {
	for _, n := range c.created {
		if n == name {
			return true, nil
		}
	}
	return false, c.err
}

func (c *memConnection) CreateCollection(ctx context.Context, name string, kind schema.CollectionKind) error {
	if c.err != nil {
		return c.err
	}
	c.created = append(c.created, name)
	return nil
}

func (c *memConnection) EnsureIndex(ctx context.Context, collection string, index schema.IndexDefinition) error {
	return nil
}

func (c *memConnection) Version(ctx context.Context) (string, error) {
	return "3.11.0", nil
}

func (c *memConnection) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queries)
}

func required() *bool {
	b := true
	return &b
}

func person() *schema.SchemaDefinition {
	return &schema.SchemaDefinition{
		Name:    "Person",
		Version: "1.0.0",
		Fields: []*schema.FieldDefinition{
			{Name: "name", Type: schema.FieldTypeString, Required: required()},
			{Name: "age", Type: schema.FieldTypeInteger},
		},
	}
}

func newExecutor(t *testing.T, conn *memConnection, opts *persistence.ExecutorOptions) *persistence.Executor {
	t.Helper()
	interactor := arangodb.NewArangoInteractor(conn, nil, nil, arangodb.DefaultFeatures())
	executor, err := persistence.NewExecutor(interactor, nil, opts)
	require.NoError(t, err)
	return executor
}

func eq(field string, value any) *query.QueryFilter {
	return &query.QueryFilter{Condition: &query.FilterCondition{Field: field, Operator: query.ComparisonOperatorEq, Value: value}}
}

func TestNewExecutor(t *testing.T) {
	_, err := persistence.NewExecutor(nil, nil, nil)
	assert.Error(t, err)
}

func TestExecutor_Query(t *testing.T) {
	ctx := context.Background()
	conn := &memConnection{batches: []query.Batch{
		{map[string]any{"name": "Eggs", "age": float64(31)}},
		{map[string]any{"age": float64(7), "name": "Ham"}},
	}}
	executor := newExecutor(t, conn, nil)

	rows, err := executor.Query(ctx, person(), &query.QueryDSL{})
	require.NoError(t, err)

	var got []query.Row
	for row, err := range rows {
		require.NoError(t, err)
		got = append(got, row)
	}
	assert.Equal(t, []query.Row{{"Eggs", int64(31)}, {"Ham", int64(7)}}, got)
	assert.Equal(t, "FOR item IN Person RETURN {name: item.name, age: item.age}", conn.queries[0])
}

func TestExecutor_QueryEmptyResultSet(t *testing.T) {
	conn := &memConnection{}
	executor := newExecutor(t, conn, nil)

	dsl := &query.QueryDSL{Filters: &query.QueryFilter{Condition: &query.FilterCondition{
		Field: "name", Operator: query.ComparisonOperatorIn, Value: []string{},
	}}}
	rows, err := executor.Query(context.Background(), person(), dsl)
	require.NoError(t, err)
	for range rows {
		t.Fatal("expected no rows")
	}
	assert.Equal(t, 0, conn.calls())
}

func TestExecutor_QueryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("compilation", func(t *testing.T) {
		executor := newExecutor(t, &memConnection{}, nil)
		_, err := executor.Query(ctx, person(), &query.QueryDSL{Filters: eq("missing", 1)})
		assert.ErrorIs(t, err, query.ErrUnknownField)
	})

	t.Run("store", func(t *testing.T) {
		executor := newExecutor(t, &memConnection{err: errors.New("unreachable")}, nil)
		_, err := executor.Query(ctx, person(), &query.QueryDSL{})
		assert.True(t, query.IsStoreError(err))
	})

	t.Run("nil schema", func(t *testing.T) {
		executor := newExecutor(t, &memConnection{}, nil)
		_, err := executor.Query(ctx, nil, &query.QueryDSL{})
		assert.Error(t, err)
	})
}

func TestExecutor_DocumentsAndCollect(t *testing.T) {
	conn := &memConnection{batches: []query.Batch{{map[string]any{"name": "Eggs", "age": float64(31)}}}}
	executor := newExecutor(t, conn, nil)

	docs, err := executor.Documents(context.Background(), person(), &query.QueryDSL{})
	require.NoError(t, err)

	type Person struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	people, err := persistence.Collect[Person](docs)
	require.NoError(t, err)
	assert.Equal(t, []Person{{Name: "Eggs", Age: 31}}, people)
}

func TestExecutor_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		conn := &memConnection{batches: []query.Batch{{map[string]any{"name": "Eggs", "age": float64(31)}}}}
		row, err := newExecutor(t, conn, nil).Get(ctx, person(), &query.QueryDSL{Filters: eq("name", "Eggs")})
		require.NoError(t, err)
		assert.Equal(t, query.Row{"Eggs", int64(31)}, row)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := newExecutor(t, &memConnection{}, nil).Get(ctx, person(), &query.QueryDSL{})
		assert.ErrorIs(t, err, persistence.ErrDocumentNotFound)
	})
}

func TestExecutor_Exists(t *testing.T) {
	ctx := context.Background()

	conn := &memConnection{batches: []query.Batch{{map[string]any{"_key": "1"}}}}
	ok, err := newExecutor(t, conn, nil).Exists(ctx, person(), &query.QueryDSL{Filters: eq("age", 31)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "FOR item IN Person FILTER item.age == @p0 RETURN {_key: item._key} LIMIT 1", conn.queries[0])

	ok, err = newExecutor(t, &memConnection{}, nil).Exists(ctx, person(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecutor_ExistsWindow(t *testing.T) {
	ctx := context.Background()
	batches := []query.Batch{{map[string]any{"_key": "1"}}}

	tests := []struct {
		name     string
		low      int
		high     *int
		expected bool
		query    string
	}{
		{"empty window", 0, query.IntPtr(0), false, ""},
		{"inverted window", 5, query.IntPtr(3), false, ""},
		{"window of one", 2, query.IntPtr(3), true, "FOR item IN Person RETURN {_key: item._key} LIMIT 1, 2"},
		{"wide window", 2, query.IntPtr(10), true, "FOR item IN Person RETURN {_key: item._key} LIMIT 1, 2"},
		{"offset only", 4, nil, true, "FOR item IN Person RETURN {_key: item._key} LIMIT 1, 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &memConnection{batches: batches}
			ok, err := newExecutor(t, conn, nil).Exists(ctx, person(), &query.QueryDSL{LowMark: tt.low, HighMark: tt.high})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
			if tt.query == "" {
				assert.Equal(t, 0, conn.calls())
				return
			}
			require.Equal(t, 1, conn.calls())
			assert.Equal(t, tt.query, conn.queries[0])
		})
	}
}

func TestExecutor_Insert(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		objects  []any
		expected []any
		wantErr  bool
	}{
		{
			name:     "documents and maps",
			objects:  []any{schema.Document{"name": "Eggs", "age": 31}, map[string]any{"name": "Ham"}},
			expected: []any{"Eggs", "Ham"},
		},
		{
			name: "structs",
			objects: []any{struct {
				Name string `json:"name"`
				Age  int    `json:"age"`
			}{Name: "Spam", Age: 2}},
			expected: []any{"Spam"},
		},
		{
			name:    "missing required field",
			objects: []any{map[string]any{"age": 4}},
			wantErr: true,
		},
		{
			name:    "wrong type",
			objects: []any{map[string]any{"name": "Eggs", "age": "old"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &memConnection{}
			keys, err := newExecutor(t, conn, nil).Insert(ctx, person(), tt.objects)
			if tt.wantErr {
				var verr *persistence.ValidationError
				assert.ErrorAs(t, err, &verr)
				assert.Equal(t, 0, conn.calls())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, keys)
			assert.Equal(t, 1, conn.calls())
		})
	}
}

func TestExecutor_InsertWithoutValidation(t *testing.T) {
	conn := &memConnection{}
	executor := newExecutor(t, conn, &persistence.ExecutorOptions{})
	keys, err := executor.Insert(context.Background(), person(), []any{map[string]any{"age": 4, "name": "Eggs"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"Eggs"}, keys)

	keys, err = executor.Insert(context.Background(), person(), nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, 1, conn.calls())
}

func TestExecutor_LooseValidation(t *testing.T) {
	executor := newExecutor(t, &memConnection{}, &persistence.ExecutorOptions{ValidateInserts: true, LooseValidation: true})
	_, err := executor.Insert(context.Background(), person(), []any{map[string]any{"age": 4}})
	assert.NoError(t, err)
}

func TestExecutor_EnsureCollection(t *testing.T) {
	conn := &memConnection{}
	executor := newExecutor(t, conn, nil)

	created, err := executor.EnsureCollection(context.Background(), person())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = executor.EnsureCollection(context.Background(), person())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{"Person"}, conn.created)

	infos, err := executor.Collections(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestExecutor_Events(t *testing.T) {
	conn := &memConnection{batches: []query.Batch{{map[string]any{"name": "Eggs", "age": float64(31)}}}}
	executor := newExecutor(t, conn, nil)

	var mu sync.Mutex
	var received []persistence.QueryEvent
	record := func(ctx context.Context, event persistence.QueryEvent) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	}

	label := "audit"
	id := executor.RegisterSubscription(persistence.RegisterSubscriptionOptions{
		Event: persistence.QuerySuccess, Label: &label, Callback: record,
	})
	failedID := executor.RegisterSubscription(persistence.RegisterSubscriptionOptions{
		Event: persistence.InsertFailed, Callback: record,
	})
	assert.Len(t, executor.Subscriptions(), 2)

	rows, err := executor.Query(context.Background(), person(), &query.QueryDSL{})
	require.NoError(t, err)
	for _, err := range rows {
		require.NoError(t, err)
	}
	_, err = executor.Insert(context.Background(), person(), []any{map[string]any{"age": 1}})
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	byType := map[persistence.QueryEventType]persistence.QueryEvent{}
	for _, event := range received {
		byType[event.Type] = event
	}
	mu.Unlock()

	success := byType[persistence.QuerySuccess]
	require.NotNil(t, success.Rows)
	assert.Equal(t, 1, *success.Rows)
	assert.Equal(t, "Person", success.Collection)
	assert.NotEmpty(t, success.QueryID)

	failed := byType[persistence.InsertFailed]
	require.NotNil(t, failed.Error)
	assert.NotEmpty(t, failed.Issues)

	executor.UnregisterSubscription(id)
	executor.UnregisterSubscription(failedID)
	assert.Empty(t, executor.Subscriptions())
}

func TestCollection(t *testing.T) {
	ctx := context.Background()
	conn := &memConnection{batches: []query.Batch{{map[string]any{"name": "Eggs", "age": float64(31)}}}}
	executor := newExecutor(t, conn, nil)

	_, err := persistence.NewCollection(&schema.SchemaDefinition{}, executor)
	assert.Error(t, err)

	people, err := persistence.NewCollection(person(), executor)
	require.NoError(t, err)
	assert.Equal(t, "Person", people.Name())

	created, err := people.Ensure(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	key, err := people.Create(ctx, map[string]any{"name": "Spam"})
	require.NoError(t, err)
	assert.Equal(t, "Spam", key)

	docs, err := people.All(ctx, &query.QueryDSL{})
	require.NoError(t, err)
	assert.Equal(t, []schema.Document{{"name": "Eggs", "age": int64(31)}}, docs)

	doc, err := people.First(ctx, &query.QueryDSL{Filters: eq("name", "Eggs")})
	require.NoError(t, err)
	assert.Equal(t, schema.Document{"name": "Eggs", "age": int64(31)}, doc)

	ok, err := people.Exists(ctx, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	result := people.Validate(map[string]any{"name": 3}, false)
	assert.False(t, result.Valid)
}
