package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaDefinition_Lookups(t *testing.T) {
	sc := &SchemaDefinition{
		Name: "Person",
		Fields: []*FieldDefinition{
			{Name: "fullName", Column: "full_name", Type: FieldTypeString},
		},
	}

	assert.Equal(t, "full_name", sc.FindField("fullName").ColumnName())
	assert.Nil(t, sc.FindField("full_name"))
	assert.Equal(t, "fullName", sc.FindColumn("full_name").Name)
	assert.Equal(t, DefaultPrimaryKey, sc.PrimaryKeyColumn())
	assert.Equal(t, FieldTypeString, sc.PrimaryKeyField().Type)
	assert.Equal(t, CollectionKindDocument, sc.CollectionKind())

	sc.PrimaryKey = "full_name"
	assert.Same(t, sc.Fields[0], sc.PrimaryKeyField())
}

func TestSchemaDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		schema  SchemaDefinition
		wantErr string
	}{
		{"valid", SchemaDefinition{Name: "a", Fields: []*FieldDefinition{{Name: "x"}}}, ""},
		{"edge", SchemaDefinition{Name: "a", Kind: CollectionKindEdge}, ""},
		{"no name", SchemaDefinition{}, "collection name"},
		{"long name", SchemaDefinition{Name: strings.Repeat("a", MaxNameLength+1)}, "exceeds"},
		{"bad kind", SchemaDefinition{Name: "a", Kind: "graph"}, "unknown collection kind"},
		{"nil field", SchemaDefinition{Name: "a", Fields: []*FieldDefinition{nil}}, "is nil"},
		{"unnamed field", SchemaDefinition{Name: "a", Fields: []*FieldDefinition{{}}}, "has no name"},
		{"duplicate field", SchemaDefinition{Name: "a", Fields: []*FieldDefinition{{Name: "x"}, {Name: "x", Column: "y"}}}, "duplicate field"},
		{"duplicate column", SchemaDefinition{Name: "a", Fields: []*FieldDefinition{{Name: "x"}, {Name: "y", Column: "x"}}}, "duplicate column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseSchema(t *testing.T) {
	sc, err := ParseSchema([]byte(`{
		"name": "Person",
		"version": "1.0.0",
		"fields": [
			{"name": "name", "type": "string", "required": true},
			{"name": "age", "type": "integer"}
		],
		"metadata": {"model_type": "graph"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Person", sc.Name)
	assert.Len(t, sc.Fields, 2)
	assert.True(t, sc.Fields[0].IsRequired())
	assert.Equal(t, "graph", sc.Metadata["model_type"])

	_, err = ParseSchema([]byte(`{"fields": []}`))
	assert.Error(t, err)
	_, err = ParseSchema([]byte(`not json`))
	assert.Error(t, err)
}

func TestSchemaDefinition_ColumnIndexes(t *testing.T) {
	unique := true
	sc := &SchemaDefinition{
		Name: "Account",
		Fields: []*FieldDefinition{
			{Name: "email", Type: FieldTypeString, Unique: &unique},
			{Name: "handle", Column: "user_handle", Type: FieldTypeString, Unique: &unique},
			{Name: "bio", Type: FieldTypeString},
		},
		Indexes: []IndexDefinition{
			{Name: "pk", Type: IndexTypePrimary, Fields: []string{"_key"}},
			{Name: "idx_handle", Fields: []string{"handle"}, Unique: &unique},
			{Name: "idx_key_bio", Fields: []string{"_key", "bio"}},
		},
	}

	indexes, err := sc.ColumnIndexes()
	require.NoError(t, err)
	assert.Equal(t, []IndexDefinition{
		{Name: "idx_handle", Type: IndexTypePersistent, Fields: []string{"user_handle"}, Unique: &unique},
		{Name: "idx_key_bio", Type: IndexTypePersistent, Fields: []string{"_key", "bio"}},
		{Name: "idx_email_unique", Type: IndexTypeUnique, Fields: []string{"email"}},
	}, indexes)
	assert.True(t, indexes[0].IsUnique())
	assert.False(t, indexes[1].IsUnique())
	assert.True(t, indexes[2].IsUnique())

	tests := []struct {
		name  string
		index IndexDefinition
	}{
		{"no fields", IndexDefinition{Name: "empty"}},
		{"unknown field", IndexDefinition{Name: "bad", Fields: []string{"missing"}}},
		{"wide fulltext", IndexDefinition{Name: "ft", Type: IndexTypeFullText, Fields: []string{"bio", "email"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := &SchemaDefinition{Name: "a", Fields: sc.Fields, Indexes: []IndexDefinition{tt.index}}
			_, err := broken.ColumnIndexes()
			assert.Error(t, err)
		})
	}
}
