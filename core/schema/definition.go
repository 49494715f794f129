package schema

import (
	"encoding/json"
	"fmt"
)

// LogicalOperator for combining conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and" // All conditions must be true
	LogicalOr  LogicalOperator = "or"  // At least one condition must be true
	LogicalNot LogicalOperator = "not" // Negates the conjunction of its conditions
)

// FieldType represents the basic field types supported by the schema system.
type FieldType string

const (
	FieldTypeString   FieldType = "string"   // Text data
	FieldTypeNumber   FieldType = "number"   // Numeric data
	FieldTypeInteger  FieldType = "integer"  // Numeric data
	FieldTypeDecimal  FieldType = "decimal"  // Numeric data
	FieldTypeBoolean  FieldType = "boolean"  // True/false values
	FieldTypeArray    FieldType = "array"    // Ordered list of items
	FieldTypeSet      FieldType = "set"      // Unordered list with unique items
	FieldTypeEnum     FieldType = "enum"     // One out of a set of pre-defined items
	FieldTypeObject   FieldType = "object"   // Structured data with nested fields
	FieldTypeRecord   FieldType = "record"   // Unorganized key-value object, resolves to map[string]any
	FieldTypeDate     FieldType = "date"     // Calendar date, stored as YYYY-MM-DD
	FieldTypeDateTime FieldType = "datetime" // Instant, stored as RFC 3339 text
)

// CollectionKind distinguishes plain document collections from edge collections.
type CollectionKind string

const (
	CollectionKindDocument CollectionKind = "document"
	CollectionKindEdge     CollectionKind = "edge"
)

// IndexType represents index types for optimizing different query patterns.
type IndexType string

const (
	IndexTypePersistent IndexType = "persistent"
	IndexTypeUnique     IndexType = "unique"
	IndexTypePrimary    IndexType = "primary"
	IndexTypeFullText   IndexType = "fulltext"
)

const (
	// DefaultPrimaryKey is the document key attribute assigned by the store.
	DefaultPrimaryKey = "_key"
	// MaxNameLength is the longest collection or attribute name accepted by the store.
	MaxNameLength = 254
)

// ValueHook transforms a single field value. Prepare hooks run before a value is
// written, Convert hooks run after a value is read back.
type ValueHook func(value any) (any, error)

// FieldDefinition defines a field within a schema.
type FieldDefinition struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
	// Column is the storage attribute name. Empty means the field name is used.
	Column string `json:"column,omitempty"`
	// Required indicates if the field is mandatory.
	Required *bool `json:"required,omitempty"`
	// Default provides a value used on insert when the row object has none.
	Default any `json:"default,omitempty"`
	// Values specifies the allowed values for an 'enum' type field.
	Values []any `json:"values,omitempty"`
	// ItemsType specifies the type of items in 'array' or 'set' fields.
	ItemsType *FieldType `json:"itemsType,omitempty"`
	// Description provides a brief explanation of the field.
	Description *string `json:"description,omitempty"`
	// Unique indicates if the field must have unique values.
	Unique *bool `json:"unique,omitempty"`

	Prepare ValueHook `json:"-"`
	Convert ValueHook `json:"-"`
}

// ColumnName returns the storage attribute this field is read from and written to.
func (f *FieldDefinition) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// IsRequired reports whether the field must be present on insert.
func (f *FieldDefinition) IsRequired() bool {
	return f.Required != nil && *f.Required
}

// IndexDefinition defines an index for optimizing queries or enforcing uniqueness.
type IndexDefinition struct {
	Fields      []string  `json:"fields"`
	Type        IndexType `json:"type"`
	Unique      *bool     `json:"unique,omitempty"`
	Description *string   `json:"description,omitempty"`
	Name        string    `json:"name"`
}

// IsUnique reports whether the index enforces uniqueness.
func (i IndexDefinition) IsUnique() bool {
	return i.Type == IndexTypeUnique || (i.Unique != nil && *i.Unique)
}

// SchemaDefinition describes one collection. Fields are ordered and that order is
// the default selection order for reads.
type SchemaDefinition struct {
	Name        string             `json:"name"`
	Kind        CollectionKind     `json:"kind,omitempty"`
	Version     string             `json:"version"`
	Description *string            `json:"description,omitempty"`
	PrimaryKey  string             `json:"primaryKey,omitempty"`
	Fields      []*FieldDefinition `json:"fields"`
	Indexes     []IndexDefinition  `json:"indexes,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
}

// FindField returns the field with the given logical name, or nil.
func (s *SchemaDefinition) FindField(name string) *FieldDefinition {
	for _, field := range s.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// FindColumn returns the field stored under the given attribute, or nil.
func (s *SchemaDefinition) FindColumn(column string) *FieldDefinition {
	for _, field := range s.Fields {
		if field.ColumnName() == column {
			return field
		}
	}
	return nil
}

// PrimaryKeyColumn returns the attribute holding the document key.
func (s *SchemaDefinition) PrimaryKeyColumn() string {
	if s.PrimaryKey != "" {
		return s.PrimaryKey
	}
	return DefaultPrimaryKey
}

// PrimaryKeyField returns the descriptor of the key attribute. Schemas rarely
// declare `_key` explicitly, so a string descriptor is synthesized when absent.
func (s *SchemaDefinition) PrimaryKeyField() *FieldDefinition {
	column := s.PrimaryKeyColumn()
	if field := s.FindColumn(column); field != nil {
		return field
	}
	return &FieldDefinition{Name: column, Type: FieldTypeString}
}

// ColumnIndexes returns the secondary indexes the store must maintain for the
// schema, with field names resolved to storage columns. Unique fields add a
// unique single-column index of their own. Primary indexes are skipped since
// the store keeps one on the key attribute.
func (s *SchemaDefinition) ColumnIndexes() ([]IndexDefinition, error) {
	indexes := make([]IndexDefinition, 0, len(s.Indexes))
	covered := make(map[string]struct{})
	for _, index := range s.Indexes {
		if index.Type == IndexTypePrimary {
			continue
		}
		if len(index.Fields) == 0 {
			return nil, fmt.Errorf("index '%s' has no fields", index.Name)
		}
		resolved := index
		resolved.Fields = make([]string, len(index.Fields))
		for i, name := range index.Fields {
			column, err := s.indexColumn(name)
			if err != nil {
				return nil, fmt.Errorf("index '%s': %w", index.Name, err)
			}
			resolved.Fields[i] = column
		}
		if index.Type == IndexTypeFullText && len(resolved.Fields) != 1 {
			return nil, fmt.Errorf("fulltext index '%s' must cover exactly one field", index.Name)
		}
		if resolved.Type == "" {
			resolved.Type = IndexTypePersistent
		}
		if resolved.IsUnique() && len(resolved.Fields) == 1 {
			covered[resolved.Fields[0]] = struct{}{}
		}
		indexes = append(indexes, resolved)
	}

	for _, field := range s.Fields {
		if field.Unique == nil || !*field.Unique {
			continue
		}
		column := field.ColumnName()
		if _, ok := covered[column]; ok || column == s.PrimaryKeyColumn() {
			continue
		}
		indexes = append(indexes, IndexDefinition{
			Name:   "idx_" + column + "_unique",
			Type:   IndexTypeUnique,
			Fields: []string{column},
		})
	}
	return indexes, nil
}

func (s *SchemaDefinition) indexColumn(name string) (string, error) {
	if field := s.FindField(name); field != nil {
		return field.ColumnName(), nil
	}
	if field := s.FindColumn(name); field != nil {
		return field.ColumnName(), nil
	}
	if name == s.PrimaryKeyColumn() {
		return name, nil
	}
	return "", fmt.Errorf("unknown field '%s'", name)
}

// CollectionKind returns the kind of collection backing the schema.
func (s *SchemaDefinition) CollectionKind() CollectionKind {
	if s.Kind == "" {
		return CollectionKindDocument
	}
	return s.Kind
}

// Validate checks the structural invariants of the definition itself.
func (s *SchemaDefinition) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema must define a collection name")
	}
	if len(s.Name) > MaxNameLength {
		return fmt.Errorf("collection name '%s' exceeds %d characters", s.Name, MaxNameLength)
	}
	switch s.CollectionKind() {
	case CollectionKindDocument, CollectionKindEdge:
	default:
		return fmt.Errorf("unknown collection kind '%s'", s.Kind)
	}

	names := make(map[string]struct{}, len(s.Fields))
	columns := make(map[string]struct{}, len(s.Fields))
	for i, field := range s.Fields {
		if field == nil {
			return fmt.Errorf("field at position %d is nil", i)
		}
		if field.Name == "" {
			return fmt.Errorf("field at position %d has no name", i)
		}
		if _, dup := names[field.Name]; dup {
			return fmt.Errorf("duplicate field '%s'", field.Name)
		}
		if _, dup := columns[field.ColumnName()]; dup {
			return fmt.Errorf("duplicate column '%s'", field.ColumnName())
		}
		names[field.Name] = struct{}{}
		columns[field.ColumnName()] = struct{}{}
	}
	return nil
}

// ParseSchema decodes and validates a JSON schema definition.
func ParseSchema(data []byte) (*SchemaDefinition, error) {
	var sc SchemaDefinition
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema '%s': %w", sc.Name, err)
	}
	return &sc, nil
}

// Issue represents a validation or operational issue.
type Issue struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Path        string `json:"path,omitempty"`
	Severity    string `json:"severity,omitempty"` // e.g., "error", "warning"
	Description string `json:"description,omitempty"`
}

type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// CollectionInfo describes a collection found by introspection.
type CollectionInfo struct {
	Name   string         `json:"name"`
	Kind   CollectionKind `json:"kind"`
	System bool           `json:"system,omitempty"`
}

// Document is the store's native record shape: an unordered attribute map.
type Document map[string]any
