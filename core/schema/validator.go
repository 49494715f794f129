// Package schema provides the model declarations shared by the compiler and the
// execution bridge, plus a Validator that checks row documents against them
// before they are written.
package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// systemAttributes are managed by the store and always accepted on documents.
var systemAttributes = map[string]struct{}{
	"_key":  {},
	"_id":   {},
	"_rev":  {},
	"_from": {},
	"_to":   {},
}

// Validator checks documents against a schema. It reports every issue it finds
// rather than stopping at the first one.
type Validator struct {
	schema *SchemaDefinition
	issues []Issue
}

// NewValidator creates a new Validator instance for a given schema.
// The returned validator can be reused for multiple validation operations.
func NewValidator(schema *SchemaDefinition) *Validator {
	return &Validator{
		schema: schema,
		issues: make([]Issue, 0),
	}
}

// Validate checks if a given document conforms to the validator's schema.
// Documents are keyed by storage column. The `loose` parameter ignores missing
// required fields.
func (v *Validator) Validate(data map[string]any, loose bool) (bool, []Issue) {
	v.issues = make([]Issue, 0)

	v.validateData(data)

	finalIssues := v.issues
	if loose {
		filteredIssues := make([]Issue, 0, len(v.issues))
		for _, issue := range v.issues {
			if issue.Code != "REQUIRED_FIELD_MISSING" {
				filteredIssues = append(filteredIssues, issue)
			}
		}
		finalIssues = filteredIssues
	}

	return len(finalIssues) == 0, finalIssues
}

func (v *Validator) validateData(data map[string]any) {
	for _, fieldDef := range v.schema.Fields {
		column := fieldDef.ColumnName()
		value, exists := data[column]

		if !exists {
			if fieldDef.IsRequired() && fieldDef.Default == nil {
				v.addIssue("REQUIRED_FIELD_MISSING", fmt.Sprintf("Required field '%s' is missing", fieldDef.Name), column)
			}
			continue
		}

		v.validateFieldValue(value, fieldDef, column)
	}

	for key := range data {
		if _, ok := systemAttributes[key]; ok {
			continue
		}
		if v.schema.FindColumn(key) == nil {
			v.addIssue("UNEXPECTED_FIELD", fmt.Sprintf("Unexpected field '%s' not defined in schema", key), key)
		}
	}
}

func (v *Validator) validateFieldValue(value any, fieldDef *FieldDefinition, path string) {
	if value == nil {
		if fieldDef.IsRequired() {
			v.addIssue("NULL_VALUE", "Field cannot be null", path)
		}
		return
	}

	if coerced, ok := coerceValue(value, fieldDef.Type); ok {
		value = coerced
	}
	if !v.validateFieldType(value, fieldDef.Type, path) {
		return
	}

	switch fieldDef.Type {
	case FieldTypeEnum:
		if len(fieldDef.Values) > 0 {
			v.validateEnumValue(value, fieldDef.Values, path)
		}
	case FieldTypeArray, FieldTypeSet:
		v.validateArrayField(value, fieldDef, path)
	}
}

// coerceValue attempts to convert a textual value to the expected type.
func coerceValue(value any, expectedType FieldType) (any, bool) {
	str, ok := value.(string)
	if !ok {
		return value, false
	}

	switch expectedType {
	case FieldTypeBoolean:
		switch strings.ToLower(str) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	case FieldTypeInteger:
		if intVal, err := strconv.ParseInt(str, 10, 64); err == nil {
			return intVal, true
		}
	case FieldTypeNumber, FieldTypeDecimal:
		if floatVal, err := strconv.ParseFloat(str, 64); err == nil {
			return floatVal, true
		}
	}
	return value, false
}

func (v *Validator) validateFieldType(value any, expectedType FieldType, path string) bool {
	switch expectedType {
	case FieldTypeString:
		if _, ok := value.(string); !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected string, got %T", value), path)
			return false
		}
	case FieldTypeNumber, FieldTypeDecimal:
		if !isNumericType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected number, got %T", value), path)
			return false
		}
	case FieldTypeInteger:
		if !isIntegerType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected integer, got %T", value), path)
			return false
		}
	case FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected boolean, got %T", value), path)
			return false
		}
	case FieldTypeArray, FieldTypeSet:
		if !isArrayType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected array, got %T", value), path)
			return false
		}
	case FieldTypeObject, FieldTypeRecord:
		if !isObjectType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected object, got %T", value), path)
			return false
		}
	case FieldTypeDate, FieldTypeDateTime:
		if !isTemporalType(value, expectedType) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected %s, got %v", expectedType, value), path)
			return false
		}
	}
	return true
}

func (v *Validator) validateEnumValue(value any, allowedValues []any, path string) {
	for _, allowedValue := range allowedValues {
		if reflect.DeepEqual(value, allowedValue) {
			return
		}
	}
	v.addIssue("ENUM_VIOLATION", fmt.Sprintf("Value must be one of: %v", allowedValues), path)
}

func (v *Validator) validateArrayField(value any, fieldDef *FieldDefinition, path string) {
	rv := reflect.ValueOf(value)
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}

	if fieldDef.ItemsType != nil {
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			itemFieldDef := &FieldDefinition{Type: *fieldDef.ItemsType}
			v.validateFieldValue(item, itemFieldDef, itemPath)
		}
	}

	if fieldDef.Type == FieldTypeSet {
		seen := make(map[string]bool)
		for i, item := range items {
			key := fmt.Sprintf("%v", item)
			if seen[key] {
				v.addIssue("SET_DUPLICATE", fmt.Sprintf("Duplicate value found in set at index %d", i), path)
			}
			seen[key] = true
		}
	}
}

func isNumericType(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func isIntegerType(value any) bool {
	switch val := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return val == float64(int64(val))
	}
	return false
}

func isArrayType(value any) bool {
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
}

func isObjectType(value any) bool {
	switch value.(type) {
	case map[string]any, Document:
		return true
	}
	return false
}

func isTemporalType(value any, expectedType FieldType) bool {
	switch val := value.(type) {
	case time.Time:
		return true
	case string:
		layout := time.RFC3339
		if expectedType == FieldTypeDate {
			layout = time.DateOnly
		}
		_, err := time.Parse(layout, val)
		return err == nil
	}
	return false
}

// addIssue adds a new validation issue to the validator's list of issues.
func (v *Validator) addIssue(code, message, path string) {
	v.issues = append(v.issues, Issue{
		Code:     code,
		Message:  message,
		Path:     path,
		Severity: "error",
	})
}
