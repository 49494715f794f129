package query

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"sync"
	"time"

	"github.com/asaidimu/go-arangoql/core/schema"
	"go.uber.org/zap"
)

// Converter turns a raw store value into the Go value handed to callers.
// It is never called with nil.
type Converter func(value any, field *schema.FieldDefinition) (any, error)

// ResultDecoder maps document-shaped results back onto the ordered field list
// a query selected, then runs value converters over each row.
type ResultDecoder struct {
	converters map[schema.FieldType]Converter
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewResultDecoder creates a decoder with the default converters registered.
func NewResultDecoder(logger *zap.Logger) *ResultDecoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &ResultDecoder{
		converters: make(map[schema.FieldType]Converter),
		logger:     logger,
	}
	maps.Copy(d.converters, DefaultConverters())
	return d
}

// DefaultConverters returns the converters every decoder starts with.
func DefaultConverters() map[schema.FieldType]Converter {
	return map[schema.FieldType]Converter{
		schema.FieldTypeDate:     convertTemporal(time.DateOnly, time.RFC3339Nano),
		schema.FieldTypeDateTime: convertTemporal(time.RFC3339Nano, time.DateOnly),
		schema.FieldTypeInteger:  convertInteger,
		schema.FieldTypeNumber:   convertNumber,
		schema.FieldTypeDecimal:  convertNumber,
		schema.FieldTypeBoolean:  convertBoolean,
	}
}

// RegisterConverter registers a converter for every field of the given type.
func (d *ResultDecoder) RegisterConverter(fieldType schema.FieldType, fn Converter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.converters[fieldType] = fn
	d.logger.Info("Registered result converter", zap.String("type", string(fieldType)))
}

// RegisterConverters registers multiple converters from a map.
func (d *ResultDecoder) RegisterConverters(converters map[schema.FieldType]Converter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for fieldType, fn := range converters {
		d.converters[fieldType] = fn
		d.logger.Info("Registered result converter", zap.String("type", string(fieldType)))
	}
}

// Rows lazily decodes every element of every batch. Iteration stops at the
// first error. When decoding fails the batch sequence is abandoned before the
// error is yielded, so the cursor behind it is already released.
func (d *ResultDecoder) Rows(batches iter.Seq2[Batch, error], fields []*schema.FieldDefinition) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		var failure error
	scan:
		for batch, err := range batches {
			if err != nil {
				failure = err
				break
			}
			for _, element := range batch {
				row, err := d.Decode(element, fields)
				if err != nil {
					failure = err
					break scan
				}
				if !yield(row, nil) {
					return
				}
			}
		}
		if failure != nil {
			yield(nil, failure)
		}
	}
}

// Decode reconstructs one row from one returned element. Documents are looked
// up by column name so attribute order never matters; missing attributes
// decode to nil. A scalar element is only accepted for a single field.
func (d *ResultDecoder) Decode(element any, fields []*schema.FieldDefinition) (Row, error) {
	row := make(Row, len(fields))

	switch doc := element.(type) {
	case map[string]any:
		for i, field := range fields {
			row[i] = doc[field.ColumnName()]
		}
	case schema.Document:
		for i, field := range fields {
			row[i] = doc[field.ColumnName()]
		}
	default:
		if len(fields) != 1 {
			return nil, fmt.Errorf("cannot decode %T into %d columns", element, len(fields))
		}
		row[0] = element
	}

	if err := d.convert(row, fields); err != nil {
		return nil, err
	}
	return row, nil
}

// convert applies converters in field order. A field's own hook wins over the
// converter registered for its type.
func (d *ResultDecoder) convert(row Row, fields []*schema.FieldDefinition) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for i, field := range fields {
		if row[i] == nil {
			continue
		}
		var err error
		if field.Convert != nil {
			row[i], err = field.Convert(row[i])
		} else if fn, ok := d.converters[field.Type]; ok {
			row[i], err = fn(row[i], field)
		}
		if err != nil {
			return fmt.Errorf("failed to convert column '%s': %w", field.ColumnName(), err)
		}
	}
	return nil
}

// ToDocument zips a decoded row back into a document keyed by field name.
func ToDocument(row Row, fields []*schema.FieldDefinition) schema.Document {
	doc := make(schema.Document, len(fields))
	for i, field := range fields {
		if i < len(row) {
			doc[field.Name] = row[i]
		}
	}
	return doc
}

func convertTemporal(layouts ...string) Converter {
	return func(value any, field *schema.FieldDefinition) (any, error) {
		str, ok := value.(string)
		if !ok {
			return value, nil
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, str); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("invalid %s value %q", field.Type, str)
	}
}

func convertInteger(value any, field *schema.FieldDefinition) (any, error) {
	switch val := value.(type) {
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("non-integral value %v for integer field '%s'", val, field.Name)
		}
		return int64(val), nil
	case json.Number:
		return val.Int64()
	case int:
		return int64(val), nil
	default:
		return value, nil
	}
}

func convertNumber(value any, field *schema.FieldDefinition) (any, error) {
	switch val := value.(type) {
	case json.Number:
		return val.Float64()
	case int64:
		return float64(val), nil
	case int:
		return float64(val), nil
	default:
		return value, nil
	}
}

func convertBoolean(value any, field *schema.FieldDefinition) (any, error) {
	switch val := value.(type) {
	case float64:
		return val != 0, nil
	case int64:
		return val != 0, nil
	default:
		return value, nil
	}
}
