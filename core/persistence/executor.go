package persistence

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
	"github.com/asaidimu/go-arangoql/utils"
	"github.com/asaidimu/go-events"
	"go.uber.org/zap"
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// ValidateInserts checks every row object against its schema before
	// anything is compiled.
	ValidateInserts bool
	// LooseValidation tolerates missing required fields.
	LooseValidation bool
}

// Executor orchestrates database operations: it compiles descriptors with the
// interactor's generators, executes them and decodes what comes back.
type Executor struct {
	interactor    DatabaseInteractor
	decoder       *query.ResultDecoder
	options       ExecutorOptions
	logger        *zap.Logger
	bus           *events.TypedEventBus[QueryEvent]
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

// NewExecutor creates an Executor over interactor.
func NewExecutor(interactor DatabaseInteractor, logger *zap.Logger, options *ExecutorOptions) (*Executor, error) {
	if interactor == nil {
		return nil, fmt.Errorf("DatabaseInteractor cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = &ExecutorOptions{ValidateInserts: true}
	}
	bus, err := events.NewTypedEventBus[QueryEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	return &Executor{
		interactor:    interactor,
		decoder:       query.NewResultDecoder(logger),
		options:       *options,
		logger:        logger,
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}, nil
}

// RegisterConverter registers a result converter for every field of a type.
func (e *Executor) RegisterConverter(fieldType schema.FieldType, fn query.Converter) {
	e.decoder.RegisterConverter(fieldType, fn)
}

// RegisterConverters registers multiple result converters from a map.
func (e *Executor) RegisterConverters(converters map[schema.FieldType]query.Converter) {
	e.decoder.RegisterConverters(converters)
}

func (e *Executor) generator(sc *schema.SchemaDefinition) (query.QueryGenerator, error) {
	if sc == nil {
		return nil, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	gen, err := e.interactor.QueryGeneratorFactory().CreateGenerator(sc)
	if err != nil {
		return nil, fmt.Errorf("could not get a query generator instance: %w", err)
	}
	return gen, nil
}

// CompileSelect compiles a read. A descriptor that matches nothing compiles to
// nil without error.
func (e *Executor) CompileSelect(sc *schema.SchemaDefinition, dsl *query.QueryDSL) (*query.CompiledQuery, error) {
	gen, err := e.generator(sc)
	if err != nil {
		return nil, err
	}
	compiled, err := gen.GenerateSelect(dsl)
	if query.IsEmptyResultSet(err) {
		e.logger.Debug("Query matches nothing, no statement compiled", zap.String("collection", sc.Name))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate AQL query: %w", err)
	}
	return compiled, nil
}

// CompileInsert compiles a bulk insert of objects. No objects compile to nil
// without error.
func (e *Executor) CompileInsert(sc *schema.SchemaDefinition, objects []any) (*query.CompiledQuery, error) {
	gen, err := e.generator(sc)
	if err != nil {
		return nil, err
	}
	compiled, err := gen.GenerateInsert(&query.QueryDSL{Objects: objects})
	if query.IsEmptyResultSet(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate AQL insert: %w", err)
	}
	return compiled, nil
}

// Query runs a read and returns its rows lazily, in selection order.
// Compilation and submission errors are returned directly; fetch and decode
// errors end the sequence. The sequence must be ranged over once so the
// cursor behind it is released.
func (e *Executor) Query(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL) (iter.Seq2[query.Row, error], error) {
	rows, _, err := e.query(ctx, "query", sc, dsl)
	return rows, err
}

// Documents runs a read like Query and zips every row into a document keyed
// by field name.
func (e *Executor) Documents(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL) (iter.Seq2[schema.Document, error], error) {
	rows, fields, err := e.query(ctx, "documents", sc, dsl)
	if err != nil {
		return nil, err
	}
	return func(yield func(schema.Document, error) bool) {
		for row, err := range rows {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(query.ToDocument(row, fields), nil) {
				return
			}
		}
	}, nil
}

func (e *Executor) query(ctx context.Context, operation string, sc *schema.SchemaDefinition, dsl *query.QueryDSL) (iter.Seq2[query.Row, error], []*schema.FieldDefinition, error) {
	startTime := time.Now()
	collection := ""
	if sc != nil {
		collection = sc.Name
	}
	e.emitEvent(createEvent(QueryStart, operation, collection, dsl, nil, nil, nil, startTime))
	fail := func(err error) error {
		errStr := err.Error()
		e.emitEvent(createEvent(QueryFailed, operation, collection, dsl, nil, &errStr, nil, startTime))
		return err
	}

	compiled, err := e.CompileSelect(sc, dsl)
	if err != nil {
		return nil, nil, fail(err)
	}
	result, err := e.interactor.Execute(ctx, compiled, query.ResultMulti)
	if err != nil {
		return nil, nil, fail(err)
	}

	var fields []*schema.FieldDefinition
	if compiled != nil {
		fields = compiled.Fields
	}
	decoded := e.decoder.Rows(result.Batches, fields)

	return func(yield func(query.Row, error) bool) {
		count := 0
		for row, err := range decoded {
			if err != nil {
				fail(err)
				yield(nil, err)
				return
			}
			count++
			if !yield(row, nil) {
				break
			}
		}
		event := createEvent(QuerySuccess, operation, collection, dsl, nil, nil, nil, startTime)
		event.Rows = &count
		event.QueryID = result.QueryID
		if compiled != nil {
			event.Query = compiled.Query
			event.Params = compiled.Params
		}
		e.emitEvent(event)
	}, fields, nil
}

// Get returns the first row matched by dsl, or ErrDocumentNotFound.
func (e *Executor) Get(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL) (query.Row, error) {
	if sc == nil {
		return nil, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	result, err := e.withEventEmission("get", sc.Name, QueryStart, QuerySuccess, QueryFailed, dsl, func() (any, error) {
		compiled, err := e.CompileSelect(sc, dsl)
		if err != nil {
			return nil, err
		}
		exec, err := e.interactor.Execute(ctx, compiled, query.ResultSingle)
		if err != nil {
			return nil, err
		}
		if exec.Single == nil {
			return nil, fmt.Errorf("%s: %w", sc.Name, ErrDocumentNotFound)
		}
		return e.decoder.Decode(exec.Single, compiled.Fields)
	})
	if err != nil {
		return nil, err
	}
	return result.(query.Row), nil
}

// Exists reports whether dsl matches at least one document. Only the key of a
// single document is fetched.
func (e *Executor) Exists(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL) (bool, error) {
	check := query.QueryDSL{}
	if dsl != nil {
		check = *dsl
	}
	if sc == nil {
		return false, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	check.Projection = &query.ProjectionConfiguration{
		Include: []query.ProjectionField{{Name: sc.PrimaryKeyColumn()}},
	}
	high := check.LowMark + 1
	if check.HighMark != nil {
		if *check.HighMark <= check.LowMark {
			return false, nil
		}
		high = min(*check.HighMark, high)
	}
	check.HighMark = &high

	result, err := e.withEventEmission("exists", sc.Name, QueryStart, QuerySuccess, QueryFailed, &check, func() (any, error) {
		compiled, err := e.CompileSelect(sc, &check)
		if err != nil {
			return nil, err
		}
		exec, err := e.interactor.Execute(ctx, compiled, query.ResultSingle)
		if err != nil {
			return nil, err
		}
		return exec.Single != nil, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// Insert writes objects in one round trip and returns the keys the store
// assigned, in input order. No objects means no request at all.
func (e *Executor) Insert(ctx context.Context, sc *schema.SchemaDefinition, objects []any) ([]any, error) {
	if sc == nil {
		return nil, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	result, err := e.withEventEmission("insert", sc.Name, InsertStart, InsertSuccess, InsertFailed, objects, func() (any, error) {
		if e.options.ValidateInserts {
			if err := e.validate(sc, objects); err != nil {
				return nil, err
			}
		}
		compiled, err := e.CompileInsert(sc, objects)
		if err != nil {
			return nil, err
		}
		if compiled == nil {
			return []any{}, nil
		}

		mode := query.ResultMulti
		if len(compiled.Fields) == 0 {
			mode = query.ResultNone
		}
		exec, err := e.interactor.Execute(ctx, compiled, mode)
		if err != nil {
			return nil, err
		}
		keys := make([]any, 0, len(objects))
		if mode == query.ResultNone {
			return keys, nil
		}
		for row, err := range e.decoder.Rows(exec.Batches, compiled.Fields) {
			if err != nil {
				return nil, err
			}
			keys = append(keys, row[0])
		}
		e.logger.Debug("Inserted documents", zap.String("collection", sc.Name), zap.Int("count", len(keys)))
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]any), nil
}

// validate checks every row object that can be viewed as a document.
// FieldValuer objects resolve their values lazily and are not checked.
func (e *Executor) validate(sc *schema.SchemaDefinition, objects []any) error {
	validator := schema.NewValidator(sc)
	for i, obj := range objects {
		var data map[string]any
		switch o := obj.(type) {
		case query.FieldValuer:
			continue
		case schema.Document:
			data = o
		case map[string]any:
			data = o
		case nil:
			return fmt.Errorf("object %d is nil: %w", i, query.ErrInvalidQuery)
		default:
			m, err := utils.StructToMap(obj)
			if err != nil {
				return fmt.Errorf("object %d: %w", i, err)
			}
			data = m
		}
		if ok, issues := validator.Validate(data, e.options.LooseValidation); !ok {
			return &ValidationError{Index: i, Issues: issues}
		}
	}
	return nil
}

// CreateCollection creates the collection backing sc.
func (e *Executor) CreateCollection(ctx context.Context, sc *schema.SchemaDefinition) error {
	if sc == nil {
		return fmt.Errorf("SchemaDefinition cannot be nil")
	}
	_, err := e.withEventEmission("create_collection", sc.Name, CollectionCreateStart, CollectionCreateSuccess, CollectionCreateFailed, sc, func() (any, error) {
		return nil, e.interactor.CreateCollection(ctx, sc)
	})
	return err
}

// EnsureCollection creates the collection backing sc unless it already exists.
// It reports whether a collection was created.
func (e *Executor) EnsureCollection(ctx context.Context, sc *schema.SchemaDefinition) (bool, error) {
	if sc == nil {
		return false, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	exists, err := e.interactor.CollectionExists(ctx, sc.Name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := e.CreateCollection(ctx, sc); err != nil {
		return false, err
	}
	return true, nil
}

// Collections lists the collections of the database.
func (e *Executor) Collections(ctx context.Context) ([]schema.CollectionInfo, error) {
	return e.interactor.ListCollections(ctx)
}

// Collect drains a document sequence into values of T.
func Collect[T any](docs iter.Seq2[schema.Document, error]) ([]T, error) {
	var out []T
	for doc, err := range docs {
		if err != nil {
			return nil, err
		}
		v, err := utils.MapToStruct[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
