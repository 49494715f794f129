// Package arangodb provides a concrete implementation of the
// persistence.DatabaseInteractor interface for ArangoDB. It compiles query
// descriptors into AQL, executes them over a Connection and manages the
// collections backing schemas.
package arangodb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/asaidimu/go-arangoql/core/persistence"
	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArangoInteractor is the execution bridge: it submits compiled statements and
// hands results back in the requested ResultMode, releasing cursors on every
// path it owns them.
type ArangoInteractor struct {
	conn                  Connection
	queryGeneratorFactory *AqlQueryGeneratorFactory
	introspection         *Introspection
	editor                *SchemaEditor
	features              Features
	logger                *zap.Logger
	options               *persistence.InteractorOptions
}

// Ensure ArangoInteractor implements the persistence.DatabaseInteractor interface.
var _ persistence.DatabaseInteractor = (*ArangoInteractor)(nil)

// DefaultInteractorOptions returns the options used when none are given.
func DefaultInteractorOptions() *persistence.InteractorOptions {
	return &persistence.InteractorOptions{
		IfNotExists:           true,
		SkipSystemCollections: true,
	}
}

// NewArangoInteractor creates a new ArangoInteractor over conn.
func NewArangoInteractor(conn Connection, logger *zap.Logger, options *persistence.InteractorOptions, features Features) *ArangoInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultInteractorOptions()
	}
	return &ArangoInteractor{
		conn:                  conn,
		queryGeneratorFactory: NewAqlQueryGeneratorFactory(features),
		introspection:         NewIntrospection(conn, logger),
		editor:                NewSchemaEditor(conn, options.IfNotExists, logger),
		features:              features,
		logger:                logger,
		options:               options,
	}
}

// QueryGeneratorFactory implements persistence.DatabaseInteractor.
func (i *ArangoInteractor) QueryGeneratorFactory() query.QueryGeneratorFactory {
	return i.queryGeneratorFactory
}

// Features returns the capabilities this interactor compiles and executes with.
func (i *ArangoInteractor) Features() Features {
	return i.features
}

// Execute implements persistence.DatabaseInteractor. Store failures are
// wrapped in a query.QueryError and never retried.
func (i *ArangoInteractor) Execute(ctx context.Context, compiled *query.CompiledQuery, mode query.ResultMode) (*query.ExecResult, error) {
	if compiled == nil {
		i.logger.Debug("Empty result set, skipping execution", zap.Stringer("mode", mode))
		return emptyResult(mode), nil
	}

	queryID := uuid.New().String()
	wrap := func(err error) error {
		qe := query.NewQueryError("execute", compiled.Collection, err)
		qe.QueryID = queryID
		qe.Query = compiled.Query
		return qe
	}

	i.logger.Debug("Executing AQL",
		zap.String("queryId", queryID),
		zap.String("aql", compiled.Query),
		zap.Any("params", compiled.Params),
		zap.Stringer("mode", mode),
	)

	cursor, err := i.conn.ExecuteQuery(ctx, compiled.Query, compiled.BindVars())
	if err != nil {
		i.logger.Error("Failed to execute AQL", zap.String("queryId", queryID), zap.Error(err), zap.String("aql", compiled.Query))
		return nil, wrap(err)
	}

	result := &query.ExecResult{QueryID: queryID}
	switch mode {
	case query.ResultCursor:
		result.Cursor = cursor
		return result, nil

	case query.ResultSingle:
		defer i.release(cursor, queryID)
		element, err := cursor.NextSingle(ctx)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, wrap(err)
		}
		result.Single = element
		return result, nil

	case query.ResultNone:
		i.release(cursor, queryID)
		return result, nil

	case query.ResultMulti:
		if i.features.CanUseChunkedReads {
			result.Batches = i.stream(ctx, cursor, queryID, wrap)
			return result, nil
		}
		defer i.release(cursor, queryID)
		var batches []query.Batch
		for {
			batch, err := cursor.NextBatch(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, wrap(err)
			}
			batches = append(batches, batch)
		}
		result.Batches = batchSeq(batches)
		return result, nil

	default:
		i.release(cursor, queryID)
		return nil, fmt.Errorf("unknown result mode %s: %w", mode, query.ErrInvalidQuery)
	}
}

// stream hands the cursor over to the returned sequence, which releases it when
// the cursor is drained, the consumer stops early or a fetch fails.
func (i *ArangoInteractor) stream(ctx context.Context, cursor query.Cursor, queryID string, wrap func(error) error) iter.Seq2[query.Batch, error] {
	return func(yield func(query.Batch, error) bool) {
		defer i.release(cursor, queryID)
		for {
			batch, err := cursor.NextBatch(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				i.logger.Error("Failed to fetch batch", zap.String("queryId", queryID), zap.Error(err))
				yield(nil, wrap(err))
				return
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

func (i *ArangoInteractor) release(cursor query.Cursor, queryID string) {
	if err := cursor.Close(); err != nil {
		i.logger.Warn("Failed to close cursor", zap.String("queryId", queryID), zap.Error(err))
	}
}

func emptyResult(mode query.ResultMode) *query.ExecResult {
	result := &query.ExecResult{}
	if mode == query.ResultMulti {
		result.Batches = batchSeq(nil)
	}
	return result
}

func batchSeq(batches []query.Batch) iter.Seq2[query.Batch, error] {
	return func(yield func(query.Batch, error) bool) {
		for _, batch := range batches {
			if !yield(batch, nil) {
				return
			}
		}
	}
}

// ListCollections implements persistence.DatabaseInteractor.
func (i *ArangoInteractor) ListCollections(ctx context.Context) ([]schema.CollectionInfo, error) {
	return i.introspection.ListCollections(ctx, !i.options.SkipSystemCollections)
}

// CreateCollection implements persistence.DatabaseInteractor.
func (i *ArangoInteractor) CreateCollection(ctx context.Context, sc *schema.SchemaDefinition) error {
	return i.editor.CreateModel(ctx, sc)
}

// CollectionExists implements persistence.DatabaseInteractor.
func (i *ArangoInteractor) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := i.conn.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection '%s': %w", name, err)
	}
	return exists, nil
}

// Version returns the server version.
func (i *ArangoInteractor) Version(ctx context.Context) (string, error) {
	return i.conn.Version(ctx)
}
