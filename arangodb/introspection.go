package arangodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
	"go.uber.org/zap"
)

// ErrCollectionExists is returned when creating a collection that is already there.
var ErrCollectionExists = errors.New("collection already exists")

// Introspection reads the structure of the connected database.
type Introspection struct {
	conn   Connection
	logger *zap.Logger
}

// NewIntrospection creates an Introspection over conn.
func NewIntrospection(conn Connection, logger *zap.Logger) *Introspection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Introspection{conn: conn, logger: logger}
}

// ListCollections returns every collection sorted by name. System collections
// are left out unless includeSystem is set.
func (in *Introspection) ListCollections(ctx context.Context, includeSystem bool) ([]schema.CollectionInfo, error) {
	infos, err := in.conn.Collections(ctx)
	if err != nil {
		return nil, err
	}
	if !includeSystem {
		infos = slices.DeleteFunc(infos, func(info schema.CollectionInfo) bool {
			return info.System || strings.HasPrefix(info.Name, "_")
		})
	}
	slices.SortFunc(infos, func(a, b schema.CollectionInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	in.logger.Debug("Listed collections", zap.Int("count", len(infos)))
	return infos, nil
}

// SchemaEditor creates the collections that back schemas.
type SchemaEditor struct {
	conn        Connection
	ops         *Operations
	ifNotExists bool
	logger      *zap.Logger
}

// NewSchemaEditor creates a SchemaEditor. With ifNotExists set an existing
// collection is logged and tolerated.
func NewSchemaEditor(conn Connection, ifNotExists bool, logger *zap.Logger) *SchemaEditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaEditor{conn: conn, ops: NewOperations(), ifNotExists: ifNotExists, logger: logger}
}

// CreateModel creates the collection for sc, as an edge collection when the
// schema kind says so.
func (e *SchemaEditor) CreateModel(ctx context.Context, sc *schema.SchemaDefinition) error {
	if sc == nil {
		return fmt.Errorf("SchemaDefinition cannot be nil")
	}
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("invalid schema '%s': %w", sc.Name, err)
	}
	if len(sc.Name) > e.ops.MaxNameLength() {
		return fmt.Errorf("collection name '%s' exceeds %d characters", sc.Name, e.ops.MaxNameLength())
	}

	indexes, err := sc.ColumnIndexes()
	if err != nil {
		return fmt.Errorf("invalid schema '%s': %w", sc.Name, err)
	}

	err = e.conn.CreateCollection(ctx, sc.Name, sc.CollectionKind())
	switch {
	case errors.Is(err, ErrCollectionExists) && e.ifNotExists:
		e.logger.Info("Collection already exists", zap.String("collection", sc.Name))
	case err != nil:
		return fmt.Errorf("failed to create collection '%s': %w", sc.Name, err)
	default:
		e.logger.Info("Created collection",
			zap.String("collection", sc.Name),
			zap.String("kind", string(sc.CollectionKind())),
		)
	}
	return e.ensureIndexes(ctx, sc.Name, indexes)
}

// ensureIndexes creates the secondary indexes of a collection. Existing
// identical indexes are left alone by the store.
func (e *SchemaEditor) ensureIndexes(ctx context.Context, collection string, indexes []schema.IndexDefinition) error {
	for _, index := range indexes {
		if err := e.conn.EnsureIndex(ctx, collection, index); err != nil {
			return err
		}
	}
	if len(indexes) > 0 {
		e.logger.Info("Ensured indexes", zap.String("collection", collection), zap.Int("count", len(indexes)))
	}
	return nil
}

// DeleteModel is not supported. Collections are dropped by operators, not by
// the backend.
func (e *SchemaEditor) DeleteModel(ctx context.Context, sc *schema.SchemaDefinition) error {
	return query.NewNotSupported("deleting collections")
}
