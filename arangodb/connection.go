package arangodb

import (
	"context"
	"fmt"
	"io"

	driver "github.com/arangodb/go-driver"
	"github.com/arangodb/go-driver/http"
	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
	"go.uber.org/zap"
)

// Connection is the boundary between the execution bridge and an
// authenticated database session.
type Connection interface {
	// ExecuteQuery submits a statement and returns a cursor over its results.
	ExecuteQuery(ctx context.Context, aql string, bindVars map[string]any) (query.Cursor, error)
	// Collections lists the collections of the database.
	Collections(ctx context.Context) ([]schema.CollectionInfo, error)
	// CollectionExists reports whether a collection with the given name exists.
	CollectionExists(ctx context.Context, name string) (bool, error)
	// CreateCollection creates a document or edge collection.
	CreateCollection(ctx context.Context, name string, kind schema.CollectionKind) error
	// EnsureIndex creates an index on a collection unless an identical one
	// exists. Index fields are storage columns.
	EnsureIndex(ctx context.Context, collection string, index schema.IndexDefinition) error
	// Version returns the server version. It doubles as a liveness check.
	Version(ctx context.Context) (string, error)
}

// ConnectionConfig holds everything needed to open a database session.
type ConnectionConfig struct {
	Endpoints []string `mapstructure:"endpoints"`
	Database  string   `mapstructure:"database"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	// BatchSize is the number of documents fetched per round trip.
	BatchSize int `mapstructure:"batch_size"`
}

// DefaultBatchSize is used when a ConnectionConfig leaves BatchSize unset.
const DefaultBatchSize = 100

// DriverConnection implements Connection on top of the official Go driver.
type DriverConnection struct {
	client    driver.Client
	db        driver.Database
	batchSize int
	logger    *zap.Logger
}

// NewDriverConnection opens a session against the configured database.
func NewDriverConnection(ctx context.Context, cfg ConnectionConfig, logger *zap.Logger) (*DriverConnection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	conn, err := http.NewConnection(http.ConnectionConfig{Endpoints: cfg.Endpoints})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}
	clientCfg := driver.ClientConfig{Connection: conn}
	if cfg.Username != "" {
		clientCfg.Authentication = driver.BasicAuthentication(cfg.Username, cfg.Password)
	}
	client, err := driver.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	db, err := client.Database(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", cfg.Database, err)
	}

	logger.Info("Connected to database",
		zap.Strings("endpoints", cfg.Endpoints),
		zap.String("database", cfg.Database),
		zap.Int("batchSize", cfg.BatchSize),
	)
	return &DriverConnection{client: client, db: db, batchSize: cfg.BatchSize, logger: logger}, nil
}

// ExecuteQuery implements Connection.
func (c *DriverConnection) ExecuteQuery(ctx context.Context, aql string, bindVars map[string]any) (query.Cursor, error) {
	cursor, err := c.db.Query(driver.WithQueryBatchSize(ctx, c.batchSize), aql, bindVars)
	if err != nil {
		return nil, err
	}
	return &driverCursor{cursor: cursor, batchSize: c.batchSize}, nil
}

// Collections implements Connection.
func (c *DriverConnection) Collections(ctx context.Context) ([]schema.CollectionInfo, error) {
	cols, err := c.db.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	infos := make([]schema.CollectionInfo, 0, len(cols))
	for _, col := range cols {
		props, err := col.Properties(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read properties of '%s': %w", col.Name(), err)
		}
		kind := schema.CollectionKindDocument
		if props.Type == driver.CollectionTypeEdge {
			kind = schema.CollectionKindEdge
		}
		infos = append(infos, schema.CollectionInfo{Name: col.Name(), Kind: kind, System: props.IsSystem})
	}
	return infos, nil
}

// CollectionExists implements Connection.
func (c *DriverConnection) CollectionExists(ctx context.Context, name string) (bool, error) {
	return c.db.CollectionExists(ctx, name)
}

// CreateCollection implements Connection.
func (c *DriverConnection) CreateCollection(ctx context.Context, name string, kind schema.CollectionKind) error {
	opts := &driver.CreateCollectionOptions{Type: driver.CollectionTypeDocument}
	if kind == schema.CollectionKindEdge {
		opts.Type = driver.CollectionTypeEdge
	}
	if _, err := c.db.CreateCollection(ctx, name, opts); err != nil {
		if driver.IsConflict(err) {
			return fmt.Errorf("collection '%s': %w", name, ErrCollectionExists)
		}
		return err
	}
	return nil
}

// EnsureIndex implements Connection.
func (c *DriverConnection) EnsureIndex(ctx context.Context, collection string, index schema.IndexDefinition) error {
	col, err := c.db.Collection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to open collection '%s': %w", collection, err)
	}

	var created bool
	switch index.Type {
	case schema.IndexTypeFullText:
		_, created, err = col.EnsureFullTextIndex(ctx, index.Fields, &driver.EnsureFullTextIndexOptions{Name: index.Name})
	default:
		_, created, err = col.EnsurePersistentIndex(ctx, index.Fields, &driver.EnsurePersistentIndexOptions{
			Name:   index.Name,
			Unique: index.IsUnique(),
		})
	}
	if err != nil {
		return fmt.Errorf("failed to ensure index '%s' on '%s': %w", index.Name, collection, err)
	}
	c.logger.Debug("Ensured index",
		zap.String("collection", collection),
		zap.String("index", index.Name),
		zap.Strings("fields", index.Fields),
		zap.Bool("created", created),
	)
	return nil
}

// Version implements Connection.
func (c *DriverConnection) Version(ctx context.Context) (string, error) {
	info, err := c.client.Version(ctx)
	if err != nil {
		return "", err
	}
	return string(info.Version), nil
}

type driverCursor struct {
	cursor    driver.Cursor
	batchSize int
}

func (c *driverCursor) NextBatch(ctx context.Context) (query.Batch, error) {
	batch := make(query.Batch, 0, c.batchSize)
	for len(batch) < c.batchSize {
		doc, err := c.NextSingle(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		batch = append(batch, doc)
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (c *driverCursor) NextSingle(ctx context.Context) (any, error) {
	var doc any
	if _, err := c.cursor.ReadDocument(ctx, &doc); err != nil {
		if driver.IsNoMoreDocuments(err) {
			return nil, io.EOF
		}
		return nil, err
	}
	return doc, nil
}

func (c *driverCursor) Close() error {
	return c.cursor.Close()
}
