package persistence

import (
	"context"

	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
)

// InteractorOptions provides configuration for the interactor.
type InteractorOptions struct {
	// IfNotExists makes CreateCollection tolerate an existing collection.
	// The conflict is logged instead of returned.
	IfNotExists bool

	// SkipSystemCollections hides collections whose names start with an
	// underscore from ListCollections.
	SkipSystemCollections bool
}

// DatabaseInteractor defines the interface between the orchestration layer and
// a concrete store. It executes compiled statements and manages collections;
// it never compiles anything itself.
type DatabaseInteractor interface {
	// Execute runs a compiled statement and hands results back according to
	// mode. A nil statement is the empty-result signal: nothing reaches the
	// store and an empty result is returned.
	Execute(ctx context.Context, compiled *query.CompiledQuery, mode query.ResultMode) (*query.ExecResult, error)

	// QueryGeneratorFactory returns the factory producing generators for this store.
	QueryGeneratorFactory() query.QueryGeneratorFactory

	// ListCollections lists the collections of the database.
	ListCollections(ctx context.Context) ([]schema.CollectionInfo, error)

	// CreateCollection creates the collection backing a schema.
	CreateCollection(ctx context.Context, sc *schema.SchemaDefinition) error

	// CollectionExists checks if a collection exists in the database.
	CollectionExists(ctx context.Context, name string) (bool, error)
}
