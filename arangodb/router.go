package arangodb

import (
	"fmt"

	"github.com/asaidimu/go-arangoql/core/schema"
)

const (
	// DefaultAlias is the database alias used for untyped models.
	DefaultAlias = "default"
	// ArangoAlias is the conventional alias of the graph database.
	ArangoAlias = "arangodb"
	// DefaultModelTypeProperty is the schema metadata key holding the model type.
	DefaultModelTypeProperty = "model_type"
)

// Router sends models to database aliases by model type. The model type is
// read from schema metadata; schemas without one are of type "default".
type Router struct {
	// Routes maps a model type (document, vertex, edge, default, ...) to an alias.
	Routes map[string]string
	// ModelTypeProperty is the metadata key holding the model type.
	ModelTypeProperty string
}

// NewRouter creates a Router over routes.
func NewRouter(routes map[string]string) *Router {
	return &Router{Routes: routes, ModelTypeProperty: DefaultModelTypeProperty}
}

// ModelType returns the model type of a schema.
func (r *Router) ModelType(sc *schema.SchemaDefinition) string {
	property := r.ModelTypeProperty
	if property == "" {
		property = DefaultModelTypeProperty
	}
	if sc != nil {
		if modelType, ok := sc.Metadata[property].(string); ok && modelType != "" {
			return modelType
		}
	}
	return DefaultAlias
}

func (r *Router) route(sc *schema.SchemaDefinition) (string, error) {
	modelType := r.ModelType(sc)
	alias, ok := r.Routes[modelType]
	if ok {
		return alias, nil
	}
	if modelType == DefaultAlias {
		return DefaultAlias, nil
	}
	return "", fmt.Errorf("no database route for model type '%s'", modelType)
}

// DBForRead returns the alias reads of sc go to.
func (r *Router) DBForRead(sc *schema.SchemaDefinition) (string, error) {
	return r.route(sc)
}

// DBForWrite returns the alias writes of sc go to.
func (r *Router) DBForWrite(sc *schema.SchemaDefinition) (string, error) {
	return r.route(sc)
}

// AllowRelation reports whether two models live in the same database.
func (r *Router) AllowRelation(a, b *schema.SchemaDefinition) bool {
	aliasA, errA := r.route(a)
	aliasB, errB := r.route(b)
	return errA == nil && errB == nil && aliasA == aliasB
}

// AllowMigrate reports whether relational migrations may run against alias.
// The graph database manages its collections through the schema editor.
func (r *Router) AllowMigrate(alias string) bool {
	return alias != ArangoAlias
}
