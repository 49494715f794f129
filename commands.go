package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/asaidimu/go-arangoql/arangodb"
	"github.com/asaidimu/go-arangoql/config"
	"github.com/asaidimu/go-arangoql/core/persistence"
	"github.com/asaidimu/go-arangoql/core/query"
	"github.com/asaidimu/go-arangoql/core/schema"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "0.1.0"

var (
	title   = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	muted   = color.New(color.FgHiBlack)
)

// app carries what every command needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer

	schemaPath  string
	queryPath   string
	objectsPath string
	inline      bool
	edge        bool
	verbose     bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "arangoql",
		Short:         "Compile and run ArangoDB AQL from JSON query descriptors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log at debug level")

	compile := &cobra.Command{
		Use:   "compile",
		Short: "Print the AQL and bind variables of a query descriptor",
		RunE:  func(cmd *cobra.Command, args []string) error { return a.compile() },
	}
	compile.Flags().StringVarP(&a.schemaPath, "schema", "s", "", "Path to a JSON schema definition")
	compile.Flags().StringVarP(&a.queryPath, "query", "q", "", "Path to a JSON query descriptor")
	compile.Flags().StringVarP(&a.objectsPath, "insert", "i", "", "Path to a JSON array of documents to insert instead")
	compile.Flags().BoolVar(&a.inline, "inline", false, "Render values as literals instead of bind variables")
	_ = compile.MarkFlagRequired("schema")

	exec := &cobra.Command{
		Use:   "exec",
		Short: "Run a query descriptor and print the matching documents",
		RunE:  func(cmd *cobra.Command, args []string) error { return a.exec(cmd.Context()) },
	}
	exec.Flags().StringVarP(&a.schemaPath, "schema", "s", "", "Path to a JSON schema definition")
	exec.Flags().StringVarP(&a.queryPath, "query", "q", "", "Path to a JSON query descriptor")
	_ = exec.MarkFlagRequired("schema")

	insert := &cobra.Command{
		Use:   "insert",
		Short: "Insert a JSON array of documents and print their keys",
		RunE:  func(cmd *cobra.Command, args []string) error { return a.insert(cmd.Context()) },
	}
	insert.Flags().StringVarP(&a.schemaPath, "schema", "s", "", "Path to a JSON schema definition")
	insert.Flags().StringVarP(&a.objectsPath, "objects", "o", "", "Path to a JSON array of documents")
	_ = insert.MarkFlagRequired("schema")
	_ = insert.MarkFlagRequired("objects")

	collections := &cobra.Command{
		Use:   "collections",
		Short: "List the collections of the configured database",
		RunE:  func(cmd *cobra.Command, args []string) error { return a.collections(cmd.Context()) },
	}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the collection of a schema unless it exists",
		RunE:  func(cmd *cobra.Command, args []string) error { return a.createCollection(cmd.Context()) },
	}
	create.Flags().StringVarP(&a.schemaPath, "schema", "s", "", "Path to a JSON schema definition")
	create.Flags().BoolVar(&a.edge, "edge", false, "Create an edge collection")
	_ = create.MarkFlagRequired("schema")
	collections.AddCommand(create)

	route := &cobra.Command{
		Use:   "route",
		Short: "Print the database alias a schema is routed to",
		RunE:  func(cmd *cobra.Command, args []string) error { return a.route() },
	}
	route.Flags().StringVarP(&a.schemaPath, "schema", "s", "", "Path to a JSON schema definition")
	_ = route.MarkFlagRequired("schema")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration to the user config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Save(a.cfg)
			if err != nil {
				return err
			}
			success.Fprintln(a.out, "✓ Configuration written to", path)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print client and server versions",
		RunE:  func(cmd *cobra.Command, args []string) error { return a.version(cmd.Context()) },
	}

	root.AddCommand(compile, exec, insert, collections, route, configCmd, versionCmd)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.verbose || cfg.LogLevel == "debug" {
		a.logger, err = zap.NewDevelopment()
	} else {
		a.logger, err = zap.NewProduction()
	}
	return err
}

func (a *app) features() arangodb.Features {
	features := a.cfg.Features
	if a.inline {
		features.InlineParameters = true
	}
	return features
}

func (a *app) loadSchema() (*schema.SchemaDefinition, error) {
	data, err := config.ReadFile(a.schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return schema.ParseSchema(data)
}

func (a *app) loadQuery() (*query.QueryDSL, error) {
	dsl := &query.QueryDSL{}
	if a.queryPath == "" {
		return dsl, nil
	}
	data, err := config.ReadFile(a.queryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	if err := json.Unmarshal(data, dsl); err != nil {
		return nil, fmt.Errorf("failed to decode query descriptor: %w", err)
	}
	return dsl, nil
}

func (a *app) loadObjects() ([]any, error) {
	data, err := config.ReadFile(a.objectsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read objects file: %w", err)
	}
	var docs []map[string]any
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("objects file must hold a JSON array of documents: %w", err)
	}
	objects := make([]any, len(docs))
	for i, doc := range docs {
		objects[i] = schema.Document(doc)
	}
	return objects, nil
}

func (a *app) compile() error {
	sc, err := a.loadSchema()
	if err != nil {
		return err
	}
	gen, err := arangodb.NewAqlQueryGeneratorFactory(a.features()).CreateGenerator(sc)
	if err != nil {
		return err
	}

	var compiled *query.CompiledQuery
	if a.objectsPath != "" {
		objects, err := a.loadObjects()
		if err != nil {
			return err
		}
		compiled, err = gen.GenerateInsert(&query.QueryDSL{Objects: objects})
		if err != nil {
			return a.reportEmpty(err)
		}
	} else {
		dsl, err := a.loadQuery()
		if err != nil {
			return err
		}
		compiled, err = gen.GenerateSelect(dsl)
		if err != nil {
			return a.reportEmpty(err)
		}
	}

	title.Fprintln(a.out, "AQL")
	fmt.Fprintln(a.out, compiled.Query)
	if vars := compiled.BindVars(); len(vars) > 0 {
		title.Fprintln(a.out, "Bind variables")
		return printJSON(a.out, vars)
	}
	return nil
}

// reportEmpty turns an empty result set into a notice instead of a failure.
func (a *app) reportEmpty(err error) error {
	if query.IsEmptyResultSet(err) {
		muted.Fprintln(a.out, "Query matches nothing; no statement would be sent.")
		return nil
	}
	return err
}

func (a *app) connect(ctx context.Context) (*arangodb.ArangoInteractor, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := arangodb.NewDriverConnection(ctx, a.cfg.Connection, a.logger)
	if err != nil {
		return nil, err
	}
	return arangodb.NewArangoInteractor(conn, a.logger, arangodb.DefaultInteractorOptions(), a.features()), nil
}

func (a *app) executor(ctx context.Context) (*persistence.Executor, error) {
	interactor, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	return persistence.NewExecutor(interactor, a.logger, &persistence.ExecutorOptions{ValidateInserts: true})
}

func (a *app) exec(ctx context.Context) error {
	sc, err := a.loadSchema()
	if err != nil {
		return err
	}
	dsl, err := a.loadQuery()
	if err != nil {
		return err
	}
	executor, err := a.executor(ctx)
	if err != nil {
		return err
	}
	docs, err := executor.Documents(ctx, sc, dsl)
	if err != nil {
		return err
	}
	count := 0
	for doc, err := range docs {
		if err != nil {
			return err
		}
		if err := printJSON(a.out, doc); err != nil {
			return err
		}
		count++
	}
	muted.Fprintf(a.out, "%d document(s)\n", count)
	return nil
}

func (a *app) insert(ctx context.Context) error {
	sc, err := a.loadSchema()
	if err != nil {
		return err
	}
	objects, err := a.loadObjects()
	if err != nil {
		return err
	}
	executor, err := a.executor(ctx)
	if err != nil {
		return err
	}
	keys, err := executor.Insert(ctx, sc, objects)
	if err != nil {
		return err
	}
	success.Fprintf(a.out, "✓ Inserted %d document(s) into %s\n", len(keys), sc.Name)
	for _, key := range keys {
		fmt.Fprintln(a.out, key)
	}
	return nil
}

func (a *app) collections(ctx context.Context) error {
	interactor, err := a.connect(ctx)
	if err != nil {
		return err
	}
	infos, err := interactor.ListCollections(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(a.out, "%s %s\n", info.Name, muted.Sprint(info.Kind))
	}
	return nil
}

func (a *app) createCollection(ctx context.Context) error {
	sc, err := a.loadSchema()
	if err != nil {
		return err
	}
	if a.edge {
		sc.Kind = schema.CollectionKindEdge
	}
	executor, err := a.executor(ctx)
	if err != nil {
		return err
	}
	created, err := executor.EnsureCollection(ctx, sc)
	if err != nil {
		return err
	}
	if created {
		success.Fprintf(a.out, "✓ Created %s collection %s\n", sc.CollectionKind(), sc.Name)
	} else {
		muted.Fprintf(a.out, "Collection %s already exists\n", sc.Name)
	}
	return nil
}

func (a *app) route() error {
	sc, err := a.loadSchema()
	if err != nil {
		return err
	}
	router := arangodb.NewRouter(a.cfg.Routes)
	alias, err := router.DBForRead(sc)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s\n", alias, muted.Sprintf("(model type %s, migrations allowed: %t)", router.ModelType(sc), router.AllowMigrate(alias)))
	return nil
}

func (a *app) version(ctx context.Context) error {
	fmt.Fprintf(a.out, "arangoql %s\n", version)
	interactor, err := a.connect(ctx)
	if err != nil {
		return err
	}
	server, err := interactor.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "server %s\n", server)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
