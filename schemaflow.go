// =============================================================================
// Package schemaflow — One-Line Runner Construction
// =============================================================================
// Provides a convenience entry point for wiring a migration runner with
// minimal boilerplate. Delegates to migration.NewRunner internally; every
// collaborator can be swapped through an option.
//
// Usage:
//
//	import "github.com/BaSui01/schemaflow"
//
//	m, err := schemaflow.New(schemaflow.WithConfigFile("schemaflow.yaml"))
//	m, err := schemaflow.New(schemaflow.WithDB(db), schemaflow.WithNamespace("App", "."))
//
// =============================================================================
package schemaflow

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/schemaflow/config"
	"github.com/BaSui01/schemaflow/history"
	"github.com/BaSui01/schemaflow/internal/database"
	"github.com/BaSui01/schemaflow/internal/lock"
	"github.com/BaSui01/schemaflow/migration"
)

// Option configures the Migrator created by New.
type Option func(*options)

type options struct {
	cfg        *config.Config
	configFile string
	logger     *zap.Logger
	namespaces map[string]string

	// Collaborator overrides — wired from config when nil.
	db       *gorm.DB
	conns    migration.Connections
	store    migration.History
	registry *migration.Registry
	locator  migration.Locator
	locker   migration.Locker
	observer migration.Observer
}

// WithConfig uses a pre-built configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigFile loads configuration from a YAML file, with environment
// variables applied on top.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDB runs migrations against a single pre-opened connection, served
// as the configured default group. Saves embedded callers from writing
// a database section for a connection they already hold.
func WithDB(db *gorm.DB) Option {
	return func(o *options) { o.db = db }
}

// WithConnections sets a pre-built group connection resolver.
func WithConnections(conns migration.Connections) Option {
	return func(o *options) { o.conns = conns }
}

// WithHistory sets a pre-built history store. Defaults to the gorm
// store writing to the configured tracking table.
func WithHistory(store migration.History) Option {
	return func(o *options) { o.store = store }
}

// WithRegistry sets the unit registry for Go migrations. Defaults to
// the package-level registry that migration files register into.
func WithRegistry(registry *migration.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithLocator sets a custom script locator.
func WithLocator(locator migration.Locator) Option {
	return func(o *options) { o.locator = locator }
}

// WithLocker sets a custom run locker, overriding the lock section of
// the configuration.
func WithLocker(locker migration.Locker) Option {
	return func(o *options) { o.locker = locker }
}

// WithObserver sets a run observer, e.g. a metrics collector.
func WithObserver(observer migration.Observer) Option {
	return func(o *options) { o.observer = observer }
}

// WithNamespace declares a namespace root, overriding any declaration
// with the same name from the configuration.
func WithNamespace(name, root string) Option {
	return func(o *options) {
		if o.namespaces == nil {
			o.namespaces = make(map[string]string)
		}
		o.namespaces[name] = root
	}
}

// Migrator bundles a ready-to-use runner with the resources wired for
// it. All runner operations are available through embedding.
type Migrator struct {
	*migration.Runner

	// closers releases internally created resources. Collaborators
	// passed in through options stay with the caller.
	closers []func() error
}

// Close releases the connections, stores and lockers that New created,
// in reverse creation order. Safe to call once per Migrator.
func (m *Migrator) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New wires a Migrator from configuration and options.
func New(opts ...Option) (*Migrator, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := resolveConfig(o)
	if err != nil {
		return nil, err
	}
	if len(o.namespaces) > 0 && cfg.Namespaces == nil {
		cfg.Namespaces = make(map[string]string, len(o.namespaces))
	}
	for name, root := range o.namespaces {
		cfg.Namespaces[name] = root
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Migrator{}

	conns := o.conns
	if conns == nil {
		switch {
		case o.db != nil:
			conns = singleConns{name: cfg.Migrations.DefaultGroup, db: o.db}
		case len(cfg.Database) == 0:
			return nil, errors.New("no database groups configured: declare a database section or use WithDB")
		default:
			manager := database.NewManager(cfg.Database, logger)
			m.closers = append(m.closers, manager.Close)
			conns = manager
		}
	}

	store := o.store
	if store == nil {
		gormStore := history.NewGormStore(cfg.Migrations.Table, conns)
		m.closers = append(m.closers, gormStore.Close)
		store = gormStore
	}

	registry := o.registry
	if registry == nil {
		registry = migration.DefaultRegistry()
	}

	locator := o.locator
	if locator == nil {
		locator = migration.NewDirLocator(cfg.Namespaces, cfg.Migrations.Path)
	}

	locker := o.locker
	if locker == nil {
		locker, err = lock.New(cfg.Lock, conns, logger)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("create locker: %w", err)
		}
		if closer, ok := locker.(interface{ Close() error }); ok {
			m.closers = append(m.closers, closer.Close)
		}
	}

	namespaces := make([]string, 0, len(cfg.Namespaces))
	for name := range cfg.Namespaces {
		namespaces = append(namespaces, name)
	}
	sort.Strings(namespaces)

	runnerCfg := migration.RunnerConfig{
		Namespaces:       namespaces,
		DefaultNamespace: cfg.Migrations.DefaultNamespace,
		DefaultGroup:     cfg.Migrations.DefaultGroup,
		Disabled:         !cfg.Migrations.Enabled,
	}

	runnerOpts := []migration.RunnerOption{
		migration.WithRunnerLogger(logger),
		migration.WithLocker(locker),
	}
	if o.observer != nil {
		runnerOpts = append(runnerOpts, migration.WithObserver(o.observer))
	}

	runner, err := migration.NewRunner(
		runnerCfg,
		migration.NewDiscovery(locator, logger),
		store,
		conns,
		registry,
		runnerOpts...,
	)
	if err != nil {
		m.Close()
		return nil, err
	}
	m.Runner = runner
	return m, nil
}

// resolveConfig picks the configuration source: explicit config, YAML
// file, or defaults plus environment.
func resolveConfig(o *options) (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}

	loader := config.NewLoader()
	if o.configFile != "" {
		loader = loader.WithConfigPath(o.configFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// singleConns serves one pre-opened connection as the only group.
type singleConns struct {
	name string
	db   *gorm.DB
}

func (c singleConns) Group(name string) (*gorm.DB, error) {
	if name != c.name {
		return nil, fmt.Errorf("database group %q is not configured", name)
	}
	return c.db, nil
}

func (c singleConns) Groups() []string {
	return []string{c.name}
}
