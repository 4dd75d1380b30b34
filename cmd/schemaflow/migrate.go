package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaflow"
	"github.com/BaSui01/schemaflow/config"
	"github.com/BaSui01/schemaflow/internal/metrics"
	"github.com/BaSui01/schemaflow/internal/telemetry"
	"github.com/BaSui01/schemaflow/migration"
)

// =============================================================================
// Migration Commands
// =============================================================================

// migrateFlags are the flags every migrate subcommand shares.
type migrateFlags struct {
	fs         *flag.FlagSet
	configPath *string
	namespace  *string
	group      *string
}

func newMigrateFlags(name string) *migrateFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &migrateFlags{
		fs:         fs,
		configPath: fs.String("config", "", "Path to config file"),
		namespace:  fs.String("n", "", "Namespace to operate on (default: from config)"),
		group:      fs.String("g", "", "Database group to operate on (default: from config)"),
	}
}

// loadConfig resolves the effective configuration for a command.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolvePair applies flag overrides on top of the configured defaults.
func resolvePair(cfg *config.Config, f *migrateFlags) (namespace, group string) {
	namespace = cfg.Migrations.DefaultNamespace
	if *f.namespace != "" {
		namespace = *f.namespace
	}
	group = cfg.Migrations.DefaultGroup
	if *f.group != "" {
		group = *f.group
	}
	return namespace, group
}

// migrateEnv bundles the wired collaborators of one migrate command.
type migrateEnv struct {
	cfg       *config.Config
	logger    *zap.Logger
	cli       *migration.CLI
	migrator  *schemaflow.Migrator
	providers *telemetry.Providers
	ctx       context.Context
	stop      context.CancelFunc
}

// setup loads the configuration, initializes logging and telemetry and
// wires a migrator behind a CLI. The returned context cancels on
// SIGINT/SIGTERM so a run stops at the next step boundary.
func setup(f *migrateFlags) (*migrateEnv, error) {
	cfg, err := loadConfig(*f.configPath)
	if err != nil {
		return nil, err
	}

	logger := initLogger(cfg.Log)

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	m, err := schemaflow.New(
		schemaflow.WithConfig(cfg),
		schemaflow.WithLogger(logger),
		schemaflow.WithObserver(metrics.NewCollector("schemaflow", logger)),
	)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	locator := migration.NewDirLocator(cfg.Namespaces, cfg.Migrations.Path)
	scaffolder := migration.NewScaffolder(locator, cfg.Migrations.TimestampFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &migrateEnv{
		cfg:       cfg,
		logger:    logger,
		cli:       migration.NewCLI(m.Runner, scaffolder),
		migrator:  m,
		providers: providers,
		ctx:       ctx,
		stop:      stop,
	}, nil
}

// close releases everything setup wired, in reverse order.
func (e *migrateEnv) close() {
	e.stop()

	if e.providers != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.providers.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
		cancel()
	}

	if err := e.migrator.Close(); err != nil {
		e.logger.Warn("failed to release migrator resources", zap.Error(err))
	}

	e.logger.Sync()
}

// runMigrate applies pending migrations up to the latest version.
func runMigrate(args []string) int {
	f := newMigrateFlags("migrate")
	all := f.fs.Bool("all", false, "Migrate every configured namespace")
	if err := f.fs.Parse(args); err != nil {
		return 1
	}

	env, err := setup(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up migrator: %v\n", err)
		return 1
	}
	defer env.close()

	namespace, group := resolvePair(env.cfg, f)

	if *all {
		if err := env.cli.RunLatestAll(env.ctx, group); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			return 1
		}
		return 0
	}

	if err := env.cli.RunLatest(env.ctx, namespace, group); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		return 1
	}
	return 0
}

// runMigrateVersion prints the current version, or migrates to an
// explicit target when one is given as the first argument.
func runMigrateVersion(args []string) int {
	var target string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		target = args[0]
		args = args[1:]
	}

	f := newMigrateFlags("migrate:version")
	if err := f.fs.Parse(args); err != nil {
		return 1
	}

	env, err := setup(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up migrator: %v\n", err)
		return 1
	}
	defer env.close()

	namespace, group := resolvePair(env.cfg, f)

	if target == "" {
		if err := env.cli.RunVersion(env.ctx, namespace, group); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get version: %v\n", err)
			return 1
		}
		return 0
	}

	if err := env.cli.RunMigrateTo(env.ctx, namespace, group, target); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		return 1
	}
	return 0
}

// runMigrateRollback reverts every applied migration.
func runMigrateRollback(args []string) int {
	f := newMigrateFlags("migrate:rollback")
	if err := f.fs.Parse(args); err != nil {
		return 1
	}

	env, err := setup(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up migrator: %v\n", err)
		return 1
	}
	defer env.close()

	namespace, group := resolvePair(env.cfg, f)
	if err := env.cli.RunRollback(env.ctx, namespace, group); err != nil {
		fmt.Fprintf(os.Stderr, "Rollback failed: %v\n", err)
		return 1
	}
	return 0
}

// runMigrateRefresh reverts everything and migrates back to the latest
// version.
func runMigrateRefresh(args []string) int {
	f := newMigrateFlags("migrate:refresh")
	if err := f.fs.Parse(args); err != nil {
		return 1
	}

	env, err := setup(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up migrator: %v\n", err)
		return 1
	}
	defer env.close()

	namespace, group := resolvePair(env.cfg, f)
	if err := env.cli.RunRefresh(env.ctx, namespace, group); err != nil {
		fmt.Fprintf(os.Stderr, "Refresh failed: %v\n", err)
		return 1
	}
	return 0
}

// runMigrateStatus prints applied and pending migrations.
func runMigrateStatus(args []string) int {
	f := newMigrateFlags("migrate:status")
	if err := f.fs.Parse(args); err != nil {
		return 1
	}

	env, err := setup(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up migrator: %v\n", err)
		return 1
	}
	defer env.close()

	namespace, group := resolvePair(env.cfg, f)
	if err := env.cli.RunStatus(env.ctx, namespace, group); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get status: %v\n", err)
		return 1
	}
	return 0
}

// runMigrateCreate scaffolds a migration stub. Creating a script needs
// no database connection, so the full migrator is never wired.
func runMigrateCreate(args []string) int {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintln(os.Stderr, "Usage: schemaflow migrate:create <name> [options]")
		return 1
	}
	name := args[0]

	f := newMigrateFlags("migrate:create")
	kind := f.fs.String("kind", "go", "Migration kind: go or sql")
	if err := f.fs.Parse(args[1:]); err != nil {
		return 1
	}

	cfg, err := loadConfig(*f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	locator := migration.NewDirLocator(cfg.Namespaces, cfg.Migrations.Path)
	scaffolder := migration.NewScaffolder(locator, cfg.Migrations.TimestampFormat)
	cli := migration.NewCLI(nil, scaffolder)

	namespace := cfg.Migrations.DefaultNamespace
	if *f.namespace != "" {
		namespace = *f.namespace
	}

	if err := cli.RunCreate(namespace, name, *kind); err != nil {
		fmt.Fprintf(os.Stderr, "Create failed: %v\n", err)
		return 1
	}
	return 0
}
