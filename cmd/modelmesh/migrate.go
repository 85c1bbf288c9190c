package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/modelmesh/config"
	"github.com/BaSui01/modelmesh/internal/migration"
)

// =============================================================================
// 🗄️ 数据库迁移命令
// =============================================================================

// runMigrate 处理 migrate 命令及其子命令
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	if subcommand == "help" || subcommand == "-h" || subcommand == "--help" {
		printMigrateUsage()
		return
	}

	fs := flag.NewFlagSet("migrate "+subcommand, flag.ExitOnError)
	opts := registerMigrateFlags(fs)
	_ = fs.Parse(args[1:])

	migrator, err := opts.build(zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	if err := cli.Run(context.Background(), subcommand, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", subcommand, err)
		os.Exit(1)
	}
}

// migrateFlags migrate 子命令共享的参数
type migrateFlags struct {
	configPath *string
	dbType     *string
	dbURL      *string
}

func registerMigrateFlags(fs *flag.FlagSet) migrateFlags {
	return migrateFlags{
		configPath: fs.String("config", "", "Path to config file"),
		dbType:     fs.String("db-type", "", "Database type (postgres, mysql, sqlite)"),
		dbURL:      fs.String("db-url", "", "Database connection URL"),
	}
}

// build 优先使用 --db-type/--db-url，否则从配置文件读取数据库段
func (f migrateFlags) build(logger *zap.Logger) (*migration.DefaultMigrator, error) {
	if *f.dbType != "" && *f.dbURL != "" {
		return migration.NewMigratorFromURL(*f.dbType, *f.dbURL, logger)
	}

	loader := config.NewLoader()
	if *f.configPath != "" {
		loader = loader.WithConfigPath(*f.configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if *f.dbType != "" {
		cfg.Database.Driver = *f.dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
}

// migrateUp serve 启动前应用待执行的迁移
func migrateUp(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	migrator, err := migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Up(ctx); err != nil {
		return err
	}
	version, dirty, err := migrator.Version(ctx)
	if err != nil {
		return err
	}
	logger.Info("Database schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// printMigrateUsage 打印 migrate 命令帮助
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  modelmesh migrate <subcommand> [options] [args]

Subcommands:
  up          Apply all pending migrations
  down        Rollback the last migration
  down-all    Rollback all migrations
  steps N     Apply (N > 0) or rollback (N < 0) N migrations
  goto V      Migrate to a specific version
  force V     Force set migration version (use with caution)
  version     Show current migration version
  status      Show migration status
  info        Show migration summary
  help        Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  modelmesh migrate up
  modelmesh migrate up --config /etc/modelmesh/config.yaml
  modelmesh migrate steps -- -1
  modelmesh migrate goto 1
  modelmesh migrate status --db-type sqlite --db-url sqlite://modelmesh.db`)
}
