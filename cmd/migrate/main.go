package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/ordergenie-backend/pkg/config"
	"github.com/angelmondragon/ordergenie-backend/pkg/db"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// gooseCommands pass straight through to goose.
var gooseCommands = map[string]bool{"up": true, "down": true, "redo": true, "status": true}

func main() {
	_ = godotenv.Load()

	opts := parseFlags(os.Args[1:])
	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func parseFlags(args []string) options {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	fs.StringVar(&opts.cmd, "cmd", "up", "up|down|redo|status|version|create|validate")
	fs.StringVar(&opts.dir, "dir", "", "migrations directory on disk; empty uses the set compiled into the binary")
	fs.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	fs.StringVar(&opts.version, "version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	_ = fs.Parse(args)
	return opts
}

func run(ctx context.Context, opts options) error {
	switch opts.cmd {
	case "create":
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := validate(opts.dir); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}

	if !gooseCommands[opts.cmd] && opts.cmd != "version" {
		return fmt.Errorf("unknown command")
	}
	if opts.cmd == "version" && opts.version == "" {
		return errors.New("-version is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DB.IsSQLite() {
		return errors.New("goose migrations target postgres; sqlite schemas are auto-migrated in dev")
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": opts.cmd, "dir": opts.dir})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	if opts.cmd == "version" {
		err = migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	} else {
		err = migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	}
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrations applied")
	return nil
}

func validate(dir string) error {
	if dir != "" {
		return migrate.ValidateDir(dir)
	}
	embedded, err := fs.Sub(migrate.Files(), "migrations")
	if err != nil {
		return err
	}
	return migrate.ValidateFS(embedded)
}
