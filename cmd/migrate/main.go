package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/db"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up          apply pending migrations
  down        roll back the latest migration
  status      list migrations and when they were applied
  to          migrate up or down to -version
  create      write a new empty migration named -name into -dir
  validate    check migration files without a database
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name for create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS version for to")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage); flag.PrintDefaults() }
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}
	if err := run(cmd, *dir, *name, *version); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(cmd, dir, name, version string) error {
	switch cmd {
	case "create":
		if name == "" {
			return fmt.Errorf("-name is required")
		}
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.Create(dir, name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		fsys, err := migrate.Source(dir)
		if err != nil {
			return err
		}
		if err := migrate.Validate(fsys); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	case "up", "down", "status", "to":
	default:
		flag.Usage()
		return fmt.Errorf("unknown command")
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": cmd})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()

	if cfg.DB.IsSQLite() {
		if cmd != "up" {
			return fmt.Errorf("only up is supported on sqlite")
		}
		if err := migrate.AutoMigrateModels(ctx, client); err != nil {
			return err
		}
		logg.Info(ctx, "migrate.models_synced")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	fsys, err := migrate.Source(dir)
	if err != nil {
		return err
	}
	m, err := migrate.NewMigrator(sqlDB, fsys)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		applied, err := m.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "migrate.up_completed")
	case "down":
		return m.Down(ctx)
	case "status":
		return m.Status(ctx, os.Stdout)
	case "to":
		if version == "" {
			return fmt.Errorf("-version is required")
		}
		return m.To(ctx, version)
	}
	return nil
}
