// Command migrate runs schema operations for the API database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"quill/internal/bootstrap"
	"quill/internal/config"
	"quill/internal/database"

	"gopkg.in/yaml.v3"
)

type statusReport struct {
	Mode        string   `yaml:"mode"`
	Environment string   `yaml:"environment"`
	RunSQL      bool     `yaml:"run_sql"`
	RunAuto     bool     `yaml:"run_auto"`
	Applied     []int    `yaml:"applied"`
	Pending     []string `yaml:"pending"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate [-yaml] <up|auto|status|down> [version]")
}

func run() error {
	asYAML := flag.Bool("yaml", false, "print status as YAML")
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipRedis: true})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)
	db := rt.DB

	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	switch cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Println("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("automigrations applied")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		if *asYAML {
			return printYAML(status)
		}
		log.Printf("mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d", status.Mode, status.Env, status.SQL, status.AutoMigrate, len(status.Applied), len(status.Pending))
		for _, m := range status.Pending {
			log.Printf("pending: %s", m)
		}
	case "down":
		if flag.NArg() < 2 {
			return fmt.Errorf("usage: go run ./cmd/migrate down <version>")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Printf("rolled back migration %d", version)
	default:
		return usage()
	}

	return nil
}

func printYAML(status *database.SchemaStatus) error {
	report := statusReport{
		Mode:        status.Mode,
		Environment: status.Env,
		RunSQL:      status.SQL,
		RunAuto:     status.AutoMigrate,
		Applied:     status.Applied,
	}
	for _, m := range status.Pending {
		report.Pending = append(report.Pending, m.String())
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return enc.Close()
}
