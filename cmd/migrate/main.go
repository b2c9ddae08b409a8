package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/shopledger-backend/pkg/config"
	"github.com/angelmondragon/shopledger-backend/pkg/db"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|to|status|create|validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	var source fs.FS = migrate.Migrations()
	if *dir != "" {
		source = os.DirFS(*dir)
	}

	// create and validate work on files only
	switch *cmd {
	case "create":
		out := *dir
		if out == "" {
			out = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(out, *name, time.Now())
		exitOn(ctx, logg, "create migration", err)
		fmt.Println("created", path)
		return
	case "validate":
		exitOn(ctx, logg, "validate migrations", migrate.ValidateFS(source))
		fmt.Println("migrations ok")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn(ctx, logg, "load config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "env": cfg.App.Env})
	if cfg.FeatureFlags.UseSQLite {
		exitOn(ctx, logg, "goose", fmt.Errorf("goose migrations target postgres; sqlite uses %s=true", "SHOPLEDGER_AUTO_MIGRATE"))
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	exitOn(ctx, logg, "connect database", err)
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	exitOn(ctx, logg, "extract sql.DB", err)

	runner, err := migrate.NewRunner(sqlDB, source, logg)
	exitOn(ctx, logg, "build runner", err)

	switch *cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "to":
		err = runner.To(ctx, *target)
	case "status":
		err = printStatus(ctx, runner)
	default:
		err = fmt.Errorf("unknown -cmd %q", *cmd)
	}
	exitOn(ctx, logg, *cmd, err)
}

func printStatus(ctx context.Context, runner *migrate.Runner) error {
	rows, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, row := range rows {
		state, at := "pending", "-"
		if row.Applied {
			state, at = "applied", row.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", row.Version, state, at, row.Path)
	}
	return w.Flush()
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, step+" failed", err)
	os.Exit(1)
}
