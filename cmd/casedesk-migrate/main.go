package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/casedesk/casedesk/internal/config"
	"github.com/casedesk/casedesk/internal/migrations"
	"github.com/casedesk/casedesk/internal/sqldb"
)

func main() {
	os.Exit(run())
}

func run() int {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		return 1
	}
	cfg, err := config.LoadFromEnv("casedesk-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	if cfg.History.DSN == "" {
		fmt.Fprintln(os.Stderr, "CASEDESK_HISTORY_DSN is required")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sqldb.Open(ctx, sqldb.Config{Driver: config.StoreDriverPostgres, DSN: cfg.History.DSN})
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			return 1
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		applied, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			return 1
		}
		fmt.Printf("rolled back %d migration(s)\n", applied)
	case "status":
		statuses, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			return 1
		}
		for _, status := range statuses {
			state := "pending"
			if status.Applied {
				state = "applied"
			}
			fmt.Printf("%06d %-24s %s\n", status.Version, status.Name, state)
		}
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		return 1
	}
	return 0
}
