// counter-rebuild recomputes serial_counters from the letters table: the GLOBAL
// counter and one counter per (category, division, date) scope. Counters only
// move forward, so running it against a healthy database changes nothing.
//
// Usage:
//
//	go run ./cmd/counter-rebuild -dry-run
//	go run ./cmd/counter-rebuild
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Report the changes without writing them.")
	timeout := flag.Duration("timeout", 5*time.Minute, "Abort when the rebuild takes longer than this.")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	changes, err := models.RebuildSerialCounters(ctx, db, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}

	mode := "applied"
	if *dryRun {
		mode = "dry-run"
	}
	for _, c := range changes {
		fmt.Printf("%s: %s %d -> %d\n", mode, c.Name, c.Previous, c.Current)
	}
	fmt.Printf("%s: %d counter(s) changed\n", mode, len(changes))
}
