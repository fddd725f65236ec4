// seed-masters upserts letter categories and divisions.
//
// Usage:
//
//	DB_DRIVER=mysql DB_USER=... DB_NAME=... go run ./cmd/seed-masters \
//	  -categories "B=Biasa,R=Rahasia,P=Penting" \
//	  -divisions "TU.040=Tata Usaha,KEU.01=Keuangan"
//
// Existing codes get their names replaced; nothing is deleted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
)

type masterEntry struct {
	Code string
	Name string
}

func main() {
	categories := flag.String("categories", "", "Comma-separated CODE=Name pairs for categories.")
	divisions := flag.String("divisions", "", "Comma-separated CODE=Name pairs for divisions.")
	inactive := flag.String("inactive", "", "Optional: comma-separated category codes to mark inactive.")
	migrate := flag.Bool("migrate", true, "Run AutoMigrate before seeding.")
	flag.Parse()

	categoryEntries, err := parseMasterList(*categories)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -categories: %v\n", err)
		os.Exit(2)
	}
	divisionEntries, err := parseMasterList(*divisions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -divisions: %v\n", err)
		os.Exit(2)
	}
	if len(categoryEntries) == 0 && len(divisionEntries) == 0 {
		fmt.Fprintln(os.Stderr, "nothing to seed: pass -categories and/or -divisions")
		os.Exit(2)
	}
	inactiveCodes := map[string]bool{}
	for _, code := range strings.Split(*inactive, ",") {
		if code = utils.NormalizeCode(code); code != "" {
			inactiveCodes[code] = true
		}
	}

	ctx := context.Background()
	ctx = utils.SetUsernameInContext(ctx, "SeedMasters")

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	failed := 0
	for _, e := range categoryEntries {
		active := !inactiveCodes[utils.NormalizeCode(e.Code)]
		c, err := models.UpsertCategory(ctx, &models.NewCategory{Code: e.Code, Name: e.Name, IsActive: &active})
		if err != nil {
			fmt.Fprintf(os.Stderr, "category %s: %v\n", e.Code, err)
			failed++
			continue
		}
		fmt.Printf("category %s = %s (active=%t)\n", c.Code, c.Name, active)
	}
	for _, e := range divisionEntries {
		d, err := models.UpsertDivision(ctx, &models.NewDivision{Code: e.Code, Name: e.Name})
		if err != nil {
			fmt.Fprintf(os.Stderr, "division %s: %v\n", e.Code, err)
			failed++
			continue
		}
		fmt.Printf("division #%d %s = %s\n", d.ID, d.Code, d.Name)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d entries failed\n", failed)
		os.Exit(1)
	}
}

// parseMasterList reads "CODE=Name,CODE=Name". Blank items are skipped.
func parseMasterList(s string) ([]masterEntry, error) {
	var out []masterEntry
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		code, name, ok := strings.Cut(item, "=")
		code = strings.TrimSpace(code)
		name = strings.TrimSpace(name)
		if !ok || code == "" || name == "" {
			return nil, fmt.Errorf("%q is not CODE=Name", item)
		}
		out = append(out, masterEntry{Code: code, Name: name})
	}
	return out, nil
}
