package config

import (
	"os"
	"strings"
	"time"
)

const defaultTimezone = "Asia/Jakarta"

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AuthRequired rejects anonymous requests on write endpoints.
//
// Set via env:
// - AUTH_REQUIRED=true
func AuthRequired() bool {
	return envBool("AUTH_REQUIRED")
}

// OutboxDispatchEnabled starts the letter event dispatcher in the API process.
//
// Set via env:
// - OUTBOX_DISPATCH_ENABLED=true
func OutboxDispatchEnabled() bool {
	return envBool("OUTBOX_DISPATCH_ENABLED")
}

// SkipMigrations disables AutoMigrate at boot (schema managed externally).
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}

// AgencyLocation is the zone used for "today" when a letter has no issue date.
// Falls back to a fixed +07:00 zone if tzdata is unavailable.
func AgencyLocation() *time.Location {
	name := envOr("APP_TIMEZONE", defaultTimezone)
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == defaultTimezone {
			return time.FixedZone("WIB", 7*60*60)
		}
		return time.UTC
	}
	return loc
}
