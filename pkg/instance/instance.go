package instance

import (
	"os"

	"github.com/angelmondragon/shopledger-backend/pkg/env"
)

// GetID names this process in logs and cron lock owners. SHOPLEDGER_INSTANCE_ID
// wins, then the platform's DYNO, then the hostname.
func GetID() string {
	if id := env.First("SHOPLEDGER_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
