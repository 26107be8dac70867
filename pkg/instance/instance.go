package instance

import (
	"os"

	"github.com/angelmondragon/storefront-backend/pkg/env"
)

// ID names this process in logs so several replicas of one binary can be
// told apart. STOREFRONT_INSTANCE_ID wins, then DYNO, then the hostname.
func ID(service string) string {
	if id := env.First("", "STOREFRONT_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return service + "-0"
}
