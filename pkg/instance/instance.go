package instance

import (
	"os"

	"github.com/lodgetix/ticket-inventory/pkg/env"
)

// GetID returns the process instance identifier: LODGETIX_INSTANCE_ID, then
// the platform dyno name, then the hostname.
func GetID() string {
	if id := env.First("", "LODGETIX_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
