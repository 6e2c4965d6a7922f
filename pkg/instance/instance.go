package instance

import (
	"os"

	"github.com/angelmondragon/dailycart-backend/pkg/env"
)

const fallbackID = "dailycart-0"

// GetID identifies this process in logs. DAILYCART_INSTANCE_ID wins, then the
// hostname (the pod name under Kubernetes).
func GetID() string {
	if id := env.Get("DAILYCART_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
