// Package env reads the few settings needed before the config package runs,
// such as the log format used while config is still loading.
package env

import (
	"os"
	"strings"
)

// Prefix namespaces every storefront environment variable.
const Prefix = "STOREFRONT_"

// Get returns STOREFRONT_<key>, falling back to the bare key and then to fallback.
func Get(key, fallback string) string {
	key = strings.TrimPrefix(key, Prefix)
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
