package env

import (
	"os"
	"strings"
)

// Prefix namespaces every variable the service reads.
const Prefix = "ORDERGENIE_"

// Get returns the prefixed variable, then the bare one, then fallback. The
// bare form keeps platform conventions such as PORT and LOG_FORMAT working.
func Get(key, fallback string) string {
	key = strings.TrimPrefix(key, Prefix)
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
