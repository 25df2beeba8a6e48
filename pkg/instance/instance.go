package instance

import "os"

// GetID names the running process for logs and lock ownership. WORKER_ID
// wins over the platform-assigned DYNO name.
func GetID() string {
	for _, key := range []string{"WORKER_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
