// Package env reads ad-hoc process variables that sit outside the
// envconfig-managed SUPERMART_ configuration, such as the logger's
// output format.
package env

import "os"

// Get returns the named variable, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
