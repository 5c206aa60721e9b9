// Package version reports the quorum build version embedded at compile time.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the version string, trimmed of the trailing newline the
// VERSION file carries.
func Get() string {
	return strings.TrimSpace(raw)
}
