package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Now is stubbed in tests that need deterministic timestamps.
var Now = time.Now

func AgeSince(t time.Time) string {
	d := Now().Sub(t)

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

func Int64Ptr(i int64) *int64 { return &i }

// ExpandHome resolves a leading "~" or "~/" to the current user's home
// directory. Paths without the prefix come back unchanged.
func ExpandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
