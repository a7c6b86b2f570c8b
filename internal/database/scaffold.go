package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// ScaffoldMigration creates an empty, timestamp-versioned up/down pair in
// dir and returns the two paths. Existing files are never overwritten.
func ScaffoldMigration(dir, name string, now time.Time) (string, string, error) {
	slug := strings.Trim(nonWord.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", "", errors.New("migration name must contain letters or digits")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create migrations dir: %w", err)
	}

	base := fmt.Sprintf("%s_%s", now.UTC().Format("20060102150405"), slug)
	up := filepath.Join(dir, base+".up.sql")
	down := filepath.Join(dir, base+".down.sql")

	for _, f := range []struct{ path, header string }{
		{up, "-- " + base + ": apply\n"},
		{down, "-- " + base + ": revert\n"},
	} {
		file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return "", "", fmt.Errorf("create %s: %w", filepath.Base(f.path), err)
		}
		_, werr := file.WriteString(f.header)
		cerr := file.Close()
		if werr != nil {
			return "", "", werr
		}
		if cerr != nil {
			return "", "", cerr
		}
	}
	return up, down, nil
}
