package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

const versionLayout = "20060102150405"

// ValidateDir checks the migration files in dir on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS enforces <YYYYMMDDHHMMSS>_<name>.sql names, unique versions and
// both goose section markers in every file.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	versions := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		version, ok := parseFilename(name)
		if !ok {
			return fmt.Errorf("migration %q must be named %s_<name>.sql", name, strings.Repeat("N", len(versionLayout)))
		}
		if other, dup := versions[version]; dup {
			return fmt.Errorf("migrations %q and %q share version %s", other, name, version)
		}
		versions[version] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				return fmt.Errorf("migration %q is missing %q", name, marker)
			}
		}
	}
	return nil
}

func parseFilename(name string) (string, bool) {
	base := strings.TrimSuffix(name, ".sql")
	version, slug, found := strings.Cut(base, "_")
	if !found || len(version) != len(versionLayout) || slug == "" {
		return "", false
	}
	for _, r := range version {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	for _, r := range slug {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return "", false
		}
	}
	return version, true
}
