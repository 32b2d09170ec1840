package isolation

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/dllexports/errors"
)

// dependencySet maps a lower-cased file name without extension to its path.
type dependencySet map[string]string

// scanDependencies lists the files in dir with extension ext, skipping the
// engine image itself.
func scanDependencies(dir, ext, engine string) (dependencySet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.IsolationFailure("scan companion directory "+dir, err)
	}

	deps := make(dependencySet)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.EqualFold(filepath.Ext(name), ext) || strings.EqualFold(name, engine) {
			continue
		}
		deps[dependencyKey(name)] = filepath.Join(dir, name)
	}
	return deps, nil
}

// lookup matches name case-insensitively against the scanned files. An
// extension on name is tried both kept and stripped.
func (d dependencySet) lookup(name string) (string, bool) {
	if path, ok := d[strings.ToLower(name)]; ok {
		return path, true
	}
	path, ok := d[dependencyKey(name)]
	return path, ok
}

func dependencyKey(name string) string {
	base := filepath.Base(name)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}
