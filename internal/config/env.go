package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// DotEnvFiles are read from the working directory, in order. A later file
// does not override an earlier one.
var DotEnvFiles = []string{".env", ".env.local"}

// Environment is an immutable snapshot of environment variables. It is taken
// once at start-up so that resolution never reads the process environment.
type Environment struct {
	vars map[string]string
}

// NewEnvironment builds a snapshot from a map. The map is copied.
func NewEnvironment(vars map[string]string) Environment {
	return Environment{vars: maps.Clone(vars)}
}

// EnvironmentFromPairs builds a snapshot from KEY=VALUE entries as returned
// by os.Environ. Later duplicates win.
func EnvironmentFromPairs(pairs []string) Environment {
	vars := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}
	return Environment{vars: vars}
}

// LoadEnvironment snapshots the process environment and fills in variables
// from the dot-env files found in dir. Process variables always win. The
// returned list names the files that were read.
func LoadEnvironment(dir string) (Environment, []string, error) {
	env := EnvironmentFromPairs(os.Environ())
	var loaded []string
	for _, name := range DotEnvFiles {
		path := filepath.Join(dir, name)
		fileVars, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Environment{}, loaded, fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range fileVars {
			if _, ok := env.vars[k]; !ok {
				env.vars[k] = v
			}
		}
		loaded = append(loaded, path)
	}
	return env, loaded, nil
}

// Get returns the value of key, or "" when it is not set.
func (e Environment) Get(key string) string { return e.vars[key] }

// Lookup returns the value of key and whether it is set.
func (e Environment) Lookup(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Expand replaces ${var} and $var in s using the snapshot.
func (e Environment) Expand(s string) string {
	return os.Expand(s, e.Get)
}

// Pairs returns the snapshot as KEY=VALUE entries suitable for child
// processes.
func (e Environment) Pairs() []string {
	out := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		out = append(out, k+"="+v)
	}
	return out
}
