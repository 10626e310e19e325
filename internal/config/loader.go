// Package config resolves the gateway's configuration file path, loads its
// top-level settings via viper, and decodes the ruleset/policy/credential
// YAML streams that drive the pipeline. Grounded on
// original_source/goldengate/__init__.py's Application.__init__ search
// order and the teacher's internal/config/config.go viper.New() pattern.
package config

import (
	"os"
	"path/filepath"

	"github.com/goldengate/goldengate/internal/ggerrors"
)

// EnvConfigPath is the environment variable consulted when no explicit path
// is given, per spec.md §6.
const EnvConfigPath = "GOLDENGATE_CONFIG"

// ResolvePath picks the configuration file to load, matching
// Application.__init__'s lookup order exactly: an explicit path (error if
// it doesn't exist -- the caller asked for it by name), else
// $GOLDENGATE_CONFIG, $PWD/goldengate.conf, $HOME/.goldengate/goldengate.conf,
// /etc/goldengate/goldengate.conf, in that order, first one that exists.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", ggerrors.NewConfigError("configuration file %s: %v", explicit, err)
		}
		return explicit, nil
	}

	var candidates []string
	if v := os.Getenv(EnvConfigPath); v != "" {
		candidates = append(candidates, v)
	}
	if pwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(pwd, "goldengate.conf"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".goldengate", "goldengate.conf"))
	}
	candidates = append(candidates, "/etc/goldengate/goldengate.conf")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", ggerrors.NewConfigError("no configuration file found in %v", candidates)
}
