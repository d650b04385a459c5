package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/damian-dev1/freight-matrix-hn/errors"
)

// Persist writes the configuration to path as TOML, creating parent
// directories as needed. An existing file is kept as a .back1 copy.
func Persist(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	if content, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".back1", content, DefaultFilePermissions); err != nil {
			return errors.Wrap(err, "failed to back up existing config")
		}
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write config to %s", path)
	}

	return nil
}
