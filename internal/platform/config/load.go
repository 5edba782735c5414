package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/fs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "APP_"

// configDir is resolved against the working directory.
const configDir = "configs"

//go:embed defaults.yaml
var defaultsFS embed.FS

// Load builds the configuration for profile. Later sources win:
//
//  1. defaults.yaml compiled into the binary
//  2. configs/base.yaml
//  3. configs/<profile>.yaml
//  4. APP_* environment variables, e.g. APP_SERVER_READ_TIMEOUT
//
// Missing files are skipped. The result is not validated.
func Load(profile string) (*Config, error) {
	return LoadWith(profile, nil)
}

// LoadWith is Load with overrides, keyed by dotted path, applied last.
func LoadWith(profile string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(fs.Provider(defaultsFS, "defaults.yaml"), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	files := []string{"base"}
	if profile != "" {
		files = append(files, profile)
	}

	for _, name := range files {
		if err := loadOptional(k, filepath.Join(configDir, name+".yaml")); err != nil {
			return nil, fmt.Errorf("loading %s config: %w", name, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper(k.Keys())), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("loading overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envKeyMapper turns APP_SERVER_READ_TIMEOUT into server.read_timeout.
// Underscores are ambiguous, so known keys are matched first and only
// unknown names fall back to treating every underscore as a dot.
func envKeyMapper(keys []string) func(string) string {
	known := envKeyIndex(keys)

	return func(name string) string {
		name = strings.ToLower(strings.TrimPrefix(name, envPrefix))
		if key, ok := known[name]; ok {
			return key
		}

		return strings.ReplaceAll(name, "_", ".")
	}
}

func envKeyIndex(keys []string) map[string]string {
	index := make(map[string]string, len(keys))
	for _, key := range keys {
		index[strings.ReplaceAll(key, ".", "_")] = key
	}

	return index
}

func loadOptional(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
