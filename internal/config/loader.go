package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "posest"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "POSEST"
)

// Loader resolves a Config from defaults, a YAML file and POSEST_* environment
// variables, in increasing priority.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader backed by a private viper instance.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load searches the standard paths for posest.yaml and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile reads configFile instead of searching. The file must exist.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation is LoadWithFile without the final Validate call.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if err := l.prepare(configFile); err != nil {
		return nil, err
	}
	if err := l.registerDefaults(); err != nil {
		return nil, err
	}

	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
	case configFile == "" && errors.As(err, &notFound):
		// defaults and environment still apply
	default:
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := new(Config)
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if !validate {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// prepare points viper at the explicit file or the search paths and turns on
// environment lookup. POSEST_SOLVER_MAX_ITERATIONS maps to solver.max_iterations.
func (l *Loader) prepare(configFile string) error {
	if configFile == "" {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		for _, p := range GetConfigSearchPaths() {
			l.v.AddConfigPath(p)
		}
	} else {
		if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	}

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
	return nil
}

// registerDefaults flattens DefaultConfig into dotted keys. Every key must be
// registered for AutomaticEnv to see its variable during Unmarshal.
func (l *Loader) registerDefaults() error {
	tree, err := defaultTree()
	if err != nil {
		return err
	}
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, val := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := val.(map[string]any); ok {
				walk(key, child)
				continue
			}
			l.v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

// defaultTree renders DefaultConfig through its yaml tags.
func defaultTree() (map[string]any, error) {
	raw, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	tree := map[string]any{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	return tree, nil
}

// Get returns a raw value by dotted key.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// GetString returns a value by dotted key as a string.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set overrides a value by dotted key.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the file that was read, if any.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper exposes the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// GetResolvedConfig returns every resolved setting as a nested map.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

// GenerateDefaultConfigFile writes DefaultConfig as YAML. An empty filename
// means posest.yaml in the working directory.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	raw, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	if err := os.WriteFile(filename, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

// GetConfigSearchPaths lists the directories searched for posest.yaml, in order.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(xdg, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	return append(paths, filepath.Join("/etc", ConfigFileName))
}

// PrintConfigInfo describes where configuration came from.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	used := l.GetConfigFileUsed()
	if used == "" {
		used = "(none)"
	}
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", used)
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
