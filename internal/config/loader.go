package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/TheMichaelB/vaultctl/internal/models"
)

// EnvPrefix is prepended to every environment override, e.g. VAULTCTL_LOG_LEVEL.
const EnvPrefix = "VAULTCTL"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  EnvPrefix,
	}
}

// ConfigPath returns the file the last Load read, if any.
func (l *Loader) ConfigPath() string {
	return l.configPath
}

// Load reads configuration from file and environment.
func (l *Loader) Load() (*Config, error) {
	v := l.newViper()

	// Load from file if exists
	if l.configPath == "" {
		for _, path := range l.defaultPaths() {
			if _, err := os.Stat(path); err == nil {
				l.configPath = path
				break
			}
		}
	}
	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	// Validate final config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// newViper registers defaults for every key so environment overrides apply
// even when no config file sets them.
func (l *Loader) newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.color", cfg.Log.Color)

	v.SetDefault("load.max_file_size", cfg.Load.MaxFileSize)
	v.SetDefault("load.max_block_size", cfg.Load.MaxBlockSize)
	v.SetDefault("load.read_buffer_size", cfg.Load.ReadBufferSize)
	v.SetDefault("load.strict_trailing_data", cfg.Load.StrictTrailingData)
	v.SetDefault("load.verify_header_hash", cfg.Load.VerifyHeaderHash)
	v.SetDefault("load.allow_symlinks", cfg.Load.AllowSymlinks)

	v.SetDefault("keyring.enabled", cfg.Keyring.Enabled)
	v.SetDefault("keyring.service", cfg.Keyring.Service)
}

// defaultPaths returns default config file locations.
func (l *Loader) defaultPaths() []string {
	paths := []string{
		"vaultctl.yaml",
		"vaultctl.json",
		".vaultctl.yaml",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "vaultctl", "config.yaml"),
			filepath.Join(homeDir, ".config", "vaultctl", "config.json"),
		)
	}

	return paths
}

// SaveExample writes a config file populated with defaults. The format
// follows the file extension (yaml, json or toml).
func SaveExample(path string) error {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("chmod config: %w", err)
	}

	return nil
}
