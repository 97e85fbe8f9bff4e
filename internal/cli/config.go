package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/canvas/internal/paths"
	"github.com/mesh-intelligence/canvas/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeySyncStrategy  = "sync_strategy"
	cfgKeyBatchSize     = "batch_size"
	cfgKeyBatchInterval = "batch_interval"
	cfgKeyLogLevel      = "log_level"
	cfgKeyListenAddr    = "listen_addr"

	defaultLogLevel   = "info"
	defaultListenAddr = ":8080"
)

// settings is config.yaml after defaults are applied.
type settings struct {
	Backend       string `mapstructure:"backend" yaml:"backend"`
	DataDir       string `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
	SyncStrategy  string `mapstructure:"sync_strategy" yaml:"sync_strategy"`
	BatchSize     int    `mapstructure:"batch_size" yaml:"batch_size"`
	BatchInterval int    `mapstructure:"batch_interval" yaml:"batch_interval"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	ListenAddr    string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

func defaultSettings() settings {
	return settings{
		Backend:       types.BackendSQLite,
		SyncStrategy:  types.SyncImmediate,
		BatchSize:     types.DefaultBatchSize,
		BatchInterval: types.DefaultBatchInterval,
		LogLevel:      defaultLogLevel,
		ListenAddr:    defaultListenAddr,
	}
}

// loadSettings reads config.yaml from configDir through Viper. A missing
// config.yaml is not an error; defaults apply.
func loadSettings(configDir string) (settings, error) {
	d := defaultSettings()
	v := viper.New()
	v.SetDefault(cfgKeyBackend, d.Backend)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeySyncStrategy, d.SyncStrategy)
	v.SetDefault(cfgKeyBatchSize, d.BatchSize)
	v.SetDefault(cfgKeyBatchInterval, d.BatchInterval)
	v.SetDefault(cfgKeyLogLevel, d.LogLevel)
	v.SetDefault(cfgKeyListenAddr, d.ListenAddr)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("decode config: %w", err)
	}
	return s, nil
}

// backendConfig builds the backend configuration. The data directory comes
// from --data-dir, then config.yaml, then the environment, then the default.
func (a *app) backendConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.settings.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := types.Config{
		Backend: a.settings.Backend,
		DataDir: dataDir,
		SQLiteConfig: &types.SQLiteConfig{
			SyncStrategy:  a.settings.SyncStrategy,
			BatchSize:     a.settings.BatchSize,
			BatchInterval: a.settings.BatchInterval,
		},
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. An existing file is left untouched.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := defaultSettings()
	cfg.DataDir = dataDir
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
