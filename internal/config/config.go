package config

import (
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Init initializes the viper instance
func Init() {
	v = viper.New()
}

// Viper returns the viper instance
func Viper() *viper.Viper {
	return v
}

// Server configuration
type Server struct {
	HTTP HTTPConfig `mapstructure:"http" yaml:"http"`
	GRPC GRPCConfig `mapstructure:"grpc" yaml:"grpc"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Log configuration
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
	Path  string `mapstructure:"path" yaml:"path"`
	Debug bool   `mapstructure:"debug" yaml:"debug"`
}

// Layout configuration of the anchor recompute follow-ups
type Layout struct {
	Frame  time.Duration `mapstructure:"frame" yaml:"frame"`
	Settle time.Duration `mapstructure:"settle" yaml:"settle"`
}

// Editor configuration
type Editor struct {
	NameDebounce        time.Duration `mapstructure:"name_debounce" yaml:"name_debounce"`
	DanglingClearPasses int           `mapstructure:"dangling_clear_passes" yaml:"dangling_clear_passes"`
	// DefaultsFile overrides entries of the builtin node defaults table
	DefaultsFile string `mapstructure:"defaults_file" yaml:"defaults_file"`
	// GraphFile is loaded into the session on start
	GraphFile string `mapstructure:"graph_file" yaml:"graph_file"`
	Layout    Layout `mapstructure:"layout" yaml:"layout"`
}

// Config represents the application configuration
type Config struct {
	Server Server `mapstructure:"server" yaml:"server"`
	Log    Log    `mapstructure:"log" yaml:"log"`
	Editor Editor `mapstructure:"editor" yaml:"editor"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := Viper().Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.GRPC.Addr == "" {
		cfg.Server.GRPC.Addr = ":8081"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "INFO"
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = "./log"
	}

	// Zero is meaningful for both, so only fill them when unset
	if !Viper().IsSet("editor.name_debounce") {
		cfg.Editor.NameDebounce = 300 * time.Millisecond
	}
	if !Viper().IsSet("editor.dangling_clear_passes") {
		cfg.Editor.DanglingClearPasses = 2
	}
	if cfg.Editor.Layout.Frame <= 0 {
		cfg.Editor.Layout.Frame = 16 * time.Millisecond
	}
	if cfg.Editor.Layout.Settle <= 0 {
		cfg.Editor.Layout.Settle = 50 * time.Millisecond
	}

	return cfg, nil
}
