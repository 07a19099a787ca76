package config

import (
	"io"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages engine configuration using Viper. It is constructed once at
// startup and handed to the engines, which copy what they need.
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Engine parameters
	v.SetDefault("engine.coarsen_to", 20)
	v.SetDefault("engine.min_coarsen_ratio", 0.95)
	v.SetDefault("engine.max_working_set_bytes", int64(0)) // 0 = unlimited
	v.SetDefault("engine.leaf_size", 120)

	// Distributed coordinator
	v.SetDefault("dist.processes", runtime.NumCPU())
	v.SetDefault("dist.check_consistency", false)
	v.SetDefault("dist.refine_passes", 8)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)

	v.SetEnvPrefix("GOPART")
	v.AutomaticEnv()

	return &Config{v: v}
}

// FromViper wraps an existing viper instance, as bound by the command line.
func FromViper(v *viper.Viper) *Config {
	c := NewConfig()
	for _, key := range v.AllKeys() {
		c.v.Set(key, v.Get(key))
	}
	return c
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Getters for engine parameters
func (c *Config) CoarsenTo() int { return c.v.GetInt("engine.coarsen_to") }
func (c *Config) MinCoarsenRatio() float64 { return c.v.GetFloat64("engine.min_coarsen_ratio") }
func (c *Config) MaxWorkingSetBytes() int64 { return c.v.GetInt64("engine.max_working_set_bytes") }
func (c *Config) LeafSize() int { return c.v.GetInt("engine.leaf_size") }
func (c *Config) Processes() int { return c.v.GetInt("dist.processes") }
func (c *Config) CheckConsistency() bool { return c.v.GetBool("dist.check_consistency") }
func (c *Config) RefinePasses() int { return c.v.GetInt("dist.refine_passes") }
func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) ConsoleLogging() bool { return c.v.GetBool("logging.console") }
func (c *Config) Set(key string, value any) { c.v.Set(key, value) }
func (c *Config) AllSettings() map[string]any { return c.v.AllSettings() }

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	return c.CreateLoggerTo(os.Stderr)
}

func (c *Config) CreateLoggerTo(out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.ConsoleLogging() {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "gopart").Logger()
}
