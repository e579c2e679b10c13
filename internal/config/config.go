package config

import (
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"widget-lifecycle/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. WIDGET_LIFECYCLE_LOG_LEVEL.
const EnvPrefix = "WIDGET_LIFECYCLE"

// PathEnv names the variable holding an explicit config file path.
const PathEnv = EnvPrefix + "_CONFIG"

// Config holds application configuration.
type Config struct {
	Log   LogConfig   `mapstructure:"log"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	GRPC  GRPCConfig  `mapstructure:"grpc"`
	Store StoreConfig `mapstructure:"store"`
	Leak  LeakConfig  `mapstructure:"leak"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// HTTPConfig holds the diagnostics server settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// GRPCConfig holds the health server settings.
type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

// StoreConfig holds the default limits of state stores.
type StoreConfig struct {
	MaxEntries    int           `mapstructure:"max_entries"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Strategy      string        `mapstructure:"strategy"`
}

// LeakConfig holds leak detector settings.
type LeakConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	HighSeverityCount  int           `mapstructure:"high_severity_count"`
	HeapThreshold      uint64        `mapstructure:"heap_threshold"`
	HeapSampleInterval time.Duration `mapstructure:"heap_sample_interval"`
	ActivationCeiling  int           `mapstructure:"activation_ceiling"`
	// Sampler is one of "runtime", "rusage" or "none".
	Sampler string `mapstructure:"sampler"`
}

// GCPolicy converts the store settings.
func (c StoreConfig) GCPolicy() (store.GCPolicy, error) {
	strategy, err := store.ParseStrategy(c.Strategy)
	if err != nil {
		return store.GCPolicy{}, errors.Wrap(err, "store.strategy")
	}
	if c.MaxEntries <= 0 {
		return store.GCPolicy{}, errors.Errorf("store.max_entries must be positive, got %d", c.MaxEntries)
	}
	if c.TTL <= 0 {
		return store.GCPolicy{}, errors.Errorf("store.ttl must be positive, got %s", c.TTL)
	}
	return store.GCPolicy{
		MaxEntries:    c.MaxEntries,
		TTL:           c.TTL,
		SweepInterval: c.SweepInterval,
		Strategy:      strategy,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("store.max_entries", store.InteractionPolicy.MaxEntries)
	v.SetDefault("store.ttl", store.InteractionPolicy.TTL)
	v.SetDefault("store.sweep_interval", store.InteractionPolicy.SweepInterval)
	v.SetDefault("store.strategy", store.InteractionPolicy.Strategy.String())
	v.SetDefault("leak.enabled", true)
	v.SetDefault("leak.high_severity_count", 5)
	v.SetDefault("leak.heap_threshold", 10<<20)
	v.SetDefault("leak.heap_sample_interval", 5*time.Second)
	v.SetDefault("leak.activation_ceiling", 100)
	v.SetDefault("leak.sampler", "runtime")
}

// Load reads configuration from an optional file and the environment.
// The file is taken from WIDGET_LIFECYCLE_CONFIG, else ./widget-lifecycle.toml
// if present. The returned viper instance can be passed to Watch.
func Load() (Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path := os.Getenv(PathEnv); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("widget-lifecycle")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, nil, errors.Wrap(err, "read config")
		}
	}

	c, err := decode(v)
	if err != nil {
		return Config{}, nil, err
	}
	return c, v, nil
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	return c, nil
}

// Watch re-reads the config file whenever it is written and passes the new
// configuration to onChange. It reports false when no file is in use.
func Watch(v *viper.Viper, onChange func(Config, error)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()
	return true
}
