// Package config loads the node configuration from a file, LEDGER_*
// environment variables and command line flags.
package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/blockberries/ledger/errors"
)

// EnvPrefix prefixes every environment variable the node reads.
const EnvPrefix = "LEDGER"

type Backend string

const (
	MemoryBackend  Backend = "memory"
	LevelDBBackend Backend = "leveldb"
)

type Config struct {
	DataDir        string   `mapstructure:"data-dir" validate:"required_if=Backend leveldb"`
	Backend        Backend  `mapstructure:"backend" validate:"oneof=memory leveldb"`
	Genesis        string   `mapstructure:"genesis"`
	ChainID        string   `mapstructure:"chain-id" validate:"required"`
	GRPCAddress    string   `mapstructure:"grpc-address" validate:"required,hostname_port"`
	MetricsAddress string   `mapstructure:"metrics-address" validate:"omitempty,hostname_port"`
	LogLevel       string   `mapstructure:"log-level" validate:"oneof=trace debug info warn error"`
	LogFormat      string   `mapstructure:"log-format" validate:"oneof=json plain"`
	MaxUndoHistory int      `mapstructure:"max-undo-history" validate:"min=1"`
	ForkCacheSize  int      `mapstructure:"fork-cache-size" validate:"min=1"`
	Producer       Producer `mapstructure:"producer"`
	Notify         Notify   `mapstructure:"notify"`
}

// Producer configures the built-in block production loop used when no
// consensus engine drives the node.
type Producer struct {
	Enabled   bool          `mapstructure:"enabled"`
	WitnessID uint64        `mapstructure:"witness-id"`
	Interval  time.Duration `mapstructure:"interval" validate:"required_if=Enabled true"`
}

type Notify struct {
	RedisURL string `mapstructure:"redis-url" validate:"omitempty,url"`
	Topic    string `mapstructure:"topic" validate:"required_with=RedisURL"`
}

// Default returns the configuration of an in-memory devnet node.
func Default() Config {
	return Config{
		Backend:        MemoryBackend,
		ChainID:        "ledger-devnet",
		GRPCAddress:    "127.0.0.1:26658",
		MetricsAddress: "127.0.0.1:26660",
		LogLevel:       "info",
		LogFormat:      "plain",
		MaxUndoHistory: 1024,
		ForkCacheSize:  1024,
		Producer:       Producer{Interval: 5 * time.Second},
		Notify:         Notify{Topic: "ledger"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("data-dir", d.DataDir)
	v.SetDefault("backend", string(d.Backend))
	v.SetDefault("genesis", d.Genesis)
	v.SetDefault("chain-id", d.ChainID)
	v.SetDefault("grpc-address", d.GRPCAddress)
	v.SetDefault("metrics-address", d.MetricsAddress)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("max-undo-history", d.MaxUndoHistory)
	v.SetDefault("fork-cache-size", d.ForkCacheSize)
	v.SetDefault("producer.enabled", d.Producer.Enabled)
	v.SetDefault("producer.witness-id", d.Producer.WitnessID)
	v.SetDefault("producer.interval", d.Producer.Interval)
	v.SetDefault("notify.redis-url", d.Notify.RedisURL)
	v.SetDefault("notify.topic", d.Notify.Topic)
}

// Load reads the configuration. Values come, by increasing precedence,
// from the defaults, the file (if any), the environment and the changed
// flags in flags (if any). Flags are matched by key, for example
// --grpc-address or --producer.enabled.
func Load(file string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.BadRequest.WithFormat("read config %s: %w", file, err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, errors.Internal.WithFormat("bind flags: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.BadRequest.WithFormat("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

var validate = validator.New()

// Validate checks the field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.BadRequest.WithFormat("invalid config: %w", err)
	}
	return nil
}

// Logger builds the node logger. Plain output goes to a console
// writer on stderr.
func (c *Config) Logger() (zerolog.Logger, error) {
	return c.logger(os.Stderr)
}

func (c *Config) logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop(), errors.BadRequest.WithFormat("log level: %w", err)
	}
	if c.LogFormat == "plain" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
