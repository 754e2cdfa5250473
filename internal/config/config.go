// Package config loads the core's configuration surface: server lists for
// the three data planes, pool/distribution tuning, and the default
// Semantics bundle (spec.md §6). It follows the teacher's viper+pflag
// loading convention.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arcfabric/storecore/internal/batch"
)

// Config is the fully resolved configuration surface.
type Config struct {
	Servers struct {
		Object []string `mapstructure:"object"`
		KV     []string `mapstructure:"kv"`
		DB     []string `mapstructure:"db"`
	} `mapstructure:"servers"`

	MaxConnections int    `mapstructure:"max_connections"`
	StripeSize     uint64 `mapstructure:"stripe_size"`

	Semantics struct {
		Atomicity   string `mapstructure:"atomicity"`
		Concurrency string `mapstructure:"concurrency"`
		Consistency string `mapstructure:"consistency"`
		Safety      string `mapstructure:"safety"`
		Ordering    string `mapstructure:"ordering"`
		Persistency string `mapstructure:"persistency"`
	} `mapstructure:"semantics"`

	Pool struct {
		DialTimeout       time.Duration `mapstructure:"dial_timeout"`
		MaxConcurrentDial int64         `mapstructure:"max_concurrent_dials"`
	} `mapstructure:"pool"`

	Lock struct {
		RetryBase time.Duration `mapstructure:"retry_base"`
		RetryMax  time.Duration `mapstructure:"retry_max"`
	} `mapstructure:"lock"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("max_connections", 8)
	v.SetDefault("stripe_size", 512*1024)
	v.SetDefault("semantics.atomicity", "operation")
	v.SetDefault("semantics.concurrency", "session")
	v.SetDefault("semantics.consistency", "session")
	v.SetDefault("semantics.safety", "network")
	v.SetDefault("semantics.ordering", "strict")
	v.SetDefault("semantics.persistency", "eventual")
	v.SetDefault("pool.dial_timeout", 5*time.Second)
	v.SetDefault("pool.max_concurrent_dials", 32)
	v.SetDefault("lock.retry_base", 50*time.Millisecond)
	v.SetDefault("lock.retry_max", 5*time.Second)
}

// Load reads configuration from (in ascending priority) defaults, the
// optional configFile, STORECORE_-prefixed environment variables, and the
// given flag set, matching the teacher's layered viper setup.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("storecore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Flags builds the override flag set Load binds, mirroring the teacher's cmd
// package convention of one flag per override. The run and ping commands
// pass it to Load unparsed, so only its default values take effect.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("storecore", pflag.ContinueOnError)
	fs.StringSlice("servers.object", nil, "object server addresses")
	fs.StringSlice("servers.kv", nil, "KV server addresses")
	fs.StringSlice("servers.db", nil, "DB server addresses")
	fs.Int("max_connections", 8, "max connections per server")
	fs.Uint64("stripe_size", 512*1024, "round-robin distribution block size")
	return fs
}

func parseAtomicity(s string) batch.Atomicity {
	switch s {
	case "none":
		return batch.AtomicityNone
	case "batch":
		return batch.AtomicityBatch
	default:
		return batch.AtomicityOperation
	}
}

func parseConcurrency(s string) batch.Concurrency {
	switch s {
	case "none":
		return batch.ConcurrencyNone
	case "strict":
		return batch.ConcurrencyStrict
	default:
		return batch.ConcurrencySession
	}
}

func parseConsistency(s string) batch.Consistency {
	switch s {
	case "immediate":
		return batch.ConsistencyImmediate
	case "eventual":
		return batch.ConsistencyEventual
	default:
		return batch.ConsistencySession
	}
}

func parseSafety(s string) batch.Safety {
	switch s {
	case "none":
		return batch.SafetyNone
	case "storage":
		return batch.SafetyStorage
	default:
		return batch.SafetyNetwork
	}
}

func parseOrdering(s string) batch.Ordering {
	switch s {
	case "semi":
		return batch.OrderingSemi
	case "none":
		return batch.OrderingNone
	default:
		return batch.OrderingStrict
	}
}

func parsePersistency(s string) batch.Persistency {
	switch s {
	case "immediate":
		return batch.PersistencyImmediate
	default:
		return batch.PersistencyEventual
	}
}

// ResolveSemantics resolves the configured Semantics bundle, falling back
// to DefaultSemantics for any field left at its zero value.
func (c *Config) ResolveSemantics() batch.Semantics {
	return batch.Semantics{
		Atomicity:   parseAtomicity(c.Semantics.Atomicity),
		Concurrency: parseConcurrency(c.Semantics.Concurrency),
		Consistency: parseConsistency(c.Semantics.Consistency),
		Safety:      parseSafety(c.Semantics.Safety),
		Ordering:    parseOrdering(c.Semantics.Ordering),
		Persistency: parsePersistency(c.Semantics.Persistency),
	}
}
