package reactor

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SchedulerConfig describes a pooled execution context.
type SchedulerConfig struct {
	// Size is the number of goroutines of the pool. Lower or equal to 0 means unbounded.
	Size int `mapstructure:"size"`
	// ExpiryDuration is how long an idle goroutine is kept.
	ExpiryDuration time.Duration `mapstructure:"expiry"`
	// PreAlloc allocates the goroutine slots upfront. Ignored for unbounded pools.
	PreAlloc bool `mapstructure:"prealloc"`
	// Nonblocking makes Schedule fail instead of waiting when the pool is full.
	Nonblocking bool `mapstructure:"nonblocking"`
	// MaxBlockingTasks bounds how many callers may wait on a full pool. 0 means no limit.
	MaxBlockingTasks int `mapstructure:"max_blocking_tasks"`
}

// DefaultSchedulerConfig returns the configuration of an elastic scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Size:           -1,
		ExpiryDuration: time.Second,
	}
}

// LoadSchedulerConfig reads the scheduler configuration found under key. Missing values keep their default.
func LoadSchedulerConfig(v *viper.Viper, key string) (SchedulerConfig, error) {
	cfg := DefaultSchedulerConfig()
	v.SetDefault(key+".size", cfg.Size)
	v.SetDefault(key+".expiry", cfg.ExpiryDuration)
	v.SetDefault(key+".prealloc", cfg.PreAlloc)
	v.SetDefault(key+".nonblocking", cfg.Nonblocking)
	v.SetDefault(key+".max_blocking_tasks", cfg.MaxBlockingTasks)

	if err := v.UnmarshalKey(key, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal scheduler config %q: %w", key, err)
	}
	if cfg.ExpiryDuration < 0 {
		return cfg, fmt.Errorf("scheduler config %q: negative expiry %s", key, cfg.ExpiryDuration)
	}
	return cfg, nil
}
