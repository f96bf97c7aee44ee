package resilience

import "time"

// Circuit breaker defaults.
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3
)

// Config holds circuit breaker settings. Threshold failures open the breaker,
// ResetTimeout later one probe is let through, HalfOpenSuccesses close it.
type Config struct {
	Name              string        `mapstructure:"-" yaml:"-"`
	Threshold         int           `mapstructure:"threshold" yaml:"threshold"`
	ResetTimeout      time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
	HalfOpenSuccesses int           `mapstructure:"half_open_successes" yaml:"half_open_successes"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// Named returns a copy of c labelled for logs.
func (c Config) Named(name string) Config {
	c.Name = name
	return c
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
