package cache

import "fmt"

// DefaultMaxRetained is the number of values a Store keeps strongly
// reachable when Config.MaxRetained is left at zero.
const DefaultMaxRetained = 1024

// Config holds configuration for Store retention behavior.
type Config struct {
	// MaxRetained is the maximum number of values held by strong reference.
	// Zero selects DefaultMaxRetained.
	MaxRetained int
	// DisableRetention turns the LRU off so that values are held through
	// weak pointers only.
	DisableRetention bool
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxRetained < 0 {
		return fmt.Errorf("max retained must not be negative, got %d", c.MaxRetained)
	}
	return nil
}

// SetDefaults applies default values to unset fields in the configuration.
func (c *Config) SetDefaults() {
	if c.MaxRetained == 0 {
		c.MaxRetained = DefaultMaxRetained
	}
}
