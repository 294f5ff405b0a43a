package outprocmod

import (
	"fmt"
	"time"
)

// Config is the parsed, validated configuration for one remote module
// instance.
type Config struct {
	ControlURI        string
	MessageURI        string
	ModuleArgs        string
	LifecycleMode     LifecycleMode
	RemoteMessageWait time.Duration
	DestroyRetries    int
	QueueLimit        int // 0 = unbounded
}

// RawConfig is the opaque configuration string handed to ParseConfig
// before it's resolved into a Config.
type RawConfig = string

// ParseConfig wraps a raw configuration string. The real parsing here is
// delegated to internal/config, which understands the on-disk YAML shape;
// this function is the façade-level entry point that the gateway's
// broker-side caller actually uses, and it returns ("", false) on empty
// input rather than silently defaulting it.
func ParseConfig(raw RawConfig) (RawConfig, bool) {
	if raw == "" {
		return "", false
	}
	return raw, true
}

// FreeConfig releases a parsed configuration. Go's garbage collector makes
// this a no-op; the function exists so call sites that mirror the
// façade's allocate/parse/free lifecycle don't need a conditional.
func FreeConfig(RawConfig) {}

// Validate checks the fields a Config needs to be usable, returning
// ErrConfigInvalid wrapped with the specific problem.
func (c *Config) Validate() error {
	if c.ControlURI == "" {
		return fmt.Errorf("%w: control_uri is required", ErrConfigInvalid)
	}
	if c.MessageURI == "" {
		return fmt.Errorf("%w: message_uri is required", ErrConfigInvalid)
	}
	if c.ModuleArgs == "" {
		return fmt.Errorf("%w: module_args is required", ErrConfigInvalid)
	}
	if c.RemoteMessageWait < 0 {
		return fmt.Errorf("%w: remote_message_wait must be non-negative", ErrConfigInvalid)
	}
	if c.DestroyRetries < 0 {
		return fmt.Errorf("%w: destroy_retries must be non-negative", ErrConfigInvalid)
	}
	if c.QueueLimit < 0 {
		return fmt.Errorf("%w: queue_limit must be non-negative", ErrConfigInvalid)
	}
	return nil
}
