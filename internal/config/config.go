// Package config provides configuration types for the outprocess module
// gateway.
//
// Configuration is file-based (YAML), loaded via Viper, with environment
// variable overrides for operational fields.
package config

// Config is the top-level on-disk configuration for one gateway instance
// driving one remote module. The deployments this gateway targets run a
// single module host per process; a gateway managing a fleet of module
// hosts loads one Config per instance.
type Config struct {
	// Module describes the remote module instance this gateway proxies.
	Module ModuleConfig `yaml:"module" mapstructure:"module"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Telemetry configures metrics and tracing export.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables verbose logging and relaxed defaults for local
	// development.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ModuleConfig mirrors outprocmod.Config's on-disk shape: opaque module
// args, two transport URIs, lifecycle mode, and the handshake/retry knobs.
type ModuleConfig struct {
	// ControlURI is the endpoint locator for the control channel (e.g.
	// "@tcp://127.0.0.1:5555" to bind, ">tcp://127.0.0.1:5556" to
	// connect — the leading marker is the transport adapter's bind/
	// connect convention).
	ControlURI string `yaml:"control_uri" mapstructure:"control_uri" validate:"required,endpoint_uri"`

	// MessageURI is the endpoint locator for the data channel.
	MessageURI string `yaml:"message_uri" mapstructure:"message_uri" validate:"required,endpoint_uri"`

	// Args is the opaque command-line/identity string handed to the
	// module host at handshake time.
	Args string `yaml:"args" mapstructure:"args" validate:"required"`

	// LifecycleMode is "sync" or "async".
	LifecycleMode string `yaml:"lifecycle_mode" mapstructure:"lifecycle_mode" validate:"omitempty,oneof=sync async"`

	// RemoteMessageWaitMS is the control-socket receive timeout and
	// handshake retry sleep, in milliseconds. Zero is a valid, explicitly
	// honored setting — it is only replaced by DefaultRemoteMessageWaitMS
	// when the key is absent from the loaded config, never when it's
	// present and zero.
	RemoteMessageWaitMS int `yaml:"remote_message_wait_ms" mapstructure:"remote_message_wait_ms" validate:"omitempty,min=0"`

	// DestroyRetries bounds the best-effort destroy-frame send. Defaults
	// to outprocmod.DefaultDestroyRetries.
	DestroyRetries int `yaml:"destroy_retries" mapstructure:"destroy_retries" validate:"omitempty,min=0"`

	// QueueLimit bounds the outgoing queue; 0 means unbounded.
	QueueLimit int `yaml:"queue_limit" mapstructure:"queue_limit" validate:"omitempty,min=0"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Format is "text" or "json".
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// TelemetryConfig configures Prometheus metrics and OpenTelemetry tracing.
type TelemetryConfig struct {
	// MetricsAddr is the address the Prometheus /metrics endpoint binds
	// to. Empty disables the metrics server.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	// TracingEnabled turns on the stdout trace exporter.
	TracingEnabled bool `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
}

// SetDefaults fills in zero-valued optional fields. Defaults for
// RemoteMessageWaitMS/DestroyRetries are applied by the loader via Viper's
// SetDefault (which only fires when the key is entirely absent from the
// merged config), not here — this method only defaults fields where a
// present-but-zero value has no special meaning.
func (c *Config) SetDefaults() {
	if c.Module.LifecycleMode == "" {
		c.Module.LifecycleMode = "sync"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.DevMode {
		c.Log.Level = "debug"
	}
}
