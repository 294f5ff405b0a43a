package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// DefaultRemoteMessageWaitMS is applied only when remote_message_wait_ms
// is entirely absent from the merged configuration (file + env); an
// explicit "0" in the file is preserved.
const DefaultRemoteMessageWaitMS = 2000

// DefaultDestroyRetries mirrors outprocmod.DefaultDestroyRetries; kept
// as a separate constant here so this package does not need to import
// the domain package just to read one default.
const DefaultDestroyRetries = 10

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for
// outproc-gateway.yaml/.yml in standard locations. The search requires an
// explicit YAML extension to avoid matching the binary itself, which
// Viper's built-in SetConfigName would match (same base name, no
// extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("outproc-gateway")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("OUTPROC_GATEWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()

	// SetDefault only takes effect when the key is absent from both the
	// file and the environment — it never overrides an explicit zero,
	// which is the behavior remote_message_wait requires.
	viper.SetDefault("module.remote_message_wait_ms", DefaultRemoteMessageWaitMS)
	viper.SetDefault("module.destroy_retries", DefaultDestroyRetries)
}

// findConfigFile searches standard locations for an outproc-gateway
// config file with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".outproc-gateway"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "outproc-gateway"))
		}
	} else {
		paths = append(paths, "/etc/outproc-gateway")
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "outproc-gateway"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the config keys operators most commonly need to
// override per-deployment without editing the file.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("module.control_uri")
	_ = viper.BindEnv("module.message_uri")
	_ = viper.BindEnv("module.args")
	_ = viper.BindEnv("module.lifecycle_mode")
	_ = viper.BindEnv("module.remote_message_wait_ms")
	_ = viper.BindEnv("module.destroy_retries")
	_ = viper.BindEnv("module.queue_limit")

	_ = viper.BindEnv("log.level")
	_ = viper.BindEnv("log.format")

	_ = viper.BindEnv("telemetry.metrics_addr")
	_ = viper.BindEnv("telemetry.tracing_enabled")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides
// and defaults, validates, and returns the Config.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or an empty string if none was found (env vars only).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
