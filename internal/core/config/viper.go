package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"cib":          "cib.file",
	"host":         "service.host",
	"port":         "service.port",
	"metrics-addr": "service.metrics_addr",
	"db-url":       "journal.db_url",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags present in the set and changed by the user
// override lower layers.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("cib.file", def.CIBFile)
	v.SetDefault("service.host", def.Service.Host)
	v.SetDefault("service.port", def.Service.Port)
	v.SetDefault("service.request_timeout", def.Service.RequestTimeout.String())
	v.SetDefault("service.metrics_addr", def.Service.MetricsAddr)
	v.SetDefault("journal.db_url", def.Journal.DBURL)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	// Bind environment variables with CIBRULE_ prefix
	v.SetEnvPrefix("CIBRULE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		CIBFile: v.GetString("cib.file"),
		Service: ServiceConfig{
			Host:           v.GetString("service.host"),
			Port:           v.GetInt("service.port"),
			RequestTimeout: v.GetDuration("service.request_timeout"),
			MetricsAddr:    v.GetString("service.metrics_addr"),
		},
		Journal: JournalConfig{
			DBURL: v.GetString("journal.db_url"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range, timeout, and log settings.
func validateConfig(cfg *Config) error {
	if cfg.Service.Port <= 0 || cfg.Service.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Service.Port)
	}
	if cfg.Service.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Service.RequestTimeout)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", cfg.Log.Format)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
// InConfig ignores the environment, so CIBRULE_HMAC_SECRET itself passes.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("service.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use CIBRULE_HMAC_SECRET environment variable)")
	}
	return nil
}
