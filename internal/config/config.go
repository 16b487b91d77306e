package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	Secret   string `mapstructure:"secret"`
	Label    string `mapstructure:"label"`

	ReadLimit    int64         `mapstructure:"read_limit"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	WSPingPeriod time.Duration `mapstructure:"ws_ping_period"`

	ReconnectionTimeout time.Duration `mapstructure:"reconnection_timeout"`
	MaxHeartbeats       int           `mapstructure:"max_heartbeats"`
	PingWatchdog        bool          `mapstructure:"ping_watchdog"`
	PingInterval        time.Duration `mapstructure:"ping_interval"`
	MissedPings         int           `mapstructure:"missed_pings"`

	HTTPResponseTimeout time.Duration `mapstructure:"http_response_timeout"`
	MetricsPath         string        `mapstructure:"metrics_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "change-me")
	v.SetDefault("label", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("write_wait", "5s")
	v.SetDefault("ws_ping_period", "54s")
	v.SetDefault("reconnection_timeout", "10s")
	v.SetDefault("max_heartbeats", 0)
	v.SetDefault("ping_watchdog", true)
	v.SetDefault("ping_interval", "5s")
	v.SetDefault("missed_pings", 3)
	v.SetDefault("http_response_timeout", "10s")
	v.SetDefault("metrics_path", "/metrics")
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// Environment variables (JSONRPCD_PORT, ...) and flags, when given,
// take precedence over the file.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("jsonrpcd")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			if f.Name == "config-env" {
				return
			}
			bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	env := os.Getenv("CONFIG_ENV")
	if flags != nil {
		if f := flags.Lookup("config-env"); f != nil && f.Changed {
			env = f.Value.String()
		}
	}
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Dur("reconnection_timeout", cfg.ReconnectionTimeout).Bool("ping_watchdog", cfg.PingWatchdog).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ReconnectionTimeout < 0 {
		return fmt.Errorf("reconnection_timeout must not be negative")
	}
	if c.MaxHeartbeats < 0 {
		return fmt.Errorf("max_heartbeats must not be negative")
	}
	if c.WSPingPeriod <= 0 {
		return fmt.Errorf("ws_ping_period must be positive")
	}
	return nil
}

// PongWait is how long a websocket may stay silent; slightly longer than
// the ping period so one late pong is tolerated.
func (c *Config) PongWait() time.Duration {
	return c.WSPingPeriod * 10 / 9
}
