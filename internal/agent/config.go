package agent

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the agent's runtime configuration, merged from defaults, an
// optional config file and COREFREQ_* environment variables.
type Config struct {
	// ListenAddr is the control API bind address.
	ListenAddr string `mapstructure:"listenAddr"`
	// MetricsAddr is the prometheus endpoint bind address.
	MetricsAddr string `mapstructure:"metricsAddr"`
	// TableDir holds the freqtable-*.yaml files.
	TableDir string `mapstructure:"tableDir"`
	// WatchTables reloads table files on change.
	WatchTables bool `mapstructure:"watchTables"`
	// Verbosity is the log V-level.
	Verbosity int `mapstructure:"verbosity"`
}

// LoadConfig reads the agent config. path may be empty, in which case only
// defaults and environment variables apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("listenAddr", "127.0.0.1:10040")
	v.SetDefault("metricsAddr", "127.0.0.1:10041")
	v.SetDefault("tableDir", "/etc/corefreq")
	v.SetDefault("watchTables", true)
	v.SetDefault("verbosity", 0)

	v.SetEnvPrefix("COREFREQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	return &cfg, nil
}
