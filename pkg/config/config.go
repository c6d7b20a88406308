// Package config loads optional per-tool defaults from a YAML file and
// DVTOOL_-prefixed environment variables, layered over this package's
// built-in defaults and under the CLI tools' flag overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the tunables shared by the five CLI tools: reflector and
// AMBEd port defaults, handshake/pacing timing, and logging.
type Config struct {
	Ports    PortsConfig    `mapstructure:"ports"`
	Timing   TimingConfig   `mapstructure:"timing"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Recorder RecorderConfig `mapstructure:"recorder"`
}

// PortsConfig holds the default UDP ports for each reflector/AMBEd
// protocol.
type PortsConfig struct {
	DExtra     int `mapstructure:"dextra"`
	DExtraOpen int `mapstructure:"dextra_open"`
	DPlus      int `mapstructure:"dplus"`
	AMBEd      int `mapstructure:"ambed"`
}

// TimingConfig holds the concurrency model's timing constants (§5 of the
// design: handshake deadline, frame pacing, worker idle sleep).
type TimingConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	FramePacing      time.Duration `mapstructure:"frame_pacing"`
	WorkerIdleSleep  time.Duration `mapstructure:"worker_idle_sleep"`
	AMBEdFramePacing time.Duration `mapstructure:"ambed_frame_pacing"`
}

// LoggingConfig mirrors pkg/logger's Config shape so it can be loaded from
// file/env and handed straight to logger.New.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RecorderConfig holds recorder-specific settings: where flushed streams
// are indexed.
type RecorderConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// Load reads configuration from configFile (if non-empty) or the default
// search path. DVTOOL_-prefixed environment variables take precedence over
// the file, and built-in defaults fill in whatever neither sets.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dvtool")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/dstar-toolkit")
	}

	v.SetEnvPrefix("DVTOOL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no config file is fine; defaults and env vars still apply
		} else if os.IsNotExist(err) {
			// explicitly named file missing is also fine
		} else {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ports.dextra", 30001)
	v.SetDefault("ports.dextra_open", 30201)
	v.SetDefault("ports.dplus", 20001)
	v.SetDefault("ports.ambed", 10100)

	v.SetDefault("timing.handshake_timeout", 3*time.Second)
	v.SetDefault("timing.frame_pacing", 20*time.Millisecond)
	v.SetDefault("timing.worker_idle_sleep", 10*time.Millisecond)
	v.SetDefault("timing.ambed_frame_pacing", 20*time.Millisecond)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("recorder.database_path", "recordings.db")
}
