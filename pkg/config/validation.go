package config

import "fmt"

// validate checks the loaded configuration's internal consistency.
func validate(cfg *Config) error {
	for name, port := range map[string]int{
		"ports.dextra":      cfg.Ports.DExtra,
		"ports.dextra_open": cfg.Ports.DExtraOpen,
		"ports.dplus":       cfg.Ports.DPlus,
		"ports.ambed":       cfg.Ports.AMBEd,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
		}
	}

	if cfg.Timing.HandshakeTimeout <= 0 {
		return fmt.Errorf("timing.handshake_timeout must be positive")
	}
	if cfg.Timing.FramePacing <= 0 {
		return fmt.Errorf("timing.frame_pacing must be positive")
	}
	if cfg.Timing.WorkerIdleSleep <= 0 {
		return fmt.Errorf("timing.worker_idle_sleep must be positive")
	}
	if cfg.Timing.AMBEdFramePacing <= 0 {
		return fmt.Errorf("timing.ambed_frame_pacing must be positive")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug/info/warn/error", cfg.Logging.Level)
	}

	if cfg.Recorder.DatabasePath == "" {
		return fmt.Errorf("recorder.database_path must not be empty")
	}

	return nil
}
