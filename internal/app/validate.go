package app

import (
	"fmt"
	"os"

	"glimpse/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, GLIMPSE_DB_PATH env, or server.db_path in config")
	}

	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if eff.Config.Outbox.QueueCapacity < 0 {
		return fmt.Errorf("outbox.queue_capacity must not be negative")
	}
	if eff.Config.Outbox.Workers < 0 {
		return fmt.Errorf("outbox.workers must not be negative")
	}
	if eff.Config.Limits.EditWindow.Duration() < 0 {
		return fmt.Errorf("limits.edit_window must not be negative")
	}

	return nil
}
