package config

import (
	"fmt"
	"time"
)

// StorageConfig represents the configuration for the persistence backend
type StorageConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// MailConfig represents transport-level tuning for mailbox and report
// connections. Credentials are not configured here; they are part of the
// runtime settings record.
type MailConfig struct {
	DialTimeout time.Duration
	RunTimeout  time.Duration
}

// ReportConfig represents fixed report rendering options
type ReportConfig struct {
	Subject string
}

// GetStorage returns the storage configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:       c.GetString("storage.type"),
		SQLitePath: c.GetString("storage.sqlite_path"),
		MySQLDSN:   c.GetString("storage.mysql_dsn"),
	}
}

// GetMail returns the mail transport configuration
func (c *Config) GetMail() (MailConfig, error) {
	dialTimeout, err := c.GetDuration("mail.dial_timeout")
	if err != nil {
		return MailConfig{}, fmt.Errorf("invalid mail dial timeout: %w", err)
	}
	runTimeout, err := c.GetDuration("mail.run_timeout")
	if err != nil {
		return MailConfig{}, fmt.Errorf("invalid mail run timeout: %w", err)
	}
	return MailConfig{DialTimeout: dialTimeout, RunTimeout: runTimeout}, nil
}

// GetReport returns the report rendering configuration
func (c *Config) GetReport() ReportConfig {
	return ReportConfig{
		Subject: c.GetString("report.subject"),
	}
}

// GetTimezone resolves the configured timezone. The resolved location is
// passed explicitly to every time-sensitive component; core logic never reads
// the process environment for it.
func (c *Config) GetTimezone() (*time.Location, error) {
	name := c.GetString("app.timezone")
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}
