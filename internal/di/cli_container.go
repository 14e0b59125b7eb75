package di

import (
	"flag"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"backupwatch/internal/adapters/imapmail"
	"backupwatch/internal/adapters/smtpmail"
	"backupwatch/internal/adapters/store"
	"backupwatch/internal/config"
	"backupwatch/internal/core"
	"backupwatch/internal/factory"
	"backupwatch/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Operation selection
	Run string

	// Storage flags
	StorageType string
	SQLitePath  string
	MySQLDSN    string

	// Transport flags
	DialTimeout time.Duration
	Timezone    string

	// Output flags
	ReportSubject string
	Verbose       bool
	JSONLog       bool
	ConfigFile    string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// Operation selection
	flag.StringVar(&flags.Run, "run", "reconcile", "Operation to run (reconcile, report)")

	// Storage flags
	flag.StringVar(&flags.StorageType, "storage", "sqlite", "Storage backend (memory, sqlite, mysql)")
	flag.StringVar(&flags.SQLitePath, "sqlite-path", "./data/backupwatch.db", "Path to SQLite database")
	flag.StringVar(&flags.MySQLDSN, "mysql-dsn", "", "MySQL DSN")

	// Transport flags
	flag.DurationVar(&flags.DialTimeout, "dial-timeout", 10*time.Second, "Mailbox dial timeout")
	flag.StringVar(&flags.Timezone, "timezone", "Local", "Timezone for window and report times")

	// Output flags
	flag.StringVar(&flags.ReportSubject, "report-subject", "Backup status report", "Subject line for sent reports")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register resolved timezone
	if err := container.Provide(func(cfg *config.Config) (*time.Location, error) {
		return cfg.GetTimezone()
	}); err != nil {
		return nil, err
	}

	// Register mail transport tuning
	if err := container.Provide(func(cfg *config.Config) (config.MailConfig, error) {
		return cfg.GetMail()
	}); err != nil {
		return nil, err
	}

	// Register store factory and the persistence backend it creates
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory) (store.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(st store.Store) core.ClientStore { return st }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(st store.Store) core.SettingsStore { return st }); err != nil {
		return nil, err
	}

	// Register mailbox scanner
	if err := container.Provide(func(logger *zap.Logger, loc *time.Location, mail config.MailConfig) core.MailboxScanner {
		return imapmail.NewScanner(logger, loc, mail.DialTimeout)
	}); err != nil {
		return nil, err
	}

	// Register report sender
	if err := container.Provide(func(logger *zap.Logger) core.ReportSender {
		return smtpmail.NewSender(logger)
	}); err != nil {
		return nil, err
	}

	// Register reconciliation engine
	if err := container.Provide(func(
		clients core.ClientStore,
		settings core.SettingsStore,
		scanner core.MailboxScanner,
		sender core.ReportSender,
		logger *zap.Logger,
		loc *time.Location,
		cfg *config.Config,
	) *core.Engine {
		return core.NewEngine(clients, settings, scanner, sender, logger, loc, cfg.GetReport().Subject)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("app.timezone", flags.Timezone)

	v.Set("storage.type", flags.StorageType)
	v.Set("storage.sqlite_path", flags.SQLitePath)
	v.Set("storage.mysql_dsn", flags.MySQLDSN)

	v.Set("mail.dial_timeout", flags.DialTimeout.String())
	v.Set("mail.run_timeout", "5m")

	v.Set("report.subject", flags.ReportSubject)

	return config.NewFromViper(v)
}
