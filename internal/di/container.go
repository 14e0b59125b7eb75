package di

import (
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
	"backupwatch/internal/scheduler"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
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

	// Register scheduler
	if err := container.Provide(func(logger *zap.Logger, loc *time.Location, mail config.MailConfig) *scheduler.Scheduler {
		return scheduler.NewScheduler(logger, loc, mail.RunTimeout)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
