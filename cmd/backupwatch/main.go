package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"backupwatch/internal/adapters/store"
	"backupwatch/internal/core"
	"backupwatch/internal/di"
	"backupwatch/internal/scheduler"
)

// scheduleRefreshInterval is how often the daemon re-reads the settings
// record and reconfigures the trigger set, so that schedule edits take
// effect without a restart.
const scheduleRefreshInterval = time.Minute

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	engine *core.Engine,
	sched *scheduler.Scheduler,
	settings core.SettingsStore,
	st store.Store,
) error {
	defer logger.Sync()

	sched.Register(core.JobReconciliation, func(ctx context.Context) {
		result := engine.ReconcileNow(ctx)
		logScheduledResult(logger, core.JobReconciliation, result)
	})
	sched.Register(core.JobReport, func(ctx context.Context) {
		result := engine.SendReportNow(ctx)
		logScheduledResult(logger, core.JobReport, result)
	})

	if err := refreshSchedule(logger, sched, settings); err != nil {
		logger.Fatal("Failed to configure schedule", zap.Error(err))
		return err
	}

	refreshDone := make(chan struct{})
	go refreshLoop(logger, sched, settings, refreshDone)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	close(refreshDone)
	sched.Stop()
	st.Stop()

	logger.Info("Shutdown complete")
	return nil
}

// refreshLoop keeps the trigger set in sync with the persisted settings.
func refreshLoop(logger *zap.Logger, sched *scheduler.Scheduler, settings core.SettingsStore, done <-chan struct{}) {
	ticker := time.NewTicker(scheduleRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := refreshSchedule(logger, sched, settings); err != nil {
				logger.Error("Failed to refresh schedule", zap.Error(err))
			}
		}
	}
}

func refreshSchedule(logger *zap.Logger, sched *scheduler.Scheduler, settings core.SettingsStore) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	current, err := settings.GetSettings(ctx)
	if err != nil {
		return err
	}
	sched.Configure(core.PlanSchedule(current))
	return nil
}

func logScheduledResult(logger *zap.Logger, job string, result core.OpResult) {
	if result.OK {
		logger.Info("Scheduled run succeeded",
			zap.String("job", job),
			zap.String("result", result.Message))
		return
	}
	logger.Warn("Scheduled run did not complete",
		zap.String("job", job),
		zap.String("result", result.Message))
}
