package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"backupwatch/internal/adapters/store"
	"backupwatch/internal/config"
	"backupwatch/internal/core"
	"backupwatch/internal/di"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the selected operation
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one operation and prints its outcome
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	engine *core.Engine,
	st store.Store,
	mail config.MailConfig,
) error {
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), mail.RunTimeout)
	defer cancel()

	startTime := time.Now()

	var result core.OpResult
	switch flags.Run {
	case "reconcile":
		result = engine.ReconcileNow(ctx)
	case "report":
		result = engine.SendReportNow(ctx)
	default:
		return fmt.Errorf("unknown operation %q (expected reconcile or report)", flags.Run)
	}

	fmt.Printf("\n=== Result ===\n")
	fmt.Printf("Operation: %s\n", flags.Run)
	fmt.Printf("Succeeded: %t\n", result.OK)
	fmt.Printf("Message: %s\n", result.Message)
	fmt.Printf("Processing time: %v\n", time.Since(startTime))

	st.Stop()
	if !result.OK {
		logger.Sync()
		os.Exit(1)
	}
	return nil
}
