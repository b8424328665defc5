package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ordersync/cmd/ordersync-cli/commands"
	"ordersync/lib/telemetry"
)

func main() {
	// an interrupt must cancel the run cleanly so the browser session
	// is released instead of orphaned
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry.SetupFromEnv(ctx, "ordersync-cli")
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
