package main

import (
	"github.com/spf13/cobra"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/engine"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/events"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestration control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		bus := events.NewBus(
			events.WithDefaultBufferSize(cfg.Engine.EventBufferSize),
		)
		defer bus.Close()

		executor := engine.NewExecutor(bus,
			engine.WithLogger(logger),
			engine.WithActionSink(engine.NewDefaultSink(logger, cfg.Engine.HookTimeout)),
		)
		registry := engine.NewRegistry()

		srv := server.New(logger, executor, registry, bus)
		return srv.Run(cmd.Context(), server.Config{
			Addr:            cfg.Server.Addr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		})
	},
}
