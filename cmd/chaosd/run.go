package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/engine"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/events"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
)

var runReport bool

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute an orchestration definition locally",
	Long: `Run loads a JSON or YAML orchestration definition and executes it
to completion, logging step progress. Interrupting with SIGINT stops
the run and still executes cleanup hooks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := orchestration.LoadFile(args[0])
		if err != nil {
			return err
		}
		if runReport {
			def.EnableReporting = true
		}

		bus := events.NewBus(
			events.WithDefaultBufferSize(cfg.Engine.EventBufferSize),
		)
		defer bus.Close()

		executor := engine.NewExecutor(bus,
			engine.WithLogger(logger),
			engine.WithActionSink(engine.NewDefaultSink(logger, cfg.Engine.HookTimeout)),
		)
		run, err := executor.NewRun(def)
		if err != nil {
			return err
		}

		if err := run.Control(engine.ControlStart); err != nil {
			return err
		}

		// SIGINT turns into a stop command so cleanup hooks still run.
		ctx := cmd.Context()
		go func() {
			select {
			case <-ctx.Done():
				run.Control(engine.ControlStop)
			case <-run.Done():
			}
		}()
		<-run.Done()

		if report := run.Report(); report != nil {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(data))
		}

		if status := run.Status(); status != engine.RunStatusCompleted {
			return fmt.Errorf("run finished with status %s", status)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runReport, "report", false, "print the execution report as JSON")
}
