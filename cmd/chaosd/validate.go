package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate orchestration definitions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := false
		for _, path := range args {
			def, err := orchestration.LoadFile(path)
			if err != nil {
				failed = true
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(os.Stdout, "%s: ok (%q, %d steps, %d conditional)\n",
				path, def.Name, len(def.Steps), len(def.ConditionalSteps))
		}
		if failed {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}
