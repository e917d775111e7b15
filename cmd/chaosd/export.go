package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Convert an orchestration definition between JSON and YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := orchestration.LoadFile(args[0])
		if err != nil {
			return err
		}

		var data []byte
		switch exportFormat {
		case "json":
			data, err = def.ToJSON()
		case "yaml":
			data, err = def.ToYAML()
		default:
			return fmt.Errorf("unknown export format: %s", exportFormat)
		}
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "yaml", "output format: json or yaml")
}
