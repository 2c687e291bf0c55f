package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/server-sim/server-sim/sim/scenario"
)

var validatePath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a scenario file without running it",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		sc, err := scenario.Load(validatePath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := reportValidation(cmd.OutOrStdout(), sc); err != nil {
			logrus.Fatalf("scenario %s is invalid: %v", validatePath, err)
		}
	},
}

func reportValidation(w io.Writer, sc *scenario.Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(w, "scenario %q is valid: %d nodes, %d connections, %d injections, %d events\n",
		sc.Name, len(sc.Nodes), len(sc.Connections), len(sc.Injections), len(sc.Events))
	return nil
}

func init() {
	addLogFlag(validateCmd)
	validateCmd.Flags().StringVar(&validatePath, "scenario", "", "Scenario file to validate")
	_ = validateCmd.MarkFlagRequired("scenario")
}
