package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/server-sim/server-sim/sim"
	"github.com/server-sim/server-sim/sim/scenario"
)

var inspectPath string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the nodes, connections and traversal order of a scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		sc, err := loadScenario(inspectPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		built, err := scenario.Build(sc)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		writeInspection(cmd.OutOrStdout(), built.Network)
	},
}

func writeInspection(w io.Writer, network *sim.Network) {
	fmt.Fprintln(w, "=== Nodes ===")
	for _, node := range network.Nodes() {
		fmt.Fprintf(w, "%3d %-10s %-12s consumes=[%s] produces=[%s]", node.ID(), node.Kind(), node.Label(),
			joinTypes(node.ConsumedTypes()), joinTypes(node.ProducedTypes()))
		if node.Target != "" {
			fmt.Fprintf(w, " target=%s", node.Target)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Connections ===")
	for _, c := range network.Connections() {
		from, _ := network.Node(c.From)
		to, _ := network.Node(c.To)
		fmt.Fprintf(w, "%s -> %s\n", from.Label(), to.Label())
	}

	order := network.TraversalOrder()
	labels := make([]string, len(order))
	for i, node := range order {
		labels[i] = node.Label()
	}
	fmt.Fprintln(w, "=== Traversal ===")
	fmt.Fprintln(w, strings.Join(labels, " -> "))
	if unreachable := network.Len() - len(order); unreachable > 0 {
		fmt.Fprintf(w, "%d node(s) unreachable from %s\n", unreachable, network.Root().Label())
	}
}

func joinTypes(types []sim.RequestType) string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return strings.Join(out, ",")
}

func init() {
	addLogFlag(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectPath, "scenario", "", "Scenario file; built-in scenario if empty")
}
