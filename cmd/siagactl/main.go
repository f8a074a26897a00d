package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/terrasiaga/coordination/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "siagactl",
		Short: "Operator CLI for the disaster coordination engine",
		Long: `siagactl drives the coordination HTTP API: validating reports,
transitioning disasters, managing evacuation centers, and tracking
resource allocations.

Server address comes from SIAGACTL_URL (default http://localhost:8080);
the operator identity sent as X-Actor-ID comes from SIAGACTL_ACTOR.`,
	}

	rootCmd.AddCommand(cli.ReportCmd())
	rootCmd.AddCommand(cli.DisasterCmd())
	rootCmd.AddCommand(cli.CenterCmd())
	rootCmd.AddCommand(cli.AllocationCmd())
	rootCmd.AddCommand(cli.EventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
