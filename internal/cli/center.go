package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CenterCmd returns the evacuation-center command group.
func CenterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "center",
		Short: "Manage evacuation centers",
	}
	cmd.AddCommand(centerListCmd())
	cmd.AddCommand(centerCloseCmd())
	cmd.AddCommand(centerReopenCmd())
	cmd.AddCommand(centerReleaseCmd())
	return cmd
}

func centerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List centers with occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := NewClient().Get("/api/centers")
			if err != nil {
				return err
			}
			centers, _ := out["centers"].([]any)
			if len(centers) == 0 {
				fmt.Println("no centers")
				return nil
			}
			for _, raw := range centers {
				c, _ := raw.(map[string]any)
				fmt.Printf("%v  %v  %v/%v\n", c["id"], c["name"], c["occupancy"], c["capacity"])
				printStatus("  status", c["status"])
			}
			return nil
		},
	}
}

func centerCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <center-id>",
		Short: "Close a center to new evacuees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := NewClient().Post("/api/centers/"+args[0]+"/close", nil)
			if err != nil {
				return err
			}
			ok("center %s closed", args[0])
			printStatus("status", out["status"])
			return nil
		},
	}
}

func centerReopenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <center-id>",
		Short: "Reopen a closed center",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := NewClient().Post("/api/centers/"+args[0]+"/reopen", nil)
			if err != nil {
				return err
			}
			ok("center %s reopened", args[0])
			printStatus("status", out["status"])
			return nil
		},
	}
}

func centerReleaseCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "release <center-id>",
		Short: "Release evacuees from a center",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := NewClient().Post("/api/centers/"+args[0]+"/release", map[string]any{
				"count": count,
			})
			if err != nil {
				return err
			}
			ok("released %d from %s, occupancy now %v/%v", count, args[0], out["occupancy"], out["capacity"])
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of evacuees to release")
	return cmd
}
