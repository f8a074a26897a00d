package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ReportCmd returns the report command group.
func ReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Validate and resolve incident reports",
	}
	cmd.AddCommand(reportValidateCmd())
	cmd.AddCommand(reportResolveCmd())
	cmd.AddCommand(reportShowCmd())
	return cmd
}

func reportValidateCmd() *cobra.Command {
	var invalid bool
	var notes string

	cmd := &cobra.Command{
		Use:   "validate <report-id>",
		Short: "Mark a pending report valid (or invalid with --invalid)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := NewClient().Post("/api/reports/"+args[0]+"/validate", map[string]any{
				"valid": !invalid,
				"notes": notes,
			})
			if err != nil {
				return err
			}
			ok("report %s validated", args[0])
			printStatus("status", out["status"])
			fmt.Printf("credibility: %v\n", out["credibility"])
			return nil
		},
	}
	cmd.Flags().BoolVar(&invalid, "invalid", false, "reject the report instead of confirming it")
	cmd.Flags().StringVar(&notes, "notes", "", "validator notes recorded on the report")
	return cmd
}

func reportResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <report-id>",
		Short: "Mark a valid report resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := NewClient().Post("/api/reports/"+args[0]+"/resolve", nil)
			if err != nil {
				return err
			}
			ok("report %s resolved", args[0])
			printStatus("status", out["status"])
			return nil
		},
	}
}

func reportShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := NewClient().Get("/api/reports/" + args[0])
			if err != nil {
				return err
			}
			fmt.Printf("report %s (%v)\n", args[0], out["disaster_type"])
			printStatus("status", out["status"])
			fmt.Printf("severity: %v  credibility: %v  affected: %v\n",
				out["estimated_severity"], out["credibility"], out["affected"])
			if v, _ := out["validation_notes"].(string); v != "" {
				fmt.Printf("notes: %s\n", v)
			}
			return nil
		},
	}
}
