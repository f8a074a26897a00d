package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DisasterCmd returns the disaster command group.
func DisasterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disaster",
		Short: "Inspect and transition tracked disasters",
	}
	cmd.AddCommand(disasterListCmd())
	cmd.AddCommand(disasterStatusCmd())
	return cmd
}

func disasterListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List disasters from the GeoJSON map",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/disasters"
			if status != "" {
				path += "?status=" + status
			}
			out, err := NewClient().Get(path)
			if err != nil {
				return err
			}
			features, _ := out["features"].([]any)
			if len(features) == 0 {
				fmt.Println("no disasters")
				return nil
			}
			for _, f := range features {
				props, _ := f.(map[string]any)["properties"].(map[string]any)
				fmt.Printf("%v  %v sev=%v priority=%v affected=%v reports=%v\n",
					props["id"], props["type"], props["severity"],
					props["priority"], props["affected"], props["report_count"])
				printStatus("  status", props["status"])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (active, contained, resolved)")
	return cmd
}

func disasterStatusCmd() *cobra.Command {
	var endTime string

	cmd := &cobra.Command{
		Use:   "status <disaster-id> <active|contained|resolved>",
		Short: "Transition a disaster's lifecycle status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"status": args[1]}
			if endTime != "" {
				body["end_time"] = endTime
			}
			out, err := NewClient().Post("/api/disasters/"+args[0]+"/status", body)
			if err != nil {
				return err
			}
			ok("disaster %s transitioned", args[0])
			printStatus("status", out["status"])
			return nil
		},
	}
	cmd.Flags().StringVar(&endTime, "end-time", "", "end time (RFC3339), required when resolving")
	return cmd
}
