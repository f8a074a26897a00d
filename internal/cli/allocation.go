package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AllocationCmd returns the allocation command group.
func AllocationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocation",
		Short: "Track resource allocations",
	}
	cmd.AddCommand(allocationStatusCmd())
	return cmd
}

func allocationStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <allocation-id> <in_transit|delivered|cancelled>",
		Short: "Transition an allocation's delivery status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := NewClient().Post("/api/allocations/"+args[0]+"/status", map[string]any{
				"status": args[1],
			})
			if err != nil {
				return err
			}
			ok("allocation %s updated", args[0])
			printStatus("status", out["status"])
			fmt.Printf("resource: %v  quantity: %v\n", out["resource_id"], out["quantity"])
			return nil
		},
	}
}

// EventsCmd returns the journal listing command.
func EventsCmd() *cobra.Command {
	var limit int
	var eventType string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent domain events from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/events?limit=%d", limit)
			if eventType != "" {
				path += "&type=" + eventType
			}
			out, err := NewClient().Get(path)
			if err != nil {
				return err
			}
			events, _ := out["events"].([]any)
			if len(events) == 0 {
				fmt.Println("no events")
				return nil
			}
			for _, raw := range events {
				ev, _ := raw.(map[string]any)
				fmt.Printf("%v  %v\n", ev["occurred_at"], ev["type"])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum events to list")
	cmd.Flags().StringVar(&eventType, "type", "", "filter by event type")
	return cmd
}
