package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pawbook/backend/internal/service/bookings"
	grpcTransport "pawbook/backend/internal/transport/grpc"
)

func newTransitionCmd(opts *options) *cobra.Command {
	var req grpcTransport.TransitionBookingRequest

	cmd := &cobra.Command{
		Use:     "transition <booking-id> <status>",
		Short:   "Move a booking to another status",
		GroupID: "bookings",
		Args:    cobra.ExactArgs(2),
		Example: `  pawbookctl transition 0190... confirmed --actor employee
  pawbookctl transition 0190... cancelled --actor admin --initiator employee --reason "sick day"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.BookingID = args[0]
			req.TargetStatus = args[1]
			if req.TargetStatus == "cancelled" && req.Initiator == "" {
				req.Initiator = req.ActorRole
			}
			return withClient(cmd.Context(), opts, func(ctx context.Context, c *grpcTransport.BookingClient) error {
				resp, err := c.TransitionBooking(ctx, &req)
				if err != nil {
					return err
				}
				return printBooking(cmd.OutOrStdout(), opts, "Moved to "+resp.Booking.Status+":", resp.Booking)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.ActorRole, "actor", "", "role performing the change")
	f.StringVar(&req.Initiator, "initiator", "", "role the cancellation is attributed to (defaults to --actor)")
	f.StringVar(&req.Reason, "reason", "", "cancellation reason")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newTransitionsCmd(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "transitions",
		Short:   "Print the role transition table",
		GroupID: "admin",
		Args:    cobra.NoArgs,
		Long: `Print which role may move a booking between which statuses. With --file
the YAML table is loaded and validated exactly as the server would.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := bookings.DefaultTransitionTable()
			if file != "" {
				var err error
				table, err = bookings.LoadTransitionTable(file)
				if err != nil {
					return fmt.Errorf("load %s: %w", file, err)
				}
			}

			edges := table.Edges()
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				type edge struct {
					Role string `json:"role"`
					From string `json:"from"`
					To   string `json:"to"`
				}
				list := make([]edge, 0, len(edges))
				for _, e := range edges {
					list = append(list, edge{Role: string(e.Role), From: string(e.From), To: string(e.To)})
				}
				return printJSON(out, list)
			}
			if len(edges) == 0 {
				printEmptyState(out, "No transitions are allowed.")
				return nil
			}
			rows := make([][]string, 0, len(edges))
			for _, e := range edges {
				rows = append(rows, []string{string(e.Role), string(e.From), string(e.To)})
			}
			printTable(out, []string{"ROLE", "FROM", "TO"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML transition table to load instead of the default")
	return cmd
}
