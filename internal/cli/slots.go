package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pawbook/backend/internal/domain"
	grpcTransport "pawbook/backend/internal/transport/grpc"
)

func newSlotsCmd(opts *options) *cobra.Command {
	var req grpcTransport.ResolveAvailabilityRequest

	cmd := &cobra.Command{
		Use:     "slots",
		Short:   "List open start times for an employee on a date",
		GroupID: "bookings",
		Args:    cobra.NoArgs,
		Example: `  pawbookctl slots --employee 0190... --date 2026-03-02 --duration 60
  pawbookctl slots --employee 0190... --date 2026-03-02 --service 0190...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.DurationMinutes == 0 && req.ServiceID == "" {
				return fmt.Errorf("one of --duration or --service is required")
			}
			if req.GranularityMinutes != 0 {
				if err := domain.ValidateGranularity(req.GranularityMinutes); err != nil {
					return fmt.Errorf("--granularity: %w", err)
				}
			}
			return withClient(cmd.Context(), opts, func(ctx context.Context, c *grpcTransport.BookingClient) error {
				resp, err := c.ResolveAvailability(ctx, &req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOutput {
					return printJSON(out, resp)
				}
				if len(resp.Slots) == 0 {
					printEmptyState(out, fmt.Sprintf("No open slots on %s.", resp.Date))
					return nil
				}
				rows := make([][]string, 0, len(resp.Slots))
				for _, s := range resp.Slots {
					rows = append(rows, []string{s.Start, s.End})
				}
				printTable(out, []string{"START", "END"}, rows)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.EmployeeID, "employee", "", "employee id")
	f.StringVar(&req.Date, "date", "", "date (YYYY-MM-DD)")
	f.StringVar(&req.ServiceID, "service", "", "service id; its catalog duration is used")
	f.IntVar(&req.DurationMinutes, "duration", 0, "service duration in minutes")
	f.IntVar(&req.GranularityMinutes, "granularity", 0, "minutes between candidate start times (server default when 0)")
	_ = cmd.MarkFlagRequired("employee")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
