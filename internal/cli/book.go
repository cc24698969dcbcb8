package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	grpcTransport "pawbook/backend/internal/transport/grpc"
)

func newBookCmd(opts *options) *cobra.Command {
	var (
		req grpcTransport.CreateBookingRequest
		key string
	)

	cmd := &cobra.Command{
		Use:     "book",
		Short:   "Book an open slot",
		GroupID: "bookings",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), opts, func(ctx context.Context, c *grpcTransport.BookingClient) error {
				resp, err := c.CreateBooking(withIdempotencyKey(ctx, key), &req)
				if err != nil {
					return err
				}
				return printBooking(cmd.OutOrStdout(), opts, "Booked", resp.Booking)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.ActorRole, "actor", "customer", "role creating the booking (customer or admin)")
	f.StringVar(&req.CustomerID, "customer", "", "customer id")
	f.StringVar(&req.EmployeeID, "employee", "", "employee id")
	f.StringVar(&req.ServiceID, "service", "", "service id")
	f.StringVar(&req.PetID, "pet", "", "pet id")
	f.StringVar(&req.Date, "date", "", "date (YYYY-MM-DD)")
	f.StringVar(&req.StartTime, "start", "", "start time (HH:mm)")
	f.StringVar(&key, "idempotency-key", "", "retry-safe request key")
	for _, name := range []string{"customer", "employee", "service", "pet", "date", "start"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "show <booking-id>",
		Short:   "Show a booking",
		GroupID: "bookings",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), opts, func(ctx context.Context, c *grpcTransport.BookingClient) error {
				resp, err := c.GetBooking(ctx, &grpcTransport.GetBookingRequest{BookingID: args[0]})
				if err != nil {
					return err
				}
				return printBooking(cmd.OutOrStdout(), opts, "", resp.Booking)
			})
		},
	}
}

func printBooking(w io.Writer, opts *options, headline string, b *grpcTransport.Booking) error {
	if opts.jsonOutput {
		return printJSON(w, b)
	}
	if b == nil {
		return fmt.Errorf("server returned no booking")
	}
	if headline != "" {
		printSuccess(w, fmt.Sprintf("%s %s", headline, b.ID))
	}
	printLabelValue(w, "Booking", b.ID)
	printLabelValue(w, "Status", b.Status)
	printLabelValue(w, "When", fmt.Sprintf("%s %s-%s", b.Date, b.StartTime, b.EndTime))
	printLabelValue(w, "Employee", b.EmployeeID)
	printLabelValue(w, "Customer", b.CustomerID)
	printLabelValue(w, "Pet", b.PetID)
	printLabelValue(w, "Service", b.ServiceID)
	if c := b.Cancellation; c != nil {
		reason := c.Reason
		if reason == "" {
			reason = "-"
		}
		printLabelValue(w, "Cancelled by", c.Initiator)
		printLabelValue(w, "Reason", reason)
	}
	return nil
}
