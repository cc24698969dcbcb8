package grpc

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/service/availability"
	"pawbook/backend/internal/service/bookings"
	"pawbook/backend/internal/service/catalog"
	"pawbook/backend/internal/store/memory"
)

type harness struct {
	client   *BookingClient
	employee string
	service  string
}

func startServer(t *testing.T) harness {
	t.Helper()

	s := memory.New()
	emp := s.AddEmployee(domain.Employee{DisplayName: "Dana", IsActive: true})
	svc := s.AddService(domain.Service{Name: "Bath", DurationMinutes: 60, IsActive: true})
	s.AddShiftTemplate(domain.ShiftTemplate{
		EmployeeID:    emp.ID,
		DayOfWeek:     1,
		StartTime:     domain.MustTimeOfDay("09:00"),
		EndTime:       domain.MustTimeOfDay("12:00"),
		EffectiveFrom: domain.MustDate("2026-01-01"),
		IsActive:      true,
	})

	cat := catalog.New(s, slog.Default())
	resolver := availability.NewResolver(availability.Stores{
		Employees: s,
		Templates: s.Templates(),
		Overrides: s,
		Breaks:    s.Breaks(),
		Bookings:  s.Bookings(),
	}, availability.WithCatalog(cat))
	manager := bookings.NewManager(resolver, s.Bookings(), bookings.WithCatalog(cat))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(DefaultRequestTimeoutInterceptor(5 * time.Second)))
	RegisterBookingServiceServer(srv, NewBookingServer(resolver, manager, slog.Default()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return harness{client: NewBookingClient(conn), employee: emp.ID.String(), service: svc.ID.String()}
}

func TestRoundTrip_ResolveBookTransition(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	avail, err := h.client.ResolveAvailability(ctx, &ResolveAvailabilityRequest{
		EmployeeID: h.employee,
		Date:       "2026-03-02",
		ServiceID:  h.service,
	})
	require.NoError(t, err)
	assert.Equal(t, []Slot{
		{Start: "09:00", End: "10:00"},
		{Start: "09:30", End: "10:30"},
		{Start: "10:00", End: "11:00"},
		{Start: "10:30", End: "11:30"},
		{Start: "11:00", End: "12:00"},
	}, avail.Slots)

	req := &CreateBookingRequest{
		CustomerID: customerID,
		EmployeeID: h.employee,
		ServiceID:  h.service,
		PetID:      petID,
		Date:       "2026-03-02",
		StartTime:  "10:00",
	}
	keyed := metadata.AppendToOutgoingContext(ctx, "idempotency-key", "rt-1")
	created, err := h.client.CreateBooking(keyed, req)
	require.NoError(t, err)
	assert.Equal(t, "pending", created.Booking.Status)
	assert.Equal(t, "11:00", created.Booking.EndTime)

	replay, err := h.client.CreateBooking(keyed, req)
	require.NoError(t, err)
	assert.Equal(t, created.Booking.ID, replay.Booking.ID)

	_, err = h.client.CreateBooking(ctx, req)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	after, err := h.client.ResolveAvailability(ctx, &ResolveAvailabilityRequest{
		EmployeeID: h.employee, Date: "2026-03-02", DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, []Slot{{Start: "09:00", End: "10:00"}, {Start: "11:00", End: "12:00"}}, after.Slots)

	_, err = h.client.TransitionBooking(ctx, &TransitionBookingRequest{
		BookingID: created.Booking.ID, ActorRole: "customer", TargetStatus: "confirmed",
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	confirmed, err := h.client.TransitionBooking(ctx, &TransitionBookingRequest{
		BookingID: created.Booking.ID, ActorRole: "employee", TargetStatus: "confirmed",
	})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", confirmed.Booking.Status)

	cancelled, err := h.client.TransitionBooking(ctx, &TransitionBookingRequest{
		BookingID: created.Booking.ID, ActorRole: "customer", TargetStatus: "cancelled",
		Initiator: "customer", Reason: "vet visit",
	})
	require.NoError(t, err)
	require.NotNil(t, cancelled.Booking.Cancellation)
	assert.Equal(t, "customer", cancelled.Booking.Cancellation.Initiator)

	got, err := h.client.GetBooking(ctx, &GetBookingRequest{BookingID: created.Booking.ID})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Booking.Status)
	assert.Equal(t, "vet visit", got.Booking.Cancellation.Reason)
}

func TestRoundTrip_UnknownEmployeeIsNotFound(t *testing.T) {
	h := startServer(t)

	_, err := h.client.ResolveAvailability(context.Background(), &ResolveAvailabilityRequest{
		EmployeeID:      "00000000-0000-0000-0000-00000000dead",
		Date:            "2026-03-02",
		DurationMinutes: 30,
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRoundTrip_InvalidGranularityIsInvalidArgument(t *testing.T) {
	h := startServer(t)

	for _, g := range []int{7, 1 << 40, -30} {
		_, err := h.client.ResolveAvailability(context.Background(), &ResolveAvailabilityRequest{
			EmployeeID: h.employee, Date: "2026-03-02", DurationMinutes: 30, GranularityMinutes: g,
		})
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "granularity %d", g)
	}
}

func TestRoundTrip_BooksSlotOfferedAtFinerGranularity(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	avail, err := h.client.ResolveAvailability(ctx, &ResolveAvailabilityRequest{
		EmployeeID: h.employee, Date: "2026-03-02", DurationMinutes: 60, GranularityMinutes: 15,
	})
	require.NoError(t, err)
	require.Contains(t, avail.Slots, Slot{Start: "09:15", End: "10:15"})

	created, err := h.client.CreateBooking(ctx, &CreateBookingRequest{
		CustomerID: customerID,
		EmployeeID: h.employee,
		ServiceID:  h.service,
		PetID:      petID,
		Date:       "2026-03-02",
		StartTime:  "09:15",
	})
	require.NoError(t, err)
	assert.Equal(t, "10:15", created.Booking.EndTime)
}
