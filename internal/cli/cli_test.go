package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/service/availability"
	"pawbook/backend/internal/service/bookings"
	"pawbook/backend/internal/service/catalog"
	"pawbook/backend/internal/store/memory"
	grpcTransport "pawbook/backend/internal/transport/grpc"
)

func init() {
	color.NoColor = true
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "pawbookctl")
	for _, sub := range []string{"slots", "book", "transition", "transitions", "migrate", "show"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCommand_Version(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("dev")

	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)
}

func TestRootCommand_InvalidCommand(t *testing.T) {
	_, err := run(t, "invalid-command")
	assert.Error(t, err)
}

func TestTransitions_DefaultTable(t *testing.T) {
	out, err := run(t, "transitions")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "  ROLE      FROM         TO", lines[0])
	assert.Contains(t, out, "  customer  pending      cancelled")
	assert.Contains(t, out, "  employee  in-progress  completed")
	assert.NotContains(t, out, "customer  pending      confirmed")
}

func TestTransitions_JSONMatchesTable(t *testing.T) {
	out, err := run(t, "transitions", "--json")
	require.NoError(t, err)

	var edges []struct {
		Role string `json:"role"`
		From string `json:"from"`
		To   string `json:"to"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &edges))
	assert.Len(t, edges, len(bookings.DefaultTransitionTable().Edges()))
	assert.Equal(t, "admin", edges[0].Role)
}

func TestTransitions_FromFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("customer:\n  pending: [cancelled]\n"), 0o600))

	out, err := run(t, "transitions", "--file", good)
	require.NoError(t, err)
	assert.Contains(t, out, "customer  pending  cancelled")
	assert.NotContains(t, out, "employee")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("customer:\n  pending: [completed]\n"), 0o600))

	_, err = run(t, "transitions", "--file", bad)
	assert.ErrorContains(t, err, "not a booking lifecycle transition")
}

type fixture struct {
	employee string
	trim     string
	groom    string
}

// serve points dialBooking at an in-memory server for the test's lifetime.
func serve(t *testing.T) fixture {
	t.Helper()

	s := memory.New()
	emp := s.AddEmployee(domain.Employee{DisplayName: "Dana", IsActive: true})
	trim := s.AddService(domain.Service{Name: "Nail trim", DurationMinutes: 30, IsActive: true})
	groom := s.AddService(domain.Service{Name: "Full groom", DurationMinutes: 60, IsActive: true})
	s.AddShiftTemplate(domain.ShiftTemplate{
		EmployeeID:    emp.ID,
		DayOfWeek:     1,
		StartTime:     domain.MustTimeOfDay("09:00"),
		EndTime:       domain.MustTimeOfDay("11:00"),
		EffectiveFrom: domain.MustDate("2026-01-01"),
		IsActive:      true,
	})
	cat := catalog.New(s, nil)
	resolver := availability.NewResolver(availability.Stores{
		Employees: s,
		Templates: s.Templates(),
		Overrides: s,
		Breaks:    s.Breaks(),
		Bookings:  s.Bookings(),
	}, availability.WithCatalog(cat))
	manager := bookings.NewManager(resolver, s.Bookings(), bookings.WithCatalog(cat))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	grpcTransport.RegisterBookingServiceServer(srv, grpcTransport.NewBookingServer(resolver, manager, slog.Default()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	prev := dialBooking
	dialBooking = func(addr string) (*grpcTransport.BookingClient, func() error, error) {
		conn, err := grpc.NewClient("passthrough:///bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return nil, nil, err
		}
		return grpcTransport.NewBookingClient(conn), conn.Close, nil
	}
	t.Cleanup(func() { dialBooking = prev })

	return fixture{employee: emp.ID.String(), trim: trim.ID.String(), groom: groom.ID.String()}
}

func TestSlotsBookAndTransition(t *testing.T) {
	f := serve(t)

	out, err := run(t, "slots", "--employee", f.employee, "--date", "2026-03-02", "--duration", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "09:00  10:00")
	assert.Contains(t, out, "10:00  11:00")

	out, err = run(t, "book", "--json",
		"--customer", "00000000-0000-0000-0000-0000000000c1",
		"--employee", f.employee,
		"--service", f.groom,
		"--pet", "00000000-0000-0000-0000-0000000000b1",
		"--date", "2026-03-02",
		"--start", "09:30",
		"--idempotency-key", "cli-1",
	)
	require.NoError(t, err)
	var booked grpcTransport.Booking
	require.NoError(t, json.Unmarshal([]byte(out), &booked))
	assert.Equal(t, "pending", booked.Status)
	assert.Equal(t, "10:30", booked.EndTime)

	out, err = run(t, "slots", "--employee", f.employee, "--date", "2026-03-02", "--duration", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "No open slots on 2026-03-02.")

	out, err = run(t, "transition", booked.ID, "cancelled", "--actor", "customer", "--reason", "moved")
	require.NoError(t, err)
	assert.Contains(t, out, "Moved to cancelled:")
	assert.Contains(t, out, "Cancelled by:")

	out, err = run(t, "show", booked.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")
	assert.Contains(t, out, "moved")
}

func TestSlots_RequiresDurationOrService(t *testing.T) {
	serve(t)

	_, err := run(t, "slots", "--employee", "00000000-0000-0000-0000-0000000000e1", "--date", "2026-03-02")
	assert.ErrorContains(t, err, "--duration or --service")
}

func TestSlots_RejectsInvalidGranularity(t *testing.T) {
	f := serve(t)

	for _, g := range []string{"7", "9223372036854775807", "-30"} {
		_, err := run(t, "slots", "--employee", f.employee, "--date", "2026-03-02", "--duration", "30", "--granularity="+g)
		assert.ErrorContains(t, err, "--granularity", "granularity %s", g)
	}

	out, err := run(t, "slots", "--employee", f.employee, "--date", "2026-03-02", "--service", f.trim, "--granularity", "15")
	require.NoError(t, err)
	assert.Contains(t, out, "09:15  09:45")
}

func TestBook_HasNoDurationFlag(t *testing.T) {
	f := serve(t)

	_, err := run(t, "book",
		"--customer", "00000000-0000-0000-0000-0000000000c1",
		"--employee", f.employee,
		"--service", f.trim,
		"--pet", "00000000-0000-0000-0000-0000000000b1",
		"--date", "2026-03-02",
		"--start", "09:00",
		"--duration", "5",
	)
	assert.ErrorContains(t, err, "unknown flag: --duration")
}

func TestBook_StartOfferedAtFinerGranularity(t *testing.T) {
	f := serve(t)

	out, err := run(t, "book", "--json",
		"--customer", "00000000-0000-0000-0000-0000000000c1",
		"--employee", f.employee,
		"--service", f.trim,
		"--pet", "00000000-0000-0000-0000-0000000000b1",
		"--date", "2026-03-02",
		"--start", "09:15",
	)
	require.NoError(t, err)
	var booked grpcTransport.Booking
	require.NoError(t, json.Unmarshal([]byte(out), &booked))
	assert.Equal(t, "09:45", booked.EndTime)
}

func TestTransition_IllegalIsReported(t *testing.T) {
	f := serve(t)

	out, err := run(t, "book", "--json",
		"--customer", "00000000-0000-0000-0000-0000000000c1",
		"--employee", f.employee,
		"--service", f.trim,
		"--pet", "00000000-0000-0000-0000-0000000000b1",
		"--date", "2026-03-02",
		"--start", "09:00",
	)
	require.NoError(t, err)
	var booked grpcTransport.Booking
	require.NoError(t, json.Unmarshal([]byte(out), &booked))

	_, err = run(t, "transition", booked.ID, "confirmed", "--actor", "customer")
	assert.ErrorContains(t, err, "not allowed")
}
