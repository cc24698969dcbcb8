package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(availabilityRequests.WithLabelValues("ok"))
	ObserveAvailability("ok", 3)
	ObserveAvailability("misconfigured", 0)
	if got := testutil.ToFloat64(availabilityRequests.WithLabelValues("ok")); got != before+1 {
		t.Fatalf("ok requests = %v, want %v", got, before+1)
	}

	IncTransition("pending", "confirmed", "employee")
	if got := testutil.ToFloat64(bookingTransitions.WithLabelValues("pending", "confirmed", "employee")); got < 1 {
		t.Fatalf("transitions = %v, want >= 1", got)
	}

	conflicts := testutil.ToFloat64(bookingConflicts)
	IncBookingConflict()
	if got := testutil.ToFloat64(bookingConflicts); got != conflicts+1 {
		t.Fatalf("conflicts = %v, want %v", got, conflicts+1)
	}
}
