// Package availability computes the bookable start times for one employee on
// one date.
//
// The effective working window is resolved by a fixed, ordered pipeline:
// a date override beats the weekly template, and breaks and existing
// bookings only ever subtract from the window they are clipped to.
package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/metrics"
	"pawbook/backend/internal/store"
)

const DefaultGranularityMinutes = 30

type BookingReader interface {
	FindActiveFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.Booking, error)
}

type DurationLookup interface {
	Duration(ctx context.Context, serviceID uuid.UUID) (int, error)
}

type Stores struct {
	Employees store.EmployeeStore
	Templates store.ShiftTemplateStore
	Overrides store.ShiftOverrideStore
	Breaks    store.BreakTemplateStore
	Bookings  BookingReader
}

// Resolver has no mutable state and is safe for concurrent use.
type Resolver struct {
	stores      Stores
	catalog     DurationLookup
	granularity int
}

type Option func(*Resolver)

// WithGranularity sets the step between candidate start times used when a
// caller does not pass one.
func WithGranularity(minutes int) Option {
	return func(r *Resolver) {
		if minutes > 0 {
			r.granularity = minutes
		}
	}
}

func WithCatalog(c DurationLookup) Option {
	return func(r *Resolver) { r.catalog = c }
}

func NewResolver(stores Stores, opts ...Option) *Resolver {
	r := &Resolver{stores: stores, granularity: DefaultGranularityMinutes}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Granularity() int {
	return r.granularity
}

// ResolveService resolves serviceID to a duration and returns the slots for
// it. granularityMinutes follows the same rules as in Resolve.
func (r *Resolver) ResolveService(ctx context.Context, employeeID uuid.UUID, date domain.Date, serviceID uuid.UUID, granularityMinutes int) ([]domain.AvailableSlot, error) {
	if r.catalog == nil {
		return nil, errors.New("availability: no service catalog configured")
	}
	duration, err := r.catalog.Duration(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, employeeID, date, duration, granularityMinutes)
}

// Resolve returns the valid start times for a service of durationMinutes in
// ascending order. A granularity of zero uses the configured default; any
// other value must pass domain.ValidateGranularity. An empty result means
// nothing is available; malformed schedule data is an error wrapping
// domain.ErrInvalidScheduleConfiguration.
func (r *Resolver) Resolve(ctx context.Context, employeeID uuid.UUID, date domain.Date, durationMinutes, granularityMinutes int) ([]domain.AvailableSlot, error) {
	slots, err := r.resolve(ctx, employeeID, date, durationMinutes, granularityMinutes)
	metrics.ObserveAvailability(outcome(err), len(slots))
	return slots, err
}

func (r *Resolver) resolve(ctx context.Context, employeeID uuid.UUID, date domain.Date, durationMinutes, granularityMinutes int) ([]domain.AvailableSlot, error) {
	if err := domain.ValidateDuration(durationMinutes); err != nil {
		return nil, err
	}
	if granularityMinutes == 0 {
		granularityMinutes = r.granularity
	}
	if err := domain.ValidateGranularity(granularityMinutes); err != nil {
		return nil, err
	}

	p, err := r.plan(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return []domain.AvailableSlot{}, nil
	}
	return walk(p.window, p.blocked, durationMinutes, granularityMinutes), nil
}

// Fits reports whether iv is bookable for employeeID on date: it lies inside
// the working window, starts on the finest granularity grid of that window
// and overlaps nothing blocked. Every slot Resolve offers at any valid
// granularity fits.
func (r *Resolver) Fits(ctx context.Context, employeeID uuid.UUID, date domain.Date, iv domain.Interval) (bool, error) {
	if !iv.Start.Valid() {
		return false, fmt.Errorf("availability: start %d is outside the day", int(iv.Start))
	}
	if err := domain.ValidateDuration(iv.Minutes()); err != nil {
		return false, err
	}

	p, err := r.plan(ctx, employeeID, date)
	if err != nil || p == nil {
		return false, err
	}
	if !p.window.Contains(iv) || int(iv.Start-p.window.Start)%domain.MinGranularityMinutes != 0 {
		return false, nil
	}
	for _, b := range p.blocked {
		if b.Overlaps(iv) {
			return false, nil
		}
	}
	return true, nil
}

// plan runs the pipeline. A nil plan with a nil error is a day without any
// availability. The returned blocked intervals are merged and sorted.
func (r *Resolver) plan(ctx context.Context, employeeID uuid.UUID, date domain.Date) (*dayPlan, error) {
	if date.IsZero() {
		return nil, errors.New("availability: date is required")
	}

	if r.stores.Employees != nil {
		ok, err := r.stores.Employees.EmployeeExists(ctx, employeeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrEmployeeNotFound, employeeID)
		}
	}

	p := &dayPlan{employeeID: employeeID, date: date}
	for _, st := range pipeline {
		done, err := st.run(ctx, r.stores, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
		if done {
			return nil, nil
		}
	}
	p.blocked = domain.MergeIntervals(p.blocked)
	return p, nil
}

// walk steps through window and keeps every candidate whose full duration
// fits and touches no blocked interval. blocked must be merged and sorted.
// Arithmetic stays in int so that no candidate end can wrap around.
func walk(window domain.Interval, blocked []domain.Interval, duration, step int) []domain.AvailableSlot {
	out := []domain.AvailableSlot{}
	next := 0
	end := int(window.End)
	for start := int(window.Start); start <= end-duration; start += step {
		cand := domain.Interval{Start: domain.TimeOfDay(start), End: domain.TimeOfDay(start + duration)}

		// blocked intervals ending at or before start can never collide again
		for next < len(blocked) && blocked[next].End <= cand.Start {
			next++
		}
		if next < len(blocked) && blocked[next].Overlaps(cand) {
			continue
		}
		out = append(out, domain.AvailableSlot{Start: cand.Start, End: cand.End})
	}
	return out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, domain.ErrInvalidGranularity):
		return "invalid_granularity"
	case errors.Is(err, domain.ErrInvalidScheduleConfiguration):
		return "misconfigured"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
