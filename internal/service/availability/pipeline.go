package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/store"
)

type dayPlan struct {
	employeeID uuid.UUID
	date       domain.Date
	window     domain.Interval
	blocked    []domain.Interval
}

// stage returns done=true when the day has no availability at all and the
// remaining stages must not run.
type stage struct {
	name string
	run  func(ctx context.Context, s Stores, p *dayPlan) (done bool, err error)
}

// Order matters: the window must be known before anything is clipped to it.
var pipeline = []stage{
	{name: "working window", run: resolveWindow},
	{name: "breaks", run: subtractBreaks},
	{name: "bookings", run: subtractBookings},
}

func resolveWindow(ctx context.Context, s Stores, p *dayPlan) (bool, error) {
	override, err := s.Overrides.FindFor(ctx, p.employeeID, p.date)
	switch {
	case err == nil:
		if !override.IsWorking {
			return true, nil
		}
		w, err := override.Window()
		if err != nil {
			return false, err
		}
		p.window = w
		return false, nil
	case errors.Is(err, store.ErrNotFound):
	default:
		return false, err
	}

	templates, err := s.Templates.FindActiveFor(ctx, p.employeeID, p.date)
	if err != nil {
		return false, err
	}
	var applicable []domain.ShiftTemplate
	for _, t := range templates {
		if t.AppliesOn(p.date) {
			applicable = append(applicable, t)
		}
	}
	switch len(applicable) {
	case 0:
		return true, nil
	case 1:
	default:
		return false, fmt.Errorf("%w: %d active shift templates apply on %s",
			domain.ErrInvalidScheduleConfiguration, len(applicable), p.date)
	}

	w, err := applicable[0].Window()
	if err != nil {
		return false, err
	}
	p.window = w
	return false, nil
}

func subtractBreaks(ctx context.Context, s Stores, p *dayPlan) (bool, error) {
	breaks, err := s.Breaks.FindActiveFor(ctx, p.employeeID, p.date)
	if err != nil {
		return false, err
	}
	for _, b := range breaks {
		if !b.AppliesOn(p.date) {
			continue
		}
		w, err := b.Window()
		if err != nil {
			return false, err
		}
		p.block(w)
	}
	return false, nil
}

func subtractBookings(ctx context.Context, s Stores, p *dayPlan) (bool, error) {
	bookings, err := s.Bookings.FindActiveFor(ctx, p.employeeID, p.date)
	if err != nil {
		return false, err
	}
	for _, b := range bookings {
		if !b.Status.BlocksCalendar() {
			continue
		}
		p.block(b.Interval())
	}
	return false, nil
}

// block clips iv to the working window; anything outside it is ignored.
func (p *dayPlan) block(iv domain.Interval) {
	clipped := iv.Clip(p.window)
	if clipped.Empty() {
		return
	}
	p.blocked = append(p.blocked, clipped)
}
