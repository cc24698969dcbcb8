// Package memory is a single-process implementation of every store
// interface, used by tests and local runs. Booking inserts are serialized per
// (employee, date) the same way the Postgres store serializes them with an
// advisory lock.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/events"
	"pawbook/backend/internal/store"
)

type dayKey struct {
	employeeID uuid.UUID
	date       string
}

type overrideKey = dayKey

type Store struct {
	mu        sync.RWMutex
	employees map[uuid.UUID]domain.Employee
	templates []domain.ShiftTemplate
	overrides map[overrideKey]domain.ShiftOverride
	breaks    []domain.BreakTemplate
	services  map[uuid.UUID]domain.Service
	bookings  map[uuid.UUID]domain.Booking
	outbox    []events.Record
	nextRecID int64
	publishMu sync.Mutex

	locksMu sync.Mutex
	locks   map[dayKey]*sync.Mutex
}

func New() *Store {
	return &Store{
		employees: make(map[uuid.UUID]domain.Employee),
		overrides: make(map[overrideKey]domain.ShiftOverride),
		services:  make(map[uuid.UUID]domain.Service),
		bookings:  make(map[uuid.UUID]domain.Booking),
		locks:     make(map[dayKey]*sync.Mutex),
	}
}

func (s *Store) AddEmployee(e domain.Employee) domain.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.employees[e.ID] = e
	return e
}

func (s *Store) AddShiftTemplate(t domain.ShiftTemplate) domain.ShiftTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.templates = append(s.templates, t)
	return t
}

// PutShiftOverride replaces any existing override for the same day.
func (s *Store) PutShiftOverride(o domain.ShiftOverride) domain.ShiftOverride {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	s.overrides[overrideKey{employeeID: o.EmployeeID, date: o.Date.String()}] = o
	return o
}

func (s *Store) AddBreakTemplate(b domain.BreakTemplate) domain.BreakTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.breaks = append(s.breaks, b)
	return b
}

func (s *Store) AddService(svc domain.Service) domain.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == uuid.Nil {
		svc.ID = uuid.New()
	}
	s.services[svc.ID] = svc
	return svc
}

func (s *Store) EmployeeExists(ctx context.Context, employeeID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[employeeID]
	return ok && e.IsActive, nil
}

func (s *Store) FindService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return domain.Service{}, store.ErrNotFound
	}
	return svc, nil
}

// Outbox returns a copy of the unpublished events in insertion order.
func (s *Store) Outbox() []events.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Record(nil), s.outbox...)
}

func (s *Store) Templates() shiftTemplates { return shiftTemplates{s} }
func (s *Store) Breaks() breakTemplates    { return breakTemplates{s} }

type shiftTemplates struct{ s *Store }

func (t shiftTemplates) FindActiveFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.ShiftTemplate, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []domain.ShiftTemplate
	for _, tmpl := range t.s.templates {
		if tmpl.EmployeeID == employeeID && tmpl.AppliesOn(date) {
			out = append(out, tmpl)
		}
	}
	return out, nil
}

type breakTemplates struct{ s *Store }

func (b breakTemplates) FindActiveFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.BreakTemplate, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	var out []domain.BreakTemplate
	for _, br := range b.s.breaks {
		if br.EmployeeID == employeeID && br.AppliesOn(date) {
			out = append(out, br)
		}
	}
	return out, nil
}

func (s *Store) FindFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) (domain.ShiftOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[overrideKey{employeeID: employeeID, date: date.String()}]
	if !ok {
		return domain.ShiftOverride{}, store.ErrNotFound
	}
	return o, nil
}

func (s *Store) Bookings() bookings { return bookings{s} }

type bookings struct{ s *Store }

func (b bookings) FindActiveFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.Booking, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	return b.s.activeLocked(employeeID, date), nil
}

func (s *Store) activeLocked(employeeID uuid.UUID, date domain.Date) []domain.Booking {
	var out []domain.Booking
	for _, bk := range s.bookings {
		if bk.EmployeeID == employeeID && bk.ScheduledDate.Equal(date) && bk.Status.BlocksCalendar() {
			out = append(out, bk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (b bookings) Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	bk, ok := b.s.bookings[bookingID]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return bk, nil
}

func (b bookings) InsertIfNonOverlapping(ctx context.Context, bk domain.Booking) (domain.Booking, error) {
	unlock := b.s.lockDay(dayKey{employeeID: bk.EmployeeID, date: bk.ScheduledDate.String()})
	defer unlock()

	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	if bk.ID != uuid.Nil {
		if existing, ok := b.s.bookings[bk.ID]; ok {
			if !existing.SameRequest(bk) {
				return domain.Booking{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
	}

	if bk.Status.BlocksCalendar() {
		for _, other := range b.s.activeLocked(bk.EmployeeID, bk.ScheduledDate) {
			if other.Interval().Overlaps(bk.Interval()) {
				return domain.Booking{}, store.ErrConflict
			}
		}
	}

	if bk.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Booking{}, err
		}
		bk.ID = id
	}
	if bk.CreatedAt.IsZero() {
		bk.CreatedAt = time.Now().UTC()
	}
	bk.UpdatedAt = bk.CreatedAt

	rec, err := events.NewRecord(events.Created(bk, bk.CreatedAt))
	if err != nil {
		return domain.Booking{}, err
	}
	b.s.bookings[bk.ID] = bk
	b.s.appendOutboxLocked(rec)
	return bk, nil
}

func (b bookings) UpdateStatus(ctx context.Context, u store.StatusUpdate) (domain.Booking, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	bk, ok := b.s.bookings[u.BookingID]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	if bk.Status != u.From {
		return domain.Booking{}, store.ErrConflict
	}

	bk.Status = u.To
	bk.UpdatedAt = u.At.UTC()
	if u.Cancellation != nil {
		bk.SetCancellation(*u.Cancellation)
	}

	rec, err := events.NewRecord(events.Transitioned(bk, u.From, u.Actor, u.At))
	if err != nil {
		return domain.Booking{}, err
	}
	b.s.bookings[bk.ID] = bk
	b.s.appendOutboxLocked(rec)
	return bk, nil
}

// PublishBatch hands unpublished records to fn and drops them on success.
// fn runs without the store lock held, so it may read or write the store.
// publishMu keeps a second publisher from sending the same batch.
func (s *Store) PublishBatch(ctx context.Context, limit int, fn func(ctx context.Context, records []events.Record) error) (int, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	n := min(len(s.outbox), limit)
	batch := append([]events.Record(nil), s.outbox[:max(n, 0)]...)
	s.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}
	if err := fn(ctx, batch); err != nil {
		return 0, err
	}

	// records appended while fn ran sit behind the batch
	last := batch[len(batch)-1].ID
	s.mu.Lock()
	defer s.mu.Unlock()
	i := 0
	for i < len(s.outbox) && s.outbox[i].ID <= last {
		i++
	}
	s.outbox = s.outbox[i:]
	return len(batch), nil
}

func (s *Store) appendOutboxLocked(rec events.Record) {
	s.nextRecID++
	rec.ID = s.nextRecID
	s.outbox = append(s.outbox, rec)
}

func (s *Store) lockDay(k dayKey) func() {
	s.locksMu.Lock()
	m, ok := s.locks[k]
	if !ok {
		m = &sync.Mutex{}
		s.locks[k] = m
	}
	s.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}
