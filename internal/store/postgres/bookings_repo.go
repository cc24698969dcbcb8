package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/events"
	"pawbook/backend/internal/store"
)

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type calendarTx struct {
	tx bun.Tx
}

func (r *BookingRepo) FindActiveFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.Booking, error) {
	return listActive(ctx, r.db, employeeID, date)
}

func (r *BookingRepo) Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, r.db, bookingID)
}

func (r *BookingRepo) InsertIfNonOverlapping(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	var out domain.Booking
	err := r.InEmployeeDayTransaction(ctx, b.EmployeeID, b.ScheduledDate, func(ctx context.Context, tx store.CalendarTx) error {
		if b.ID != uuid.Nil {
			existing, err := tx.GetBooking(ctx, b.ID)
			switch {
			case err == nil:
				if !existing.SameRequest(b) {
					return store.ErrIdempotencyConflict
				}
				out = existing
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		if b.Status.BlocksCalendar() {
			active, err := tx.ListBookings(ctx, b.EmployeeID, b.ScheduledDate)
			if err != nil {
				return err
			}
			for _, other := range active {
				if other.Interval().Overlaps(b.Interval()) {
					return store.ErrConflict
				}
			}
		}

		created, err := tx.InsertBooking(ctx, b)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

// InEmployeeDayTransaction runs fn holding the advisory lock for one
// employee's calendar day. Locks on other days or employees do not contend.
func (r *BookingRepo) InEmployeeDayTransaction(ctx context.Context, employeeID uuid.UUID, date domain.Date, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEmployeeDay(ctx, tx, employeeID, date); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
}

func lockEmployeeDay(ctx context.Context, tx bun.Tx, employeeID uuid.UUID, date domain.Date) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", employeeID.String()+"|"+date.String()).Exec(ctx)
	return err
}

func (r *BookingRepo) UpdateStatus(ctx context.Context, u store.StatusUpdate) (domain.Booking, error) {
	var out domain.Booking
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*domain.Booking)(nil)).
			Set("status = ?", u.To).
			Set("updated_at = ?", u.At.UTC()).
			Where("id = ?", u.BookingID).
			Where("status = ?", u.From)
		if u.Cancellation != nil {
			q = q.Set("cancel_initiator = ?", u.Cancellation.Initiator).
				Set("cancel_reason = ?", u.Cancellation.Reason).
				Set("cancelled_at = ?", u.Cancellation.CancelledAt.UTC())
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			exists, err := tx.NewSelect().Model((*domain.Booking)(nil)).Where("id = ?", u.BookingID).Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return store.ErrNotFound
			}
			return store.ErrConflict
		}

		out, err = getBooking(ctx, tx, u.BookingID)
		if err != nil {
			return err
		}
		return appendOutbox(ctx, tx, events.Transitioned(out, u.From, u.Actor, u.At))
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func (r calendarTx) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, r.tx, bookingID)
}

func (r calendarTx) ListBookings(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.Booking, error) {
	return listActive(ctx, r.tx, employeeID, date)
}

// InsertBooking relies on bookings_no_overlap as the last word on overlap,
// so a racing writer that skipped the advisory lock still gets ErrConflict.
func (r calendarTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23P01" && pgErr.ConstraintName == "bookings_no_overlap" {
				return domain.Booking{}, store.ErrConflict
			}
			if pgErr.Code == "23505" {
				return domain.Booking{}, store.ErrIdempotencyConflict
			}
		}
		return domain.Booking{}, err
	}

	if err := appendOutbox(ctx, r.tx, events.Created(m, m.CreatedAt)); err != nil {
		return domain.Booking{}, err
	}
	return m, nil
}

func listActive(ctx context.Context, db bun.IDB, employeeID uuid.UUID, date domain.Date) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := db.NewSelect().
		Model(&rows).
		Where("employee_id = ?", employeeID).
		Where("scheduled_date = ?", date).
		Where("status <> ?", domain.StatusCancelled).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func getBooking(ctx context.Context, db bun.IDB, bookingID uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := db.NewSelect().Model(&b).Where("id = ?", bookingID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}
