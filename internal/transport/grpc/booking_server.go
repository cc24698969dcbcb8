package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/service/bookings"
	"pawbook/backend/internal/store"
)

type BookingServer struct {
	slots    availabilityService
	bookings bookingService
	log      *slog.Logger
}

type availabilityService interface {
	Resolve(ctx context.Context, employeeID uuid.UUID, date domain.Date, durationMinutes, granularityMinutes int) ([]domain.AvailableSlot, error)
	ResolveService(ctx context.Context, employeeID uuid.UUID, date domain.Date, serviceID uuid.UUID, granularityMinutes int) ([]domain.AvailableSlot, error)
}

type bookingService interface {
	Create(ctx context.Context, in bookings.CreateInput) (domain.Booking, error)
	Transition(ctx context.Context, in bookings.TransitionInput) (domain.Booking, error)
	Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
}

func NewBookingServer(slots availabilityService, mgr bookingService, log *slog.Logger) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingServer{
		slots:    slots,
		bookings: mgr,
		log:      log.With(slog.String("component", "grpc.bookings")),
	}
}

func (s *BookingServer) ResolveAvailability(ctx context.Context, req *ResolveAvailabilityRequest) (*ResolveAvailabilityResponse, error) {
	log := s.log.With(slog.String("rpc", "ResolveAvailability"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	employeeID, err := uuid.Parse(req.EmployeeID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "employee_id must be a UUID")
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_date"), slog.String("employee_id", req.EmployeeID))
		return nil, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
	}

	var slots []domain.AvailableSlot
	switch {
	case req.DurationMinutes != 0:
		slots, err = s.slots.Resolve(ctx, employeeID, date, req.DurationMinutes, req.GranularityMinutes)
	case req.ServiceID != "":
		serviceID, perr := uuid.Parse(req.ServiceID)
		if perr != nil {
			log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("employee_id", req.EmployeeID))
			return nil, status.Error(codes.InvalidArgument, "service_id must be a UUID")
		}
		slots, err = s.slots.ResolveService(ctx, employeeID, date, serviceID, req.GranularityMinutes)
	default:
		log.Warn("invalid request", slog.String("reason", "missing_duration"), slog.String("employee_id", req.EmployeeID))
		return nil, status.Error(codes.InvalidArgument, "duration_minutes or service_id is required")
	}
	if err != nil {
		return nil, s.toStatus(log, "availability resolve failed", err,
			slog.String("employee_id", req.EmployeeID),
			slog.String("date", req.Date),
		)
	}

	log.Debug(
		"availability resolved",
		slog.String("employee_id", employeeID.String()),
		slog.String("date", date.String()),
		slog.Int("count", len(slots)),
	)

	return &ResolveAvailabilityResponse{
		EmployeeID: employeeID.String(),
		Date:       date.String(),
		Slots:      toWireSlots(slots),
	}, nil
}

func (s *BookingServer) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*CreateBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	ids := map[string]string{
		"customer_id": req.CustomerID,
		"employee_id": req.EmployeeID,
		"service_id":  req.ServiceID,
		"pet_id":      req.PetID,
	}
	parsed := make(map[string]uuid.UUID, len(ids))
	for field, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("field", field))
			return nil, status.Error(codes.InvalidArgument, field+" must be a UUID")
		}
		parsed[field] = id
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_date"), slog.String("customer_id", req.CustomerID))
		return nil, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
	}
	start, err := domain.ParseTimeOfDay(req.StartTime)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_start_time"), slog.String("customer_id", req.CustomerID))
		return nil, status.Error(codes.InvalidArgument, "start_time must be HH:mm")
	}

	b, err := s.bookings.Create(ctx, bookings.CreateInput{
		Actor:          domain.Role(strings.TrimSpace(req.ActorRole)),
		CustomerID:     parsed["customer_id"],
		EmployeeID:     parsed["employee_id"],
		ServiceID:      parsed["service_id"],
		PetID:          parsed["pet_id"],
		Date:           date,
		StartTime:      start,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.toStatus(log, "booking create failed", err,
			slog.String("customer_id", req.CustomerID),
			slog.String("employee_id", req.EmployeeID),
			slog.String("date", req.Date),
			slog.String("start_time", req.StartTime),
		)
	}

	log.Info(
		"booking created",
		slog.String("booking_id", b.ID.String()),
		slog.String("customer_id", b.CustomerID.String()),
		slog.String("employee_id", b.EmployeeID.String()),
		slog.String("slot", b.Interval().String()),
	)

	return &CreateBookingResponse{Booking: toWireBooking(b)}, nil
}

func (s *BookingServer) TransitionBooking(ctx context.Context, req *TransitionBookingRequest) (*TransitionBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "TransitionBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.BookingID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}

	b, err := s.bookings.Transition(ctx, bookings.TransitionInput{
		BookingID: id,
		Actor:     domain.Role(strings.TrimSpace(req.ActorRole)),
		Target:    domain.BookingStatus(strings.TrimSpace(req.TargetStatus)),
		Initiator: domain.Role(strings.TrimSpace(req.Initiator)),
		Reason:    req.Reason,
	})
	if err != nil {
		return nil, s.toStatus(log, "booking transition failed", err,
			slog.String("booking_id", id.String()),
			slog.String("actor", req.ActorRole),
			slog.String("target", req.TargetStatus),
		)
	}

	return &TransitionBookingResponse{Booking: toWireBooking(b)}, nil
}

func (s *BookingServer) GetBooking(ctx context.Context, req *GetBookingRequest) (*GetBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "GetBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.BookingID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}

	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, s.toStatus(log, "booking get failed", err, slog.String("booking_id", id.String()))
	}
	return &GetBookingResponse{Booking: toWireBooking(b)}, nil
}

// toStatus maps service errors onto gRPC codes. Expected rejections log at
// Info or Warn; anything unrecognised is an Internal error.
func (s *BookingServer) toStatus(log *slog.Logger, msg string, err error, attrs ...any) error {
	args := append([]any{slog.Any("err", err)}, attrs...)

	var vErr *bookings.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, domain.ErrInvalidDuration):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, "duration must be within 1..1440 minutes")
	case errors.Is(err, domain.ErrInvalidGranularity):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, "granularity_minutes must be within 5..240 and divide 60 or be a multiple of it")
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, store.ErrNotFound):
		log.Info("not found", args...)
		return status.Error(codes.NotFound, notFoundMessage(err))
	case errors.Is(err, domain.ErrSlotNoLongerAvailable):
		log.Info("slot no longer available", args...)
		return status.Error(codes.FailedPrecondition, "That time is no longer available. Pick a different slot.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency conflict", args...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different booking. Try again.")
	case errors.Is(err, domain.ErrNoOpTransition):
		log.Info("no-op transition", args...)
		return status.Error(codes.FailedPrecondition, "The booking is already in that status.")
	case errors.Is(err, domain.ErrIllegalTransition):
		log.Info("illegal transition", args...)
		return status.Error(codes.FailedPrecondition, "That status change is not allowed.")
	case errors.Is(err, domain.ErrInvalidScheduleConfiguration):
		log.Error("schedule misconfigured", args...)
		return status.Error(codes.Internal, "schedule misconfigured")
	}
	log.Error(msg, args...)
	return status.Error(codes.Internal, "internal error")
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmployeeNotFound):
		return "employee not found"
	case errors.Is(err, domain.ErrServiceNotFound):
		return "service not found"
	case errors.Is(err, domain.ErrBookingNotFound):
		return "booking not found"
	default:
		return "not found"
	}
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
