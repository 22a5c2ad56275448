// Package booking implements reservation admission and the booking state
// transition: overlap detection against a vehicle's reservation set, atomic
// reservation creation, and cancellation with availability restore.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rentagraph/rentagraph/engine/domain"
	"github.com/rentagraph/rentagraph/pkg/metrics"
)

// Store is the persistence surface the engine needs. The graph store is the
// source of truth; the engine contains all decision logic.
type Store interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetVehicle(ctx context.Context, id string) (domain.Vehicle, error)
	ReservationsForVehicle(ctx context.Context, vehicleID string) ([]domain.Reservation, error)
	BookVehicle(ctx context.Context, userID, vehicleID string, r domain.Reservation) error
	CancelReservation(ctx context.Context, reservationID string, restoreAlways bool) error
}

// RestorePolicy controls how cancellation restores vehicle availability.
type RestorePolicy int

const (
	// RestoreIfIdle restores availability only when no remaining
	// reservation for the vehicle covers the current instant.
	RestoreIfIdle RestorePolicy = iota
	// RestoreAlways restores availability unconditionally on every
	// cancellation, matching the legacy behavior.
	RestoreAlways
)

// Options configures the booking service.
type Options struct {
	// Restore selects the availability-restore policy on cancellation.
	Restore RestorePolicy
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{Restore: RestoreIfIdle}
}

// Service is the booking engine. Admission per vehicle is serialized with an
// in-process keyed mutex, so on a single-process deployment two concurrent
// requests cannot both pass the overlap check before either writes. The
// store-level write transaction additionally re-checks overlap, so a store
// shared between processes stays consistent per transaction.
type Service struct {
	store  Store
	events Publisher
	opts   Options
	locks  *keyedMutex
	log    *slog.Logger
	newID  func() string

	bookings  *metrics.Counter
	conflicts *metrics.Counter
	duration  *metrics.Histogram
}

// New creates a booking service. events may be nil when no event bus is
// configured.
func New(store Store, events Publisher, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		events: events,
		opts:   opts,
		locks:  newKeyedMutex(),
		log:    log,
		newID:  uuid.NewString,
	}
}

// Instrument registers booking metrics on reg. Without it the service
// records nothing.
func (s *Service) Instrument(reg *metrics.Registry) {
	s.bookings = reg.Counter("bookings_total", "Confirmed bookings.")
	s.conflicts = reg.Counter("booking_conflicts_total", "Bookings rejected for interval overlap.")
	s.duration = reg.Histogram("booking_duration_seconds", "End-to-end booking latency.", nil)
}

// HasOverlap reports whether the candidate interval conflicts with any
// reservation currently linked to the vehicle. Read-only: truth is derived
// from the RESERVED edge set, never from the availability flag. A vehicle
// with no reservations trivially has no overlap.
func (s *Service) HasOverlap(ctx context.Context, vehicleID string, pickup, ret time.Time) (bool, error) {
	existing, err := s.store.ReservationsForVehicle(ctx, vehicleID)
	if err != nil {
		return false, err
	}
	candidate := domain.Interval{Start: pickup, End: ret}
	for _, r := range existing {
		if candidate.Overlaps(r.Interval()) {
			return true, nil
		}
	}
	return false, nil
}

// Book admits a booking request and performs the state change. On overlap it
// rejects with ErrOverlapConflict and no side effects occur. On success the
// reservation node, both edges, and the availability update have all been
// applied atomically, and the new reservation is returned.
func (s *Service) Book(ctx context.Context, req domain.BookingRequest) (domain.Reservation, error) {
	start := time.Now()
	if s.duration != nil {
		defer s.duration.Since(start)
	}
	if err := domain.ValidateBooking(req); err != nil {
		return domain.Reservation{}, err
	}
	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		return domain.Reservation{}, err
	}
	if _, err := s.store.GetVehicle(ctx, req.VehicleID); err != nil {
		return domain.Reservation{}, err
	}

	unlock := s.locks.lock(req.VehicleID)
	defer unlock()

	reservation := domain.Reservation{
		ID:     s.newID(),
		Pickup: req.Pickup,
		Return: req.Return,
	}
	if err := s.store.BookVehicle(ctx, req.UserID, req.VehicleID, reservation); err != nil {
		if errors.Is(err, domain.ErrOverlapConflict) {
			if s.conflicts != nil {
				s.conflicts.Inc()
			}
			s.log.Info("booking rejected",
				"vehicle_id", req.VehicleID,
				"pickup", domain.FormatDateTime(req.Pickup),
				"return", domain.FormatDateTime(req.Return),
			)
		}
		return domain.Reservation{}, err
	}

	if s.bookings != nil {
		s.bookings.Inc()
	}
	s.log.Info("booking confirmed",
		"reservation_id", reservation.ID,
		"vehicle_id", req.VehicleID,
		"user_id", req.UserID,
	)
	s.publish(ctx, SubjectReservationCreated, Event{
		ReservationID: reservation.ID,
		VehicleID:     req.VehicleID,
		UserID:        req.UserID,
		Pickup:        domain.FormatDateTime(req.Pickup),
		Return:        domain.FormatDateTime(req.Return),
	})
	return reservation, nil
}

// Cancel removes a reservation and restores the vehicle's availability
// according to the configured policy.
func (s *Service) Cancel(ctx context.Context, reservationID string) error {
	restoreAlways := s.opts.Restore == RestoreAlways
	if err := s.store.CancelReservation(ctx, reservationID, restoreAlways); err != nil {
		return err
	}
	s.log.Info("reservation cancelled", "reservation_id", reservationID)
	s.publish(ctx, SubjectReservationCancelled, Event{ReservationID: reservationID})
	return nil
}

// publish sends a booking event. Events are advisory: failures are logged
// and never surfaced to the caller.
func (s *Service) publish(ctx context.Context, subject string, ev Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, ev); err != nil {
		s.log.Warn("event publish failed", "subject", subject, "err", err)
	}
}
