package booking

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rentagraph/rentagraph/pkg/fn"
	"github.com/rentagraph/rentagraph/pkg/natsutil"
	"github.com/rentagraph/rentagraph/pkg/resilience"
)

// Event subjects published on the rental bus.
const (
	SubjectReservationCreated   = "rentals.reservation.created"
	SubjectReservationCancelled = "rentals.reservation.cancelled"
)

// Event describes a reservation lifecycle change.
type Event struct {
	ReservationID string `json:"reservation_id"`
	VehicleID     string `json:"vehicle_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	Pickup        string `json:"pickup_date,omitempty"`
	Return        string `json:"return_date,omitempty"`
}

// Publisher delivers booking events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, subject string, ev Event) error
}

// NATSPublisher publishes events over NATS with retry and a circuit
// breaker, so a flapping bus neither blocks nor cascades into bookings.
type NATSPublisher struct {
	nc      *nats.Conn
	breaker *resilience.Breaker
	retry   fn.RetryOpts
}

// NewNATSPublisher creates a breaker-guarded NATS publisher.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{
		nc:      nc,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		retry: fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: 100 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Jitter:      true,
		},
	}
}

// Publish sends the event, retrying transient failures.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, ev Event) error {
	return p.breaker.Call(ctx, func(ctx context.Context) error {
		res := fn.Retry(ctx, p.retry, func(ctx context.Context) fn.Result[struct{}] {
			if err := natsutil.Publish(ctx, p.nc, subject, ev); err != nil {
				return fn.Err[struct{}](err)
			}
			return fn.Ok(struct{}{})
		})
		_, err := res.Unwrap()
		return err
	})
}
