// Package domain defines the core rental entities, interval semantics, and
// validation for the booking pipeline. It acts as the validation gate at the
// API and booking-engine entry points.
package domain

import "time"

// User represents a registered account. Credentials are handled by an
// external identity layer and never stored on the node.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Vehicle represents a rentable vehicle.
type Vehicle struct {
	ID         string  `json:"id"`
	Type       string  `json:"vehicle_type"`
	Brand      string  `json:"brand"`
	DailyPrice float64 `json:"daily_price"`
	// Available is a denormalized listing hint. The booking admission
	// decision is always derived from the RESERVED edge set, never from
	// this flag.
	Available bool `json:"availability"`
}

// Reservation is a booked date interval for a vehicle.
type Reservation struct {
	ID     string    `json:"id"`
	Pickup time.Time `json:"pickup_date"`
	Return time.Time `json:"return_date"`
}

// Interval returns the reservation's closed date interval.
func (r Reservation) Interval() Interval {
	return Interval{Start: r.Pickup, End: r.Return}
}

// Review is a user rating of a vehicle.
type Review struct {
	ID      string `json:"id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// BookingRequest is the transient input to the booking engine. It either
// becomes a Reservation or is rejected; it is never persisted itself.
type BookingRequest struct {
	UserID    string    `json:"user_id"`
	VehicleID string    `json:"vehicle_id"`
	Pickup    time.Time `json:"pickup_date"`
	Return    time.Time `json:"return_date"`
}

// Interval returns the requested closed date interval.
func (b BookingRequest) Interval() Interval {
	return Interval{Start: b.Pickup, End: b.Return}
}

// Roles recognised on User nodes.
const (
	RoleCustomer = "customer"
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
)

// ValidRoles is the set of recognised user roles.
var ValidRoles = map[string]bool{
	RoleCustomer: true,
	RoleOwner:    true,
	RoleAdmin:    true,
}

// Review ratings use a 1..5 scale.
const (
	MinRating = 1
	MaxRating = 5
)
