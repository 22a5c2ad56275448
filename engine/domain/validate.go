package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateBooking validates a booking request before it reaches the engine.
// The overlap checker itself never validates interval shape; a degenerate
// zero-or-negative-length interval is rejected here.
func ValidateBooking(b BookingRequest) error {
	if b.UserID == "" {
		return NewValidationError("user_id", "", ErrMissingField)
	}
	if b.VehicleID == "" {
		return NewValidationError("vehicle_id", "", ErrMissingField)
	}
	if !b.Interval().Valid() {
		return NewValidationError("pickup_date", FormatDateTime(b.Pickup), ErrInvalidInterval)
	}
	return nil
}

// ValidateVehicle validates a vehicle payload.
func ValidateVehicle(v Vehicle) error {
	if strings.TrimSpace(v.Type) == "" {
		return NewValidationError("vehicle_type", v.Type, ErrMissingField)
	}
	if strings.TrimSpace(v.Brand) == "" {
		return NewValidationError("brand", v.Brand, ErrMissingField)
	}
	if v.DailyPrice < 0 {
		return NewValidationError("daily_price", fmt.Sprintf("%g", v.DailyPrice), ErrMissingField)
	}
	return nil
}

// ValidateUser validates a user payload.
func ValidateUser(u User) error {
	if strings.TrimSpace(u.Username) == "" {
		return NewValidationError("username", u.Username, ErrMissingField)
	}
	if !emailRegex.MatchString(u.Email) {
		return NewValidationError("email", u.Email, ErrMissingField)
	}
	if u.Role != "" && !ValidRoles[u.Role] {
		return NewValidationError("role", u.Role, ErrInvalidRole)
	}
	return nil
}

// ValidateReview validates a review payload.
func ValidateReview(r Review) error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return NewValidationError("rating", fmt.Sprintf("%d", r.Rating), ErrInvalidRating)
	}
	return nil
}
