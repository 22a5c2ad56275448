package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rentagraph/rentagraph/engine/booking"
	"github.com/rentagraph/rentagraph/engine/domain"
	"github.com/rentagraph/rentagraph/engine/graph"
)

// api holds the handler dependencies.
type api struct {
	store    *graph.Store
	bookings *booking.Service
	log      *slog.Logger
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)

	mux.HandleFunc("POST /api/users", a.createUser)
	mux.HandleFunc("GET /api/users", a.listUsers)
	mux.HandleFunc("GET /api/users/{id}", a.getUser)
	mux.HandleFunc("PUT /api/users/{id}", a.updateUser)
	mux.HandleFunc("DELETE /api/users/{id}", a.deleteUser)
	mux.HandleFunc("GET /api/users/{id}/reservations", a.userReservations)
	mux.HandleFunc("GET /api/users/{id}/reviews", a.userReviews)

	mux.HandleFunc("POST /api/vehicles", a.createVehicle)
	mux.HandleFunc("GET /api/vehicles", a.listVehicles)
	mux.HandleFunc("GET /api/vehicles/brands", a.vehicleBrands)
	mux.HandleFunc("GET /api/vehicles/types", a.vehicleTypes)
	mux.HandleFunc("GET /api/vehicles/top", a.topVehicles)
	mux.HandleFunc("GET /api/vehicles/{id}", a.getVehicle)
	mux.HandleFunc("PUT /api/vehicles/{id}", a.updateVehicle)
	mux.HandleFunc("DELETE /api/vehicles/{id}", a.deleteVehicle)
	mux.HandleFunc("PUT /api/vehicles/{id}/availability", a.setAvailability)
	mux.HandleFunc("PUT /api/vehicles/{id}/owner", a.setOwner)
	mux.HandleFunc("GET /api/vehicles/{id}/reservations", a.vehicleReservations)
	mux.HandleFunc("GET /api/vehicles/{id}/reviews", a.vehicleReviews)

	mux.HandleFunc("GET /api/reservations", a.listReservations)
	mux.HandleFunc("POST /api/reservations", a.createReservation)
	mux.HandleFunc("POST /api/reservations/check", a.checkOverlap)
	mux.HandleFunc("GET /api/reservations/{id}/vehicle", a.reservationVehicle)
	mux.HandleFunc("PUT /api/reservations/{id}", a.updateReservation)
	mux.HandleFunc("DELETE /api/reservations/{id}", a.cancelReservation)

	mux.HandleFunc("POST /api/reviews", a.createReview)
	mux.HandleFunc("GET /api/reviews", a.listReviews)
	mux.HandleFunc("GET /api/reviews/{id}", a.getReview)
	mux.HandleFunc("PUT /api/reviews/{id}", a.updateReview)
	mux.HandleFunc("DELETE /api/reviews/{id}", a.deleteReview)

	mux.HandleFunc("GET /api/stats", a.stats)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- JSON plumbing ---

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondErr(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeErr maps domain errors to HTTP statuses. Anything unmapped is an
// internal error and gets logged; domain errors stay at info level since the
// middleware already logs the status.
func (a *api) writeErr(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrOverlapConflict):
		respondErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		respondErr(w, http.StatusConflict, err.Error())
	case errors.As(err, &ve):
		respondErr(w, http.StatusBadRequest, err.Error())
	default:
		a.log.Error("request failed", "err", err)
		respondErr(w, http.StatusInternalServerError, "internal server error")
	}
}

// --- Wire types ---

// Reservations cross the wire with dates in the graph's own layout rather
// than RFC 3339, so the JSON a client reads back matches what was stored.

type reservationJSON struct {
	ID     string `json:"id"`
	Pickup string `json:"pickup_date"`
	Return string `json:"return_date"`
}

func toReservationJSON(r domain.Reservation) reservationJSON {
	return reservationJSON{
		ID:     r.ID,
		Pickup: domain.FormatDateTime(r.Pickup),
		Return: domain.FormatDateTime(r.Return),
	}
}

func toReservationsJSON(rs []domain.Reservation) []reservationJSON {
	out := make([]reservationJSON, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationJSON(r))
	}
	return out
}

type bookingBody struct {
	UserID    string `json:"user_id"`
	VehicleID string `json:"vehicle_id"`
	Pickup    string `json:"pickup_date"`
	Return    string `json:"return_date"`
}

func (b bookingBody) toRequest() (domain.BookingRequest, error) {
	pickup, err := domain.ParseDateTime(b.Pickup)
	if err != nil {
		return domain.BookingRequest{}, domain.NewValidationError("pickup_date", b.Pickup, err)
	}
	ret, err := domain.ParseDateTime(b.Return)
	if err != nil {
		return domain.BookingRequest{}, domain.NewValidationError("return_date", b.Return, err)
	}
	return domain.BookingRequest{
		UserID:    b.UserID,
		VehicleID: b.VehicleID,
		Pickup:    pickup,
		Return:    ret,
	}, nil
}

// --- Users ---

func (a *api) createUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if !decode(w, r, &u) {
		return
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := domain.ValidateUser(u); err != nil {
		a.writeErr(w, err)
		return
	}
	if err := a.store.CreateUser(r.Context(), u); err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusCreated, u)
}

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, users)
}

func (a *api) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, u)
}

func (a *api) updateUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if !decode(w, r, &u) {
		return
	}
	u.ID = r.PathValue("id")
	if err := domain.ValidateUser(u); err != nil {
		a.writeErr(w, err)
		return
	}
	if err := a.store.UpdateUser(r.Context(), u); err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, u)
}

func (a *api) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) userReservations(w http.ResponseWriter, r *http.Request) {
	rs, err := a.store.ReservationsForUser(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, toReservationsJSON(rs))
}

func (a *api) userReviews(w http.ResponseWriter, r *http.Request) {
	revs, err := a.store.ReviewsForUser(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, revs)
}

// --- Vehicles ---

func (a *api) createVehicle(w http.ResponseWriter, r *http.Request) {
	var v domain.Vehicle
	if !decode(w, r, &v) {
		return
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.Available = true
	if err := domain.ValidateVehicle(v); err != nil {
		a.writeErr(w, err)
		return
	}
	if err := a.store.CreateVehicle(r.Context(), v); err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusCreated, v)
}

// listVehicles serves /api/vehicles with optional filters. Filters are
// mutually exclusive; the first recognised one wins.
func (a *api) listVehicles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var (
		vehicles []domain.Vehicle
		err      error
	)
	switch {
	case q.Get("brand") != "":
		vehicles, err = a.store.VehiclesByBrand(ctx, q.Get("brand"))
	case q.Get("type") != "":
		vehicles, err = a.store.VehiclesByType(ctx, q.Get("type"))
	case q.Get("min_price") != "" || q.Get("max_price") != "":
		var min, max float64
		if min, err = parsePrice(q.Get("min_price"), 0); err == nil {
			max, err = parsePrice(q.Get("max_price"), maxPrice)
		}
		if err != nil {
			respondErr(w, http.StatusBadRequest, "invalid price filter")
			return
		}
		vehicles, err = a.store.VehiclesByPriceRange(ctx, min, max)
	case q.Get("available") == "true":
		vehicles, err = a.store.AvailableVehicles(ctx)
	default:
		vehicles, err = a.store.ListVehicles(ctx)
	}
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, vehicles)
}

const maxPrice = 1e9

func parsePrice(s string, fallback float64) (float64, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(s, 64)
}

func (a *api) vehicleBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := a.store.Brands(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, brands)
}

func (a *api) vehicleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := a.store.Types(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, types)
}

func (a *api) topVehicles(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondErr(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	stats, err := a.store.TopVehicles(r.Context(), limit)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, stats)
}

func (a *api) getVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := a.store.GetVehicle(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, v)
}

func (a *api) updateVehicle(w http.ResponseWriter, r *http.Request) {
	var v domain.Vehicle
	if !decode(w, r, &v) {
		return
	}
	v.ID = r.PathValue("id")
	if err := domain.ValidateVehicle(v); err != nil {
		a.writeErr(w, err)
		return
	}
	if err := a.store.UpdateVehicle(r.Context(), v); err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, v)
}

func (a *api) deleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteVehicle(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) setAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Available bool `json:"availability"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := a.store.SetAvailability(r.Context(), r.PathValue("id"), body.Available); err != nil {
		a.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) setOwner(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.UserID == "" {
		respondErr(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := a.store.SetOwner(r.Context(), body.UserID, r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) vehicleReservations(w http.ResponseWriter, r *http.Request) {
	rs, err := a.store.ReservationsForVehicle(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, toReservationsJSON(rs))
}

func (a *api) vehicleReviews(w http.ResponseWriter, r *http.Request) {
	revs, err := a.store.ReviewsForVehicle(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, revs)
}

// --- Reservations ---

func (a *api) reservationVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := a.store.VehicleByReservation(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, v)
}

func (a *api) listReservations(w http.ResponseWriter, r *http.Request) {
	rs, err := a.store.ListReservations(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, toReservationsJSON(rs))
}

func (a *api) createReservation(w http.ResponseWriter, r *http.Request) {
	var body bookingBody
	if !decode(w, r, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		a.writeErr(w, err)
		return
	}
	res, err := a.bookings.Book(r.Context(), req)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusCreated, toReservationJSON(res))
}

func (a *api) checkOverlap(w http.ResponseWriter, r *http.Request) {
	var body bookingBody
	if !decode(w, r, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		a.writeErr(w, err)
		return
	}
	if body.VehicleID == "" {
		respondErr(w, http.StatusBadRequest, "vehicle_id is required")
		return
	}
	overlap, err := a.bookings.HasOverlap(r.Context(), req.VehicleID, req.Pickup, req.Return)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]bool{"overlap": overlap})
}

func (a *api) updateReservation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pickup string `json:"pickup_date"`
		Return string `json:"return_date"`
	}
	if !decode(w, r, &body) {
		return
	}
	pickup, err := domain.ParseDateTime(body.Pickup)
	if err != nil {
		a.writeErr(w, domain.NewValidationError("pickup_date", body.Pickup, err))
		return
	}
	ret, err := domain.ParseDateTime(body.Return)
	if err != nil {
		a.writeErr(w, domain.NewValidationError("return_date", body.Return, err))
		return
	}
	res := domain.Reservation{ID: r.PathValue("id"), Pickup: pickup, Return: ret}
	if !res.Interval().Valid() {
		a.writeErr(w, domain.NewValidationError("return_date", body.Return, domain.ErrInvalidInterval))
		return
	}
	if err := a.store.UpdateReservation(r.Context(), res); err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, toReservationJSON(res))
}

func (a *api) cancelReservation(w http.ResponseWriter, r *http.Request) {
	if err := a.bookings.Cancel(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Reviews ---

type reviewBody struct {
	UserID    string `json:"user_id"`
	VehicleID string `json:"vehicle_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (a *api) createReview(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	if !decode(w, r, &body) {
		return
	}
	if body.UserID == "" || body.VehicleID == "" {
		respondErr(w, http.StatusBadRequest, "user_id and vehicle_id are required")
		return
	}
	rev := domain.Review{ID: uuid.NewString(), Rating: body.Rating, Comment: body.Comment}
	if err := domain.ValidateReview(rev); err != nil {
		a.writeErr(w, err)
		return
	}
	if err := a.store.CreateReview(r.Context(), body.UserID, body.VehicleID, rev); err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusCreated, rev)
}

func (a *api) listReviews(w http.ResponseWriter, r *http.Request) {
	revs, err := a.store.ListReviews(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, revs)
}

func (a *api) getReview(w http.ResponseWriter, r *http.Request) {
	rev, err := a.store.GetReview(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, rev)
}

func (a *api) updateReview(w http.ResponseWriter, r *http.Request) {
	var rev domain.Review
	if !decode(w, r, &rev) {
		return
	}
	rev.ID = r.PathValue("id")
	if err := domain.ValidateReview(rev); err != nil {
		a.writeErr(w, err)
		return
	}
	if err := a.store.UpdateReview(r.Context(), rev); err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, rev)
}

func (a *api) deleteReview(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteReview(r.Context(), r.PathValue("id")); err != nil {
		a.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Stats ---

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	nodes, err := a.store.NodeCounts(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	rels, err := a.store.RelationshipCounts(r.Context())
	if err != nil {
		a.writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"nodes":         nodes,
		"relationships": rels,
	})
}
