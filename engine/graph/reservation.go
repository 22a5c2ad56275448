package graph

import (
	"context"
	"fmt"

	"github.com/rentagraph/rentagraph/engine/domain"
)

func reservationParams(r domain.Reservation) map[string]any {
	return map[string]any{
		"id":          r.ID,
		"pickup_date": domain.FormatDateTime(r.Pickup),
		"return_date": domain.FormatDateTime(r.Return),
	}
}

// fetchVehicleReservations reads the RESERVED set for a vehicle through any
// statement runner, so it works both in plain sessions and inside write
// transactions.
func fetchVehicleReservations(ctx context.Context, run CypherRunner, vehicleID string) ([]domain.Reservation, error) {
	cypher := `MATCH (v:Vehicle {id: $id})-[:RESERVED]->(r:Reservation)
	           RETURN r.id AS id, r.pickup_date AS pickup_date, r.return_date AS return_date`
	res, err := run.Run(ctx, cypher, map[string]any{"id": vehicleID})
	if err != nil {
		return nil, err
	}

	var reservations []domain.Reservation
	for res.Next(ctx) {
		rec := res.Record()
		pickup, err := domain.ParseDateTime(recStr(rec, "pickup_date"))
		if err != nil {
			return nil, fmt.Errorf("reservation %s: pickup_date: %w", recStr(rec, "id"), err)
		}
		ret, err := domain.ParseDateTime(recStr(rec, "return_date"))
		if err != nil {
			return nil, fmt.Errorf("reservation %s: return_date: %w", recStr(rec, "id"), err)
		}
		reservations = append(reservations, domain.Reservation{
			ID:     recStr(rec, "id"),
			Pickup: pickup,
			Return: ret,
		})
	}
	return reservations, nil
}

// ListReservations returns all reservations.
func (s *Store) ListReservations(ctx context.Context) ([]domain.Reservation, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (r:Reservation)
	           RETURN r.id AS id, r.pickup_date AS pickup_date, r.return_date AS return_date`
	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	var reservations []domain.Reservation
	for res.Next(ctx) {
		rec := res.Record()
		pickup, err := domain.ParseDateTime(recStr(rec, "pickup_date"))
		if err != nil {
			return nil, fmt.Errorf("reservation %s: pickup_date: %w", recStr(rec, "id"), err)
		}
		ret, err := domain.ParseDateTime(recStr(rec, "return_date"))
		if err != nil {
			return nil, fmt.Errorf("reservation %s: return_date: %w", recStr(rec, "id"), err)
		}
		reservations = append(reservations, domain.Reservation{
			ID:     recStr(rec, "id"),
			Pickup: pickup,
			Return: ret,
		})
	}
	return reservations, nil
}

// ReservationsForVehicle returns every reservation linked to a vehicle via
// RESERVED, past and future alike.
func (s *Store) ReservationsForVehicle(ctx context.Context, vehicleID string) ([]domain.Reservation, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)
	return fetchVehicleReservations(ctx, sess, vehicleID)
}

// ReservationsForUser returns every reservation a user has made.
func (s *Store) ReservationsForUser(ctx context.Context, userID string) ([]domain.Reservation, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (u:User {id: $id})-[:MAKES]->(r:Reservation)
	           RETURN r.id AS id, r.pickup_date AS pickup_date, r.return_date AS return_date`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": userID})
	if err != nil {
		return nil, err
	}
	var reservations []domain.Reservation
	for res.Next(ctx) {
		rec := res.Record()
		pickup, err := domain.ParseDateTime(recStr(rec, "pickup_date"))
		if err != nil {
			return nil, fmt.Errorf("reservation %s: pickup_date: %w", recStr(rec, "id"), err)
		}
		ret, err := domain.ParseDateTime(recStr(rec, "return_date"))
		if err != nil {
			return nil, fmt.Errorf("reservation %s: return_date: %w", recStr(rec, "id"), err)
		}
		reservations = append(reservations, domain.Reservation{
			ID:     recStr(rec, "id"),
			Pickup: pickup,
			Return: ret,
		})
	}
	return reservations, nil
}

// UpdateReservation rewrites a reservation's dates.
func (s *Store) UpdateReservation(ctx context.Context, r domain.Reservation) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Reservation {id: $id})
	           SET n.pickup_date = $pickup_date, n.return_date = $return_date
	           RETURN n.id AS id`
	res, err := sess.Run(ctx, cypher, reservationParams(r))
	if err != nil {
		return err
	}
	if !res.Next(ctx) {
		return fmt.Errorf("reservation %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

// BookVehicle admits and persists a reservation in a single write
// transaction: it re-reads the vehicle's RESERVED set, rejects on overlap,
// and otherwise creates the Reservation node, the RESERVED and MAKES edges,
// and clears the vehicle's availability flag. Either all four writes apply
// or none do, and the overlap check cannot race a concurrent booking that
// commits first.
func (s *Store) BookVehicle(ctx context.Context, userID, vehicleID string, r domain.Reservation) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		if err := requireNode(ctx, tx, "Vehicle", vehicleID); err != nil {
			return nil, err
		}
		if err := requireNode(ctx, tx, "User", userID); err != nil {
			return nil, err
		}

		existing, err := fetchVehicleReservations(ctx, tx, vehicleID)
		if err != nil {
			return nil, err
		}
		candidate := r.Interval()
		for _, ex := range existing {
			if candidate.Overlaps(ex.Interval()) {
				return nil, fmt.Errorf("vehicle %s: reservation %s: %w",
					vehicleID, ex.ID, domain.ErrOverlapConflict)
			}
		}

		cypher := `CREATE (r:Reservation {id: $id, pickup_date: $pickup_date, return_date: $return_date})`
		if _, err := tx.Run(ctx, cypher, reservationParams(r)); err != nil {
			return nil, err
		}

		cypher = `MATCH (v:Vehicle {id: $vehicleID})
		          MATCH (r:Reservation {id: $reservationID})
		          CREATE (v)-[:RESERVED]->(r)`
		if _, err := tx.Run(ctx, cypher, map[string]any{
			"vehicleID": vehicleID, "reservationID": r.ID,
		}); err != nil {
			return nil, err
		}

		cypher = `MATCH (v:Vehicle {id: $vehicleID}) SET v.availability = false`
		if _, err := tx.Run(ctx, cypher, map[string]any{"vehicleID": vehicleID}); err != nil {
			return nil, err
		}

		cypher = `MATCH (u:User {id: $userID})
		          MATCH (r:Reservation {id: $reservationID})
		          CREATE (u)-[:MAKES]->(r)`
		if _, err := tx.Run(ctx, cypher, map[string]any{
			"userID": userID, "reservationID": r.ID,
		}); err != nil {
			return nil, err
		}

		return nil, nil
	})
	return err
}

// CancelReservation deletes a reservation and its edges in one transaction
// and restores the owning vehicle's availability flag. With restoreAlways
// the flag is set unconditionally; otherwise it is restored only when no
// remaining reservation for the vehicle covers the current instant.
func (s *Store) CancelReservation(ctx context.Context, reservationID string, restoreAlways bool) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	now := s.now()
	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		if err := requireNode(ctx, tx, "Reservation", reservationID); err != nil {
			return nil, err
		}

		cypher := `MATCH (v:Vehicle)-[:RESERVED]->(r:Reservation {id: $id}) RETURN v.id AS vehicle_id`
		res, err := tx.Run(ctx, cypher, map[string]any{"id": reservationID})
		if err != nil {
			return nil, err
		}
		vehicleID := ""
		if res.Next(ctx) {
			vehicleID = recStr(res.Record(), "vehicle_id")
		}

		available := true
		if vehicleID != "" && !restoreAlways {
			remaining, err := fetchVehicleReservations(ctx, tx, vehicleID)
			if err != nil {
				return nil, err
			}
			for _, r := range remaining {
				if r.ID != reservationID && r.Interval().Contains(now) {
					available = false
					break
				}
			}
		}

		cypher = `MATCH (r:Reservation {id: $id}) DETACH DELETE r`
		if _, err := tx.Run(ctx, cypher, map[string]any{"id": reservationID}); err != nil {
			return nil, err
		}

		if vehicleID != "" {
			cypher = `MATCH (v:Vehicle {id: $id}) SET v.availability = $available`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"id": vehicleID, "available": available,
			}); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	return err
}

// requireNode fails with ErrNotFound when no node of the label has the id.
func requireNode(ctx context.Context, tx CypherRunner, label, id string) error {
	cypher := fmt.Sprintf(`MATCH (n:%s {id: $id}) RETURN n.id AS id`, label)
	res, err := tx.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return err
	}
	if !res.Next(ctx) {
		return fmt.Errorf("%s %s: %w", label, id, domain.ErrNotFound)
	}
	return nil
}
