package graph

import "context"

// VehicleStats holds reservation counts for one vehicle.
type VehicleStats struct {
	ID           string `json:"id"`
	Brand        string `json:"brand"`
	Type         string `json:"vehicle_type"`
	Reservations int64  `json:"reservations"`
}

// NodeCounts returns node counts grouped by label.
func (s *Store) NodeCounts(ctx context.Context) (map[string]int64, error) {
	return s.countsBy(ctx, `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`)
}

// RelationshipCounts returns relationship counts grouped by type.
func (s *Store) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	return s.countsBy(ctx, `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`)
}

func (s *Store) countsBy(ctx context.Context, cypher string) (map[string]int64, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for res.Next(ctx) {
		rec := res.Record()
		if t := recStr(rec, "type"); t != "" {
			counts[t] = recInt(rec, "count")
		}
	}
	return counts, nil
}

// TopVehicles returns the vehicles with the most reservations.
func (s *Store) TopVehicles(ctx context.Context, limit int) ([]VehicleStats, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (v:Vehicle)
		OPTIONAL MATCH (v)-[:RESERVED]->(r:Reservation)
		RETURN v.id AS id, v.brand AS brand, v.vehicle_type AS vehicle_type, count(r) AS reservations
		ORDER BY reservations DESC LIMIT $limit`
	res, err := sess.Run(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	var stats []VehicleStats
	for res.Next(ctx) {
		rec := res.Record()
		stats = append(stats, VehicleStats{
			ID:           recStr(rec, "id"),
			Brand:        recStr(rec, "brand"),
			Type:         recStr(rec, "vehicle_type"),
			Reservations: recInt(rec, "reservations"),
		})
	}
	return stats, nil
}
