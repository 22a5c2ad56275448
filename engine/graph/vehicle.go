package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/rentagraph/rentagraph/engine/domain"
)

func vehicleToMap(v domain.Vehicle) map[string]any {
	return map[string]any{
		"id":           v.ID,
		"vehicle_type": v.Type,
		"brand":        v.Brand,
		"daily_price":  v.DailyPrice,
		"availability": v.Available,
	}
}

func vehicleFromProps(props map[string]any) domain.Vehicle {
	return domain.Vehicle{
		ID:         strProp(props, "id"),
		Type:       strProp(props, "vehicle_type"),
		Brand:      strProp(props, "brand"),
		DailyPrice: floatProp(props, "daily_price"),
		Available:  boolProp(props, "availability"),
	}
}

// collectVehicles reads all Vehicle nodes from a result set.
func collectVehicles(ctx context.Context, res CypherResult) ([]domain.Vehicle, error) {
	var items []domain.Vehicle
	for res.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](res.Record(), "n")
		if err != nil {
			return nil, err
		}
		items = append(items, vehicleFromProps(node.Props))
	}
	return items, nil
}

// CreateVehicle creates a Vehicle node.
func (s *Store) CreateVehicle(ctx context.Context, v domain.Vehicle) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `CREATE (n:Vehicle {id: $id, vehicle_type: $vehicle_type, brand: $brand, daily_price: $daily_price, availability: $availability})`
	_, err := sess.Run(ctx, cypher, vehicleToMap(v))
	return err
}

// GetVehicle returns a vehicle by id.
func (s *Store) GetVehicle(ctx context.Context, id string) (domain.Vehicle, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n:Vehicle {id: $id}) RETURN n`, map[string]any{"id": id})
	if err != nil {
		return domain.Vehicle{}, err
	}
	if !res.Next(ctx) {
		return domain.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](res.Record(), "n")
	if err != nil {
		return domain.Vehicle{}, err
	}
	return vehicleFromProps(node.Props), nil
}

// ListVehicles returns all vehicles.
func (s *Store) ListVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n:Vehicle) RETURN n`, nil)
	if err != nil {
		return nil, err
	}
	return collectVehicles(ctx, res)
}

// VehiclesByBrand returns all vehicles of one brand.
func (s *Store) VehiclesByBrand(ctx context.Context, brand string) ([]domain.Vehicle, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n:Vehicle {brand: $brand}) RETURN n`, map[string]any{"brand": brand})
	if err != nil {
		return nil, err
	}
	return collectVehicles(ctx, res)
}

// VehiclesByType returns all vehicles of one type.
func (s *Store) VehiclesByType(ctx context.Context, vehicleType string) ([]domain.Vehicle, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n:Vehicle {vehicle_type: $type}) RETURN n`, map[string]any{"type": vehicleType})
	if err != nil {
		return nil, err
	}
	return collectVehicles(ctx, res)
}

// VehiclesByPriceRange returns vehicles whose daily price falls in [min, max].
func (s *Store) VehiclesByPriceRange(ctx context.Context, min, max float64) ([]domain.Vehicle, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Vehicle) WHERE n.daily_price >= $min AND n.daily_price <= $max RETURN n`
	res, err := sess.Run(ctx, cypher, map[string]any{"min": min, "max": max})
	if err != nil {
		return nil, err
	}
	return collectVehicles(ctx, res)
}

// AvailableVehicles returns vehicles whose availability flag is set. The flag
// is a listing hint; admission decisions re-derive truth from reservations.
func (s *Store) AvailableVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n:Vehicle {availability: true}) RETURN n`, nil)
	if err != nil {
		return nil, err
	}
	return collectVehicles(ctx, res)
}

// Brands returns the distinct vehicle brands.
func (s *Store) Brands(ctx context.Context) ([]string, error) {
	return s.distinctVehicleProp(ctx, "brand")
}

// Types returns the distinct vehicle types.
func (s *Store) Types(ctx context.Context) ([]string, error) {
	return s.distinctVehicleProp(ctx, "vehicle_type")
}

func (s *Store) distinctVehicleProp(ctx context.Context, prop string) ([]string, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`MATCH (n:Vehicle) RETURN DISTINCT n.%s AS value`, prop)
	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	var values []string
	for res.Next(ctx) {
		if v := recStr(res.Record(), "value"); v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}

// UpdateVehicle overwrites a vehicle's properties.
func (s *Store) UpdateVehicle(ctx context.Context, v domain.Vehicle) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Vehicle {id: $id}) SET n += $props RETURN n.id AS id`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": v.ID, "props": vehicleToMap(v)})
	if err != nil {
		return err
	}
	if !res.Next(ctx) {
		return fmt.Errorf("vehicle %s: %w", v.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteVehicle removes a vehicle node together with its relationships.
func (s *Store) DeleteVehicle(ctx context.Context, id string) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Vehicle {id: $id}) DETACH DELETE n RETURN count(n) AS count`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return err
	}
	if !res.Next(ctx) || recInt(res.Record(), "count") == 0 {
		return fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetAvailability sets the vehicle's availability flag.
func (s *Store) SetAvailability(ctx context.Context, id string, available bool) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Vehicle {id: $id}) SET n.availability = $available RETURN n.id AS id`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id, "available": available})
	if err != nil {
		return err
	}
	if !res.Next(ctx) {
		return fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetOwner links a user to a vehicle with an OWNS relationship.
func (s *Store) SetOwner(ctx context.Context, userID, vehicleID string) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (u:User {id: $userID})
	           MATCH (v:Vehicle {id: $vehicleID})
	           MERGE (u)-[:OWNS]->(v)
	           RETURN v.id AS id`
	res, err := sess.Run(ctx, cypher, map[string]any{"userID": userID, "vehicleID": vehicleID})
	if err != nil {
		return err
	}
	if !res.Next(ctx) {
		return fmt.Errorf("user %s or vehicle %s: %w", userID, vehicleID, domain.ErrNotFound)
	}
	return nil
}

// VehicleByReservation returns the vehicle a reservation is linked to.
func (s *Store) VehicleByReservation(ctx context.Context, reservationID string) (domain.Vehicle, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Vehicle)-[:RESERVED]->(r:Reservation {id: $id}) RETURN n`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": reservationID})
	if err != nil {
		return domain.Vehicle{}, err
	}
	if !res.Next(ctx) {
		return domain.Vehicle{}, fmt.Errorf("reservation %s: %w", reservationID, domain.ErrNotFound)
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](res.Record(), "n")
	if err != nil {
		return domain.Vehicle{}, err
	}
	return vehicleFromProps(node.Props), nil
}
