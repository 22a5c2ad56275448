package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/rentagraph/rentagraph/engine/domain"
)

func reviewToMap(r domain.Review) map[string]any {
	return map[string]any{
		"id":      r.ID,
		"rating":  r.Rating,
		"comment": r.Comment,
	}
}

func reviewFromProps(props map[string]any) domain.Review {
	return domain.Review{
		ID:      strProp(props, "id"),
		Rating:  intProp(props, "rating"),
		Comment: strProp(props, "comment"),
	}
}

func collectReviews(ctx context.Context, res CypherResult) ([]domain.Review, error) {
	var items []domain.Review
	for res.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](res.Record(), "n")
		if err != nil {
			return nil, err
		}
		items = append(items, reviewFromProps(node.Props))
	}
	return items, nil
}

// CreateReview creates a Review node and links it to the reviewing user
// (GIVES) and the reviewed vehicle (HAS) in one transaction.
func (s *Store) CreateReview(ctx context.Context, userID, vehicleID string, r domain.Review) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		if err := requireNode(ctx, tx, "User", userID); err != nil {
			return nil, err
		}
		if err := requireNode(ctx, tx, "Vehicle", vehicleID); err != nil {
			return nil, err
		}

		cypher := `CREATE (r:Review {id: $id, rating: $rating, comment: $comment})`
		if _, err := tx.Run(ctx, cypher, reviewToMap(r)); err != nil {
			return nil, err
		}

		cypher = `MATCH (u:User {id: $userID})
		          MATCH (r:Review {id: $reviewID})
		          CREATE (u)-[:GIVES]->(r)`
		if _, err := tx.Run(ctx, cypher, map[string]any{
			"userID": userID, "reviewID": r.ID,
		}); err != nil {
			return nil, err
		}

		cypher = `MATCH (v:Vehicle {id: $vehicleID})
		          MATCH (r:Review {id: $reviewID})
		          CREATE (v)-[:HAS]->(r)`
		if _, err := tx.Run(ctx, cypher, map[string]any{
			"vehicleID": vehicleID, "reviewID": r.ID,
		}); err != nil {
			return nil, err
		}

		return nil, nil
	})
	return err
}

// GetReview returns a review by id.
func (s *Store) GetReview(ctx context.Context, id string) (domain.Review, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n:Review {id: $id}) RETURN n`, map[string]any{"id": id})
	if err != nil {
		return domain.Review{}, err
	}
	if !res.Next(ctx) {
		return domain.Review{}, fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](res.Record(), "n")
	if err != nil {
		return domain.Review{}, err
	}
	return reviewFromProps(node.Props), nil
}

// ListReviews returns all reviews.
func (s *Store) ListReviews(ctx context.Context) ([]domain.Review, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n:Review) RETURN n`, nil)
	if err != nil {
		return nil, err
	}
	return collectReviews(ctx, res)
}

// ReviewsForUser returns reviews written by a user.
func (s *Store) ReviewsForUser(ctx context.Context, userID string) ([]domain.Review, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (u:User {id: $id})-[:GIVES]->(n:Review) RETURN n`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": userID})
	if err != nil {
		return nil, err
	}
	return collectReviews(ctx, res)
}

// ReviewsForVehicle returns reviews attached to a vehicle.
func (s *Store) ReviewsForVehicle(ctx context.Context, vehicleID string) ([]domain.Review, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (v:Vehicle {id: $id})-[:HAS]->(n:Review) RETURN n`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": vehicleID})
	if err != nil {
		return nil, err
	}
	return collectReviews(ctx, res)
}

// UpdateReview rewrites a review's rating and comment.
func (s *Store) UpdateReview(ctx context.Context, r domain.Review) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Review {id: $id}) SET n.rating = $rating, n.comment = $comment RETURN n.id AS id`
	res, err := sess.Run(ctx, cypher, reviewToMap(r))
	if err != nil {
		return err
	}
	if !res.Next(ctx) {
		return fmt.Errorf("review %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteReview removes a review node together with its relationships.
func (s *Store) DeleteReview(ctx context.Context, id string) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Review {id: $id}) DETACH DELETE n RETURN count(n) AS count`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return err
	}
	if !res.Next(ctx) || recInt(res.Record(), "count") == 0 {
		return fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
