package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/rentagraph/rentagraph/engine/domain"
	"github.com/rentagraph/rentagraph/pkg/repo"
)

// newUserRepo creates a Neo4j-backed repository for User nodes.
func newUserRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[domain.User, string] {
	return repo.NewNeo4jRepo[domain.User, string](
		driver,
		"User",
		userToMap,
		userFromRecord,
	)
}

func userToMap(u domain.User) map[string]any {
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
	}
}

func userFromRecord(rec *neo4j.Record) (domain.User, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.User{}, err
	}
	return userFromProps(node.Props), nil
}

func userFromProps(props map[string]any) domain.User {
	return domain.User{
		ID:       strProp(props, "id"),
		Username: strProp(props, "username"),
		Email:    strProp(props, "email"),
		Role:     strProp(props, "role"),
	}
}

// EmailTaken reports whether a user with the given email already exists.
func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:User {email: $email}) RETURN count(n) AS count`
	res, err := sess.Run(ctx, cypher, map[string]any{"email": email})
	if err != nil {
		return false, err
	}
	if !res.Next(ctx) {
		return false, nil
	}
	return recInt(res.Record(), "count") > 0, nil
}

// CreateUser creates a User node. The email must not be registered already.
func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	taken, err := s.EmailTaken(ctx, u.Email)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("user %s: %w", u.Email, domain.ErrEmailTaken)
	}

	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `CREATE (n:User {id: $id, username: $username, email: $email, role: $role})`
	_, err = sess.Run(ctx, cypher, userToMap(u))
	return err
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	if s.users != nil {
		u, err := s.users.Get(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return u, err
	}

	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n:User {id: $id}) RETURN n`, map[string]any{"id": id})
	if err != nil {
		return domain.User{}, err
	}
	if !res.Next(ctx) {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return userFromRecord(res.Record())
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	if s.users != nil {
		return s.users.List(ctx, repo.ListOpts{})
	}

	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n:User) RETURN n`, nil)
	if err != nil {
		return nil, err
	}
	var users []domain.User
	for res.Next(ctx) {
		u, err := userFromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// UpdateUser overwrites a user's properties.
func (s *Store) UpdateUser(ctx context.Context, u domain.User) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:User {id: $id}) SET n += $props RETURN n.id AS id`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": u.ID, "props": userToMap(u)})
	if err != nil {
		return err
	}
	if !res.Next(ctx) {
		return fmt.Errorf("user %s: %w", u.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteUser removes a user node together with its relationships.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:User {id: $id}) DETACH DELETE n RETURN count(n) AS count`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return err
	}
	if !res.Next(ctx) || recInt(res.Record(), "count") == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
