// Package repo provides a small generic repository abstraction with a
// Neo4j-backed implementation for plain node CRUD.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no node matches the requested id.
var ErrNotFound = errors.New("entity not found")

// Repository is a generic CRUD interface over nodes of one label.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination for List operations.
type ListOpts struct {
	Offset int
	Limit  int
}
