// Package graph provides Neo4j persistence for the rental graph: User,
// Vehicle, Reservation, and Review nodes with MAKES, RESERVED, OWNS, GIVES,
// and HAS relationships.
package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rentagraph/rentagraph/engine/domain"
	"github.com/rentagraph/rentagraph/pkg/repo"
)

// CypherResult is the minimal result surface needed from a query.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// CypherRunner runs a single Cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is an open store session. ExecuteWrite runs the given work
// in one transaction: every statement applies, or none do.
type CypherSession interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionOpener opens store sessions. Tests substitute tracking sessions.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

// Store exposes graph operations for the rental domain.
type Store struct {
	opener SessionOpener
	users  *repo.Neo4jRepo[domain.User, string]
	now    func() time.Time
}

// New creates a Store backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{
		opener: &driverOpener{driver: driver},
		users:  newUserRepo(driver),
		now:    time.Now,
	}
}

// NewWithOpener creates a Store with a custom session opener.
func NewWithOpener(opener SessionOpener) *Store {
	return &Store{opener: opener, now: time.Now}
}

// --- Driver adapters ---

type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (o *driverOpener) OpenSession(ctx context.Context) CypherSession {
	return &sessionAdapter{sess: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return a.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(&txAdapter{tx: tx})
	})
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

type txAdapter struct {
	tx neo4j.ManagedTransaction
}

func (a *txAdapter) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return a.tx.Run(ctx, cypher, params)
}

// --- Record helpers ---

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func boolProp(props map[string]any, key string) bool {
	if v, ok := props[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func recStr(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func recInt(rec *neo4j.Record, key string) int64 {
	if v, ok := rec.Get(key); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}
