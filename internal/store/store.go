// Package store defines the Store capability (§6): per-lattice keyed
// persistence of Host, Component, and Provider records. Two implementations
// are provided: memstore (buntdb-backed, used in tests and embedded
// deployments) and redisstore (production).
package store

import "context"

// Kind is the entity kind portion of a Store key ("KIND/id", §6 "Persisted
// state layout").
type Kind string

const (
	KindHost      Kind = "host"
	KindComponent Kind = "component"
	KindProvider  Kind = "provider"
)

// Store is the capability every entity read/write in the core goes
// through. Implementations provide atomic per-key writes; multi-key
// operations (StoreMany, DeleteMany) are not required to be atomic (§6).
type Store interface {
	Get(ctx context.Context, lattice string, kind Kind, id string, out interface{}) (bool, error)
	List(ctx context.Context, lattice string, kind Kind, out interface{}) error
	Store(ctx context.Context, lattice string, kind Kind, id string, v interface{}) error
	StoreMany(ctx context.Context, lattice string, kind Kind, items map[string]interface{}) error
	Delete(ctx context.Context, lattice string, kind Kind, id string) error
	DeleteMany(ctx context.Context, lattice string, kind Kind, ids []string) error
}

// Key builds the "KIND/id" key used by both implementations, kept here so
// neither backend drifts from the other's key layout.
func Key(kind Kind, id string) string {
	return string(kind) + "/" + id
}
