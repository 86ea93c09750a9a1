// Package memstore is an embeddable implementation of the Store capability
// backed by buntdb, an ordered in-memory/on-disk KV store. Used for tests
// and single-process deployments where a separate Redis isn't warranted;
// buntdb's AscendKeys gives real prefix index scans over "KIND/" ranges
// instead of a full scan of a bare Go map.
package memstore

import (
	"context"
	"strings"

	"github.com/tidwall/buntdb"
	jsoniter "github.com/json-iterator/go"

	"github.com/wasmCloud/lattice-controller/internal/cmn"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

type MemStore struct {
	db *buntdb.DB
}

// Open opens a buntdb database at path; pass ":memory:" for a pure in-memory
// store (the common case in tests).
func Open(path string) (*MemStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, cmn.Wrapf(err, "opening buntdb at %s", path)
	}
	return &MemStore{db: db}, nil
}

func (m *MemStore) Close() error { return m.db.Close() }

func fullKey(lattice string, kind store.Kind, id string) string {
	return lattice + ":" + store.Key(kind, id)
}

func prefix(lattice string, kind store.Kind) string {
	return lattice + ":" + string(kind) + "/"
}

func (m *MemStore) Get(_ context.Context, lattice string, kind store.Kind, id string, out interface{}) (bool, error) {
	var found bool
	err := m.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(fullKey(lattice, kind, id))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return jsoniter.Unmarshal([]byte(val), out)
	})
	if err != nil {
		return false, cmn.Wrapf(err, "get %s/%s/%s", lattice, kind, id)
	}
	return found, nil
}

// List unmarshals every record under lattice/kind into out, which must be a
// pointer to a map[string]json.RawMessage-compatible destination; callers
// typically pass *map[string]*model.X and decode per-item afterward, or use
// ListRaw for full control.
func (m *MemStore) List(_ context.Context, lattice string, kind store.Kind, out interface{}) error {
	raw, err := m.ListRaw(context.Background(), lattice, kind)
	if err != nil {
		return err
	}
	return jsoniter.Unmarshal(mustMarshalRaw(raw), out)
}

// ListRaw returns every id -> raw JSON value pair under lattice/kind. buntdb
// visits the keys in ascending order, but the result is a Go map, so it
// carries no order.
func (m *MemStore) ListRaw(_ context.Context, lattice string, kind store.Kind) (map[string]string, error) {
	out := make(map[string]string)
	pfx := prefix(lattice, kind)
	err := m.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(pfx+"*", func(key, value string) bool {
			id := strings.TrimPrefix(key, pfx)
			out[id] = value
			return true
		})
	})
	if err != nil {
		return nil, cmn.Wrapf(err, "list %s/%s", lattice, kind)
	}
	return out, nil
}

func (m *MemStore) Store(_ context.Context, lattice string, kind store.Kind, id string, v interface{}) error {
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return cmn.Wrapf(err, "marshal %s/%s/%s", lattice, kind, id)
	}
	err = m.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(fullKey(lattice, kind, id), string(data), nil)
		return err
	})
	return cmn.Wrapf(err, "store %s/%s/%s", lattice, kind, id)
}

func (m *MemStore) StoreMany(_ context.Context, lattice string, kind store.Kind, items map[string]interface{}) error {
	err := m.db.Update(func(tx *buntdb.Tx) error {
		for id, v := range items {
			data, err := jsoniter.Marshal(v)
			if err != nil {
				return cmn.Wrapf(err, "marshal %s/%s/%s", lattice, kind, id)
			}
			if _, _, err := tx.Set(fullKey(lattice, kind, id), string(data), nil); err != nil {
				return err
			}
		}
		return nil
	})
	return cmn.Wrapf(err, "store_many %s/%s", lattice, kind)
}

func (m *MemStore) Delete(_ context.Context, lattice string, kind store.Kind, id string) error {
	err := m.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(fullKey(lattice, kind, id))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
	return cmn.Wrapf(err, "delete %s/%s/%s", lattice, kind, id)
}

func (m *MemStore) DeleteMany(_ context.Context, lattice string, kind store.Kind, ids []string) error {
	err := m.db.Update(func(tx *buntdb.Tx) error {
		for _, id := range ids {
			if _, err := tx.Delete(fullKey(lattice, kind, id)); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
	return cmn.Wrapf(err, "delete_many %s/%s", lattice, kind)
}

func mustMarshalRaw(raw map[string]string) []byte {
	// Re-marshal the id -> raw-json map so a single Unmarshal into the
	// caller's map[string]*T decodes every value in one pass.
	b, _ := jsoniter.Marshal(rawMap(raw))
	return b
}

// rawMap lets jsoniter treat already-encoded JSON strings as raw message
// values instead of re-encoding them as quoted strings.
type rawMap map[string]string

func (r rawMap) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	first := true
	for k, v := range r {
		if !first {
			buf = append(buf, ',')
		}
		first = false
		kb, _ := jsoniter.Marshal(k)
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	buf = append(buf, '}')
	return buf, nil
}

var _ store.Store = (*MemStore)(nil)
