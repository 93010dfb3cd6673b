// Package store is the Claim Store (spec §4.A): the system's only
// persistent mutable state. It owns ClaimCards and their satellite
// Sources/tags, the independently-lived VerifiedSource library, the
// hot-editable AgentPrompt table, the scheduler's TopicQueueEntry/BlogPost
// pair, and the append-only RouterDecision log.
//
// Grounded on original_source/.../database/models.py and repositories.py
// for the relational shape; the teacher carries no persistence layer of
// its own (it is a stateless URL scanner), so the driver choice is drawn
// from the rest of the example pack: modernc.org/sqlite (pure Go, no cgo
// build requirement) for the relational engine, with a cosine-distance SQL
// function registered the way theRebelliousNerd-codenerd's
// internal/store/vec_compat.go does it.
package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

// Store wraps the relational+vector backing for every spec §4.A operation.
type Store struct {
	db  *sql.DB
	dim int
}

// driverName is overridden to "sqlite3" by init_vec.go when built with
// -tags sqlite_vec,cgo so the mattn/go-sqlite3 driver (which the real
// sqlite-vec C extension attaches to) is dialed instead of the pure-Go one.
var driverName = "sqlite"

// Open creates (or attaches to) a SQLite database at path, applying the
// schema and registering the vector distance function used by
// SearchByEmbedding. path may be ":memory:" for tests.
func Open(path string, dimension int) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid "database is locked"

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db, dim: dimension}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeVector packs a float32 slice into the little-endian byte layout
// vector_distance_cos expects (see vec_compat.go), matching
// theRebelliousNerd-codenerd's in-BLOB encoding so the two are
// interchangeable if the cgo sqlite-vec build tag is enabled instead.
func encodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
