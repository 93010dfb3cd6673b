package store

import (
	"database/sql/driver"
	"fmt"
	"math"

	sqlite "modernc.org/sqlite"
)

func init() {
	// modernc.org/sqlite is pure Go and cannot load the real sqlite-vec C
	// extension (see init_vec.go for the cgo path that can). Registering an
	// equivalent scalar function keeps SearchByEmbedding's SQL identical
	// either way, the same compatibility shim
	// theRebelliousNerd-codenerd/internal/store/vec_compat.go uses.
	_ = sqlite.RegisterDeterministicScalarFunction("vector_distance_cos", 2, vectorDistanceCos)
}

// vectorDistanceCos computes 1-cosine_similarity between two little-endian
// float32 BLOBs, the same encoding encodeVector produces.
func vectorDistanceCos(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vector_distance_cos: expected 2 arguments, got %d", len(args))
	}
	a, err := blobToVector(args[0])
	if err != nil {
		return nil, err
	}
	b, err := blobToVector(args[1])
	if err != nil {
		return nil, err
	}
	if len(a) == 0 || len(b) == 0 {
		return float64(1), nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vector_distance_cos: dimension mismatch %d vs %d", len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return float64(1), nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

func blobToVector(v driver.Value) ([]float32, error) {
	if v == nil {
		return nil, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("vector_distance_cos: expected BLOB, got %T", v)
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector_distance_cos: blob length %d not a multiple of 4", len(b))
	}
	return decodeVector(b), nil
}
