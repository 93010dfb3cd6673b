//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// Building with -tags sqlite_vec against the cgo mattn/go-sqlite3 driver
// loads the real sqlite-vec extension instead of the pure-Go
// vector_distance_cos shim in vec_compat.go. Off by default so the module
// stays a pure-Go build; the blank mattn/go-sqlite3 import registers the
// "sqlite3" driver name that Open dials when this tag is set.
func init() {
	vec.Auto()
	driverName = "sqlite3"
}
