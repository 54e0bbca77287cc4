//go:build !cgo_sqlite

// Default build of the dataset store, no C toolchain needed.
package sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)
