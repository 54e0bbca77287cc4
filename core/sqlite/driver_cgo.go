//go:build cgo_sqlite

// CGO build of the dataset store. Requires CGO_ENABLED=1 and
// -tags cgo_sqlite.
package sqlite

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverName    = "sqlite3"
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3"
)
