// Package sqlite picks the SQLite driver for the dataset store at
// build time. The default build registers the pure-Go
// modernc.org/sqlite driver; CGO_ENABLED=1 with -tags cgo_sqlite
// switches to mattn/go-sqlite3. Callers go through Open so the
// registered driver name never leaks into the rest of the engine.
package sqlite

import "database/sql"

// Open opens a SQLite database with whichever driver this build
// registered.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenReadOnly opens a SQLite database read-only. Dataset loads go
// through this so a malformed file can never be altered by a read.
func OpenReadOnly(path string) (*sql.DB, error) {
	return Open(path + "?mode=ro")
}

// IsCGO reports whether this build uses the CGO driver.
func IsCGO() bool {
	return driverType == "cgo"
}

// Info describes the compiled-in driver. Reported by the version
// command.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns the compiled-in driver details.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
