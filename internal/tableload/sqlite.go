// sqlite.go reads datasets from SQLite databases with the schema
//
//	elements(position, symbol, name, mass, sigfigs, mode, charges)
//	polyatomic_ions(key, charge, names)
//	dissociation_constants(kind, species, strength, value)
//	meta(key, value)                -- optional: name, version rows
//
// charges is a comma-separated list ("2,3"), names a slash-separated one
// ("mercury(I)/mercurous"). kind is "ka" or "kb"; value holds a numeric
// constant or a legacy sentinel magnitude as text, NULL when a strength
// tag is present. A NULL mass marks an element with no tabulated mass.
package tableload

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sxyu/cantus-chem/core/chemdata"
	"github.com/sxyu/cantus-chem/core/errors"
	"github.com/sxyu/cantus-chem/core/sqlite"
)

func loadSQLite(path string) (*chemdata.TableSet, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer db.Close()

	ts := &chemdata.TableSet{
		Masses:     make(map[string]*chemdata.MassValue),
		Polyatomic: make(map[string]chemdata.IonEntry),
		Ka:         make(map[string]chemdata.DissociationEntry),
		Kb:         make(map[string]chemdata.DissociationEntry),
	}

	// The meta table is optional; absent rows leave name/version empty.
	if tableExists(db, "meta") {
		_ = db.QueryRow("SELECT value FROM meta WHERE key = 'name'").Scan(&ts.Name)
		_ = db.QueryRow("SELECT value FROM meta WHERE key = 'version'").Scan(&ts.Version)
	}

	if err := loadSQLiteElements(db, ts, path); err != nil {
		return nil, err
	}
	if err := loadSQLiteIons(db, ts, path); err != nil {
		return nil, err
	}
	if err := loadSQLiteConstants(db, ts, path); err != nil {
		return nil, err
	}
	return ts, nil
}

func tableExists(db *sql.DB, name string) bool {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&count)
	return err == nil && count > 0
}

func loadSQLiteElements(db *sql.DB, ts *chemdata.TableSet, path string) error {
	rows, err := db.Query(
		"SELECT symbol, name, mass, sigfigs, mode, charges FROM elements ORDER BY position")
	if err != nil {
		return errors.NewParse("SQLite", path, err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var sym, name string
		var mass sql.NullFloat64
		var sigfigs sql.NullInt64
		var mode, charges sql.NullString
		if err := rows.Scan(&sym, &name, &mass, &sigfigs, &mode, &charges); err != nil {
			return errors.NewParse("SQLite", path, err.Error())
		}

		ts.Symbols = append(ts.Symbols, sym)
		ts.Names = append(ts.Names, name)

		cl, err := parseChargeList(charges.String)
		if err != nil {
			return errors.NewParse("SQLite", path, fmt.Sprintf("element %s: %v", sym, err))
		}
		ts.Charges = append(ts.Charges, cl)

		if mass.Valid {
			ts.Masses[sym] = &chemdata.MassValue{
				Value:   mass.Float64,
				SigFigs: int(sigfigs.Int64),
				Mode:    chemdata.PrecisionMode(mode.String),
			}
		} else {
			ts.Masses[sym] = nil
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewParse("SQLite", path, err.Error())
	}
	return nil
}

func loadSQLiteIons(db *sql.DB, ts *chemdata.TableSet, path string) error {
	rows, err := db.Query("SELECT key, charge, names FROM polyatomic_ions")
	if err != nil {
		return errors.NewParse("SQLite", path, err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var charge int
		var names sql.NullString
		if err := rows.Scan(&key, &charge, &names); err != nil {
			return errors.NewParse("SQLite", path, err.Error())
		}
		ts.Polyatomic[key] = chemdata.IonEntry{
			Charge: charge,
			Names:  splitNames(names.String),
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewParse("SQLite", path, err.Error())
	}
	return nil
}

func loadSQLiteConstants(db *sql.DB, ts *chemdata.TableSet, path string) error {
	rows, err := db.Query("SELECT kind, species, strength, value FROM dissociation_constants")
	if err != nil {
		return errors.NewParse("SQLite", path, err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var kind, species string
		var strength, value sql.NullString
		if err := rows.Scan(&kind, &species, &strength, &value); err != nil {
			return errors.NewParse("SQLite", path, err.Error())
		}

		entry := chemdata.DissociationEntry{
			Strength: chemdata.DissociationStrength(strength.String),
		}
		if text := strings.TrimSpace(value.String); text != "" {
			entry.Value = json.RawMessage(text)
		}

		switch kind {
		case "ka":
			ts.Ka[species] = entry
		case "kb":
			ts.Kb[species] = entry
		default:
			return errors.NewParse("SQLite", path,
				fmt.Sprintf("constant %s: unknown kind %q", species, kind))
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewParse("SQLite", path, err.Error())
	}
	return nil
}
