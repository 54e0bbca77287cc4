package chemdata

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"sync"

	"github.com/sxyu/cantus-chem/core/errors"
	"github.com/ulikunitz/xz"
)

// defaultTablesXZ holds the built-in reference tables as xz-compressed
// JSON. The plain form can be recovered with the tables export command.
//
//go:embed tables.json.xz
var defaultTablesXZ []byte

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the built-in reference tables, decoded on first use.
// Every caller receives the same Registry.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = decodeDefault()
	})
	return defaultReg, defaultErr
}

// MustDefault returns the built-in tables or panics. Intended for tests
// and one-shot tools.
func MustDefault() *Registry {
	reg, err := Default()
	if err != nil {
		panic(err)
	}
	return reg
}

func decodeDefault() (*Registry, error) {
	xzr, err := xz.NewReader(bytes.NewReader(defaultTablesXZ))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open embedded tables")
	}
	data, err := io.ReadAll(xzr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress embedded tables")
	}
	var ts TableSet
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, errors.NewParse("JSON", "embedded tables", err.Error())
	}
	reg, err := NewRegistry(&ts)
	if err != nil {
		return nil, errors.Wrap(err, "embedded tables are invalid")
	}
	return reg, nil
}
