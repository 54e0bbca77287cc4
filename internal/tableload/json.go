// json.go reads the canonical JSON table schema, the same layout the
// embedded default dataset uses.
package tableload

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/ulikunitz/xz"

	"github.com/sxyu/cantus-chem/core/chemdata"
	"github.com/sxyu/cantus-chem/core/errors"
)

// loadJSON reads a canonical JSON table file, transparently decompressing
// xz-compressed data.
func loadJSON(path string) (*chemdata.TableSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}

	if bytes.HasPrefix(data, magicXZ) {
		xzr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.NewParse("xz", path, err.Error())
		}
		if data, err = io.ReadAll(xzr); err != nil {
			return nil, errors.NewParse("xz", path, err.Error())
		}
	}

	var ts chemdata.TableSet
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, errors.NewParse("JSON", path, err.Error())
	}
	return &ts, nil
}
