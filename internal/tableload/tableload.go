// Package tableload loads chemistry reference tables from files. Three
// formats are supported: the canonical JSON schema (plain or xz
// compressed), periodic-table XML documents, and SQLite databases. Every
// loader produces a raw chemdata.TableSet that is then validated into a
// Registry, so all formats pass through one set of integrity checks.
package tableload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sxyu/cantus-chem/core/chemdata"
	"github.com/sxyu/cantus-chem/core/errors"
	"github.com/sxyu/cantus-chem/internal/logging"
	"github.com/sxyu/cantus-chem/internal/validation"
)

// Format identifies a dataset file format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatXML    Format = "xml"
	FormatSQLite Format = "sqlite"
)

// Magic byte prefixes used for content sniffing.
var (
	magicXZ     = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicSQLite = []byte("SQLite format 3\x00")
)

// formatSpec describes how one dataset format is recognized and loaded.
type formatSpec struct {
	format     Format
	extensions []string
	sniff      func(head []byte) bool
	load       func(path string) (*chemdata.TableSet, error)
}

// formatSpecs lists the supported formats in sniffing order. Magic-byte
// formats come first so that, say, an xz stream named tables.dat is still
// recognized.
var formatSpecs = []formatSpec{
	{
		format:     FormatSQLite,
		extensions: []string{".db", ".sqlite", ".sqlite3"},
		sniff: func(head []byte) bool {
			return bytes.HasPrefix(head, magicSQLite)
		},
		load: loadSQLite,
	},
	{
		format:     FormatJSON,
		extensions: []string{".json", ".xz"},
		sniff: func(head []byte) bool {
			if bytes.HasPrefix(head, magicXZ) {
				return true
			}
			trimmed := bytes.TrimLeft(head, " \t\r\n")
			return len(trimmed) > 0 && trimmed[0] == '{'
		},
		load: loadJSON,
	},
	{
		format:     FormatXML,
		extensions: []string{".xml"},
		sniff: func(head []byte) bool {
			trimmed := bytes.TrimLeft(head, " \t\r\n")
			return len(trimmed) > 0 && trimmed[0] == '<'
		},
		load: loadXML,
	},
}

// DetectFormat determines the dataset format of a file from its leading
// bytes, falling back to the file extension when the content is not
// conclusive.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewIO("open", path, err)
	}
	defer f.Close()

	head := make([]byte, 64)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", errors.NewIO("read", path, err)
	}
	head = head[:n]

	for _, spec := range formatSpecs {
		if spec.sniff(head) {
			return spec.format, nil
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, spec := range formatSpecs {
		for _, e := range spec.extensions {
			if ext == e {
				return spec.format, nil
			}
		}
	}

	return "", errors.NewUnsupported("dataset format",
		fmt.Sprintf("cannot determine format of %s", filepath.Base(path)))
}

// Load reads a dataset file in any supported format and builds a
// validated Registry from it.
func Load(path string) (*chemdata.Registry, error) {
	if err := validation.ValidatePath(path); err != nil {
		logging.TableLoadError(path, "unknown", err)
		return nil, err
	}
	if fi, err := os.Stat(path); err == nil {
		if err := validation.ValidateFileSize(fi.Size()); err != nil {
			logging.TableLoadError(path, "unknown", err)
			return nil, err
		}
	}

	format, err := DetectFormat(path)
	if err != nil {
		logging.TableLoadError(path, "unknown", err)
		return nil, err
	}

	var ts *chemdata.TableSet
	for _, spec := range formatSpecs {
		if spec.format == format {
			ts, err = spec.load(path)
			break
		}
	}
	if err != nil {
		logging.TableLoadError(path, string(format), err)
		return nil, err
	}

	reg, err := chemdata.NewRegistry(ts)
	if err != nil {
		logging.TableLoadError(path, string(format), err)
		return nil, err
	}

	logging.TableLoad(path, string(format), reg.ElementCount(), reg.IonCount())
	return reg, nil
}

// parseChargeList parses a comma-separated charge list such as "2,3".
func parseChargeList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var charges []int
	for _, part := range strings.Split(s, ",") {
		c, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid charge %q", part)
		}
		charges = append(charges, c)
	}
	return charges, nil
}

// splitNames splits a slash-separated name list, trimming whitespace.
// Single names pass through unchanged.
func splitNames(s string) []string {
	var names []string
	for _, name := range strings.Split(s, "/") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
