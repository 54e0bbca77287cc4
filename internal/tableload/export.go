// export.go writes a registry back out for round-tripping: canonical
// JSON (optionally xz compressed) by default, or the table XML document
// when the target path ends in .xml.
package tableload

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/sxyu/cantus-chem/core/chemdata"
	"github.com/sxyu/cantus-chem/core/encoding"
	"github.com/sxyu/cantus-chem/core/errors"
	"github.com/sxyu/cantus-chem/core/xml"
	"github.com/sxyu/cantus-chem/internal/validation"
)

// Export writes a registry's tables to path. A .xml extension selects the
// XML document layout; anything else gets canonical JSON, xz compressed
// when compress is set or the path ends in .xz. Exported files load back
// to a registry with the same fingerprint.
func Export(reg *chemdata.Registry, path string, compress bool) error {
	if err := validation.ValidatePath(path); err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return exportXML(reg, path)
	}

	data, err := json.MarshalIndent(reg.TableSet(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode tables")
	}
	data = append(data, '\n')

	if compress || strings.EqualFold(filepath.Ext(path), ".xz") {
		var buf bytes.Buffer
		xzw, err := xz.NewWriter(&buf)
		if err != nil {
			return errors.Wrap(err, "failed to start xz stream")
		}
		if _, err := xzw.Write(data); err != nil {
			return errors.Wrap(err, "failed to compress tables")
		}
		if err := xzw.Close(); err != nil {
			return errors.Wrap(err, "failed to finish xz stream")
		}
		data = buf.Bytes()
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

// exportXML writes the registry as a table XML document, the layout
// loadXML reads.
func exportXML(reg *chemdata.Registry, path string) error {
	ts := reg.TableSet()

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("<tables")
	writeAttr(&b, "name", ts.Name)
	writeAttr(&b, "version", ts.Version)
	b.WriteString("><elements>")

	for i, sym := range ts.Symbols {
		b.WriteString("<element")
		writeAttr(&b, "symbol", sym)
		writeAttr(&b, "name", ts.Names[i])

		mass := ts.Masses[sym]
		var charges []int
		if i < len(ts.Charges) {
			charges = ts.Charges[i]
		}
		if mass == nil && len(charges) == 0 {
			b.WriteString("/>")
			continue
		}

		b.WriteString(">")
		if mass != nil {
			b.WriteString("<mass")
			if mass.Mode == chemdata.PrecisionSigFig {
				writeAttr(&b, "sigfigs", strconv.Itoa(mass.SigFigs))
			} else {
				writeAttr(&b, "mode", string(mass.Mode))
			}
			b.WriteString(">")
			b.WriteString(strconv.FormatFloat(mass.Value, 'g', -1, 64))
			b.WriteString("</mass>")
		}
		for _, c := range charges {
			b.WriteString("<charge>")
			b.WriteString(strconv.Itoa(c))
			b.WriteString("</charge>")
		}
		b.WriteString("</element>")
	}
	b.WriteString("</elements><ions>")

	for _, key := range sortedKeys(ts.Polyatomic) {
		entry := ts.Polyatomic[key]
		b.WriteString("<ion")
		writeAttr(&b, "key", key)
		writeAttr(&b, "charge", strconv.Itoa(entry.Charge))
		if len(entry.Names) == 0 {
			b.WriteString("/>")
			continue
		}
		b.WriteString(">")
		for _, name := range entry.Names {
			b.WriteString("<name>")
			b.WriteString(encoding.EscapeXMLText(name))
			b.WriteString("</name>")
		}
		b.WriteString("</ion>")
	}
	b.WriteString("</ions><constants>")

	for _, species := range sortedKeys(ts.Ka) {
		writeConstant(&b, "ka", species, ts.Ka[species])
	}
	for _, species := range sortedKeys(ts.Kb) {
		writeConstant(&b, "kb", species, ts.Kb[species])
	}
	b.WriteString("</constants></tables>")

	out, err := xml.Format([]byte(b.String()), xml.FormatOptions{})
	if err != nil {
		return errors.Wrap(err, "failed to format table XML")
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

func writeAttr(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(encoding.EscapeXMLAttr(value))
	b.WriteString(`"`)
}

func writeConstant(b *strings.Builder, table, species string, entry chemdata.DissociationEntry) {
	b.WriteString("<constant")
	writeAttr(b, "table", table)
	writeAttr(b, "species", species)
	if entry.Strength != "" {
		writeAttr(b, "strength", string(entry.Strength))
		b.WriteString("/>")
		return
	}
	b.WriteString(">")
	b.WriteString(encoding.EscapeXMLText(string(entry.Value)))
	b.WriteString("</constant>")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
