// xml.go reads periodic-table XML documents. The expected layout is
//
//	<tables name="..." version="...">
//	  <elements>
//	    <element symbol="H" name="Hydrogen">
//	      <mass sigfigs="4">1.008</mass>
//	      <charge>1</charge>
//	      <charge>-1</charge>
//	    </element>
//	  </elements>
//	  <ions>
//	    <ion key="SO4" charge="-2"><name>sulfate</name></ion>
//	  </ions>
//	  <constants>
//	    <constant table="ka" species="HCl" strength="complete"/>
//	    <constant table="ka" species="CH3COOH">1.8e-05</constant>
//	  </constants>
//	</tables>
//
// Elements without a <mass> child, or whose mass reads "undefined", carry
// no tabulated mass. Constant values may be legacy sentinel magnitudes
// (1e1000, 1e-1000); those decode to the complete/negligible tags.
package tableload

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sxyu/cantus-chem/core/chemdata"
	"github.com/sxyu/cantus-chem/core/errors"
	"github.com/sxyu/cantus-chem/core/xml"
)

func loadXML(path string) (*chemdata.TableSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}

	if result := xml.Validate(data); !result.Valid {
		msg := "malformed XML"
		if len(result.Errors) > 0 {
			e := result.Errors[0]
			msg = e.Message
			if e.Line > 0 {
				msg = fmt.Sprintf("line %d: %s", e.Line, e.Message)
			}
		}
		return nil, errors.NewParse("XML", path, msg)
	}

	doc, err := xml.Parse(data)
	if err != nil {
		return nil, errors.NewParse("XML", path, err.Error())
	}

	ts := &chemdata.TableSet{
		Masses:     make(map[string]*chemdata.MassValue),
		Polyatomic: make(map[string]chemdata.IonEntry),
		Ka:         make(map[string]chemdata.DissociationEntry),
		Kb:         make(map[string]chemdata.DissociationEntry),
	}

	if root, err := doc.XPathFirst("/tables"); err == nil && root != nil {
		ts.Name = root.Attr("name")
		ts.Version = root.Attr("version")
	}

	elems, err := doc.XPath("//element")
	if err != nil {
		return nil, errors.NewParse("XML", path, err.Error())
	}
	for _, el := range elems {
		sym := el.Attr("symbol")
		if sym == "" {
			return nil, errors.NewParse("XML", path, "element without symbol attribute")
		}
		ts.Symbols = append(ts.Symbols, sym)
		ts.Names = append(ts.Names, el.Attr("name"))

		var charges []int
		var mass *chemdata.MassValue
		for _, child := range el.Children() {
			switch child.Name() {
			case "mass":
				mass, err = parseXMLMass(child)
				if err != nil {
					return nil, errors.NewParse("XML", path,
						fmt.Sprintf("element %s: %v", sym, err))
				}
			case "charge":
				c, err := strconv.Atoi(strings.TrimSpace(child.Text()))
				if err != nil {
					return nil, errors.NewParse("XML", path,
						fmt.Sprintf("element %s: invalid charge %q", sym, child.Text()))
				}
				charges = append(charges, c)
			}
		}
		ts.Charges = append(ts.Charges, charges)
		ts.Masses[sym] = mass
	}

	ions, err := doc.XPath("//ion")
	if err != nil {
		return nil, errors.NewParse("XML", path, err.Error())
	}
	for _, ion := range ions {
		key := ion.Attr("key")
		if key == "" {
			return nil, errors.NewParse("XML", path, "ion without key attribute")
		}
		charge, err := strconv.Atoi(ion.Attr("charge"))
		if err != nil {
			return nil, errors.NewParse("XML", path,
				fmt.Sprintf("ion %s: invalid charge %q", key, ion.Attr("charge")))
		}
		entry := chemdata.IonEntry{Charge: charge}
		for _, child := range ion.Children() {
			if child.Name() == "name" {
				entry.Names = append(entry.Names, splitNames(child.Text())...)
			}
		}
		ts.Polyatomic[key] = entry
	}

	consts, err := doc.XPath("//constant")
	if err != nil {
		return nil, errors.NewParse("XML", path, err.Error())
	}
	for _, c := range consts {
		species := c.Attr("species")
		if species == "" {
			return nil, errors.NewParse("XML", path, "constant without species attribute")
		}
		entry := chemdata.DissociationEntry{
			Strength: chemdata.DissociationStrength(c.Attr("strength")),
		}
		if text := strings.TrimSpace(c.Text()); text != "" {
			entry.Value = json.RawMessage(text)
		}
		switch table := c.Attr("table"); table {
		case "ka":
			ts.Ka[species] = entry
		case "kb":
			ts.Kb[species] = entry
		default:
			return nil, errors.NewParse("XML", path,
				fmt.Sprintf("constant %s: unknown table %q", species, table))
		}
	}

	return ts, nil
}

// parseXMLMass decodes a <mass> element. Returns nil for the textual
// "undefined" sentinel.
func parseXMLMass(n *xml.Node) (*chemdata.MassValue, error) {
	text := strings.TrimSpace(n.Text())
	if text == "" || strings.EqualFold(text, "undefined") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid mass %q", text)
	}
	m := &chemdata.MassValue{Value: v, Mode: chemdata.PrecisionMode(n.Attr("mode"))}
	if sf := n.Attr("sigfigs"); sf != "" {
		if m.SigFigs, err = strconv.Atoi(sf); err != nil {
			return nil, fmt.Errorf("invalid sigfigs %q", sf)
		}
	}
	return m, nil
}
