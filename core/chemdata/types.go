// Package chemdata defines the chemistry reference tables used for formula
// resolution: elements, polyatomic ions, and acid/base dissociation
// constants. Tables are decoded from a raw TableSet into an immutable
// Registry that is safe to share across concurrent resolutions.
package chemdata

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sxyu/cantus-chem/core/errors"
)

// PrecisionMode describes how a tabulated numeric value tracks precision.
type PrecisionMode string

const (
	// PrecisionRaw marks a value as exact for propagation purposes.
	PrecisionRaw PrecisionMode = "raw"
	// PrecisionSigFig marks a value as carrying a significant-figure count.
	PrecisionSigFig PrecisionMode = "sigfig"
)

// validPrecisionModes contains all known precision modes.
var validPrecisionModes = map[PrecisionMode]bool{
	PrecisionRaw:    true,
	PrecisionSigFig: true,
}

// IsValid checks if the precision mode is a known value.
func (m PrecisionMode) IsValid() bool {
	return validPrecisionModes[m]
}

// MassValue is a tabulated mass in grams per mole. SigFigs is meaningful
// only when Mode is PrecisionSigFig.
type MassValue struct {
	Value   float64       `json:"value"`
	SigFigs int           `json:"sigfigs,omitempty"`
	Mode    PrecisionMode `json:"mode,omitempty"`
}

// LeastDigit returns the decimal exponent of the least significant digit:
// 16.00 with 4 significant figures has least digit -2. Raw values carry no
// digit bound, so ok is false for them.
func (m MassValue) LeastDigit() (int, bool) {
	if m.Mode != PrecisionSigFig || m.SigFigs < 1 || m.Value == 0 {
		return 0, false
	}
	order := int(math.Floor(math.Log10(math.Abs(m.Value))))
	return order - (m.SigFigs - 1), true
}

// Rounded returns the value rounded to its least significant digit. Raw
// values are returned unchanged.
func (m MassValue) Rounded() float64 {
	ld, ok := m.LeastDigit()
	if !ok {
		return m.Value
	}
	scale := math.Pow(10, float64(ld))
	return math.Round(m.Value/scale) * scale
}

// String formats the value at its tracked precision: 18.016 carried at 4
// significant figures prints as "18.02".
func (m MassValue) String() string {
	ld, ok := m.LeastDigit()
	if !ok {
		return strconv.FormatFloat(m.Value, 'g', -1, 64)
	}
	decimals := 0
	if ld < 0 {
		decimals = -ld
	}
	return strconv.FormatFloat(m.Rounded(), 'f', decimals, 64)
}

// Element is a single element entry. Mass is nil when the element has no
// tabulated mass (heavy synthetic elements). Charges lists the common
// ionic charges, most tables order them by prevalence.
type Element struct {
	Symbol  string     `json:"symbol"`
	Name    string     `json:"name"`
	Mass    *MassValue `json:"mass,omitempty"`
	Charges []int      `json:"charges,omitempty"`
}

// PolyatomicIon is a named charged group such as SO4 with charge -2. Key is
// the composition written without parentheses, e.g. "NH4" or "Cr2O7".
type PolyatomicIon struct {
	Key    string   `json:"key"`
	Charge int      `json:"charge"`
	Names  []string `json:"names,omitempty"`
}

// DissociationStrength tags how a dissociation constant is known.
type DissociationStrength string

const (
	// DissociationComplete marks species that dissociate completely
	// (strong acids and bases). No finite constant applies.
	DissociationComplete DissociationStrength = "complete"
	// DissociationNegligible marks species with no meaningful dissociation.
	DissociationNegligible DissociationStrength = "negligible"
	// DissociationMeasured marks species with a finite measured constant.
	DissociationMeasured DissociationStrength = "measured"
)

// validDissociationStrengths contains all known strength tags.
var validDissociationStrengths = map[DissociationStrength]bool{
	DissociationComplete:   true,
	DissociationNegligible: true,
	DissociationMeasured:   true,
}

// IsValid checks if the strength tag is a known value.
func (s DissociationStrength) IsValid() bool {
	return validDissociationStrengths[s]
}

// DissociationConstant is a decoded Ka or Kb table entry. Value is
// meaningful only when Strength is DissociationMeasured.
type DissociationConstant struct {
	Strength DissociationStrength `json:"strength"`
	Value    float64              `json:"value,omitempty"`
}

// Entry returns the raw table form of the constant.
func (c DissociationConstant) Entry() DissociationEntry {
	if c.Strength == DissociationMeasured {
		return DissociationEntry{Value: json.RawMessage(strconv.AppendFloat(nil, c.Value, 'g', -1, 64))}
	}
	return DissociationEntry{Strength: c.Strength}
}

// TableSet is the raw, serializable form of a set of reference tables.
// Element data is held in parallel arrays in table order; masses are keyed
// by symbol so that entries without a measured mass stay explicit (null).
type TableSet struct {
	Name       string                       `json:"name,omitempty"`
	Version    string                       `json:"version,omitempty"`
	Symbols    []string                     `json:"symbols"`
	Names      []string                     `json:"names"`
	Charges    [][]int                      `json:"charges,omitempty"`
	Masses     map[string]*MassValue        `json:"masses"`
	Polyatomic map[string]IonEntry          `json:"polyatomic,omitempty"`
	Ka         map[string]DissociationEntry `json:"ka,omitempty"`
	Kb         map[string]DissociationEntry `json:"kb,omitempty"`
}

// IonEntry is the raw form of a polyatomic ion table row.
type IonEntry struct {
	Charge int      `json:"charge"`
	Names  []string `json:"names,omitempty"`
}

// DissociationEntry is the raw form of a Ka/Kb table row. Value is kept as
// a raw message so that legacy sentinel magnitudes (1e1000, 1e-1000)
// survive decoding; Constant folds them into tagged strengths.
type DissociationEntry struct {
	Strength DissociationStrength `json:"strength,omitempty"`
	Value    json.RawMessage      `json:"value,omitempty"`
}

// Magnitudes at or beyond 1e+-100 are legacy sentinel encodings of the
// complete/negligible tags rather than measurements.
const (
	sentinelHigh = 1e100
	sentinelLow  = 1e-100
)

// Constant decodes the raw entry into a tagged DissociationConstant.
// Legacy sentinel values, including ones too large or too small for a
// float64, map onto DissociationComplete and DissociationNegligible.
func (e DissociationEntry) Constant() (DissociationConstant, error) {
	switch e.Strength {
	case DissociationComplete, DissociationNegligible:
		return DissociationConstant{Strength: e.Strength}, nil
	case "", DissociationMeasured:
		// value required below
	default:
		return DissociationConstant{}, errors.NewValidation("strength",
			fmt.Sprintf("unknown dissociation strength %q", e.Strength))
	}

	if len(e.Value) == 0 {
		return DissociationConstant{}, errors.NewValidation("value",
			"dissociation entry requires a strength tag or a numeric value")
	}
	raw := strings.Trim(strings.TrimSpace(string(e.Value)), `"`)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			// Overflow is the old "dissociates completely" sentinel,
			// underflow the old "does not dissociate" one.
			if math.IsInf(v, 1) {
				return DissociationConstant{Strength: DissociationComplete}, nil
			}
			if v >= 0 && v < 1 {
				return DissociationConstant{Strength: DissociationNegligible}, nil
			}
		}
		return DissociationConstant{}, errors.NewValidation("value",
			fmt.Sprintf("invalid dissociation constant %q", raw))
	}

	switch {
	case v <= 0:
		return DissociationConstant{}, errors.NewValidation("value",
			fmt.Sprintf("dissociation constant must be positive, got %v", v))
	case v >= sentinelHigh:
		return DissociationConstant{Strength: DissociationComplete}, nil
	case v <= sentinelLow:
		return DissociationConstant{Strength: DissociationNegligible}, nil
	}
	return DissociationConstant{Strength: DissociationMeasured, Value: v}, nil
}
