// Package resolve turns parsed formulas into compositions and derived
// properties against a chemdata.Registry: element counts, molar mass with
// significant-figure tracking, net-charge candidates, and acid/base
// strength. Resolution degrades instead of failing: unknown symbols and
// undefined masses produce partial results with warnings.
package resolve

import "github.com/sxyu/cantus-chem/core/chemdata"

// Strength classifies acid or base strength for a species.
type Strength string

const (
	// StrengthStrong marks species that dissociate completely.
	StrengthStrong Strength = "strong"

	// StrengthWeak marks species with a finite measured constant.
	StrengthWeak Strength = "weak"

	// StrengthNegligible marks species with no meaningful dissociation.
	StrengthNegligible Strength = "negligible"

	// StrengthUnknown marks species absent from the tables.
	StrengthUnknown Strength = "unknown"
)

// validStrengths is the set of valid strength classes.
var validStrengths = map[Strength]bool{
	StrengthStrong:     true,
	StrengthWeak:       true,
	StrengthNegligible: true,
	StrengthUnknown:    true,
}

// IsValid returns true if the strength class is valid.
func (s Strength) IsValid() bool {
	return validStrengths[s]
}

// StrengthInfo pairs a strength class with the measured constant when one
// exists. Constant is nil for strong, negligible, and unknown species.
type StrengthInfo struct {
	Strength Strength `json:"strength"`
	Constant *float64 `json:"constant,omitempty"`
}

// WarningCode identifies a class of resolution degradation.
type WarningCode string

const (
	// WarnUnresolvedSymbol reports a symbol fragment matching no element.
	WarnUnresolvedSymbol WarningCode = "unresolved_symbol"

	// WarnUndefinedMass reports a contributing element with no tabulated
	// mass.
	WarnUndefinedMass WarningCode = "undefined_mass"

	// WarnOpaqueIonMass reports a recognized ion blocking the mass total
	// because ions carry no tabulated mass of their own.
	WarnOpaqueIonMass WarningCode = "opaque_ion_mass"

	// WarnNoChargeData reports an element with an empty charge list.
	WarnNoChargeData WarningCode = "no_charge_data"

	// WarnChargeTruncated reports a charge candidate set cut down to the
	// configured cap.
	WarnChargeTruncated WarningCode = "charge_candidates_truncated"
)

// Warning describes one non-fatal issue encountered during resolution.
type Warning struct {
	// Code is the warning class.
	Code WarningCode `json:"code"`

	// Subject is the symbol or key involved, if any.
	Subject string `json:"subject,omitempty"`

	// Message is a human-readable explanation.
	Message string `json:"message"`
}

// ElementCount is one element's accumulated atom count.
type ElementCount struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

// IonCount is one recognized polyatomic ion's accumulated unit count.
type IonCount struct {
	Key    string `json:"key"`
	Count  int    `json:"count"`
	Charge int    `json:"charge"`
}

// ChargeSet is a set of possible net charges. Multi-valent elements make
// the net charge ambiguous, so the set can hold more than one candidate.
// Candidates are sorted ascending and deduplicated.
type ChargeSet struct {
	Candidates []int `json:"candidates"`
	Truncated  bool  `json:"truncated,omitempty"`
}

// Certain reports whether the set pins down a single net charge.
func (c *ChargeSet) Certain() bool {
	return c != nil && len(c.Candidates) == 1
}

// Result is the outcome of resolving one formula. Mass and Charge are nil
// when they cannot be derived; Warnings explains every absence.
type Result struct {
	// Formula is the trimmed source text.
	Formula string `json:"formula"`

	// Elements holds per-element atom counts in first-seen order.
	Elements []ElementCount `json:"elements,omitempty"`

	// Ions holds recognized polyatomic ion counts in first-seen order.
	// Only populated when ion recognition is enabled.
	Ions []IonCount `json:"ions,omitempty"`

	// Unresolved holds symbol fragments matching no element, deduplicated
	// in first-seen order.
	Unresolved []string `json:"unresolved,omitempty"`

	// Mass is the molar mass, nil when any contributor has no mass.
	Mass *chemdata.MassValue `json:"mass,omitempty"`

	// UndefinedMass is true when the mass is absent because a contributing
	// element's mass is undefined in the tables.
	UndefinedMass bool `json:"undefined_mass,omitempty"`

	// Charge is the net-charge candidate set, nil when charge does not
	// apply or cannot be derived.
	Charge *ChargeSet `json:"charge,omitempty"`

	// Acidity and Basicity classify the species by the Ka/Kb tables.
	Acidity  StrengthInfo `json:"acidity"`
	Basicity StrengthInfo `json:"basicity"`

	// Warnings contains non-fatal issues encountered during resolution.
	Warnings []Warning `json:"warnings,omitempty"`
}

// HasWarnings returns true if resolution degraded anywhere.
func (r *Result) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// addWarning appends a warning to the result.
func (r *Result) addWarning(code WarningCode, subject, message string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Subject: subject, Message: message})
}
