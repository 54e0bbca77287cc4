package chemdata

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sxyu/cantus-chem/core/errors"
	"github.com/zeebo/blake3"
)

var (
	// symbolPattern matches element symbols: an uppercase letter followed
	// by up to two lowercase letters ("H", "Cl", "Uut").
	symbolPattern = regexp.MustCompile(`^[A-Z][a-z]{0,2}$`)
	// ionKeyPattern matches polyatomic ion keys written without
	// parentheses ("SO4", "Cr2O7").
	ionKeyPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
)

// Registry is an immutable, queryable view of a TableSet. All lookup
// methods are safe for concurrent use once construction returns. Pointers
// returned by lookups share the registry's storage and must not be
// modified.
type Registry struct {
	name    string
	version string

	elements  []Element
	bySymbol  map[string]int
	byName    map[string]int
	maxSymLen int

	ions      []PolyatomicIon
	ionByKey  map[string]int
	ionByName map[string]int

	ka map[string]DissociationConstant
	kb map[string]DissociationConstant

	fingerprint string
}

// Stats summarizes registry contents.
type Stats struct {
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	Elements    int    `json:"elements"`
	Ions        int    `json:"ions"`
	Ka          int    `json:"ka"`
	Kb          int    `json:"kb"`
	Fingerprint string `json:"fingerprint"`
}

// NewRegistry validates a TableSet and builds a Registry from it. The
// TableSet is not retained; the registry keeps its own copies.
func NewRegistry(ts *TableSet) (*Registry, error) {
	if ts == nil {
		return nil, errors.NewValidation("tables", "table set is nil")
	}
	n := len(ts.Symbols)
	if len(ts.Names) != n {
		return nil, errors.NewValidation("names",
			fmt.Sprintf("expected %d names for %d symbols, got %d", n, n, len(ts.Names)))
	}
	if ts.Charges != nil && len(ts.Charges) != n {
		return nil, errors.NewValidation("charges",
			fmt.Sprintf("expected %d charge lists for %d symbols, got %d", n, n, len(ts.Charges)))
	}

	r := &Registry{
		name:      ts.Name,
		version:   ts.Version,
		elements:  make([]Element, 0, n),
		bySymbol:  make(map[string]int, n),
		byName:    make(map[string]int, n),
		ionByKey:  make(map[string]int, len(ts.Polyatomic)),
		ionByName: make(map[string]int, len(ts.Polyatomic)),
		ka:        make(map[string]DissociationConstant, len(ts.Ka)),
		kb:        make(map[string]DissociationConstant, len(ts.Kb)),
	}

	for i := 0; i < n; i++ {
		sym := ts.Symbols[i]
		if !symbolPattern.MatchString(sym) {
			return nil, errors.NewValidation("symbols",
				fmt.Sprintf("invalid element symbol %q", sym))
		}
		if _, dup := r.bySymbol[sym]; dup {
			return nil, &errors.ValidationError{
				Field:   "symbols",
				Message: fmt.Sprintf("duplicate element symbol %q", sym),
				Err:     errors.ErrAlreadyExists,
			}
		}

		el := Element{Symbol: sym, Name: ts.Names[i]}
		if i < len(ts.Charges) {
			for _, c := range ts.Charges[i] {
				if c == 0 {
					return nil, errors.NewValidation("charges",
						fmt.Sprintf("element %s lists a zero charge", sym))
				}
			}
			el.Charges = append([]int(nil), ts.Charges[i]...)
		}

		if me := ts.Masses[sym]; me != nil {
			m, err := normalizeMass(sym, me)
			if err != nil {
				return nil, err
			}
			el.Mass = m
		}

		r.bySymbol[sym] = len(r.elements)
		if name := strings.ToLower(el.Name); name != "" {
			if _, dup := r.byName[name]; !dup {
				r.byName[name] = len(r.elements)
			}
		}
		r.elements = append(r.elements, el)
		if len(sym) > r.maxSymLen {
			r.maxSymLen = len(sym)
		}
	}

	for sym := range ts.Masses {
		if _, ok := r.bySymbol[sym]; !ok {
			return nil, errors.NewValidation("masses",
				fmt.Sprintf("mass entry for unknown symbol %q", sym))
		}
	}

	ionKeys := make([]string, 0, len(ts.Polyatomic))
	for key := range ts.Polyatomic {
		ionKeys = append(ionKeys, key)
	}
	sort.Strings(ionKeys)
	for _, key := range ionKeys {
		entry := ts.Polyatomic[key]
		if !ionKeyPattern.MatchString(key) {
			return nil, errors.NewValidation("polyatomic",
				fmt.Sprintf("invalid ion key %q", key))
		}
		if entry.Charge == 0 {
			return nil, errors.NewValidation("polyatomic",
				fmt.Sprintf("ion %s has zero charge", key))
		}
		r.ionByKey[key] = len(r.ions)
		for _, name := range entry.Names {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				if _, dup := r.ionByName[name]; !dup {
					r.ionByName[name] = len(r.ions)
				}
			}
		}
		r.ions = append(r.ions, PolyatomicIon{
			Key:    key,
			Charge: entry.Charge,
			Names:  append([]string(nil), entry.Names...),
		})
	}

	for species, entry := range ts.Ka {
		species = strings.TrimSpace(species)
		if species == "" {
			return nil, errors.NewValidation("ka", "empty species key")
		}
		c, err := entry.Constant()
		if err != nil {
			return nil, errors.Wrapf(err, "ka entry %q", species)
		}
		r.ka[species] = c
	}
	for species, entry := range ts.Kb {
		species = strings.TrimSpace(species)
		if species == "" {
			return nil, errors.NewValidation("kb", "empty species key")
		}
		c, err := entry.Constant()
		if err != nil {
			return nil, errors.Wrapf(err, "kb entry %q", species)
		}
		r.kb[species] = c
	}

	data, err := json.Marshal(r.TableSet())
	if err != nil {
		return nil, errors.Wrap(err, "failed to fingerprint tables")
	}
	sum := blake3.Sum256(data)
	r.fingerprint = hex.EncodeToString(sum[:])

	return r, nil
}

func normalizeMass(sym string, me *MassValue) (*MassValue, error) {
	m := *me
	if m.Value <= 0 {
		return nil, errors.NewValidation("masses",
			fmt.Sprintf("element %s mass must be positive, got %v", sym, m.Value))
	}
	if m.Mode == "" {
		if m.SigFigs > 0 {
			m.Mode = PrecisionSigFig
		} else {
			m.Mode = PrecisionRaw
		}
	}
	if !m.Mode.IsValid() {
		return nil, errors.NewValidation("masses",
			fmt.Sprintf("element %s has unknown precision mode %q", sym, m.Mode))
	}
	switch m.Mode {
	case PrecisionSigFig:
		if m.SigFigs < 1 {
			return nil, errors.NewValidation("masses",
				fmt.Sprintf("element %s sig-fig mass needs a significant-figure count", sym))
		}
	case PrecisionRaw:
		m.SigFigs = 0
	}
	return &m, nil
}

// Name returns the table set name, if any.
func (r *Registry) Name() string {
	return r.name
}

// Version returns the table set version, if any.
func (r *Registry) Version() string {
	return r.version
}

// Fingerprint returns a hex-encoded BLAKE3 digest of the canonical table
// content. Registries built from equivalent tables share a fingerprint.
func (r *Registry) Fingerprint() string {
	return r.fingerprint
}

// Stats returns summary counts for the registry.
func (r *Registry) Stats() Stats {
	return Stats{
		Name:        r.name,
		Version:     r.version,
		Elements:    len(r.elements),
		Ions:        len(r.ions),
		Ka:          len(r.ka),
		Kb:          len(r.kb),
		Fingerprint: r.fingerprint,
	}
}

// ElementCount returns the number of elements in the registry.
func (r *Registry) ElementCount() int {
	return len(r.elements)
}

// IonCount returns the number of polyatomic ions in the registry.
func (r *Registry) IonCount() int {
	return len(r.ions)
}

// Element returns the element with the given symbol.
func (r *Registry) Element(symbol string) (*Element, bool) {
	i, ok := r.bySymbol[symbol]
	if !ok {
		return nil, false
	}
	return &r.elements[i], true
}

// ElementByName returns the element with the given English name.
// Matching is case-insensitive.
func (r *Registry) ElementByName(name string) (*Element, bool) {
	i, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return &r.elements[i], true
}

// Elements returns all elements in table order.
func (r *Registry) Elements() []Element {
	return append([]Element(nil), r.elements...)
}

// Ion returns the polyatomic ion with the given key.
func (r *Registry) Ion(key string) (*PolyatomicIon, bool) {
	i, ok := r.ionByKey[key]
	if !ok {
		return nil, false
	}
	return &r.ions[i], true
}

// IonByName returns the polyatomic ion with the given name or synonym.
// Matching is case-insensitive.
func (r *Registry) IonByName(name string) (*PolyatomicIon, bool) {
	i, ok := r.ionByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return &r.ions[i], true
}

// Ions returns all polyatomic ions sorted by key.
func (r *Registry) Ions() []PolyatomicIon {
	return append([]PolyatomicIon(nil), r.ions...)
}

// Ka returns the acid dissociation constant for a species key.
func (r *Registry) Ka(species string) (DissociationConstant, bool) {
	c, ok := r.ka[species]
	return c, ok
}

// Kb returns the base dissociation constant for a species key.
func (r *Registry) Kb(species string) (DissociationConstant, bool) {
	c, ok := r.kb[species]
	return c, ok
}

// MaxSymbolLen returns the length of the longest element symbol.
func (r *Registry) MaxSymbolLen() int {
	return r.maxSymLen
}

// LongestElementPrefix returns the longest element symbol that is a prefix
// of s. Candidate lengths are tried from the longest known symbol down, so
// "Mgo" matches Mg rather than stopping at an unknown three-letter token.
func (r *Registry) LongestElementPrefix(s string) (string, bool) {
	limit := r.maxSymLen
	if len(s) < limit {
		limit = len(s)
	}
	for l := limit; l >= 1; l-- {
		if _, ok := r.bySymbol[s[:l]]; ok {
			return s[:l], true
		}
	}
	return "", false
}

// TableSet returns the canonical raw form of the registry, suitable for
// serialization. The result is freshly allocated and fully normalized:
// charge lists are never nil and every mass carries an explicit mode.
func (r *Registry) TableSet() *TableSet {
	ts := &TableSet{
		Name:       r.name,
		Version:    r.version,
		Symbols:    make([]string, 0, len(r.elements)),
		Names:      make([]string, 0, len(r.elements)),
		Charges:    make([][]int, 0, len(r.elements)),
		Masses:     make(map[string]*MassValue, len(r.elements)),
		Polyatomic: make(map[string]IonEntry, len(r.ions)),
		Ka:         make(map[string]DissociationEntry, len(r.ka)),
		Kb:         make(map[string]DissociationEntry, len(r.kb)),
	}
	for _, el := range r.elements {
		ts.Symbols = append(ts.Symbols, el.Symbol)
		ts.Names = append(ts.Names, el.Name)
		ts.Charges = append(ts.Charges, append([]int{}, el.Charges...))
		if el.Mass != nil {
			m := *el.Mass
			ts.Masses[el.Symbol] = &m
		} else {
			ts.Masses[el.Symbol] = nil
		}
	}
	for _, ion := range r.ions {
		ts.Polyatomic[ion.Key] = IonEntry{
			Charge: ion.Charge,
			Names:  append([]string(nil), ion.Names...),
		}
	}
	for species, c := range r.ka {
		ts.Ka[species] = c.Entry()
	}
	for species, c := range r.kb {
		ts.Kb[species] = c.Entry()
	}
	return ts
}
