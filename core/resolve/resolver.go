package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sxyu/cantus-chem/core/chemdata"
	"github.com/sxyu/cantus-chem/core/formula"
)

const (
	// DefaultMaxChargeCandidates is the candidate cap applied when
	// Options.MaxChargeCandidates is zero.
	DefaultMaxChargeCandidates = 8

	// maxChargeExpansion bounds the cartesian expansion of per-element
	// charge choices before any deduplication.
	maxChargeExpansion = 4096
)

// Options controls how a formula is resolved.
type Options struct {
	// Ions enables polyatomic ion recognition: a whole segment or a
	// bracketed group whose flat composition matches an ion key is
	// recorded as that ion.
	Ions bool `json:"ions,omitempty"`

	// DecomposeIons additionally expands recognized ions into their
	// element counts, so ion recognition stops blocking the mass total.
	// Only meaningful with Ions.
	DecomposeIons bool `json:"decompose_ions,omitempty"`

	// ChargeHints pins an element symbol to a single ionic charge,
	// overriding its tabulated candidate list.
	ChargeHints map[string]int `json:"charge_hints,omitempty"`

	// MaxChargeCandidates caps the reported net-charge candidates.
	// Zero means DefaultMaxChargeCandidates.
	MaxChargeCandidates int `json:"max_charge_candidates,omitempty"`
}

// Resolver resolves formulas against one reference table registry. It is
// stateless beyond the registry and safe for concurrent use.
type Resolver struct {
	reg *chemdata.Registry
}

// New returns a resolver backed by the given registry.
func New(reg *chemdata.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Registry returns the registry the resolver reads from.
func (r *Resolver) Registry() *chemdata.Registry {
	return r.reg
}

// Resolve parses and resolves a formula string. Syntax errors are fatal
// and return a *formula.ParseError; everything past parsing degrades into
// warnings on the result.
func (r *Resolver) Resolve(text string, opts Options) (*Result, error) {
	f, err := formula.Parse(text)
	if err != nil {
		return nil, err
	}
	return r.ResolveFormula(f, opts), nil
}

// ResolveFormula resolves an already-parsed formula. It never fails:
// unknown symbols, undefined masses, and missing charge data are reported
// as warnings on a partial result.
func (r *Resolver) ResolveFormula(f *formula.Formula, opts Options) *Result {
	res := &Result{Formula: f.Source}
	c := newComposition()
	for _, seg := range f.Segments {
		r.walkSegment(c, seg, opts)
	}
	res.Elements = c.all.counts
	res.Ions = c.ions
	res.Unresolved = c.unresolved
	for _, frag := range c.unresolved {
		res.addWarning(WarnUnresolvedSymbol, frag,
			fmt.Sprintf("symbol %q matches no element", frag))
	}

	r.deriveMass(res, opts)
	r.deriveCharge(res, f, c, opts)
	res.Acidity = strengthOf(r.reg.Ka(f.Source))
	res.Basicity = strengthOf(r.reg.Kb(f.Source))
	return res
}

// Strength classifies a species key against the Ka and Kb tables without
// resolving its composition.
func (r *Resolver) Strength(species string) (acidity, basicity StrengthInfo) {
	species = strings.TrimSpace(species)
	return strengthOf(r.reg.Ka(species)), strengthOf(r.reg.Kb(species))
}

// strengthOf folds a table lookup into a strength classification.
func strengthOf(c chemdata.DissociationConstant, ok bool) StrengthInfo {
	if !ok {
		return StrengthInfo{Strength: StrengthUnknown}
	}
	switch c.Strength {
	case chemdata.DissociationComplete:
		return StrengthInfo{Strength: StrengthStrong}
	case chemdata.DissociationNegligible:
		return StrengthInfo{Strength: StrengthNegligible}
	default:
		v := c.Value
		return StrengthInfo{Strength: StrengthWeak, Constant: &v}
	}
}

// elementTally accumulates per-element counts in first-seen order.
type elementTally struct {
	counts []ElementCount
	idx    map[string]int
}

func (t *elementTally) add(symbol string, count int) {
	if t.idx == nil {
		t.idx = make(map[string]int)
	}
	if i, ok := t.idx[symbol]; ok {
		t.counts[i].Count += count
		return
	}
	t.idx[symbol] = len(t.counts)
	t.counts = append(t.counts, ElementCount{Symbol: symbol, Count: count})
}

// composition accumulates counts during the tree walk, preserving
// first-seen order for elements, ions, and unresolved fragments. Atoms
// inside recognized ions are spoken for by the ion's fixed charge, so they
// land in all but not in free; net-charge enumeration reads free.
type composition struct {
	all  elementTally
	free elementTally

	ions   []IonCount
	ionIdx map[string]int

	unresolved     []string
	unresolvedSeen map[string]bool
}

func newComposition() *composition {
	return &composition{
		ionIdx:         make(map[string]int),
		unresolvedSeen: make(map[string]bool),
	}
}

func (c *composition) addElement(symbol string, count int, inIon bool) {
	c.all.add(symbol, count)
	if !inIon {
		c.free.add(symbol, count)
	}
}

func (c *composition) addIon(ion *chemdata.PolyatomicIon, count int) {
	if i, ok := c.ionIdx[ion.Key]; ok {
		c.ions[i].Count += count
		return
	}
	c.ionIdx[ion.Key] = len(c.ions)
	c.ions = append(c.ions, IonCount{Key: ion.Key, Count: count, Charge: ion.Charge})
}

func (c *composition) addUnresolved(frag string) {
	if c.unresolvedSeen[frag] {
		return
	}
	c.unresolvedSeen[frag] = true
	c.unresolved = append(c.unresolved, frag)
}

// walkSegment resolves one dot-separated segment. With ion recognition on,
// a segment whose flat composition matches an ion key counts as that ion;
// ion keys never contain brackets, so a matched segment holds only leaves
// and decomposing it cannot re-match.
func (r *Resolver) walkSegment(c *composition, seg *formula.Segment, opts Options) {
	if opts.Ions {
		if ion, ok := r.reg.Ion(seg.Key()); ok {
			c.addIon(ion, seg.Coefficient)
			if !opts.DecomposeIons {
				return
			}
			for _, n := range seg.Nodes {
				r.walkNode(c, n, seg.Coefficient, true, opts)
			}
			return
		}
	}
	for _, n := range seg.Nodes {
		r.walkNode(c, n, seg.Coefficient, false, opts)
	}
}

// walkNode resolves one unit under an accumulated multiplier. inIon marks
// units inside a recognized ion being decomposed.
func (r *Resolver) walkNode(c *composition, n *formula.Node, mult int, inIon bool, opts Options) {
	if !n.IsGroup() {
		r.resolveLeaf(c, n, mult, inIon)
		return
	}
	if opts.Ions && !inIon {
		if ion, ok := r.reg.Ion(n.Key()); ok {
			c.addIon(ion, n.Count*mult)
			if !opts.DecomposeIons {
				return
			}
			inIon = true
		}
	}
	for _, child := range n.Children {
		r.walkNode(c, child, n.Count*mult, inIon, opts)
	}
}

// resolveLeaf resolves one symbol token. A token that is not itself an
// element is split on its longest element prefix: "Mgo" is Mg plus a
// lowercase tail that can never start another symbol, so the tail becomes
// a single unresolved fragment and the written count stays with it.
func (r *Resolver) resolveLeaf(c *composition, n *formula.Node, mult int, inIon bool) {
	if _, ok := r.reg.Element(n.Symbol); ok {
		c.addElement(n.Symbol, n.Count*mult, inIon)
		return
	}
	if prefix, ok := r.reg.LongestElementPrefix(n.Symbol); ok {
		c.addElement(prefix, mult, inIon)
		c.addUnresolved(n.Symbol[len(prefix):])
		return
	}
	c.addUnresolved(n.Symbol)
}

// deriveMass fills Result.Mass when every contributor has a tabulated
// mass. Unresolved fragments, mass-less elements, and opaque ions each
// block the total with a warning instead.
func (r *Resolver) deriveMass(res *Result, opts Options) {
	blocked := len(res.Unresolved) > 0
	for _, ec := range res.Elements {
		el, _ := r.reg.Element(ec.Symbol)
		if el.Mass == nil {
			res.UndefinedMass = true
			blocked = true
			res.addWarning(WarnUndefinedMass, ec.Symbol,
				fmt.Sprintf("element %s has no tabulated mass", ec.Symbol))
		}
	}
	if opts.Ions && !opts.DecomposeIons {
		for _, ion := range res.Ions {
			blocked = true
			res.addWarning(WarnOpaqueIonMass, ion.Key,
				fmt.Sprintf("ion %s carries no tabulated mass; resolve with ion decomposition for a total", ion.Key))
		}
	}
	if blocked || len(res.Elements) == 0 {
		return
	}
	var acc massAccumulator
	for _, ec := range res.Elements {
		el, _ := r.reg.Element(ec.Symbol)
		acc.add(*el.Mass, ec.Count)
	}
	m := acc.value()
	res.Mass = &m
}

// deriveCharge fills Result.Charge. Without ion recognition only a bare
// single-element formula makes a net-charge claim (its tabulated candidate
// charges); with ion recognition the candidates are cartesian sums of
// per-element choices plus the fixed ion charges.
func (r *Resolver) deriveCharge(res *Result, f *formula.Formula, c *composition, opts Options) {
	if opts.Ions {
		r.chargeFromComposition(res, c, opts)
		return
	}
	if len(f.Segments) != 1 {
		return
	}
	seg := f.Segments[0]
	if seg.Coefficient != 1 || len(seg.Nodes) != 1 {
		return
	}
	n := seg.Nodes[0]
	if n.IsGroup() || n.Count != 1 {
		return
	}
	el, ok := r.reg.Element(n.Symbol)
	if !ok {
		return
	}
	cands := r.elementCharges(el, opts)
	if len(cands) == 0 {
		res.addWarning(WarnNoChargeData, el.Symbol,
			fmt.Sprintf("element %s lists no common ionic charge", el.Symbol))
		return
	}
	res.Charge = &ChargeSet{Candidates: cands}
}

// chargeFromComposition enumerates net-charge candidates from the fixed
// ion charges and the candidate charges of each free element.
func (r *Resolver) chargeFromComposition(res *Result, c *composition, opts Options) {
	if len(res.Unresolved) > 0 {
		return
	}
	if len(c.free.counts) == 0 && len(res.Ions) == 0 {
		return
	}

	base := 0
	for _, ion := range res.Ions {
		base += ion.Count * ion.Charge
	}
	sums := []int{base}
	for _, ec := range c.free.counts {
		el, _ := r.reg.Element(ec.Symbol)
		cands := r.elementCharges(el, opts)
		if len(cands) == 0 {
			res.addWarning(WarnNoChargeData, ec.Symbol,
				fmt.Sprintf("element %s lists no common ionic charge", ec.Symbol))
			return
		}
		if len(sums)*len(cands) > maxChargeExpansion {
			res.addWarning(WarnChargeTruncated, ec.Symbol,
				"too many charge combinations to enumerate")
			return
		}
		next := make([]int, 0, len(sums)*len(cands))
		for _, s := range sums {
			for _, ch := range cands {
				next = append(next, s+ec.Count*ch)
			}
		}
		sums = next
	}

	cands := dedupeSorted(sums)
	set := &ChargeSet{Candidates: cands}
	limit := opts.MaxChargeCandidates
	if limit <= 0 {
		limit = DefaultMaxChargeCandidates
	}
	if len(cands) > limit {
		set.Candidates = trimByMagnitude(cands, limit)
		set.Truncated = true
		res.addWarning(WarnChargeTruncated, "",
			fmt.Sprintf("%d charge candidates trimmed to %d", len(cands), limit))
	}
	res.Charge = set
}

// elementCharges returns the candidate charges for one element, ascending
// and deduplicated. A charge hint replaces the tabulated list.
func (r *Resolver) elementCharges(el *chemdata.Element, opts Options) []int {
	if hint, ok := opts.ChargeHints[el.Symbol]; ok {
		return []int{hint}
	}
	return dedupeSorted(el.Charges)
}

// dedupeSorted returns the distinct values of vs in ascending order.
func dedupeSorted(vs []int) []int {
	if len(vs) == 0 {
		return nil
	}
	out := append([]int(nil), vs...)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// trimByMagnitude keeps the limit candidates closest to zero, negative
// before positive on equal magnitude, returned ascending.
func trimByMagnitude(cands []int, limit int) []int {
	byMag := append([]int(nil), cands...)
	sort.Slice(byMag, func(i, j int) bool {
		ai, aj := byMag[i], byMag[j]
		if ai < 0 {
			ai = -ai
		}
		if aj < 0 {
			aj = -aj
		}
		if ai != aj {
			return ai < aj
		}
		return byMag[i] < byMag[j]
	})
	kept := byMag[:limit]
	sort.Ints(kept)
	return kept
}
