package resolve

import (
	"math"

	"github.com/sxyu/cantus-chem/core/chemdata"
)

// massAccumulator sums mass contributions while tracking the precision
// bound of the sum. Atom counts are exact integers, so each contributor's
// rounding step is its tabulated least significant digit; the contributor
// with the coarsest step (largest least digit) bounds the result. 2×1.008
// (least digit -3) plus 16.00 (least digit -2) yields 18.016 bounded at
// -2: four significant figures, printed 18.02.
type massAccumulator struct {
	total      float64
	leastDigit int
	bounded    bool
}

// add accumulates count units of the given mass.
func (a *massAccumulator) add(m chemdata.MassValue, count int) {
	a.total += m.Value * float64(count)
	if ld, ok := m.LeastDigit(); ok {
		if !a.bounded || ld > a.leastDigit {
			a.leastDigit = ld
		}
		a.bounded = true
	}
}

// value returns the accumulated mass. A sum with no significant-figure
// contributor stays raw; otherwise the significant-figure count follows
// from the sum's magnitude and the tracked digit bound.
func (a *massAccumulator) value() chemdata.MassValue {
	if !a.bounded {
		return chemdata.MassValue{Value: a.total, Mode: chemdata.PrecisionRaw}
	}
	sig := 1
	if a.total != 0 {
		order := int(math.Floor(math.Log10(math.Abs(a.total))))
		if n := order - a.leastDigit + 1; n > sig {
			sig = n
		}
	}
	return chemdata.MassValue{
		Value:   a.total,
		SigFigs: sig,
		Mode:    chemdata.PrecisionSigFig,
	}
}
