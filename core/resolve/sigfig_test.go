package resolve

import (
	"testing"

	"github.com/sxyu/cantus-chem/core/chemdata"
)

// sig builds a significant-figure mass value.
func sig(value float64, figs int) chemdata.MassValue {
	return chemdata.MassValue{Value: value, SigFigs: figs, Mode: chemdata.PrecisionSigFig}
}

// raw builds an exact mass value.
func raw(value float64) chemdata.MassValue {
	return chemdata.MassValue{Value: value, Mode: chemdata.PrecisionRaw}
}

// TestMassAccumulatorSigFigs tests that the coarsest contributor bounds
// the sum's precision while counts stay exact.
func TestMassAccumulatorSigFigs(t *testing.T) {
	type contribution struct {
		mass  chemdata.MassValue
		count int
	}

	tests := []struct {
		name        string
		adds        []contribution
		wantSigFigs int
		wantString  string
	}{
		{
			name:        "water",
			adds:        []contribution{{sig(1.008, 4), 2}, {sig(16.00, 4), 1}},
			wantSigFigs: 4,
			wantString:  "18.02",
		},
		{
			name:        "single entry keeps its figures",
			adds:        []contribution{{sig(12.011, 5), 1}},
			wantSigFigs: 5,
			wantString:  "12.011",
		},
		{
			name:        "count multiplies without losing precision",
			adds:        []contribution{{sig(1.008, 4), 2}},
			wantSigFigs: 4,
			wantString:  "2.016",
		},
		{
			name:        "coarser digit bound wins",
			adds:        []contribution{{sig(1.008, 4), 1}, {sig(100.0, 4), 1}},
			wantSigFigs: 4,
			wantString:  "101.0",
		},
		{
			name:        "raw contributor defers to the sig-fig bound",
			adds:        []contribution{{raw(1.5), 1}, {sig(16.00, 4), 1}},
			wantSigFigs: 4,
			wantString:  "17.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var acc massAccumulator
			for _, c := range tt.adds {
				acc.add(c.mass, c.count)
			}
			got := acc.value()
			if got.Mode != chemdata.PrecisionSigFig {
				t.Fatalf("mode mismatch: got %s, want %s", got.Mode, chemdata.PrecisionSigFig)
			}
			if got.SigFigs != tt.wantSigFigs {
				t.Errorf("sig figs mismatch: got %d, want %d", got.SigFigs, tt.wantSigFigs)
			}
			if s := got.String(); s != tt.wantString {
				t.Errorf("string mismatch: got %s, want %s", s, tt.wantString)
			}
		})
	}
}

// TestMassAccumulatorRaw tests that a sum of raw values stays raw.
func TestMassAccumulatorRaw(t *testing.T) {
	var acc massAccumulator
	acc.add(raw(1.5), 2)
	acc.add(raw(12), 1)

	got := acc.value()
	if got.Mode != chemdata.PrecisionRaw {
		t.Errorf("mode mismatch: got %s, want %s", got.Mode, chemdata.PrecisionRaw)
	}
	if got.SigFigs != 0 {
		t.Errorf("sig figs mismatch: got %d, want 0", got.SigFigs)
	}
	if got.Value != 15 {
		t.Errorf("value mismatch: got %v, want 15", got.Value)
	}
}
