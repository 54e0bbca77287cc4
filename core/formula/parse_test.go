package formula

import (
	"testing"

	"github.com/sxyu/cantus-chem/core/errors"
)

func TestParseSimple(t *testing.T) {
	f, err := Parse("H2O")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Source != "H2O" {
		t.Errorf("Source = %q, want H2O", f.Source)
	}
	if len(f.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(f.Segments))
	}
	seg := f.Segments[0]
	if seg.Coefficient != 1 {
		t.Errorf("Coefficient = %d, want 1", seg.Coefficient)
	}
	if len(seg.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(seg.Nodes))
	}
	if seg.Nodes[0].Symbol != "H" || seg.Nodes[0].Count != 2 {
		t.Errorf("node 0 = %s x%d, want H x2", seg.Nodes[0].Symbol, seg.Nodes[0].Count)
	}
	if seg.Nodes[1].Symbol != "O" || seg.Nodes[1].Count != 1 {
		t.Errorf("node 1 = %s x%d, want O x1", seg.Nodes[1].Symbol, seg.Nodes[1].Count)
	}
}

func TestParseGroup(t *testing.T) {
	f, err := Parse("Al2(SO4)3")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	seg := f.Segments[0]
	if len(seg.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(seg.Nodes))
	}
	al := seg.Nodes[0]
	if al.Symbol != "Al" || al.Count != 2 || al.IsGroup() {
		t.Errorf("node 0 = %+v, want leaf Al x2", al)
	}
	grp := seg.Nodes[1]
	if !grp.IsGroup() || grp.Count != 3 {
		t.Fatalf("node 1 = %+v, want group x3", grp)
	}
	if got := grp.Key(); got != "SO4" {
		t.Errorf("group Key() = %q, want SO4", got)
	}
	if len(grp.Children) != 2 {
		t.Fatalf("group has %d children, want 2", len(grp.Children))
	}
	if grp.Children[0].Symbol != "S" || grp.Children[0].Count != 1 {
		t.Errorf("child 0 = %+v, want S x1", grp.Children[0])
	}
	if grp.Children[1].Symbol != "O" || grp.Children[1].Count != 4 {
		t.Errorf("child 1 = %+v, want O x4", grp.Children[1])
	}
}

func TestParseNestedBrackets(t *testing.T) {
	f, err := Parse("K3[Fe(CN)6]")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	seg := f.Segments[0]
	if len(seg.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(seg.Nodes))
	}
	outer := seg.Nodes[1]
	if !outer.IsGroup() || outer.Count != 1 {
		t.Fatalf("outer group = %+v, want group x1", outer)
	}
	if len(outer.Children) != 2 {
		t.Fatalf("outer group has %d children, want 2", len(outer.Children))
	}
	inner := outer.Children[1]
	if !inner.IsGroup() || inner.Count != 6 {
		t.Errorf("inner group = %+v, want group x6", inner)
	}
	if got := inner.Key(); got != "CN" {
		t.Errorf("inner Key() = %q, want CN", got)
	}
	if got := outer.Key(); got != "Fe(CN)6" {
		t.Errorf("outer Key() = %q, want Fe(CN)6", got)
	}
}

func TestParseDeepNesting(t *testing.T) {
	f, err := Parse("((H2O)2)3")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	outer := f.Segments[0].Nodes[0]
	if !outer.IsGroup() || outer.Count != 3 {
		t.Fatalf("outer = %+v, want group x3", outer)
	}
	inner := outer.Children[0]
	if !inner.IsGroup() || inner.Count != 2 {
		t.Fatalf("inner = %+v, want group x2", inner)
	}
	if inner.Children[0].Symbol != "H" || inner.Children[0].Count != 2 {
		t.Errorf("leaf = %+v, want H x2", inner.Children[0])
	}
}

func TestParseHydrate(t *testing.T) {
	for _, src := range []string{"CuSO4·5H2O", "CuSO4.5H2O", "CuSO4*5H2O"} {
		t.Run(src, func(t *testing.T) {
			f, err := Parse(src)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", src, err)
			}
			if len(f.Segments) != 2 {
				t.Fatalf("got %d segments, want 2", len(f.Segments))
			}
			if f.Segments[0].Coefficient != 1 {
				t.Errorf("segment 0 coefficient = %d, want 1", f.Segments[0].Coefficient)
			}
			if got := f.Segments[0].Key(); got != "CuSO4" {
				t.Errorf("segment 0 Key() = %q, want CuSO4", got)
			}
			if f.Segments[1].Coefficient != 5 {
				t.Errorf("segment 1 coefficient = %d, want 5", f.Segments[1].Coefficient)
			}
			if got := f.Segments[1].Key(); got != "H2O" {
				t.Errorf("segment 1 Key() = %q, want H2O", got)
			}
		})
	}
}

func TestParseLeadingCoefficient(t *testing.T) {
	f, err := Parse("2H2O")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Segments) != 1 || f.Segments[0].Coefficient != 2 {
		t.Errorf("got %+v, want one segment with coefficient 2", f.Segments)
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	f, err := Parse("  H2O\t")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Source != "H2O" {
		t.Errorf("Source = %q, want H2O", f.Source)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		in   string
		kind ErrorKind
	}{
		{"", EmptyFormula},
		{"   ", EmptyFormula},
		{"(", UnbalancedGroup},
		{"(H2O", UnbalancedGroup},
		{"H2O)", UnbalancedGroup},
		{"(H2O]", UnbalancedGroup},
		{"()", UnbalancedGroup},
		{"K3[Fe(CN)6", UnbalancedGroup},
		{"H2O!", IllegalCharacter},
		{"H₂O", IllegalCharacter},
		{"H2O·", IllegalCharacter},
		{"·H2O", IllegalCharacter},
		{"H2O··H2O", IllegalCharacter},
		{"Ca(·)", IllegalCharacter},
		{"H-", IllegalCharacter},
		{"H0", InvalidMultiplier},
		{"H-2", InvalidMultiplier},
		{"-2H2O", InvalidMultiplier},
		{"2", InvalidMultiplier},
		{"H2O·5", InvalidMultiplier},
		{"(2)", InvalidMultiplier},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := Parse(tt.in)
			if err == nil {
				t.Fatalf("Parse(%q) error = nil, want %s", tt.in, tt.kind)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse(%q) error = %T, want *ParseError", tt.in, err)
			}
			if perr.Kind != tt.kind {
				t.Errorf("Parse(%q) kind = %s, want %s", tt.in, perr.Kind, tt.kind)
			}
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Parse(%q) does not unwrap to ErrInvalidInput", tt.in)
			}
		})
	}
}

func TestParseErrorOffsets(t *testing.T) {
	tests := []struct {
		in     string
		offset int
	}{
		{"(", 0},
		{"H2O)", 3},
		{"H2O!", 3},
		{"(H2O", 0},
		{"H2O·", 3},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := Parse(tt.in)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse(%q) error = %v, want *ParseError", tt.in, err)
			}
			if perr.Offset != tt.offset {
				t.Errorf("Parse(%q) offset = %d, want %d", tt.in, perr.Offset, tt.offset)
			}
		})
	}
}

func TestSegmentKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Na2SO4", "Na2SO4"},
		{"SO4", "SO4"},
		{"CH3COOH", "CH3COOH"},
		{"(CH3)2NH", "(CH3)2NH"},
		{"K3[Fe(CN)6]", "K3(Fe(CN)6)"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if got := f.Segments[0].Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnknownTokensParse(t *testing.T) {
	// Unknown runs stay single tokens; the resolver splits them against
	// the element table later.
	f, err := Parse("Mgo")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	nodes := f.Segments[0].Nodes
	if len(nodes) != 1 || nodes[0].Symbol != "Mgo" {
		t.Errorf("nodes = %+v, want single leaf Mgo", nodes)
	}

	f, err = Parse("Xx2")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	nodes = f.Segments[0].Nodes
	if len(nodes) != 1 || nodes[0].Symbol != "Xx" || nodes[0].Count != 2 {
		t.Errorf("nodes = %+v, want single leaf Xx x2", nodes)
	}
}

func TestParseErrorMessage(t *testing.T) {
	_, err := Parse("H2O)")
	if err == nil {
		t.Fatal("Parse() error = nil")
	}
	want := `invalid formula at offset 3: unexpected ")"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
