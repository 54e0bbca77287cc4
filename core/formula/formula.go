// Package formula parses chemical formula strings into composition trees.
// Parsing is purely syntactic: tokens are not checked against any element
// table, so the same tree can be resolved against different table sets.
package formula

import (
	"strconv"
	"strings"
)

// Node is one unit of a parsed formula: either a leaf symbol token with a
// count, or a bracketed group of child units with a count.
type Node struct {
	// Symbol is the leaf token text (e.g. "H", "Cl", "Mgo"). Empty for
	// groups.
	Symbol string `json:"symbol,omitempty"`

	// Children holds the units inside a bracketed group, in source order.
	// Empty for leaves.
	Children []*Node `json:"children,omitempty"`

	// Count is the multiplier written after the unit (implicit 1).
	// Always at least 1.
	Count int `json:"count"`
}

// Segment is a dot-separated part of a formula with its leading
// coefficient: "CuSO4·5H2O" has segments CuSO4 (coefficient 1) and H2O
// (coefficient 5).
type Segment struct {
	// Coefficient is the leading multiplier (implicit 1). Always at
	// least 1.
	Coefficient int `json:"coefficient"`

	// Nodes holds the segment's units in source order.
	Nodes []*Node `json:"nodes"`
}

// Formula is a parsed chemical formula.
type Formula struct {
	// Source is the trimmed input text the formula was parsed from.
	Source string `json:"source"`

	// Segments holds the hydrate-dot separated parts, at least one.
	Segments []*Segment `json:"segments"`
}

// IsGroup reports whether the node is a bracketed group.
func (n *Node) IsGroup() bool {
	return len(n.Children) > 0
}

// Key returns the node's composition written flat, without the node's own
// count: the group in "Al2(SO4)3" has key "SO4". Nested groups keep their
// brackets, so "(CH3)2NH" is its own key. Keys are what polyatomic ion
// tables index by.
func (n *Node) Key() string {
	var sb strings.Builder
	if n.IsGroup() {
		for _, c := range n.Children {
			c.writeKey(&sb)
		}
	} else {
		sb.WriteString(n.Symbol)
	}
	return sb.String()
}

// writeKey renders the node in child position, including its count.
func (n *Node) writeKey(sb *strings.Builder) {
	if n.IsGroup() {
		sb.WriteByte('(')
		for _, c := range n.Children {
			c.writeKey(sb)
		}
		sb.WriteByte(')')
	} else {
		sb.WriteString(n.Symbol)
	}
	if n.Count > 1 {
		sb.WriteString(strconv.Itoa(n.Count))
	}
}

// Key returns the segment's composition written flat, without the leading
// coefficient: "Na2SO4" for the first segment of "Na2SO4·10H2O".
func (s *Segment) Key() string {
	var sb strings.Builder
	for _, n := range s.Nodes {
		n.writeKey(&sb)
	}
	return sb.String()
}

// String returns the trimmed source text.
func (f *Formula) String() string {
	return f.Source
}
