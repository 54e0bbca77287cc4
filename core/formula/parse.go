package formula

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// formulaGrammar is the participle grammar for chemical formulas.
// Examples: "H2O", "Al2(SO4)3", "K3[Fe(CN)6]", "CuSO4·5H2O"
//
type formulaGrammar struct {
	Segments []*segmentPart `parser:"@@ ( ( \"·\" | \".\" | \"*\" ) @@ )*"`
}

type segmentPart struct {
	Coefficient *int        `parser:"@Int?"`
	Units       []*unitPart `parser:"@@+"`
}

type unitPart struct {
	Symbol string     `parser:"( @Symbol"`
	Group  *groupPart `parser:"| @@ )"`
	Count  *int       `parser:"@Int?"`
}

type groupPart struct {
	Open  string      `parser:"@( \"(\" | \"[\" )"`
	Units []*unitPart `parser:"@@+"`
	Close string      `parser:"@( \")\" | \"]\" )"`
}

// formulaLexer defines the lexer for chemical formulas.
// Note: Symbol greedily takes an uppercase letter plus any trailing
// lowercase letters; splitting unknown runs like "Mgo" against the element
// table happens at resolve time, not here.
var formulaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Symbol", Pattern: `[A-Z][a-z]*`},
	{Name: "Int", Pattern: `-?[0-9]+`},
	{Name: "Bracket", Pattern: `[()\[\]]`},
	{Name: "Dot", Pattern: `[·.*]`}, // hydrate separators
	{Name: "Whitespace", Pattern: `\s+`},
})

// formulaParser is the participle parser for chemical formulas.
var formulaParser = participle.MustBuild[formulaGrammar](
	participle.Lexer(formulaLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a chemical formula string into a composition tree.
// Supported syntax:
//   - element tokens: an uppercase letter plus optional lowercase letters
//   - counts after a unit: "H2O", "C6H12O6"
//   - nested groups with counts: "Al2(SO4)3", "K3[Fe(CN)6]"
//   - hydrates: "CuSO4·5H2O" ("." and "*" also accepted as the separator)
func Parse(s string) (*Formula, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, newParseError(EmptyFormula, -1, "empty formula")
	}
	if perr := prescan(trimmed); perr != nil {
		return nil, perr
	}

	parsed, err := formulaParser.ParseString("", trimmed)
	if err != nil {
		// After the prescan the only token sequences the grammar can
		// still reject are numbers with nothing to multiply.
		return nil, &ParseError{
			Kind:    InvalidMultiplier,
			Offset:  -1,
			Message: fmt.Sprintf("multiplier without a unit in %q", trimmed),
			Err:     err,
		}
	}

	f := &Formula{Source: trimmed}
	for _, sp := range parsed.Segments {
		seg, perr := buildSegment(sp)
		if perr != nil {
			return nil, perr
		}
		f.Segments = append(f.Segments, seg)
	}
	return f, nil
}

func buildSegment(sp *segmentPart) (*Segment, *ParseError) {
	coeff := 1
	if sp.Coefficient != nil {
		coeff = *sp.Coefficient
	}
	if coeff < 1 {
		return nil, newParseError(InvalidMultiplier, -1,
			"leading coefficient must be at least 1, got %d", coeff)
	}
	seg := &Segment{Coefficient: coeff}
	for _, up := range sp.Units {
		node, perr := buildUnit(up)
		if perr != nil {
			return nil, perr
		}
		seg.Nodes = append(seg.Nodes, node)
	}
	return seg, nil
}

func buildUnit(up *unitPart) (*Node, *ParseError) {
	count := 1
	if up.Count != nil {
		count = *up.Count
	}
	if count < 1 {
		return nil, newParseError(InvalidMultiplier, -1,
			"multiplier must be at least 1, got %d", count)
	}
	if up.Group != nil {
		node := &Node{Count: count}
		for _, child := range up.Group.Units {
			cn, perr := buildUnit(child)
			if perr != nil {
				return nil, perr
			}
			node.Children = append(node.Children, cn)
		}
		return node, nil
	}
	return &Node{Symbol: up.Symbol, Count: count}, nil
}

// prescan walks the raw input once and reports character and bracket
// problems with exact byte offsets, which the grammar cannot do. It
// returns the first problem found in a left-to-right scan.
func prescan(s string) *ParseError {
	type open struct {
		r   rune
		off int
	}
	var stack []open
	prevSig := rune(0)
	prevSigOff := -1

	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			// formula alphabet
		case r == '(' || r == '[':
			stack = append(stack, open{r, i})
		case r == ')' || r == ']':
			if len(stack) == 0 {
				return newParseError(UnbalancedGroup, i, "unexpected %q", string(r))
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (top.r == '(' && r != ')') || (top.r == '[' && r != ']') {
				return newParseError(UnbalancedGroup, i,
					"%q closed by %q", string(top.r), string(r))
			}
			if prevSigOff == top.off {
				return newParseError(UnbalancedGroup, top.off, "empty group")
			}
		case r == '·' || r == '.' || r == '*':
			if len(stack) > 0 {
				return newParseError(IllegalCharacter, i,
					"hydrate separator inside a group")
			}
			if prevSigOff < 0 || prevSig == '·' || prevSig == '.' || prevSig == '*' {
				return newParseError(IllegalCharacter, i, "dangling hydrate separator")
			}
		case r == '-':
			if i+1 >= len(s) || s[i+1] < '0' || s[i+1] > '9' {
				return newParseError(IllegalCharacter, i, "misplaced %q", "-")
			}
		case unicode.IsSpace(r):
			continue
		default:
			return newParseError(IllegalCharacter, i, "illegal character %q", string(r))
		}
		prevSig, prevSigOff = r, i
	}

	if len(stack) > 0 {
		return newParseError(UnbalancedGroup, stack[0].off, "unclosed group")
	}
	if prevSig == '·' || prevSig == '.' || prevSig == '*' {
		return newParseError(IllegalCharacter, prevSigOff, "dangling hydrate separator")
	}
	return nil
}
