// Package xml reads, checks, and pretty-prints the periodic-table XML
// documents the dataset loaders exchange. Queries run through XPath via
// the xmlquery library.
//
// Entity expansion is disabled during validation and external entities
// are never fetched. Dataset documents do not use namespace prefixes.
package xml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/sxyu/cantus-chem/core/encoding"
)

// Document is a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node is one element of a parsed document.
type Node struct {
	node *xmlquery.Node
}

// ValidationResult reports whether a document is well-formed XML.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError is a single well-formedness failure. Line is zero
// when the decoder could not attribute the failure to a position.
type ValidationError struct {
	Line    int
	Message string
}

// FormatOptions controls pretty-printing. An empty Indent selects two
// spaces.
type FormatOptions struct {
	Indent string
}

// Parse parses XML data into a queryable Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Validate checks that data is well-formed XML. Entity expansion is
// disabled, so documents that rely on custom entities fail here rather
// than expanding unbounded.
func Validate(data []byte) ValidationResult {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}

	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return ValidationResult{Valid: true}
		}
		if err != nil {
			ve := ValidationError{Message: err.Error()}
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				ve.Line = syn.Line
			}
			return ValidationResult{Errors: []ValidationError{ve}}
		}
	}
}

// Format pretty-prints XML data with one element per line.
func Format(data []byte, opts FormatOptions) ([]byte, error) {
	if opts.Indent == "" {
		opts.Indent = "  "
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for child := doc.root.FirstChild; child != nil; child = child.NextSibling {
		formatNode(&buf, child, 0, opts.Indent)
	}
	return buf.Bytes(), nil
}

func formatNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	switch n.Type {
	case xmlquery.DeclarationNode:
		w.WriteString("<?xml")
		for _, attr := range n.Attr {
			fmt.Fprintf(w, " %s=\"%s\"", attr.Name.Local, encoding.EscapeXMLAttr(attr.Value))
		}
		w.WriteString("?>\n")

	case xmlquery.ElementNode:
		formatElement(w, n, depth, indent)

	case xmlquery.CommentNode:
		writeIndent(w, depth, indent)
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->\n")
	}
}

func formatElement(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	writeIndent(w, depth, indent)
	w.WriteString("<")
	w.WriteString(n.Data)
	for _, attr := range n.Attr {
		fmt.Fprintf(w, " %s=\"%s\"", attr.Name.Local, encoding.EscapeXMLAttr(attr.Value))
	}

	text, hasElements := elementContent(n)
	if !hasElements && text == "" {
		w.WriteString("/>\n")
		return
	}
	w.WriteString(">")

	if !hasElements {
		// Leaf with text only: keep it on one line.
		w.WriteString(encoding.EscapeXMLText(text))
		fmt.Fprintf(w, "</%s>\n", n.Data)
		return
	}

	w.WriteString("\n")
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode, xmlquery.CommentNode:
			formatNode(w, child, depth+1, indent)
		case xmlquery.TextNode:
			if t := strings.TrimSpace(child.Data); t != "" {
				writeIndent(w, depth+1, indent)
				w.WriteString(encoding.EscapeXMLText(t))
				w.WriteString("\n")
			}
		}
	}
	writeIndent(w, depth, indent)
	fmt.Fprintf(w, "</%s>\n", n.Data)
}

// elementContent reports the trimmed text of n and whether n has any
// element children.
func elementContent(n *xmlquery.Node) (text string, hasElements bool) {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode:
			hasElements = true
		case xmlquery.TextNode:
			b.WriteString(child.Data)
		}
	}
	return strings.TrimSpace(b.String()), hasElements
}

func writeIndent(w *bytes.Buffer, depth int, indent string) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}

// XPath returns all nodes matching the expression.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}

	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

// XPathFirst returns the first node matching the expression, or nil
// when nothing matches.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	node, err := xmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// Name returns the element name.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the text content of the node and its descendants.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Attr returns the value of the named attribute, or "" when absent.
func (n *Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}

// Children returns the element children of the node.
func (n *Node) Children() []*Node {
	if n.node == nil {
		return nil
	}

	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}
