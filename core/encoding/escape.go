// Package encoding provides text escaping for the XML documents the
// dataset loaders read and write.
package encoding

import "strings"

// Single-pass replacers; sequential ReplaceAll would re-scan its own
// output.
var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// EscapeXMLText escapes the XML entities that may appear in element
// text.
func EscapeXMLText(s string) string {
	return textEscaper.Replace(s)
}

// EscapeXMLAttr escapes text for a double-quoted XML attribute.
func EscapeXMLAttr(s string) string {
	return attrEscaper.Replace(s)
}
