package widget

import (
	"html/template"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var allowedTextTags = map[atom.Atom]bool{
	atom.A:      true,
	atom.B:      true,
	atom.Br:     true,
	atom.Em:     true,
	atom.I:      true,
	atom.Span:   true,
	atom.Strong: true,
}

var droppedTextTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Noscript: true,
	atom.Template: true,
}

// SanitizeText keeps the inline markup a prompt label may carry, typically a
// link to a privacy policy, and escapes everything else.
func SanitizeText(s string) template.HTML {
	if s == "" {
		return ""
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
	})
	if err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}

	var b strings.Builder
	for _, n := range nodes {
		writeSanitized(&b, n)
	}
	return template.HTML(b.String())
}

func writeSanitized(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
	case html.ElementNode:
		if droppedTextTags[n.DataAtom] {
			return
		}
		if !allowedTextTags[n.DataAtom] {
			writeChildren(b, n)
			return
		}

		b.WriteString("<" + n.Data)
		if n.DataAtom == atom.A {
			writeLinkAttributes(b, n)
		}
		b.WriteString(">")
		if n.DataAtom == atom.Br {
			return
		}
		writeChildren(b, n)
		b.WriteString("</" + n.Data + ">")
	}
}

func writeChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeSanitized(b, c)
	}
}

func writeLinkAttributes(b *strings.Builder, n *html.Node) {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "href":
			if safeHref(attr.Val) {
				b.WriteString(` href="` + html.EscapeString(attr.Val) + `"`)
			}
		case "target":
			if attr.Val == "_blank" || attr.Val == "_self" {
				b.WriteString(` target="` + attr.Val + `"`)
			}
		}
	}
	b.WriteString(` rel="noopener noreferrer"`)
}

func safeHref(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	default:
		return false
	}
}
