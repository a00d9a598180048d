package document

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
}

// block elements separate the text on either side of them.
var block = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Td: true, atom.Th: true, atom.Title: true,
	atom.Tr: true, atom.Ul: true, atom.Option: true,
}

// ExtractText returns the visible text of an HTML document: the text of
// <body> (or the whole tree when there is none) with script-like elements
// removed and whitespace runs collapsed to single spaces.
func ExtractText(r io.Reader) (string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	start := findBody(root)
	if start == nil {
		start = root
	}

	var sb strings.Builder
	w := &textWriter{sb: &sb}
	collect(start, w)
	return strings.TrimSpace(sb.String()), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// collect walks the tree iteratively; deeply nested markup must not exhaust
// the goroutine stack.
func collect(start *html.Node, w *textWriter) {
	type frame struct {
		n     *html.Node
		leave bool
	}
	stack := []frame{{n: start}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.n

		if f.leave {
			w.space()
			continue
		}
		switch n.Type {
		case html.TextNode:
			w.text(n.Data)
			continue
		case html.ElementNode:
			if skipped[n.DataAtom] {
				continue
			}
			if block[n.DataAtom] {
				w.space()
				stack = append(stack, frame{n: n, leave: true})
			}
		case html.CommentNode, html.DoctypeNode:
			continue
		}
		// Push children in reverse so the first child is visited first.
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, frame{n: c})
		}
	}
}

// textWriter appends text, collapsing whitespace.
type textWriter struct {
	sb      *strings.Builder
	pending bool
}

func (w *textWriter) space() {
	if w.sb.Len() > 0 {
		w.pending = true
	}
}

func (w *textWriter) text(s string) {
	for _, r := range s {
		if unicode.IsSpace(r) {
			w.space()
			continue
		}
		if w.pending {
			w.sb.WriteByte(' ')
			w.pending = false
		}
		w.sb.WriteRune(r)
	}
}
