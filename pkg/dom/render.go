package dom

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/vango-dev/cadview/internal/errors"
)

// voidElements have no closing tag. Their text and children are never
// rendered.
var voidElements = map[string]bool{
	"br":    true,
	"hr":    true,
	"img":   true,
	"meta":  true,
	"link":  true,
	"input": true,
}

// IsVoid reports whether tag is rendered without a closing tag.
func IsVoid(tag string) bool {
	return voidElements[tag]
}

// Render writes the subtree rooted at node as HTML.
func (d *Document) Render(w io.Writer, node NodeID) error {
	if _, err := d.lookup("dom.Render", node); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	d.renderNode(bw, node)
	if err := bw.Flush(); err != nil {
		return errors.Wrap(errors.KindIO, "dom.Render", err)
	}
	return nil
}

// RenderString returns the subtree rooted at node as HTML.
func (d *Document) RenderString(node NodeID) (string, error) {
	var sb strings.Builder
	if err := d.Render(&sb, node); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// String returns the whole document as HTML.
func (d *Document) String() string {
	s, _ := d.RenderString(d.root)
	return s
}

// renderNode writes into a bufio.Writer, whose first error is reported by Flush.
func (d *Document) renderNode(w *bufio.Writer, id NodeID) {
	n := d.nodes[id]

	w.WriteByte('<')
	w.WriteString(n.Tag)
	for _, a := range n.attrs {
		w.WriteByte(' ')
		w.WriteString(a.Key)
		w.WriteString(`="`)
		attrEscaper.WriteString(w, a.Value)
		w.WriteByte('"')
	}
	w.WriteByte('>')

	if IsVoid(n.Tag) {
		return
	}

	if n.Text != "" {
		textEscaper.WriteString(w, n.Text)
	}
	for _, child := range n.children {
		d.renderNode(w, child)
	}

	w.WriteString("</")
	w.WriteString(n.Tag)
	w.WriteByte('>')
}

// Pretty writes an indented outline of the document, one node per line.
// It is meant for debugging, not for HTML output.
func (d *Document) Pretty(w io.Writer) error {
	bw := bufio.NewWriter(w)
	d.prettyNode(bw, d.root, 0)
	if err := bw.Flush(); err != nil {
		return errors.Wrap(errors.KindIO, "dom.Pretty", err)
	}
	return nil
}

func (d *Document) prettyNode(w *bufio.Writer, id NodeID, depth int) {
	n := d.nodes[id]

	w.WriteString(strings.Repeat("  ", depth))
	w.WriteByte('<')
	w.WriteString(n.Tag)
	for _, a := range n.attrs {
		fmt.Fprintf(w, " %s=%q", a.Key, a.Value)
	}
	w.WriteByte('>')
	if n.Text != "" {
		fmt.Fprintf(w, " %q", n.Text)
	}
	w.WriteByte('\n')

	for _, child := range n.children {
		d.prettyNode(w, child, depth+1)
	}
}
