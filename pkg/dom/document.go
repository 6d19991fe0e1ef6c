package dom

import (
	"strings"

	"github.com/vango-dev/cadview/internal/errors"
)

// NodeID addresses a node inside its Document. IDs are assigned in creation
// order starting at 0 for the root.
type NodeID int

// noParent marks the root's parent.
const noParent NodeID = -1

// Attr is a single attribute.
type Attr struct {
	Key   string
	Value string
}

// A creates an Attr.
func A(key, value string) Attr {
	return Attr{Key: key, Value: value}
}

// Node is a single element of a Document.
type Node struct {
	ID   NodeID
	Tag  string
	Text string

	attrs    []Attr
	children []NodeID
	parent   NodeID
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Attrs returns a copy of the node's attributes in insertion order.
func (n *Node) Attrs() []Attr {
	return append([]Attr(nil), n.attrs...)
}

// Children returns a copy of the node's child ids in insertion order.
func (n *Node) Children() []NodeID {
	return append([]NodeID(nil), n.children...)
}

// setAttr updates key in place, or appends it when absent.
func (n *Node) setAttr(key, value string) {
	for i := range n.attrs {
		if n.attrs[i].Key == key {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Key: key, Value: value})
}

// Document is a single-rooted tree of nodes.
//
// A Document is not safe for concurrent mutation. Build one per request.
type Document struct {
	nodes []*Node
	root  NodeID
}

// New creates a Document holding a single root node.
func New(rootTag string, attrs ...Attr) *Document {
	d := &Document{}
	d.root = d.newNode(rootTag, nodeOptions{attrs: attrs})
	return d
}

// Option configures a node created by Append.
type Option func(*nodeOptions)

type nodeOptions struct {
	text    string
	attrs   []Attr
	classes []string
}

// WithText sets the node's text content.
func WithText(text string) Option {
	return func(o *nodeOptions) { o.text = text }
}

// WithAttr adds an attribute.
func WithAttr(key, value string) Option {
	return func(o *nodeOptions) { o.attrs = append(o.attrs, Attr{Key: key, Value: value}) }
}

// WithAttrs adds several attributes.
func WithAttrs(attrs ...Attr) Option {
	return func(o *nodeOptions) { o.attrs = append(o.attrs, attrs...) }
}

// WithClass sets the class attribute from a list, joined with spaces.
func WithClass(classes ...string) Option {
	return func(o *nodeOptions) { o.classes = append(o.classes, classes...) }
}

func (d *Document) newNode(tag string, o nodeOptions) NodeID {
	id := NodeID(len(d.nodes))
	n := &Node{ID: id, Tag: tag, Text: o.text, parent: noParent}
	for _, a := range o.attrs {
		n.setAttr(a.Key, a.Value)
	}
	if len(o.classes) > 0 {
		n.setAttr("class", strings.Join(o.classes, " "))
	}
	d.nodes = append(d.nodes, n)
	return id
}

// Root returns the root node id.
func (d *Document) Root() NodeID {
	return d.root
}

// Len returns the number of nodes, root included.
func (d *Document) Len() int {
	return len(d.nodes)
}

// Node returns the node with the given id.
func (d *Document) Node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(d.nodes) {
		return nil, false
	}
	return d.nodes[id], true
}

// Parent returns the parent of id. The root has no parent.
func (d *Document) Parent(id NodeID) (NodeID, bool) {
	n, ok := d.Node(id)
	if !ok || n.parent == noParent {
		return 0, false
	}
	return n.parent, true
}

// Children returns the ordered child ids of id.
func (d *Document) Children(id NodeID) []NodeID {
	n, ok := d.Node(id)
	if !ok {
		return nil
	}
	return n.Children()
}

func (d *Document) lookup(op string, id NodeID) (*Node, error) {
	n, ok := d.Node(id)
	if !ok {
		return nil, errors.Newf(errors.KindInvalidReference, op, "unknown node %d", id)
	}
	return n, nil
}

// Append creates a node and attaches it as the last child of parent.
func (d *Document) Append(parent NodeID, tag string, opts ...Option) (NodeID, error) {
	p, err := d.lookup("dom.Append", parent)
	if err != nil {
		return 0, err
	}

	var o nodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	id := d.newNode(tag, o)
	d.nodes[id].parent = p.ID
	p.children = append(p.children, id)
	return id, nil
}

// Move re-parents an existing node as the last child of parent. The node is
// removed from its previous parent's children. Moving the root, or moving a
// node under itself or one of its descendants, is rejected.
func (d *Document) Move(parent, child NodeID) error {
	p, err := d.lookup("dom.Move", parent)
	if err != nil {
		return err
	}
	c, err := d.lookup("dom.Move", child)
	if err != nil {
		return err
	}
	if c.ID == d.root {
		return errors.New(errors.KindInvalidReference, "dom.Move", "cannot move the root node")
	}
	for at := p.ID; at != noParent; at = d.nodes[at].parent {
		if at == c.ID {
			return errors.Newf(errors.KindInvalidReference, "dom.Move", "node %d is an ancestor of %d", child, parent)
		}
	}

	if c.parent != noParent {
		old := d.nodes[c.parent]
		for i, id := range old.children {
			if id == c.ID {
				old.children = append(old.children[:i], old.children[i+1:]...)
				break
			}
		}
	}
	c.parent = p.ID
	p.children = append(p.children, c.ID)
	return nil
}

// SetAttr sets an attribute on node, replacing any previous value.
func (d *Document) SetAttr(node NodeID, key, value string) error {
	n, err := d.lookup("dom.SetAttr", node)
	if err != nil {
		return err
	}
	n.setAttr(key, value)
	return nil
}

// SetClass sets the class attribute from a list, joined with spaces.
func (d *Document) SetClass(node NodeID, classes ...string) error {
	return d.SetAttr(node, "class", strings.Join(classes, " "))
}

// SetText replaces the text content of node.
func (d *Document) SetText(node NodeID, text string) error {
	n, err := d.lookup("dom.SetText", node)
	if err != nil {
		return err
	}
	n.Text = text
	return nil
}

// Query returns, in creation order, every node matching selector.
func (d *Document) Query(selector string) ([]NodeID, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	var out []NodeID
	for _, n := range d.nodes {
		if sel.Match(n) {
			out = append(out, n.ID)
		}
	}
	return out, nil
}
