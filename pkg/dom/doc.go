// Package dom provides the small tree-structured document model cadview uses
// to build and serialize the HTML pages its gateway returns.
//
// A Document owns every Node it creates and addresses them by NodeID. Nodes
// keep their attributes and children in insertion order, so serialization is
// deterministic: rendering an unmutated Document twice yields identical bytes.
//
// # Building
//
//	doc := dom.New("html", dom.A("lang", "en"))
//	head, _ := doc.Append(doc.Root(), "head")
//	doc.Append(head, "meta", dom.WithAttr("charset", "utf-8"))
//	body, _ := doc.Append(doc.Root(), "body")
//	doc.Append(body, "div", dom.WithAttr("id", "app"), dom.WithClass("container", "p-4"))
//
// Move re-parents an existing node; the node is detached from its previous
// parent, so it renders only under the new one.
//
// # Querying
//
// Query accepts a tag name followed by any number of .class, #id, [key] and
// [key=value] parts, all of which must match. There are no combinators.
//
//	ids, err := doc.Query("div.container#app")
//
// A malformed selector (for example an unterminated '[') is reported as a
// parse error, never as an empty result.
//
// # Serialization
//
// Render writes the subtree rooted at a node in pre-order. Text and attribute
// values are escaped. The void tags br, hr, img, meta, link and input are
// emitted as a lone opening tag; their text and children are never written.
package dom
