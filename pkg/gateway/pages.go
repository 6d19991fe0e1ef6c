package gateway

import (
	"io"
	"net/http"

	"github.com/vango-dev/cadview/pkg/dom"
)

const doctype = "<!DOCTYPE html>\n"

// Script and stylesheet references of every page.
var (
	pageStylesheets = []string{"/static/css/global.css"}
	pageScripts     = []string{
		"https://rawcdn.githack.com/mrdoob/three.js/r126/build/three.min.js",
		"https://rawcdn.githack.com/mrdoob/three.js/r126/examples/js/controls/TrackballControls.js",
		"https://rawcdn.githack.com/mrdoob/three.js/r126/examples/js/libs/stats.min.js",
	}
	pageModule = "/static/js/main.js"
)

// newPage returns a document with the common head and an empty body.
func newPage(title string) (*dom.Document, dom.NodeID) {
	d := dom.New("html", dom.A("lang", "en"))
	head, _ := d.Append(d.Root(), "head")
	for _, href := range pageStylesheets {
		d.Append(head, "link", dom.WithAttrs(dom.A("rel", "stylesheet"), dom.A("href", href)))
	}
	for _, src := range pageScripts {
		d.Append(head, "script", dom.WithAttr("src", src))
	}
	d.Append(head, "script", dom.WithAttrs(dom.A("src", pageModule), dom.A("type", "module")))
	d.Append(head, "meta", dom.WithAttr("charset", "utf-8"))
	d.Append(head, "title", dom.WithText(title))
	body, _ := d.Append(d.Root(), "body")
	return d, body
}

// cadPage is the viewer page. The browser script reads the id and the bridge
// URL from the body attributes.
func (g *Gateway) cadPage(id string) *dom.Document {
	d, body := newPage("cadview")
	d.SetAttr(body, "data-cad-id", id)
	if g.config.BridgeURL != "" {
		d.SetAttr(body, "data-bridge-url", g.config.BridgeURL)
	}
	return d
}

func notFoundPage() *dom.Document {
	d, body := newPage("404 Not Found")
	d.Append(body, "h1", dom.WithText("404 Not Found"))
	return d
}

// writePage renders d as a complete HTML response.
func writePage(w http.ResponseWriter, status int, d *dom.Document) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, doctype)
	d.Render(w, d.Root())
}

func (g *Gateway) serveCAD(w http.ResponseWriter, r *http.Request) {
	writePage(w, http.StatusOK, g.cadPage(urlParam(r, "id")))
}

func (g *Gateway) notFound(w http.ResponseWriter, _ *http.Request) {
	writePage(w, http.StatusNotFound, notFoundPage())
}
