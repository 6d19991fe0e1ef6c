// Package gateway is the HTTP side of cadview: it serves the viewer page,
// static assets and the geometry ingestion endpoint.
//
// Routes:
//
//	GET  /cad/{id}   viewer page for a CAD id
//	GET  /static/*   files under the static root
//	POST /d-shape    geometry ingestion, forwarded to the bridge
//	GET  /healthz    liveness
//	GET  /metrics    Prometheus exposition, when metrics are enabled
//
// Every other request, including a wrong method on a known path, gets a 404
// HTML page. Pages are built per request with package dom.
//
// Static files are opened through an os.Root, so no request path, symlinks
// included, resolves outside the static directory.
package gateway
