package gateway

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/vango-dev/cadview/pkg/bridge"
)

// handleShape ingests one geometry payload and forwards it to the bridge.
func (g *Gateway) handleShape(w http.ResponseWriter, r *http.Request) {
	// -1 is a chunked or unknown length; 0 without the header is a request
	// that never declared one.
	if r.ContentLength < 0 || (r.ContentLength == 0 && r.Header.Get("Content-Length") == "") {
		writeJSONError(w, http.StatusLengthRequired, "Content-Length required")
		return
	}
	if r.ContentLength > g.config.MaxBodyBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	payload := make([]byte, r.ContentLength)
	if _, err := io.ReadFull(r.Body, payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "short body")
		return
	}
	if !json.Valid(payload) {
		writeJSONError(w, http.StatusBadRequest, "body is not valid JSON")
		return
	}

	shape := json.RawMessage(payload)
	g.scene.Add(shape)

	var (
		delivered int
		err       error
	)
	if g.config.Broadcast {
		delivered, err = g.sink.Broadcast(r.Context(), bridge.KindLoadShape, shape)
	} else {
		var ok bool
		ok, err = g.sink.Send(r.Context(), bridge.KindLoadShape, shape)
		if ok {
			delivered = 1
		}
	}
	if err != nil {
		if stderrors.Is(err, bridge.ErrClosed) {
			writeJSONError(w, http.StatusServiceUnavailable, "bridge unavailable")
			return
		}
		g.logger.Error("geometry forward failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "forward failed")
		return
	}

	g.metrics.GeometryIngested()
	g.logger.Debug("geometry ingested", "bytes", len(payload), "delivered", delivered)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "{}")
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
