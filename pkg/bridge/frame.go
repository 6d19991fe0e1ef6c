package bridge

import (
	"encoding/json"

	"github.com/vango-dev/cadview/internal/errors"
)

// outFrame is a push or a Receive reply.
type outFrame struct {
	EID  string `json:"eid"`
	Data any    `json:"data"`
}

// errorFrame reports a rejected inbound frame.
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// decodeEID extracts the eid of an inbound frame. Invalid JSON, a non-object
// frame, and a missing or non-string eid are parse errors.
func decodeEID(msg []byte) (string, error) {
	var head struct {
		EID *json.RawMessage `json:"eid"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return "", errors.Wrap(errors.KindParse, "bridge.decode", err)
	}
	if head.EID == nil {
		return "", errors.New(errors.KindParse, "bridge.decode", "missing eid")
	}
	var eid string
	if err := json.Unmarshal(*head.EID, &eid); err != nil {
		return "", errors.New(errors.KindParse, "bridge.decode", "eid must be a string")
	}
	return eid, nil
}

func encodePush(eid string, data any) ([]byte, error) {
	return json.Marshal(outFrame{EID: eid, Data: data})
}

func encodeError(message string) []byte {
	b, _ := json.Marshal(errorFrame{Type: "error", Message: message})
	return b
}
