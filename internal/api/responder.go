package api

import (
	"encoding/json"
	"net/http"

	"github.com/tinywideclouds/go-push-relay/pkg/push"
)

// Envelope renders a relay outcome into the wire shape clients already parse:
// {"status":"ok"} or {"status":"error","error":"<reason>", ...details}.
func Envelope(resp push.Response) map[string]any {
	if resp.IsOK() {
		return map[string]any{"status": "ok"}
	}
	body := map[string]any{
		"status": "error",
		"error":  resp.Reason.String(),
	}
	switch resp.Reason {
	case push.InvalidDeviceID:
		body["invalidIds"] = resp.Details
	case push.UpdatedDeviceID:
		body["updatedIds"] = resp.Details
	default:
		if resp.Details != nil {
			body["detail"] = resp.Details
		}
	}
	return body
}

// writeEnvelope always answers 200; the outcome lives in the body.
func writeEnvelope(w http.ResponseWriter, resp push.Response) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(Envelope(resp))
}
