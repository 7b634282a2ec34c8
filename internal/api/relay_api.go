package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	"github.com/tinywideclouds/go-push-relay/pkg/push"
)

// Relayer is the core the API hands requests to.
type Relayer interface {
	Handle(ctx context.Context, req push.Request) push.Response
}

type RelayAPI struct {
	Relay  Relayer
	Logger *slog.Logger
}

func NewRelayAPI(relay Relayer, logger *slog.Logger) *RelayAPI {
	return &RelayAPI{
		Relay:  relay,
		Logger: logger,
	}
}

// SendGoogle relays one push to the Google gateway.
func (api *RelayAPI) SendGoogle(w http.ResponseWriter, r *http.Request) {
	var req push.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Logger.Warn("SendGoogle: JSON Decode failed", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.AppID == "" || req.Mode == "" || req.DeviceID == "" {
		api.Logger.Warn("SendGoogle: Validation failed", "reason", "missing fields")
		response.WriteJSONError(w, http.StatusBadRequest, "appId, mode and deviceId are required")
		return
	}

	resp := api.Relay.Handle(r.Context(), req)
	if !resp.IsOK() {
		api.Logger.Info("SendGoogle: Push rejected", "app_id", req.AppID, "mode", req.Mode, "reason", resp.Reason.String())
	}

	if err := writeEnvelope(w, resp); err != nil {
		api.Logger.Error("SendGoogle: failed to write response", "err", err)
	}
}
