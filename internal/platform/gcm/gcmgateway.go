// Package gcm provides a push.Gateway for the legacy GCM/FCM HTTP endpoint, which
// authenticates each request with an application server key.
package gcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tinywideclouds/go-push-relay/pkg/push"
)

// DefaultEndpoint is the legacy HTTP send endpoint.
const DefaultEndpoint = "https://fcm.googleapis.com/fcm/send"

// Result errors that mean the device id will never work again.
var invalidIDErrors = map[string]bool{
	"InvalidRegistration": true,
	"NotRegistered":       true,
	"MismatchSenderId":    true,
	"MissingRegistration": true,
}

type Gateway struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewGateway(endpoint string, timeout time.Duration, logger *slog.Logger) *Gateway {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "GCMGateway"),
	}
}

type sendRequest struct {
	RegistrationIDs []string        `json:"registration_ids"`
	Data            json.RawMessage `json:"data,omitempty"`
}

type sendResponse struct {
	MulticastID  int64 `json:"multicast_id"`
	Success      int   `json:"success"`
	Failure      int   `json:"failure"`
	CanonicalIDs int   `json:"canonical_ids"`
	Results      []struct {
		MessageID      string `json:"message_id"`
		RegistrationID string `json:"registration_id"`
		Error          string `json:"error"`
	} `json:"results"`
}

// Send posts the payload to a single device. HTTP failures are returned as errors carrying
// the status code; per-device failures are reported in the result.
func (g *Gateway) Send(ctx context.Context, key, deviceID string, payload json.RawMessage) (*push.GatewayResult, error) {
	body, err := json.Marshal(sendRequest{
		RegistrationIDs: []string{deviceID},
		Data:            payload,
	})
	if err != nil {
		return nil, fmt.Errorf("gcm: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gcm: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+key)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gcm: transport failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gcm: received status %d", resp.StatusCode)
	}

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("gcm: failed to decode response: %w", err)
	}

	result := &push.GatewayResult{
		Failure: sr.Failure > 0 || sr.CanonicalIDs > 0,
	}
	if len(sr.Results) > 1 {
		// Only one id is ever sent.
		g.logger.Warn("Unexpected extra results in response", "count", len(sr.Results))
	}
	if len(sr.Results) > 0 {
		res := sr.Results[0]
		switch {
		case invalidIDErrors[res.Error]:
			result.InvalidIDs = append(result.InvalidIDs, deviceID)
		case res.RegistrationID != "":
			result.UpdatedIDs = append(result.UpdatedIDs, res.RegistrationID)
		case res.Error != "":
			g.logger.Debug("Device send failed", "error", res.Error)
		}
	}

	return result, nil
}
