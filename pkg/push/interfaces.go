// Package push contains the public contracts and domain models for the push relay:
// the inbound request, the two collaborators it orchestrates and the normalized result.
package push

import (
	"context"
	"encoding/json"
)

// KeyCache defines the subset of key-value commands the relay needs to remember
// application keys between requests.
type KeyCache interface {
	// Get returns the stored value. A missing key is reported as found=false with a nil error.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores the value, replacing any previous one (last write wins).
	Set(ctx context.Context, key, value string) error
	// Connected reports, without blocking, whether the cache is currently reachable.
	Connected() bool
}

// Gateway defines the contract for a push gateway that delivers a payload to one device.
//
// Transport-level failures are returned as errors whose text carries the HTTP status
// ("400", "401", ...). Per-device failures come back in the GatewayResult.
type Gateway interface {
	Send(ctx context.Context, key, deviceID string, payload json.RawMessage) (*GatewayResult, error)
}

// GatewayResult is the per-send outcome reported by a Gateway.
type GatewayResult struct {
	Failure    bool
	InvalidIDs []string
	UpdatedIDs []string
}

// Request describes a single push to relay.
type Request struct {
	AppID    string          `json:"appId"`
	Mode     string          `json:"mode"`
	DeviceID string          `json:"deviceId"`
	Key      *string         `json:"key,omitempty"`
	Payload  json.RawMessage `json:"notification"`
	Debug    bool            `json:"debug,omitempty"`
}

// HasKey reports whether the caller supplied an application key.
func (r Request) HasKey() bool {
	return r.Key != nil
}

// CacheKey builds the cache identifier for an application/mode pair.
// The format is shared with existing stored records and must not change.
func CacheKey(appID, mode string) string {
	return appID + "_" + mode + "_gcmkey"
}
