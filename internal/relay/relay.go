// Package relay resolves the application key for a push request, either from the
// request itself or from the key cache, and forwards the message to the push gateway.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-push-relay/pkg/push"
)

// Relay orchestrates the key cache and the push gateway for a single request.
type Relay struct {
	cache   push.KeyCache
	gateway push.Gateway
	logger  *slog.Logger
}

// New creates a Relay. The cache and gateway are injected; Relay holds no other state.
func New(cache push.KeyCache, gateway push.Gateway, logger *slog.Logger) *Relay {
	return &Relay{
		cache:   cache,
		gateway: gateway,
		logger:  logger.With("component", "Relay"),
	}
}

// Handle relays one request and returns the normalized outcome. It never returns a Go error:
// every failure is expressed as a push.Response.
func (r *Relay) Handle(ctx context.Context, req push.Request) push.Response {
	reqLogger := r.logger.With(
		"request_id", uuid.NewString(),
		"app_id", req.AppID,
		"mode", req.Mode,
	)
	reqLogger.Debug("Push to device", "device_id", req.DeviceID)

	if req.HasKey() {
		reqLogger.Debug("New key provided in request")
		r.storeKey(ctx, req, reqLogger)
		return r.send(ctx, req, *req.Key, reqLogger)
	}

	reqLogger.Debug("No key provided, looking up cached key")
	key, resp, ok := r.lookupKey(ctx, req, reqLogger)
	if !ok {
		return resp
	}
	return r.send(ctx, req, key, reqLogger)
}

// storeKey caches a newly supplied key. Failures only degrade later requests, so they are
// logged and never block delivery.
func (r *Relay) storeKey(ctx context.Context, req push.Request, logger *slog.Logger) {
	if !r.cache.Connected() {
		logger.Info("No cache connection, can't store key")
		return
	}
	if err := r.cache.Set(ctx, push.CacheKey(req.AppID, req.Mode), *req.Key); err != nil {
		logger.Warn("Failed to store key in cache", "err", err)
		return
	}
	logger.Debug("Saved key in cache")
}

func (r *Relay) lookupKey(ctx context.Context, req push.Request, logger *slog.Logger) (string, push.Response, bool) {
	if !r.cache.Connected() {
		logger.Info("No cache connection, can't check for existing key")
		return "", push.Err(push.InternalServerError, nil), false
	}

	key, found, err := r.cache.Get(ctx, push.CacheKey(req.AppID, req.Mode))
	if err != nil {
		logger.Error("Cache lookup failed", "err", err)
		return "", push.Err(push.InternalServerError, nil), false
	}
	if !found {
		logger.Debug("No key found in cache")
		return "", push.Err(push.MissingKey, nil), false
	}

	logger.Debug("Found key in cache")
	return key, push.Response{}, true
}

func (r *Relay) send(ctx context.Context, req push.Request, key string, logger *slog.Logger) (resp push.Response) {
	// Gateway panics surface as UnknownError.
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Gateway send panicked", "panic", p)
			resp = push.Err(push.UnknownError, fmt.Sprint(p))
		}
	}()

	if req.Debug {
		logger.Debug("Incoming payload", "payload", string(req.Payload))
	}

	result, err := r.gateway.Send(ctx, key, req.DeviceID, req.Payload)
	if err != nil {
		if req.Debug {
			logger.Debug("Gateway response", "err", err.Error())
		}
		return classifyTransportError(err)
	}
	return classifyResult(result)
}

// classifyTransportError maps gateway error text onto a reason. A "400" anywhere in the
// text wins over "401".
func classifyTransportError(err error) push.Response {
	text := err.Error()
	switch {
	case strings.Contains(text, "400"):
		return push.Err(push.InvalidPayload, nil)
	case strings.Contains(text, "401"):
		return push.Err(push.BadKey, nil)
	default:
		return push.Err(push.UnknownError, nil)
	}
}

// classifyResult maps a per-device result. Invalid ids are reported ahead of updated ids.
func classifyResult(result *push.GatewayResult) push.Response {
	if result == nil || !result.Failure {
		return push.OK()
	}
	if len(result.InvalidIDs) > 0 {
		return push.Err(push.InvalidDeviceID, result.InvalidIDs)
	}
	if len(result.UpdatedIDs) > 0 {
		return push.Err(push.UpdatedDeviceID, result.UpdatedIDs)
	}
	return push.Err(push.UnknownError, nil)
}
