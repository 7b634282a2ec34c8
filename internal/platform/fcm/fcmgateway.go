// Package fcm provides a push.Gateway backed by the Firebase Admin SDK. The application
// key relayed with each request is the service-account credential of the Firebase project.
package fcm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-push-relay/pkg/push"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// ClientFactory builds a messaging client for one set of service-account credentials.
type ClientFactory func(ctx context.Context, credentialsJSON []byte) (MessagingClient, error)

// NewFirebaseClient is the production ClientFactory.
func NewFirebaseClient(ctx context.Context, credentialsJSON []byte) (MessagingClient, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return client, nil
}

type Gateway struct {
	newClient ClientFactory
	logger    *slog.Logger

	mu      sync.RWMutex
	clients map[string]MessagingClient
	group   singleflight.Group
}

func NewGateway(newClient ClientFactory, logger *slog.Logger) *Gateway {
	return &Gateway{
		newClient: newClient,
		logger:    logger.With("component", "FCMGateway"),
		clients:   make(map[string]MessagingClient),
	}
}

// Send delivers the payload as a data message to one registration token.
func (g *Gateway) Send(ctx context.Context, key, deviceID string, payload json.RawMessage) (*push.GatewayResult, error) {
	data, err := dataFromPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("fcm: 400 %w", err)
	}

	client, err := g.clientFor(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fcm: 401 unusable credentials: %w", err)
	}

	_, err = client.Send(ctx, &messaging.Message{
		Token: deviceID,
		Data:  data,
	})
	if err == nil {
		return &push.GatewayResult{}, nil
	}

	switch {
	// The token is garbage; nothing about the request itself was wrong.
	case messaging.IsUnregistered(err), messaging.IsSenderIDMismatch(err):
		return &push.GatewayResult{Failure: true, InvalidIDs: []string{deviceID}}, nil
	case messaging.IsInvalidArgument(err):
		return nil, fmt.Errorf("fcm: 400 invalid argument: %w", err)
	case errorutils.IsUnauthenticated(err), errorutils.IsPermissionDenied(err), messaging.IsThirdPartyAuthError(err):
		return nil, fmt.Errorf("fcm: 401 rejected credentials: %w", err)
	default:
		return nil, fmt.Errorf("fcm: send failed: %w", err)
	}
}

// clientFor returns the memoised client for key, building it at most once even under
// concurrent first use.
func (g *Gateway) clientFor(ctx context.Context, key string) (MessagingClient, error) {
	id := fingerprint(key)

	g.mu.RLock()
	client, ok := g.clients[id]
	g.mu.RUnlock()
	if ok {
		return client, nil
	}

	v, err, _ := g.group.Do(id, func() (interface{}, error) {
		// The client outlives this request.
		c, err := g.newClient(context.WithoutCancel(ctx), []byte(key))
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.clients[id] = c
		g.mu.Unlock()
		g.logger.Info("Messaging client created", "credentials", id[:12])
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(MessagingClient), nil
}

// dataFromPayload flattens a JSON object into FCM's string-only data map. String values
// are kept as-is; everything else is carried as its JSON text.
func dataFromPayload(payload json.RawMessage) (map[string]string, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	data := make(map[string]string, len(fields))
	for k, raw := range fields {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			data[k] = s
			continue
		}
		data[k] = string(raw)
	}
	return data, nil
}

func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
