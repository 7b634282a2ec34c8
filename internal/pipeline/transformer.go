// Package pipeline contains the queue-ingress components: relay requests arriving on a
// Pub/Sub subscription are decoded and handed to the same relay the HTTP API uses.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-push-relay/pkg/push"
)

// PushRequestTransformer is a dataflow Transformer that unmarshals and validates a raw
// message payload into a push.Request.
func PushRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*push.Request, bool, error) {
	var req push.Request

	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		// skip=true lets the StreamingService Nack it towards the DLQ.
		return nil, true, fmt.Errorf("failed to unmarshal push request from message %s: %w", msg.ID, err)
	}
	if req.AppID == "" || req.Mode == "" || req.DeviceID == "" {
		return nil, true, fmt.Errorf("push request in message %s is missing appId, mode or deviceId", msg.ID)
	}

	return &req, false, nil
}
