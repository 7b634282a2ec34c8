package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-push-relay/pkg/push"
)

// Relayer is the core the processor hands requests to.
type Relayer interface {
	Handle(ctx context.Context, req push.Request) push.Response
}

// NewProcessor creates the stage that relays each decoded request.
// Only an unavailable key cache is worth a redelivery; every other outcome is final.
func NewProcessor(relay Relayer, logger *slog.Logger) messagepipeline.StreamProcessor[push.Request] {
	return func(ctx context.Context, original messagepipeline.Message, request *push.Request) error {
		procLogger := logger.With(
			"app_id", request.AppID,
			"mode", request.Mode,
			"pubsub_msg_id", original.ID,
		)

		resp := relay.Handle(ctx, *request)
		switch {
		case resp.IsOK():
			procLogger.Info("Push relayed")
		case resp.Reason == push.InternalServerError:
			procLogger.Error("Push deferred, key cache unavailable")
			return fmt.Errorf("relay for message %s: %s", original.ID, resp.Reason)
		default:
			procLogger.Warn("Push rejected", "reason", resp.Reason.String(), "details", resp.Details)
		}
		return nil
	}
}
