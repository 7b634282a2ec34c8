//go:build integration

package relayservice_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/tinywideclouds/go-push-relay/internal/relay"
	"github.com/tinywideclouds/go-push-relay/relayservice"
	"github.com/tinywideclouds/go-push-relay/relayservice/config"
)

func TestRelayService_PubsubIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	logger := newTestLogger()
	projectID := "test-project-integ"

	// 1. Emulators
	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = psClient.Close() })

	t.Run("Full Lifecycle: Publish with key -> Publish without key -> Gateway", func(t *testing.T) {
		topicID := "push-relay-" + uuid.NewString()
		subID := topicID + "-sub"
		createPubsubResources(t, ctx, psClient, projectID, topicID, subID)

		cache := newMemoryCache()
		gateway := &recordingGateway{}
		pushRelay := relay.New(cache, gateway, logger)

		consumerCfg := *messagepipeline.NewGooglePubsubConsumerDefaults(subID)
		consumer, err := messagepipeline.NewGooglePubsubConsumer(&consumerCfg, psClient, logger)
		require.NoError(t, err)

		svc, err := relayservice.New(
			&config.Config{ListenAddr: ":0", NumPipelineWorkers: 1},
			consumer,
			pushRelay,
			nil,
			logger,
		)
		require.NoError(t, err)

		svcCtx, svcCancel := context.WithCancel(ctx)
		defer svcCancel()
		go func() { _ = svc.Start(svcCtx) }()
		t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

		publisher := psClient.Publisher(topicID)

		// Step A: first request carries the key
		_, err = publisher.Publish(ctx, &pubsub.Message{Data: []byte(
			`{"appId":"app1","mode":"dev","deviceId":"d1","key":"K1","notification":{"alert":"a"}}`)}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return len(gateway.Keys()) == 1
		}, 10*time.Second, 100*time.Millisecond)

		// Step B: second request relies on the cached key
		_, err = publisher.Publish(ctx, &pubsub.Message{Data: []byte(
			`{"appId":"app1","mode":"dev","deviceId":"d2","notification":{"alert":"b"}}`)}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return len(gateway.Keys()) == 2
		}, 10*time.Second, 100*time.Millisecond)

		assert.Equal(t, []string{"K1", "K1"}, gateway.Keys())
	})
}

func createPubsubResources(t *testing.T, ctx context.Context, client *pubsub.Client, projectID, topicID, subID string) {
	t.Helper()
	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.TopicAdminClient.DeleteTopic(context.Background(), &pubsubpb.DeleteTopicRequest{Topic: topicName})
	})

	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	sub := &pubsubpb.Subscription{
		Name:               subName,
		Topic:              topicName,
		AckDeadlineSeconds: 10,
		RetryPolicy: &pubsubpb.RetryPolicy{
			MinimumBackoff: &durationpb.Duration{Seconds: 1},
		},
	}
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, sub)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.SubscriptionAdminClient.DeleteSubscription(context.Background(), &pubsubpb.DeleteSubscriptionRequest{Subscription: subName})
	})
}
