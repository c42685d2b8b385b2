package pubsub

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "ovalsync-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishSendsJSONWithEventAttributes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, srv := newTestClient(t)
	_, err := client.CreateTopic(ctx, "social-stats")
	require.NoError(t, err)

	pub := New(client)
	t.Cleanup(func() { _ = pub.Close() })

	event := scrape.Event{
		Type:       scrape.EventSocialStatsCollected,
		ID:         "run-1",
		OccurredAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Payload:    map[string]int{"records": 3},
	}
	id, err := pub.Publish(ctx, "social-stats", event)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.JSONEq(t,
		`{"type":"social_stats.collected","id":"run-1","occurred_at":"2025-03-01T09:00:00Z","payload":{"records":3}}`,
		string(msgs[0].Data))
	require.Equal(t, "social_stats.collected", msgs[0].Attributes["event_type"])
	require.Equal(t, "run-1", msgs[0].Attributes["event_id"])
}

func TestPublishFailsForMissingTopic(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	pub := New(client)
	t.Cleanup(func() { _ = pub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := pub.Publish(ctx, "does-not-exist", "payload")
	require.Error(t, err)
}

func TestPublishValidatesInput(t *testing.T) {
	t.Parallel()

	var nilPub *Publisher
	_, err := nilPub.Publish(context.Background(), "t", "x")
	require.Error(t, err)
	require.NoError(t, nilPub.Close())

	client, _ := newTestClient(t)
	_, err = New(client).Publish(context.Background(), "", "x")
	require.Error(t, err)

	_, err = Open(context.Background(), "")
	require.Error(t, err)
}
