package bus

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomhub/internal/app/chat"
	"roomhub/internal/pkg/logx"
)

func TestMain(m *testing.M) {
	logx.Discard()
	m.Run()
}

func TestDispatch_SkipsOwnAndMalformed(t *testing.T) {
	r := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "test")

	var got []chat.RelayMessage
	handle := func(_ context.Context, msg chat.RelayMessage) { got = append(got, msg) }

	own, err := json.Marshal(envelope{Origin: r.Origin(), Message: chat.RelayMessage{Kind: chat.RelayPublish, RoomID: "a"}})
	require.NoError(t, err)
	foreign, err := json.Marshal(envelope{Origin: "other", Message: chat.RelayMessage{Kind: chat.RelayRevoke, RoomID: "b", UserID: "u2"}})
	require.NoError(t, err)

	assert.False(t, r.dispatch(context.Background(), own, handle))
	assert.False(t, r.dispatch(context.Background(), []byte("{"), handle))
	assert.True(t, r.dispatch(context.Background(), foreign, handle))

	require.Len(t, got, 1)
	assert.Equal(t, chat.RelayRevoke, got[0].Kind)
	assert.Equal(t, "u2", got[0].UserID)
}

// TestRelay_RoundTrip needs a Redis server; set REDIS_TEST_ADDR or run one on localhost:6379.
func TestRelay_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	defer client.Close()

	channel := "roomhub:test:" + time.Now().Format("150405.000000")
	a, b := New(client, channel), New(client, channel)

	received := make(chan chat.RelayMessage, 1)
	go func() {
		_ = b.Run(ctx, func(_ context.Context, msg chat.RelayMessage) { received <- msg })
	}()

	// Wait until b is subscribed before publishing.
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, channel).Result()
		return err == nil && n[channel] > 0
	}, 2*time.Second, 20*time.Millisecond)

	ev, err := chat.NewEvent(chat.EventMessageCreated, "room-1", map[string]string{"content": "hi"})
	require.NoError(t, err)
	require.NoError(t, a.Forward(ctx, chat.RelayMessage{Kind: chat.RelayPublish, RoomID: "room-1", Event: ev}))

	select {
	case msg := <-received:
		assert.Equal(t, ev.ID, msg.Event.ID)
		assert.Equal(t, "room-1", msg.RoomID)
	case <-ctx.Done():
		t.Fatal("relay message not received")
	}
}
