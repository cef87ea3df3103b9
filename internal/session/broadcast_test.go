package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sangbadpatra/sangbadpatra/internal/session"
)

func TestBroadcastPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := session.NewBroadcaster(client)
	events, stop := b.Subscribe(context.Background())
	defer stop()

	// Subscription setup races the publish without a sync point.
	time.Sleep(50 * time.Millisecond)

	if err := b.Publish(context.Background(), session.Event{Kind: session.EventLogout, SessionID: "sid-1", UserID: 42}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != session.EventLogout || ev.SessionID != "sid-1" || ev.UserID != 42 {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.At.IsZero() {
			t.Fatal("expected event timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcastNilSafe(t *testing.T) {
	var b *session.Broadcaster
	if err := b.Publish(context.Background(), session.Event{Kind: session.EventLogin}); err != nil {
		t.Fatalf("nil broadcaster publish: %v", err)
	}
}
