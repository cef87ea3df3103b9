package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// eventChannel is the redis pub/sub channel carrying session events.
// Every process subscribes to the same stream instead of re-reading
// storage ad hoc, so all instances agree on login state.
const eventChannel = "session.events"

// Event kinds.
const (
	EventLogin   = "login"
	EventLogout  = "logout"
	EventRefresh = "refresh"
)

// Event describes a change to a session's lifecycle.
type Event struct {
	Kind      string    `json:"kind"`
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	At        time.Time `json:"at"`
}

// Broadcaster publishes and delivers session events over redis pub/sub.
type Broadcaster struct {
	client *redis.Client
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

// Publish emits an event on the shared channel.
func (b *Broadcaster) Publish(ctx context.Context, ev Event) error {
	if b == nil || b.client == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, eventChannel, data).Err()
}

// Subscribe delivers events until the returned stop function is called.
// Undecodable payloads are skipped; a slow consumer drops events rather
// than blocking the pump.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Event, func()) {
	sub := b.client.Subscribe(ctx, eventChannel)
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case out <- ev:
			default:
			}
		}
	}()
	return out, func() { _ = sub.Close() }
}
