package eventbus

import (
	"testing"

	"github.com/nexus-automation/nexus/pkg/types"
)

func TestSubscribePublishUnsubscribe(t *testing.T) {
	b := New()
	var got []types.EventType
	id := b.Subscribe(func(ev types.Event) { got = append(got, ev.Type) })

	b.Publish(types.Event{Type: types.EventHostOk})
	b.Unsubscribe(id)
	b.Publish(types.Event{Type: types.EventHostFailed})

	if len(got) != 1 || got[0] != types.EventHostOk {
		t.Fatalf("expected exactly one delivered event before unsubscribe, got %v", got)
	}
}

func TestCallbackPublishesToSubscribers(t *testing.T) {
	b := New()
	received := false
	b.Subscribe(func(ev types.Event) { received = true })

	cb := b.Callback()
	cb(types.Event{Type: types.EventTaskStart})

	if !received {
		t.Fatal("expected Callback() to publish to subscribers")
	}
}

func TestConnectedClientsZeroBeforeServe(t *testing.T) {
	b := New()
	if b.ConnectedClients() != 0 {
		t.Fatalf("expected 0 connected clients before ServeRemote, got %d", b.ConnectedClients())
	}
}
