// Package eventbus fans a scheduler run's events out to in-process
// subscribers and, optionally, to websocket-connected remote observers
// (a TUI or dashboard watching a run live).
package eventbus

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/nexus-automation/nexus/pkg/types"
)

// Bus distributes types.Event values published during a run.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]types.EventCallback
	hub         *wsHub
}

// New creates an empty Bus. A Bus is safe for concurrent use.
func New() *Bus {
	return &Bus{subscribers: make(map[string]types.EventCallback)}
}

// Subscribe registers a callback and returns an ID for Unsubscribe.
func (b *Bus) Subscribe(cb types.EventCallback) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.subscribers[id] = cb
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a previously registered callback.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subscribers, id)
	b.mu.Unlock()
}

// Callback returns a types.EventCallback that publishes to the bus. Chain
// it alongside logging/metrics callbacks and pass the result as
// scheduler.Options.EventCallback to make a run observable over the bus.
func (b *Bus) Callback() types.EventCallback {
	return b.Publish
}

// Publish fans ev out to every in-process subscriber and, if ServeRemote
// has been called, to every connected websocket client.
func (b *Bus) Publish(ev types.Event) {
	b.mu.RLock()
	subs := make([]types.EventCallback, 0, len(b.subscribers))
	for _, cb := range b.subscribers {
		subs = append(subs, cb)
	}
	hub := b.hub
	b.mu.RUnlock()

	for _, cb := range subs {
		cb(ev)
	}
	if hub != nil {
		hub.broadcast(envelope{ID: uuid.NewString(), Event: ev})
	}
}

// ServeRemote lazily starts the websocket hub and returns its HTTP
// handler, to be mounted on a path like "/events" in an http.ServeMux.
func (b *Bus) ServeRemote() http.HandlerFunc {
	b.mu.Lock()
	if b.hub == nil {
		b.hub = newWSHub()
		go b.hub.run()
	}
	hub := b.hub
	b.mu.Unlock()
	return hub.handleWebSocket
}

// ConnectedClients reports how many remote observers are attached. Zero
// before ServeRemote's handler has accepted a connection.
func (b *Bus) ConnectedClients() int {
	b.mu.RLock()
	hub := b.hub
	b.mu.RUnlock()
	if hub == nil {
		return 0
	}
	return hub.clientCount()
}
