// Package subscript is the subscription registry: the topic -> subscriber
// fan-out map every PUBLISH is broadcast through. Grounded on
// JKI757-CatLocator/go-mqtt-server's internal/mqttbroker.Broker
// (clients map + RWMutex + forwardToSubscribers), generalized from a flat
// client scan into the two-level Topic -> {ClientID -> Sender} map spec.md
// §4.5 requires.
package subscript

import (
	"log/slog"
	"sync"

	"github.com/devicelink/mqttbroker/internal/model"
)

// Sender is the minimal interface the registry needs to deliver an
// envelope to a subscriber: internal/line.Line implements it by pushing
// onto its inbound channel.
type Sender interface {
	Deliver(model.Envelope)
}

// Registry is the process-wide (but explicitly constructed and injected)
// subscription table. The zero value is not usable; use New.
type Registry struct {
	logger *slog.Logger

	mu     sync.Mutex
	topics map[model.Topic]map[model.ClientID]Sender
}

// New constructs an empty registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{logger: logger, topics: make(map[model.Topic]map[model.ClientID]Sender)}
}

// Contain reports whether a topic entry exists.
func (r *Registry) Contain(topic model.Topic) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.topics[topic]
	return ok
}

// NewSubscript creates the topic entry if absent, then inserts (or
// replaces) clientID -> sender.
func (r *Registry) NewSubscript(topic model.Topic, clientID model.ClientID, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.topics[topic]
	if !ok {
		subs = make(map[model.ClientID]Sender)
		r.topics[topic] = subs
	}
	subs[clientID] = sender
}

// Subscript requires the topic entry to already exist and inserts or
// replaces clientID -> sender within it. If the topic entry does not
// exist, this is a no-op (callers that want create-if-absent use
// NewSubscript instead — spec.md §4.5 draws this distinction).
func (r *Registry) Subscript(topic model.Topic, clientID model.ClientID, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.topics[topic]
	if !ok {
		return
	}
	subs[clientID] = sender
}

// Unsubscript removes clientID from topic's entry, if present.
func (r *Registry) Unsubscript(topic model.Topic, clientID model.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := r.topics[topic]; ok {
		delete(subs, clientID)
	}
}

// Exit removes clientID from every topic's entry. Called when a Line
// terminates (spec.md §3: "On Terminated, every topic drops that client id").
func (r *Registry) Exit(clientID model.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, subs := range r.topics {
		delete(subs, clientID)
	}
}

// Broadcast enqueues env on every subscriber of topic. The registry never
// filters by originator; that decision belongs to the dispatcher/Line
// layer (spec.md §4.5, §9's "self-delivery suppression" redesign note).
//
// The subscriber list is snapshotted under the lock and delivered outside
// it, per spec.md §4.5's suggested optimization — holding the mutex across
// every subscriber's channel send would otherwise let one slow subscriber
// stall delivery (and every other registry operation) broker-wide.
func (r *Registry) Broadcast(topic model.Topic, env model.Envelope) {
	r.mu.Lock()
	subs := r.topics[topic]
	snapshot := make([]Sender, 0, len(subs))
	for _, s := range subs {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		s.Deliver(env)
	}
}

// IsSubscript reports whether clientID currently subscribes to topic.
func (r *Registry) IsSubscript(topic model.Topic, clientID model.ClientID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.topics[topic]
	if !ok {
		return false
	}
	_, ok = subs[clientID]
	return ok
}

// Topics returns every topic with an entry in the registry, including
// topics whose last subscriber has left (spec.md §9: empty entries are
// never garbage-collected — a documented open issue, not fixed here).
func (r *Registry) Topics() []model.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Topic, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	return out
}

// Clients returns the client ids currently subscribed to topic.
func (r *Registry) Clients(topic model.Topic) []model.ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.topics[topic]
	out := make([]model.ClientID, 0, len(subs))
	for c := range subs {
		out = append(out, c)
	}
	return out
}

// ClientLen returns the number of subscribers on topic.
func (r *Registry) ClientLen(topic model.Topic) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics[topic])
}

// Len returns the number of topic entries in the registry (including
// empty ones).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}
