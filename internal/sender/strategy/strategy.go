// Package strategy defines the interface for notification sending strategies.
package strategy

import (
	"context"
	"sort"
	"sync"

	"github.com/afikmenashe/alert-engine/internal/notification"
)

// NotificationSender is the interface that all channel senders must implement.
type NotificationSender interface {
	// Send delivers the notification over this channel. Implementations
	// must honor ctx cancellation; the dispatcher bounds every call.
	Send(ctx context.Context, n *notification.Notification) error

	// Type returns the channel name this sender handles (e.g., "email", "webhook").
	Type() string
}

// Registry maps channel names to sender strategies.
type Registry struct {
	mu      sync.RWMutex
	senders map[string]NotificationSender
}

// NewRegistry creates a new sender registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[string]NotificationSender),
	}
}

// Register registers a sender under its Type. A later registration for the
// same type replaces the earlier one.
func (r *Registry) Register(sender NotificationSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[sender.Type()] = sender
}

// Get retrieves a sender strategy by channel name.
func (r *Registry) Get(channel string) (NotificationSender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sender, ok := r.senders[channel]
	return sender, ok
}

// List returns all registered channel names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.senders))
	for t := range r.senders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
