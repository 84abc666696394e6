// Package outbox runs the side effects of a committed state change. Effects
// are dispatched only after the owning transaction commits; a failing effect
// is logged and counted and never reaches the caller.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dimitrije/toolshare/internal/metrics"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/google/uuid"
)

const (
	KindInviteNotify = "invite.notify"
	KindAllowlistAdd = "allowlist.add"
	KindSharingEvent = "sharing.event"
)

// Sharing event types broadcast to project subscribers.
const (
	EventAccessGranted = "access_granted"
	EventAccessRevoked = "access_revoked"
	EventInviteCreated = "invite_created"
	EventInviteRevoked = "invite_revoked"
)

type Effect struct {
	Kind    string
	Payload []byte
}

func NewEffect(kind string, payload any) (Effect, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Effect{}, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	return Effect{Kind: kind, Payload: data}, nil
}

func (e Effect) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// InviteNotification carries what the notification collaborator needs.
type InviteNotification struct {
	InviteID    uuid.UUID          `json:"invite_id"`
	Email       string             `json:"email"`
	Token       string             `json:"token"`
	InviterName string             `json:"inviter_name"`
	ProjectName string             `json:"project_name"`
	ToolName    string             `json:"tool_name"`
	Level       models.AccessLevel `json:"level"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

type AllowlistEntry struct {
	InviteID uuid.UUID `json:"invite_id"`
	Email    string    `json:"email"`
	Source   string    `json:"source"`
}

type SharingEvent struct {
	Type      string             `json:"type"`
	ProjectID uuid.UUID          `json:"project_id"`
	ToolKey   string             `json:"tool_key"`
	UserID    *uuid.UUID         `json:"user_id,omitempty"`
	InviteID  *uuid.UUID         `json:"invite_id,omitempty"`
	Email     string             `json:"email,omitempty"`
	Level     models.AccessLevel `json:"level,omitempty"`
}

// Dispatcher hands committed effects to their handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, effects ...Effect)
}

type HandlerFunc func(ctx context.Context, e Effect) error

// Registry maps effect kinds to handlers and records their outcome.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	metrics  *metrics.Metrics
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc), metrics: m}
}

func (r *Registry) Handle(kind string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = fn
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Run executes the handler for e. The returned error is informational; callers
// that retry (the asynq worker) use it, everyone else ignores it.
func (r *Registry) Run(ctx context.Context, e Effect) error {
	r.mu.RLock()
	fn, ok := r.handlers[e.Kind]
	r.mu.RUnlock()

	if !ok {
		logger.Warn().Str("kind", e.Kind).Msg("no handler registered for effect, dropping")
		r.failed(e.Kind)
		return fmt.Errorf("no handler for effect kind %q", e.Kind)
	}

	if err := fn(ctx, e); err != nil {
		logger.Error().Err(err).Str("kind", e.Kind).Msg("effect failed")
		r.failed(e.Kind)
		return err
	}

	if r.metrics != nil {
		r.metrics.OutboxDispatchedTotal.WithLabelValues(e.Kind).Inc()
	}
	return nil
}

func (r *Registry) failed(kind string) {
	if r.metrics != nil {
		r.metrics.OutboxFailuresTotal.WithLabelValues(kind).Inc()
	}
}

// Discard drops every effect. Used by tools that mutate state without side effects.
type Discard struct{}

func (Discard) Dispatch(context.Context, ...Effect) {}
