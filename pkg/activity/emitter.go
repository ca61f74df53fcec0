package activity

import (
	"context"
	"strings"
)

// DefaultChannel is used for events emitted without a channel.
const DefaultChannel = "bindings"

// Config controls activity emission.
type Config struct {
	Enabled bool
	Channel string
	// ActorID and TenantID are stamped on events that do not set them.
	ActorID  string
	TenantID string
}

// Emitter fans out events to hooks while applying configured defaults.
type Emitter struct {
	hooks    Hooks
	enabled  bool
	channel  string
	actorID  string
	tenantID string
}

// NewEmitter constructs an emitter. It is disabled when cfg.Enabled is false
// or no non-nil hook is given.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	compact := hooks.Compact()
	return &Emitter{
		hooks:    compact,
		enabled:  cfg.Enabled && len(compact) > 0,
		channel:  channel,
		actorID:  strings.TrimSpace(cfg.ActorID),
		tenantID: strings.TrimSpace(cfg.TenantID),
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit forwards the event to all hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.actorID
	}
	if strings.TrimSpace(event.TenantID) == "" {
		event.TenantID = e.tenantID
	}
	return e.hooks.Notify(ctx, event)
}
