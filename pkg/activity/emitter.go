package activity

import (
	"context"
	"slices"
	"strings"
)

// DefaultChannel is the channel of events emitted without one.
const DefaultChannel = "datastore-options"

// Config sets the defaults an Emitter stamps on events. ActorID and
// TenantID identify who runs the configuration, usually the service
// account of the bootstrap. Verbs, when set, restricts emission to the
// listed verbs, e.g. only VerbOverridden to audit shadowed declarations.
type Config struct {
	Enabled  bool
	Channel  string
	ActorID  string
	TenantID string
	Verbs    []string
}

// Emitter applies Config to events and forwards them to hooks. The nil
// Emitter is disabled.
type Emitter struct {
	hooks Hooks
	cfg   Config
}

// NewEmitter returns an emitter over the non-nil hooks. It is disabled when
// cfg.Enabled is false or no hook remains.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	kept := make(Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			kept = append(kept, hook)
		}
	}
	cfg.Channel = strings.TrimSpace(cfg.Channel)
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	cfg.Verbs = slices.Clone(cfg.Verbs)
	return &Emitter{hooks: kept, cfg: cfg}
}

// Enabled reports whether Emit reaches any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.cfg.Enabled && len(e.hooks) > 0
}

// Wants reports whether events with verb are emitted.
func (e *Emitter) Wants(verb string) bool {
	if !e.Enabled() {
		return false
	}
	return len(e.cfg.Verbs) == 0 || slices.Contains(e.cfg.Verbs, strings.TrimSpace(verb))
}

// Emit fills the blank channel, actor and tenant of event from the
// configuration and notifies the hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Wants(event.Verb) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.cfg.Channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.cfg.ActorID
	}
	if strings.TrimSpace(event.TenantID) == "" {
		event.TenantID = e.cfg.TenantID
	}
	return e.hooks.Notify(ctx, event)
}
