package optsync

import "github.com/goliatone/go-optsync/pkg/activity"

// WithActivityHooks attaches hooks notified of binding activity. Nil hooks are
// dropped and the slice is copied.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Compact()
	return func(cfg *engineConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig sets the channel, actor and tenant stamped on events,
// and whether events are emitted at all.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *engineConfig) {
		cfg.activityConfig = config
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (e *Engine) ActivityHooks() activity.Hooks {
	if e == nil {
		return nil
	}
	return e.cfg.activityHooks.Compact()
}
