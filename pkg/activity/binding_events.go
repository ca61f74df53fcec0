package activity

import (
	"strings"
	"time"
)

// Verbs of binding events.
const (
	VerbBindingAttached   = "binding.attached"
	VerbBindingDetached   = "binding.detached"
	VerbBindingPropagated = "binding.propagated"
	VerbGuardMiss         = "binding.guard_miss"
)

// ObjectBinding is the object type of every binding event.
const ObjectBinding = "binding"

// BindingEventInput describes one binding pair at the time of the event.
type BindingEventInput struct {
	EngineID   string
	Engine     string
	Target     string
	Expression string
	Mode       string
	Direction  string
	OldValue   any
	NewValue   any
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildBindingAttachedEvent reports a binding whose model watch was placed.
func BuildBindingAttachedEvent(input BindingEventInput) Event {
	return buildBindingEvent(VerbBindingAttached, input)
}

// BuildBindingDetachedEvent reports a binding whose model watch was removed.
func BuildBindingDetachedEvent(input BindingEventInput) Event {
	return buildBindingEvent(VerbBindingDetached, input)
}

// BuildBindingPropagatedEvent reports a value pushed across a binding.
func BuildBindingPropagatedEvent(input BindingEventInput) Event {
	return buildBindingEvent(VerbBindingPropagated, input)
}

// BuildGuardMissEvent reports a write dropped because its path was locked.
func BuildGuardMissEvent(input BindingEventInput) Event {
	return buildBindingEvent(VerbGuardMiss, input)
}

func buildBindingEvent(verb string, input BindingEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if target := strings.TrimSpace(input.Target); target != "" {
		set("target", target)
	}
	if input.Expression != "" {
		set("expression", input.Expression)
	}
	if input.Mode != "" {
		set("mode", input.Mode)
	}
	if input.Direction != "" {
		set("direction", input.Direction)
	}
	if input.Engine != "" {
		set("engine", input.Engine)
	}
	if input.OldValue != nil {
		set("old_value", input.OldValue)
	}
	if input.NewValue != nil {
		set("new_value", input.NewValue)
	}

	return Event{
		Verb:       verb,
		ObjectType: ObjectBinding,
		ObjectID:   bindingObjectID(input),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// bindingObjectID is "<engine id>:<target>", falling back to whichever part
// is present.
func bindingObjectID(input BindingEventInput) string {
	engine := strings.TrimSpace(input.EngineID)
	target := strings.TrimSpace(input.Target)
	switch {
	case engine != "" && target != "":
		return engine + ":" + target
	case target != "":
		return target
	default:
		return engine
	}
}
