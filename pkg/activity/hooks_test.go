package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"target": "text"}
	evt := Event{
		Verb:       " binding.propagated ",
		ActorID:    " actor ",
		TenantID:   " tenant ",
		ObjectType: " binding ",
		ObjectID:   " e1:text ",
		Channel:    " bindings ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "binding.propagated" || got.ObjectType != "binding" || got.ObjectID != "e1:text" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.TenantID != "tenant" || got.Channel != "bindings" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["target"] = "changed"
	if meta["target"] != "text" {
		t.Fatalf("expected original metadata untouched: %+v", meta)
	}
}

func TestHooksNotifyDropsIncompleteEvents(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{Verb: "binding.attached"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	capture := &CaptureHook{}
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	//nolint:staticcheck // nil context is normalized by Notify
	err := hooks.Notify(nil, Event{Verb: "binding.attached", ObjectType: "binding", ObjectID: "text"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events))
	}
}

func TestHooksEnabledIgnoresNil(t *testing.T) {
	if (Hooks{nil, nil}).Enabled() {
		t.Fatalf("expected nil-only hooks to be disabled")
	}
	if len((Hooks{nil, &CaptureHook{}}).Compact()) != 1 {
		t.Fatalf("expected compact to drop nil hooks")
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := Event{Verb: "binding.attached", ObjectType: "binding", ObjectID: "text"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true, ActorID: "actor"})
	if !enabled.Enabled() {
		t.Fatalf("expected emitter to be enabled")
	}
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(capture.Events))
	}
	if capture.Events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", capture.Events[0].Channel)
	}
	if capture.Events[0].ActorID != "actor" {
		t.Fatalf("expected default actor applied, got %q", capture.Events[0].ActorID)
	}
}

func TestEmitterPreservesExplicitFields(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default", ActorID: "actor"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       "binding.attached",
		ObjectType: "binding",
		ObjectID:   "text",
		Channel:    "custom",
		ActorID:    "other",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	got := capture.Events[0]
	if got.Channel != "custom" || got.ActorID != "other" {
		t.Fatalf("expected explicit fields preserved, got %+v", got)
	}
	if !got.OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", got.OccurredAt)
	}
}

func TestCaptureHookHelpers(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	_ = hooks.Notify(context.Background(), BuildBindingAttachedEvent(BindingEventInput{Target: "a"}))
	_ = hooks.Notify(context.Background(), BuildGuardMissEvent(BindingEventInput{Target: "a"}))
	_ = hooks.Notify(context.Background(), BuildBindingAttachedEvent(BindingEventInput{Target: "b"}))

	verbs := capture.Verbs()
	if len(verbs) != 3 || verbs[1] != VerbGuardMiss {
		t.Fatalf("unexpected verbs %v", verbs)
	}
	if got := capture.Filter(VerbBindingAttached); len(got) != 2 {
		t.Fatalf("expected two attached events, got %d", len(got))
	}
	capture.Reset()
	if len(capture.Verbs()) != 0 {
		t.Fatalf("expected reset to drop events")
	}
}
