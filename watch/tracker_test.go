package watch

import "testing"

func TestTrackerShallowIgnoresInPlaceMutation(t *testing.T) {
	obj := map[string]any{"text": "a"}
	tr := NewTracker(ModeShallow, obj)

	obj["text"] = "b"
	if changed, _ := tr.Check(obj); changed {
		t.Fatalf("expected shallow tracker to ignore in-place mutation")
	}
	if changed, _ := tr.Check(map[string]any{"text": "b"}); !changed {
		t.Fatalf("expected shallow tracker to report a replaced container")
	}
}

func TestTrackerDeepDetectsInPlaceMutation(t *testing.T) {
	obj := map[string]any{"text": "a"}
	tr := NewTracker(ModeDeep, obj)

	obj["text"] = "b"
	changed, previous := tr.Check(obj)
	if !changed {
		t.Fatalf("expected deep tracker to report nested mutation")
	}
	if previous.(map[string]any)["text"] != "a" {
		t.Fatalf("expected deep previous to be a snapshot, got %#v", previous)
	}
	if changed, _ := tr.Check(map[string]any{"text": "b"}); changed {
		t.Fatalf("expected structurally equal replacement to be ignored")
	}
}

func TestTrackerCollectionChecksSlots(t *testing.T) {
	first := map[string]any{"value": 1}
	items := []any{first, "b"}
	tr := NewTracker(ModeCollection, items)

	first["value"] = 2
	if changed, _ := tr.Check(items); changed {
		t.Fatalf("expected collection tracker not to descend into slots")
	}

	items[1] = "c"
	if changed, _ := tr.Check(items); !changed {
		t.Fatalf("expected slot replacement to be reported")
	}

	items = append(items, "d")
	if changed, _ := tr.Check(items); !changed {
		t.Fatalf("expected length change to be reported")
	}
	if changed, _ := tr.Check(items); changed {
		t.Fatalf("expected settled collection to stay clean")
	}
}

func TestEffectiveMode(t *testing.T) {
	if got := Effective(ModeAuto, []any{1}); got != ModeCollection {
		t.Fatalf("expected collection for slices, got %v", got)
	}
	if got := Effective(ModeAuto, map[string]any{}); got != ModeDeep {
		t.Fatalf("expected deep for maps, got %v", got)
	}
	if got := Effective(ModeShallow, []any{1}); got != ModeShallow {
		t.Fatalf("expected explicit mode to be kept, got %v", got)
	}
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{"": ModeAuto, "Deep": ModeDeep, "shallow": ModeShallow, "collection": ModeCollection} {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := ParseMode("sideways"); err == nil {
		t.Fatalf("expected unknown mode to fail")
	}
}
