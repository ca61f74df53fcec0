package hydrate

import (
	"errors"
	"strings"
	"testing"
)

type spec struct {
	DataPath string `json:"dataPath"`
	Deep     *bool  `json:"deep,omitempty"`
}

func TestDecodeBindingObject(t *testing.T) {
	decoder := NewDecoder[spec](WithDisallowUnknownFields[spec]())

	got, err := decoder.Decode(Context{Target: "items"}, map[string]any{
		"dataPath": "vm.items",
		"deep":     false,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DataPath != "vm.items" || got.Deep == nil || *got.Deep {
		t.Fatalf("unexpected spec %+v", got)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	decoder := NewDecoder[spec](WithDisallowUnknownFields[spec]())

	_, err := decoder.Decode(Context{Target: "items", Origin: "yaml"}, map[string]any{
		"dataPath": "vm.items",
		"shallow":  true,
	})
	if err == nil {
		t.Fatalf("expected unknown key to fail")
	}
	if !strings.Contains(err.Error(), `"items" (yaml)`) {
		t.Fatalf("expected target and origin in error, got %v", err)
	}
}

func TestPreHookRewritesWithoutTouchingInput(t *testing.T) {
	input := map[string]any{"data_path": "vm.text"}
	decoder := NewDecoder[spec](
		WithPreHook[spec](func(_ Context, payload map[string]any) (map[string]any, error) {
			if v, ok := payload["data_path"]; ok {
				payload["dataPath"] = v
				delete(payload, "data_path")
			}
			return payload, nil
		}),
		WithDisallowUnknownFields[spec](),
	)

	got, err := decoder.Decode(Context{Target: "text"}, input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DataPath != "vm.text" {
		t.Fatalf("expected alias key to be honoured, got %+v", got)
	}
	if _, ok := input["data_path"]; !ok {
		t.Fatalf("expected caller payload to stay untouched")
	}
}

func TestPostHookErrorsAreWrapped(t *testing.T) {
	missing := errors.New("dataPath is required")
	decoder := NewDecoder[spec](WithPostHook[spec](func(_ Context, s *spec) error {
		if s.DataPath == "" {
			return missing
		}
		return nil
	}))

	_, err := decoder.Decode(Context{Target: "text"}, map[string]any{})
	if !errors.Is(err, missing) {
		t.Fatalf("expected post-hook error, got %v", err)
	}
}

func TestDecodeNilPayload(t *testing.T) {
	if _, err := NewDecoder[spec]().Decode(Context{Target: "text"}, nil); err == nil {
		t.Fatalf("expected nil payload to fail")
	}
}
