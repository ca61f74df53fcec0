package optsync_test

import (
	"strings"
	"testing"

	optsync "github.com/goliatone/go-optsync"
	"github.com/goliatone/go-optsync/scope"
)

func TestLoadBindingConfig(t *testing.T) {
	decl, err := optsync.LoadBindingConfig([]byte(`
text: vm.text
items:
  dataPath: vm.items
  deep: true
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := summary(resolve(t, decl, nil).Entries)
	if got["text"] != "vm.text|auto" || got["items"] != "vm.items|deep" {
		t.Fatalf("unexpected entries %v", got)
	}
}

func TestLoadBindingConfigEmpty(t *testing.T) {
	decl, err := optsync.LoadBindingConfig(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if decl == nil || len(decl) != 0 {
		t.Fatalf("expected empty map, got %v", decl)
	}
}

func TestLoadComponentConfigWithDefaults(t *testing.T) {
	cfg, err := optsync.LoadComponentConfig([]byte(`
options:
  title: own
bindings:
  text: vm.text
defaults:
  - options:
      title: base
      size: 3
    bindings:
      text: base.text
      footer: {dataPath: vm.footer, mode: shallow}
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	res := resolve(t, cfg, nil)
	got := summary(res.Entries)
	if got["text"] != "vm.text|auto" || got["footer"] != "vm.footer|shallow" {
		t.Fatalf("unexpected entries %v", got)
	}
	if res.Options["title"] != "own" || res.Options["size"] != 3 {
		t.Fatalf("unexpected options %v", res.Options)
	}
}

func TestLoadComponentConfigIndirect(t *testing.T) {
	cfg, err := optsync.LoadComponentConfig([]byte("indirect: vm.bindings\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sc := scope.New(map[string]any{"vm": map[string]any{
		"bindings": map[string]any{"text": "vm.text"},
		"text":     "hello",
	}})
	e := newEngine(t, sc, &recordingHost{}, cfg)
	defer e.Dispose()
	if v, _ := e.Read("text"); v != "hello" {
		t.Fatalf("expected indirect binding attached, got %v", v)
	}
}

func TestLoadComponentConfigErrors(t *testing.T) {
	cases := map[string]string{
		"bindings and indirect": "bindings: {text: vm.text}\nindirect: vm.bindings\n",
		"nested conflict":       "defaults:\n  - bindings: {a: vm.a}\n    indirect: vm.b\n",
		"unknown key":           "binding: {text: vm.text}\n",
		"malformed":             "options: [\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := optsync.LoadComponentConfig([]byte(doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), "load component config") {
				t.Fatalf("expected wrapped error, got %v", err)
			}
		})
	}
}
