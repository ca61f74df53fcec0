package optsync

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// componentDocument is the YAML layout of a ComponentConfig:
//
//	options:
//	  text: hello
//	bindings:
//	  text: vm.text
//	  items: {dataPath: vm.items, deep: true}
//	defaults:
//	  - bindings: {title: vm.title}
//
// indirect may replace bindings with an expression naming a binding map held
// by the model.
type componentDocument struct {
	Options  map[string]any      `yaml:"options,omitempty"`
	Bindings map[string]any      `yaml:"bindings,omitempty"`
	Indirect string              `yaml:"indirect,omitempty"`
	Defaults []componentDocument `yaml:"defaults,omitempty"`
}

// LoadBindingConfig decodes a YAML mapping of target paths to expressions or
// per-path binding objects. An empty document yields an empty map.
func LoadBindingConfig(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := decodeYAML(data, &out); err != nil {
		return nil, fmt.Errorf("optsync: load binding config: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// LoadComponentConfig decodes a YAML component configuration with options,
// bindings and a defaults chain. Unknown keys are rejected.
func LoadComponentConfig(data []byte) (ComponentConfig, error) {
	var doc componentDocument
	if err := decodeYAML(data, &doc); err != nil {
		return ComponentConfig{}, fmt.Errorf("optsync: load component config: %w", err)
	}
	cfg, err := doc.config()
	if err != nil {
		return ComponentConfig{}, fmt.Errorf("optsync: load component config: %w", err)
	}
	return cfg, nil
}

func (doc componentDocument) config() (ComponentConfig, error) {
	cfg := ComponentConfig{Options: doc.Options}
	switch {
	case doc.Indirect != "" && doc.Bindings != nil:
		return ComponentConfig{}, errors.New("bindings and indirect are mutually exclusive")
	case doc.Indirect != "":
		cfg.Bindings = Indirect(doc.Indirect)
	case doc.Bindings != nil:
		cfg.Bindings = doc.Bindings
	}
	for i, def := range doc.Defaults {
		layer, err := def.config()
		if err != nil {
			return ComponentConfig{}, fmt.Errorf("defaults[%d]: %w", i, err)
		}
		cfg.Defaults = append(cfg.Defaults, layer)
	}
	return cfg, nil
}

func decodeYAML(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
