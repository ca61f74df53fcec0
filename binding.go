package optsync

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-optsync/internal/hydrate"
	"github.com/goliatone/go-optsync/layering"
	"github.com/goliatone/go-optsync/pathstore"
	"github.com/goliatone/go-optsync/watch"
)

// maxIndirection bounds chains of Indirect declarations.
const maxIndirection = 8

// BindingEntry pairs an option path with the model expression it mirrors.
type BindingEntry struct {
	Target     pathstore.Path
	Source     string
	Mode       watch.Mode
	Expression Expression
}

// Name returns the canonical target path.
func (e BindingEntry) Name() string { return e.Target.String() }

// BindingSpec is the per-path binding object form.
type BindingSpec struct {
	DataPath string `json:"dataPath" yaml:"dataPath"`
	Deep     *bool  `json:"deep,omitempty" yaml:"deep,omitempty"`
	Mode     string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Indirect declares bindings held by the model: the expression is evaluated
// at configure time and must yield a binding map.
type Indirect string

// Inherited is a binding declaration with an explicit fallback chain.
// Defaults are ordered from strongest to weakest; Own beats all of them.
type Inherited struct {
	Own      any
	Defaults []any
}

// ComponentConfig is the configuration object of a bound component. Options
// seed the option store; Bindings may be omitted and come from Defaults.
type ComponentConfig struct {
	Options  map[string]any
	Bindings any
	Defaults []ComponentConfig
}

// Resolution is the flattened outcome of a binding declaration.
type Resolution struct {
	Entries []BindingEntry
	Options map[string]any
}

// ResolveContext supplies what resolution needs from the engine.
type ResolveContext struct {
	Parser    Parser
	Model     any
	Canonical func(pathstore.Path) pathstore.Path
}

type declaration struct {
	Source string
	Mode   watch.Mode
}

var specDecoder = hydrate.NewDecoder[BindingSpec](
	hydrate.WithPreHook[BindingSpec](normalizeSpecKeys),
	hydrate.WithDisallowUnknownFields[BindingSpec](),
)

func normalizeSpecKeys(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	for _, alias := range []string{"data_path", "datapath", "DataPath"} {
		value, ok := payload[alias]
		if !ok {
			continue
		}
		if _, exists := payload["dataPath"]; exists {
			return nil, fmt.Errorf("both %q and %q are set", alias, "dataPath")
		}
		payload["dataPath"] = value
		delete(payload, alias)
	}
	return payload, nil
}

// ResolveBindings turns a declaration into binding entries sorted by
// canonical target path. Accepted shapes are map[string]string,
// map[string]BindingSpec, map[string]any holding expressions or per-path
// objects, Indirect, Inherited and ComponentConfig. All errors wrap
// ErrBindingResolution.
func ResolveBindings(decl any, rc ResolveContext) (Resolution, error) {
	if rc.Parser == nil {
		rc.Parser = NewParser()
	}
	if rc.Canonical == nil {
		rc.Canonical = func(p pathstore.Path) pathstore.Path { return p }
	}

	var res Resolution
	if cfg, ok := componentConfig(decl); ok {
		res.Options = mergeOptions(cfg)
	}

	flat, err := flatten(decl, rc, 0)
	if err != nil {
		return Resolution{}, err
	}

	targets := make([]string, 0, len(flat))
	for target := range flat {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	type candidate struct {
		entry     BindingEntry
		canonical bool
	}
	byPath := make(map[string]candidate, len(flat))
	var errs []error
	for _, target := range targets {
		d := flat[target]
		entry, err := resolveEntry(target, d, rc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		key := entry.Target.String()
		isCanonical := key == target
		if existing, ok := byPath[key]; ok && (existing.canonical || !isCanonical) {
			continue
		}
		byPath[key] = candidate{entry: entry, canonical: isCanonical}
	}
	if len(errs) > 0 {
		return Resolution{}, errors.Join(errs...)
	}

	res.Entries = make([]BindingEntry, 0, len(byPath))
	for _, c := range byPath {
		res.Entries = append(res.Entries, c.entry)
	}
	sort.Slice(res.Entries, func(i, j int) bool {
		return res.Entries[i].Name() < res.Entries[j].Name()
	})
	return res, nil
}

func resolveEntry(target string, d declaration, rc ResolveContext) (BindingEntry, error) {
	if strings.TrimSpace(target) == "" {
		return BindingEntry{}, bindingError(target, d.Source, "target path is empty")
	}
	path, err := pathstore.Parse(target)
	if err != nil {
		return BindingEntry{}, &BindingError{Target: target, Expression: d.Source, Err: err}
	}
	if path[0].Kind != pathstore.KeySegment {
		return BindingEntry{}, bindingError(target, d.Source, "target path must start with a key")
	}
	expr, err := rc.Parser.Parse(d.Source)
	if err != nil {
		return BindingEntry{}, &BindingError{Target: target, Expression: d.Source, Err: err}
	}
	return BindingEntry{
		Target:     rc.Canonical(path),
		Source:     expr.Source(),
		Mode:       d.Mode,
		Expression: expr,
	}, nil
}

func flatten(decl any, rc ResolveContext, depth int) (map[string]declaration, error) {
	if cfg, ok := componentConfig(decl); ok {
		decl = inheritedBindings(cfg)
	}

	switch d := decl.(type) {
	case nil:
		return map[string]declaration{}, nil
	case Indirect:
		return flattenIndirect(d, rc, depth)
	case *Inherited:
		if d == nil {
			return map[string]declaration{}, nil
		}
		return flatten(*d, rc, depth)
	case Inherited:
		layers := make([]map[string]declaration, 0, len(d.Defaults)+1)
		for _, layer := range append([]any{d.Own}, d.Defaults...) {
			flat, err := flatten(layer, rc, depth)
			if err != nil {
				return nil, err
			}
			layers = append(layers, flat)
		}
		merged := layering.MergeLayers(layers...)
		if merged == nil {
			merged = map[string]declaration{}
		}
		return merged, nil
	case map[string]string:
		out := make(map[string]declaration, len(d))
		for target, source := range d {
			out[target] = declaration{Source: source}
		}
		return out, nil
	case map[string]BindingSpec:
		out := make(map[string]declaration, len(d))
		for target, spec := range d {
			entry, err := fromSpec(target, spec)
			if err != nil {
				return nil, err
			}
			out[target] = entry
		}
		return out, nil
	case map[string]any:
		out := make(map[string]declaration, len(d))
		for target, value := range d {
			entry, err := fromValue(target, value)
			if err != nil {
				return nil, err
			}
			out[target] = entry
		}
		return out, nil
	default:
		return nil, bindingError("", "", "unsupported binding declaration %T", decl)
	}
}

func flattenIndirect(d Indirect, rc ResolveContext, depth int) (map[string]declaration, error) {
	source := string(d)
	if depth >= maxIndirection {
		return nil, bindingError("", source, "indirect declarations nested deeper than %d", maxIndirection)
	}
	expr, err := rc.Parser.Parse(source)
	if err != nil {
		return nil, &BindingError{Expression: source, Err: err}
	}
	value, err := expr.Get(rc.Model)
	if err != nil {
		return nil, &BindingError{Expression: source, Err: err}
	}
	if value == nil {
		return nil, &BindingError{Expression: source, Err: ErrIndirectPending}
	}
	switch value.(type) {
	case map[string]any, map[string]string, map[string]BindingSpec, Indirect, Inherited, *Inherited:
		return flatten(value, rc, depth+1)
	default:
		return nil, bindingError("", source, "indirect declaration resolved to %T, want a binding map", value)
	}
}

func fromValue(target string, value any) (declaration, error) {
	switch v := value.(type) {
	case string:
		return declaration{Source: v}, nil
	case BindingSpec:
		return fromSpec(target, v)
	case *BindingSpec:
		if v == nil {
			return declaration{}, bindingError(target, "", "binding object is nil")
		}
		return fromSpec(target, *v)
	case map[string]any:
		spec, err := specDecoder.Decode(hydrate.Context{Target: target}, v)
		if err != nil {
			return declaration{}, &BindingError{Target: target, Err: err}
		}
		return fromSpec(target, spec)
	default:
		return declaration{}, bindingError(target, "", "unsupported binding value %T", value)
	}
}

func fromSpec(target string, spec BindingSpec) (declaration, error) {
	if strings.TrimSpace(spec.DataPath) == "" {
		return declaration{}, bindingError(target, "", "dataPath is required")
	}
	d := declaration{Source: spec.DataPath}
	switch {
	case spec.Mode != "":
		mode, err := watch.ParseMode(spec.Mode)
		if err != nil {
			return declaration{}, &BindingError{Target: target, Expression: spec.DataPath, Err: err}
		}
		d.Mode = mode
	case spec.Deep != nil && *spec.Deep:
		d.Mode = watch.ModeDeep
	case spec.Deep != nil:
		d.Mode = watch.ModeShallow
	}
	return d, nil
}

func componentConfig(decl any) (ComponentConfig, bool) {
	switch d := decl.(type) {
	case ComponentConfig:
		return d, true
	case *ComponentConfig:
		if d == nil {
			return ComponentConfig{}, true
		}
		return *d, true
	}
	return ComponentConfig{}, false
}

func inheritedBindings(cfg ComponentConfig) Inherited {
	inherited := Inherited{Own: cfg.Bindings}
	for _, def := range cfg.Defaults {
		inherited.Defaults = append(inherited.Defaults, inheritedBindings(def))
	}
	return inherited
}

func mergeOptions(cfg ComponentConfig) map[string]any {
	layers := []map[string]any{cfg.Options}
	for _, def := range cfg.Defaults {
		layers = append(layers, mergeOptions(def))
	}
	return layering.MergeLayers(layers...)
}
