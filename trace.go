package optsync

import (
	"encoding/json"

	"github.com/goliatone/go-optsync/pathstore"
)

// Trace reports the option value at a path together with every binding that
// reads or writes it.
type Trace struct {
	Path     string       `json:"path"`
	Value    any          `json:"value,omitempty"`
	Found    bool         `json:"found"`
	Locked   bool         `json:"locked"`
	Bindings []Provenance `json:"bindings,omitempty"`
}

// Provenance describes one binding linked to a traced path.
type Provenance struct {
	Target     string `json:"target"`
	Expression string `json:"expression"`
	Mode       string `json:"mode"`
	Assignable bool   `json:"assignable"`
	ModelValue any    `json:"model_value,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Trace inspects path. Aliased paths are reported under their canonical
// form. An invalid path yields ErrInvalidPath from the pathstore package.
func (e *Engine) Trace(path string) (Trace, error) {
	p, err := pathstore.Parse(path)
	if err != nil {
		return Trace{}, err
	}
	p = e.store.Canonical(p)
	value, found := e.store.GetPath(p)
	trace := Trace{
		Path:   p.String(),
		Value:  value,
		Found:  found,
		Locked: e.locks.Locked(p),
	}
	for _, b := range e.linked(p) {
		prov := Provenance{
			Target:     b.entry.Name(),
			Expression: b.entry.Source,
			Mode:       b.entry.Mode.String(),
			Assignable: b.entry.Expression.Assignable(),
		}
		if mv, err := b.entry.Expression.Get(e.model); err != nil {
			prov.Error = err.Error()
		} else {
			prov.ModelValue = mv
		}
		trace.Bindings = append(trace.Bindings, prov)
	}
	return trace, nil
}

// ToJSON serialises the trace for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON decodes a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
