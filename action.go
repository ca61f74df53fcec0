package optsync

import (
	"fmt"
	"strings"
)

// Built-in action categories exempt from transaction wrapping. Categories are
// plain strings; callers may add their own with WithExemptCategories.
const (
	CategoryInternal  = "internal"
	CategoryRendering = "rendering"
)

// Action is a callback option of a component.
type Action func(ActionEvent) (any, error)

// ActionEvent is passed to an Action. Engine is the component the action
// belongs to.
type ActionEvent struct {
	Engine   *Engine
	Args     map[string]any
	Category string
}

// ActionOption configures WrapAction.
type ActionOption func(*actionConfig)

type actionConfig struct {
	category string
}

// WithCategory tags the action with a category.
func WithCategory(category string) ActionOption {
	return func(cfg *actionConfig) {
		cfg.category = category
	}
}

// WrapAction returns an Action that runs fn inside one runtime transaction,
// so model writes made by fn are picked up by a single notification cycle.
// fn runs directly when wrapping is disabled or its category is exempt. The
// result of fn is returned unchanged. A nil fn yields a nil result without
// opening a transaction.
func (e *Engine) WrapAction(fn Action, opts ...ActionOption) Action {
	cfg := actionConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return func(event ActionEvent) (any, error) {
		if fn == nil {
			return nil, nil
		}
		event.Engine = e
		if event.Category == "" {
			event.Category = cfg.category
		}
		if !e.wrapsCategory(event.Category) {
			return fn(event)
		}

		var result any
		e.cfg.metrics.transaction("action")
		err := e.runtime.RunInTransaction(func() error {
			var err error
			result, err = fn(event)
			return err
		})
		return result, err
	}
}

func (e *Engine) wrapsCategory(category string) bool {
	if !e.cfg.wrapActions {
		return false
	}
	_, exempt := e.cfg.exempt[category]
	return !exempt
}

// ExpressionAction builds an action from source. An assignment such as
// `vm.value = "x + y"` evaluates the right-hand side with the call arguments
// in scope and writes it through the assignable left-hand side; anything
// else is evaluated and its value returned.
func (e *Engine) ExpressionAction(source string, opts ...ActionOption) (Action, error) {
	lhs, rhs, assign := splitAssignment(source)
	if !assign {
		expr, err := e.parser.Parse(source)
		if err != nil {
			return nil, err
		}
		return e.WrapAction(func(event ActionEvent) (any, error) {
			return evaluate(expr, e.model, event.Args)
		}, opts...), nil
	}

	target, err := e.parser.Parse(lhs)
	if err != nil {
		return nil, err
	}
	if !target.Assignable() {
		return nil, fmt.Errorf("%w: %q", ErrNotAssignable, lhs)
	}
	value, err := e.parser.Parse(rhs)
	if err != nil {
		return nil, err
	}
	return e.WrapAction(func(event ActionEvent) (any, error) {
		v, err := evaluate(value, e.model, event.Args)
		if err != nil {
			return nil, err
		}
		if err := target.Set(e.model, v); err != nil {
			return nil, err
		}
		return v, nil
	}, opts...), nil
}

// splitAssignment splits at the first top-level `=` that is not part of a
// comparison operator. Quoted and bracketed text is skipped.
func splitAssignment(source string) (lhs, rhs string, ok bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '[' || c == '(' || c == '{':
			depth++
		case c == ']' || c == ')' || c == '}':
			depth--
		case c == '=' && depth == 0:
			if i+1 < len(source) && source[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && strings.IndexByte("!<>=", source[i-1]) >= 0 {
				continue
			}
			return strings.TrimSpace(source[:i]), strings.TrimSpace(source[i+1:]), true
		}
	}
	return "", "", false
}
