//go:build js_eval

package optsync

import (
	"testing"
	"time"
)

func TestJSEvaluatorReadsModel(t *testing.T) {
	evaluator := NewJSEvaluator()
	got, err := evaluator.Evaluate(RuleContext{Model: map[string]any{"vm": map[string]any{"name": "ada"}}}, "vm.name.toUpperCase()")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != "ADA" {
		t.Fatalf("expected ADA, got %v", got)
	}
}

func TestJSEvaluatorTimeout(t *testing.T) {
	evaluator := NewJSEvaluator(JSWithTimeout(10 * time.Millisecond))
	rule, err := evaluator.Compile("(function(){ for(;;){} })()")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := rule.Evaluate(RuleContext{}); err == nil {
		t.Fatalf("expected runaway evaluation to be interrupted")
	}
}

func TestJSEvaluatorCallsRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	_ = registry.Register("double", func(args ...any) (any, error) {
		return args[0].(int64) * 2, nil
	})
	evaluator := NewJSEvaluator(JSWithFunctionRegistry(registry))
	got, err := evaluator.Evaluate(RuleContext{}, `call("double", 21)`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != int64(42) {
		t.Fatalf("expected 42, got %v (%T)", got, got)
	}
}
