package optsync

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogSatisfiesLogger(t *testing.T) {
	var buf bytes.Buffer
	var logger Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := applyOptions([]Option{WithLogger(logger)})
	cfg.evaluationLogger().LogEvaluation(EvaluatorLogEvent{
		Engine: "expr",
		Expr:   "vm.a +",
		Scope:  "grid",
		Op:     "get",
		Err:    errors.New("unexpected end"),
	})

	out := buf.String()
	if !strings.Contains(out, "expression evaluation failed") || !strings.Contains(out, "scope=grid") {
		t.Fatalf("expected evaluation failure to be logged, got %q", out)
	}
}

func TestEvaluatorLoggerOverridesDefault(t *testing.T) {
	var events []EvaluatorLogEvent
	cfg := applyOptions([]Option{WithEvaluatorLogger(EvaluatorLoggerFunc(func(e EvaluatorLogEvent) {
		events = append(events, e)
	}))})

	cfg.evaluationLogger().LogEvaluation(EvaluatorLogEvent{Engine: "cel", Expr: "x"})
	if len(events) != 1 || events[0].Engine != "cel" {
		t.Fatalf("expected custom evaluator logger to receive event, got %+v", events)
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	cfg := applyOptions([]Option{WithLogger(nil)})
	cfg.logger.Error("ignored", "k", "v")
	if _, ok := cfg.logger.(noopLogger); !ok {
		t.Fatalf("expected noop logger, got %T", cfg.logger)
	}
}
