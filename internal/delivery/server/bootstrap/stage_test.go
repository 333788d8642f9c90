package bootstrap

import (
	"errors"
	"fmt"
	"testing"

	"aipolish/internal/shared/logging"
)

func TestRunStagesFailsOnRequired(t *testing.T) {
	degraded := NewDegradedComponents()

	stages := []Stage{
		{Name: "ok", Required: true, Init: func() error { return nil }},
		{Name: "fail", Required: true, Init: func() error { return fmt.Errorf("boom") }},
		{Name: "unreached", Required: true, Init: func() error {
			t.Fatal("should not be reached")
			return nil
		}},
	}

	err := RunStages(stages, degraded, logging.Nop())
	if err == nil {
		t.Fatal("expected error from required stage")
	}
	if !degraded.IsEmpty() {
		t.Fatal("no optional stages should have been recorded")
	}
}

func TestRunStagesPreservesTypedCause(t *testing.T) {
	sentinel := errors.New("typed")
	err := RunStages([]Stage{
		{Name: "env-file", Required: true, Init: func() error { return sentinel }},
	}, nil, nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
}

func TestRunStagesRecordsDegradedForOptional(t *testing.T) {
	degraded := NewDegradedComponents()
	var reached bool

	stages := []Stage{
		{Name: "log-file", Required: false, Init: func() error { return fmt.Errorf("read-only disk") }},
		{Name: "metrics", Required: false, Init: func() error { return fmt.Errorf("registry clash") }},
		{Name: "required", Required: true, Init: func() error { reached = true; return nil }},
	}

	if err := RunStages(stages, degraded, logging.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reached {
		t.Fatal("required stage was not reached")
	}
	names := degraded.Names()
	if len(names) != 2 || names[0] != "log-file" || names[1] != "metrics" {
		t.Fatalf("unexpected degraded names %v", names)
	}
	if degraded.Map()["log-file"] != "read-only disk" {
		t.Fatalf("unexpected reason %q", degraded.Map()["log-file"])
	}
}
