package bootstrap

import (
	"fmt"
	"sort"
	"sync"

	"aipolish/internal/shared/logging"
)

// Stage is one ordered step of launcher startup.
type Stage struct {
	Name     string       // e.g. "env-file", "log-file"
	Required bool         // failure aborts startup; otherwise recorded as degraded
	Init     func() error // runs exactly once, in list order
}

// DegradedComponents tracks optional stages that failed without stopping
// startup.
type DegradedComponents struct {
	mu         sync.RWMutex
	components map[string]string // stage name → error description
}

// NewDegradedComponents creates an empty tracker.
func NewDegradedComponents() *DegradedComponents {
	return &DegradedComponents{
		components: make(map[string]string),
	}
}

// Record marks a component as degraded.
func (d *DegradedComponents) Record(name, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components[name] = reason
}

// Map returns a snapshot of all degraded components.
func (d *DegradedComponents) Map() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.components))
	for k, v := range d.components {
		out[k] = v
	}
	return out
}

// Names returns the degraded stage names in sorted order.
func (d *DegradedComponents) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.components))
	for name := range d.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether no component is degraded.
func (d *DegradedComponents) IsEmpty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.components) == 0
}

// RunStages executes stages in order. A failing required stage stops the run
// and its error is returned wrapped, so callers can still match the typed
// cause with errors.As. Optional failures are recorded in degraded.
func RunStages(stages []Stage, degraded *DegradedComponents, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	for _, stage := range stages {
		logger.Debug("[Bootstrap] stage %s (required=%v)", stage.Name, stage.Required)
		err := stage.Init()
		if err == nil {
			continue
		}
		if stage.Required {
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		logger.Warn("[Bootstrap] optional stage %s failed: %v (continuing)", stage.Name, err)
		if degraded != nil {
			degraded.Record(stage.Name, err.Error())
		}
	}
	return nil
}
