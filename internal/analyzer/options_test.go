package analyzer

import (
	"runtime"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.MaxWorkers != 0 {
		t.Errorf("Expected MaxWorkers to be 0 by default, got %d", opts.MaxWorkers)
	}
	if opts.workers() != runtime.NumCPU() {
		t.Errorf("Expected %d workers, got %d", runtime.NumCPU(), opts.workers())
	}
	if len(opts.Modules) != 0 {
		t.Errorf("Expected all modules by default, got %v", opts.Modules)
	}
	if opts.TrimWhiteFrame {
		t.Error("Expected TrimWhiteFrame to be false by default")
	}
}

func TestSequentialOptions(t *testing.T) {
	if got := SequentialOptions().workers(); got != 1 {
		t.Errorf("Expected 1 worker, got %d", got)
	}
}

func TestOptionBuilders(t *testing.T) {
	base := DefaultOptions()
	names := []string{ModuleContrast, ModuleMinutiaeCount}

	opts := base.WithModules(names...).WithWorkers(3).WithWhiteFrameTrim()

	if opts.workers() != 3 {
		t.Errorf("Expected 3 workers, got %d", opts.workers())
	}
	if !opts.TrimWhiteFrame {
		t.Error("Expected TrimWhiteFrame to be set")
	}
	if len(opts.Modules) != 2 || opts.Modules[0] != ModuleContrast {
		t.Errorf("unexpected modules %v", opts.Modules)
	}

	// builders work on copies
	names[0] = "changed"
	if opts.Modules[0] != ModuleContrast {
		t.Error("WithModules should copy its arguments")
	}
	if base.MaxWorkers != 0 || base.TrimWhiteFrame || base.Modules != nil {
		t.Errorf("base options were modified: %+v", base)
	}
}
