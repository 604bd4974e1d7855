package analyzer

import "runtime"

// AggregatorOptions configures one feature extraction run
type AggregatorOptions struct {
	// Modules restricts extraction to the named modules. Empty means all.
	Modules []string

	// MaxWorkers bounds how many modules run at once. Zero uses the CPU count.
	MaxWorkers int

	// TrimWhiteFrame removes a near-white scanner border before extraction
	TrimWhiteFrame bool
}

// DefaultOptions returns options that run every module in parallel
func DefaultOptions() AggregatorOptions {
	return AggregatorOptions{
		MaxWorkers: 0, // Use default CPU count
	}
}

// SequentialOptions returns options that run modules one at a time
func SequentialOptions() AggregatorOptions {
	opts := DefaultOptions()
	opts.MaxWorkers = 1
	return opts
}

// WithModules restricts extraction to the named modules
func (opts AggregatorOptions) WithModules(names ...string) AggregatorOptions {
	opts.Modules = append([]string(nil), names...)
	return opts
}

// WithWorkers sets the module concurrency
func (opts AggregatorOptions) WithWorkers(n int) AggregatorOptions {
	opts.MaxWorkers = n
	return opts
}

// WithWhiteFrameTrim enables white frame removal
func (opts AggregatorOptions) WithWhiteFrameTrim() AggregatorOptions {
	opts.TrimWhiteFrame = true
	return opts
}

func (opts AggregatorOptions) workers() int {
	if opts.MaxWorkers <= 0 {
		return runtime.NumCPU()
	}
	return opts.MaxWorkers
}
