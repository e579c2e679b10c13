package host

import (
	"runtime"

	"widget-lifecycle/internal/core/ports"
)

// RuntimeHeapSampler samples the Go heap (HeapAlloc).
type RuntimeHeapSampler struct{}

func (RuntimeHeapSampler) SampleHeap() (uint64, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc, nil
}

// SamplerFunc adapts a function to ports.HeapSampler.
type SamplerFunc func() (uint64, error)

func (f SamplerFunc) SampleHeap() (uint64, error) { return f() }

// Unavailable is a sampler for hosts that cannot report heap usage.
var Unavailable ports.HeapSampler = SamplerFunc(func() (uint64, error) {
	return 0, ports.ErrUnavailable
})
