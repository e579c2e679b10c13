//go:build !linux

package host

import "widget-lifecycle/internal/core/ports"

// RusageSampler reports the peak resident set size of the process. It is only
// implemented on Linux.
type RusageSampler struct{}

func (RusageSampler) SampleHeap() (uint64, error) {
	return 0, ports.ErrUnavailable
}
