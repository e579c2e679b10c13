//go:build linux

package host

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// RusageSampler reports the peak resident set size of the process.
type RusageSampler struct{}

func (RusageSampler) SampleHeap() (uint64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, errors.Wrap(err, "getrusage")
	}
	// Maxrss is reported in kilobytes on Linux.
	return uint64(ru.Maxrss) * 1024, nil
}
