// Package workers computes worker pool sizes for pipeline stages based on
// the available CPU count and the stage's resource profile.
package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the worker count for a stage with the given multiplier.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for stage characteristics:
//   - 1.0 for CPU-bound stages (decode, resize, hash)
//   - 2.0 for I/O-bound stages (metadata extraction)
//
// The limit parameter caps the worker count; use 0 for no limit.
// Can be overridden with the PIPELINE_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("PIPELINE_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	count := int(float64(available) * multiplier)
	if count < 1 {
		count = 1
	}
	if limit > 0 && count > limit {
		count = limit
	}

	return count
}

// ForCPU returns worker count for CPU-bound stages (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound stages (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// Serialized returns the worker count for stages that share a single
// inference or accelerator session. Such sessions are not safe for
// concurrent use, so the count is always 1.
func Serialized() int {
	return 1
}
