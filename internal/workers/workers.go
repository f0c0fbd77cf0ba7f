package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the worker count for a task type, derived from the CPUs
// actually available to the process (GOMAXPROCS tracks container CPU
// limits on Go 1.19+).
//
// The multiplier adjusts for task characteristics: 1.0 for CPU-bound,
// 2.0 for I/O-bound, 1.5 for mixed work. limit caps the result; 0 means
// no cap. The SCAN_WORKERS environment variable overrides the
// calculation entirely (still subject to limit).
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("SCAN_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capped(count, limit)
		}
	}

	count := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if count < 1 {
		count = 1
	}
	return capped(count, limit)
}

func capped(count, limit int) int {
	if limit > 0 && count > limit {
		return limit
	}
	return count
}

// ForCPU returns the worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int { return Count(1.0, limit) }

// ForIO returns the worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int { return Count(2.0, limit) }

// ForMixed returns the worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int { return Count(1.5, limit) }
