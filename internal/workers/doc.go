/*
Package workers provides utilities for determining worker pool sizes
in containerized environments.

When running in containers, the number of available CPUs may be limited
by cgroup constraints. While Go 1.19+ automatically sets GOMAXPROCS
based on container CPU limits, runtime.NumCPU() still returns the host
machine's CPU count. Sizing a pool from the host count on a limited
container leads to context switching overhead and CPU throttling, so
this package derives counts from GOMAXPROCS instead.

# Usage

The package provides task-specific helper functions:

	import "asset-library/internal/workers"

	// For CPU-intensive tasks (image decoding, hashing)
	// Uses 1 worker per available CPU
	numWorkers := workers.ForCPU(8) // max 8 workers

	// For I/O-bound tasks (sidecar reads, folder listings)
	// Uses 2 workers per available CPU
	numWorkers := workers.ForIO(16) // max 16 workers

	// For mixed workloads (library scans: read, classify, write)
	// Uses 1.5 workers per available CPU
	numWorkers := workers.ForMixed(12) // max 12 workers

For fine-grained control, use the Count function directly:

	// 3 workers per CPU, maximum of 24
	numWorkers := workers.Count(3.0, 24)

	// No maximum (use 0)
	numWorkers := workers.Count(2.0, 0)

# Environment Variable Override

All functions respect the SCAN_WORKERS environment variable, allowing
operators to override the automatic calculation:

	# In Kubernetes deployment
	env:
	- name: SCAN_WORKERS
	  value: "4"

This is useful for fine-tuning performance in specific environments and
for temporarily limiting scan concurrency on shared storage.

# Thread Safety

All functions in this package are safe for concurrent use. They read
from runtime.GOMAXPROCS and environment variables, which are themselves
thread-safe.
*/
package workers
