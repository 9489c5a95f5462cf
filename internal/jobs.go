package internal

import "runtime"

// ResolveJobs turns a configured job count into a worker count for Build:
// negative means every core, zero means one.
func ResolveJobs(jobs int) int {
	switch {
	case jobs < 0:
		return runtime.NumCPU()
	case jobs == 0:
		return 1
	}
	return jobs
}
