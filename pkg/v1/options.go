package v1

import "os"

// Option configures an Index.
type Option func(*indexConfig)

type indexConfig struct {
	jobs    int
	dirMode os.FileMode
	seed    uint32
}

// WithJobs sets the number of workers Build may use. -1 uses every core.
func WithJobs(n int) Option {
	return func(c *indexConfig) {
		c.jobs = n
	}
}

// WithDirMode sets the permissions of directories created for Save and
// RedirectToDisk targets.
func WithDirMode(mode os.FileMode) Option {
	return func(c *indexConfig) {
		c.dirMode = mode
	}
}

// WithSeed fixes the random source used to split the trees. Two builds of the
// same items with the same seed and WithJobs(1) produce the same index.
func WithSeed(seed uint32) Option {
	return func(c *indexConfig) {
		c.seed = seed
	}
}
