package engine

// Config controls engine execution policy.
type Config struct {
	// ContinueOnError keeps the run going after a step fails. Steps
	// that transitively depend on a failed step are skipped; all other
	// steps still execute. Off by default: the run halts after the
	// failing step's siblings finish.
	ContinueOnError bool
}

// DefaultConfig returns the default engine policy: halt on first
// failure.
func DefaultConfig() Config {
	return Config{}
}
