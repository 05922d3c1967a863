package tools

// Config centralizes limits shared by the note tools
type Config struct {
	// MaxContentSize caps note content returned to the model, to keep
	// a single tool result from flooding the context window
	MaxContentSize int

	SearchDefaultLimit int
	SearchMaxLimit     int
}

// DefaultConfig returns the default tool limits
func DefaultConfig() *Config {
	return &Config{
		MaxContentSize:     20000,
		SearchDefaultLimit: 5,
		SearchMaxLimit:     20,
	}
}
