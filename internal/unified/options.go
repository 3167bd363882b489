package unified

import "time"

// Options controls what a parse extracts.
type Options struct {
	ExtractImages   bool `yaml:"extract_images"`
	ExtractMetadata bool `yaml:"extract_metadata"`
	GenerateTOC     bool `yaml:"generate_toc"`
	EnableSearch    bool `yaml:"enable_search"`
	// MaxMemoryUsage is the input size ceiling in megabytes; 0 disables it.
	MaxMemoryUsage int `yaml:"max_memory_usage" validate:"gte=0"`
	// Timeout is advisory. Parsing is never interrupted; callers needing a
	// deadline race Parse themselves.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		ExtractImages:   true,
		ExtractMetadata: true,
		GenerateTOC:     true,
		EnableSearch:    true,
		MaxMemoryUsage:  500,
		Timeout:         30 * time.Second,
	}
}

func (o Options) sizeLimit() int64 {
	return int64(o.MaxMemoryUsage) << 20
}
