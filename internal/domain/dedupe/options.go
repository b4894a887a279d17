package dedupe

// Option configures a deduper built by NewInMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps how many ids are remembered. A value <= 0 removes the
// cap and nothing is ever evicted.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
