package repository

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithSeed fixes the seed of the node priorities so tree shapes repeat.
func WithSeed(seed uint64) Option {
	return func(s *TreapStore) {
		s.seed = seed
	}
}
