package cache

// Outcome is the memoized result of building one source.
type Outcome struct {
	// Binary is set when the build passed.
	Binary []byte

	// Log is the build log (diagnostics when the build failed).
	Log string

	Passed bool
}

// Outcomes caches build outcomes keyed by shader.Source.Key.
type Outcomes struct {
	c *ShardedCache[string, Outcome]
}

// NewOutcomes creates an outcome cache holding roughly capacity entries.
// If capacity <= 0, DefaultCapacity entries per shard are used.
func NewOutcomes(capacity int) *Outcomes {
	perShard := 0
	if capacity > 0 {
		perShard = (capacity + DefaultShardCount - 1) / DefaultShardCount
	}
	return &Outcomes{c: NewSharded[string, Outcome](perShard, StringHasher)}
}

// Lookup returns the outcome stored for key.
func (o *Outcomes) Lookup(key string) (Outcome, bool) {
	return o.c.Get(key)
}

// Store records the outcome for key. The binary is shared, not copied;
// binaries are treated as immutable once built.
func (o *Outcomes) Store(key string, out Outcome) {
	o.c.Set(key, out)
}

// Stats returns the underlying cache statistics.
func (o *Outcomes) Stats() Stats {
	return o.c.Stats()
}
