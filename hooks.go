package algfetch

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the fetch path calls them inline.
type Hooks interface {
	// Two fetches built the same method concurrently; the loser was discarded.
	ConstructionRace(op Operation, name string)

	// No provider matched and a legacy implementation was wrapped instead.
	LegacyFallback(op Operation, name string)

	// A resolution record was deleted on read.
	// reason ∈ {"corrupt", "gen_mismatch", "decode", "stale_provider"}
	ResolutionSelfHeal(storageKey, reason string)

	// The resolution store returned ok=false on Set (backpressure/eviction).
	StoreSetRejected(storageKey string)

	// Generation store errors (snapshot or bump) for an operation's keyspace.
	GenSnapshotError(op Operation, err error)
	GenBumpError(op Operation, err error)

	// A provider advertised an unparsable property definition; the
	// algorithm is skipped.
	BadDefinition(provider, name string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ConstructionRace(Operation, string)  {}
func (NopHooks) LegacyFallback(Operation, string)    {}
func (NopHooks) ResolutionSelfHeal(string, string)   {}
func (NopHooks) StoreSetRejected(string)             {}
func (NopHooks) GenSnapshotError(Operation, error)   {}
func (NopHooks) GenBumpError(Operation, error)       {}
func (NopHooks) BadDefinition(string, string, error) {}
