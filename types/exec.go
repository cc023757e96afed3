package types

// RunMode says how operations are being evaluated.
type RunMode uint8

const (
	// ModeAuthoring evaluates fresh transactions while producing a block
	// or filling the pending pool. Timing is enforced.
	ModeAuthoring RunMode = iota
	// ModeReplay re-applies a block produced elsewhere. Recorded results
	// are reproduced instead of re-timed.
	ModeReplay
	// ModeDryRun evaluates without keeping any state.
	ModeDryRun
)

func (m RunMode) String() string {
	switch m {
	case ModeAuthoring:
		return "authoring"
	case ModeReplay:
		return "replay"
	case ModeDryRun:
		return "dry_run"
	}
	return "unknown"
}

// Timed reports whether evaluation in m runs under a wall time budget.
// Only replay reproduces recorded timing instead.
func (m RunMode) Timed() bool { return m != ModeReplay }

// SkipFlags disable checks for trusted input.
type SkipFlags uint32

const (
	SkipNothing               SkipFlags = 0
	SkipWitnessSignature      SkipFlags = 1 << 0
	SkipTransactionSignatures SkipFlags = 1 << 1
	SkipTransactionDupeCheck  SkipFlags = 1 << 2
	SkipFeeConversion         SkipFlags = 1 << 3
	SkipMerkleCheck           SkipFlags = 1 << 4
	SkipAssertEvaluation      SkipFlags = 1 << 5
	SkipWitnessScheduleCheck  SkipFlags = 1 << 6
	SkipTaposCheck            SkipFlags = 1 << 7
	SkipBlockSizeCheck        SkipFlags = 1 << 8
)

// Has reports whether every bit of f is set.
func (s SkipFlags) Has(f SkipFlags) bool { return s&f == f }

// ExecutionConfig is the node-local evaluation state threaded through
// every call. It replaces process-wide flags: callers change it only
// through Scope, which hands back the function restoring the previous
// value.
type ExecutionConfig struct {
	Mode  RunMode
	Skip  SkipFlags
	Quiet bool
}

// Scope replaces the current configuration with next and returns the
// function restoring the previous one. Typical use:
//
//	defer cfg.Scope(types.ExecutionConfig{Mode: types.ModeReplay})()
func (c *ExecutionConfig) Scope(next ExecutionConfig) func() {
	prev := *c
	*c = next
	return func() { *c = prev }
}

// WithSkip returns a copy of c with extra flags set.
func (c ExecutionConfig) WithSkip(f SkipFlags) ExecutionConfig {
	c.Skip |= f
	return c
}

// Enforcing reports whether wall-clock limits apply.
func (c ExecutionConfig) Enforcing() bool { return c.Mode == ModeAuthoring }
