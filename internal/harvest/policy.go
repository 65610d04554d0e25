package harvest

// Policy holds the named exit conditions for the harvest loop. It is
// evaluated once per iteration so termination behavior is testable without
// a live provider.
type Policy struct {
	// StagnationThreshold is how many consecutive zero-progress iterations
	// end the harvest.
	StagnationThreshold int
	// MaxIterations bounds worst-case runtime against a pathological feed.
	MaxIterations int
}

// LoopState is the per-iteration snapshot the policy decides on.
type LoopState struct {
	// Iteration counts completed reveal+extract rounds.
	Iteration int
	// Stagnant counts consecutive rounds that added zero unique items.
	Stagnant int
	// Unique is the accumulated distinct item count.
	Unique int
	// KnownTotal is the source-declared total; valid only when TotalKnown.
	KnownTotal int
	TotalKnown bool
}

// Evaluate reports whether the loop should stop and why. KnownTotalReached
// wins over Stagnated, and the iteration cap is the unconditional backstop.
func (p Policy) Evaluate(st LoopState) (TerminationReason, bool) {
	if st.TotalKnown && st.KnownTotal > 0 && st.Unique >= st.KnownTotal {
		return KnownTotalReached, true
	}
	if p.StagnationThreshold > 0 && st.Stagnant >= p.StagnationThreshold {
		return Stagnated, true
	}
	if p.MaxIterations > 0 && st.Iteration >= p.MaxIterations {
		return StepCapReached, true
	}
	return "", false
}
