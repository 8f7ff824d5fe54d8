package agent

// StepBudget bounds one request. Steps pay for planning attempts;
// lifelines pay for retries after a rejection or a failed execution.
// Both are per-request and never replenish mid-request.
type StepBudget struct {
	StepsRemaining     int
	LifelinesRemaining int
}

// NewStepBudget creates a budget for a fresh request.
func NewStepBudget(steps, lifelines int) *StepBudget {
	return &StepBudget{StepsRemaining: steps, LifelinesRemaining: lifelines}
}

// ConsumeStep spends one planning step. Returns false when none are left.
func (b *StepBudget) ConsumeStep() bool {
	if b.StepsRemaining <= 0 {
		return false
	}
	b.StepsRemaining--
	return true
}

// ConsumeLifeline spends one retry. Returns false when none are left.
func (b *StepBudget) ConsumeLifeline() bool {
	if b.LifelinesRemaining <= 0 {
		return false
	}
	b.LifelinesRemaining--
	return true
}

// Exhausted reports whether no further attempt may be made.
func (b *StepBudget) Exhausted() bool {
	return b.StepsRemaining <= 0 || b.LifelinesRemaining < 0
}
