// Package guardrail validates generated plans before they are allowed
// to execute. Every rule runs on every plan; the verdict carries the
// complete ordered violation list so rejection feedback names all
// problems at once, not just the first.
package guardrail

// Severity classifies a violation. Warnings are reported but do not
// stop execution; blocks reject the plan.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityBlock Severity = "block"
)

// Rule identifiers, in evaluation order.
const (
	RuleHallucinated = "hallucinated_tool"
	RuleCallBudget   = "call_budget"
	RuleURLWhitelist = "url_whitelist"
	RulePII          = "pii"
	RuleStructural   = "structural"
	RulePlanSize     = "plan_size"
	RuleKeyword      = "keyword"
)

// Violation is one rule finding against a plan.
type Violation struct {
	RuleID   string
	Severity Severity
	Detail   string
}

// Verdict is the outcome of evaluating a plan against all rules.
type Verdict struct {
	Violations []Violation
}

// Approved reports whether the plan may execute. Warnings alone do not
// reject a plan.
func (v Verdict) Approved() bool {
	for _, viol := range v.Violations {
		if viol.Severity == SeverityBlock {
			return false
		}
	}
	return true
}

// Blocks returns only the blocking violations.
func (v Verdict) Blocks() []Violation {
	var out []Violation
	for _, viol := range v.Violations {
		if viol.Severity == SeverityBlock {
			out = append(out, viol)
		}
	}
	return out
}

// Warnings returns only the warn-level violations.
func (v Verdict) Warnings() []Violation {
	var out []Violation
	for _, viol := range v.Violations {
		if viol.Severity == SeverityWarn {
			out = append(out, viol)
		}
	}
	return out
}
