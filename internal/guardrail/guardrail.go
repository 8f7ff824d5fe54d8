package guardrail

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"reflex/internal/config"
	"reflex/internal/policy"
)

//go:embed plan_policy.mg
var planPolicySrc string

// Card and id numbers block outright. Email addresses are the weakest
// signal of the three (tool arguments legitimately carry contact
// addresses) so they only warn.
var piiPatterns = []struct {
	label    string
	severity Severity
	pattern  *regexp.Regexp
}{
	{"card number", SeverityBlock, regexp.MustCompile(`\b\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}\b`)},
	{"national id", SeverityBlock, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"email address", SeverityWarn, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
}

// defaultAllowedImports is the stdlib surface plans may import when the
// configuration does not name its own allowlist.
var defaultAllowedImports = []string{
	"errors", "fmt", "math", "sort", "strconv", "strings", "time",
}

// Engine evaluates candidate plans against the full rule set. Datalog
// rules cover the registry-dependent checks; the structural, size, PII
// and keyword rules run directly over the source.
type Engine struct {
	mu     sync.Mutex
	cfg    config.GuardrailConfig
	rules  *policy.Engine
	logger *zap.Logger
}

// NewEngine compiles the embedded plan policy.
func NewEngine(cfg config.GuardrailConfig, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.AllowedImports) == 0 {
		cfg.AllowedImports = defaultAllowedImports
	}
	rules := policy.NewEngine()
	if err := rules.LoadRules(planPolicySrc); err != nil {
		return nil, fmt.Errorf("plan policy failed to compile: %w", err)
	}
	return &Engine{cfg: cfg, rules: rules, logger: logger}, nil
}

// Evaluate runs every rule against the plan and returns the complete
// violation list. Rules run in a fixed order: hallucinated capability,
// call budget, URL whitelist, PII scan, structural sanity, then the
// configurable size and keyword heuristics. knownTools is the
// capability registry snapshot at evaluation time.
func (e *Engine) Evaluate(planCode string, knownTools []string) (Verdict, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	facts := extractFacts(planCode)
	var v Verdict

	halls, urls, err := e.deriveLocked(facts, knownTools)
	if err != nil {
		return Verdict{}, err
	}
	v.Violations = append(v.Violations, halls...)

	if e.cfg.MaxCallBudget > 0 && facts.callCount > e.cfg.MaxCallBudget {
		v.Violations = append(v.Violations, Violation{
			RuleID:   RuleCallBudget,
			Severity: SeverityBlock,
			Detail:   fmt.Sprintf("plan issues %d capability calls, budget is %d", facts.callCount, e.cfg.MaxCallBudget),
		})
	}

	v.Violations = append(v.Violations, urls...)

	if e.cfg.PIIScan {
		for _, p := range piiPatterns {
			if p.pattern.MatchString(planCode) {
				v.Violations = append(v.Violations, Violation{
					RuleID:   RulePII,
					Severity: p.severity,
					Detail:   fmt.Sprintf("plan contains what looks like a %s", p.label),
				})
			}
		}
	}

	for _, problem := range facts.structural {
		v.Violations = append(v.Violations, Violation{
			RuleID: RuleStructural, Severity: SeverityBlock, Detail: problem,
		})
	}
	for _, imp := range facts.imports {
		if !contains(e.cfg.AllowedImports, imp) {
			v.Violations = append(v.Violations, Violation{
				RuleID:   RuleStructural,
				Severity: SeverityBlock,
				Detail:   fmt.Sprintf("import %q is not allowed", imp),
			})
		}
	}

	if e.cfg.MaxPlanBytes > 0 && len(planCode) > e.cfg.MaxPlanBytes {
		v.Violations = append(v.Violations, Violation{
			RuleID:   RulePlanSize,
			Severity: SeverityBlock,
			Detail:   fmt.Sprintf("plan is %d bytes, limit is %d", len(planCode), e.cfg.MaxPlanBytes),
		})
	}

	v.Violations = append(v.Violations, e.keywordViolations(planCode)...)

	if len(v.Violations) > 0 {
		e.logger.Info("Plan evaluated with findings",
			zap.Int("violations", len(v.Violations)),
			zap.Bool("approved", v.Approved()))
	}
	return v, nil
}

// deriveLocked pushes plan facts through the Datalog policy and maps
// the derived predicates back onto violations, hallucination and URL
// findings separately so the caller can slot them into rule order.
func (e *Engine) deriveLocked(facts *planFacts, knownTools []string) (halls, urls []Violation, err error) {
	e.rules.Clear()

	var pf []policy.Fact
	for _, tool := range knownTools {
		pf = append(pf, policy.Fact{Predicate: "known_tool", Args: []any{tool}})
	}
	for _, call := range facts.calls {
		pf = append(pf, policy.Fact{Predicate: "plan_call", Args: []any{call}})
	}
	// An empty whitelist disables the URL rule rather than banning
	// every URL outright.
	if len(e.cfg.DomainWhitelist) > 0 {
		for _, d := range e.cfg.DomainWhitelist {
			pf = append(pf, policy.Fact{Predicate: "allowed_domain", Args: []any{d}})
		}
		for _, raw := range facts.urls {
			host := hostOf(raw)
			if host == "" {
				continue
			}
			// Subdomains resolve to their whitelisted parent so the
			// Datalog join sees an exact match.
			pf = append(pf, policy.Fact{
				Predicate: "plan_url",
				Args:      []any{raw, matchDomain(host, e.cfg.DomainWhitelist)},
			})
		}
	}

	if err := e.rules.AddFacts(pf...); err != nil {
		return nil, nil, fmt.Errorf("policy evaluation failed: %w", err)
	}

	hallFacts, err := e.rules.Derived("hallucinated_call")
	if err != nil {
		return nil, nil, err
	}
	for _, d := range sortedFirstArgs(hallFacts) {
		halls = append(halls, Violation{
			RuleID:   RuleHallucinated,
			Severity: SeverityBlock,
			Detail:   fmt.Sprintf("plan calls unknown capability %q", d),
		})
	}

	urlFacts, err := e.rules.Derived("unapproved_url")
	if err != nil {
		return nil, nil, err
	}
	for _, d := range sortedFirstArgs(urlFacts) {
		urls = append(urls, Violation{
			RuleID:   RuleURLWhitelist,
			Severity: SeverityBlock,
			Detail:   fmt.Sprintf("url %s is outside the domain whitelist", d),
		})
	}
	return halls, urls, nil
}

// keywordViolations applies the configured keyword heuristics with
// their per-keyword severity.
func (e *Engine) keywordViolations(planCode string) []Violation {
	if len(e.cfg.DisallowedKeywords) == 0 {
		return nil
	}

	keywords := make([]string, 0, len(e.cfg.DisallowedKeywords))
	for kw := range e.cfg.DisallowedKeywords {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	lowered := strings.ToLower(planCode)
	var out []Violation
	for _, kw := range keywords {
		if !strings.Contains(lowered, strings.ToLower(kw)) {
			continue
		}
		sev := SeverityWarn
		if e.cfg.DisallowedKeywords[kw] == string(SeverityBlock) {
			sev = SeverityBlock
		}
		out = append(out, Violation{
			RuleID:   RuleKeyword,
			Severity: sev,
			Detail:   fmt.Sprintf("plan contains flagged keyword %q", kw),
		})
	}
	return out
}

func sortedFirstArgs(facts []policy.Fact) []string {
	out := make([]string, 0, len(facts))
	for _, f := range facts {
		if len(f.Args) > 0 {
			if s, ok := f.Args[0].(string); ok {
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

// matchDomain returns the whitelist entry covering host, or host itself
// when nothing covers it.
func matchDomain(host string, whitelist []string) string {
	for _, d := range whitelist {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d
		}
	}
	return host
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
