// Package conflict reconciles multiple classification results for the
// same (specimen, organism, antibiotic) tuple when more than one
// measurement or method produced one (spec §4.8).
package conflict

import (
	"fmt"
	"strings"

	"github.com/clinlab/amrclassify/internal/domain"
)

// Resolve reconciles results that all share the same (specimen,
// organism, antibiotic) key, per the catalog's conflict policy.
// Resolve panics if results is empty; callers only invoke it for a
// non-empty group.
func Resolve(results []domain.ClassificationResult, policy domain.CatalogPolicy) domain.ClassificationResult {
	if len(results) == 1 {
		return results[0]
	}

	expert := filterExpertRuleDecisions(results)
	if len(expert) > 0 {
		return reconcileGroup(expert, policy, true)
	}
	return reconcileGroup(results, policy, false)
}

func filterExpertRuleDecisions(results []domain.ClassificationResult) []domain.ClassificationResult {
	var out []domain.ClassificationResult
	for _, r := range results {
		if r.ExpertRuleDecision {
			out = append(out, r)
		}
	}
	return out
}

func reconcileGroup(results []domain.ClassificationResult, policy domain.CatalogPolicy, expertOnly bool) domain.ClassificationResult {
	if len(results) == 1 {
		return results[0]
	}

	if allAgree(results) {
		return mergeAgreeing(results)
	}

	if expertOnly {
		return requiresReview(results, "conflicting expert rules disagree")
	}

	if methodsDiffer(results) {
		if policy.MethodPrecedenceEnabled {
			if resolved, ok := resolveByPrecedence(results, policy.PreferredMethod); ok {
				return resolved
			}
		}
		return requiresReview(results, conflictingMethodsReason(results))
	}

	return requiresReview(results, "duplicate measurements disagree")
}

func allAgree(results []domain.ClassificationResult) bool {
	for _, r := range results[1:] {
		if r.Decision != results[0].Decision {
			return false
		}
	}
	return true
}

func mergeAgreeing(results []domain.ClassificationResult) domain.ClassificationResult {
	base := results[0]
	reasons := make([]string, 0, len(results))
	var fired []domain.FiredRule
	for _, r := range results {
		reasons = append(reasons, r.Reason)
		fired = append(fired, r.FiredRules...)
	}
	base.Reason = strings.Join(dedupeStrings(reasons), "; ")
	base.FiredRules = fired
	return base
}

func methodsDiffer(results []domain.ClassificationResult) bool {
	for _, r := range results[1:] {
		if r.Method != results[0].Method {
			return true
		}
	}
	return false
}

func resolveByPrecedence(results []domain.ClassificationResult, preferred domain.MethodKind) (domain.ClassificationResult, bool) {
	var preferredResult *domain.ClassificationResult
	var others []domain.ClassificationResult
	for i := range results {
		if results[i].Method == preferred {
			r := results[i]
			preferredResult = &r
		} else {
			others = append(others, results[i])
		}
	}
	if preferredResult == nil || len(others) == 0 {
		return domain.ClassificationResult{}, false
	}

	out := *preferredResult
	var notes []string
	for _, other := range others {
		notes = append(notes, fmt.Sprintf("%s disagrees (%s => %s)", methodDisplayName(other.Method), renderValue(other.Input), other.Decision))
	}
	out.Reason = fmt.Sprintf("%s preferred; %s", methodDisplayName(preferred), strings.Join(notes, "; "))
	return out, true
}

func conflictingMethodsReason(results []domain.ClassificationResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("%s=%s", r.Method, r.Decision))
	}
	return "conflicting methods: " + strings.Join(parts, ", ")
}

func requiresReview(results []domain.ClassificationResult, reason string) domain.ClassificationResult {
	base := results[0]
	var fired []domain.FiredRule
	for _, r := range results {
		fired = append(fired, r.FiredRules...)
	}
	base.Decision = domain.RequiresReview
	base.Reason = reason
	base.FiredRules = fired
	return base
}

func methodDisplayName(m domain.MethodKind) string {
	switch m {
	case domain.MIC:
		return "MIC"
	case domain.DISC:
		return "disc diffusion"
	default:
		return string(m)
	}
}

func renderValue(in domain.ClassificationInput) string {
	switch in.Method {
	case domain.MIC:
		return fmt.Sprintf("%.4g mg/L", in.Value.MICValue)
	case domain.DISC:
		return fmt.Sprintf("%d mm", in.Value.DiscValue)
	default:
		return ""
	}
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
