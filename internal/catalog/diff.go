package catalog

import (
	"fmt"

	"github.com/clinlab/amrclassify/internal/domain"
)

// ChangeSummary reports what changed between two catalog snapshots, for
// the rules dry-run CLI tool (SPEC_FULL §5 supplemented feature) to show
// an operator what a reload would publish before it happens.
type ChangeSummary struct {
	VersionFrom string
	VersionTo   string

	BreakpointsAdded   []string
	BreakpointsRemoved []string
	ExpertRulesAdded   []string
	ExpertRulesRemoved []string
	ExpertRulesChanged []string
	IntrinsicAdded     []string
	IntrinsicRemoved   []string
}

// Diff compares two catalogs by stable identity keys (breakpoint
// organism-scope/antibiotic/method/source; expert/intrinsic rule id)
// and reports additions, removals, and — for expert rules, whose
// effect can change without the id changing — modifications.
func Diff(oldCatalog, newCatalog *domain.RuleCatalog) ChangeSummary {
	summary := ChangeSummary{}
	if oldCatalog != nil {
		summary.VersionFrom = oldCatalog.VersionLabel
	}
	if newCatalog != nil {
		summary.VersionTo = newCatalog.VersionLabel
	}

	oldBP := breakpointIndex(oldCatalog)
	newBP := breakpointIndex(newCatalog)
	for k := range newBP {
		if _, ok := oldBP[k]; !ok {
			summary.BreakpointsAdded = append(summary.BreakpointsAdded, k)
		}
	}
	for k := range oldBP {
		if _, ok := newBP[k]; !ok {
			summary.BreakpointsRemoved = append(summary.BreakpointsRemoved, k)
		}
	}

	oldExpert := expertIndex(oldCatalog)
	newExpert := expertIndex(newCatalog)
	for id, rule := range newExpert {
		prior, ok := oldExpert[id]
		if !ok {
			summary.ExpertRulesAdded = append(summary.ExpertRulesAdded, id)
			continue
		}
		if prior.Effect.Decision != rule.Effect.Decision || prior.Priority != rule.Priority {
			summary.ExpertRulesChanged = append(summary.ExpertRulesChanged, id)
		}
	}
	for id := range oldExpert {
		if _, ok := newExpert[id]; !ok {
			summary.ExpertRulesRemoved = append(summary.ExpertRulesRemoved, id)
		}
	}

	oldIntrinsic := intrinsicIndex(oldCatalog)
	newIntrinsic := intrinsicIndex(newCatalog)
	for id := range newIntrinsic {
		if _, ok := oldIntrinsic[id]; !ok {
			summary.IntrinsicAdded = append(summary.IntrinsicAdded, id)
		}
	}
	for id := range oldIntrinsic {
		if _, ok := newIntrinsic[id]; !ok {
			summary.IntrinsicRemoved = append(summary.IntrinsicRemoved, id)
		}
	}

	return summary
}

func breakpointIndex(c *domain.RuleCatalog) map[string]domain.BreakpointEntry {
	idx := map[string]domain.BreakpointEntry{}
	if c == nil {
		return idx
	}
	for _, e := range c.Entries {
		key := fmt.Sprintf("%d:%s/%s/%s/%s", e.OrganismScope.Kind, e.OrganismScope.Value, e.Antibiotic, e.Method, e.Source)
		idx[key] = e
	}
	return idx
}

func expertIndex(c *domain.RuleCatalog) map[string]domain.ExpertRule {
	idx := map[string]domain.ExpertRule{}
	if c == nil {
		return idx
	}
	for _, r := range c.ExpertRules {
		idx[r.ID] = r
	}
	return idx
}

func intrinsicIndex(c *domain.RuleCatalog) map[string]domain.IntrinsicRule {
	idx := map[string]domain.IntrinsicRule{}
	if c == nil {
		return idx
	}
	for _, r := range c.Intrinsic {
		idx[r.ID] = r
	}
	return idx
}

// Empty reports whether the summary contains no changes at all.
func (c ChangeSummary) Empty() bool {
	return len(c.BreakpointsAdded) == 0 && len(c.BreakpointsRemoved) == 0 &&
		len(c.ExpertRulesAdded) == 0 && len(c.ExpertRulesRemoved) == 0 && len(c.ExpertRulesChanged) == 0 &&
		len(c.IntrinsicAdded) == 0 && len(c.IntrinsicRemoved) == 0
}
