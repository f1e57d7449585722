// Package breakpoint interprets a gated measurement against the
// published catalog's breakpoint tables when no expert rule produced a
// decision (spec §4.7).
package breakpoint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clinlab/amrclassify/internal/domain"
)

// comparisonEpsilon crosses exactly one threshold step for a
// "<value"/">value" prefixed reading, per spec §4.3's ApplyPrefix rule.
const comparisonEpsilon = 0.001

// Result is the outcome of breakpoint interpretation.
type Result struct {
	Decided   bool
	Decision  domain.Decision
	Reason    string
	EntryUsed *domain.BreakpointEntry
}

// Interpret runs the breakpoint interpreter algorithm of spec §4.7:
// source selection, most-specific scope selection, then MIC or DISC
// comparison semantics.
func Interpret(in domain.ClassificationInput, catalog *domain.RuleCatalog, preferredSource domain.Source) Result {
	entry, ok := selectEntry(in, catalog, preferredSource)
	if !ok {
		return Result{Decided: false, Decision: domain.RequiresReview, Reason: "no applicable breakpoint"}
	}

	switch in.Method {
	case domain.MIC:
		return interpretMIC(in, entry)
	case domain.DISC:
		return interpretDisc(in, entry)
	default:
		return Result{Decided: false, Decision: domain.RequiresReview, Reason: fmt.Sprintf("no breakpoint interpretation defined for method %s", in.Method)}
	}
}

// selectEntry applies source fallback then most-specific scope
// selection (spec §4.7 steps 1-2).
func selectEntry(in domain.ClassificationInput, catalog *domain.RuleCatalog, preferredSource domain.Source) (*domain.BreakpointEntry, bool) {
	sources := orderedSources(catalog, preferredSource)

	for _, source := range sources {
		var best *domain.BreakpointEntry
		bestSpecificity := -1
		for i := range catalog.Entries {
			entry := &catalog.Entries[i]
			if entry.Source != source || entry.Method != in.Method || entry.Antibiotic != in.Antibiotic {
				continue
			}
			if !entry.OrganismScope.Matches(in.Organism, catalog.OrganismGroups) {
				continue
			}
			specificity := entry.OrganismScope.Kind.Specificity()
			if specificity > bestSpecificity {
				best = entry
				bestSpecificity = specificity
			}
		}
		if best != nil {
			return best, true
		}
	}
	return nil, false
}

func orderedSources(catalog *domain.RuleCatalog, preferredSource domain.Source) []domain.Source {
	if preferredSource == "" {
		preferredSource = catalog.Policy.DefaultSource
	}
	order := []domain.Source{preferredSource}
	for _, s := range catalog.Policy.SourceFallbackOrder {
		if s != preferredSource {
			order = append(order, s)
		}
	}
	return order
}

// formatMIC renders an MIC value the way spec rationales do: always at
// least one decimal place ("4.0", not "4").
func formatMIC(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// displayMIC renders the measured value with its original comparator
// prefix, never silently dropped from the rationale (spec §9
// "Comparator-with-prefix parsing").
func displayMIC(comparator domain.Comparator, value float64) string {
	return string(comparator) + formatMIC(value)
}

func displayDisc(comparator domain.Comparator, value int) string {
	return fmt.Sprintf("%s%d", comparator, value)
}

func interpretMIC(in domain.ClassificationInput, entry *domain.BreakpointEntry) Result {
	raw := in.Value.MICValue
	comparator := in.Value.MICComparator
	value := domain.ApplyPrefix(comparator, raw, comparisonEpsilon)
	display := displayMIC(comparator, raw)
	sThreshold := formatMIC(derefOr(entry.SThreshold, 0))
	rThreshold := formatMIC(derefOr(entry.RThreshold, 0))

	if entry.SThreshold != nil && value <= *entry.SThreshold {
		return Result{Decided: true, Decision: domain.Susceptible, Reason: fmt.Sprintf("MIC %s mg/L <= S threshold %s mg/L", display, sThreshold), EntryUsed: entry}
	}

	if entry.RThreshold != nil && value > *entry.RThreshold {
		if entry.Rare.Enabled && value > *entry.RThreshold+entry.Rare.MarginAboveR {
			return Result{Decided: true, Decision: domain.ResistantRare, Reason: fmt.Sprintf("MIC %s mg/L exceeds R threshold %s mg/L by more than the rare-resistance margin %s mg/L", display, rThreshold, formatMIC(entry.Rare.MarginAboveR)), EntryUsed: entry}
		}
		return Result{Decided: true, Decision: domain.Resistant, Reason: fmt.Sprintf("MIC %s mg/L > R threshold %s mg/L", display, rThreshold), EntryUsed: entry}
	}

	if entry.IThreshold != nil && entry.SThreshold != nil && value > *entry.SThreshold && value <= *entry.IThreshold {
		return Result{Decided: true, Decision: domain.SusceptibleIncreasedDose, Reason: fmt.Sprintf("MIC %s mg/L between S threshold %s mg/L and I threshold %s mg/L", display, sThreshold, formatMIC(*entry.IThreshold)), EntryUsed: entry}
	}

	return Result{Decided: true, Decision: domain.SusceptibleIncreasedDose, Reason: fmt.Sprintf("MIC %s mg/L falls in the intermediate band", display), EntryUsed: entry}
}

func interpretDisc(in domain.ClassificationInput, entry *domain.BreakpointEntry) Result {
	raw := in.Value.DiscValue
	comparator := in.Value.DiscComparator
	value := domain.ApplyPrefix(comparator, float64(raw), comparisonEpsilon)
	display := displayDisc(comparator, raw)
	sThreshold := int(derefOr(entry.SThreshold, 0))
	rThreshold := int(derefOr(entry.RThreshold, 0))

	if entry.SThreshold != nil && value >= *entry.SThreshold {
		return Result{Decided: true, Decision: domain.Susceptible, Reason: fmt.Sprintf("zone %s mm >= S threshold %d mm", display, sThreshold), EntryUsed: entry}
	}

	if entry.RThreshold != nil && value < *entry.RThreshold {
		if entry.Rare.Enabled && value < *entry.RThreshold-entry.Rare.MarginAboveR {
			return Result{Decided: true, Decision: domain.ResistantRare, Reason: fmt.Sprintf("zone %s mm falls below R threshold %d mm by more than the rare-resistance margin %.4g mm", display, rThreshold, entry.Rare.MarginAboveR), EntryUsed: entry}
		}
		return Result{Decided: true, Decision: domain.Resistant, Reason: fmt.Sprintf("zone %s mm < R threshold %d mm", display, rThreshold), EntryUsed: entry}
	}

	return Result{Decided: true, Decision: domain.SusceptibleIncreasedDose, Reason: fmt.Sprintf("zone %s mm falls in the intermediate band", display), EntryUsed: entry}
}

func derefOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
