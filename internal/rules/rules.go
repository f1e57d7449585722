// Package rules evaluates intrinsic resistance, phenotype overrides,
// and catalog-declared expert rules ahead of breakpoint interpretation
// (spec §4.6). Rules are evaluated as data — declarative predicates
// over a RuleCatalog snapshot — rather than as polymorphic rule
// objects, matching spec §9's "Expert rules as data" design note.
package rules

import (
	"fmt"
	"sort"

	"github.com/clinlab/amrclassify/internal/domain"
)

// builtin rule identifiers for the hardcoded phenotype overrides
// (spec §8 golden scenarios reference these literally).
const (
	ruleESBLOverride  = "ESBL-BL-OVR"
	ruleMRSAOverride  = "MRSA-BL-OVR"
	ruleCarbapenemase = "CARBAPENEMASE-OVR"
	ruleVREOverride   = "VRE-OVR"
	ruleInducibleClindaOverride = "INDUCIBLE-CLINDA-OVR"
)

// candidate is one rule that matched the (organism, antibiotic) pair,
// ranked for the tie-break in spec §4.6 ("highest priority wins").
type candidate struct {
	id       string
	priority int
	decision domain.Decision
	reason   string
}

// Tier priorities: intrinsic resistance always outranks phenotype
// overrides, which always outrank catalog-declared expert rules,
// matching spec §4.6's fixed evaluation order. Catalog rule priorities
// are added on top of the catalog tier so catalog authors can still
// order their own rules relative to each other.
const (
	tierIntrinsic = 1_000_000
	tierPhenotype = 500_000
	tierCatalog   = 0
)

// Outcome is the result of running the expert-rule engine for one
// (specimen, organism, antibiotic) pair.
type Outcome struct {
	Fired      bool
	Decision   domain.Decision
	Reason     string
	FiredRules []domain.FiredRule // winner first, then the other candidates by descending priority (then ID); all suppressed except a phenotype R combined with an intrinsic R winner
}

// Evaluate runs the three-stage expert-rule engine of spec §4.6 for a
// single gated input against the published catalog.
func Evaluate(in domain.ClassificationInput, catalog *domain.RuleCatalog) Outcome {
	var candidates []candidate

	candidates = append(candidates, intrinsicCandidates(in, catalog)...)
	candidates = append(candidates, phenotypeCandidates(in, catalog)...)
	candidates = append(candidates, catalogCandidates(in, catalog)...)

	if len(candidates) == 0 {
		return Outcome{}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return candidates[i].id < candidates[j].id
	})

	winner := candidates[0]
	reason := winner.reason

	// Intrinsic resistance and a phenotype override can both fire R for
	// the same pair; combine their rationale rather than silently
	// suppressing the phenotype note (spec §4.6 tie-break, last
	// sentence).
	var fired []domain.FiredRule
	fired = append(fired, domain.FiredRule{RuleID: winner.id, Suppressed: false, Reason: winner.reason})

	for _, c := range candidates[1:] {
		if c.priority == tierPhenotype && winner.priority == tierIntrinsic && c.decision == winner.decision {
			reason = fmt.Sprintf("%s; %s", reason, c.reason)
			fired = append(fired, domain.FiredRule{RuleID: c.id, Suppressed: false, Reason: c.reason})
			continue
		}
		fired = append(fired, domain.FiredRule{RuleID: c.id, Suppressed: true, Reason: c.reason})
	}

	return Outcome{Fired: true, Decision: winner.decision, Reason: reason, FiredRules: fired}
}

func intrinsicCandidates(in domain.ClassificationInput, catalog *domain.RuleCatalog) []candidate {
	var out []candidate
	for _, rule := range catalog.Intrinsic {
		if !rule.OrganismScope.Matches(in.Organism, catalog.OrganismGroups) {
			continue
		}
		if !antibioticInRule(in.Antibiotic, rule.Antibiotics, rule.AntibioticClass, catalog, nil) {
			continue
		}
		out = append(out, candidate{
			id:       rule.ID,
			priority: tierIntrinsic,
			decision: domain.Resistant,
			reason:   fmt.Sprintf("intrinsic resistance per rule %s", rule.ID),
		})
	}
	return out
}

func phenotypeCandidates(in domain.ClassificationInput, catalog *domain.RuleCatalog) []candidate {
	var out []candidate

	if in.HasPhenotype(domain.PhenotypeESBL) && isEnterobacterales(in.Organism, catalog) {
		exceptions := catalog.Policy.ESBLExceptionClasses
		if !antibioticExcludedByClasses(in.Antibiotic, exceptions, catalog) && antibioticInClass(in.Antibiotic, "beta-lactam", catalog) {
			out = append(out, candidate{
				id:       ruleESBLOverride,
				priority: tierPhenotype,
				decision: domain.Resistant,
				reason:   "ESBL override for beta-lactam class",
			})
		}
	}

	if (in.HasPhenotype(domain.PhenotypeMRSA) || in.Value.Screen == domain.ScreenPositive && in.Method == domain.SCREEN) && isStaphAureus(in.Organism) {
		if antibioticInClass(in.Antibiotic, "beta-lactam", catalog) && !antibioticInClass(in.Antibiotic, catalog.Policy.AntiMRSAExceptionClass, catalog) {
			out = append(out, candidate{
				id:       ruleMRSAOverride,
				priority: tierPhenotype,
				decision: domain.Resistant,
				reason:   "MRSA override for beta-lactams (except anti-MRSA cephalosporins)",
			})
		} else if antibioticInClass(in.Antibiotic, catalog.Policy.AntiMRSAExceptionClass, catalog) && catalog.Policy.MRSAExceptionsReviewable {
			out = append(out, candidate{
				id:       ruleMRSAOverride,
				priority: tierPhenotype,
				decision: domain.RequiresReview,
				reason:   "MRSA-positive anti-MRSA cephalosporin exception requires review per policy",
			})
		}
	}

	if in.HasPhenotype(domain.PhenotypeCarbapenemase) && antibioticInClass(in.Antibiotic, "carbapenem", catalog) {
		out = append(out, candidate{
			id:       ruleCarbapenemase,
			priority: tierPhenotype,
			decision: domain.Resistant,
			reason:   "carbapenemase override for carbapenem class",
		})
	}

	if in.HasPhenotype(domain.PhenotypeVRE) && in.Antibiotic == "vancomycin" {
		out = append(out, candidate{
			id:       ruleVREOverride,
			priority: tierPhenotype,
			decision: domain.Resistant,
			reason:   "VRE override for vancomycin",
		})
	}

	if in.HasPhenotype(domain.PhenotypeInducibleClinda) && in.Antibiotic == "clindamycin" && isStaphylococcus(in.Organism) {
		out = append(out, candidate{
			id:       ruleInducibleClindaOverride,
			priority: tierPhenotype,
			decision: domain.Resistant,
			reason:   "inducible clindamycin resistance override (D-test positive)",
		})
	}

	return out
}

func catalogCandidates(in domain.ClassificationInput, catalog *domain.RuleCatalog) []candidate {
	var out []candidate
	for _, rule := range catalog.ExpertRules {
		if !ruleMatches(rule, in, catalog) {
			continue
		}
		out = append(out, candidate{
			id:       rule.ID,
			priority: tierCatalog + rule.Priority,
			decision: rule.Effect.Decision,
			reason:   renderRationale(rule, in),
		})
	}
	return out
}

func ruleMatches(rule domain.ExpertRule, in domain.ClassificationInput, catalog *domain.RuleCatalog) bool {
	if !rule.OrganismScope.Matches(in.Organism, catalog.OrganismGroups) {
		return false
	}
	for _, flag := range rule.RequirePhenotypes {
		if !in.HasPhenotype(flag) {
			return false
		}
	}
	if len(rule.MethodSet) > 0 {
		matched := false
		for _, m := range rule.MethodSet {
			if m == in.Method {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if !antibioticInRule(in.Antibiotic, rule.AntibioticSet, rule.Effect.AppliesToClass, catalog, rule.Exceptions) {
		return false
	}
	if !rule.ValuePredicate.Evaluate(in.Value) {
		return false
	}
	if !rule.AuxiliaryPredicate.Evaluate(in.Auxiliary) {
		return false
	}
	return true
}

func renderRationale(rule domain.ExpertRule, in domain.ClassificationInput) string {
	if rule.Effect.RationaleTemplate != "" {
		return rule.Effect.RationaleTemplate
	}
	return fmt.Sprintf("catalog expert rule %s", rule.ID)
}

func antibioticInRule(antibiotic domain.AntibioticKey, explicitSet []domain.AntibioticKey, className string, catalog *domain.RuleCatalog, exceptions []domain.AntibioticKey) bool {
	if len(explicitSet) > 0 {
		for _, a := range explicitSet {
			if a == antibiotic {
				return true
			}
		}
		return false
	}
	if className == "" {
		return false
	}
	for _, member := range catalog.ClassMembers(className, exceptions) {
		if member == antibiotic {
			return true
		}
	}
	return false
}

func antibioticInClass(antibiotic domain.AntibioticKey, className string, catalog *domain.RuleCatalog) bool {
	if className == "" {
		return false
	}
	for _, member := range catalog.AntibioticClasses[className] {
		if member == antibiotic {
			return true
		}
	}
	return false
}

func antibioticExcludedByClasses(antibiotic domain.AntibioticKey, classNames []string, catalog *domain.RuleCatalog) bool {
	for _, className := range classNames {
		if antibioticInClass(antibiotic, className, catalog) {
			return true
		}
	}
	return false
}

func isEnterobacterales(organism domain.OrganismKey, catalog *domain.RuleCatalog) bool {
	scope := domain.GroupScope("enterobacterales")
	return scope.Matches(organism, catalog.OrganismGroups)
}

func isStaphAureus(organism domain.OrganismKey) bool {
	return organism == "staphylococcus aureus"
}

func isStaphylococcus(organism domain.OrganismKey) bool {
	return domain.GenusOf(organism) == "staphylococcus"
}
