// Package assembler builds the final ClassificationResult for one
// ClassificationInput once the expert-rule engine, breakpoint
// interpreter, and conflict resolver have produced a decision
// (spec §4.9).
package assembler

import "github.com/clinlab/amrclassify/internal/domain"

// Assemble builds a ClassificationResult with a stable field order,
// echoing the originating input, the ordered fired-rule trail, and the
// catalog version label the decision was made against.
func Assemble(in domain.ClassificationInput, decision domain.Decision, reason string, fired []domain.FiredRule, catalogVersion string, expertRuleDecision bool) domain.ClassificationResult {
	return domain.ClassificationResult{
		Specimen:           in.Specimen,
		Organism:           in.Organism,
		Antibiotic:         in.Antibiotic,
		Method:             in.Method,
		Input:              in,
		Decision:           decision,
		Reason:             reason,
		FiredRules:         fired,
		CatalogVersion:     catalogVersion,
		ExpertRuleDecision: expertRuleDecision,
	}
}
