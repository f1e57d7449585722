package main

import "github.com/clinlab/amrclassify/internal/domain"

// resultView is the CLI's JSON presentation of a domain.ClassificationResult.
// Kept separate from the domain type so the core package is free to
// reshape internally without coupling to a wire format; this is the
// same seam the teacher draws between internal/domain and its
// internal/api response DTOs.
type resultView struct {
	Specimen       string          `json:"specimen"`
	Organism       string          `json:"organism"`
	Antibiotic     string          `json:"antibiotic"`
	Method         string          `json:"method"`
	Decision       string          `json:"decision"`
	Reason         string          `json:"reason"`
	FiredRules     []string        `json:"fired_rules,omitempty"`
	CatalogVersion string          `json:"catalog_version"`
	FiredRuleTrail []firedRuleView `json:"fired_rule_trail,omitempty"`
}

type firedRuleView struct {
	RuleID     string `json:"rule_id"`
	Suppressed bool   `json:"suppressed"`
	Reason     string `json:"reason,omitempty"`
}

func newResultView(r domain.ClassificationResult) resultView {
	trail := make([]firedRuleView, 0, len(r.FiredRules))
	for _, fr := range r.FiredRules {
		trail = append(trail, firedRuleView{RuleID: fr.RuleID, Suppressed: fr.Suppressed, Reason: fr.Reason})
	}
	return resultView{
		Specimen:       string(r.Specimen),
		Organism:       string(r.Organism),
		Antibiotic:     string(r.Antibiotic),
		Method:         string(r.Method),
		Decision:       string(r.Decision),
		Reason:         r.Reason,
		FiredRules:     r.RuleIDs(),
		CatalogVersion: r.CatalogVersion,
		FiredRuleTrail: trail,
	}
}
