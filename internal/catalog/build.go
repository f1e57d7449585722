package catalog

import (
	"strings"

	"github.com/clinlab/amrclassify/internal/domain"
)

// build translates a validated document into an immutable RuleCatalog.
// Callers must run validate() first and only call build() when no
// violations were returned.
func build(doc *document, versionLabel string) *domain.RuleCatalog {
	groups := resolveOrganismGroups(doc.OrganismGroups)

	classes := make(map[string][]domain.AntibioticKey, len(doc.AntibioticClasses))
	for name, members := range doc.AntibioticClasses {
		keys := make([]domain.AntibioticKey, 0, len(members))
		for _, m := range members {
			keys = append(keys, domain.AntibioticKey(domain.NormalizeDisplay(m)))
		}
		classes[name] = keys
	}

	entries := make([]domain.BreakpointEntry, 0, len(doc.Breakpoints))
	for _, e := range doc.Breakpoints {
		entries = append(entries, domain.BreakpointEntry{
			OrganismScope: normalizeScope(scopeFromDoc(e.OrganismScope)),
			Antibiotic:    domain.AntibioticKey(domain.NormalizeDisplay(e.Antibiotic)),
			Method:        domain.MethodKind(e.Method),
			Source:        domain.Source(e.Source),
			VersionLabel:  e.VersionLabel,
			SThreshold:    e.SThreshold,
			IThreshold:    e.IThreshold,
			RThreshold:    e.RThreshold,
			Comparator:    domain.ComparatorSemantics(e.Comparator),
			Unit:          domain.Unit(e.Unit),
			Rare:          rareFromDoc(e.Rare),
		})
	}

	expertRules := make([]domain.ExpertRule, 0, len(doc.ExpertRules))
	for _, r := range doc.ExpertRules {
		expertRules = append(expertRules, domain.ExpertRule{
			ID:                 r.ID,
			Priority:           r.Priority,
			OrganismScope:      normalizeScope(scopeFromDoc(r.OrganismScope)),
			RequirePhenotypes:  phenotypesFromStrings(r.RequirePhenotypes),
			AntibioticSet:      antibioticsFromStrings(r.AntibioticSet),
			MethodSet:          methodsFromStrings(r.MethodSet),
			ValuePredicate:     valueCheckFromDoc(r.ValuePredicate),
			AuxiliaryPredicate: auxCheckFromDoc(r.AuxiliaryPredicate),
			Effect: domain.RuleEffect{
				Decision:          domain.Decision(r.Effect.Decision),
				RationaleTemplate: r.Effect.RationaleTemplate,
				AppliesToClass:    r.Effect.AppliesToClass,
			},
			Exceptions: antibioticsFromStrings(r.Exceptions),
		})
	}

	intrinsic := make([]domain.IntrinsicRule, 0, len(doc.IntrinsicResistance))
	for _, r := range doc.IntrinsicResistance {
		intrinsic = append(intrinsic, domain.IntrinsicRule{
			ID:              r.ID,
			OrganismScope:   normalizeScope(scopeFromDoc(r.OrganismScope)),
			Antibiotics:     antibioticsFromStrings(r.Antibiotics),
			AntibioticClass: r.AntibioticClass,
		})
	}

	policy := domain.CatalogPolicy{
		DefaultSource:           domain.EUCAST,
		SourceFallbackOrder:     []domain.Source{domain.EUCAST, domain.CLSI, domain.LOCAL},
		MethodPrecedenceEnabled: true,
		PreferredMethod:         domain.MIC,
	}
	if doc.Policy != nil {
		p := doc.Policy
		if p.DefaultSource != "" {
			policy.DefaultSource = domain.Source(p.DefaultSource)
		}
		if len(p.SourceFallbackOrder) > 0 {
			policy.SourceFallbackOrder = nil
			for _, s := range p.SourceFallbackOrder {
				policy.SourceFallbackOrder = append(policy.SourceFallbackOrder, domain.Source(s))
			}
		}
		if p.MethodPrecedenceEnabled != nil {
			policy.MethodPrecedenceEnabled = *p.MethodPrecedenceEnabled
		}
		if p.PreferredMethod != "" {
			policy.PreferredMethod = domain.MethodKind(p.PreferredMethod)
		}
		policy.AntiMRSAExceptionClass = p.AntiMRSAExceptionClass
		policy.MRSAExceptionsReviewable = p.MRSAExceptionsReviewable
		policy.ESBLExceptionClasses = p.ESBLExceptionClasses
	}

	return &domain.RuleCatalog{
		VersionLabel:      versionLabel,
		Entries:           entries,
		ExpertRules:       expertRules,
		Intrinsic:         intrinsic,
		OrganismGroups:    groups,
		AntibioticClasses: classes,
		Policy:            policy,
	}
}

// normalizeScope lowercase/normalizes the organism-identifying Value of
// exact and genus scopes so matching is consistent with
// domain.NormalizeDisplay; group scope values are catalog-author
// identifiers and are left as-is.
func normalizeScope(s domain.OrganismScope) domain.OrganismScope {
	switch s.Kind {
	case domain.ScopeExact:
		return domain.ExactScope(domain.OrganismKey(domain.NormalizeDisplay(s.Value)))
	case domain.ScopeGenus:
		return domain.GenusScope(s.Value)
	default:
		return s
	}
}

func rareFromDoc(r *rareDoc) domain.RareResistance {
	if r == nil {
		return domain.RareResistance{}
	}
	return domain.RareResistance{Enabled: r.Enabled, MarginAboveR: r.MarginAboveR}
}

func valueCheckFromDoc(v *valueCheckDoc) *domain.ValueCheck {
	if v == nil {
		return nil
	}
	return &domain.ValueCheck{Field: domain.MethodKind(v.Field), Op: v.Op, Threshold: v.Threshold}
}

func auxCheckFromDoc(a *auxiliaryCheckDoc) *domain.AuxiliaryCheck {
	if a == nil {
		return nil
	}
	return &domain.AuxiliaryCheck{Key: a.Key, Equals: a.Equals}
}

func phenotypesFromStrings(ss []string) []domain.PhenotypeFlag {
	out := make([]domain.PhenotypeFlag, 0, len(ss))
	for _, s := range ss {
		out = append(out, domain.PhenotypeFlag(s))
	}
	return out
}

func antibioticsFromStrings(ss []string) []domain.AntibioticKey {
	out := make([]domain.AntibioticKey, 0, len(ss))
	for _, s := range ss {
		out = append(out, domain.AntibioticKey(domain.NormalizeDisplay(s)))
	}
	return out
}

func methodsFromStrings(ss []string) []domain.MethodKind {
	out := make([]domain.MethodKind, 0, len(ss))
	for _, s := range ss {
		out = append(out, domain.MethodKind(s))
	}
	return out
}

// resolveOrganismGroups flattens nested "group:<name>" memberships into
// a direct set of OrganismKey per named group. Callers must have
// already validated the graph is acyclic.
func resolveOrganismGroups(raw map[string][]string) map[string][]domain.OrganismKey {
	memo := map[string][]domain.OrganismKey{}

	var resolve func(name string) []domain.OrganismKey
	resolve = func(name string) []domain.OrganismKey {
		if cached, ok := memo[name]; ok {
			return cached
		}
		var out []domain.OrganismKey
		for _, member := range raw[name] {
			if ref, ok := strings.CutPrefix(member, "group:"); ok {
				out = append(out, resolve(ref)...)
				continue
			}
			out = append(out, domain.OrganismKey(domain.NormalizeDisplay(member)))
		}
		memo[name] = out
		return out
	}

	result := make(map[string][]domain.OrganismKey, len(raw))
	for name := range raw {
		result[name] = resolve(name)
	}
	return result
}
