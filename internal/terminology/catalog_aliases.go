package terminology

import "github.com/clinlab/amrclassify/internal/domain"

// AliasesFromCatalog derives identity alias tables (canonical display ->
// itself) from every organism and antibiotic name a catalog snapshot
// already knows about: breakpoint entries, intrinsic rules, expert
// rules, organism groups, and antibiotic classes. Deployments that have
// no external coded-value feed for terminology still get alias
// resolution for every name the catalog itself declares, the same way
// the catalog is already the source of truth for breakpoints and rules
// (spec §4.1, §4.2).
func AliasesFromCatalog(cat *domain.RuleCatalog) (organisms map[string]string, antibiotics map[string]string) {
	organisms = map[string]string{}
	antibiotics = map[string]string{}
	if cat == nil {
		return organisms, antibiotics
	}

	addOrganism := func(o domain.OrganismKey) {
		if o.IsResolved() {
			organisms[string(o)] = string(o)
		}
	}
	addAntibiotic := func(a domain.AntibioticKey) {
		if a.IsResolved() {
			antibiotics[string(a)] = string(a)
		}
	}
	addScope := func(s domain.OrganismScope) {
		if s.Kind == domain.ScopeExact {
			addOrganism(domain.OrganismKey(s.Value))
		}
	}

	for _, e := range cat.Entries {
		addScope(e.OrganismScope)
		addAntibiotic(e.Antibiotic)
	}
	for _, r := range cat.Intrinsic {
		addScope(r.OrganismScope)
		for _, a := range r.Antibiotics {
			addAntibiotic(a)
		}
	}
	for _, r := range cat.ExpertRules {
		addScope(r.OrganismScope)
		for _, a := range r.AntibioticSet {
			addAntibiotic(a)
		}
		for _, a := range r.Exceptions {
			addAntibiotic(a)
		}
	}
	for _, members := range cat.OrganismGroups {
		for _, o := range members {
			addOrganism(o)
		}
	}
	for _, members := range cat.AntibioticClasses {
		for _, a := range members {
			addAntibiotic(a)
		}
	}

	return organisms, antibiotics
}
