package domain

import "strings"

// Source is the breakpoint table a BreakpointEntry was drawn from.
type Source string

const (
	EUCAST Source = "EUCAST"
	CLSI   Source = "CLSI"
	LOCAL  Source = "LOCAL"
)

// Unit is the physical unit of a breakpoint threshold.
type Unit string

const (
	UnitMgPerL Unit = "MG_PER_L"
	UnitMM     Unit = "MM"
)

// ComparatorSemantics selects how a measured value is compared against
// S/I/R thresholds (spec §3).
type ComparatorSemantics string

const (
	LE_S_GE_R        ComparatorSemantics = "LE_S_GE_R"
	LE_S_GT_R         ComparatorSemantics = "LE_S_GT_R"
	LE_S_LE_I_GT_R   ComparatorSemantics = "LE_S_LE_I_GT_R"
	InverseForDisc    ComparatorSemantics = "INVERSE_FOR_DISC"
)

// ScopeKind is how an OrganismScope matches a candidate organism.
type ScopeKind int

const (
	ScopeExact ScopeKind = iota
	ScopeGroup
	ScopeGenus
)

// Specificity ranks scope kinds for most-specific-wins resolution
// (spec §3, §4.7 step 2): exact > group > genus.
func (k ScopeKind) Specificity() int {
	switch k {
	case ScopeExact:
		return 3
	case ScopeGroup:
		return 2
	case ScopeGenus:
		return 1
	default:
		return 0
	}
}

// OrganismScope matches a candidate OrganismKey either exactly, by
// membership in a catalog-declared named group, or by genus (the first
// whitespace-delimited token of the canonical organism string).
type OrganismScope struct {
	Kind  ScopeKind
	Value string // organism key, group name, or genus token, depending on Kind
}

// ExactScope builds an OrganismScope matching only the given organism.
func ExactScope(o OrganismKey) OrganismScope {
	return OrganismScope{Kind: ScopeExact, Value: string(o)}
}

// GroupScope builds an OrganismScope matching catalog group membership.
func GroupScope(group string) OrganismScope {
	return OrganismScope{Kind: ScopeGroup, Value: group}
}

// GenusScope builds an OrganismScope matching by genus token.
func GenusScope(genus string) OrganismScope {
	return OrganismScope{Kind: ScopeGenus, Value: strings.ToLower(genus)}
}

// GenusOf returns the genus token (first word) of a canonical organism
// key, or "" if empty.
func GenusOf(o OrganismKey) string {
	s := string(o)
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		return s[:idx]
	}
	return s
}

// Matches reports whether the scope matches the organism, consulting
// the catalog's organism-groups map for ScopeGroup scopes.
func (s OrganismScope) Matches(organism OrganismKey, groups map[string][]OrganismKey) bool {
	switch s.Kind {
	case ScopeExact:
		return string(organism) == s.Value
	case ScopeGenus:
		return GenusOf(organism) == s.Value
	case ScopeGroup:
		for _, member := range groups[s.Value] {
			if member == organism {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// RareResistance declares the rarity flag and margin that produce an
// RR decision instead of R (spec §4.7, Open Question #2 — resolved in
// DESIGN.md).
type RareResistance struct {
	Enabled      bool
	MarginAboveR float64
}

// BreakpointEntry is one organism-scope/antibiotic/method/source
// threshold row (spec §3).
type BreakpointEntry struct {
	OrganismScope OrganismScope
	Antibiotic    AntibioticKey
	Method        MethodKind
	Source        Source
	VersionLabel  string
	SThreshold    *float64
	IThreshold    *float64
	RThreshold    *float64
	Comparator    ComparatorSemantics
	Unit          Unit
	Rare          RareResistance
}

// ValueCheck is a declarative numeric predicate over a measurement,
// used by catalog expert rules in place of an inline closure, so rule
// definitions remain data (spec §9 "Expert rules as data").
type ValueCheck struct {
	Field      MethodKind // MIC or DISC
	Op         string     // "<", "<=", ">", ">="
	Threshold  float64
}

// Evaluate applies the check to a measurement; returns false if the
// measurement's kind doesn't match the check's field or the value is
// missing.
func (vc *ValueCheck) Evaluate(m Measurement) bool {
	if vc == nil {
		return true
	}
	var v float64
	switch vc.Field {
	case MIC:
		if !m.MICPresent {
			return false
		}
		v = m.MICValue
	case DISC:
		if !m.DiscPresent {
			return false
		}
		v = float64(m.DiscValue)
	default:
		return false
	}
	switch vc.Op {
	case "<":
		return v < vc.Threshold
	case "<=":
		return v <= vc.Threshold
	case ">":
		return v > vc.Threshold
	case ">=":
		return v >= vc.Threshold
	default:
		return false
	}
}

// AuxiliaryCheck is a declarative equality predicate over
// ClassificationInput.Auxiliary.
type AuxiliaryCheck struct {
	Key    string
	Equals string
}

func (ac *AuxiliaryCheck) Evaluate(aux map[string]string) bool {
	if ac == nil {
		return true
	}
	return aux[ac.Key] == ac.Equals
}

// RuleEffect is what an ExpertRule does when its predicate matches.
type RuleEffect struct {
	Decision          Decision
	RationaleTemplate string
	AppliesToClass    string // antibiotic-class name resolved via RuleCatalog.AntibioticClasses; "" means AntibioticSet only
}

// ExpertRule is a catalog-declared override evaluated before breakpoint
// interpretation (spec §3, §4.6 step 3).
type ExpertRule struct {
	ID                string
	Priority          int // higher wins; ties broken by ID (spec §3)
	OrganismScope     OrganismScope
	RequirePhenotypes []PhenotypeFlag // all must be present
	AntibioticSet     []AntibioticKey // explicit set; empty means "see Effect.AppliesToClass"
	MethodSet         []MethodKind    // empty means "any method"
	ValuePredicate    *ValueCheck
	AuxiliaryPredicate *AuxiliaryCheck
	Effect            RuleEffect
	Exceptions        []AntibioticKey
}

// IntrinsicRule declares an antibiotic (or class) as inherently
// resistant for an organism scope regardless of measured value
// (spec §4.6 step 1).
type IntrinsicRule struct {
	ID              string
	OrganismScope   OrganismScope
	Antibiotics     []AntibioticKey
	AntibioticClass string
}

// CatalogPolicy holds the catalog-configurable behavior knobs spec.md
// leaves as Open Questions (§9): the anti-MRSA-cephalosporin exception
// set, the conflict-resolution method precedence, and source fallback.
type CatalogPolicy struct {
	DefaultSource            Source
	SourceFallbackOrder      []Source
	MethodPrecedenceEnabled  bool
	PreferredMethod          MethodKind
	AntiMRSAExceptionClass   string // e.g. "anti-MRSA cephalosporins"
	MRSAExceptionsReviewable bool   // true: exceptions go to REQUIRES_REVIEW instead of breakpoint interpretation
	ESBLExceptionClasses     []string
}

// RuleCatalog is the immutable, versioned set of breakpoints and rules
// published by the catalog store (spec §3, §4.1). Once constructed it
// is never mutated; reload always builds and publishes a new value.
type RuleCatalog struct {
	VersionLabel      string
	Entries           []BreakpointEntry
	ExpertRules       []ExpertRule
	Intrinsic         []IntrinsicRule
	OrganismGroups    map[string][]OrganismKey
	AntibioticClasses map[string][]AntibioticKey
	Policy            CatalogPolicy
}

// ClassMembers resolves a declared antibiotic-class name to its member
// set, minus any exceptions.
func (c *RuleCatalog) ClassMembers(className string, exceptions []AntibioticKey) []AntibioticKey {
	members := c.AntibioticClasses[className]
	if len(exceptions) == 0 {
		return members
	}
	excluded := make(map[AntibioticKey]bool, len(exceptions))
	for _, e := range exceptions {
		excluded[e] = true
	}
	out := make([]AntibioticKey, 0, len(members))
	for _, m := range members {
		if !excluded[m] {
			out = append(out, m)
		}
	}
	return out
}
