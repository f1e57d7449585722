// Package catalog loads, validates, versions, and atomically publishes
// the RuleCatalog snapshot consumed by the rest of the engine
// (spec §4.1). Catalog files are declarative YAML (or JSON, which
// parses as a YAML subset) documents; a directory is the union of its
// files.
package catalog

import "github.com/clinlab/amrclassify/internal/domain"

// document is the on-disk shape of one catalog file (spec §6 item 2).
// Any subset of the fields may be present; a directory's documents are
// merged before validation.
type document struct {
	Version           string                `yaml:"version"`
	Breakpoints       []breakpointDoc       `yaml:"breakpoints"`
	ExpertRules       []expertRuleDoc       `yaml:"expertRules"`
	IntrinsicResistance []intrinsicRuleDoc  `yaml:"intrinsicResistance"`
	OrganismGroups    map[string][]string   `yaml:"organismGroups"`
	AntibioticClasses map[string][]string   `yaml:"antibioticClasses"`
	Policy            *policyDoc            `yaml:"policy"`

	// declaredVersions accumulates every non-empty version string seen
	// across merged files, so validate() can reject a directory whose
	// files disagree on which catalog version they belong to (spec §6
	// item 2: "if multiple files define version, all must match").
	declaredVersions []string
}

type scopeDoc struct {
	Kind  string `yaml:"kind"`  // "exact" | "group" | "genus"
	Value string `yaml:"value"`
}

type rareDoc struct {
	Enabled      bool    `yaml:"enabled"`
	MarginAboveR float64 `yaml:"marginAboveR"`
}

type breakpointDoc struct {
	OrganismScope scopeDoc `yaml:"organismScope"`
	Antibiotic    string   `yaml:"antibiotic"`
	Method        string   `yaml:"method"`
	Source        string   `yaml:"source"`
	VersionLabel  string   `yaml:"versionLabel"`
	SThreshold    *float64 `yaml:"sThreshold"`
	IThreshold    *float64 `yaml:"iThreshold"`
	RThreshold    *float64 `yaml:"rThreshold"`
	Comparator    string   `yaml:"comparator"`
	Unit          string   `yaml:"unit"`
	Rare          *rareDoc `yaml:"rare"`
}

type valueCheckDoc struct {
	Field     string  `yaml:"field"`
	Op        string  `yaml:"op"`
	Threshold float64 `yaml:"threshold"`
}

type auxiliaryCheckDoc struct {
	Key    string `yaml:"key"`
	Equals string `yaml:"equals"`
}

type effectDoc struct {
	Decision          string `yaml:"decision"`
	RationaleTemplate string `yaml:"rationaleTemplate"`
	AppliesToClass    string `yaml:"appliesToClass"`
}

type expertRuleDoc struct {
	ID                 string             `yaml:"id"`
	Priority           int                `yaml:"priority"`
	OrganismScope      scopeDoc           `yaml:"organismScope"`
	RequirePhenotypes  []string           `yaml:"requirePhenotypes"`
	AntibioticSet      []string           `yaml:"antibioticSet"`
	MethodSet          []string           `yaml:"methodSet"`
	ValuePredicate     *valueCheckDoc     `yaml:"valuePredicate"`
	AuxiliaryPredicate *auxiliaryCheckDoc `yaml:"auxiliaryPredicate"`
	Effect             effectDoc          `yaml:"effect"`
	Exceptions         []string           `yaml:"exceptions"`
}

type intrinsicRuleDoc struct {
	ID              string   `yaml:"id"`
	OrganismScope   scopeDoc `yaml:"organismScope"`
	Antibiotics     []string `yaml:"antibiotics"`
	AntibioticClass string   `yaml:"antibioticClass"`
}

type policyDoc struct {
	DefaultSource            string   `yaml:"defaultSource"`
	SourceFallbackOrder      []string `yaml:"sourceFallbackOrder"`
	MethodPrecedenceEnabled  *bool    `yaml:"methodPrecedenceEnabled"`
	PreferredMethod          string   `yaml:"preferredMethod"`
	AntiMRSAExceptionClass   string   `yaml:"antiMRSAExceptionClass"`
	MRSAExceptionsReviewable bool     `yaml:"mrsaExceptionsReviewable"`
	ESBLExceptionClasses     []string `yaml:"esblExceptionClasses"`
}

func (d *document) merge(other document) {
	if other.Version != "" {
		d.declaredVersions = append(d.declaredVersions, other.Version)
		d.Version = other.Version
	}
	d.Breakpoints = append(d.Breakpoints, other.Breakpoints...)
	d.ExpertRules = append(d.ExpertRules, other.ExpertRules...)
	d.IntrinsicResistance = append(d.IntrinsicResistance, other.IntrinsicResistance...)
	if d.OrganismGroups == nil {
		d.OrganismGroups = map[string][]string{}
	}
	for k, v := range other.OrganismGroups {
		d.OrganismGroups[k] = append(d.OrganismGroups[k], v...)
	}
	if d.AntibioticClasses == nil {
		d.AntibioticClasses = map[string][]string{}
	}
	for k, v := range other.AntibioticClasses {
		d.AntibioticClasses[k] = append(d.AntibioticClasses[k], v...)
	}
	if other.Policy != nil {
		d.Policy = other.Policy
	}
}

func scopeFromDoc(s scopeDoc) domain.OrganismScope {
	switch s.Kind {
	case "group":
		return domain.GroupScope(s.Value)
	case "genus":
		return domain.GenusScope(s.Value)
	default:
		return domain.ExactScope(domain.OrganismKey(domain.NormalizeDisplay(s.Value)))
	}
}
