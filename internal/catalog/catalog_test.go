package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlab/amrclassify/internal/domain"
)

func f(v float64) *float64 { return &v }

func validMICEntry() breakpointDoc {
	return breakpointDoc{
		OrganismScope: scopeDoc{Kind: "exact", Value: "Escherichia coli"},
		Antibiotic:    "Amoxicillin",
		Method:        "MIC",
		Source:        "EUCAST",
		SThreshold:    f(8),
		RThreshold:    f(8),
		Comparator:    string(domain.LE_S_GT_R),
		Unit:          string(domain.UnitMgPerL),
	}
}

func TestValidate_AcceptsWellFormedDocument(t *testing.T) {
	doc := document{Breakpoints: []breakpointDoc{validMICEntry()}}
	errs := validate(&doc)
	assert.Empty(t, errs)
}

func TestValidate_RejectsWrongUnitForMethod(t *testing.T) {
	entry := validMICEntry()
	entry.Unit = string(domain.UnitMM)
	doc := document{Breakpoints: []breakpointDoc{entry}}
	errs := validate(&doc)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Path, "unit")
}

func TestValidate_RejectsDuplicateBreakpointEntries(t *testing.T) {
	entry := validMICEntry()
	doc := document{Breakpoints: []breakpointDoc{entry, entry}}
	errs := validate(&doc)
	found := false
	for _, e := range errs {
		if e.Path == "breakpoints[1]" {
			found = true
		}
	}
	assert.True(t, found, "expected a duplicate-entry violation on the second entry")
}

func TestValidate_RejectsExpertRuleWithNoAntibioticTarget(t *testing.T) {
	doc := document{ExpertRules: []expertRuleDoc{{ID: "R1", Effect: effectDoc{Decision: "R"}}}}
	errs := validate(&doc)
	require.NotEmpty(t, errs)
}

func TestValidate_RejectsCyclicOrganismGroups(t *testing.T) {
	doc := document{OrganismGroups: map[string][]string{
		"a": {"group:b"},
		"b": {"group:a"},
	}}
	errs := validate(&doc)
	require.NotEmpty(t, errs)
}

func TestBuild_NormalizesNamesAndPreservesThresholds(t *testing.T) {
	doc := document{Breakpoints: []breakpointDoc{validMICEntry()}}
	cat := build(&doc, "EUCAST-2025.1")

	require.Len(t, cat.Entries, 1)
	entry := cat.Entries[0]
	assert.Equal(t, domain.AntibioticKey("amoxicillin"), entry.Antibiotic)
	assert.Equal(t, domain.OrganismScope{Kind: domain.ScopeExact, Value: "escherichia coli"}, entry.OrganismScope)
	assert.Equal(t, 8.0, *entry.SThreshold)
	assert.Equal(t, "EUCAST-2025.1", cat.VersionLabel)
}

func TestDiff_ReportsAddedRemovedAndChangedRules(t *testing.T) {
	oldCat := &domain.RuleCatalog{
		VersionLabel: "v1",
		Entries: []domain.BreakpointEntry{
			{OrganismScope: domain.ExactScope("escherichia coli"), Antibiotic: "amoxicillin", Method: domain.MIC, Source: domain.EUCAST},
		},
		ExpertRules: []domain.ExpertRule{
			{ID: "R1", Priority: 10, Effect: domain.RuleEffect{Decision: domain.Resistant}},
		},
	}
	newCat := &domain.RuleCatalog{
		VersionLabel: "v2",
		Entries: []domain.BreakpointEntry{
			{OrganismScope: domain.ExactScope("klebsiella pneumoniae"), Antibiotic: "ceftriaxone", Method: domain.MIC, Source: domain.EUCAST},
		},
		ExpertRules: []domain.ExpertRule{
			{ID: "R1", Priority: 20, Effect: domain.RuleEffect{Decision: domain.Resistant}},
		},
	}

	summary := Diff(oldCat, newCat)
	assert.Equal(t, "v1", summary.VersionFrom)
	assert.Equal(t, "v2", summary.VersionTo)
	assert.False(t, summary.Empty())
	assert.Len(t, summary.BreakpointsAdded, 1)
	assert.Len(t, summary.BreakpointsRemoved, 1)
	assert.Equal(t, []string{"R1"}, summary.ExpertRulesChanged)
}

func TestDiff_EmptyWhenCatalogsAreIdentical(t *testing.T) {
	cat := &domain.RuleCatalog{
		Entries: []domain.BreakpointEntry{
			{OrganismScope: domain.ExactScope("escherichia coli"), Antibiotic: "amoxicillin", Method: domain.MIC, Source: domain.EUCAST},
		},
	}
	summary := Diff(cat, cat)
	assert.True(t, summary.Empty())
}
