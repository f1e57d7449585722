package terminology

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinlab/amrclassify/internal/domain"
)

func TestAliasesFromCatalog_CoversEveryDeclaredName(t *testing.T) {
	cat := &domain.RuleCatalog{
		Entries: []domain.BreakpointEntry{
			{OrganismScope: domain.ExactScope("escherichia coli"), Antibiotic: "amoxicillin"},
		},
		Intrinsic: []domain.IntrinsicRule{
			{OrganismScope: domain.ExactScope("pseudomonas aeruginosa"), Antibiotics: []domain.AntibioticKey{"ceftriaxone"}},
		},
		ExpertRules: []domain.ExpertRule{
			{OrganismScope: domain.ExactScope("staphylococcus aureus"), AntibioticSet: []domain.AntibioticKey{"oxacillin"}, Exceptions: []domain.AntibioticKey{"ceftaroline"}},
		},
		OrganismGroups: map[string][]domain.OrganismKey{
			"enterobacterales": {"klebsiella pneumoniae"},
		},
		AntibioticClasses: map[string][]domain.AntibioticKey{
			"beta-lactam": {"ceftazidime"},
		},
	}

	organisms, antibiotics := AliasesFromCatalog(cat)

	assert.Equal(t, "escherichia coli", organisms["escherichia coli"])
	assert.Equal(t, "pseudomonas aeruginosa", organisms["pseudomonas aeruginosa"])
	assert.Equal(t, "staphylococcus aureus", organisms["staphylococcus aureus"])
	assert.Equal(t, "klebsiella pneumoniae", organisms["klebsiella pneumoniae"])

	assert.Equal(t, "amoxicillin", antibiotics["amoxicillin"])
	assert.Equal(t, "ceftriaxone", antibiotics["ceftriaxone"])
	assert.Equal(t, "oxacillin", antibiotics["oxacillin"])
	assert.Equal(t, "ceftaroline", antibiotics["ceftaroline"])
	assert.Equal(t, "ceftazidime", antibiotics["ceftazidime"])
}

func TestAliasesFromCatalog_NilCatalogReturnsEmptyMaps(t *testing.T) {
	organisms, antibiotics := AliasesFromCatalog(nil)
	assert.Empty(t, organisms)
	assert.Empty(t, antibiotics)
}
