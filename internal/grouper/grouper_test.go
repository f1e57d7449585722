package grouper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlab/amrclassify/internal/domain"
)

func susceptibility(specimen, antibiotic string, organism domain.OrganismKey) domain.ClassificationInput {
	return domain.ClassificationInput{
		Specimen:   domain.SpecimenRef(specimen),
		Organism:   organism,
		Antibiotic: domain.AntibioticKey(antibiotic),
		Method:     domain.MIC,
		Value:      domain.NewMICMeasurement(1.0, domain.ComparatorEQ),
		Phenotypes: map[domain.PhenotypeFlag]bool{},
	}
}

func TestGroup_AssignsUniqueOrganism(t *testing.T) {
	inputs := []domain.ClassificationInput{
		{Specimen: "spec-1", Organism: "escherichia coli", OrganismOnly: true},
		susceptibility("spec-1", "ceftriaxone", domain.UnresolvedOrganism),
	}
	out := Group(inputs, "msg-1")
	require.Len(t, out, 1)
	assert.Equal(t, domain.OrganismKey("escherichia coli"), out[0].Organism)
}

func TestGroup_AmbiguousOrganismDuplicates(t *testing.T) {
	inputs := []domain.ClassificationInput{
		{Specimen: "spec-1", Organism: "escherichia coli", OrganismOnly: true},
		{Specimen: "spec-1", Organism: "klebsiella pneumoniae", OrganismOnly: true},
		susceptibility("spec-1", "ceftriaxone", domain.UnresolvedOrganism),
	}
	out := Group(inputs, "msg-1")
	require.Len(t, out, 2)
	for _, in := range out {
		assert.Equal(t, "true", in.Auxiliary["ambiguous-organism"])
	}
}

func TestGroup_MergesPhenotypeFlags(t *testing.T) {
	phenotypeOnly := domain.ClassificationInput{
		Specimen: "spec-1",
		Method:   domain.PHENOTYPE,
		Value:    domain.NewPhenotypeMeasurement(domain.PhenotypeESBL),
	}
	inputs := []domain.ClassificationInput{
		phenotypeOnly,
		susceptibility("spec-1", "ceftazidime", "escherichia coli"),
	}
	out := Group(inputs, "msg-1")
	require.Len(t, out, 1)
	assert.True(t, out[0].HasPhenotype(domain.PhenotypeESBL))
}

func TestGroup_SynthesizesSpecimenWhenAbsent(t *testing.T) {
	inputs := []domain.ClassificationInput{
		susceptibility("", "ceftriaxone", "escherichia coli"),
	}
	out := Group(inputs, "msg-42")
	require.Len(t, out, 1)
	assert.Equal(t, domain.SpecimenRef("msg-42#0"), out[0].Specimen)
}

func TestGroup_NoOrganismLeavesUnresolved(t *testing.T) {
	inputs := []domain.ClassificationInput{
		susceptibility("spec-1", "ceftriaxone", domain.UnresolvedOrganism),
	}
	out := Group(inputs, "msg-1")
	require.Len(t, out, 1)
	assert.Equal(t, domain.UnresolvedOrganism, out[0].Organism)
}
