package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinlab/amrclassify/internal/domain"
)

func TestAssemble_EchoesInputAndStampsVersion(t *testing.T) {
	in := domain.ClassificationInput{
		Specimen:   "spec-1",
		Organism:   "escherichia coli",
		Antibiotic: "ceftriaxone",
		Method:     domain.MIC,
		Value:      domain.NewMICMeasurement(0.25, domain.ComparatorEQ),
	}
	fired := []domain.FiredRule{{RuleID: "ESBL-BL-OVR", Reason: "ESBL override for beta-lactam class"}}

	out := Assemble(in, domain.Resistant, "ESBL override for beta-lactam class", fired, "eucast-2026.1", true)

	assert.Equal(t, in.Specimen, out.Specimen)
	assert.Equal(t, in.Organism, out.Organism)
	assert.Equal(t, in.Antibiotic, out.Antibiotic)
	assert.Equal(t, in.Method, out.Method)
	assert.Equal(t, in, out.Input)
	assert.Equal(t, domain.Resistant, out.Decision)
	assert.Equal(t, "eucast-2026.1", out.CatalogVersion)
	assert.True(t, out.ExpertRuleDecision)
	assert.Equal(t, []string{"ESBL-BL-OVR"}, out.RuleIDs())
}
