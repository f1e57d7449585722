package gating

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinlab/amrclassify/internal/domain"
)

func baseInput() domain.ClassificationInput {
	return domain.ClassificationInput{
		Organism:   "escherichia coli",
		Antibiotic: "ceftriaxone",
		Method:     domain.MIC,
		Value:      domain.NewMICMeasurement(1.0, domain.ComparatorEQ),
	}
}

func TestEvaluate_Pass(t *testing.T) {
	out := Evaluate(baseInput())
	assert.True(t, out.Pass)
}

func TestEvaluate_VariantMismatch(t *testing.T) {
	in := baseInput()
	in.Value.Kind = domain.DISC
	out := Evaluate(in)
	assert.False(t, out.Pass)
	assert.Equal(t, "method/value inconsistent", out.Reason)
}

func TestEvaluate_MissingMIC(t *testing.T) {
	in := baseInput()
	in.Value = domain.NewMissingMIC()
	out := Evaluate(in)
	assert.False(t, out.Pass)
	assert.Equal(t, "MIC value missing for MIC method", out.Reason)
}

func TestEvaluate_MissingDisc(t *testing.T) {
	in := baseInput()
	in.Method = domain.DISC
	in.Value = domain.NewMissingDisc()
	out := Evaluate(in)
	assert.False(t, out.Pass)
	assert.Equal(t, "Zone diameter missing for disk method", out.Reason)
}

func TestEvaluate_OrganismUnresolved(t *testing.T) {
	in := baseInput()
	in.Organism = domain.UnresolvedOrganism
	out := Evaluate(in)
	assert.False(t, out.Pass)
	assert.Equal(t, "organism not recognized", out.Reason)
}

func TestEvaluate_AntibioticUnresolved(t *testing.T) {
	in := baseInput()
	in.Antibiotic = domain.UnresolvedAntibiotic
	out := Evaluate(in)
	assert.False(t, out.Pass)
	assert.Equal(t, "antibiotic not recognized", out.Reason)
}

func TestEvaluate_MICOutOfRange(t *testing.T) {
	in := baseInput()
	in.Value = domain.NewMICMeasurement(2048, domain.ComparatorEQ)
	out := Evaluate(in)
	assert.False(t, out.Pass)
	assert.Contains(t, out.Reason, "out of plausible range")
}

func TestEvaluate_DiscOutOfRange(t *testing.T) {
	in := baseInput()
	in.Method = domain.DISC
	in.Value = domain.NewDiscMeasurement(150, domain.ComparatorEQ)
	out := Evaluate(in)
	assert.False(t, out.Pass)
	assert.Contains(t, out.Reason, "out of plausible range")
}

func TestEvaluate_GateOrder_MICMissingBeforeOrganismCheck(t *testing.T) {
	in := baseInput()
	in.Value = domain.NewMissingMIC()
	in.Organism = domain.UnresolvedOrganism
	out := Evaluate(in)
	assert.Equal(t, "MIC value missing for MIC method", out.Reason)
}
