package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinlab/amrclassify/internal/domain"
)

func TestFromResult_MapsFieldsAndRuleIDs(t *testing.T) {
	result := domain.ClassificationResult{
		Specimen:       "spec-1",
		Organism:       "escherichia coli",
		Antibiotic:     "ceftazidime",
		Method:         domain.MIC,
		Decision:       domain.Resistant,
		CatalogVersion: "eucast-2026.1",
		FiredRules: []domain.FiredRule{
			{RuleID: "ESBL-BL-OVR", Suppressed: false},
			{RuleID: "SOME-OTHER", Suppressed: true},
		},
	}
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	record := FromResult("corr-123", result, ts)

	assert.Equal(t, "corr-123", record.CorrelationID)
	assert.Equal(t, result.Specimen, record.Specimen)
	assert.Equal(t, result.Organism, record.Organism)
	assert.Equal(t, result.Antibiotic, record.Antibiotic)
	assert.Equal(t, result.Decision, record.Decision)
	assert.Equal(t, []string{"ESBL-BL-OVR"}, record.FiredRules)
	assert.Equal(t, ts, record.Timestamp)
}

func TestNopSink_DiscardsWithoutPanic(t *testing.T) {
	var s Sink = NopSink{}
	assert.NotPanics(t, func() {
		s.Emit(context.Background(), ClassificationAuditRecord{})
	})
}
