package engine

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlab/amrclassify/internal/adapters"
	"github.com/clinlab/amrclassify/internal/catalog"
	"github.com/clinlab/amrclassify/internal/domain"
	"github.com/clinlab/amrclassify/internal/terminology"
)

func f(v float64) *float64 { return &v }

func testCatalog() *domain.RuleCatalog {
	return &domain.RuleCatalog{
		VersionLabel: "EUCAST-2025.1",
		Entries: []domain.BreakpointEntry{
			{OrganismScope: domain.GenusScope("escherichia"), Antibiotic: "amoxicillin", Method: domain.MIC, Source: domain.EUCAST, SThreshold: f(8), RThreshold: f(8), Unit: domain.UnitMgPerL},
			{OrganismScope: domain.ExactScope("klebsiella pneumoniae"), Antibiotic: "ceftriaxone", Method: domain.MIC, Source: domain.EUCAST, SThreshold: f(1), RThreshold: f(1), Unit: domain.UnitMgPerL},
			{OrganismScope: domain.ExactScope("klebsiella pneumoniae"), Antibiotic: "ceftriaxone", Method: domain.DISC, Source: domain.EUCAST, SThreshold: f(20), RThreshold: f(14), Unit: domain.UnitMM},
		},
		Intrinsic: []domain.IntrinsicRule{
			{ID: "INTR-PAE-CRO", OrganismScope: domain.ExactScope("pseudomonas aeruginosa"), Antibiotics: []domain.AntibioticKey{"ceftriaxone"}},
		},
		OrganismGroups: map[string][]domain.OrganismKey{
			"enterobacterales": {"escherichia coli", "klebsiella pneumoniae"},
		},
		AntibioticClasses: map[string][]domain.AntibioticKey{
			"beta-lactam":             {"ceftazidime", "ceftriaxone", "oxacillin"},
			"anti-mrsa-cephalosporin": {"ceftaroline"},
		},
		Policy: domain.CatalogPolicy{
			DefaultSource:           domain.EUCAST,
			SourceFallbackOrder:     []domain.Source{domain.EUCAST, domain.CLSI, domain.LOCAL},
			MethodPrecedenceEnabled: true,
			PreferredMethod:         domain.MIC,
			AntiMRSAExceptionClass:  "anti-mrsa-cephalosporin",
		},
	}
}

func testStore(t *testing.T) *catalog.Store {
	t.Helper()
	store := catalog.NewStore("unused", 0, logrus.NewEntry(logrus.StandardLogger()))
	cat := testCatalog()
	store.Publish(cat)
	return store
}

func testNormalizer(t *testing.T) *terminology.Normalizer {
	t.Helper()
	n, err := terminology.New(terminology.Config{
		OrganismAliases: map[string]string{
			"escherichia coli":      "escherichia coli",
			"pseudomonas aeruginosa": "pseudomonas aeruginosa",
			"staphylococcus aureus":  "staphylococcus aureus",
			"klebsiella pneumoniae":  "klebsiella pneumoniae",
		},
		AntibioticAliases: map[string]string{
			"amoxicillin":  "amoxicillin",
			"ceftriaxone":  "ceftriaxone",
			"ceftazidime":  "ceftazidime",
			"oxacillin":    "oxacillin",
		},
	}, logrus.NewEntry(logrus.StandardLogger()))
	require.NoError(t, err)
	return n
}

func TestClassify_S1_MICSusceptible(t *testing.T) {
	eng := New(testStore(t), testNormalizer(t), nil, nil)
	payload := []byte(`{"specimen":"S1","organism":"Escherichia coli","antibiotic":"Amoxicillin","method":"MIC","mic":{"value":4.0,"present":true}}`)

	results, err := eng.Classify(context.Background(), payload, adapters.FormatNative, "", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.Susceptible, results[0].Decision)
	assert.Equal(t, "MIC 4.0 mg/L <= S threshold 8.0 mg/L", results[0].Reason)
	assert.Equal(t, "EUCAST-2025.1", results[0].CatalogVersion)
}

func TestClassify_S4_IntrinsicResistance(t *testing.T) {
	eng := New(testStore(t), testNormalizer(t), nil, nil)
	payload := []byte(`{"organism":"Pseudomonas aeruginosa","antibiotic":"Ceftriaxone","method":"MIC","mic":{"value":0.5,"present":true}}`)

	results, err := eng.Classify(context.Background(), payload, adapters.FormatNative, "", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.Resistant, results[0].Decision)
	assert.Equal(t, []string{"INTR-PAE-CRO"}, results[0].RuleIDs())
}

func TestClassify_S5_ESBLOverride(t *testing.T) {
	eng := New(testStore(t), testNormalizer(t), nil, nil)
	payload := []byte(`{"organism":"Escherichia coli","antibiotic":"Ceftazidime","method":"MIC","mic":{"value":1,"present":true},"phenotypes":["ESBL"]}`)

	results, err := eng.Classify(context.Background(), payload, adapters.FormatNative, "", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.Resistant, results[0].Decision)
	assert.Equal(t, []string{"ESBL-BL-OVR"}, results[0].RuleIDs())
}

func TestClassify_S6_MRSAOverride(t *testing.T) {
	eng := New(testStore(t), testNormalizer(t), nil, nil)
	payload := []byte(`{"organism":"Staphylococcus aureus","antibiotic":"Oxacillin","method":"MIC","mic":{"value":0.25,"present":true},"phenotypes":["MRSA"]}`)

	results, err := eng.Classify(context.Background(), payload, adapters.FormatNative, "", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.Resistant, results[0].Decision)
	assert.Equal(t, []string{"MRSA-BL-OVR"}, results[0].RuleIDs())
}

func TestClassify_S6_MRSAOverride_FHIRCefoxitinScreen(t *testing.T) {
	eng := New(testStore(t), testNormalizer(t), nil, nil)
	payload := []byte(`{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {
				"resourceType": "Observation",
				"id": "organism-1",
				"code": {"text": "Organism identified"},
				"valueCodeableConcept": {"text": "Staphylococcus aureus"},
				"specimen": {"reference": "Specimen/s6"}
			}},
			{"resource": {
				"resourceType": "Observation",
				"id": "screen-1",
				"code": {"text": "Cefoxitin screen"},
				"valueCodeableConcept": {"text": "Positive"},
				"specimen": {"reference": "Specimen/s6"}
			}},
			{"resource": {
				"resourceType": "Observation",
				"id": "susc-1",
				"code": {"text": "Oxacillin [Susceptibility] by MIC"},
				"valueQuantity": {"value": 0.25, "unit": "mg/L"},
				"specimen": {"reference": "Specimen/s6"}
			}}
		]
	}`)

	results, err := eng.Classify(context.Background(), payload, adapters.FormatFHIR, "", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.Resistant, results[0].Decision)
	assert.Equal(t, []string{"MRSA-BL-OVR"}, results[0].RuleIDs())
}

func TestClassify_S7_MethodConflictWithPrecedence(t *testing.T) {
	eng := New(testStore(t), testNormalizer(t), nil, nil)
	payload := []byte(`[
		{"specimen":"S7","organism":"Klebsiella pneumoniae","antibiotic":"Ceftriaxone","method":"MIC","mic":{"value":0.5,"present":true}},
		{"specimen":"S7","organism":"Klebsiella pneumoniae","antibiotic":"Ceftriaxone","method":"DISC","disc":{"value":13,"present":true}}
	]`)

	results, err := eng.Classify(context.Background(), payload, adapters.FormatNative, "", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.Susceptible, results[0].Decision)
	assert.Equal(t, "MIC preferred; disc diffusion disagrees (13 mm => R)", results[0].Reason)
}

func TestClassify_S7_MethodConflictWithoutPrecedence(t *testing.T) {
	store := testStore(t)
	cat := testCatalog()
	cat.Policy.MethodPrecedenceEnabled = false
	store.Publish(cat)
	eng := New(store, testNormalizer(t), nil, nil)
	payload := []byte(`[
		{"specimen":"S7","organism":"Klebsiella pneumoniae","antibiotic":"Ceftriaxone","method":"MIC","mic":{"value":0.5,"present":true}},
		{"specimen":"S7","organism":"Klebsiella pneumoniae","antibiotic":"Ceftriaxone","method":"DISC","disc":{"value":13,"present":true}}
	]`)

	results, err := eng.Classify(context.Background(), payload, adapters.FormatNative, "", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.RequiresReview, results[0].Decision)
	assert.Equal(t, "conflicting methods: MIC=S, DISC=R", results[0].Reason)
}

func TestClassify_S9_UnknownOrganism(t *testing.T) {
	eng := New(testStore(t), testNormalizer(t), nil, nil)
	payload := []byte(`{"organism":"Xyzbacter novus","antibiotic":"Ampicillin","method":"MIC","mic":{"value":2.0,"present":true}}`)

	results, err := eng.Classify(context.Background(), payload, adapters.FormatNative, "", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.RequiresReview, results[0].Decision)
	assert.Equal(t, "organism not recognized", results[0].Reason)
}

func TestClassify_MissingMSHAbortsWithError(t *testing.T) {
	eng := New(testStore(t), testNormalizer(t), nil, nil)
	_, err := eng.Classify(context.Background(), []byte("garbage"), adapters.FormatHL7v2, "", "")
	assert.Error(t, err)
}

func TestClassify_CancelledContextAbortsEarly(t *testing.T) {
	eng := New(testStore(t), testNormalizer(t), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	payload := []byte(`{"organism":"Escherichia coli","antibiotic":"Amoxicillin","method":"MIC","mic":{"value":4.0,"present":true}}`)
	_, err := eng.Classify(ctx, payload, adapters.FormatNative, "", "")
	assert.ErrorIs(t, err, context.Canceled)
}
