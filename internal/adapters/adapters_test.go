package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlab/amrclassify/internal/domain"
	"github.com/clinlab/amrclassify/internal/gating"
)

func TestDetect(t *testing.T) {
	assert.Equal(t, FormatHL7v2, Detect([]byte("MSH|^~\\&|LIS|LAB|")))
	assert.Equal(t, FormatFHIR, Detect([]byte(`  {"resourceType":"Bundle","entry":[]}`)))
	assert.Equal(t, FormatNative, Detect([]byte(`{"organism":"Escherichia coli"}`)))
}

func TestParseNative_SingleObject(t *testing.T) {
	payload := []byte(`{
		"specimen": "spec-1",
		"organism": "Escherichia coli",
		"antibiotic": "Ceftriaxone",
		"method": "MIC",
		"mic": {"present": true, "value": 1.0, "comparator": "<="}
	}`)
	inputs, err := ParseNative(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, domain.OrganismKey("escherichia coli"), inputs[0].Organism)
	assert.Equal(t, domain.AntibioticKey("ceftriaxone"), inputs[0].Antibiotic)
	assert.True(t, inputs[0].Value.MICPresent)
	assert.Equal(t, 1.0, inputs[0].Value.MICValue)
	assert.True(t, inputs[0].VariantAgreement())
}

func TestParseNative_Array(t *testing.T) {
	payload := []byte(`[
		{"organism":"E. coli","antibiotic":"ceftriaxone","method":"MIC","mic":{"present":true,"value":0.5}},
		{"organism":"E. coli","antibiotic":"gentamicin","method":"DISC","disc":{"present":true,"value":20}}
	]`)
	inputs, err := ParseNative(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
}

func TestParseNative_VariantMismatchFlowsToReview(t *testing.T) {
	// A method/measurement-variant mismatch is not a parse failure: the
	// record survives ParseNative and is left for gating to degrade to
	// REQUIRES_REVIEW (spec §4.5 gate 1), not an adapter-level error.
	payload := []byte(`{"organism":"E. coli","antibiotic":"gentamicin","method":"MIC","disc":{"present":true,"value":20}}`)
	inputs, err := ParseNative(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.False(t, inputs[0].VariantAgreement())

	outcome := gating.Evaluate(inputs[0])
	assert.False(t, outcome.Pass)
	assert.Equal(t, "method/value inconsistent", outcome.Reason)
}

func TestParseNative_MissingMICIsSentinel(t *testing.T) {
	payload := []byte(`{"organism":"E. coli","antibiotic":"gentamicin","method":"MIC"}`)
	inputs, err := ParseNative(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.False(t, inputs[0].Value.MICPresent)
}

func TestParseFHIR_BundleWithLinkedSusceptibility(t *testing.T) {
	payload := []byte(`{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {
				"resourceType": "Observation",
				"id": "organism-1",
				"category": [{"coding": [{"code": "laboratory"}]}],
				"code": {"text": "Organism identified"},
				"valueCodeableConcept": {"text": "Escherichia coli"},
				"specimen": {"reference": "Specimen/spec-1"}
			}},
			{"resource": {
				"resourceType": "Observation",
				"id": "susc-1",
				"category": [{"coding": [{"code": "laboratory"}]}],
				"code": {"text": "Ceftriaxone [Susceptibility] by MIC"},
				"valueQuantity": {"value": 0.5, "unit": "mg/L"},
				"derivedFrom": [{"reference": "Observation/organism-1"}],
				"specimen": {"reference": "Specimen/spec-1"}
			}}
		]
	}`)
	inputs, err := ParseFHIR(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, domain.OrganismKey("escherichia coli"), inputs[0].Organism)
	assert.Equal(t, domain.AntibioticKey("ceftriaxone"), inputs[0].Antibiotic)
	assert.Equal(t, domain.MIC, inputs[0].Method)
	assert.Equal(t, 0.5, inputs[0].Value.MICValue)
}

func TestParseFHIR_SpecimenFallbackLinkage(t *testing.T) {
	payload := []byte(`{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {
				"resourceType": "Observation",
				"id": "organism-1",
				"code": {"text": "Organism identified"},
				"valueCodeableConcept": {"text": "Klebsiella pneumoniae"},
				"specimen": {"reference": "Specimen/spec-2"}
			}},
			{"resource": {
				"resourceType": "Observation",
				"id": "susc-2",
				"code": {"text": "Meropenem [Susceptibility] by MIC"},
				"valueQuantity": {"value": 2, "unit": "mg/L"},
				"specimen": {"reference": "Specimen/spec-2"}
			}}
		]
	}`)
	inputs, err := ParseFHIR(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, domain.OrganismKey("klebsiella pneumoniae"), inputs[0].Organism)
}

func TestParseFHIR_PhenotypeMergedIntoSibling(t *testing.T) {
	payload := []byte(`{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {
				"resourceType": "Observation",
				"id": "esbl-1",
				"code": {"text": "ESBL detection"},
				"valueCodeableConcept": {"text": "Positive"},
				"specimen": {"reference": "Specimen/spec-3"}
			}},
			{"resource": {
				"resourceType": "Observation",
				"id": "susc-3",
				"code": {"text": "Ceftazidime [Susceptibility] by MIC"},
				"valueQuantity": {"value": 1, "unit": "mg/L"},
				"specimen": {"reference": "Specimen/spec-3"}
			}}
		]
	}`)
	inputs, err := ParseFHIR(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.True(t, inputs[0].HasPhenotype(domain.PhenotypeESBL))
}

func TestParseFHIR_CefoxitinScreenMergedAsMRSAPhenotype(t *testing.T) {
	payload := []byte(`{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {
				"resourceType": "Observation",
				"id": "screen-1",
				"code": {"text": "Cefoxitin screen"},
				"valueCodeableConcept": {"text": "Positive"},
				"specimen": {"reference": "Specimen/spec-4"}
			}},
			{"resource": {
				"resourceType": "Observation",
				"id": "susc-4",
				"code": {"text": "Oxacillin [Susceptibility] by MIC"},
				"valueQuantity": {"value": 0.25, "unit": "mg/L"},
				"specimen": {"reference": "Specimen/spec-4"}
			}}
		]
	}`)
	inputs, err := ParseFHIR(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.True(t, inputs[0].HasPhenotype(domain.PhenotypeMRSA))
}

func TestParseHL7v2_BasicORU(t *testing.T) {
	msg := "MSH|^~\\&|LIS|LAB|EHR|HOSP|20260101120000||ORU^R01|MSG00001|P|2.5\r" +
		"PID|1||PT123\r" +
		"OBR|1|||MICRO\r" +
		"SPM|1|SPEC001\r" +
		"OBX|1|ST|ORGANISM||Escherichia coli\r" +
		"OBX|2|NM|MIC^Ceftriaxone||<=0.5\r" +
		"OBX|3|NM|DISC^Gentamicin||18\r"

	inputs, err := ParseHL7v2([]byte(msg))
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	for _, in := range inputs {
		assert.Equal(t, domain.OrganismKey("escherichia coli"), in.Organism)
		assert.Equal(t, domain.SpecimenRef("SPEC001"), in.Specimen)
	}
}

func TestParseHL7v2_MissingMSHIsParseError(t *testing.T) {
	_, err := ParseHL7v2([]byte("OBX|1|NM|MIC||1.0\r"))
	assert.Error(t, err)
}

func TestParseHL7v2_NoOBXYieldsEmptyList(t *testing.T) {
	msg := "MSH|^~\\&|LIS|LAB|EHR|HOSP|20260101120000||ORU^R01|MSG00002|P|2.5\r" +
		"PID|1||PT124\r"
	inputs, err := ParseHL7v2([]byte(msg))
	require.NoError(t, err)
	assert.Empty(t, inputs)
}

func TestParseHL7v2_ComparatorPreserved(t *testing.T) {
	msg := "MSH|^~\\&|LIS|LAB|EHR|HOSP|20260101120000||ORU^R01|MSG00003|P|2.5\r" +
		"OBX|1|NM|MIC^Meropenem||>32\r"
	inputs, err := ParseHL7v2([]byte(msg))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, domain.ComparatorGT, inputs[0].Value.MICComparator)
	assert.Equal(t, 32.0, inputs[0].Value.MICValue)
}
