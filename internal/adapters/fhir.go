package adapters

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/clinlab/amrclassify/internal/domain"
)

// loincOrganismIdentified is the LOINC code for "Organism identified"
// (spec §4.3 FHIR adapter).
const loincOrganismIdentified = "634-6"

// loincSusceptibilityCodes are representative LOINC panel codes for
// antibiotic susceptibility observations (spec §4.3 item (a)).
var loincSusceptibilityCodes = map[string]bool{
	"18769-0": true, // susceptibility, MIC
	"29258-1": true, // susceptibility, disk diffusion
}

var susceptibilityDisplayPattern = regexp.MustCompile(`(?i)^(.+?)\s*\[Susceptibility\]\s*by\s*(MIC|disk diffusion)\s*$`)

var phenotypeDisplayFlags = map[string]domain.PhenotypeFlag{
	"esbl":          domain.PhenotypeESBL,
	"mrsa":          domain.PhenotypeMRSA,
	"carbapenemase": domain.PhenotypeCarbapenemase,
}

var ucumToMethod = map[string]domain.MethodKind{
	"mg/L": domain.MIC,
	"mg/l": domain.MIC,
	"mm":   domain.DISC,
}

type fhirCoding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

type fhirCodeableConcept struct {
	Coding []fhirCoding `json:"coding"`
	Text   string       `json:"text"`
}

type fhirQuantity struct {
	Value  *float64 `json:"value"`
	Unit   string   `json:"unit"`
	System string   `json:"system"`
	Code   string   `json:"code"`
}

type fhirReference struct {
	Reference string `json:"reference"`
}

type fhirObservation struct {
	ResourceType        string                `json:"resourceType"`
	ID                   string                `json:"id"`
	Category             []fhirCodeableConcept `json:"category"`
	Code                  fhirCodeableConcept   `json:"code"`
	Method                *fhirCodeableConcept  `json:"method"`
	ValueQuantity         *fhirQuantity         `json:"valueQuantity"`
	ValueCodeableConcept  *fhirCodeableConcept  `json:"valueCodeableConcept"`
	Component             []fhirComponent       `json:"component"`
	DerivedFrom           []fhirReference       `json:"derivedFrom"`
	HasMember             []fhirReference       `json:"hasMember"`
	Subject               *fhirReference        `json:"subject"`
	Specimen              *fhirReference        `json:"specimen"`
}

type fhirComponent struct {
	Code                 fhirCodeableConcept  `json:"code"`
	ValueCodeableConcept *fhirCodeableConcept `json:"valueCodeableConcept"`
	ValueQuantity        *fhirQuantity        `json:"valueQuantity"`
}

type fhirBundleEntry struct {
	Resource json.RawMessage `json:"resource"`
}

type fhirBundle struct {
	ResourceType string            `json:"resourceType"`
	Entry        []fhirBundleEntry `json:"entry"`
}

// ParseFHIR accepts a Bundle, an array of Observations, or a single
// Observation (spec §4.3 "FHIR adapter").
func ParseFHIR(payload []byte) ([]domain.ClassificationInput, error) {
	observations, err := extractObservations(payload)
	if err != nil {
		return nil, err
	}

	type observed struct {
		obs          fhirObservation
		isOrganism   bool
		isSusceptible bool
		phenotype    domain.PhenotypeFlag
	}
	var records []observed

	for _, raw := range observations {
		var obs fhirObservation
		if err := json.Unmarshal(raw, &obs); err != nil {
			return nil, domain.NewAdapterError("FHIR", fmt.Sprintf("invalid Observation: %v", err))
		}
		if !hasLaboratoryCategory(obs) {
			continue
		}

		if isOrganismIdentification(obs) {
			records = append(records, observed{obs: obs, isOrganism: true})
			continue
		}
		if flag, ok := phenotypeFlag(obs); ok {
			records = append(records, observed{obs: obs, phenotype: flag})
			continue
		}
		if flag, ok := cefoxitinScreenFlag(obs); ok {
			records = append(records, observed{obs: obs, phenotype: flag})
			continue
		}
		if isSusceptibilityObservation(obs) {
			records = append(records, observed{obs: obs, isSusceptible: true})
		}
	}

	// index organism-identification observations by id and by specimen
	// reference, for derivedFrom/hasMember/specimen-fallback linkage
	// (spec §4.3 "Linkage").
	organismByID := map[string]domain.OrganismKey{}
	organismBySpecimen := map[string]domain.OrganismKey{}
	for _, r := range records {
		if !r.isOrganism {
			continue
		}
		key := organismKeyFromObservation(r.obs)
		organismByID[r.obs.ID] = key
		if r.obs.Specimen != nil {
			organismBySpecimen[r.obs.Specimen.Reference] = key
		}
	}

	phenotypesBySpecimen := map[string][]domain.PhenotypeFlag{}
	for _, r := range records {
		if r.phenotype == "" {
			continue
		}
		specimenRef := ""
		if r.obs.Specimen != nil {
			specimenRef = r.obs.Specimen.Reference
		}
		phenotypesBySpecimen[specimenRef] = append(phenotypesBySpecimen[specimenRef], r.phenotype)
	}

	var out []domain.ClassificationInput
	for _, r := range records {
		if !r.isSusceptible {
			continue
		}
		organism := linkedOrganism(r.obs, organismByID, organismBySpecimen)
		antibiotic, method, measurement, err := susceptibilityValue(r.obs)
		if err != nil {
			return nil, domain.NewAdapterError("FHIR", err.Error())
		}

		specimenRef := ""
		if r.obs.Specimen != nil {
			specimenRef = r.obs.Specimen.Reference
		}

		phenotypes := map[domain.PhenotypeFlag]bool{}
		for _, flag := range phenotypesBySpecimen[specimenRef] {
			phenotypes[flag] = true
		}

		out = append(out, domain.ClassificationInput{
			Specimen:   domain.SpecimenRef(specimenRef),
			Organism:   organism,
			Antibiotic: antibiotic,
			Method:     method,
			Value:      measurement,
			Phenotypes: phenotypes,
			Auxiliary:  map[string]string{},
		})
	}

	return out, nil
}

func extractObservations(payload []byte) ([]json.RawMessage, error) {
	trimmed := firstNonWhitespace(payload)
	if trimmed == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(payload, &raws); err != nil {
			return nil, domain.NewAdapterError("FHIR", fmt.Sprintf("invalid Observation array: %v", err))
		}
		return raws, nil
	}

	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, domain.NewAdapterError("FHIR", fmt.Sprintf("invalid payload: %v", err))
	}

	if probe.ResourceType == "Bundle" {
		var bundle fhirBundle
		if err := json.Unmarshal(payload, &bundle); err != nil {
			return nil, domain.NewAdapterError("FHIR", fmt.Sprintf("invalid Bundle: %v", err))
		}
		raws := make([]json.RawMessage, 0, len(bundle.Entry))
		for _, e := range bundle.Entry {
			if len(e.Resource) > 0 {
				raws = append(raws, e.Resource)
			}
		}
		return raws, nil
	}

	return []json.RawMessage{payload}, nil
}

func hasLaboratoryCategory(obs fhirObservation) bool {
	if len(obs.Category) == 0 {
		return true // be permissive; category absence doesn't itself disqualify a record
	}
	for _, cat := range obs.Category {
		for _, c := range cat.Coding {
			if c.Code == "laboratory" {
				return true
			}
		}
		if strings.EqualFold(cat.Text, "laboratory") {
			return true
		}
	}
	return false
}

func isOrganismIdentification(obs fhirObservation) bool {
	for _, c := range obs.Code.Coding {
		if c.Code == loincOrganismIdentified {
			return true
		}
	}
	if strings.Contains(strings.ToLower(obs.Code.Text), "organism identified") {
		return true
	}
	return false
}

func organismKeyFromObservation(obs fhirObservation) domain.OrganismKey {
	if obs.ValueCodeableConcept != nil {
		if obs.ValueCodeableConcept.Text != "" {
			return domain.OrganismKey(domain.NormalizeDisplay(obs.ValueCodeableConcept.Text))
		}
		for _, c := range obs.ValueCodeableConcept.Coding {
			if c.Display != "" {
				return domain.OrganismKey(domain.NormalizeDisplay(c.Display))
			}
		}
	}
	return domain.UnresolvedOrganism
}

func phenotypeFlag(obs fhirObservation) (domain.PhenotypeFlag, bool) {
	text := strings.ToLower(obs.Code.Text)
	for needle, flag := range phenotypeDisplayFlags {
		if strings.Contains(text, needle) {
			positive := true
			if obs.ValueCodeableConcept != nil {
				v := strings.ToLower(obs.ValueCodeableConcept.Text)
				if strings.Contains(v, "neg") {
					positive = false
				}
			}
			if positive {
				return flag, true
			}
		}
	}
	return "", false
}

// cefoxitinScreenFlag recognizes a positive cefoxitin screen as an MRSA
// phenotype flag, the standard surrogate test for methicillin resistance
// in S. aureus (spec line 139, S6 golden scenario). Without this, a
// cefoxitin SCREEN observation is not a susceptibility observation and
// is dropped, so its result never reaches the oxacillin record that the
// MRSA override forces to Resistant.
func cefoxitinScreenFlag(obs fhirObservation) (domain.PhenotypeFlag, bool) {
	text := strings.ToLower(obs.Code.Text)
	if !strings.Contains(text, "cefoxitin") {
		return "", false
	}

	isScreen := strings.Contains(text, "screen")
	if !isScreen && obs.Method != nil {
		for _, c := range obs.Method.Coding {
			if strings.EqualFold(c.Code, "SCREEN") || strings.Contains(strings.ToLower(c.Display), "screen") {
				isScreen = true
			}
		}
	}
	if !isScreen {
		return "", false
	}

	if obs.ValueCodeableConcept == nil {
		return "", false
	}
	v := strings.ToLower(obs.ValueCodeableConcept.Text)
	if !strings.Contains(v, "positive") && !strings.Contains(v, "pos") {
		return "", false
	}

	return domain.PhenotypeMRSA, true
}

func isSusceptibilityObservation(obs fhirObservation) bool {
	for _, c := range obs.Code.Coding {
		if loincSusceptibilityCodes[c.Code] {
			return true
		}
	}
	if obs.Method != nil {
		for _, c := range obs.Method.Coding {
			if c.Code == "MIC" || c.Code == "DISC" {
				return true
			}
		}
	}
	return susceptibilityDisplayPattern.MatchString(obs.Code.Text)
}

func linkedOrganism(obs fhirObservation, byID map[string]domain.OrganismKey, bySpecimen map[string]domain.OrganismKey) domain.OrganismKey {
	for _, ref := range append(append([]fhirReference{}, obs.DerivedFrom...), obs.HasMember...) {
		if key, ok := byID[strings.TrimPrefix(ref.Reference, "Observation/")]; ok {
			return key
		}
	}
	if obs.Specimen != nil {
		if key, ok := bySpecimen[obs.Specimen.Reference]; ok {
			return key
		}
	}
	return domain.UnresolvedOrganism
}

func susceptibilityValue(obs fhirObservation) (domain.AntibioticKey, domain.MethodKind, domain.Measurement, error) {
	antibiotic := antibioticFromObservation(obs)

	if obs.ValueQuantity == nil {
		return "", "", domain.Measurement{}, fmt.Errorf("susceptibility observation %q has no valueQuantity", obs.ID)
	}

	method, ok := ucumToMethod[obs.ValueQuantity.Unit]
	if !ok {
		method, ok = ucumToMethod[obs.ValueQuantity.Code]
	}
	if !ok {
		if m := susceptibilityDisplayPattern.FindStringSubmatch(obs.Code.Text); m != nil {
			if strings.EqualFold(m[2], "MIC") {
				method = domain.MIC
			} else {
				method = domain.DISC
			}
			ok = true
		}
	}
	if !ok {
		return "", "", domain.Measurement{}, fmt.Errorf("susceptibility observation %q has unrecognized unit %q", obs.ID, obs.ValueQuantity.Unit)
	}

	if obs.ValueQuantity.Value == nil {
		if method == domain.MIC {
			return antibiotic, method, domain.NewMissingMIC(), nil
		}
		return antibiotic, method, domain.NewMissingDisc(), nil
	}

	switch method {
	case domain.MIC:
		return antibiotic, method, domain.NewMICMeasurement(*obs.ValueQuantity.Value, domain.ComparatorEQ), nil
	case domain.DISC:
		return antibiotic, method, domain.NewDiscMeasurement(int(*obs.ValueQuantity.Value), domain.ComparatorEQ), nil
	default:
		return "", "", domain.Measurement{}, fmt.Errorf("unsupported method for observation %q", obs.ID)
	}
}

func antibioticFromObservation(obs fhirObservation) domain.AntibioticKey {
	if m := susceptibilityDisplayPattern.FindStringSubmatch(obs.Code.Text); m != nil {
		return domain.AntibioticKey(domain.NormalizeDisplay(m[1]))
	}
	for _, comp := range obs.Component {
		if strings.Contains(strings.ToLower(comp.Code.Text), "antibiotic") || strings.Contains(strings.ToLower(comp.Code.Text), "antimicrobial") {
			if comp.ValueCodeableConcept != nil {
				return domain.AntibioticKey(domain.NormalizeDisplay(comp.ValueCodeableConcept.Text))
			}
		}
	}
	for _, c := range obs.Code.Coding {
		if c.Display != "" {
			return domain.AntibioticKey(domain.NormalizeDisplay(c.Display))
		}
	}
	return domain.UnresolvedAntibiotic
}
