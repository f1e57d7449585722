// Package adapters converts external payload formats into
// domain.ClassificationInput slices, without performing any
// classification themselves (spec §4.3 "Adapters MUST NOT classify").
package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/clinlab/amrclassify/internal/domain"
)

// InputFormat is the enumerated variant an adapter parses, replacing a
// duck-typed dispatch with a concrete tag (spec §9 "Adapter dispatch as
// tagged variants").
type InputFormat string

const (
	FormatFHIR   InputFormat = "FHIR"
	FormatHL7v2  InputFormat = "HL7V2"
	FormatNative InputFormat = "NATIVE"
)

// nativeRecord is the wire shape of one ClassificationInput for the
// native adapter: a literal, already-resolved input.
type nativeRecord struct {
	Specimen   string            `json:"specimen,omitempty"`
	Organism   string            `json:"organism"`
	Antibiotic string            `json:"antibiotic"`
	Method     string            `json:"method"`
	MIC        *nativeMIC        `json:"mic,omitempty"`
	Disc       *nativeDisc       `json:"disc,omitempty"`
	Screen     string            `json:"screen,omitempty"`
	Phenotype  string            `json:"phenotype,omitempty"`
	Phenotypes []string          `json:"phenotypes,omitempty"`
	Auxiliary  map[string]string `json:"auxiliary,omitempty"`
	OrganismOnly bool            `json:"organism_only,omitempty"`
}

type nativeMIC struct {
	Comparator string  `json:"comparator,omitempty"`
	Value      float64 `json:"value"`
	Present    bool    `json:"present"`
}

type nativeDisc struct {
	Comparator string `json:"comparator,omitempty"`
	Value      int    `json:"value"`
	Present    bool   `json:"present"`
}

// ParseNative parses a single literal ClassificationInput object or a
// JSON array of them (spec §4.3 "Native adapter").
func ParseNative(payload []byte) ([]domain.ClassificationInput, error) {
	trimmed := firstNonWhitespace(payload)
	var records []nativeRecord

	if trimmed == '[' {
		if err := json.Unmarshal(payload, &records); err != nil {
			return nil, domain.NewAdapterError("NATIVE", fmt.Sprintf("invalid array payload: %v", err))
		}
	} else {
		var single nativeRecord
		if err := json.Unmarshal(payload, &single); err != nil {
			return nil, domain.NewAdapterError("NATIVE", fmt.Sprintf("invalid object payload: %v", err))
		}
		records = []nativeRecord{single}
	}

	out := make([]domain.ClassificationInput, 0, len(records))
	for i, r := range records {
		input, err := nativeToInput(r)
		if err != nil {
			return nil, domain.NewAdapterError("NATIVE", fmt.Sprintf("record %d: %v", i, err))
		}
		out = append(out, input)
	}
	return out, nil
}

func nativeToInput(r nativeRecord) (domain.ClassificationInput, error) {
	method := domain.MethodKind(r.Method)
	if !method.IsValid() {
		return domain.ClassificationInput{}, fmt.Errorf("unrecognized method %q", r.Method)
	}

	var measurement domain.Measurement
	switch method {
	case domain.MIC:
		if r.MIC != nil && r.MIC.Present {
			measurement = domain.NewMICMeasurement(r.MIC.Value, domain.Comparator(r.MIC.Comparator))
		} else if r.Disc != nil && r.Disc.Present {
			// Keep the disc value so gating sees the variant mismatch.
			measurement = domain.NewDiscMeasurement(r.Disc.Value, domain.Comparator(r.Disc.Comparator))
		} else {
			measurement = domain.NewMissingMIC()
		}
	case domain.DISC:
		if r.Disc != nil && r.Disc.Present {
			measurement = domain.NewDiscMeasurement(r.Disc.Value, domain.Comparator(r.Disc.Comparator))
		} else if r.MIC != nil && r.MIC.Present {
			// Keep the MIC value so gating sees the variant mismatch.
			measurement = domain.NewMICMeasurement(r.MIC.Value, domain.Comparator(r.MIC.Comparator))
		} else {
			measurement = domain.NewMissingDisc()
		}
	case domain.SCREEN:
		measurement = domain.NewScreenMeasurement(domain.ScreenResult(r.Screen))
	case domain.PHENOTYPE:
		measurement = domain.NewPhenotypeMeasurement(domain.PhenotypeFlag(r.Phenotype))
	}

	phenotypes := map[domain.PhenotypeFlag]bool{}
	for _, p := range r.Phenotypes {
		phenotypes[domain.PhenotypeFlag(p)] = true
	}

	input := domain.ClassificationInput{
		Specimen:     domain.SpecimenRef(r.Specimen),
		Organism:     domain.OrganismKey(domain.NormalizeDisplay(r.Organism)),
		Antibiotic:   domain.AntibioticKey(domain.NormalizeDisplay(r.Antibiotic)),
		Method:       method,
		Value:        measurement,
		Phenotypes:   phenotypes,
		Auxiliary:    r.Auxiliary,
		OrganismOnly: r.OrganismOnly,
	}
	// A method/measurement-variant mismatch is not a parse failure: it
	// flows through to gating like the FHIR/HL7v2 adapters, which
	// degrades it to a per-input REQUIRES_REVIEW decision (spec §4.5
	// gate 1) instead of aborting the whole batch.
	return input, nil
}

func firstNonWhitespace(payload []byte) byte {
	for _, b := range payload {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}
