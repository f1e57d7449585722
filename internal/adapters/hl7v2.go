package adapters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clinlab/amrclassify/internal/domain"
)

// ParseHL7v2 accepts an ORU^R01-shaped message (spec §4.3 "HL7 v2
// adapter"). Segments are split positionally using the delimiters
// declared in MSH-1/MSH-2, not a fixed CR/LF assumption.
func ParseHL7v2(payload []byte) ([]domain.ClassificationInput, error) {
	text := string(payload)
	lines := splitSegments(text)
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "MSH") {
		return nil, domain.NewAdapterError("HL7V2", "message does not begin with MSH")
	}

	fieldSep, encoding, err := msh12(lines[0])
	if err != nil {
		return nil, domain.NewAdapterError("HL7V2", err.Error())
	}
	componentSep := byte('^')
	if len(encoding) > 0 {
		componentSep = encoding[0]
	}

	messageID := messageControlID(lines[0], fieldSep)

	var patientID string
	var specimenID string
	var organism domain.OrganismKey
	var auxiliary = map[string]string{}

	type obxRecord struct {
		kind       string // "organism" | "mic" | "disc" | "phenotype"
		antibiotic string
		raw        string
	}
	var obxRecords []obxRecord

	for _, line := range lines[1:] {
		segID := segmentID(line)
		fields := strings.Split(line, string(fieldSep))

		switch segID {
		case "PID":
			if len(fields) > 3 {
				patientID = firstComponent(fields[3], componentSep)
			}
		case "OBR", "SPM":
			if len(fields) > 2 {
				specimenID = firstComponent(fields[2], componentSep)
			}
		case "OBX":
			if len(fields) < 6 {
				continue
			}
			identifier := strings.ToLower(fields[3])
			value := fields[5]

			switch {
			case strings.Contains(identifier, "org") || strings.Contains(identifier, "organism"):
				organism = domain.OrganismKey(domain.NormalizeDisplay(lastComponent(value, componentSep)))
			case strings.HasPrefix(identifier, "mic"):
				obxRecords = append(obxRecords, obxRecord{kind: "mic", antibiotic: obxAntibiotic(fields[3], componentSep), raw: value})
			case strings.HasPrefix(identifier, "disc") || strings.HasPrefix(identifier, "disk"):
				obxRecords = append(obxRecords, obxRecord{kind: "disc", antibiotic: obxAntibiotic(fields[3], componentSep), raw: value})
			default:
				if flag, ok := phenotypeFromIdentifier(identifier); ok {
					obxRecords = append(obxRecords, obxRecord{kind: "phenotype", antibiotic: string(flag), raw: value})
				}
			}
		}
	}

	if len(obxRecords) == 0 {
		return nil, nil // spec §4.3: "Missing OBX segments ⇒ empty input list"
	}

	if specimenID == "" {
		specimenID = string(domain.SyntheticSpecimenRef(messageID, 0))
	}
	if patientID != "" {
		auxiliary["patient_id"] = patientID
	}

	phenotypes := map[domain.PhenotypeFlag]bool{}
	for _, rec := range obxRecords {
		if rec.kind == "phenotype" {
			phenotypes[domain.PhenotypeFlag(rec.antibiotic)] = true
		}
	}

	var out []domain.ClassificationInput
	for _, rec := range obxRecords {
		if rec.kind == "phenotype" {
			continue
		}
		var method domain.MethodKind
		var measurement domain.Measurement
		if strings.TrimSpace(rec.raw) == "" {
			// missing numeric value is the gating sentinel, never
			// silently coerced (spec §4.3).
			if rec.kind == "mic" {
				method, measurement = domain.MIC, domain.NewMissingMIC()
			} else {
				method, measurement = domain.DISC, domain.NewMissingDisc()
			}
		} else {
			comparator, numeric, err := parseComparatorValue(rec.raw)
			if err != nil {
				return nil, domain.NewAdapterError("HL7V2", fmt.Sprintf("OBX value %q: %v", rec.raw, err))
			}
			if rec.kind == "mic" {
				method = domain.MIC
				measurement = domain.NewMICMeasurement(numeric, comparator)
			} else {
				method = domain.DISC
				measurement = domain.NewDiscMeasurement(int(numeric), comparator)
			}
		}

		out = append(out, domain.ClassificationInput{
			Specimen:   domain.SpecimenRef(specimenID),
			Organism:   organism,
			Antibiotic: domain.AntibioticKey(domain.NormalizeDisplay(rec.antibiotic)),
			Method:     method,
			Value:      measurement,
			Phenotypes: phenotypes,
			Auxiliary:  auxiliary,
		})
	}

	return out, nil
}

// splitSegments splits on carriage return, line feed, or both, never
// assuming one or the other (spec §4.3 "no assumption of carriage-
// return vs. line-feed separators").
func splitSegments(text string) []string {
	replaced := strings.ReplaceAll(text, "\r\n", "\n")
	replaced = strings.ReplaceAll(replaced, "\r", "\n")
	var out []string
	for _, line := range strings.Split(replaced, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func segmentID(line string) string {
	if len(line) < 3 {
		return ""
	}
	return line[:3]
}

// msh12 derives the field separator (MSH-1) and encoding characters
// (MSH-2) from the raw header segment.
func msh12(mshLine string) (byte, string, error) {
	if len(mshLine) < 4 {
		return 0, "", fmt.Errorf("MSH segment too short")
	}
	fieldSep := mshLine[3]
	rest := mshLine[4:]
	encodingEnd := strings.IndexByte(rest, fieldSep)
	if encodingEnd < 0 {
		return 0, "", fmt.Errorf("MSH segment missing encoding characters field")
	}
	return fieldSep, rest[:encodingEnd], nil
}

func messageControlID(mshLine string, fieldSep byte) string {
	fields := strings.Split(mshLine, string(fieldSep))
	if len(fields) > 9 {
		return fields[9]
	}
	return "hl7v2-message"
}

func firstComponent(field string, componentSep byte) string {
	parts := strings.Split(field, string(componentSep))
	return parts[0]
}

func lastComponent(field string, componentSep byte) string {
	parts := strings.Split(field, string(componentSep))
	return parts[len(parts)-1]
}

func obxAntibiotic(identifierField string, componentSep byte) string {
	parts := strings.Split(identifierField, string(componentSep))
	if len(parts) > 1 {
		return parts[1]
	}
	return parts[0]
}

func phenotypeFromIdentifier(identifier string) (domain.PhenotypeFlag, bool) {
	switch {
	case strings.Contains(identifier, "esbl"):
		return domain.PhenotypeESBL, true
	case strings.Contains(identifier, "mrsa"):
		return domain.PhenotypeMRSA, true
	case strings.Contains(identifier, "carbapenemase"):
		return domain.PhenotypeCarbapenemase, true
	case strings.Contains(identifier, "vre"):
		return domain.PhenotypeVRE, true
	default:
		return "", false
	}
}

// parseComparatorValue parses an optionally comparator-prefixed numeric
// OBX value (spec §4.3 "numeric with optional comparator prefix").
func parseComparatorValue(raw string) (domain.Comparator, float64, error) {
	raw = strings.TrimSpace(raw)
	comparator := domain.ComparatorEQ
	numeric := raw

	switch {
	case strings.HasPrefix(raw, "<="):
		comparator, numeric = domain.ComparatorLE, raw[2:]
	case strings.HasPrefix(raw, ">="):
		comparator, numeric = domain.ComparatorGE, raw[2:]
	case strings.HasPrefix(raw, "<"):
		comparator, numeric = domain.ComparatorLT, raw[1:]
	case strings.HasPrefix(raw, ">"):
		comparator, numeric = domain.ComparatorGT, raw[1:]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return "", 0, fmt.Errorf("not a numeric value: %w", err)
	}
	return comparator, value, nil
}
