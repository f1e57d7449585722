package domain

import "strconv"

// SpecimenRef is an opaque reference to the specimen/isolate a
// measurement was taken from. When a source record carries none, the
// engine assigns a synthetic reference derived from input position
// (spec §3).
type SpecimenRef string

// SyntheticSpecimenRef builds a deterministic synthetic specimen
// reference from the input's position within its originating message,
// per spec §3's SpecimenRef invariant.
func SyntheticSpecimenRef(messageID string, position int) SpecimenRef {
	return SpecimenRef(messageID + "#" + strconv.Itoa(position))
}

// ClassificationInput is the uniform shape every ingestion adapter
// reduces its source format to (spec §2 step 3, §3).
type ClassificationInput struct {
	Specimen   SpecimenRef
	Organism   OrganismKey // may be UnresolvedOrganism
	Antibiotic AntibioticKey
	Method     MethodKind
	Value      Measurement
	Phenotypes map[PhenotypeFlag]bool
	Auxiliary  map[string]string

	// OrganismOnly marks a record that carries only an organism
	// identification (and/or phenotype flags) with no antibiotic
	// measurement of its own; it is merged into sibling inputs during
	// grouping and dropped before classification (spec §3, §4.4).
	OrganismOnly bool
}

// Clone returns a deep-enough copy safe to mutate (e.g. to assign a
// resolved organism or merge phenotypes) without aliasing the
// original's maps.
func (in ClassificationInput) Clone() ClassificationInput {
	out := in
	out.Phenotypes = make(map[PhenotypeFlag]bool, len(in.Phenotypes))
	for k, v := range in.Phenotypes {
		out.Phenotypes[k] = v
	}
	out.Auxiliary = make(map[string]string, len(in.Auxiliary))
	for k, v := range in.Auxiliary {
		out.Auxiliary[k] = v
	}
	return out
}

// HasPhenotype reports whether the flag is present and set.
func (in ClassificationInput) HasPhenotype(flag PhenotypeFlag) bool {
	return in.Phenotypes != nil && in.Phenotypes[flag]
}

// VariantAgreement checks the method/value consistency invariant
// (spec §3, §8.3).
func (in ClassificationInput) VariantAgreement() bool {
	if in.Method != in.Value.Kind {
		return false
	}
	return in.Value.VariantAgrees()
}
