// Package grouper associates standalone organism-identification and
// phenotype records with the susceptibility inputs that lack them
// (spec §4.4), and synthesizes a specimen reference for inputs an
// adapter produced without one.
package grouper

import (
	"github.com/clinlab/amrclassify/internal/domain"
)

// Group implements the four-step input-grouper algorithm (spec §4.4).
// messageID seeds synthetic specimen references for inputs that
// arrived without one. The returned slice contains only susceptibility
// inputs ready for gating; organism-only and phenotype-only records
// are consumed during grouping and dropped (spec §4.4 invariant).
func Group(inputs []domain.ClassificationInput, messageID string) []domain.ClassificationInput {
	partitions := partitionBySpecimen(inputs, messageID)

	var out []domain.ClassificationInput
	for _, p := range partitions {
		out = append(out, resolvePartition(p)...)
	}
	return out
}

type partition struct {
	specimen    domain.SpecimenRef
	susceptible []domain.ClassificationInput
	organisms   []domain.OrganismKey
	phenotypes  map[domain.PhenotypeFlag]bool
}

func partitionBySpecimen(inputs []domain.ClassificationInput, messageID string) []*partition {
	index := map[domain.SpecimenRef]*partition{}
	var order []domain.SpecimenRef

	for i, in := range inputs {
		specimen := in.Specimen
		if specimen == "" {
			specimen = domain.SyntheticSpecimenRef(messageID, i)
		}
		p, ok := index[specimen]
		if !ok {
			p = &partition{specimen: specimen, phenotypes: map[domain.PhenotypeFlag]bool{}}
			index[specimen] = p
			order = append(order, specimen)
		}

		switch {
		case in.OrganismOnly:
			if in.Organism.IsResolved() {
				p.organisms = append(p.organisms, in.Organism)
			}
			for flag, set := range in.Phenotypes {
				if set {
					p.phenotypes[flag] = true
				}
			}
		case in.Method == domain.PHENOTYPE:
			p.phenotypes[in.Value.Phenotype] = true
		default:
			clone := in.Clone()
			clone.Specimen = specimen
			p.susceptible = append(p.susceptible, clone)
			if in.Organism.IsResolved() {
				p.organisms = append(p.organisms, in.Organism)
			}
		}
	}

	partitions := make([]*partition, 0, len(order))
	for _, specimen := range order {
		partitions = append(partitions, index[specimen])
	}
	return partitions
}

// resolvePartition fills in a missing organism for every susceptibility
// input in the partition (duplicating on ambiguity, spec §4.4 step 3)
// and merges partition-wide phenotype flags (step 4).
func resolvePartition(p *partition) []domain.ClassificationInput {
	uniqueOrganisms := dedupeOrganisms(p.organisms)

	var out []domain.ClassificationInput
	for _, in := range p.susceptible {
		mergePhenotypes(&in, p.phenotypes)

		if in.Organism.IsResolved() {
			out = append(out, in)
			continue
		}

		switch len(uniqueOrganisms) {
		case 0:
			out = append(out, in) // organism stays Unresolved; gating will flag it
		case 1:
			dup := in.Clone()
			dup.Organism = uniqueOrganisms[0]
			out = append(out, dup)
		default:
			for _, organism := range uniqueOrganisms {
				dup := in.Clone()
				dup.Organism = organism
				if dup.Auxiliary == nil {
					dup.Auxiliary = map[string]string{}
				}
				dup.Auxiliary["ambiguous-organism"] = "true"
				out = append(out, dup)
			}
		}
	}
	return out
}

func mergePhenotypes(in *domain.ClassificationInput, partitionFlags map[domain.PhenotypeFlag]bool) {
	if len(partitionFlags) == 0 {
		return
	}
	if in.Phenotypes == nil {
		in.Phenotypes = map[domain.PhenotypeFlag]bool{}
	}
	for flag, set := range partitionFlags {
		if set {
			in.Phenotypes[flag] = true
		}
	}
}

func dedupeOrganisms(organisms []domain.OrganismKey) []domain.OrganismKey {
	seen := map[domain.OrganismKey]bool{}
	var out []domain.OrganismKey
	for _, o := range organisms {
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out
}
