// Package gating enforces the preconditions of spec §4.5 before
// classification runs: gates fire in order and the first fire wins (the
// result is REQUIRES_REVIEW with that reason). Evaluation stops at that
// first fire, so later gates are not run and AllFires holds only that
// one reason.
package gating

import (
	"fmt"

	"github.com/clinlab/amrclassify/internal/domain"
)

const (
	micLowerBound = 0.001
	micUpperBound = 1024
	discLowerBound = 1
	discUpperBound = 100
)

// Outcome is the result of running the gates over one input.
type Outcome struct {
	Pass    bool
	Reason  string // set when !Pass
	AllFires []string
}

// Evaluate runs the six gates of spec §4.5 in order.
func Evaluate(in domain.ClassificationInput) Outcome {
	var fires []string
	record := func(reason string) Outcome {
		fires = append(fires, reason)
		return Outcome{Pass: false, Reason: reason, AllFires: fires}
	}

	if !in.VariantAgreement() {
		return record("method/value inconsistent")
	}

	if in.Method == domain.MIC && !in.Value.MICPresent {
		return record("MIC value missing for MIC method")
	}

	if in.Method == domain.DISC && !in.Value.DiscPresent {
		return record("Zone diameter missing for disk method")
	}

	if !in.Organism.IsResolved() {
		return record("organism not recognized")
	}

	if !in.Antibiotic.IsResolved() {
		return record("antibiotic not recognized")
	}

	if in.Method == domain.MIC {
		v := in.Value.MICValue
		if v <= micLowerBound || v > micUpperBound {
			return record(fmt.Sprintf("value out of plausible range (MIC %.4g mg/L)", v))
		}
	}
	if in.Method == domain.DISC {
		v := in.Value.DiscValue
		if v < discLowerBound || v > discUpperBound {
			return record(fmt.Sprintf("value out of plausible range (DISC %d mm)", v))
		}
	}

	return Outcome{Pass: true}
}
