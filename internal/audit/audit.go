// Package audit defines the structured record the classification core
// emits per result and the collaborator interface that owns its
// delivery (spec §6 item 4). The core never buffers, retries, or
// blocks on delivery; Sink.Emit is fire-and-forget relative to the
// response path.
package audit

import (
	"context"
	"time"

	"github.com/clinlab/amrclassify/internal/domain"
)

// ClassificationAuditRecord is the per-result audit event (spec §6
// item 4's field list, verbatim).
type ClassificationAuditRecord struct {
	CorrelationID  string
	Specimen       domain.SpecimenRef
	Organism       domain.OrganismKey
	Antibiotic     domain.AntibioticKey
	Method         domain.MethodKind
	Decision       domain.Decision
	FiredRules     []string
	CatalogVersion string
	Timestamp      time.Time
}

// FromResult builds an audit record from one classification result,
// tagging it with the request's correlation identifier.
func FromResult(correlationID string, result domain.ClassificationResult, timestamp time.Time) ClassificationAuditRecord {
	return ClassificationAuditRecord{
		CorrelationID:  correlationID,
		Specimen:       result.Specimen,
		Organism:       result.Organism,
		Antibiotic:     result.Antibiotic,
		Method:         result.Method,
		Decision:       result.Decision,
		FiredRules:     result.RuleIDs(),
		CatalogVersion: result.CatalogVersion,
		Timestamp:      timestamp,
	}
}

// Sink is the collaborator contract for audit delivery. The core
// provides the record; the sink owns buffering, retry, and failure
// handling (spec §6 item 4).
type Sink interface {
	Emit(ctx context.Context, record ClassificationAuditRecord)
}

// NopSink discards every record. Used when no audit collaborator is
// configured.
type NopSink struct{}

func (NopSink) Emit(context.Context, ClassificationAuditRecord) {}
