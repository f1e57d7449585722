// Package engine orchestrates the end-to-end classification pipeline:
// adapter parsing, grouping, terminology normalization, gating, the
// expert-rule engine, breakpoint interpretation, conflict resolution,
// and result assembly (spec §2, §5).
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinlab/amrclassify/internal/adapters"
	"github.com/clinlab/amrclassify/internal/assembler"
	"github.com/clinlab/amrclassify/internal/audit"
	"github.com/clinlab/amrclassify/internal/breakpoint"
	"github.com/clinlab/amrclassify/internal/catalog"
	"github.com/clinlab/amrclassify/internal/conflict"
	"github.com/clinlab/amrclassify/internal/domain"
	"github.com/clinlab/amrclassify/internal/gating"
	"github.com/clinlab/amrclassify/internal/grouper"
	"github.com/clinlab/amrclassify/internal/rules"
	"github.com/clinlab/amrclassify/internal/terminology"
)

// Engine is the reentrant, CPU-bound classification core. It holds no
// per-request mutable state; the only shared state is the catalog
// store's atomic pointer and the normalizer's normalization cache
// (spec §5).
type Engine struct {
	store      *catalog.Store
	normalizer *terminology.Normalizer
	sink       audit.Sink
	logger     *logrus.Entry
}

// New builds an Engine over an already-populated catalog.Store and an
// optional terminology.Normalizer (nil disables alias/oracle
// resolution beyond the adapters' own display normalization). A nil
// sink discards audit records.
func New(store *catalog.Store, normalizer *terminology.Normalizer, sink audit.Sink, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Engine{store: store, normalizer: normalizer, sink: sink, logger: logger}
}

// resultKey identifies the (specimen, organism, antibiotic) tuple the
// conflict resolver reconciles multiple measurements over (spec §4.8).
type resultKey struct {
	specimen   domain.SpecimenRef
	organism   domain.OrganismKey
	antibiotic domain.AntibioticKey
}

// Classify runs the full pipeline over one ingestion payload. format
// may be "" to auto-detect via adapters.Detect. preferredSource
// overrides the catalog's default breakpoint source for this request;
// "" defers to the catalog policy. correlationID is the identifier the
// transport collaborator assigned to this request (spec §6 item 5); if
// empty, the engine mints one so standalone callers (CLI, tests) still
// get a correlation id on every audit record.
//
// Only payload-level failures (unrecognized format, malformed
// message) return an error; every per-input gating or interpretation
// failure becomes a REQUIRES_REVIEW result instead (spec §7
// "propagation policy").
func (e *Engine) Classify(ctx context.Context, payload []byte, format adapters.InputFormat, preferredSource domain.Source, correlationID string) ([]domain.ClassificationResult, error) {
	snapshot := e.store.Current()
	if snapshot == nil {
		return nil, fmt.Errorf("rule catalog not loaded")
	}

	if format == "" {
		format = adapters.Detect(payload)
	}

	inputs, err := parse(format, payload)
	if err != nil {
		return nil, err
	}

	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := e.logger.WithField("correlation_id", correlationID)

	grouped := grouper.Group(inputs, correlationID)

	type positioned struct {
		key    resultKey
		result domain.ClassificationResult
	}

	ordered := make([]positioned, 0, len(grouped))
	positions := map[resultKey][]int{}

	for _, in := range grouped {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		normalized := e.normalize(ctx, in)
		result := e.classifyOne(normalized, snapshot, preferredSource)

		key := resultKey{normalized.Specimen, normalized.Organism, normalized.Antibiotic}
		positions[key] = append(positions[key], len(ordered))
		ordered = append(ordered, positioned{key: key, result: result})
	}

	resolved := make([]domain.ClassificationResult, 0, len(ordered))
	emitted := map[resultKey]bool{}
	for _, p := range ordered {
		if emitted[p.key] {
			continue
		}
		emitted[p.key] = true

		idxs := positions[p.key]
		if len(idxs) == 1 {
			resolved = append(resolved, p.result)
			continue
		}

		group := make([]domain.ClassificationResult, 0, len(idxs))
		for _, i := range idxs {
			group = append(group, ordered[i].result)
		}
		resolved = append(resolved, conflict.Resolve(group, snapshot.Policy))
	}

	e.emitAudit(ctx, correlationID, resolved)

	logger.WithField("result_count", len(resolved)).Debug("classification complete")
	return resolved, nil
}

// emitAudit hands one record per result to the configured sink.
// Emission is detached from the request's cancellation so a client
// disconnect never drops an already-produced audit record (spec §6
// item 4 "fire-and-forget relative to the response path").
func (e *Engine) emitAudit(ctx context.Context, correlationID string, results []domain.ClassificationResult) {
	detached := context.WithoutCancel(ctx)
	now := time.Now()
	for _, r := range results {
		e.sink.Emit(detached, audit.FromResult(correlationID, r, now))
	}
}

func parse(format adapters.InputFormat, payload []byte) ([]domain.ClassificationInput, error) {
	switch format {
	case adapters.FormatFHIR:
		return adapters.ParseFHIR(payload)
	case adapters.FormatHL7v2:
		return adapters.ParseHL7v2(payload)
	case adapters.FormatNative:
		return adapters.ParseNative(payload)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

// normalize applies the terminology normalizer's alias/oracle
// resolution on top of the display normalization the adapters already
// performed (spec §4.2 steps 3-5). Coded-value lookup (step 1) does
// not run: the adapters pass on only the normalized display string,
// so the normalizer sees no code system or code.
func (e *Engine) normalize(ctx context.Context, in domain.ClassificationInput) domain.ClassificationInput {
	if e.normalizer == nil {
		return in
	}
	out := in
	if in.Organism.IsResolved() {
		out.Organism = e.normalizer.ResolveOrganism(ctx, terminology.CodedValue{Display: string(in.Organism)})
	}
	if in.Antibiotic.IsResolved() {
		out.Antibiotic = e.normalizer.ResolveAntibiotic(ctx, terminology.CodedValue{Display: string(in.Antibiotic)})
	}
	return out
}

func (e *Engine) classifyOne(in domain.ClassificationInput, snapshot *domain.RuleCatalog, preferredSource domain.Source) domain.ClassificationResult {
	gateOutcome := gating.Evaluate(in)
	if !gateOutcome.Pass {
		return assembler.Assemble(in, domain.RequiresReview, gateOutcome.Reason, nil, snapshot.VersionLabel, false)
	}

	ruleOutcome := rules.Evaluate(in, snapshot)
	if ruleOutcome.Fired {
		return assembler.Assemble(in, ruleOutcome.Decision, ruleOutcome.Reason, ruleOutcome.FiredRules, snapshot.VersionLabel, true)
	}

	bpResult := breakpoint.Interpret(in, snapshot, preferredSource)
	return assembler.Assemble(in, bpResult.Decision, bpResult.Reason, nil, snapshot.VersionLabel, false)
}
