// Package terminology resolves organism/antibiotic designators — coded
// values or free text — to canonical domain.OrganismKey/AntibioticKey,
// consulting an offline alias table first and an optional external
// terminology oracle last (spec §4.2), the way the teacher's
// pkg/external gene API clients consult HGNC/Ensembl with circuit
// breaking and caching in front of a local fallback.
package terminology

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/clinlab/amrclassify/internal/domain"
)

// CodeSystem is a recognized coded-value vocabulary (spec §4.2 step 1).
type CodeSystem string

const (
	SNOMEDCT CodeSystem = "SNOMED_CT"
	LOINC    CodeSystem = "LOINC"
	RxNorm   CodeSystem = "RXNORM"
	ATC      CodeSystem = "ATC"
)

// CodedValue is the (system, code, display) triple an adapter extracts
// from a source record.
type CodedValue struct {
	System  CodeSystem
	Code    string
	Display string
}

// cacheKey is the normalization cache key: (system, code, display),
// exactly as spec §5 names it.
type cacheKey struct {
	system  CodeSystem
	code    string
	display string
}

// Oracle is the optional external terminology service consulted as the
// last resolution step (spec §4.2 step 4, §6 item 3). Implementations
// must respect ctx cancellation/timeout.
type Oracle interface {
	ValidateCode(ctx context.Context, system CodeSystem, code, display string) (canonicalKey string, resolvedDisplay string, valid bool, err error)
}

// Normalizer resolves organism and antibiotic designators against a
// catalog snapshot's coded-value table and alias tables, with an
// optional oracle as a last resort. It is pure given a fixed catalog
// generation and cache contents (spec §4.2 "Determinism").
type Normalizer struct {
	logger *logrus.Entry

	organismCodes   map[codedKey]domain.OrganismKey
	organismAliases map[string]domain.OrganismKey

	antibioticCodes   map[codedKey]domain.AntibioticKey
	antibioticAliases map[string]domain.AntibioticKey

	oracle Oracle
	cache  *lru.Cache[cacheKey, cacheEntry]
}

type codedKey struct {
	system CodeSystem
	code   string
}

type cacheEntry struct {
	organism   domain.OrganismKey
	antibiotic domain.AntibioticKey
	valid      bool
}

// Config wires a Normalizer's offline tables, optional oracle, and
// cache size (spec §5 "resource bounds": the normalization cache has a
// declared maximum entry count, LRU eviction on overflow).
type Config struct {
	OrganismCodes     map[CodeSystem]map[string]string // system -> code -> canonical display
	OrganismAliases   map[string]string                // normalized alias -> canonical display
	AntibioticCodes   map[CodeSystem]map[string]string
	AntibioticAliases map[string]string
	Oracle            Oracle
	CacheSize         int
}

// New builds a Normalizer from a Config, grounded on a fixed catalog
// generation; callers discard and rebuild the Normalizer (and its
// cache) on catalog reload (spec §5 "cleared on reload").
func New(cfg Config, logger *logrus.Entry) (*Normalizer, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		return nil, err
	}

	n := &Normalizer{
		logger:            logger,
		organismCodes:     flattenCodes[domain.OrganismKey](cfg.OrganismCodes),
		organismAliases:   aliasMap[domain.OrganismKey](cfg.OrganismAliases),
		antibioticCodes:   flattenCodes[domain.AntibioticKey](cfg.AntibioticCodes),
		antibioticAliases: aliasMap[domain.AntibioticKey](cfg.AntibioticAliases),
		oracle:            cfg.Oracle,
		cache:             cache,
	}
	return n, nil
}

func flattenCodes[K ~string](raw map[CodeSystem]map[string]string) map[codedKey]K {
	out := map[codedKey]K{}
	for system, codes := range raw {
		for code, display := range codes {
			out[codedKey{system: system, code: code}] = K(domain.NormalizeDisplay(display))
		}
	}
	return out
}

func aliasMap[K ~string](raw map[string]string) map[string]K {
	out := make(map[string]K, len(raw))
	for alias, canonical := range raw {
		out[domain.NormalizeDisplay(alias)] = K(domain.NormalizeDisplay(canonical))
	}
	return out
}

// ResolveOrganism implements the five-step algorithm of spec §4.2 for
// organisms. A zero-value CodedValue (no system/code, only display) is
// valid input; display-only resolution starts at step 2.
func (n *Normalizer) ResolveOrganism(ctx context.Context, cv CodedValue) domain.OrganismKey {
	if cv.System != "" && cv.Code != "" {
		if key, ok := n.organismCodes[codedKey{system: cv.System, code: cv.Code}]; ok {
			return key
		}
	}

	normalized := domain.NormalizeDisplay(cv.Display)
	if normalized == "" {
		return domain.UnresolvedOrganism
	}
	if key, ok := n.organismAliases[normalized]; ok {
		return key
	}

	ck := cacheKey{system: cv.System, code: cv.Code, display: normalized}
	if entry, ok := n.cache.Get(ck); ok {
		if entry.valid {
			return entry.organism
		}
		return domain.UnresolvedOrganism
	}

	if n.oracle != nil {
		canonical, resolvedDisplay, valid, err := n.oracle.ValidateCode(ctx, cv.System, cv.Code, cv.Display)
		if err != nil {
			n.logger.WithError(err).WithField("display", cv.Display).Warn("terminology oracle call failed; treating as unresolved")
			valid = false
		}
		var key domain.OrganismKey
		if valid {
			if canonical != "" {
				key = domain.OrganismKey(domain.NormalizeDisplay(canonical))
			} else {
				key = domain.OrganismKey(domain.NormalizeDisplay(resolvedDisplay))
			}
		}
		n.cache.Add(ck, cacheEntry{organism: key, valid: valid})
		if valid {
			return key
		}
	}

	return domain.UnresolvedOrganism
}

// ResolveAntibiotic is the antibiotic analogue of ResolveOrganism
// (spec §4.2 "Antibiotic normalization is analogous").
func (n *Normalizer) ResolveAntibiotic(ctx context.Context, cv CodedValue) domain.AntibioticKey {
	if cv.System != "" && cv.Code != "" {
		if key, ok := n.antibioticCodes[codedKey{system: cv.System, code: cv.Code}]; ok {
			return key
		}
	}

	normalized := domain.NormalizeDisplay(cv.Display)
	if normalized == "" {
		return domain.UnresolvedAntibiotic
	}
	if key, ok := n.antibioticAliases[normalized]; ok {
		return key
	}

	ck := cacheKey{system: cv.System, code: cv.Code, display: normalized}
	if entry, ok := n.cache.Get(ck); ok {
		if entry.valid {
			return entry.antibiotic
		}
		return domain.UnresolvedAntibiotic
	}

	if n.oracle != nil {
		canonical, resolvedDisplay, valid, err := n.oracle.ValidateCode(ctx, cv.System, cv.Code, cv.Display)
		if err != nil {
			n.logger.WithError(err).WithField("display", cv.Display).Warn("terminology oracle call failed; treating as unresolved")
			valid = false
		}
		var key domain.AntibioticKey
		if valid {
			if canonical != "" {
				key = domain.AntibioticKey(domain.NormalizeDisplay(canonical))
			} else {
				key = domain.AntibioticKey(domain.NormalizeDisplay(resolvedDisplay))
			}
		}
		n.cache.Add(ck, cacheEntry{antibiotic: key, valid: valid})
		if valid {
			return key
		}
	}

	return domain.UnresolvedAntibiotic
}
