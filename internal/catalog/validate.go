package catalog

import (
	"fmt"
	"strings"

	"github.com/clinlab/amrclassify/internal/domain"
)

// validate runs the full schema + semantic validation pass described in
// spec §4.1, collecting every violation rather than stopping at the
// first.
func validate(doc *document) []domain.ValidationError {
	var errs []domain.ValidationError

	errs = append(errs, validateBreakpoints(doc.Breakpoints)...)
	errs = append(errs, validateExpertRules(doc.ExpertRules, doc.AntibioticClasses)...)
	errs = append(errs, validateOrganismGroups(doc.OrganismGroups)...)
	errs = append(errs, validateIntrinsicRules(doc.IntrinsicResistance, doc.AntibioticClasses)...)
	errs = append(errs, validateVersions(doc.declaredVersions)...)

	return errs
}

// validateVersions rejects a catalog directory whose files declare
// conflicting non-empty version strings (spec §6 item 2: a catalog's
// files must agree on the version they belong to, or loading fails).
func validateVersions(versions []string) []domain.ValidationError {
	var errs []domain.ValidationError
	for i := 1; i < len(versions); i++ {
		if versions[i] != versions[0] {
			errs = append(errs, domain.ValidationError{Path: "version", Message: fmt.Sprintf("conflicting catalog versions declared: %q vs %q", versions[0], versions[i])})
			break
		}
	}
	return errs
}

func validateBreakpoints(entries []breakpointDoc) []domain.ValidationError {
	var errs []domain.ValidationError

	type key struct {
		scopeKind  string
		scopeValue string
		antibiotic string
		method     string
		source     string
	}
	seen := map[key]int{}

	for i, e := range entries {
		path := fmt.Sprintf("breakpoints[%d]", i)

		method := domain.MethodKind(e.Method)
		unit := domain.Unit(e.Unit)
		comparator := domain.ComparatorSemantics(e.Comparator)

		switch method {
		case domain.MIC:
			if unit != domain.UnitMgPerL {
				errs = append(errs, domain.ValidationError{Path: path + ".unit", Message: "MIC entries must use unit MG_PER_L"})
			}
			if comparator != domain.LE_S_GE_R && comparator != domain.LE_S_GT_R && comparator != domain.LE_S_LE_I_GT_R {
				errs = append(errs, domain.ValidationError{Path: path + ".comparator", Message: "MIC entries require a standard (non-inverse) comparator"})
			}
		case domain.DISC:
			if unit != domain.UnitMM {
				errs = append(errs, domain.ValidationError{Path: path + ".unit", Message: "DISC entries must use unit MM"})
			}
			if comparator != domain.InverseForDisc {
				errs = append(errs, domain.ValidationError{Path: path + ".comparator", Message: "DISC entries require the INVERSE_FOR_DISC comparator"})
			}
		default:
			errs = append(errs, domain.ValidationError{Path: path + ".method", Message: fmt.Sprintf("unsupported breakpoint method %q", e.Method)})
		}

		if e.Antibiotic == "" {
			errs = append(errs, domain.ValidationError{Path: path + ".antibiotic", Message: "antibiotic is required"})
		}
		if domain.Source(e.Source) != domain.EUCAST && domain.Source(e.Source) != domain.CLSI && domain.Source(e.Source) != domain.LOCAL {
			errs = append(errs, domain.ValidationError{Path: path + ".source", Message: fmt.Sprintf("unknown source %q", e.Source)})
		}

		k := key{scopeKind: e.OrganismScope.Kind, scopeValue: strings.ToLower(e.OrganismScope.Value), antibiotic: strings.ToLower(e.Antibiotic), method: e.Method, source: e.Source}
		if prior, ok := seen[k]; ok {
			errs = append(errs, domain.ValidationError{Path: path, Message: fmt.Sprintf("duplicate breakpoint entry for the same organism-scope/antibiotic/method/source as entry %d", prior)})
		} else {
			seen[k] = i
		}
	}

	return errs
}

func validateExpertRules(rules []expertRuleDoc, classes map[string][]string) []domain.ValidationError {
	var errs []domain.ValidationError
	ids := map[string]bool{}

	for i, r := range rules {
		path := fmt.Sprintf("expertRules[%d]", i)
		if r.ID == "" {
			errs = append(errs, domain.ValidationError{Path: path + ".id", Message: "expert rule id is required"})
		} else if ids[r.ID] {
			errs = append(errs, domain.ValidationError{Path: path + ".id", Message: fmt.Sprintf("duplicate expert rule id %q", r.ID)})
		} else {
			ids[r.ID] = true
		}

		if r.Effect.AppliesToClass != "" {
			members, ok := classes[r.Effect.AppliesToClass]
			if !ok || len(members) == 0 {
				errs = append(errs, domain.ValidationError{Path: path + ".effect.appliesToClass", Message: fmt.Sprintf("antibiotic class %q must resolve to a non-empty set", r.Effect.AppliesToClass)})
			}
		} else if len(r.AntibioticSet) == 0 {
			errs = append(errs, domain.ValidationError{Path: path + ".effect", Message: "expert rule must declare either effect.appliesToClass or a non-empty antibioticSet"})
		}

		if !domain.Decision(r.Effect.Decision).IsValid() {
			errs = append(errs, domain.ValidationError{Path: path + ".effect.decision", Message: fmt.Sprintf("invalid decision %q", r.Effect.Decision)})
		}
	}

	return errs
}

func validateIntrinsicRules(rules []intrinsicRuleDoc, classes map[string][]string) []domain.ValidationError {
	var errs []domain.ValidationError
	for i, r := range rules {
		path := fmt.Sprintf("intrinsicResistance[%d]", i)
		if r.ID == "" {
			errs = append(errs, domain.ValidationError{Path: path + ".id", Message: "intrinsic rule id is required"})
		}
		if r.AntibioticClass != "" {
			members, ok := classes[r.AntibioticClass]
			if !ok || len(members) == 0 {
				errs = append(errs, domain.ValidationError{Path: path + ".antibioticClass", Message: fmt.Sprintf("antibiotic class %q must resolve to a non-empty set", r.AntibioticClass)})
			}
		} else if len(r.Antibiotics) == 0 {
			errs = append(errs, domain.ValidationError{Path: path, Message: "intrinsic rule must declare either antibioticClass or a non-empty antibiotics list"})
		}
	}
	return errs
}

// validateOrganismGroups checks that group membership graphs (a
// member prefixed "group:" references another group) are acyclic
// (spec §4.1 "Organism-group definitions are acyclic").
func validateOrganismGroups(groups map[string][]string) []domain.ValidationError {
	var errs []domain.ValidationError

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(groups))

	var visit func(name string, path []string) bool
	visit = func(name string, path []string) bool {
		switch state[name] {
		case visiting:
			errs = append(errs, domain.ValidationError{Path: "organismGroups", Message: fmt.Sprintf("cyclic group membership: %s -> %s", strings.Join(path, " -> "), name)})
			return false
		case done:
			return true
		}
		state[name] = visiting
		for _, member := range groups[name] {
			if ref, ok := strings.CutPrefix(member, "group:"); ok {
				if _, exists := groups[ref]; !exists {
					errs = append(errs, domain.ValidationError{Path: "organismGroups[" + name + "]", Message: fmt.Sprintf("references unknown group %q", ref)})
					continue
				}
				visit(ref, append(path, name))
			}
		}
		state[name] = done
		return true
	}

	for name := range groups {
		if state[name] == unvisited {
			visit(name, nil)
		}
	}

	return errs
}
