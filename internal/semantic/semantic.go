// Package semantic folds per-file analyses into a repository summary.
package semantic

import (
	"fmt"
	"slices"
	"strings"

	"github.com/seanblong/readmegen/internal/analyzer"
	"github.com/seanblong/readmegen/pkg/models"
)

// state is the fold accumulator. combine never writes into the slices of
// the state it receives.
type state struct {
	frameworks []string
	features   []string
	routes     []models.Route
	notes      []string
	apiNotes   int
}

// Aggregate folds analyses, in order, into one summary. The primary
// language of meta is the only technology not taken from the analyses.
func Aggregate(meta models.RepoMetadata, analyses []models.FileAnalysis) models.SemanticSummary {
	s := state{}
	for _, fa := range analyses {
		s = combine(s, fa)
	}

	stack := appendUnique(nil, meta.Language)
	stack = appendUnique(stack, s.frameworks...)

	return models.SemanticSummary{
		ProjectArchetype:   archetype(s),
		TechnologyStack:    nonNil(stack),
		MainFeatures:       nonNil(s.features),
		APIEndpoints:       nonNilRoutes(s.routes),
		BusinessLogicNotes: nonNil(s.notes),
	}
}

func combine(s state, fa models.FileAnalysis) state {
	next := state{
		frameworks: appendUnique(s.frameworks, fa.FrameworksDetected...),
		features:   appendUnique(s.features, fa.FeaturesDetected...),
		routes:     append(slices.Clip(s.routes), fa.APIRoutes...),
		apiNotes:   s.apiNotes,
	}

	var notes []string
	for _, fn := range fa.Functions {
		notes = append(notes, FunctionNote(fn))
	}
	for _, c := range fa.Classes {
		notes = append(notes, ClassNote(c))
	}
	for _, r := range fa.APIRoutes {
		notes = append(notes, RouteNote(r))
		next.apiNotes++
	}
	next.notes = appendUnique(s.notes, notes...)
	return next
}

func FunctionNote(fn models.Function) string {
	prefix := ""
	if fn.IsAsync {
		prefix = "async "
	}
	return fmt.Sprintf("Function: %s%s(%s)", prefix, fn.Name, strings.Join(fn.Params, ", "))
}

func ClassNote(c models.Class) string {
	if len(c.Methods) == 0 {
		return "Class: " + c.Name
	}
	return fmt.Sprintf("Class: %s with methods: %s", c.Name, strings.Join(c.Methods, ", "))
}

func RouteNote(r models.Route) string {
	return fmt.Sprintf("API: %s %s", r.Method, r.Path)
}

// archetype applies a first-match chain over the folded state.
func archetype(s state) models.Archetype {
	has := func(c analyzer.Category) bool {
		return slices.ContainsFunc(s.frameworks, func(label string) bool {
			return analyzer.FrameworkCategory(label) == c
		})
	}
	switch {
	case has(analyzer.CategoryFrontend):
		return models.ArchetypeFrontend
	case has(analyzer.CategoryServer):
		return models.ArchetypeBackend
	case has(analyzer.CategoryML):
		return models.ArchetypeML
	case s.apiNotes > 0:
		return models.ArchetypeAPIService
	case has(analyzer.CategoryData):
		return models.ArchetypeDataTool
	default:
		return models.ArchetypeApplication
	}
}

// appendUnique returns a new slice holding dst followed by the items not
// already present. dst is not modified.
func appendUnique(dst []string, items ...string) []string {
	out := slices.Clip(dst)
	for _, it := range items {
		if it == "" || slices.Contains(out, it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilRoutes(r []models.Route) []models.Route {
	if r == nil {
		return []models.Route{}
	}
	return r
}
