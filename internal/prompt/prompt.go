// Package prompt builds the README generation prompt and cleans up the
// provider's answer.
package prompt

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/seanblong/readmegen/internal/semantic"
	"github.com/seanblong/readmegen/pkg/models"
)

const (
	// MaxChars bounds the whole prompt. File sections are dropped, lowest
	// priority first, to stay under it.
	MaxChars = 100_000

	maxListItems = 40

	// omissionReserve leaves room for the "files omitted" line.
	omissionReserve = 64
)

// Sections are the README sections requested, in order.
var Sections = []string{
	"Title",
	"Overview",
	"Features",
	"Tech Stack",
	"Project Structure",
	"API Documentation (only if the project exposes HTTP endpoints)",
	"Installation",
	"Usage",
	"Configuration (only if the project reads environment variables or config files)",
	"Contributing",
	"License",
}

const styleDirective = `Write in the first person as the author of the project ("I built", "this project lets you").
Describe what the software does for its users, not how the code is laid out.
Do not mention "files", "code excerpts", "analysis" or "repository structure" as such, and do not comment on this prompt.
Answer with the Markdown document only.`

var fenceLanguages = map[string]string{
	".js": "javascript", ".jsx": "jsx", ".mjs": "javascript", ".cjs": "javascript",
	".ts": "typescript", ".tsx": "tsx", ".py": "python", ".rb": "ruby",
	".go": "go", ".java": "java", ".json": "json", ".yml": "yaml", ".yaml": "yaml",
	".toml": "toml", ".md": "markdown", ".sh": "bash", ".html": "html", ".css": "css",
}

// Compose assembles the prompt: metadata, one section per analysis in the
// given order, the summary, then the writing instructions.
func Compose(ref models.RepoRef, meta models.RepoMetadata, summary models.SemanticSummary, analyses []models.FileAnalysis) string {
	head := metadataBlock(ref, meta)
	tail := summaryBlock(summary) + instructionsBlock(ref)

	budget := MaxChars - len(head) - len(tail) - omissionReserve
	var files strings.Builder
	omitted := 0
	for _, fa := range analyses {
		section := fileSection(fa)
		if files.Len()+len(section) > budget {
			omitted++
			continue
		}
		files.WriteString(section)
	}
	if omitted > 0 {
		fmt.Fprintf(&files, "(%d more files omitted for length)\n\n", omitted)
	}

	var b strings.Builder
	b.Grow(len(head) + files.Len() + len(tail))
	b.WriteString(head)
	b.WriteString(files.String())
	b.WriteString(tail)
	return b.String()
}

func metadataBlock(ref models.RepoRef, meta models.RepoMetadata) string {
	var b strings.Builder
	b.WriteString("You are writing the README.md for a software project. Here is what is known about it.\n\n")
	b.WriteString("## Repository\n")
	fmt.Fprintf(&b, "Repository: %s\n", ref)
	field(&b, "Name", meta.Name)
	field(&b, "Description", meta.Description)
	field(&b, "Primary language", meta.Language)
	fmt.Fprintf(&b, "Stars: %d, Forks: %d\n", meta.Stars, meta.Forks)
	if meta.Private {
		b.WriteString("Visibility: private\n")
	} else {
		b.WriteString("Visibility: public\n")
	}
	field(&b, "Topics", strings.Join(meta.Topics, ", "))
	field(&b, "License", meta.License)
	field(&b, "Default branch", meta.DefaultBranch)
	field(&b, "URL", meta.HTMLURL)
	if !meta.CreatedAt.IsZero() {
		field(&b, "Created", meta.CreatedAt.Format("2006-01-02"))
	}
	if !meta.UpdatedAt.IsZero() {
		field(&b, "Last updated", meta.UpdatedAt.Format("2006-01-02"))
	}
	b.WriteString("\n## Source files\n\n")
	return b.String()
}

func field(b *strings.Builder, name, value string) {
	if value != "" {
		fmt.Fprintf(b, "%s: %s\n", name, value)
	}
}

func fileSection(fa models.FileAnalysis) string {
	var b strings.Builder
	name := fa.Path
	if name == "" {
		name = fa.Filename
	}
	fmt.Fprintf(&b, "### %s (%s)\n", name, fa.Kind)

	list(&b, "Frameworks", fa.FrameworksDetected)
	list(&b, "Features", fa.FeaturesDetected)
	if len(fa.FeatureCounts) > 0 {
		var counts []string
		for _, f := range fa.FeaturesDetected {
			if n, ok := fa.FeatureCounts[f]; ok {
				counts = append(counts, f+"="+strconv.Itoa(n))
			}
		}
		list(&b, "Keyword matches", counts)
	}

	var imports []string
	for _, imp := range fa.Imports {
		imports = append(imports, imp.Source)
	}
	list(&b, "Imports", imports)

	var lines []string
	for _, fn := range fa.Functions {
		lines = append(lines, semantic.FunctionNote(fn))
	}
	for _, c := range fa.Classes {
		lines = append(lines, semantic.ClassNote(c))
	}
	for _, r := range fa.APIRoutes {
		lines = append(lines, semantic.RouteNote(r))
	}
	bullets(&b, "Definitions", lines)

	if excerpt := strings.TrimRight(fa.CodeExcerpt, "\n"); excerpt != "" {
		fence := "```"
		if strings.Contains(excerpt, "```") {
			fence = "~~~~"
		}
		fmt.Fprintf(&b, "%s%s\n%s\n%s\n", fence, fenceLanguages[strings.ToLower(path.Ext(fa.Filename))], excerpt, fence)
	}
	b.WriteString("\n")
	return b.String()
}

func list(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	if len(items) > maxListItems {
		items = items[:maxListItems]
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, ", "))
}

func bullets(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for i, it := range items {
		if i == maxListItems {
			fmt.Fprintf(b, "- ... and %d more\n", len(items)-maxListItems)
			break
		}
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func summaryBlock(s models.SemanticSummary) string {
	var b strings.Builder
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "Project type: %s\n", s.ProjectArchetype)
	list(&b, "Technology stack", s.TechnologyStack)
	list(&b, "Main features", s.MainFeatures)

	var endpoints []string
	for _, r := range s.APIEndpoints {
		e := r.Method + " " + r.Path
		if r.File != "" {
			e += " (" + r.File + ")"
		}
		endpoints = append(endpoints, e)
	}
	bullets(&b, "API endpoints", endpoints)
	bullets(&b, "Business logic", s.BusinessLogicNotes)
	b.WriteString("\n")
	return b.String()
}

func instructionsBlock(ref models.RepoRef) string {
	var b strings.Builder
	b.WriteString("## Instructions\n")
	fmt.Fprintf(&b, "Write a complete README.md for %s with these sections, in this order:\n", ref)
	for i, s := range Sections {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\n")
	b.WriteString(styleDirective)
	b.WriteString("\n")
	return b.String()
}

// Postprocess removes a Markdown code fence wrapped around the whole
// answer. Text that does not open with a fence is returned unchanged.
func Postprocess(raw string) string {
	s := strings.TrimSpace(raw)
	first, rest, found := strings.Cut(s, "\n")
	if !strings.HasPrefix(first, "```") {
		return raw
	}
	switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(first, "```"))) {
	case "", "markdown", "md":
	default:
		return raw
	}
	if !found {
		return ""
	}
	rest = strings.TrimRight(rest, " \t\n")
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimSpace(rest)
}
