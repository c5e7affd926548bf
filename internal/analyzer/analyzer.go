// Package analyzer extracts imports, functions, classes, routes and
// framework hints from a single source file.
package analyzer

import (
	"path"
	"strings"

	"github.com/seanblong/readmegen/internal/snippet"
	"github.com/seanblong/readmegen/pkg/models"
)

// Strategy analyzes the text of one file. filename is the base name.
type Strategy interface {
	Analyze(text, filename string) models.FileAnalysis
}

// StrategyKind names the strategy chosen for a file.
type StrategyKind string

const (
	StrategyConfig     StrategyKind = "config"
	StrategyStructural StrategyKind = "structural"
	StrategyUniversal  StrategyKind = "universal"
)

// binaryExtensions are never fetched or analyzed.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".svg": true, ".webp": true, ".pdf": true, ".zip": true,
	".tar": true, ".gz": true, ".tgz": true, ".jar": true, ".exe": true,
	".dll": true, ".so": true, ".dylib": true, ".woff": true, ".woff2": true,
	".ttf": true, ".eot": true, ".mp3": true, ".mp4": true, ".mov": true,
	".wav": true, ".pyc": true, ".class": true, ".lock": true,
}

var lockFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"poetry.lock":       true,
	"gemfile.lock":      true,
}

// Skip reports whether a file should not be analyzed at all.
func Skip(filename string) bool {
	name := strings.ToLower(path.Base(filename))
	if lockFiles[name] {
		return true
	}
	return binaryExtensions[path.Ext(name)]
}

// Select picks the strategy for a filename. Config files win over the
// extension.
func Select(filename string) StrategyKind {
	name := path.Base(filename)
	if snippet.IsConfigFile(name) {
		return StrategyConfig
	}
	if hasGrammar(name) {
		return StrategyStructural
	}
	return StrategyUniversal
}

// Analyzer dispatches each file to the strategy Select picks.
type Analyzer struct {
	strategies map[StrategyKind]Strategy
}

// New returns an Analyzer whose excerpts are bounded to snippetMaxLines.
func New(snippetMaxLines int) *Analyzer {
	if snippetMaxLines <= 0 {
		snippetMaxLines = snippet.DefaultMaxLines
	}
	lw := &Lightweight{SnippetMaxLines: snippetMaxLines}
	return &Analyzer{
		strategies: map[StrategyKind]Strategy{
			StrategyConfig:     &ConfigFile{},
			StrategyStructural: &Structural{SnippetMaxLines: snippetMaxLines, Fallback: lw},
			StrategyUniversal:  &Universal{SnippetMaxLines: snippetMaxLines},
		},
	}
}

// Analyze runs the selected strategy over text. filePath is the
// repository-relative path; routes found are attributed to it.
func (a *Analyzer) Analyze(text, filePath string) models.FileAnalysis {
	name := path.Base(filePath)
	fa := a.strategies[Select(name)].Analyze(text, name)
	fa.Filename = name
	fa.Path = filePath
	for i := range fa.APIRoutes {
		fa.APIRoutes[i].File = filePath
	}
	return fa
}
