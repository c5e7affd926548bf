// Package snippet reduces source files to a bounded, declaration-biased excerpt.
package snippet

import (
	"regexp"
	"slices"
	"strings"
)

const (
	// DefaultMaxLines bounds the excerpt of a source file.
	DefaultMaxLines = 300

	// configHeadLines is how much of a config file is kept.
	configHeadLines = 150
)

// Line priorities, highest first.
const (
	PriorityDeclaration = 15
	PriorityRoute       = 12
	PriorityControl     = 9
	PriorityVariable    = 7
	PriorityOther       = 5
	PriorityTrivial     = 1
)

var configFiles = map[string]bool{
	"package.json":        true,
	"package-lock.json":   true,
	"requirements.txt":    true,
	"pyproject.toml":      true,
	"setup.cfg":           true,
	"tsconfig.json":       true,
	"Dockerfile":          true,
	"docker-compose.yml":  true,
	"docker-compose.yaml": true,
	".env.example":        true,
	".env.sample":         true,
	"env.example":         true,
}

var (
	commentRe     = regexp.MustCompile(`^\s*(//|#|/\*|\*|\*/|<!--|-->|"""|''')`)
	declarationRe = regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(async\s+)?(import|export|class|def|function)\b|^\s*(export\s+)?(const|let|var)\s+\w+\s*=\s*(async\s+)?(\([^)]*\)|\w+)\s*=>|^\s*(app|router|server)\.`)
	routeRe       = regexp.MustCompile(`\.(get|post|put|delete|patch|route)\s*\(|@\w+\.(route|get|post|put|delete|patch)\b|(mongoose\.)?Schema\s*\(|\bmodel\s*\(|\bdefine\s*\(|db\.Column\b|models\.\w+Field\b|\bColumn\s*\(`)
	controlRe     = regexp.MustCompile(`^\s*(}\s*)?(if|else|elif|for|while|try|catch|except|finally|switch|async|await|return)\b`)
	variableRe    = regexp.MustCompile(`^\s*(export\s+)?(const|let|var)\s+\w+|module\.exports|^\s*exports\.|^[A-Za-z_]\w*\s*=[^=]`)
)

// IsConfigFile reports whether name is a config file read top-down.
func IsConfigFile(name string) bool {
	return configFiles[name]
}

// LinePriority scores one line of source.
func LinePriority(line string) int {
	switch {
	case strings.TrimSpace(line) == "" || commentRe.MatchString(line):
		return PriorityTrivial
	case declarationRe.MatchString(line):
		return PriorityDeclaration
	case routeRe.MatchString(line):
		return PriorityRoute
	case controlRe.MatchString(line):
		return PriorityControl
	case variableRe.MatchString(line):
		return PriorityVariable
	default:
		return PriorityOther
	}
}

// Extract returns text unchanged when it has at most maxLines lines, not
// counting a final newline as the start of another line. Config
// files keep their head; other files keep the maxLines highest priority lines
// in their original order.
func Extract(text, filename string, maxLines int) string {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) <= maxLines {
		return text
	}

	if IsConfigFile(filename) {
		return strings.Join(lines[:min(configHeadLines, len(lines))], "\n")
	}

	type scored struct {
		index    int
		priority int
	}
	ranked := make([]scored, len(lines))
	for i, l := range lines {
		ranked[i] = scored{index: i, priority: LinePriority(l)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int { return b.priority - a.priority })
	ranked = ranked[:maxLines]
	slices.SortFunc(ranked, func(a, b scored) int { return a.index - b.index })

	kept := make([]string, len(ranked))
	for i, s := range ranked {
		kept[i] = lines[s.index]
	}
	return strings.Join(kept, "\n")
}
