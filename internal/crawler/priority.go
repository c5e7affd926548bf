package crawler

import (
	"path"
	"slices"
	"strings"

	"github.com/seanblong/readmegen/pkg/models"
)

// DefaultMaxFiles is the size of the working set kept after ranking.
const DefaultMaxFiles = 50

var canonicalScores = map[string]int{
	"package.json":     100,
	"requirements.txt": 100,
	"app.js":           100,
	"app.py":           100,
	"main.py":          100,
	"main.js":          100,
	"server.js":        100,
	"index.js":         100,
	"index.ts":         100,
	"main.ts":          100,
	"server.ts":        100,
	"app.ts":           100,

	"manage.py":      95,
	"wsgi.py":        90,
	"setup.py":       90,
	"pyproject.toml": 90,
	"app.jsx":        90,
	"app.tsx":        90,
	"index.jsx":      85,
	"index.tsx":      85,
	"main.jsx":       85,
	"main.tsx":       85,
	"go.mod":         85,
	"cargo.toml":     85,
	"gemfile":        85,
	"composer.json":  85,

	"dockerfile":          70,
	"docker-compose.yml":  65,
	"docker-compose.yaml": 65,
	"readme.md":           60,
	"tsconfig.json":       60,
	".env.example":        50,
	".env.sample":         50,
	"env.example":         50,
}

var patternBonuses = []struct {
	fragment string
	bonus    int
}{
	{"route", 40},
	{"api", 40},
	{"controller", 35},
	{"model", 35},
	{"service", 30},
	{"auth", 30},
	{"middleware", 25},
	{"utils", 15},
}

var sourceExtensions = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true, ".vue": true, ".svelte": true,
	".py": true, ".rb": true, ".go": true, ".java": true,
	".php": true, ".rs": true, ".kt": true, ".cs": true,
}

const sourceExtensionBonus = 20

// Score returns the static priority of a file.
func Score(f models.FileEntry) int {
	name := strings.ToLower(f.Name)
	score := canonicalScores[name]

	p := strings.ToLower(f.Path)
	for _, pb := range patternBonuses {
		if strings.Contains(name, pb.fragment) || strings.Contains(p, pb.fragment) {
			score += pb.bonus
		}
	}

	if sourceExtensions[strings.ToLower(path.Ext(f.Name))] {
		score += sourceExtensionBonus
	}
	return score
}

// Prioritize ranks files by Score, keeping input order among equal scores,
// and returns at most n of them.
func Prioritize(files []models.FileEntry, n int) []models.PrioritizedFile {
	ranked := make([]models.PrioritizedFile, len(files))
	for i, f := range files {
		ranked[i] = models.PrioritizedFile{FileEntry: f, Priority: Score(f)}
	}
	slices.SortStableFunc(ranked, func(a, b models.PrioritizedFile) int {
		return b.Priority - a.Priority
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
