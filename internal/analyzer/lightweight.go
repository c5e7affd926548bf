package analyzer

import (
	"bufio"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/seanblong/readmegen/internal/snippet"
	"github.com/seanblong/readmegen/pkg/models"
)

// Lightweight extracts declarations with per-language line patterns. It
// handles the files the syntax tree could not parse.
type Lightweight struct {
	SnippetMaxLines int
}

func (l *Lightweight) Analyze(text, filename string) models.FileAnalysis {
	fa := models.FileAnalysis{
		Filename:    filename,
		Kind:        models.KindScript,
		CodeExcerpt: snippet.Extract(text, filename, l.SnippetMaxLines),
	}
	switch strings.ToLower(path.Ext(filename)) {
	case ".py":
		scanPython(text, &fa)
	case ".rb":
		scanRuby(text, &fa)
	default:
		scanJavaScript(text, &fa)
	}
	detect(&fa)
	return fa
}

func lines(text string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// classScope tracks the class body an indentation-based scanner is inside.
// member is the indentation of the first method seen, so nested helpers
// are not reported as methods.
type classScope struct {
	class  int
	indent int
	member int
}

func noClass() classScope { return classScope{class: -1, member: -1} }

func (s *classScope) open(class, indent int) {
	*s = classScope{class: class, indent: indent, member: -1}
}

// leave closes the scope when line is back at or above the class header.
func (s *classScope) leave(line string) {
	if s.class >= 0 && indentOf(line) <= s.indent {
		*s = noClass()
	}
}

// method reports whether a def at indent is a direct member of the class.
func (s *classScope) method(indent int) bool {
	if s.class < 0 || indent <= s.indent {
		return false
	}
	if s.member < 0 {
		s.member = indent
	}
	return indent == s.member
}

func addMethod(c *models.Class, name string) {
	if !slices.Contains(c.Methods, name) {
		c.Methods = append(c.Methods, name)
	}
}

var (
	pyImportRe = regexp.MustCompile(`^import\s+([^#]+)`)
	pyFromRe   = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+\(?([^)#]+)`)
	pyDefRe    = regexp.MustCompile(`^(\s*)(async\s+)?def\s+(\w+)\s*\(([^)]*)`)
	pyClassRe  = regexp.MustCompile(`^(\s*)class\s+(\w+)`)
	pyRouteRe  = regexp.MustCompile(`^\s*@\w+(?:\.\w+)*\.(route|get|post|put|delete|patch)\(\s*['"]([^'"]*)['"](.*)`)
	pyMethodRe = regexp.MustCompile(`methods\s*=\s*[\[(]\s*['"](\w+)['"]`)
)

func scanPython(text string, fa *models.FileAnalysis) {
	sc := noClass()
	for _, line := range lines(text) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		sc.leave(line)

		if m := pyRouteRe.FindStringSubmatch(line); m != nil {
			method := strings.ToUpper(m[1])
			if m[1] == "route" {
				method = "GET"
				if mm := pyMethodRe.FindStringSubmatch(m[3]); mm != nil {
					method = strings.ToUpper(mm[1])
				}
			}
			fa.APIRoutes = append(fa.APIRoutes, models.Route{Method: method, Path: m[2]})
			continue
		}
		if m := pyImportRe.FindStringSubmatch(line); m != nil {
			for _, part := range splitList(m[1]) {
				mod, alias, ok := strings.Cut(part, " as ")
				mod = strings.TrimSpace(mod)
				bound := strings.Split(mod, ".")[0]
				if ok {
					bound = strings.TrimSpace(alias)
				}
				fa.Imports = append(fa.Imports, models.Import{Source: mod, BoundNames: []string{bound}})
			}
			continue
		}
		if m := pyFromRe.FindStringSubmatch(line); m != nil {
			var names []string
			for _, part := range splitList(m[2]) {
				name, alias, ok := strings.Cut(part, " as ")
				if ok {
					name = alias
				}
				names = append(names, strings.TrimSpace(name))
			}
			fa.Imports = append(fa.Imports, models.Import{Source: m[1], BoundNames: names})
			continue
		}
		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			fa.Classes = append(fa.Classes, models.Class{Name: m[2], Methods: []string{}})
			sc.open(len(fa.Classes)-1, len(m[1]))
			continue
		}
		if m := pyDefRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			switch {
			case sc.method(indent):
				addMethod(&fa.Classes[sc.class], m[3])
			case indent == 0:
				fa.Functions = append(fa.Functions, models.Function{
					Name:    m[3],
					Params:  pythonParams(m[4]),
					IsAsync: m[2] != "",
				})
			}
		}
	}
}

// pythonParams drops annotations and defaults: "a: int = 1, *args" -> [a *args].
func pythonParams(raw string) []string {
	out := []string{}
	for _, p := range splitList(raw) {
		if i := strings.IndexAny(p, ":="); i >= 0 {
			p = strings.TrimSpace(p[:i])
		}
		if p != "" && p != "/" && p != "*" {
			out = append(out, p)
		}
	}
	return out
}

var (
	rbRequireRe = regexp.MustCompile(`^\s*require(?:_relative)?\s*\(?\s*['"]([^'"]+)['"]`)
	rbClassRe   = regexp.MustCompile(`^(\s*)(?:class|module)\s+([A-Z][\w:]*)`)
	rbDefRe     = regexp.MustCompile(`^(\s*)def\s+(?:self\.)?([\w?!=]+)\s*(?:\(([^)]*)\)|\s+([^#]+))?`)
	rbRouteRe   = regexp.MustCompile(`^\s*(get|post|put|patch|delete)\s*\(?\s*['"]([^'"]+)['"]`)
)

func scanRuby(text string, fa *models.FileAnalysis) {
	sc := noClass()
	for _, line := range lines(text) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		sc.leave(line)

		if m := rbRequireRe.FindStringSubmatch(line); m != nil {
			fa.Imports = append(fa.Imports, models.Import{Source: m[1]})
			continue
		}
		if m := rbRouteRe.FindStringSubmatch(line); m != nil {
			fa.APIRoutes = append(fa.APIRoutes, models.Route{Method: strings.ToUpper(m[1]), Path: m[2]})
			continue
		}
		if m := rbClassRe.FindStringSubmatch(line); m != nil {
			if strings.HasPrefix(trimmed, "class") {
				fa.Classes = append(fa.Classes, models.Class{Name: m[2], Methods: []string{}})
				sc.open(len(fa.Classes)-1, len(m[1]))
			}
			continue
		}
		if m := rbDefRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			switch {
			case sc.method(indent):
				addMethod(&fa.Classes[sc.class], m[2])
			case sc.class < 0:
				params := m[3]
				if params == "" {
					params = m[4]
				}
				fa.Functions = append(fa.Functions, models.Function{Name: m[2], Params: rubyParams(params)})
			}
		}
	}
}

func rubyParams(raw string) []string {
	out := []string{}
	for _, p := range splitList(raw) {
		if i := strings.IndexAny(p, "=:"); i > 0 {
			p = strings.TrimSpace(p[:i])
		}
		out = append(out, p)
	}
	return out
}

var (
	jsImportRe   = regexp.MustCompile(`^\s*import\s+(?:(.+?)\s+from\s+)?['"]([^'"]+)['"]`)
	jsRequireRe  = regexp.MustCompile(`(?:const|let|var)\s+(\{[^}]*\}|[\w$]+)\s*=\s*require\(\s*['"]([^'"]+)['"]\s*\)`)
	jsBareReqRe  = regexp.MustCompile(`^\s*require\(\s*['"]([^'"]+)['"]\s*\)`)
	jsFuncRe     = regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(async\s+)?function\s*\*?\s*([\w$]+)\s*\(([^)]*)\)`)
	jsArrowRe    = regexp.MustCompile(`^(?:export\s+)?(?:const|let|var)\s+([\w$]+)\s*=\s*(async\s+)?(?:\(([^)]*)\)|([\w$]+))\s*=>`)
	jsClassRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([\w$]+)`)
	jsMethodRe   = regexp.MustCompile(`^\s+(?:(?:static|public|private|protected|async|get|set)\s+)*([\w$]+)\s*\([^)]*\)\s*(?::\s*[^{]+)?\{`)
	jsRouteRe    = regexp.MustCompile(`[\w$]+\.(get|post|put|delete|patch|options|head|all)\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]\s*,`)
	jsClassEndRe = regexp.MustCompile(`^\}`)
)

var jsKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"function": true, "return": true,
}

func scanJavaScript(text string, fa *models.FileAnalysis) {
	class := -1
	for _, line := range lines(text) {
		if m := jsImportRe.FindStringSubmatch(line); m != nil {
			fa.Imports = append(fa.Imports, models.Import{Source: m[2], BoundNames: importBindings(m[1])})
			continue
		}
		if m := jsRequireRe.FindStringSubmatch(line); m != nil {
			fa.Imports = append(fa.Imports, models.Import{Source: m[2], BoundNames: importBindings(m[1])})
			continue
		}
		if m := jsBareReqRe.FindStringSubmatch(line); m != nil {
			fa.Imports = append(fa.Imports, models.Import{Source: m[1]})
			continue
		}
		for _, m := range jsRouteRe.FindAllStringSubmatch(line, -1) {
			fa.APIRoutes = append(fa.APIRoutes, models.Route{Method: strings.ToUpper(m[1]), Path: m[2]})
		}
		if m := jsClassRe.FindStringSubmatch(line); m != nil {
			fa.Classes = append(fa.Classes, models.Class{Name: m[1], Methods: []string{}})
			class = len(fa.Classes) - 1
			continue
		}
		if class >= 0 {
			if jsClassEndRe.MatchString(line) {
				class = -1
			} else if m := jsMethodRe.FindStringSubmatch(line); m != nil && !jsKeywords[m[1]] {
				addMethod(&fa.Classes[class], m[1])
			}
			continue
		}
		if m := jsFuncRe.FindStringSubmatch(line); m != nil {
			fa.Functions = append(fa.Functions, models.Function{
				Name:    m[2],
				Params:  jsParams(m[3]),
				IsAsync: m[1] != "",
			})
			continue
		}
		if m := jsArrowRe.FindStringSubmatch(line); m != nil {
			params := m[3]
			if m[4] != "" {
				params = m[4]
			}
			fa.Functions = append(fa.Functions, models.Function{
				Name:    m[1],
				Params:  jsParams(params),
				IsAsync: m[2] != "",
			})
		}
	}
}

func jsParams(raw string) []string {
	out := []string{}
	for _, p := range splitList(raw) {
		if i := strings.IndexAny(p, "=:"); i > 0 {
			p = strings.TrimSpace(p[:i])
		}
		out = append(out, p)
	}
	return out
}

// importBindings reads the local names of an import clause or require target:
// "React, { useState as s }" -> [React s]; "* as fs" -> [fs].
func importBindings(clause string) []string {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return nil
	}
	var names []string
	var named string
	if i := strings.Index(clause, "{"); i >= 0 {
		j := strings.LastIndex(clause, "}")
		if j < i {
			j = len(clause)
		}
		named = clause[i+1 : j]
		clause = clause[:i] + clause[min(j+1, len(clause)):]
	}
	for _, part := range splitList(clause) {
		if _, alias, ok := strings.Cut(part, " as "); ok {
			part = alias
		}
		names = append(names, strings.TrimSpace(part))
	}
	for _, part := range splitList(named) {
		part = strings.TrimPrefix(part, "type ")
		if _, alias, ok := strings.Cut(part, " as "); ok {
			part = alias
		} else if _, alias, ok := strings.Cut(part, ":"); ok {
			part = alias
		}
		names = append(names, strings.TrimSpace(part))
	}
	return names
}
