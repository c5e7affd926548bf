package analyzer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/seanblong/readmegen/internal/snippet"
	"github.com/seanblong/readmegen/pkg/models"
)

var errSyntax = errors.New("source does not parse")

var routeMethods = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true,
	"patch": true, "options": true, "head": true, "all": true,
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Structural walks the syntax tree of JavaScript, TypeScript, Python and
// Ruby sources. Files that fail to parse are handed to Fallback.
type Structural struct {
	SnippetMaxLines int
	Fallback        Strategy
}

type family int

const (
	familyScript family = iota
	familyPython
	familyRuby
)

var grammars = map[string]struct {
	lang   func() *sitter.Language
	family family
}{
	".js":  {javascript.GetLanguage, familyScript},
	".jsx": {javascript.GetLanguage, familyScript},
	".mjs": {javascript.GetLanguage, familyScript},
	".cjs": {javascript.GetLanguage, familyScript},
	".ts":  {typescript.GetLanguage, familyScript},
	".tsx": {tsx.GetLanguage, familyScript},
	".py":  {python.GetLanguage, familyPython},
	".rb":  {ruby.GetLanguage, familyRuby},
}

// hasGrammar reports whether filename can be parsed into a syntax tree.
func hasGrammar(filename string) bool {
	_, ok := grammars[strings.ToLower(path.Ext(filename))]
	return ok
}

func (s *Structural) Analyze(text, filename string) models.FileAnalysis {
	fa, err := s.parse(text, filename)
	if err != nil {
		log.Debug().Err(err).Str("file", filename).Msg("structural parse failed, using line patterns")
		fallback := s.Fallback
		if fallback == nil {
			fallback = &Lightweight{SnippetMaxLines: s.SnippetMaxLines}
		}
		return fallback.Analyze(text, filename)
	}
	fa.CodeExcerpt = snippet.Extract(text, filename, s.SnippetMaxLines)
	detect(&fa)
	return fa
}

func (s *Structural) parse(text, filename string) (fa models.FileAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	g, ok := grammars[strings.ToLower(path.Ext(filename))]
	if !ok {
		return fa, fmt.Errorf("no grammar for %s", filename)
	}

	src := []byte(text)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.lang())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return fa, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return fa, errSyntax
	}

	fa = models.FileAnalysis{Filename: filename, Kind: models.KindScript}
	w := &walker{src: src, fa: &fa, family: g.family}
	w.visit(root)
	return fa, nil
}

type walker struct {
	src    []byte
	fa     *models.FileAnalysis
	family family
}

func (w *walker) text(n *sitter.Node) string {
	return n.Content(w.src)
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c != nil && c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

func hasToken(n *sitter.Node, token string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == token {
			return true
		}
	}
	return false
}

// topLevel reports whether n is a direct statement of the program,
// optionally wrapped in an export.
func topLevel(n *sitter.Node) bool {
	p := n.Parent()
	if p != nil && p.Type() == "export_statement" {
		p = p.Parent()
	}
	return p != nil && p.Type() == "program"
}

func isFunctionValue(n *sitter.Node) bool {
	switch n.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func (w *walker) visit(n *sitter.Node) {
	switch w.family {
	case familyPython:
		w.visitPython(n)
	case familyRuby:
		w.visitRuby(n)
	default:
		w.visitScript(n)
	}
}

func (w *walker) visitScript(n *sitter.Node) {
	switch n.Type() {
	case "import_statement":
		w.importStatement(n)
	case "call_expression":
		w.call(n)
	case "function_declaration", "generator_function_declaration":
		if topLevel(n) {
			w.function(n.ChildByFieldName("name"), n)
		}
	case "export_statement":
		if v := n.ChildByFieldName("value"); v != nil && isFunctionValue(v) && topLevel(v) {
			w.function(v.ChildByFieldName("name"), v)
		}
	case "lexical_declaration", "variable_declaration":
		if topLevel(n) {
			for _, d := range namedChildren(n) {
				if d.Type() != "variable_declarator" {
					continue
				}
				if v := d.ChildByFieldName("value"); v != nil && isFunctionValue(v) {
					w.function(d.ChildByFieldName("name"), v)
				}
			}
		}
	case "class_declaration", "abstract_class_declaration", "class":
		w.class(n)
	}
	for _, c := range namedChildren(n) {
		w.visit(c)
	}
}

func (w *walker) importStatement(n *sitter.Node) {
	src := n.ChildByFieldName("source")
	if src == nil {
		return
	}
	source, ok := w.literal(src)
	if !ok {
		return
	}
	imp := models.Import{Source: source}
	for _, c := range namedChildren(n) {
		if c.Type() != "import_clause" {
			continue
		}
		for _, b := range namedChildren(c) {
			switch b.Type() {
			case "identifier":
				imp.BoundNames = append(imp.BoundNames, w.text(b))
			case "namespace_import":
				if ids := namedChildren(b); len(ids) > 0 {
					imp.BoundNames = append(imp.BoundNames, w.text(ids[len(ids)-1]))
				}
			case "named_imports":
				for _, spec := range namedChildren(b) {
					if spec.Type() != "import_specifier" {
						continue
					}
					name := spec.ChildByFieldName("alias")
					if name == nil {
						name = spec.ChildByFieldName("name")
					}
					if name != nil {
						imp.BoundNames = append(imp.BoundNames, w.text(name))
					}
				}
			}
		}
	}
	w.fa.Imports = append(w.fa.Imports, imp)
}

func (w *walker) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	argsNode := n.ChildByFieldName("arguments")
	if fn == nil || argsNode == nil {
		return
	}
	args := namedChildren(argsNode)

	switch fn.Type() {
	case "identifier":
		if w.text(fn) != "require" || len(args) == 0 {
			return
		}
		source, ok := w.literal(args[0])
		if !ok {
			return
		}
		imp := models.Import{Source: source}
		if p := n.Parent(); p != nil && p.Type() == "variable_declarator" {
			if name := p.ChildByFieldName("name"); name != nil {
				imp.BoundNames = w.patternNames(name)
			}
		}
		w.fa.Imports = append(w.fa.Imports, imp)

	case "member_expression":
		prop := fn.ChildByFieldName("property")
		if prop == nil || len(args) < 2 {
			return
		}
		method := strings.ToLower(w.text(prop))
		if !routeMethods[method] {
			return
		}
		routePath, ok := w.literal(args[0])
		if !ok {
			routePath = "dynamic"
		}
		w.fa.APIRoutes = append(w.fa.APIRoutes, models.Route{Method: strings.ToUpper(method), Path: routePath})
	}
}

// literal returns the value of a string or substitution-free template literal.
func (w *walker) literal(n *sitter.Node) (string, bool) {
	switch n.Type() {
	case "string":
		return strings.Trim(w.text(n), `'"`), true
	case "template_string":
		for _, c := range namedChildren(n) {
			if c.Type() == "template_substitution" {
				return "", false
			}
		}
		return strings.Trim(w.text(n), "`"), true
	}
	return "", false
}

// patternNames lists the identifiers bound by a declarator name.
func (w *walker) patternNames(n *sitter.Node) []string {
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{w.text(n)}
	case "object_pattern", "array_pattern":
		var out []string
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "pair_pattern":
				if v := c.ChildByFieldName("value"); v != nil {
					out = append(out, w.patternNames(v)...)
				}
			case "object_assignment_pattern", "assignment_pattern":
				if l := c.ChildByFieldName("left"); l != nil {
					out = append(out, w.patternNames(l)...)
				}
			default:
				out = append(out, w.patternNames(c)...)
			}
		}
		return out
	case "rest_pattern":
		if ids := namedChildren(n); len(ids) > 0 {
			return w.patternNames(ids[0])
		}
	}
	return nil
}

func (w *walker) function(name, fn *sitter.Node) {
	if name == nil {
		return
	}
	f := models.Function{
		Name:    w.text(name),
		Params:  []string{},
		IsAsync: hasToken(fn, "async"),
	}
	if params := fn.ChildByFieldName("parameters"); params != nil {
		for _, p := range namedChildren(params) {
			f.Params = append(f.Params, w.paramName(p))
		}
	} else if p := fn.ChildByFieldName("parameter"); p != nil {
		f.Params = append(f.Params, w.paramName(p))
	}
	w.fa.Functions = append(w.fa.Functions, f)
}

func (w *walker) paramName(n *sitter.Node) string {
	switch n.Type() {
	case "identifier":
		return w.text(n)
	case "assignment_pattern":
		if l := n.ChildByFieldName("left"); l != nil {
			return w.paramName(l)
		}
	case "rest_pattern":
		if ids := namedChildren(n); len(ids) > 0 {
			return "..." + w.paramName(ids[0])
		}
	case "required_parameter", "optional_parameter":
		if p := n.ChildByFieldName("pattern"); p != nil {
			return w.paramName(p)
		}
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(w.text(n), " "))
}

func (w *walker) class(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	c := models.Class{Name: w.text(name), Methods: []string{}}
	if body := n.ChildByFieldName("body"); body != nil {
		for _, m := range namedChildren(body) {
			switch m.Type() {
			case "method_definition":
				if mn := m.ChildByFieldName("name"); mn != nil {
					addMethod(&c, w.text(mn))
				}
			case "field_definition", "public_field_definition":
				v := m.ChildByFieldName("value")
				mn := m.ChildByFieldName("property")
				if mn == nil {
					mn = m.ChildByFieldName("name")
				}
				if v != nil && mn != nil && isFunctionValue(v) {
					addMethod(&c, w.text(mn))
				}
			}
		}
	}
	w.fa.Classes = append(w.fa.Classes, c)
}
