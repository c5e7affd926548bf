package analyzer

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/seanblong/readmegen/pkg/models"
)

func (w *walker) visitPython(n *sitter.Node) {
	switch n.Type() {
	case "import_statement":
		for _, c := range namedChildren(n) {
			w.pyImport(c)
		}
	case "import_from_statement":
		w.pyFromImport(n)
	case "function_definition":
		if pyTopLevel(n) {
			w.pyFunction(n)
		}
	case "class_definition":
		w.pyClass(n)
	case "decorator":
		w.pyRoute(n)
	}
	for _, c := range namedChildren(n) {
		w.visit(c)
	}
}

// pyTopLevel reports whether a function definition sits directly in the
// module, optionally under decorators.
func pyTopLevel(n *sitter.Node) bool {
	p := n.Parent()
	if p != nil && p.Type() == "decorated_definition" {
		p = p.Parent()
	}
	return p != nil && p.Type() == "module"
}

// pyImport handles one name of a plain import: "import a.b" binds a,
// "import a.b as c" binds c.
func (w *walker) pyImport(n *sitter.Node) {
	switch n.Type() {
	case "dotted_name":
		mod := w.text(n)
		bound, _, _ := strings.Cut(mod, ".")
		w.fa.Imports = append(w.fa.Imports, models.Import{Source: mod, BoundNames: []string{bound}})
	case "aliased_import":
		name := n.ChildByFieldName("name")
		alias := n.ChildByFieldName("alias")
		if name == nil || alias == nil {
			return
		}
		w.fa.Imports = append(w.fa.Imports, models.Import{Source: w.text(name), BoundNames: []string{w.text(alias)}})
	}
}

func (w *walker) pyFromImport(n *sitter.Node) {
	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return
	}
	imp := models.Import{Source: w.text(mod)}
	children := namedChildren(n)
	for _, c := range children[1:] {
		switch c.Type() {
		case "dotted_name":
			imp.BoundNames = append(imp.BoundNames, w.text(c))
		case "aliased_import":
			if alias := c.ChildByFieldName("alias"); alias != nil {
				imp.BoundNames = append(imp.BoundNames, w.text(alias))
			}
		case "wildcard_import":
			imp.BoundNames = append(imp.BoundNames, "*")
		}
	}
	w.fa.Imports = append(w.fa.Imports, imp)
}

func (w *walker) pyFunction(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	f := models.Function{
		Name:    w.text(name),
		Params:  []string{},
		IsAsync: hasToken(n, "async"),
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		for _, p := range namedChildren(params) {
			if pn := w.pyParam(p); pn != "" {
				f.Params = append(f.Params, pn)
			}
		}
	}
	w.fa.Functions = append(w.fa.Functions, f)
}

// pyParam drops annotations and defaults: "limit: int = 10" is "limit".
// Bare "*" and "/" separators yield "".
func (w *walker) pyParam(n *sitter.Node) string {
	switch n.Type() {
	case "identifier":
		return w.text(n)
	case "default_parameter", "typed_default_parameter":
		if name := n.ChildByFieldName("name"); name != nil {
			return w.pyParam(name)
		}
	case "typed_parameter":
		if ids := namedChildren(n); len(ids) > 0 {
			return w.pyParam(ids[0])
		}
	case "list_splat_pattern":
		if ids := namedChildren(n); len(ids) > 0 {
			return "*" + w.pyParam(ids[0])
		}
	case "dictionary_splat_pattern":
		if ids := namedChildren(n); len(ids) > 0 {
			return "**" + w.pyParam(ids[0])
		}
	case "keyword_separator", "positional_separator":
		return ""
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(w.text(n), " "))
}

func (w *walker) pyClass(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	c := models.Class{Name: w.text(name), Methods: []string{}}
	if body := n.ChildByFieldName("body"); body != nil {
		for _, m := range namedChildren(body) {
			if m.Type() == "decorated_definition" {
				m = m.ChildByFieldName("definition")
			}
			if m == nil || m.Type() != "function_definition" {
				continue
			}
			if mn := m.ChildByFieldName("name"); mn != nil {
				addMethod(&c, w.text(mn))
			}
		}
	}
	w.fa.Classes = append(w.fa.Classes, c)
}

// pyRoute records decorators such as @app.get("/users") and
// @app.route("/login", methods=["POST"]).
func (w *walker) pyRoute(n *sitter.Node) {
	exprs := namedChildren(n)
	if len(exprs) == 0 || exprs[0].Type() != "call" {
		return
	}
	call := exprs[0]
	fn := call.ChildByFieldName("function")
	argsNode := call.ChildByFieldName("arguments")
	if fn == nil || argsNode == nil || fn.Type() != "attribute" {
		return
	}
	attr := fn.ChildByFieldName("attribute")
	if attr == nil {
		return
	}
	verb := strings.ToLower(w.text(attr))
	if verb != "route" && !routeMethods[verb] {
		return
	}
	args := namedChildren(argsNode)
	if len(args) == 0 {
		return
	}

	routePath := "dynamic"
	method := strings.ToUpper(verb)
	if verb == "route" {
		method = "GET"
	}
	for i, a := range args {
		if a.Type() == "keyword_argument" {
			if verb == "route" {
				if m, ok := w.pyMethodsKeyword(a); ok {
					method = m
				}
			}
			continue
		}
		if i == 0 {
			if lit, ok := w.pyString(a); ok {
				routePath = lit
			}
		}
	}
	w.fa.APIRoutes = append(w.fa.APIRoutes, models.Route{Method: method, Path: routePath})
}

// pyMethodsKeyword reads the first verb of methods=[...].
func (w *walker) pyMethodsKeyword(n *sitter.Node) (string, bool) {
	name := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	if name == nil || value == nil || w.text(name) != "methods" {
		return "", false
	}
	for _, el := range namedChildren(value) {
		if lit, ok := w.pyString(el); ok && lit != "" {
			return strings.ToUpper(lit), true
		}
	}
	return "", false
}

// pyString returns the value of a string literal without interpolation.
func (w *walker) pyString(n *sitter.Node) (string, bool) {
	if n.Type() != "string" {
		return "", false
	}
	for _, c := range namedChildren(n) {
		if c.Type() == "interpolation" {
			return "", false
		}
	}
	s := strings.TrimLeft(w.text(n), "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)], true
		}
	}
	return s, true
}
