package analyzer

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/seanblong/readmegen/pkg/models"
)

var rubyRouteMethods = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true, "delete": true,
}

func (w *walker) visitRuby(n *sitter.Node) {
	switch n.Type() {
	case "call", "method_call":
		w.rbCall(n)
	case "method", "singleton_method":
		if !rbInClass(n) {
			w.rbFunction(n)
		}
	case "class":
		w.rbClass(n)
	}
	for _, c := range namedChildren(n) {
		w.visit(c)
	}
}

func rbInClass(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == "class" {
			return true
		}
	}
	return false
}

// rbCall records receiver-less require and Sinatra-style route calls.
func (w *walker) rbCall(n *sitter.Node) {
	if n.ChildByFieldName("receiver") != nil {
		return
	}
	method := n.ChildByFieldName("method")
	argsNode := n.ChildByFieldName("arguments")
	if method == nil || argsNode == nil || method.Type() != "identifier" {
		return
	}
	args := namedChildren(argsNode)
	if len(args) == 0 {
		return
	}

	name := w.text(method)
	switch {
	case name == "require" || name == "require_relative":
		if lit, ok := w.rbString(args[0]); ok {
			w.fa.Imports = append(w.fa.Imports, models.Import{Source: lit})
		}
	case rubyRouteMethods[name]:
		routePath, ok := w.rbString(args[0])
		if !ok {
			routePath = "dynamic"
		}
		w.fa.APIRoutes = append(w.fa.APIRoutes, models.Route{Method: strings.ToUpper(name), Path: routePath})
	}
}

func (w *walker) rbString(n *sitter.Node) (string, bool) {
	if n.Type() != "string" {
		return "", false
	}
	for _, c := range namedChildren(n) {
		if c.Type() == "interpolation" {
			return "", false
		}
	}
	return strings.Trim(w.text(n), `'"`), true
}

func (w *walker) rbFunction(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	f := models.Function{Name: w.text(name), Params: []string{}}
	if params := n.ChildByFieldName("parameters"); params != nil {
		for _, p := range namedChildren(params) {
			f.Params = append(f.Params, w.rbParam(p))
		}
	}
	w.fa.Functions = append(w.fa.Functions, f)
}

func (w *walker) rbParam(n *sitter.Node) string {
	name := n.ChildByFieldName("name")
	switch n.Type() {
	case "identifier":
		return w.text(n)
	case "optional_parameter", "keyword_parameter":
		if name != nil {
			return w.text(name)
		}
	case "splat_parameter":
		if name != nil {
			return "*" + w.text(name)
		}
	case "hash_splat_parameter":
		if name != nil {
			return "**" + w.text(name)
		}
	case "block_parameter":
		if name != nil {
			return "&" + w.text(name)
		}
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(w.text(n), " "))
}

func (w *walker) rbClass(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	c := models.Class{Name: w.text(name), Methods: []string{}}
	members := namedChildren(n)
	for _, m := range members {
		if m.Type() == "body_statement" {
			members = append(members, namedChildren(m)...)
		}
	}
	for _, m := range members {
		if m.Type() != "method" && m.Type() != "singleton_method" {
			continue
		}
		if mn := m.ChildByFieldName("name"); mn != nil {
			addMethod(&c, w.text(mn))
		}
	}
	w.fa.Classes = append(w.fa.Classes, c)
}
