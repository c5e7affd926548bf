package snippet

import (
	"fmt"
	"strings"
	"testing"
)

func TestLinePriority(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"", PriorityTrivial},
		{"   ", PriorityTrivial},
		{"// a comment", PriorityTrivial},
		{"# a comment", PriorityTrivial},
		{"import React from 'react'", PriorityDeclaration},
		{"export default function App() {", PriorityDeclaration},
		{"class User(Base):", PriorityDeclaration},
		{"def login(request):", PriorityDeclaration},
		{"async def fetch():", PriorityDeclaration},
		{"const handler = async (req, res) => {", PriorityDeclaration},
		{"app.listen(3000)", PriorityDeclaration},
		{"  router.use(auth)", PriorityDeclaration},
		{"  api.post('/users', create)", PriorityRoute},
		{"@bp.route('/login')", PriorityRoute},
		{"const UserSchema = new mongoose.Schema({", PriorityRoute},
		{"    email = db.Column(db.String(120))", PriorityRoute},
		{"  if (user) {", PriorityControl},
		{"  } else {", PriorityControl},
		{"    return res.json(user)", PriorityControl},
		{"  await save()", PriorityControl},
		{"const port = process.env.PORT || 3000", PriorityVariable},
		{"module.exports = router", PriorityVariable},
		{"DEBUG = True", PriorityVariable},
		{"  console.log(x)", PriorityOther},
		{"  foo: 1,", PriorityOther},
	}
	for _, tt := range tests {
		if got := LinePriority(tt.line); got != tt.want {
			t.Errorf("LinePriority(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestExtract_ShortInputUnchanged(t *testing.T) {
	for _, n := range []int{0, 1, 10, 300} {
		lines := make([]string, n)
		for i := range lines {
			lines[i] = fmt.Sprintf("  x%d()", i)
		}
		text := strings.Join(lines, "\n")
		if got := Extract(text, "app.js", 300); got != text {
			t.Errorf("n=%d: expected input unchanged", n)
		}
	}
}

func TestExtract_TrailingNewlineAtBoundary(t *testing.T) {
	lines := make([]string, 300)
	for i := range lines {
		lines[i] = fmt.Sprintf("  x%d()", i)
	}
	text := strings.Join(lines, "\n") + "\n"
	if got := Extract(text, "app.js", 300); got != text {
		t.Errorf("newline-terminated file of exactly maxLines lines changed: len in=%d out=%d", len(text), len(got))
	}

	over := text + "  y()\n"
	out := strings.Split(Extract(over, "app.js", 300), "\n")
	if len(out) != 300 {
		t.Errorf("expected 300 lines for 301-line input, got %d", len(out))
	}
}

func TestExtract_LongInputPreservesOrder(t *testing.T) {
	var lines []string
	for i := 0; i < 1000; i++ {
		switch i % 4 {
		case 0:
			lines = append(lines, fmt.Sprintf("function f%d() {", i))
		case 1:
			lines = append(lines, fmt.Sprintf("  if (x%d) {", i))
		case 2:
			lines = append(lines, "")
		default:
			lines = append(lines, fmt.Sprintf("  call%d()", i))
		}
	}
	text := strings.Join(lines, "\n")

	out := strings.Split(Extract(text, "app.js", 300), "\n")
	if len(out) != 300 {
		t.Fatalf("expected 300 lines, got %d", len(out))
	}

	// 250 declarations plus the first 50 control lines, in source order.
	index := make(map[string]int, len(lines))
	for i, l := range lines {
		index[l] = i
	}
	last := -1
	decls := 0
	for _, l := range out {
		i, ok := index[l]
		if !ok {
			t.Fatalf("line %q not in input", l)
		}
		if i <= last {
			t.Fatalf("line order not preserved: %d after %d", i, last)
		}
		last = i
		if strings.HasPrefix(l, "function") {
			decls++
		}
	}
	if decls != 250 {
		t.Errorf("expected all 250 declarations kept, got %d", decls)
	}
}

func TestExtract_ConfigHead(t *testing.T) {
	lines := make([]string, 400)
	for i := range lines {
		lines[i] = fmt.Sprintf("line%d", i)
	}
	out := strings.Split(Extract(strings.Join(lines, "\n"), "package.json", 300), "\n")
	if len(out) != 150 {
		t.Fatalf("expected 150 head lines, got %d", len(out))
	}
	if out[0] != "line0" || out[149] != "line149" {
		t.Errorf("unexpected head %q..%q", out[0], out[149])
	}
}
