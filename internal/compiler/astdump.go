package compiler

import (
	"fmt"
	"io"

	"github.com/axlang/ax/internal/ast"
)

// dumpAST writes an indented textual tree of mod to w, the AX_AST_DOT
// toggle's effect (DESIGN.md: a plain indented dump rather than a real
// Graphviz ".dot" file, since nothing downstream renders one; the teacher's
// own YAEGI_AST_DOT writes an actual .dot graph via a dedicated renderer
// this port has no analogue for).
func dumpAST(w io.Writer, mod *ast.Node) {
	depth := 0
	mod.Walk(func(n *ast.Node) bool {
		label := n.Kind.String()
		if n.Name != "" {
			label += " " + n.Name
		}
		fmt.Fprintf(w, "%*s%s\n", depth*2, "", label)
		depth++
		return true
	}, func(*ast.Node) {
		depth--
	})
}
