package sema

import (
	"fmt"
	"testing"

	"github.com/axlang/ax/internal/ast"
	"github.com/axlang/ax/internal/diag"
	"github.com/axlang/ax/internal/lexer"
	"github.com/axlang/ax/internal/parser"
)

type noImportsLoader struct{}

func (noImportsLoader) Load(resolvedPath string) ([]byte, error) {
	return nil, fmt.Errorf("no imports in this test: %s", resolvedPath)
}

func parseForTest(t *testing.T, src string) *ast.Node {
	t.Helper()
	toks := lexer.New([]byte(src), "test.ax").Tokenize()
	mod := parser.New(toks).Parse()
	return mod
}

func parseFunc(src []byte, file string) (*ast.Node, []*diag.Diagnostic) {
	toks := lexer.New(src, file).Tokenize()
	p := parser.New(toks)
	mod := p.Parse()
	return mod, p.Diags.All()
}

// TestEnumMemberAccessResolvesWithoutDeclaringBareEnumName is a regression
// test for EnumName.Member access: the grammar never gives `EnumName` alone
// a declaration (only the mangled `EnumName_Member` constant exists), so
// analyzeExpr's KindMemberAccess case must special-case enum lookups before
// falling through to ordinary variable resolution.
func TestEnumMemberAccessResolvesWithoutDeclaringBareEnumName(t *testing.T) {
	src := `module enum_values

enum Color {
	Red,
	Green = 10,
	Blue
}

print(Color.Red, Color.Green, Color.Blue);
`
	mod := parseForTest(t, src)

	a := New(noImportsLoader{}, parseFunc)
	a.AnalyzeModule(mod, "test.ax")

	for _, d := range a.Diags.All() {
		if d.Severity == diag.Fatal {
			t.Fatalf("unexpected fatal diagnostic: %v", d)
		}
	}

	var print *ast.Node
	mod.Walk(func(n *ast.Node) bool {
		if n.Kind == ast.KindPrint {
			print = n
		}
		return true
	}, func(*ast.Node) {})
	if print == nil {
		t.Fatalf("no print statement found in analyzed module")
	}
	wantValues := []int64{0, 10, 11}
	if len(print.PrintArgs) != len(wantValues) {
		t.Fatalf("print has %d args, want %d", len(print.PrintArgs), len(wantValues))
	}
	for i, arg := range print.PrintArgs {
		if arg.Kind != ast.KindInteger {
			t.Errorf("arg %d: kind = %v, want folded Integer literal (enum access left unresolved)", i, arg.Kind)
			continue
		}
		if arg.IntValue != wantValues[i] {
			t.Errorf("arg %d = %d, want %d", i, arg.IntValue, wantValues[i])
		}
	}
}
