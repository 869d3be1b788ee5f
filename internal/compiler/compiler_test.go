package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/axlang/ax/internal/diag"
	"github.com/axlang/ax/internal/fixtures"
)

// TestScenarios drives every spec.md §8 canonical scenario end to end:
// source -> lex -> parse -> analyze -> codegen -> emit -> VM, asserting
// the exact stdout each produces.
func TestScenarios(t *testing.T) {
	scenarios, err := fixtures.Load()
	if err != nil {
		t.Fatalf("loading fixtures: %v", err)
	}
	if len(scenarios) == 0 {
		t.Fatal("no fixtures loaded")
	}

	for _, sc := range scenarios {
		sc := sc
		t.Run(sc.Name, func(t *testing.T) {
			var stdout bytes.Buffer
			c := New(Options{Stdout: &stdout, Stdin: strings.NewReader("")})

			diags, err := c.RunSource([]byte(sc.Source), sc.Name+".ax")
			if err != nil {
				t.Fatalf("run error: %v (diags: %v)", err, diags)
			}
			for _, d := range diags {
				if d.Severity == diag.Fatal {
					t.Fatalf("unexpected fatal diagnostic: %v", d)
				}
			}
			if got := stdout.String(); got != sc.Output {
				t.Errorf("stdout = %q, want %q", got, sc.Output)
			}
		})
	}
}
