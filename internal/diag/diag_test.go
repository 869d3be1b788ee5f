package diag

import (
	"errors"
	"testing"
)

func TestBagErrNilWhenEmpty(t *testing.T) {
	var b Bag
	if err := b.Err(); err != nil {
		t.Errorf("Err() on empty bag = %v, want nil", err)
	}
}

func TestBagErrJoinsEveryDiagnostic(t *testing.T) {
	var b Bag
	loc := Location{File: "a.ax", Line: 0, Column: 0}
	first := b.Fatalf(loc, UndeclaredIdentifier, "undeclared %q", "x")
	second := b.Warnf(loc, UnreachableCode, "dead code")

	err := b.Err()
	if err == nil {
		t.Fatalf("Err() on a non-empty bag returned nil")
	}
	if !errors.Is(err, first) {
		t.Errorf("joined error does not wrap the first diagnostic")
	}
	if !errors.Is(err, second) {
		t.Errorf("joined error does not wrap the second diagnostic")
	}
}
