// Package diag implements the compiler's diagnostic model: a closed set of
// error kinds, three severities, and an accumulator that lets each phase of
// the pipeline keep going after a bad node instead of aborting on the first
// mistake.
package diag

import (
	"errors"
	"fmt"
)

// Severity is one of the three diagnostic levels from the language spec.
type Severity int

const (
	Info Severity = iota
	Warning
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Fatal:
		return "error"
	default:
		return "unknown"
	}
}

// ErrorType is the closed enumeration of diagnostic kinds. Values are never
// renumbered once assigned; new kinds are appended.
type ErrorType int

const (
	IllegalSyntax ErrorType = iota
	IllegalOperator
	UnexpectedToken
	UnexpectedEOF
	UnexpectedCharacter
	UnterminatedString
	UnrecognizedEscape
	RedeclaredIdentifier
	UndeclaredIdentifier
	ExpectedIdentifier
	ExpectedToken
	ExpectedModule
	ModuleAlreadyDefined
	ModuleNotImported
	ImportCurrentFile
	ImportNotFound
	SelfOutsideClass
	ElseOutsideIf
	AliasMissingAssignment
	ConstIdentifierModified
	ProhibitedActionOnAttribute
	InvalidNumberOfArguments
	InvalidType
	ConversionFailure
	BadInvoke
	NullReference
	MemberNotFound
	UnsupportedFeature
	InternalError

	// Warnings.
	UnreachableCode
	MissingSemicolon

	// Info.
	MissingFinalReturn
	UnusedIdentifier
	EmptyFunctionBody
	EmptyStatementBody
	NamingConvention
	NonCanonicalImportPath
)

var names = map[ErrorType]string{
	IllegalSyntax:               "illegal syntax",
	IllegalOperator:             "illegal operator",
	UnexpectedToken:             "unexpected token",
	UnexpectedEOF:               "unexpected end of file",
	UnexpectedCharacter:         "unexpected character",
	UnterminatedString:          "unterminated string",
	UnrecognizedEscape:          "unrecognized escape sequence",
	RedeclaredIdentifier:        "redeclared identifier",
	UndeclaredIdentifier:        "undeclared identifier",
	ExpectedIdentifier:          "expected identifier",
	ExpectedToken:               "expected token",
	ExpectedModule:              "expected module declaration",
	ModuleAlreadyDefined:        "module already defined",
	ModuleNotImported:           "module not imported",
	ImportCurrentFile:           "cannot import the current file",
	ImportNotFound:              "import not found",
	SelfOutsideClass:            "'self' used outside a class",
	ElseOutsideIf:               "'else' without matching 'if'",
	AliasMissingAssignment:      "alias missing assignment",
	ConstIdentifierModified:     "const identifier modified",
	ProhibitedActionOnAttribute: "prohibited action on attribute",
	InvalidNumberOfArguments:    "invalid number of arguments",
	InvalidType:                 "invalid type",
	ConversionFailure:           "conversion failure",
	BadInvoke:                   "bad invoke",
	NullReference:               "null reference",
	MemberNotFound:              "member not found",
	UnsupportedFeature:          "unsupported feature",
	InternalError:               "internal error",
	UnreachableCode:             "unreachable code",
	MissingSemicolon:            "missing semicolon",
	MissingFinalReturn:          "missing final return",
	UnusedIdentifier:            "unused identifier",
	EmptyFunctionBody:           "empty function body",
	EmptyStatementBody:          "empty statement body",
	NamingConvention:            "naming convention",
	NonCanonicalImportPath:      "import path is not a canonical module path",
}

func (e ErrorType) String() string {
	if s, ok := names[e]; ok {
		return s
	}
	return "unknown diagnostic"
}

// Location is the position of a diagnostic. Line and Column are stored
// 0-based, as the lexer/parser track them; Location.String renders the
// 1-based form callers expect to see.
type Location struct {
	File   string
	Line   int // 0-based
	Column int // 0-based
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line+1, l.Column+1)
}

// Diagnostic is a single compiler message. It implements error so it can
// flow through standard Go error handling, mirroring the teacher's _error
// wrapper (a plain struct carrying a lazily-formatted message).
type Diagnostic struct {
	Kind     ErrorType
	Severity Severity
	Loc      Location
	Detail   string
}

func (d *Diagnostic) Error() string {
	if d.Detail == "" {
		return fmt.Sprintf("%s: %s: %s", d.Loc, d.Severity, d.Kind)
	}
	return fmt.Sprintf("%s: %s: %s: %s", d.Loc, d.Severity, d.Kind, d.Detail)
}

// Bag accumulates diagnostics across a compiler phase without aborting on
// the first one. Phases keep walking so that later, independent errors
// remain discoverable in a single pass.
type Bag struct {
	items []*Diagnostic
}

func (b *Bag) Add(kind ErrorType, sev Severity, loc Location, detail string) *Diagnostic {
	d := &Diagnostic{Kind: kind, Severity: sev, Loc: loc, Detail: detail}
	b.items = append(b.items, d)
	return d
}

func (b *Bag) Fatalf(loc Location, kind ErrorType, format string, args ...interface{}) *Diagnostic {
	return b.Add(kind, Fatal, loc, fmt.Sprintf(format, args...))
}

func (b *Bag) Warnf(loc Location, kind ErrorType, format string, args ...interface{}) *Diagnostic {
	return b.Add(kind, Warning, loc, fmt.Sprintf(format, args...))
}

func (b *Bag) Infof(loc Location, kind ErrorType, format string, args ...interface{}) *Diagnostic {
	return b.Add(kind, Info, loc, fmt.Sprintf(format, args...))
}

// All returns every accumulated diagnostic in emission order.
func (b *Bag) All() []*Diagnostic { return b.items }

// HasFatal reports whether any accumulated diagnostic is at Fatal severity.
// The code generator refuses to run when this is true.
func (b *Bag) HasFatal() bool {
	for _, d := range b.items {
		if d.Severity == Fatal {
			return true
		}
	}
	return false
}

// Err joins every diagnostic into a single error, or nil if the bag is
// empty. Non-fatal diagnostics are included too, so callers that want only
// the blocking errors should filter on HasFatal first.
func (b *Bag) Err() error {
	if len(b.items) == 0 {
		return nil
	}
	errs := make([]error, len(b.items))
	for i, d := range b.items {
		errs[i] = d
	}
	return errors.Join(errs...)
}
