// Package ast defines the tagged-variant AST node used across the
// parser, analyzer, and code generator, mirroring the teacher's single
// `node` struct with a `kind` discriminator rather than one Go type per
// grammar production — it keeps Walk, back-pointers, and location
// plumbing uniform across every variant.
package ast

import "github.com/axlang/ax/internal/diag"

// Kind discriminates the AST node variants of the language's data model.
type Kind int

const (
	KindModule Kind = iota
	KindImports
	KindImport
	KindBlock
	KindStatement
	KindExpression
	KindBinaryOp
	KindUnaryOp
	KindArrayAccess
	KindMemberAccess
	KindModuleAccess
	KindVariableDeclaration
	KindAlias
	KindUseModule
	KindVariable
	KindInteger
	KindFloat
	KindString
	KindTrue
	KindFalse
	KindNull
	KindSelf
	KindNew
	KindFunctionDefinition
	KindFunctionExpression
	KindFunctionCall
	KindClass
	KindEnum
	KindIf
	KindPrint
	KindReturn
	KindForLoop
	KindWhileLoop
	KindTryCatch
)

func (k Kind) String() string {
	names := [...]string{
		"Module", "Imports", "Import", "Block", "Statement", "Expression",
		"BinaryOp", "UnaryOp", "ArrayAccess", "MemberAccess", "ModuleAccess",
		"VariableDeclaration", "Alias", "UseModule", "Variable", "Integer",
		"Float", "String", "True", "False", "Null", "Self", "New",
		"FunctionDefinition", "FunctionExpression", "FunctionCall", "Class",
		"Enum", "If", "Print", "Return", "ForLoop", "WhileLoop", "TryCatch",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// EnumMember is a single `name = value` pair inside an Enum node.
type EnumMember struct {
	Name  string
	Value int64
}

// ClassMember is a single declaration inside a Class node's body. Modifiers
// are recovered from original_source (SPEC_FULL.md §4.12) and are parsed
// but not currently enforced.
type ClassMember struct {
	Node      *Node
	IsStatic  bool
	Modifier  string // "pub" | "priv" | "protect" | ""
}

// Symbol is attached to Variable and FunctionCall nodes by the analyzer.
// It is defined here (rather than in package sema) so AST nodes can hold a
// direct back-pointer without an import cycle; sema owns construction.
type Symbol struct {
	NodeRef      *Node
	OriginalName string
	MangledName  string
	IsAlias      bool
	AliasToName  string
	IsConst      bool
	IsLiteral    bool
	CurrentValue *Node // literal RHS recorded for constant folding / inlining
	IsNative     bool
	NArgs        int
	Uses         int
}

// Node is the single tagged AST node type. Not every field is meaningful
// for every Kind; see the comments grouped by Kind below, matching the
// field table in the language's data model.
type Node struct {
	Kind   Kind
	Loc    diag.Location
	Module *Node // back-pointer to the containing Module node

	// Module
	Name     string
	Children []*Node

	// Import
	ImportStr      string
	RelativePath   string
	IsModuleImport bool

	// Expression
	Child             *Node
	ShouldClearStack  bool

	// BinaryOp / UnaryOp
	Left    *Node
	Right   *Node
	BinOp   int // token.BinaryOp
	UnOp    int // token.UnaryOp

	// ArrayAccess
	Object *Node
	Index  *Node

	// MemberAccess
	LeftStr string

	// ModuleAccess
	ModuleName string

	// VariableDeclaration
	Assignment *Node
	IsConst    bool

	// Alias
	AliasTo string

	// Variable (analyzer-filled)
	IsAlias      bool
	AliasToName  string
	IsVarConst   bool
	IsLiteral    bool
	CurrentValue *Node
	SymbolRef    *Symbol

	// Integer / Float / String literal value
	IntValue    int64
	FloatValue  float64
	StringValue string

	// New
	Identifier  string
	Constructor *Node

	// FunctionDefinition / FunctionExpression
	Arguments  []string
	Block      *Node
	IsNative   bool
	IsVariadic bool
	Attributes []string
	IsInline   bool

	// FunctionCall (analyzer-filled: IsAlias/AliasToName/Definition)
	CallArgs   []*Node
	Definition *Node

	// Class
	Members  []ClassMember
	IsStruct bool

	// Enum
	EnumMembers []EnumMember

	// If
	Conditional *Node
	Then        *Node
	Else        *Node

	// Print
	PrintArgs []*Node

	// Return
	Value *Node

	// ForLoop
	Initializer *Node
	Afterthought *Node

	// TryCatch
	TryBlock       *Node
	CatchBlock     *Node
	ExceptionIdent string
}

// Walk traverses the AST rooted at n in depth-first order, calling in at
// node entry (stopping descent into n's subtree if in returns false) and
// out at node exit. This mirrors the teacher's node.Walk exactly.
func (n *Node) Walk(in func(*Node) bool, out func(*Node)) {
	if n == nil {
		return
	}
	if in != nil && !in(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(in, out)
	}
	for _, c := range childSlots(n) {
		c.Walk(in, out)
	}
	if out != nil {
		out(n)
	}
}

// childSlots returns every single-child pointer field relevant to n's Kind,
// so Walk can reach them without the caller needing to know the node shape.
func childSlots(n *Node) []*Node {
	var out []*Node
	add := func(c *Node) {
		if c != nil {
			out = append(out, c)
		}
	}
	add(n.Child)
	add(n.Left)
	add(n.Right)
	add(n.Object)
	add(n.Index)
	add(n.Assignment)
	add(n.CurrentValue)
	add(n.Constructor)
	add(n.Block)
	add(n.Definition)
	add(n.Conditional)
	add(n.Then)
	add(n.Else)
	add(n.Value)
	add(n.Initializer)
	add(n.Afterthought)
	add(n.TryBlock)
	add(n.CatchBlock)
	for _, a := range n.PrintArgs {
		add(a)
	}
	for _, a := range n.CallArgs {
		add(a)
	}
	for _, m := range n.Members {
		add(m.Node)
	}
	return out
}

// New constructs a Node of the given kind at loc, with the containing
// module back-pointer set to mod (nil while parsing the module header
// itself).
func New(kind Kind, loc diag.Location, mod *Node) *Node {
	return &Node{Kind: kind, Loc: loc, Module: mod}
}
