// Package codegen implements the second AST walk described in spec.md
// §4.5: it turns an analyzed module into a bytecode.Stream, threading
// module-name mangling (package sema) and constant folding through the
// same rules the analyzer already applied.
package codegen

import (
	"github.com/axlang/ax/internal/ast"
	"github.com/axlang/ax/internal/bytecode"
	"github.com/axlang/ax/internal/diag"
	"github.com/axlang/ax/internal/sema"
)

// Generator walks one entry module (plus every module it transitively
// imports) and emits a single linear instruction stream. Imports are
// inlined exactly once per resolved path, matching spec.md §4.5's Import
// rule and the Import-idempotence property in §8.
type Generator struct {
	Diags diag.Bag

	stream  *bytecode.Stream
	stack   *sema.Stack
	modules map[string]*ast.Node // resolved path -> analyzed module AST
	inlined map[string]bool

	// knownFunctions resolves a forward reference the single-pass analyzer
	// couldn't (a call to a function declared later in the same module):
	// every module-level (and flattened class-member) FunctionDefinition is
	// registered here, keyed by its mangled name, before any statement is
	// generated.
	knownFunctions map[string]*ast.Node
}

// New constructs a Generator. modules is the analyzer's full resolved-path
// table (sema.Analyzer.ResolvedModules), used to inline imports.
func New(modules map[string]*ast.Node) *Generator {
	return &Generator{
		stream:         &bytecode.Stream{},
		stack:          sema.NewStack(),
		modules:        modules,
		inlined:        map[string]bool{},
		knownFunctions: map[string]*ast.Node{},
	}
}

// Generate compiles mod (already analyzed, resolved at path) into a
// bytecode.Stream. The caller must have checked Diags.HasFatal() is false
// on the analyzer before calling this (spec.md §7: "the code generator
// refuses to run if any fatal diagnostic exists").
func Generate(mod *ast.Node, path string, modules map[string]*ast.Node) *bytecode.Stream {
	g := New(modules)
	g.inlined[path] = true
	g.collectFunctions(mod)
	for resolved, sub := range modules {
		if resolved != path {
			g.collectFunctions(sub)
		}
	}
	g.genModuleBody(mod, path)
	return g.stream
}

// collectFunctions pre-registers every module-level FunctionDefinition (by
// mangled name) so forward references resolve regardless of declaration
// order within a module.
func (g *Generator) collectFunctions(mod *ast.Node) {
	for _, child := range mod.Children {
		if child.Kind == ast.KindFunctionDefinition {
			g.knownFunctions[sema.Mangle(mod.Name, child.Name)] = child
		}
	}
}

func (g *Generator) genModuleBody(mod *ast.Node, path string) {
	for _, child := range mod.Children {
		g.genTop(mod, path, child)
	}
}

func (g *Generator) genTop(mod *ast.Node, path string, n *ast.Node) {
	if n.Kind == ast.KindImports {
		for _, imp := range n.Children {
			g.genImport(imp)
		}
		return
	}
	g.genStatement(mod, n)
}

// genImport inlines an imported module's top level exactly once per
// resolved path (spec.md §4.5 "Import" rule / §8 import idempotence).
func (g *Generator) genImport(imp *ast.Node) {
	resolved := imp.RelativePath
	if resolved == "" || g.inlined[resolved] {
		return
	}
	g.inlined[resolved] = true
	subMod := g.modules[resolved]
	if subMod == nil {
		return
	}
	g.genModuleBody(subMod, resolved)
}

// openScope emits `ifl` and pushes a bookkeeping level of the same type the
// analyzer pushed at the equivalent point, so Return's `drl N` depth count
// mirrors sema.Stack.DepthToEnclosingFunction exactly.
func (g *Generator) openScope(t sema.LevelType) {
	g.stream.Emit(bytecode.OpIfl)
	g.stack.Push(t)
}

func (g *Generator) closeScope() {
	g.stack.Pop()
	g.stream.Emit(bytecode.OpDfl)
}

func (g *Generator) genStatement(mod *ast.Node, n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.KindBlock:
		g.genBlock(mod, n)
	case ast.KindVariableDeclaration:
		g.genVarDecl(mod, n)
	case ast.KindAlias, ast.KindUseModule, ast.KindEnum:
		// Aliases carry no independent storage and enum members are
		// const-literal symbols already inlined at every use site
		// (spec.md §4.5 "Enum"); neither materializes an instruction.
	case ast.KindClass:
		// Members were hoisted to the module's top level by the analyzer
		// (sema.Analyzer.analyzeClass); the Class node itself is inert.
	case ast.KindFunctionDefinition:
		g.genFunctionDefinition(mod, n)
	case ast.KindIf:
		g.genIf(mod, n)
	case ast.KindReturn:
		g.genReturn(mod, n)
	case ast.KindForLoop:
		g.genFor(mod, n)
	case ast.KindWhileLoop:
		g.genWhile(mod, n)
	case ast.KindTryCatch:
		g.genTryCatch(mod, n)
	case ast.KindPrint:
		g.genPrint(mod, n)
	case ast.KindExpression:
		g.genExpr(mod, n.Child)
		if n.ShouldClearStack {
			g.stream.Emit(bytecode.OpPop)
		}
	case ast.KindStatement:
		// empty/grouping statement
	}
}

func (g *Generator) genBlockBody(mod *ast.Node, block *ast.Node) {
	if block == nil {
		return
	}
	for _, stmt := range block.Children {
		g.genStatement(mod, stmt)
	}
}

// genBlock handles a bare `{ ... }` statement, which owns its own scope
// (sema.Analyzer.analyzeBlock pushes exactly one LevelDefault for it).
func (g *Generator) genBlock(mod *ast.Node, n *ast.Node) {
	g.openScope(sema.LevelDefault)
	g.genBlockBody(mod, n)
	g.closeScope()
}

// isFoldedLiteral reports whether n is a literal node left behind by
// sema.Optimize's constant folding.
func isFoldedLiteral(n *ast.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case ast.KindInteger, ast.KindFloat, ast.KindString:
		return true
	}
	return false
}

// genVarDecl implements spec.md §4.5's VariableDeclaration rule: accept
// the assignment, then store. A const declaration whose (already-folded)
// RHS is a literal is dropped entirely — the analyzer inlined every read
// of it at its use sites (sema.Analyzer.analyzeVariable's
// `IsConst && IsLiteral` branch), so by the time codegen sees this node no
// Variable reference to it survives in the tree, and emitting the
// now-dead store would be pure waste.
func (g *Generator) genVarDecl(mod *ast.Node, n *ast.Node) {
	if n.IsConst && isFoldedLiteral(n.Assignment) {
		return
	}
	mangled := sema.Mangle(mod.Name, n.Name)
	if n.Assignment != nil {
		g.genExpr(mod, n.Assignment)
	} else {
		g.stream.Emit(bytecode.OpLoadNull)
	}
	g.stream.Emit(bytecode.OpStoreAsLocal, bytecode.Str(mangled))
}

// genIf implements spec.md §4.5's If rule. jump_if_false/jump_if_true peek
// the tested value without popping it (see DESIGN.md): the single trailing
// `pop` after every branch discards the one conditional value that was
// pushed, however many times it was tested.
func (g *Generator) genIf(mod *ast.Node, n *ast.Node) {
	g.genIfChain(mod, n)
	g.stream.Emit(bytecode.OpPop)
}

// genIfChain emits one link of an if/else-if/else chain without the final
// pop — every link re-peeks the same one conditional value that genIf's
// caller is responsible for discarding exactly once, however deep the
// else-if chain runs.
func (g *Generator) genIfChain(mod *ast.Node, n *ast.Node) {
	g.genExpr(mod, n.Conditional)
	afterIf := g.stream.NewLabel()
	g.stream.Emit(bytecode.OpJumpIfFalse, bytecode.U32(afterIf))

	g.openScope(sema.LevelCondition)
	g.genBlockBody(mod, n.Then)
	g.closeScope()

	if n.Else != nil {
		afterElse := g.stream.NewLabel()
		g.stream.Emit(bytecode.OpJumpIfTrue, bytecode.U32(afterElse))
		g.stream.PlaceLabel(afterIf)
		if n.Else.Kind == ast.KindIf {
			g.genIfChain(mod, n.Else)
		} else {
			g.openScope(sema.LevelCondition)
			g.genBlockBody(mod, n.Else)
			g.closeScope()
		}
		g.stream.PlaceLabel(afterElse)
	} else {
		g.stream.PlaceLabel(afterIf)
	}
}

// genReturn implements spec.md §4.5's Return rule: accept the value, then
// `drl N` where N is the lexical depth back out to the enclosing function,
// then the actual `return`.
func (g *Generator) genReturn(mod *ast.Node, n *ast.Node) {
	if n.Value != nil {
		g.genExpr(mod, n.Value)
	} else {
		g.stream.Emit(bytecode.OpLoadNull)
	}
	depth := g.stack.DepthToEnclosingFunction()
	g.stream.Emit(bytecode.OpDrl, bytecode.U8(uint8(depth)))
	g.stream.Emit(bytecode.OpReturn)
}

// genWhile implements spec.md §4.5's While rule. The extra `pop` before
// `jump <top>` (present explicitly in the spec's more detailed For rule,
// and applied here by the same reasoning — see DESIGN.md) discards this
// iteration's peeked conditional value before the next one is pushed.
func (g *Generator) genWhile(mod *ast.Node, n *ast.Node) {
	top := g.stream.NewLabel()
	bottom := g.stream.NewLabel()
	g.stream.PlaceLabel(top)
	g.genExpr(mod, n.Conditional)
	g.stream.Emit(bytecode.OpJumpIfFalse, bytecode.U32(bottom))

	g.openScope(sema.LevelLoop)
	g.genBlockBody(mod, n.Block)
	g.closeScope()

	g.stream.Emit(bytecode.OpPop)
	g.stream.Emit(bytecode.OpJump, bytecode.U32(top))
	g.stream.PlaceLabel(bottom)
	g.stream.Emit(bytecode.OpPop)
}

// genFor implements spec.md §4.5's For rule verbatim, including both
// explicit pops before the backward jump and the final pop at <bottom>.
func (g *Generator) genFor(mod *ast.Node, n *ast.Node) {
	g.openScope(sema.LevelDefault)
	if n.Initializer != nil {
		g.genStatement(mod, n.Initializer)
	}

	top := g.stream.NewLabel()
	bottom := g.stream.NewLabel()
	g.stream.PlaceLabel(top)
	if n.Conditional != nil {
		g.genExpr(mod, n.Conditional)
	} else {
		g.stream.Emit(bytecode.OpLoadInteger, bytecode.I64(1))
	}
	g.stream.Emit(bytecode.OpJumpIfFalse, bytecode.U32(bottom))

	g.openScope(sema.LevelLoop)
	g.genBlockBody(mod, n.Block)
	g.closeScope()

	if n.Afterthought != nil {
		g.genExpr(mod, n.Afterthought)
	} else {
		g.stream.Emit(bytecode.OpLoadNull)
	}
	g.stream.Emit(bytecode.OpPop) // afterthought
	g.stream.Emit(bytecode.OpPop) // conditional
	g.stream.Emit(bytecode.OpJump, bytecode.U32(top))
	g.stream.PlaceLabel(bottom)
	g.stream.Emit(bytecode.OpPop) // conditional, false-branch path
	g.closeScope()
}

// genTryCatch has no listed §4.5 rule (spec.md §9's Open Questions mark
// the exact read_level accounting around try_catch_block as "not to be
// guessed"). This generates the simplest structure consistent with the
// opcode table (§4.8): try_catch_block's operand marks the catch body, the
// try body falls through to a jump past it on the no-exception path.
func (g *Generator) genTryCatch(mod *ast.Node, n *ast.Node) {
	catchLabel := g.stream.NewLabel()
	endLabel := g.stream.NewLabel()

	g.stream.Emit(bytecode.OpTryCatchBlock, bytecode.U32(catchLabel))
	g.genBlock(mod, n.TryBlock)
	g.stream.Emit(bytecode.OpJump, bytecode.U32(endLabel))

	g.stream.PlaceLabel(catchLabel)
	g.openScope(sema.LevelDefault)
	excMangled := sema.Mangle(mod.Name, n.ExceptionIdent)
	g.stream.Emit(bytecode.OpLoadNull)
	g.stream.Emit(bytecode.OpStoreAsLocal, bytecode.Str(excMangled))
	g.genBlockBody(mod, n.CatchBlock)
	g.closeScope()
	g.stream.PlaceLabel(endLabel)
}

// genPrint implements spec.md §4.5's Print rule: arguments are pushed in
// reverse order so the VM's sequential LIFO pops recover them in
// left-to-right source order directly (pop #1 = arg0, pop #2 = arg1, ...).
func (g *Generator) genPrint(mod *ast.Node, n *ast.Node) {
	for i := len(n.PrintArgs) - 1; i >= 0; i-- {
		g.genExpr(mod, n.PrintArgs[i])
	}
	g.stream.Emit(bytecode.OpPrint, bytecode.U32(uint32(len(n.PrintArgs))))
}

// genFunctionDefinition implements spec.md §4.5's non-inline
// FunctionDefinition rule. Inline functions (n.IsInline) are never
// materialized (glossary: "declaration is never materialized"); their
// body is spliced at each call site instead (genFunctionCall).
func (g *Generator) genFunctionDefinition(mod *ast.Node, n *ast.Node) {
	if n.IsInline || n.IsNative {
		return
	}
	mangled := sema.Mangle(mod.Name, n.Name)
	bodyLabel := g.stream.NewLabel()
	afterBody := g.stream.NewLabel()

	// The new_function u64 operand carries the body's label id rather
	// than a raw stream offset (DESIGN.md): the whole label prologue is
	// read by the VM before any instruction executes, so resolving
	// label-id -> offset via the block-position table at call time is
	// exactly as valid as a precomputed address, and it sidesteps needing
	// a back-patching pass here.
	variadic := uint8(0)
	if n.IsVariadic {
		variadic = 1
	}
	g.stream.Emit(bytecode.OpNewFunction,
		bytecode.U8(1), // is_global
		bytecode.U32(uint32(len(n.Arguments))),
		bytecode.U8(variadic),
		bytecode.U64(uint64(bodyLabel)),
	)
	g.stream.Emit(bytecode.OpStoreAsLocal, bytecode.Str(mangled))
	g.stream.Emit(bytecode.OpJump, bytecode.U32(afterBody))

	g.stream.PlaceLabel(bodyLabel)
	g.openScope(sema.LevelFunction)
	for i := len(n.Arguments) - 1; i >= 0; i-- {
		argMangled := sema.Mangle(mod.Name, n.Arguments[i])
		g.stream.Emit(bytecode.OpStoreAsLocal, bytecode.Str(argMangled))
	}
	g.genBlockBody(mod, n.Block)
	g.closeScope()
	g.stream.Emit(bytecode.OpReturn)
	g.stream.PlaceLabel(afterBody)
}
