// Package sema implements the semantic analyzer: scope/identifier rules,
// AST annotation, constant folding hooks, and recursive module loading.
package sema

import (
	"path/filepath"
	"strings"

	"golang.org/x/mod/module"
	"golang.org/x/sync/singleflight"

	"github.com/axlang/ax/internal/ast"
	"github.com/axlang/ax/internal/diag"
	"github.com/axlang/ax/internal/token"
)

// Loader reads the source text for an imported module path. The concrete
// implementation (file I/O) is an external collaborator; sema only needs
// the ability to turn a resolved path into bytes.
type Loader interface {
	Load(resolvedPath string) ([]byte, error)
}

// Parser is the minimal surface sema needs from package parser, broken out
// as an interface to avoid an import cycle (parser doesn't depend on sema,
// but the analyzer drives re-entrant parses of imported files).
type ParseFunc func(src []byte, file string) (*ast.Node, []*diag.Diagnostic)

// Analyzer walks one module's AST, populating a scope stack, resolving
// identifiers, and recursively loading imports.
type Analyzer struct {
	Diags diag.Bag

	loader Loader
	parse  ParseFunc

	stack *Stack

	// modules caches the analyzed AST of every module by resolved path, so
	// re-importing the same module along an equivalent path is a cache hit
	// (Import idempotence, spec.md §8).
	modules map[string]*ast.Node
	group   singleflight.Group

	// importedNames maps a module alias (the identifier scripts use before
	// the dot in ModuleAccess) to its resolved path, for the current
	// module being analyzed.
	importedNames map[string]string

	// visiting detects import cycles / self-import within a single,
	// synchronous analysis pass.
	visiting map[string]bool

	currentFunctionHasReturn bool

	// flattened collects Class function members, hoisted to look exactly
	// like top-level FunctionDefinitions once analysis of the owning
	// module finishes (SPEC_FULL.md: classes compile to plain functions
	// taking an explicit leading `self` parameter; there is no vtable).
	flattened []*ast.Node
}

// NativeModules names the runtime's intrinsic built-in modules (spec.md
// §6). Dot-access against one of these (e.g. `Console.println(...)`) is
// legal without an explicit `import` statement.
var NativeModules = map[string]bool{
	"Console":    true,
	"FileIO":     true,
	"Convert":    true,
	"Reflection": true,
	"Runtime":    true,
	"Clock":      true,
}

// New constructs an Analyzer. loader and parse are supplied by the
// compiler package that wires the pipeline together.
func New(loader Loader, parse ParseFunc) *Analyzer {
	a := &Analyzer{
		loader:        loader,
		parse:         parse,
		modules:       map[string]*ast.Node{},
		importedNames: map[string]string{},
		visiting:      map[string]bool{},
	}
	for name := range NativeModules {
		a.importedNames[name] = "<native>"
	}
	return a
}

// resolvePath cleans an import string into a canonical cache key so that
// `./a/../a/foo` and `./a/foo` collapse to the same entry.
func resolvePath(base, importStr string) string {
	cleaned := filepath.ToSlash(filepath.Clean(filepath.Join(filepath.Dir(base), importStr)))
	if !strings.HasSuffix(cleaned, ".ax") {
		cleaned += ".ax"
	}
	return cleaned
}

// AnalyzeModule is the entry point: walks mod's top-level children,
// populating mod.SymbolRef-bearing nodes in place. It returns nothing;
// callers learn whether any fatal diagnostic was recorded by checking
// a.Diags.HasFatal.
func (a *Analyzer) AnalyzeModule(mod *ast.Node, path string) {
	a.stack = NewStack()
	a.modules[path] = mod
	a.visiting[path] = true
	defer delete(a.visiting, path)

	a.checkModuleName(mod)

	for _, child := range mod.Children {
		a.analyzeTop(mod, path, child)
	}

	mod.Children = append(mod.Children, a.flattened...)
	a.flattened = nil
}

func (a *Analyzer) checkModuleName(mod *ast.Node) {
	if len(mod.Name) > 0 && mod.Name[0] >= 'a' && mod.Name[0] <= 'z' {
		a.Diags.Infof(mod.Loc, diag.NamingConvention, "module name %q should start uppercase by convention", mod.Name)
	}
}

func (a *Analyzer) analyzeTop(mod *ast.Node, path string, n *ast.Node) {
	if n.Kind == ast.KindImports {
		for _, imp := range n.Children {
			a.loadImport(mod, path, imp)
		}
		return
	}
	a.analyzeStatement(mod, n)
}

// loadImport resolves, loads, parses, and recursively analyzes an imported
// module exactly once per resolved path, using a singleflight.Group so a
// diamond import graph only pays the cost once even under re-entrant
// loading (SPEC_FULL.md §4.11).
func (a *Analyzer) loadImport(mod *ast.Node, path string, imp *ast.Node) {
	// ax import strings are loose file paths (possibly relative), not
	// Go-style module paths, so a golang.org/x/mod/module.CheckImportPath
	// failure is informational only and never blocks compilation — but it
	// is still surfaced, not silently discarded.
	if err := module.CheckImportPath(imp.ImportStr); err != nil {
		a.Diags.Infof(imp.Loc, diag.NonCanonicalImportPath, "import %q: %v", imp.ImportStr, err)
	}

	resolved := resolvePath(path, imp.ImportStr)
	imp.RelativePath = resolved

	if resolved == path || a.visiting[resolved] {
		a.Diags.Fatalf(imp.Loc, diag.ImportCurrentFile, "cannot import %q (the current file)", imp.ImportStr)
		return
	}
	if _, ok := a.modules[resolved]; ok {
		a.registerImportAlias(imp, resolved)
		return
	}

	_, err, _ := a.group.Do(resolved, func() (interface{}, error) {
		src, ferr := a.loader.Load(resolved)
		if ferr != nil {
			return nil, ferr
		}
		subMod, diags := a.parse(src, resolved)
		for _, d := range diags {
			a.Diags.Add(d.Kind, d.Severity, d.Loc, d.Detail)
		}
		sub := New(a.loader, a.parse)
		sub.modules = a.modules
		sub.modules[resolved] = subMod
		sub.visiting = a.visiting
		sub.AnalyzeModule(subMod, resolved)
		for _, d := range sub.Diags.All() {
			a.Diags.Add(d.Kind, d.Severity, d.Loc, d.Detail)
		}
		return subMod, nil
	})
	if err != nil {
		a.Diags.Fatalf(imp.Loc, diag.ImportNotFound, "import %q not found: %v", imp.ImportStr, err)
		return
	}
	a.registerImportAlias(imp, resolved)
}

func (a *Analyzer) registerImportAlias(imp *ast.Node, resolved string) {
	subMod := a.modules[resolved]
	if subMod == nil {
		return
	}
	a.importedNames[subMod.Name] = resolved
}

// ResolvedModules exposes every module analyzed so far, keyed by resolved
// path, so the code generator can inline each import's children exactly
// once.
func (a *Analyzer) ResolvedModules() map[string]*ast.Node { return a.modules }

func (a *Analyzer) analyzeBlock(mod *ast.Node, n *ast.Node) {
	a.stack.Push(LevelDefault)
	a.analyzeBlockBody(mod, n)
	a.stack.Pop()
}

func (a *Analyzer) analyzeBlockBody(mod *ast.Node, n *ast.Node) {
	sawReturn := false
	warnedUnreachable := false
	for _, stmt := range n.Children {
		if sawReturn && !warnedUnreachable {
			a.Diags.Warnf(stmt.Loc, diag.UnreachableCode, "unreachable code after return")
			warnedUnreachable = true
		}
		a.analyzeStatement(mod, stmt)
		if stmt.Kind == ast.KindReturn {
			sawReturn = true
		}
	}
}

func (a *Analyzer) analyzeStatement(mod *ast.Node, n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.KindBlock:
		a.analyzeBlock(mod, n)
	case ast.KindVariableDeclaration:
		a.analyzeVarDecl(mod, n)
	case ast.KindAlias:
		a.analyzeAlias(mod, n)
	case ast.KindClass:
		a.analyzeClass(mod, n)
	case ast.KindEnum:
		a.analyzeEnum(mod, n)
	case ast.KindFunctionDefinition:
		a.analyzeFunctionDefinition(mod, n)
	case ast.KindIf:
		a.analyzeIf(mod, n)
	case ast.KindReturn:
		a.analyzeReturn(mod, n)
	case ast.KindForLoop:
		a.analyzeFor(mod, n)
	case ast.KindWhileLoop:
		a.analyzeWhile(mod, n)
	case ast.KindTryCatch:
		a.analyzeTryCatch(mod, n)
	case ast.KindPrint:
		for i, arg := range n.PrintArgs {
			n.PrintArgs[i] = a.analyzeExpr(mod, arg)
		}
	case ast.KindExpression:
		n.Child = a.analyzeExpr(mod, n.Child)
	case ast.KindStatement:
		// empty/grouping statement
	}
}

func (a *Analyzer) analyzeVarDecl(mod *ast.Node, n *ast.Node) {
	mangled := Mangle(mod.Name, n.Name)
	if !a.stack.DeclareInCurrent(mangled, nil) {
		a.Diags.Fatalf(n.Loc, diag.RedeclaredIdentifier, "identifier %q already declared in this scope", n.Name)
		return
	}
	if _, isModule := a.importedNames[n.Name]; isModule {
		a.Diags.Fatalf(n.Loc, diag.RedeclaredIdentifier, "identifier %q collides with an imported module name", n.Name)
	}

	if n.Assignment != nil {
		n.Assignment = a.analyzeExpr(mod, n.Assignment)
	}

	sym := &ast.Symbol{
		NodeRef:      n,
		OriginalName: n.Name,
		MangledName:  mangled,
		IsConst:      n.IsConst,
	}
	folded := Optimize(n.Assignment)
	if isNumLit(folded) || isStrLit(folded) {
		sym.IsLiteral = true
		sym.CurrentValue = folded
		n.Assignment = folded
	}
	// Replace the symbol placeholder declared above with the real one,
	// keeping declaration order (append-only locals list, so we overwrite
	// in place via re-declare semantics: remove then push).
	a.redeclareWithSymbol(mangled, sym)

	if n.Name != "" && n.Name[0] >= 'A' && n.Name[0] <= 'Z' {
		a.Diags.Infof(n.Loc, diag.NamingConvention, "variable %q should start lowercase by convention", n.Name)
	}
}

// redeclareWithSymbol swaps the nil placeholder symbol registered by
// DeclareInCurrent's pre-check with the fully built Symbol. Kept as a
// separate step so analyzeVarDecl can evaluate the RHS (which may
// reference the not-yet-fully-built symbol's siblings) before committing.
func (a *Analyzer) redeclareWithSymbol(mangled string, sym *ast.Symbol) {
	top := a.stack.Top()
	for i := len(top.locals) - 1; i >= 0; i-- {
		if top.locals[i].mangled == mangled {
			top.locals[i].sym = sym
			return
		}
	}
	top.declare(mangled, sym)
}

func (a *Analyzer) analyzeAlias(mod *ast.Node, n *ast.Node) {
	mangled := Mangle(mod.Name, n.Name)
	sym := &ast.Symbol{
		NodeRef:      n,
		OriginalName: n.Name,
		MangledName:  mangled,
		IsAlias:      true,
		AliasToName:  n.AliasTo,
	}
	if !a.stack.DeclareInCurrent(mangled, sym) {
		a.Diags.Fatalf(n.Loc, diag.RedeclaredIdentifier, "identifier %q already declared in this scope", n.Name)
	}
}

// analyzeClass declares the class name, then analyzes each member in the
// class's own scope. Function members are, in addition, hoisted into the
// module's flattened top-level function list: the value model has no
// vtable (ast.go / object.go design notes), so a method is just a plain
// function whose first declared parameter is conventionally named `self`
// (SPEC_FULL.md), dispatched by name rather than by receiver type.
func (a *Analyzer) analyzeClass(mod *ast.Node, n *ast.Node) {
	mangled := Mangle(mod.Name, n.Name)
	a.stack.DeclareInCurrent(mangled, &ast.Symbol{NodeRef: n, OriginalName: n.Name, MangledName: mangled})
	a.stack.Push(LevelDefault)
	for _, m := range n.Members {
		if m.Node == nil {
			continue
		}
		a.analyzeStatement(mod, m.Node)
		if m.Node.Kind == ast.KindFunctionDefinition {
			a.flattened = append(a.flattened, m.Node)
		}
	}
	a.stack.Pop()
}

func (a *Analyzer) analyzeEnum(mod *ast.Node, n *ast.Node) {
	for _, m := range n.EnumMembers {
		mangled := Mangle(mod.Name, n.Name+"_"+m.Name)
		lit := ast.New(ast.KindInteger, n.Loc, mod)
		lit.IntValue = m.Value
		sym := &ast.Symbol{
			NodeRef:      n,
			OriginalName: n.Name + "." + m.Name,
			MangledName:  mangled,
			IsConst:      true,
			IsLiteral:    true,
			CurrentValue: lit,
		}
		a.stack.DeclareInCurrent(mangled, sym)
	}
}

func (a *Analyzer) analyzeFunctionDefinition(mod *ast.Node, n *ast.Node) {
	mangled := Mangle(mod.Name, n.Name)
	sym := &ast.Symbol{
		NodeRef:      n,
		OriginalName: n.Name,
		MangledName:  mangled,
		IsConst:      true,
		IsNative:     n.IsNative,
		NArgs:        len(n.Arguments),
	}
	if !a.stack.DeclareInCurrent(mangled, sym) {
		a.Diags.Fatalf(n.Loc, diag.RedeclaredIdentifier, "function %q already declared in this scope", n.Name)
	}

	if n.Name != "" && n.Name[0] >= 'a' && n.Name[0] <= 'z' {
		a.Diags.Infof(n.Loc, diag.NamingConvention, "function %q should start uppercase by convention", n.Name)
	}

	a.stack.Push(LevelFunction)
	for _, argName := range n.Arguments {
		am := Mangle(mod.Name, argName)
		a.stack.DeclareInCurrent(am, &ast.Symbol{OriginalName: argName, MangledName: am})
	}
	if n.Block != nil {
		if len(n.Block.Children) == 0 {
			a.Diags.Infof(n.Loc, diag.EmptyFunctionBody, "function %q has an empty body", n.Name)
		}
		a.analyzeBlockBody(mod, n.Block)
		a.ensureFinalReturn(n.Block)
	}
	a.stack.Pop()
}

// ensureFinalReturn appends a synthetic `return null` if the function body
// doesn't already end in one, emitting an info diagnostic (spec.md §4.3).
func (a *Analyzer) ensureFinalReturn(block *ast.Node) {
	if len(block.Children) > 0 && block.Children[len(block.Children)-1].Kind == ast.KindReturn {
		return
	}
	a.Diags.Infof(block.Loc, diag.MissingFinalReturn, "missing final return; synthesizing 'return null'")
	ret := ast.New(ast.KindReturn, block.Loc, block.Module)
	block.Children = append(block.Children, ret)
}

func (a *Analyzer) analyzeIf(mod *ast.Node, n *ast.Node) {
	n.Conditional = a.analyzeExpr(mod, n.Conditional)
	a.stack.Push(LevelCondition)
	a.analyzeBlockBody(mod, n.Then)
	a.stack.Pop()
	if n.Else != nil {
		if n.Else.Kind == ast.KindIf {
			a.analyzeIf(mod, n.Else)
		} else {
			a.stack.Push(LevelCondition)
			a.analyzeBlockBody(mod, n.Else)
			a.stack.Pop()
		}
	}
}

func (a *Analyzer) analyzeReturn(mod *ast.Node, n *ast.Node) {
	if n.Value != nil {
		n.Value = a.analyzeExpr(mod, n.Value)
	}
}

func (a *Analyzer) analyzeFor(mod *ast.Node, n *ast.Node) {
	a.stack.Push(LevelDefault)
	if n.Initializer != nil {
		a.analyzeStatement(mod, n.Initializer)
	}
	if n.Conditional != nil {
		n.Conditional = a.analyzeExpr(mod, n.Conditional)
	}
	if n.Afterthought != nil {
		n.Afterthought = a.analyzeExpr(mod, n.Afterthought)
	}
	a.stack.Push(LevelLoop)
	a.analyzeBlockBody(mod, n.Block)
	a.stack.Pop()
	a.stack.Pop()
}

func (a *Analyzer) analyzeWhile(mod *ast.Node, n *ast.Node) {
	n.Conditional = a.analyzeExpr(mod, n.Conditional)
	a.stack.Push(LevelLoop)
	a.analyzeBlockBody(mod, n.Block)
	a.stack.Pop()
}

func (a *Analyzer) analyzeTryCatch(mod *ast.Node, n *ast.Node) {
	a.analyzeBlock(mod, n.TryBlock)
	a.stack.Push(LevelDefault)
	excMangled := Mangle(mod.Name, n.ExceptionIdent)
	a.stack.DeclareInCurrent(excMangled, &ast.Symbol{OriginalName: n.ExceptionIdent, MangledName: excMangled})
	a.analyzeBlockBody(mod, n.CatchBlock)
	a.stack.Pop()
}

// analyzeExpr resolves identifiers, folds literals, and annotates
// Variable/FunctionCall nodes. It returns the (possibly folded)
// replacement node, mirroring spec.md §4.4's "optimized nodes replace
// their originals only when foldable."
func (a *Analyzer) analyzeExpr(mod *ast.Node, n *ast.Node) *ast.Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case ast.KindVariable:
		return a.analyzeVariable(mod, n)
	case ast.KindBinaryOp:
		n.Left = a.analyzeExpr(mod, n.Left)
		n.Right = a.analyzeExpr(mod, n.Right)
		if isAssignBinOp(token.BinaryOp(n.BinOp)) {
			a.checkAssignTarget(n.Left)
			return n
		}
		return Optimize(n)
	case ast.KindUnaryOp:
		n.Child = a.analyzeExpr(mod, n.Child)
		return Optimize(n)
	case ast.KindArrayAccess:
		n.Object = a.analyzeExpr(mod, n.Object)
		n.Index = a.analyzeExpr(mod, n.Index)
		return n
	case ast.KindMemberAccess:
		// `EnumName.Member` parses identically to struct field access
		// (a Variable on the left, a plain Variable on the right): try
		// resolving it as an enum constant first, since `EnumName` alone
		// is never itself a declared identifier (only `EnumName_Member`
		// is, per analyzeEnum). Only on a miss does this fall through to
		// ordinary struct member access.
		if n.Left.Kind == ast.KindVariable && n.Right != nil && n.Right.Kind == ast.KindVariable {
			enumMangled := Mangle(mod.Name, n.Left.Name+"_"+n.Right.Name)
			if sym := a.stack.Lookup(enumMangled); sym != nil && sym.IsLiteral {
				sym.Uses++
				return sym.CurrentValue
			}
		}
		n.Left = a.analyzeExpr(mod, n.Left)
		if n.Right != nil && n.Right.Kind == ast.KindFunctionCall {
			for i, arg := range n.Right.CallArgs {
				n.Right.CallArgs[i] = a.analyzeExpr(mod, arg)
			}
		}
		return n
	case ast.KindModuleAccess:
		if _, ok := a.importedNames[n.ModuleName]; !ok {
			// The parser emits ModuleAccess eagerly for any
			// `identifier.identifier(`, before it's known whether
			// `identifier` names an imported module or an ordinary local
			// (spec.md §4.2's parser section leaves this disambiguation to
			// the analyzer). Not a module: it's struct member access on a
			// local variable, rewritten to MemberAccess in place.
			member := ast.New(ast.KindMemberAccess, n.Loc, mod)
			member.Left = varNode(n.Loc, mod, n.ModuleName)
			member.Right = n.Right
			return a.analyzeExpr(mod, member)
		}
		if n.Right != nil {
			for i, arg := range n.Right.CallArgs {
				n.Right.CallArgs[i] = a.analyzeExpr(mod, arg)
			}
		}
		return n
	case ast.KindFunctionCall:
		for i, arg := range n.CallArgs {
			n.CallArgs[i] = a.analyzeExpr(mod, arg)
		}
		a.resolveCall(mod, n)
		return n
	case ast.KindNew:
		if n.Constructor != nil {
			for i, arg := range n.Constructor.CallArgs {
				n.Constructor.CallArgs[i] = a.analyzeExpr(mod, arg)
			}
		}
		return n
	case ast.KindFunctionExpression:
		a.stack.Push(LevelFunction)
		for _, argName := range n.Arguments {
			am := Mangle(mod.Name, argName)
			a.stack.DeclareInCurrent(am, &ast.Symbol{OriginalName: argName, MangledName: am})
		}
		if n.Block != nil {
			a.analyzeBlockBody(mod, n.Block)
			a.ensureFinalReturn(n.Block)
		}
		a.stack.Pop()
		return n
	case ast.KindSelf:
		return n
	default:
		return n
	}
}

func varNode(loc diag.Location, mod *ast.Node, name string) *ast.Node {
	n := ast.New(ast.KindVariable, loc, mod)
	n.Name = name
	return n
}

func isAssignBinOp(op token.BinaryOp) bool {
	switch op {
	case token.OpAssign, token.OpAddAssign, token.OpSubAssign, token.OpMulAssign,
		token.OpDivAssign, token.OpModAssign, token.OpBitAndAssign, token.OpBitXorAssign,
		token.OpBitOrAssign:
		return true
	}
	return false
}

func (a *Analyzer) analyzeVariable(mod *ast.Node, n *ast.Node) *ast.Node {
	mangled := Mangle(mod.Name, n.Name)
	sym := a.stack.Lookup(mangled)
	if sym == nil {
		a.Diags.Fatalf(n.Loc, diag.UndeclaredIdentifier, "undeclared identifier %q", n.Name)
		return n
	}
	n.SymbolRef = sym
	n.IsAlias = sym.IsAlias
	n.AliasToName = sym.AliasToName
	n.IsVarConst = sym.IsConst
	n.IsLiteral = sym.IsLiteral
	n.CurrentValue = sym.CurrentValue

	// A const+literal variable being inlined does not count as a use,
	// because its declaration will be dropped (spec.md §4.3).
	if sym.IsConst && sym.IsLiteral {
		return sym.CurrentValue
	}
	sym.Uses++
	return n
}

func (a *Analyzer) resolveCall(mod *ast.Node, n *ast.Node) {
	if n.Name == "" {
		return // calling an arbitrary expression result (n.Definition set)
	}
	mangled := Mangle(mod.Name, n.Name)
	sym := a.stack.Lookup(mangled)
	if sym == nil {
		// Not a local function: likely a lowered native call (e.g.
		// Reflection_typeof) or a forward reference resolved by codegen
		// against the module's declared functions directly.
		return
	}
	n.IsAlias = sym.IsAlias
	n.AliasToName = sym.AliasToName
	n.Definition = sym.NodeRef
	sym.Uses++
	if sym.NodeRef != nil && len(sym.NodeRef.Arguments) != len(n.CallArgs) && !sym.NodeRef.IsVariadic {
		a.Diags.Fatalf(n.Loc, diag.InvalidNumberOfArguments, "function %q expects %d argument(s), got %d", n.Name, len(sym.NodeRef.Arguments), len(n.CallArgs))
	}
}

// checkAssignTarget rejects assignment to a const symbol or to a
// declaration attributed `inline`.
func (a *Analyzer) checkAssignTarget(target *ast.Node) {
	if target == nil || target.Kind != ast.KindVariable {
		return
	}
	sym := target.SymbolRef
	if sym == nil {
		return
	}
	if sym.IsConst {
		a.Diags.Fatalf(target.Loc, diag.ConstIdentifierModified, "cannot assign to const identifier %q", sym.OriginalName)
	}
	if sym.NodeRef != nil && sym.NodeRef.IsInline {
		a.Diags.Fatalf(target.Loc, diag.ProhibitedActionOnAttribute, "cannot modify inline declaration %q", sym.OriginalName)
	}
}
