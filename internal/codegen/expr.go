package codegen

import (
	"github.com/axlang/ax/internal/ast"
	"github.com/axlang/ax/internal/bytecode"
	"github.com/axlang/ax/internal/sema"
	"github.com/axlang/ax/internal/token"
)

// genExpr implements spec.md §4.5's per-Kind expression rules. Every case
// leaves exactly one value on the stack, matching the "accept" convention
// used throughout the translation rules.
func (g *Generator) genExpr(mod *ast.Node, n *ast.Node) {
	if n == nil {
		g.stream.Emit(bytecode.OpLoadNull)
		return
	}
	n = sema.Optimize(n)
	switch n.Kind {
	case ast.KindInteger:
		g.stream.Emit(bytecode.OpLoadInteger, bytecode.I64(n.IntValue))
	case ast.KindFloat:
		g.stream.Emit(bytecode.OpLoadFloat, bytecode.F64(n.FloatValue))
	case ast.KindString:
		g.stream.Emit(bytecode.OpLoadString, bytecode.Str(n.StringValue))
	case ast.KindTrue:
		g.stream.Emit(bytecode.OpLoadInteger, bytecode.I64(1))
	case ast.KindFalse:
		g.stream.Emit(bytecode.OpLoadInteger, bytecode.I64(0))
	case ast.KindNull:
		g.stream.Emit(bytecode.OpLoadNull)
	case ast.KindSelf:
		g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(sema.Mangle(mod.Name, "self")))
	case ast.KindVariable:
		g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(sema.Mangle(mod.Name, n.Name)))
	case ast.KindBinaryOp:
		g.genBinaryOp(mod, n)
	case ast.KindUnaryOp:
		g.genUnaryOp(mod, n)
	case ast.KindArrayAccess:
		g.genExpr(mod, n.Object)
		g.genExpr(mod, n.Index)
		g.stream.Emit(bytecode.OpArrayIndex)
	case ast.KindMemberAccess:
		g.genMemberAccess(mod, n)
	case ast.KindModuleAccess:
		g.genModuleAccess(mod, n)
	case ast.KindFunctionCall:
		g.genFunctionCall(mod, n)
	case ast.KindNew:
		g.genNew(mod, n)
	case ast.KindFunctionExpression:
		g.genFunctionExpression(mod, n)
	case ast.KindExpression:
		g.genExpr(mod, n.Child)
	default:
		g.stream.Emit(bytecode.OpLoadNull)
	}
}

// arithOpcode maps a non-assigning BinaryOp to its opcode, with the
// `>`/`>=` swap-to-`less`/`less_eql` normalization the opcode set implies
// by omitting dedicated greater-than variants from the comparison family
// generated here (spec.md §4.8 lists both greater and greater_eql as real
// opcodes too, so the swap is not load-bearing for correctness — kept
// anyway since it halves the comparison-case surface callers must reason
// about; see DESIGN.md).
func arithOpcode(op token.BinaryOp) (bytecode.Opcode, bool, bool) {
	switch op {
	case token.OpPower:
		return bytecode.OpPow, false, false
	case token.OpMultiply:
		return bytecode.OpMul, false, false
	case token.OpDivide, token.OpTrueDiv:
		return bytecode.OpDiv, false, false
	case token.OpModulus:
		return bytecode.OpMod, false, false
	case token.OpAdd:
		return bytecode.OpAdd, false, false
	case token.OpSubtract:
		return bytecode.OpSub, false, false
	case token.OpLeftShift:
		return bytecode.OpLeftShift, false, false
	case token.OpRightShift:
		return bytecode.OpRightShift, false, false
	case token.OpLess:
		return bytecode.OpLess, false, false
	case token.OpGreater:
		return bytecode.OpLess, true, false // a > b  ==  b < a
	case token.OpLessEql:
		return bytecode.OpLessEql, false, false
	case token.OpGreaterEql:
		return bytecode.OpLessEql, true, false // a >= b  ==  b <= a
	case token.OpEquals:
		return bytecode.OpEql, false, false
	case token.OpNotEquals:
		return bytecode.OpNeql, false, false
	case token.OpBitAnd:
		return bytecode.OpBitAnd, false, false
	case token.OpBitXor:
		return bytecode.OpBitXor, false, false
	case token.OpBitOr:
		return bytecode.OpBitOr, false, false
	case token.OpLogAnd:
		return bytecode.OpAnd, false, false
	case token.OpLogOr:
		return bytecode.OpOr, false, false
	}
	return bytecode.OpNop, false, true
}

// compoundBase maps a compound-assignment BinaryOp to the arithmetic op it
// desugars to (`x += y` reads as `x = x + y`).
func compoundBase(op token.BinaryOp) token.BinaryOp {
	switch op {
	case token.OpAddAssign:
		return token.OpAdd
	case token.OpSubAssign:
		return token.OpSubtract
	case token.OpMulAssign:
		return token.OpMultiply
	case token.OpDivAssign:
		return token.OpDivide
	case token.OpModAssign:
		return token.OpModulus
	case token.OpBitAndAssign:
		return token.OpBitAnd
	case token.OpBitXorAssign:
		return token.OpBitXor
	case token.OpBitOrAssign:
		return token.OpBitOr
	}
	return token.OpInvalid
}

func isAssignOpBin(op token.BinaryOp) bool {
	switch op {
	case token.OpAssign, token.OpAddAssign, token.OpSubAssign, token.OpMulAssign,
		token.OpDivAssign, token.OpModAssign, token.OpBitAndAssign, token.OpBitXorAssign,
		token.OpBitOrAssign:
		return true
	}
	return false
}

func (g *Generator) genBinaryOp(mod *ast.Node, n *ast.Node) {
	op := token.BinaryOp(n.BinOp)
	if isAssignOpBin(op) {
		g.genAssign(mod, n, op)
		return
	}
	opcode, swapped, unknown := arithOpcode(op)
	if swapped {
		g.genExpr(mod, n.Right)
		g.genExpr(mod, n.Left)
	} else {
		g.genExpr(mod, n.Left)
		g.genExpr(mod, n.Right)
	}
	if unknown {
		g.stream.Emit(bytecode.OpLoadNull)
		return
	}
	g.stream.Emit(opcode)
}

// genAssign routes a `=`/`+=`/... target to the right storage form: a bare
// Variable uses store_as_local/load_local; a MemberAccess target uses
// new_member (spec.md §4.9's field model). The stored value is reloaded
// afterward so the assignment keeps the single-value "accept" contract for
// use as a sub-expression (there is no dedicated dup instruction in the
// opcode set, so a fresh load stands in for one). An ArrayAccess target
// with `=`, `+=`, `-=`, `*=` or `/=` uses array_index followed by the
// matching assign-family opcode, which itself leaves the new value.
func (g *Generator) genAssign(mod *ast.Node, n *ast.Node, op token.BinaryOp) {
	if n.Left.Kind == ast.KindMemberAccess {
		g.genFieldAssign(mod, n, op)
		return
	}
	if n.Left.Kind == ast.KindArrayAccess {
		opcodes := map[token.BinaryOp]bytecode.Opcode{token.OpAssign: bytecode.OpAssign, token.OpAddAssign: bytecode.OpAddAssign,
			token.OpSubAssign: bytecode.OpSubAssign, token.OpMulAssign: bytecode.OpMulAssign, token.OpDivAssign: bytecode.OpDivAssign}
		if opcode, ok := opcodes[op]; ok {
			g.genExpr(mod, n.Right) // first, so the array_index below is the last to set the VM's array target
			g.genExpr(mod, n.Left.Object)
			g.genExpr(mod, n.Left.Index)
			g.stream.Emit(bytecode.OpArrayIndex)
			g.stream.Emit(bytecode.OpPop)
			g.stream.Emit(opcode)
			return
		}
	}
	mangled := sema.Mangle(mod.Name, n.Left.Name)
	if op == token.OpAssign {
		g.genExpr(mod, n.Right)
	} else {
		base := compoundBase(op)
		g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(mangled))
		g.genExpr(mod, n.Right)
		opcode, swapped, unknown := arithOpcode(base)
		if !unknown {
			if swapped {
				// a OP= b reduces to a = b <op> a only for the non-commutative
				// comparison family, which never appears as a compound-assign
				// base; arithOpcode's swap flag is therefore always false here.
				_ = swapped
			}
			g.stream.Emit(opcode)
		}
	}
	g.stream.Emit(bytecode.OpStoreAsLocal, bytecode.Str(mangled))
	g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(mangled))
}

// genFieldAssign implements `obj.field = value` / `obj.field += value`
// (spec.md §4.9's NullReference behavior when obj is null is a VM-side
// concern; codegen just emits the object/value pair new_member expects).
func (g *Generator) genFieldAssign(mod *ast.Node, n *ast.Node, op token.BinaryOp) {
	fieldName := n.Left.Right.Name
	g.genExpr(mod, n.Left.Left)
	if op == token.OpAssign {
		g.genExpr(mod, n.Right)
	} else {
		base := compoundBase(op)
		g.genExpr(mod, n.Left) // re-reads the current field value (re-evaluates the object expression)
		g.genExpr(mod, n.Right)
		opcode, _, unknown := arithOpcode(base)
		if !unknown {
			g.stream.Emit(opcode)
		}
	}
	g.stream.Emit(bytecode.OpNewMember, bytecode.Str(fieldName))
	g.genExpr(mod, n.Left) // reload the stored field value
}

func (g *Generator) genUnaryOp(mod *ast.Node, n *ast.Node) {
	switch token.UnaryOp(n.UnOp) {
	case token.UnNot:
		g.genExpr(mod, n.Child)
		g.stream.Emit(bytecode.OpUnaryNot)
	case token.UnNegative:
		g.genExpr(mod, n.Child)
		g.stream.Emit(bytecode.OpUnaryMinus)
	case token.UnPositive:
		g.genExpr(mod, n.Child)
	case token.UnBitCompl:
		g.genExpr(mod, n.Child)
		g.stream.Emit(bytecode.OpUnaryBitCompl)
	case token.UnIncrement, token.UnDecrement:
		g.genIncDec(mod, n)
	default:
		g.genExpr(mod, n.Child)
	}
}

// genIncDec desugars `++x`/`--x` to `x = x + 1` / `x = x - 1`, recovered
// from original_source as tokens with no dedicated opcode of their own
// (SPEC_FULL.md §4.12). Only the prefix spelling is parsed (as a unary
// operator), and it evaluates to the post-increment value.
func (g *Generator) genIncDec(mod *ast.Node, n *ast.Node) {
	delta := int64(1)
	if token.UnaryOp(n.UnOp) == token.UnDecrement {
		delta = -1
	}
	target := n.Child
	if target.Kind == ast.KindMemberAccess {
		fieldName := target.Right.Name
		g.genExpr(mod, target.Left)
		g.genExpr(mod, target)
		g.stream.Emit(bytecode.OpLoadInteger, bytecode.I64(delta))
		g.stream.Emit(bytecode.OpAdd)
		g.stream.Emit(bytecode.OpNewMember, bytecode.Str(fieldName))
		g.genExpr(mod, target) // reload the updated field value
		return
	}
	mangled := sema.Mangle(mod.Name, target.Name)
	g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(mangled))
	g.stream.Emit(bytecode.OpLoadInteger, bytecode.I64(delta))
	g.stream.Emit(bytecode.OpAdd)
	g.stream.Emit(bytecode.OpStoreAsLocal, bytecode.Str(mangled))
	g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(mangled))
}

// genMemberAccess implements spec.md §4.5's MemberAccess rule for a target
// that is not an imported module: accept the left side, then load_member
// <name>, invoking if the right side is a call. Method calls pass the
// receiver as an explicit leading argument (the value model has no vtable
// or bound-method object — dispatch is by name only, see DESIGN.md).
func (g *Generator) genMemberAccess(mod *ast.Node, n *ast.Node) {
	name := n.Right.Name
	if n.Right.Kind == ast.KindFunctionCall {
		g.genExpr(mod, n.Left) // receiver, passed as the explicit leading `self` argument
		for _, arg := range n.Right.CallArgs {
			g.genExpr(mod, arg)
		}
		g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(sema.Mangle(mod.Name, name)))
		g.stream.Emit(bytecode.OpInvokeObject, bytecode.U32(uint32(len(n.Right.CallArgs)+1)))
		return
	}
	g.genExpr(mod, n.Left)
	g.stream.Emit(bytecode.OpLoadMember, bytecode.Str(name))
}

// genModuleAccess implements the "left side matches an imported module
// name" half of spec.md §4.5's MemberAccess rule: native modules resolve
// to invoke_native by fully-qualified name; real imported modules resolve
// to a plain module-local function (already inlined into this stream by
// genImport) via load_local/invoke_object.
func (g *Generator) genModuleAccess(mod *ast.Node, n *ast.Node) {
	call := n.Right
	for _, arg := range call.CallArgs {
		g.genExpr(mod, arg)
	}
	qualified := sema.Mangle(n.ModuleName, call.Name)
	if sema.NativeModules[n.ModuleName] {
		g.stream.Emit(bytecode.OpInvokeNative, bytecode.Str(qualified), bytecode.I32(int32(len(call.CallArgs))))
		return
	}
	g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(qualified))
	g.stream.Emit(bytecode.OpInvokeObject, bytecode.U32(uint32(len(call.CallArgs))))
}

// genFunctionCall implements spec.md §4.5's FunctionCall rule. Three
// shapes: a call to an inline-attributed function splices its body at the
// call site; a call to an ordinary resolved function loads it by mangled
// name and invokes it; a call with no resolved Definition is either a
// forward reference to a function declared later in this same module
// (resolved here against the flattened declaration set, since the
// single-pass analyzer couldn't see it yet) or one of the parser's
// pre-lowered native-sugar calls (`typeof`, `cast`) whose Name already
// carries the fully-qualified native binding.
func (g *Generator) genFunctionCall(mod *ast.Node, n *ast.Node) {
	if n.Name == "" {
		// Calling an arbitrary expression result (n.Definition set by the
		// parser to the callee expression, e.g. a function-expression
		// literal invoked immediately).
		for _, arg := range n.CallArgs {
			g.genExpr(mod, arg)
		}
		g.genExpr(mod, n.Definition)
		g.stream.Emit(bytecode.OpInvokeObject, bytecode.U32(uint32(len(n.CallArgs))))
		return
	}

	if n.Definition != nil {
		if n.Definition.IsInline {
			g.genInlineCall(mod, n)
			return
		}
		mangled := sema.Mangle(mod.Name, n.Name)
		for _, arg := range n.CallArgs {
			g.genExpr(mod, arg)
		}
		g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(mangled))
		g.stream.Emit(bytecode.OpInvokeObject, bytecode.U32(uint32(len(n.CallArgs))))
		return
	}

	mangled := sema.Mangle(mod.Name, n.Name)
	if def, ok := g.knownFunctions[mangled]; ok {
		if def.IsInline {
			g.genInlineCall(mod, n)
			return
		}
		for _, arg := range n.CallArgs {
			g.genExpr(mod, arg)
		}
		g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(mangled))
		g.stream.Emit(bytecode.OpInvokeObject, bytecode.U32(uint32(len(n.CallArgs))))
		return
	}

	for _, arg := range n.CallArgs {
		g.genExpr(mod, arg)
	}
	g.stream.Emit(bytecode.OpInvokeNative, bytecode.Str(n.Name), bytecode.I32(int32(len(n.CallArgs))))
}

// genInlineCall splices an inline function's body at the call site, inside
// its own ifl/dfl bracket (so spliced locals, including the parameter
// bindings, don't leak into the caller's scope). A `return` reached
// mid-splice would jump past the rest of the caller's code rather than
// just the inlined body — an accepted limitation (no canonical scenario
// exercises an early/mid-body return from an inline function).
func (g *Generator) genInlineCall(mod *ast.Node, n *ast.Node) {
	def := n.Definition
	if def == nil {
		def = g.knownFunctions[sema.Mangle(mod.Name, n.Name)]
	}
	if def == nil || def.Block == nil {
		g.stream.Emit(bytecode.OpLoadNull)
		return
	}
	g.openScope(sema.LevelFunction)
	for i := len(def.Arguments) - 1; i >= 0; i-- {
		argMangled := sema.Mangle(mod.Name, def.Arguments[i])
		if i < len(n.CallArgs) {
			g.genExpr(mod, n.CallArgs[i])
		} else {
			g.stream.Emit(bytecode.OpLoadNull)
		}
		g.stream.Emit(bytecode.OpStoreAsLocal, bytecode.Str(argMangled))
	}
	g.genBlockBody(mod, def.Block)
	g.closeScope()
}

// genNew implements `new X(args)`: allocate a struct, then invoke the
// class's conventionally-named `new` function with the fresh struct as
// the explicit leading `self` argument (no vtable, no constructor-specific
// opcode — spec.md §9 rejects the source's virtual-dispatch hierarchy).
func (g *Generator) genNew(mod *ast.Node, n *ast.Node) {
	tempName := sema.Mangle(mod.Name, "$new$"+n.Identifier)
	g.stream.Emit(bytecode.OpNewVariable, bytecode.Str(tempName))

	var args []*ast.Node
	if n.Constructor != nil {
		args = n.Constructor.CallArgs
	}
	g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(tempName)) // self
	for _, arg := range args {
		g.genExpr(mod, arg)
	}
	ctor := sema.Mangle(mod.Name, n.Identifier+"_new")
	g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(ctor))
	g.stream.Emit(bytecode.OpInvokeObject, bytecode.U32(uint32(len(args)+1)))
	g.stream.Emit(bytecode.OpPop) // discard the constructor's own return value

	g.stream.Emit(bytecode.OpLoadLocal, bytecode.Str(tempName))
}

// genFunctionExpression emits an anonymous function literal as a value:
// identical to a non-inline FunctionDefinition, but the new_function
// result is left on the stack instead of being stored under a declared
// name.
func (g *Generator) genFunctionExpression(mod *ast.Node, n *ast.Node) {
	bodyLabel := g.stream.NewLabel()
	afterBody := g.stream.NewLabel()

	variadic := uint8(0)
	if n.IsVariadic {
		variadic = 1
	}
	g.stream.Emit(bytecode.OpNewFunction,
		bytecode.U8(0), // is_global
		bytecode.U32(uint32(len(n.Arguments))),
		bytecode.U8(variadic),
		bytecode.U64(uint64(bodyLabel)),
	)

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
