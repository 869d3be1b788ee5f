package vm

import (
	"strconv"

	"github.com/axlang/ax/internal/bytecode"
	"github.com/axlang/ax/internal/diag"
	"github.com/axlang/ax/internal/object"
)

// step fetches and executes exactly one instruction.
func (vm *VM) step() error {
	opByte, err := vm.code.ReadBytes(1)
	if err != nil {
		return err
	}
	op := bytecode.Opcode(opByte[0])

	switch op {
	case bytecode.OpNop, bytecode.OpLeave:
		return nil

	case bytecode.OpStoreAddress:
		// Only ever appears in the prologue; defensively decode and ignore
		// one if it shows up mid-stream.
		if _, err := bytecode.ReadU32(vm.code); err != nil {
			return err
		}
		_, err := bytecode.ReadU64(vm.code)
		return err

	case bytecode.OpIfl:
		vm.frameLevel++
		return nil
	case bytecode.OpDfl:
		vm.frameLevel--
		return nil
	case bytecode.OpIrl:
		n, err := bytecode.ReadU8(vm.code)
		if err != nil {
			return err
		}
		vm.readLevel += int(n)
		return nil
	case bytecode.OpDrl:
		n, err := bytecode.ReadU8(vm.code)
		if err != nil {
			return err
		}
		vm.readLevel -= int(n)
		return nil
	case bytecode.OpIrlIfTrue, bytecode.OpIrlIfFalse:
		// Declared for wire-format fidelity; this VM's codegen never emits
		// them (real jumps replace read-level gating, see package doc).
		return nil

	case bytecode.OpJump:
		target, err := vm.readLabelOperand()
		if err != nil {
			return err
		}
		vm.code.Seek(target)
		return nil
	case bytecode.OpJumpIfTrue:
		target, err := vm.readLabelOperand()
		if err != nil {
			return err
		}
		if vm.truthy(vm.peek()) {
			vm.code.Seek(target)
		}
		return nil
	case bytecode.OpJumpIfFalse:
		target, err := vm.readLabelOperand()
		if err != nil {
			return err
		}
		if !vm.truthy(vm.peek()) {
			vm.code.Seek(target)
		}
		return nil

	case bytecode.OpTryCatchBlock:
		target, err := vm.readLabelOperand()
		if err != nil {
			return err
		}
		vm.handlers = append(vm.handlers, handler{catchPC: target, stackLen: len(vm.stack), callDepth: len(vm.calls)})
		return nil

	case bytecode.OpClearObject, bytecode.OpDeleteLocal:
		// Reserved/recovered slots with no codegen producer (SPEC_FULL.md
		// §4.12); decode whatever operand the table declares and discard.
		for _, k := range bytecode.OperandSpec(op) {
			if err := bytecode.SkipOperand(vm.code, k); err != nil {
				return err
			}
		}
		return nil

	case bytecode.OpBreak, bytecode.OpContinue:
		// Declared in the opcode table but never emitted: the language has
		// no break/continue statement (no corresponding ast.Kind).
		_, err := bytecode.ReadI32(vm.code)
		return err

	case bytecode.OpStoreAsLocal:
		name, err := bytecode.ReadString(vm.code)
		if err != nil {
			return err
		}
		vm.locals()[name] = vm.pop()
		return nil
	case bytecode.OpLoadLocal:
		name, err := bytecode.ReadString(vm.code)
		if err != nil {
			return err
		}
		id, ok := vm.lookup(name)
		if !ok {
			id = vm.heap.NewNull()
		}
		vm.push(id)
		return nil

	case bytecode.OpNewVariable:
		name, err := bytecode.ReadString(vm.code)
		if err != nil {
			return err
		}
		vm.locals()[name] = vm.heap.NewStruct()
		return nil
	case bytecode.OpNewNativeObject:
		// spec.md §9: declared but not implemented by the source either;
		// a re-implementation may reject it at load time. This VM logs
		// nothing (no logger at this layer) and leaves null in its place.
		if _, err := bytecode.ReadString(vm.code); err != nil {
			return err
		}
		vm.push(vm.heap.NewNull())
		return nil

	case bytecode.OpArrayIndex:
		return vm.execArrayIndex()

	case bytecode.OpNewMember:
		name, err := bytecode.ReadString(vm.code)
		if err != nil {
			return err
		}
		return vm.execNewMember(name)
	case bytecode.OpLoadMember:
		name, err := bytecode.ReadString(vm.code)
		if err != nil {
			return err
		}
		return vm.execLoadMember(name)

	case bytecode.OpNewFunction:
		return vm.execNewFunction()

	case bytecode.OpInvokeObject:
		nargs, err := bytecode.ReadU32(vm.code)
		if err != nil {
			return err
		}
		return vm.execInvokeObject(int(nargs))
	case bytecode.OpInvokeNative:
		name, err := bytecode.ReadString(vm.code)
		if err != nil {
			return err
		}
		nargs, err := bytecode.ReadI32(vm.code)
		if err != nil {
			return err
		}
		return vm.execInvokeNative(name, int(nargs))

	case bytecode.OpReturn:
		return vm.execReturn()

	case bytecode.OpPrint:
		nargs, err := bytecode.ReadU32(vm.code)
		if err != nil {
			return err
		}
		return vm.execPrint(int(nargs))

	case bytecode.OpLoadInteger:
		v, err := bytecode.ReadI64(vm.code)
		if err != nil {
			return err
		}
		vm.push(vm.heap.NewInt(v))
		return nil
	case bytecode.OpLoadFloat:
		v, err := bytecode.ReadF64(vm.code)
		if err != nil {
			return err
		}
		vm.push(vm.heap.NewFloat(v))
		return nil
	case bytecode.OpLoadString:
		v, err := bytecode.ReadString(vm.code)
		if err != nil {
			return err
		}
		vm.push(vm.heap.NewString(v))
		return nil
	case bytecode.OpLoadNull:
		vm.push(vm.heap.NewNull())
		return nil
	case bytecode.OpPop:
		vm.pop()
		return nil

	case bytecode.OpUnaryMinus:
		return vm.execUnaryMinus()
	case bytecode.OpUnaryNot:
		v := vm.truthy(vm.pop())
		vm.push(vm.boolInt(!v))
		return nil
	case bytecode.OpUnaryBitCompl:
		return vm.execUnaryBitCompl()

	case bytecode.OpPow, bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
		bytecode.OpMod, bytecode.OpAnd, bytecode.OpOr, bytecode.OpEql, bytecode.OpNeql,
		bytecode.OpLess, bytecode.OpGreater, bytecode.OpLessEql, bytecode.OpGreaterEql,
		bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpLeftShift,
		bytecode.OpRightShift:
		return vm.execBinary(op)

	case bytecode.OpAssign, bytecode.OpAddAssign, bytecode.OpSubAssign, bytecode.OpMulAssign, bytecode.OpDivAssign:
		return vm.execArrayCompoundAssign(op)

	default:
		return vm.fail(diag.InternalError, "unknown opcode %d", op)
	}
}

// readLabelOperand reads a jump-family operand (a label id) and resolves it
// through the prologue-built block-position table.
func (vm *VM) readLabelOperand() (int64, error) {
	id, err := bytecode.ReadU32(vm.code)
	if err != nil {
		return 0, err
	}
	pos, ok := vm.blockPositions[id]
	if !ok {
		return 0, vm.fail(diag.InternalError, "unresolved label id %d", id)
	}
	return pos, nil
}

func (vm *VM) truthy(id object.ID) bool {
	o := vm.heap.Get(id)
	if o == nil {
		return false
	}
	switch o.Kind {
	case object.KindNull:
		return false
	case object.KindInt:
		return o.Int != 0
	case object.KindFloat:
		return o.Float != 0
	case object.KindString:
		return o.Str != ""
	default:
		return true
	}
}

func (vm *VM) boolInt(b bool) object.ID {
	if b {
		return vm.heap.NewInt(1)
	}
	return vm.heap.NewInt(0)
}

func (vm *VM) execUnaryMinus() error {
	o := vm.heap.Get(vm.pop())
	if o == nil {
		return vm.fail(diag.InternalError, "unary minus on freed object")
	}
	switch o.Kind {
	case object.KindInt:
		vm.push(vm.heap.NewInt(-o.Int))
	case object.KindFloat:
		vm.push(vm.heap.NewFloat(-o.Float))
	default:
		return vm.fail(diag.InvalidType, "unary '-' requires a number, got %s", o.Kind)
	}
	return nil
}

func (vm *VM) execUnaryBitCompl() error {
	o := vm.heap.Get(vm.pop())
	if o == nil || o.Kind != object.KindInt {
		return vm.fail(diag.InvalidType, "unary '~' requires an integer")
	}
	vm.push(vm.heap.NewInt(^o.Int))
	return nil
}

func (vm *VM) execArrayIndex() error {
	idxID := vm.pop()
	objID := vm.pop()
	idx := vm.heap.Get(idxID)
	if idx == nil || idx.Kind != object.KindInt {
		return vm.fail(diag.InvalidType, "array index must be an integer")
	}
	obj := vm.heap.Get(objID)
	if obj == nil || obj.Kind == object.KindNull {
		return vm.fail(diag.NullReference, "index into a null value")
	}
	key := strconv.FormatInt(idx.Int, 10)
	vm.lastArray = arrayTarget{obj: objID, key: key, valid: true}
	if ref, ok := obj.Field(key); ok {
		vm.push(ref)
		return nil
	}
	vm.push(vm.heap.NewNull())
	return nil
}

func (vm *VM) execArrayCompoundAssign(op bytecode.Opcode) error {
	if !vm.lastArray.valid {
		return vm.fail(diag.InternalError, "compound array assignment with no prior array_index")
	}
	obj := vm.heap.Get(vm.lastArray.obj)
	if obj == nil {
		return vm.fail(diag.InternalError, "array_index target no longer live")
	}
	rhs := vm.pop()
	var result object.ID
	if op == bytecode.OpAssign {
		result = rhs
	} else {
		current, ok := obj.Field(vm.lastArray.key)
		if !ok {
			current = vm.heap.NewInt(0)
		}
		var base bytecode.Opcode
		switch op {
		case bytecode.OpAddAssign:
			base = bytecode.OpAdd
		case bytecode.OpSubAssign:
			base = bytecode.OpSub
		case bytecode.OpMulAssign:
			base = bytecode.OpMul
		case bytecode.OpDivAssign:
			base = bytecode.OpDiv
		}
		var err error
		result, err = vm.binaryResult(base, current, rhs)
		if err != nil {
			return err
		}
	}
	obj.SetField(vm.lastArray.key, result)
	vm.push(result)
	return nil
}

func (vm *VM) execNewMember(name string) error {
	value := vm.pop()
	objID := vm.pop()
	obj := vm.heap.Get(objID)
	if obj == nil || obj.Kind == object.KindNull {
		return vm.fail(diag.NullReference, "cannot set member '%s' on null", name)
	}
	obj.SetField(name, value)
	return nil
}

func (vm *VM) execLoadMember(name string) error {
	objID := vm.pop()
	obj := vm.heap.Get(objID)
	if obj == nil || obj.Kind == object.KindNull {
		return vm.fail(diag.NullReference, "cannot read member '%s' on null", name)
	}
	ref, ok := obj.Field(name)
	if !ok {
		return vm.fail(diag.MemberNotFound, "no member '%s'", name)
	}
	vm.push(ref)
	return nil
}

func (vm *VM) execNewFunction() error {
	isGlobal, err := bytecode.ReadU8(vm.code)
	if err != nil {
		return err
	}
	_ = isGlobal
	nargs, err := bytecode.ReadU32(vm.code)
	if err != nil {
		return err
	}
	variadic, err := bytecode.ReadU8(vm.code)
	if err != nil {
		return err
	}
	bodyLabel, err := bytecode.ReadU64(vm.code)
	if err != nil {
		return err
	}
	addr, ok := vm.blockPositions[uint32(bodyLabel)]
	if !ok {
		return vm.fail(diag.InternalError, "unresolved function body label %d", bodyLabel)
	}
	vm.push(vm.heap.NewFunction(uint64(addr), int(nargs), variadic != 0))
	return nil
}

func (vm *VM) execInvokeObject(nargs int) error {
	calleeID := vm.pop()
	callee := vm.heap.Get(calleeID)
	if callee == nil {
		return vm.fail(diag.BadInvoke, "invoke on a freed object")
	}
	switch callee.Kind {
	case object.KindNative:
		return vm.invokeNativeFunc(callee.Native, nargs)
	case object.KindFunction:
		return vm.invokeCompiled(callee, nargs)
	default:
		return vm.fail(diag.BadInvoke, "value of type %s is not callable", callee.Kind)
	}
}

func (vm *VM) execInvokeNative(name string, nargs int) error {
	fn, ok := vm.natives[name]
	if !ok {
		return vm.fail(diag.BadInvoke, "no native binding for '%s'", name)
	}
	return vm.invokeNativeFunc(fn, nargs)
}

func (vm *VM) invokeNativeFunc(fn object.NativeFunc, nargs int) error {
	if len(vm.stack) < nargs {
		return vm.fail(diag.InternalError, "native call short %d args", nargs)
	}
	args := append([]object.ID(nil), vm.stack[len(vm.stack)-nargs:]...)
	vm.stack = vm.stack[:len(vm.stack)-nargs]
	result, err := fn(vm, args)
	if err != nil {
		if d, ok := err.(*diag.Diagnostic); ok {
			return d
		}
		return vm.fail(diag.InternalError, "%s", err.Error())
	}
	vm.push(result)
	return nil
}

// invokeCompiled binds nargs stack values (argN nearest the top, matching
// codegen's push-args-then-callee convention) to the callee's declared
// parameters by reverse-order store_as_local, exactly the way the callee's
// own body already expects to receive them (codegen.genFunctionDefinition).
// Non-variadic under- or over-supplied calls pad with trailing nulls / drop
// the extra leading arguments rather than failing: spec.md doesn't list arity mismatch as a checked
// runtime error, and the analyzer already validates call arity where it
// can (sema.Analyzer's InvalidNumberOfArguments diagnostic).
func (vm *VM) invokeCompiled(callee *object.Object, nargs int) error {
	if len(vm.stack) < nargs {
		return vm.fail(diag.InternalError, "call short %d args", nargs)
	}
	returnAddr := vm.code.Position()
	frame := newCallFrame(returnAddr)
	vm.calls = append(vm.calls, frame)
	vm.code.Seek(int64(callee.FuncAddr))
	// Argument binding itself is performed by the callee's own prologue.
	if !callee.FuncVariadic {
		for ; nargs < callee.FuncNArgs; nargs++ {
			vm.push(vm.heap.NewNull())
		}
		if extra := nargs - callee.FuncNArgs; extra > 0 {
			base := len(vm.stack) - nargs
			vm.stack = append(vm.stack[:base], vm.stack[base+extra:]...)
		}
	}
	return nil
}

func (vm *VM) execReturn() error {
	value := vm.pop()
	n := len(vm.calls)
	if n == 0 {
		// A return with no active call: natural program end via a
		// top-level return. Leave the value on the stack and stop.
		vm.push(value)
		vm.code.Seek(vm.code.Max())
		return nil
	}
	frame := vm.calls[n-1]
	vm.calls = vm.calls[:n-1]
	for len(vm.handlers) > 0 && vm.handlers[len(vm.handlers)-1].callDepth >= len(vm.calls)+1 {
		vm.handlers = vm.handlers[:len(vm.handlers)-1]
	}
	vm.code.Seek(frame.returnAddr)
	vm.push(value)
	return nil
}

func (vm *VM) execPrint(nargs int) error {
	if len(vm.stack) < nargs {
		return vm.fail(diag.InternalError, "print short %d args", nargs)
	}
	values := make([]object.ID, nargs)
	for i := 0; i < nargs; i++ {
		values[i] = vm.pop()
	}
	for _, id := range values {
		if _, err := vm.Stdout.Write([]byte(vm.displayString(id))); err != nil {
			return err
		}
	}
	_, err := vm.Stdout.Write([]byte("\n"))
	return err
}

// displayString renders a value the way Print and Convert.toString do
// (runtime/convert.go): plain text, no quoting.
func (vm *VM) displayString(id object.ID) string {
	o := vm.heap.Get(id)
	if o == nil {
		return "null"
	}
	switch o.Kind {
	case object.KindNull:
		return "null"
	case object.KindInt:
		return strconv.FormatInt(o.Int, 10)
	case object.KindFloat:
		return strconv.FormatFloat(o.Float, 'g', -1, 64)
	case object.KindString:
		return o.Str
	case object.KindStruct:
		return "structure"
	case object.KindFunction:
		return "function"
	case object.KindNative:
		return "native"
	default:
		return "unknown"
	}
}
