// Package vm implements a register-less, stack-based bytecode machine:
// call frames, closures and upvalues, classes and bound methods, and
// the opcode dispatch loop, plus (in gc.go) the tri-color mark-sweep
// collector that reclaims everything pkg/object allocates.
package vm

import (
	"fmt"
	"io"
	"os"
	"time"
	"unsafe"

	"github.com/kristofer/loxgo/pkg/chunk"
	"github.com/kristofer/loxgo/pkg/compiler"
	"github.com/kristofer/loxgo/pkg/object"
	"github.com/kristofer/loxgo/pkg/table"
	"github.com/kristofer/loxgo/pkg/value"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// CallFrame is one activation record: the closure being executed, the
// instruction pointer into its chunk, and the base stack index its local
// slots are offset from (slot 0 is the callee itself, or `this`).
type CallFrame struct {
	closure   *object.Closure
	ip        int
	slotsBase int
}

// VM owns all interpreter-wide mutable state: the value stack, the call
// frame stack, globals, the open-upvalue list, and the heap. One VM
// persists across REPL lines: each line is interpreted independently,
// but against a persistent VM state.
type VM struct {
	stack    [stackMax]value.Value
	stackTop int

	frames     [framesMax]CallFrame
	frameCount int

	globals      *table.Table
	openUpvalues *object.Upvalue
	heap         *object.Heap
	initString   *value.ObjString
	grayStack    []value.Obj

	out       io.Writer
	errOut    io.Writer
	startTime time.Time
}

// New returns a VM writing program output to os.Stdout and diagnostics to
// os.Stderr.
func New() *VM {
	return NewWithWriters(os.Stdout, os.Stderr)
}

// NewWithWriters is New with the output streams made explicit, for tests
// that capture program output.
func NewWithWriters(out, errOut io.Writer) *VM {
	vm := &VM{
		heap:      object.NewHeap(),
		globals:   table.New(),
		out:       out,
		errOut:    errOut,
		startTime: time.Now(),
	}
	vm.heap.SetCollector(vm)
	vm.initString = vm.heap.InternString("init")
	vm.defineNatives()
	return vm
}

// SetStressGC forwards to the heap, collecting before every allocation.
func (vm *VM) SetStressGC(on bool) { vm.heap.SetStressGC(on) }

// SetLogGC toggles printing a line at the start/end of each collection.
func (vm *VM) SetLogGC(on bool) { vm.heap.LogGC = on }

// Push and Pop satisfy object.GCHost, letting the compiler keep freshly
// allocated constants reachable across a GC it might itself trigger.
func (vm *VM) Push(v value.Value) { vm.push(v) }
func (vm *VM) Pop() value.Value    { return vm.pop() }

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// Interpret compiles and runs source against this VM's persistent state.
// A compile error is returned as compiler.Errors; a runtime error as
// *RuntimeError; either way, the value stack is empty and the frame
// count is 0 once Interpret returns.
func (vm *VM) Interpret(source string) error {
	fn, err := compiler.Compile(source, vm.heap, vm)
	if err != nil {
		return err
	}

	vm.push(value.NewObj(fn))
	closure := vm.heap.NewClosure(fn)
	vm.pop()
	vm.push(value.NewObj(closure))
	if rerr := vm.call(closure, 0); rerr != nil {
		return rerr
	}
	return vm.run()
}

// --- instruction stream reading ---

func (vm *VM) readByte(frame *CallFrame) byte {
	b := frame.closure.Function.Chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readShort(frame *CallFrame) uint16 {
	hi := vm.readByte(frame)
	lo := vm.readByte(frame)
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readConstant(frame *CallFrame) value.Value {
	idx := vm.readByte(frame)
	return frame.closure.Function.Chunk.Constants[idx]
}

func (vm *VM) readString(frame *CallFrame) *value.ObjString {
	return vm.readConstant(frame).AsString()
}

// addr gives a comparable, orderable key for a stack slot's address. Go
// forbids ordering comparisons on pointers directly; converting to
// uintptr only to compare (never to reconstruct a pointer, and never
// retained across a potential move) is the standard escape hatch for
// exactly this kind of address-ordered intrusive list.
func addr(p *value.Value) uintptr { return uintptr(unsafe.Pointer(p)) }

// run is the dispatch loop: decode one instruction, act on it, repeat
// until the outermost call frame returns or a runtime error is raised.
func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]

	for {
		op := chunk.Op(vm.readByte(frame))

		switch op {
		case chunk.OpConstant:
			vm.push(vm.readConstant(frame))

		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.Bool(true))
		case chunk.OpFalse:
			vm.push(value.Bool(false))
		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := vm.readByte(frame)
			vm.push(vm.stack[frame.slotsBase+int(slot)])
		case chunk.OpSetLocal:
			slot := vm.readByte(frame)
			vm.stack[frame.slotsBase+int(slot)] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := vm.readString(frame)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case chunk.OpDefineGlobal:
			name := vm.readString(frame)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := vm.readString(frame)
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case chunk.OpGetUpvalue:
			slot := vm.readByte(frame)
			vm.push(*frame.closure.Upvalues[slot].Location)
		case chunk.OpSetUpvalue:
			slot := vm.readByte(frame)
			*frame.closure.Upvalues[slot].Location = vm.peek(0)

		case chunk.OpGetProperty:
			if !vm.peek(0).IsObj() {
				return vm.runtimeError("Only instances have properties.")
			}
			instance, ok := vm.peek(0).Obj.(*object.Instance)
			if !ok {
				return vm.runtimeError("Only instances have properties.")
			}
			name := vm.readString(frame)
			if v, ok := instance.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				break
			}
			if err := vm.bindMethod(instance.Class, name); err != nil {
				return err
			}

		case chunk.OpSetProperty:
			if !vm.peek(1).IsObj() {
				return vm.runtimeError("Only instances have fields.")
			}
			instance, ok := vm.peek(1).Obj.(*object.Instance)
			if !ok {
				return vm.runtimeError("Only instances have fields.")
			}
			name := vm.readString(frame)
			instance.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case chunk.OpGetSuper:
			name := vm.readString(frame)
			superclass := vm.pop().Obj.(*object.Class)
			if err := vm.bindMethod(superclass, name); err != nil {
				return err
			}

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater:
			if err := vm.numberCompare(func(a, b float64) bool { return a > b }); err != nil {
				return err
			}
		case chunk.OpLess:
			if err := vm.numberCompare(func(a, b float64) bool { return a < b }); err != nil {
				return err
			}

		case chunk.OpAdd:
			switch {
			case vm.peek(0).IsString() && vm.peek(1).IsString():
				vm.concatenate()
			case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
				b := vm.pop().Num
				a := vm.pop().Num
				vm.push(value.Number(a + b))
			default:
				return vm.runtimeError("Operands must be two numbers or two strings.")
			}
		case chunk.OpSubtract:
			if err := vm.numberBinary(func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case chunk.OpMultiply:
			if err := vm.numberBinary(func(a, b float64) float64 { return a * b }); err != nil {
				return err
			}
		case chunk.OpDivide:
			if err := vm.numberBinary(func(a, b float64) float64 { return a / b }); err != nil {
				return err
			}

		case chunk.OpNot:
			vm.push(value.Bool(vm.pop().IsFalsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().Num))

		case chunk.OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case chunk.OpJump:
			offset := vm.readShort(frame)
			frame.ip += int(offset)
		case chunk.OpJumpIfFalse:
			offset := vm.readShort(frame)
			if vm.peek(0).IsFalsey() {
				frame.ip += int(offset)
			}
		case chunk.OpLoop:
			offset := vm.readShort(frame)
			frame.ip -= int(offset)

		case chunk.OpCall:
			argCount := int(vm.readByte(frame))
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpInvoke:
			name := vm.readString(frame)
			argCount := int(vm.readByte(frame))
			if err := vm.invoke(name, argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpSuperInvoke:
			name := vm.readString(frame)
			argCount := int(vm.readByte(frame))
			superclass := vm.pop().Obj.(*object.Class)
			if err := vm.invokeFromClass(superclass, name, argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpClosure:
			fn := vm.readConstant(frame).Obj.(*object.Function)
			closure := vm.heap.NewClosure(fn)
			vm.push(value.NewObj(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(frame)
				index := vm.readByte(frame)
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[frame.slotsBase+int(index)])
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(&vm.stack[vm.stackTop-1])
			vm.pop()

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(&vm.stack[frame.slotsBase])
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.slotsBase
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpClass:
			name := vm.readString(frame)
			vm.push(value.NewObj(vm.heap.NewClass(name)))

		case chunk.OpInherit:
			if !vm.peek(1).IsObj() {
				return vm.runtimeError("Superclass must be a class.")
			}
			superclass, ok := vm.peek(1).Obj.(*object.Class)
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).Obj.(*object.Class)
			subclass.Methods.AddAll(superclass.Methods)
			vm.pop()

		case chunk.OpMethod:
			name := vm.readString(frame)
			vm.defineMethod(name)

		default:
			return vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}

func (vm *VM) numberCompare(cmp func(a, b float64) bool) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().Num
	a := vm.pop().Num
	vm.push(value.Bool(cmp(a, b)))
	return nil
}

func (vm *VM) numberBinary(op func(a, b float64) float64) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().Num
	a := vm.pop().Num
	vm.push(value.Number(op(a, b)))
	return nil
}

// concatenate keeps both string operands on the stack (peeked, not
// popped) until the interned result exists, so a collection triggered
// by interning can't reclaim either operand first.
func (vm *VM) concatenate() {
	b := vm.peek(0).AsString()
	a := vm.peek(1).AsString()
	result := vm.heap.InternString(a.Chars + b.Chars)
	vm.pop()
	vm.pop()
	vm.push(value.NewObj(result))
}

func (vm *VM) defineMethod(name *value.ObjString) {
	method := vm.peek(0)
	class := vm.peek(1).Obj.(*object.Class)
	class.Methods.Set(name, method)
	vm.pop()
}
