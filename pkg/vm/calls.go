package vm

import (
	"github.com/kristofer/loxgo/pkg/object"
	"github.com/kristofer/loxgo/pkg/value"
)

// callValue dispatches a call by the callee's object kind.
func (vm *VM) callValue(callee value.Value, argCount int) error {
	if callee.IsObj() {
		switch obj := callee.Obj.(type) {
		case *object.Closure:
			return vm.call(obj, argCount)

		case *object.Class:
			instance := vm.heap.NewInstance(obj)
			vm.stack[vm.stackTop-argCount-1] = value.NewObj(instance)
			if initializer, ok := obj.Methods.Get(vm.initString); ok {
				return vm.call(initializer.Obj.(*object.Closure), argCount)
			} else if argCount != 0 {
				return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
			}
			return nil

		case *object.BoundMethod:
			vm.stack[vm.stackTop-argCount-1] = obj.Receiver
			return vm.call(obj.Method, argCount)

		case *object.Native:
			args := vm.stack[vm.stackTop-argCount : vm.stackTop]
			result, err := obj.Fn(args)
			if err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			vm.stackTop -= argCount + 1
			vm.push(result)
			return nil
		}
	}
	return vm.runtimeError("Can only call functions and classes.")
}

// call pushes a new call frame for closure, checking arity and the call
// frame cap.
func (vm *VM) call(closure *object.Closure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError("Stack overflow.")
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.slotsBase = vm.stackTop - argCount - 1
	return nil
}

// invoke implements OP_INVOKE's combined property-read-then-call fast
// path: a field holding a callable is called directly (field lookup
// wins over method dispatch); otherwise the receiver's class method
// table is consulted.
func (vm *VM) invoke(name *value.ObjString, argCount int) error {
	receiver := vm.peek(argCount)
	if !receiver.IsObj() {
		return vm.runtimeError("Only instances have methods.")
	}
	instance, ok := receiver.Obj.(*object.Instance)
	if !ok {
		return vm.runtimeError("Only instances have methods.")
	}
	if v, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = v
		return vm.callValue(v, argCount)
	}
	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *object.Class, name *value.ObjString, argCount int) error {
	methodVal, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	return vm.call(methodVal.Obj.(*object.Closure), argCount)
}

// bindMethod looks up name on class, and on a hit replaces the receiver
// (currently at peek(0)) with a BoundMethod pairing it to the method.
func (vm *VM) bindMethod(class *object.Class, name *value.ObjString) error {
	methodVal, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), methodVal.Obj.(*object.Closure))
	vm.pop()
	vm.push(value.NewObj(bound))
	return nil
}

// captureUpvalue returns the existing open upvalue for local if one is
// already in the open list (kept in strictly descending address order),
// or inserts a new one in sorted position.
func (vm *VM) captureUpvalue(local *value.Value) *object.Upvalue {
	var prev *object.Upvalue
	cur := vm.openUpvalues
	for cur != nil && addr(cur.Location) > addr(local) {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && addr(cur.Location) == addr(local) {
		return cur
	}

	created := vm.heap.NewUpvalue(local)
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue whose slot is at or above
// boundary: its value is copied out of the stack into the upvalue's own
// Closed field, and Location is retargeted to point at that field.
func (vm *VM) closeUpvalues(boundary *value.Value) {
	for vm.openUpvalues != nil && addr(vm.openUpvalues.Location) >= addr(boundary) {
		uv := vm.openUpvalues
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.NextOpen
		uv.NextOpen = nil
	}
}
