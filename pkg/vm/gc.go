package vm

import (
	"fmt"

	"github.com/kristofer/loxgo/pkg/compiler"
	"github.com/kristofer/loxgo/pkg/object"
	"github.com/kristofer/loxgo/pkg/value"
)

// CollectGarbage implements object.Collector: the heap calls this when
// allocation pressure crosses its NextGC threshold (or stress mode is
// on). Grounded on original_source/clox/src/memory.c's collectGarbage:
// mark roots, trace to a fixed point, purge the intern table of
// now-unreachable strings, then sweep.
func (vm *VM) CollectGarbage() {
	if vm.heap.LogGC {
		fmt.Fprintln(vm.errOut, "-- gc begin")
	}

	vm.markRoots()
	vm.traceReferences()
	vm.heap.Strings().RemoveWhite()
	vm.heap.Sweep()

	if vm.heap.LogGC {
		fmt.Fprintln(vm.errOut, "-- gc end")
	}
}

// markRoots marks every object reachable without tracing another object
// first: the value stack, every frame's closure, every open upvalue, the
// globals table, the compiler's in-progress function chain (if a compile
// is running when this fires), and the distinguished "init" string.
func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		vm.markObject(uv)
	}
	vm.globals.Mark(vm.markValue)
	compiler.MarkRoots(vm.markValue)
	if vm.initString != nil {
		vm.markObject(vm.initString)
	}
}

func (vm *VM) markValue(v value.Value) {
	if v.IsObj() {
		vm.markObject(v.Obj)
	}
}

// markObject marks o gray (adds it to the worklist) unless it's already
// marked; marking is idempotent, so repeated roots/cycles cost nothing
// extra.
func (vm *VM) markObject(o value.Obj) {
	if o == nil || o.IsMarked() {
		return
	}
	o.SetMarked(true)
	vm.grayStack = append(vm.grayStack, o)
}

// traceReferences drains the gray worklist, blackening each object by
// marking everything it points to.
func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		o := vm.grayStack[len(vm.grayStack)-1]
		vm.grayStack = vm.grayStack[:len(vm.grayStack)-1]
		vm.blacken(o)
	}
}

func (vm *VM) blacken(o value.Obj) {
	switch obj := o.(type) {
	case *value.ObjString:
		// no outgoing references
	case *object.Function:
		if obj.Name != nil {
			vm.markObject(obj.Name)
		}
		for _, c := range obj.Chunk.Constants {
			vm.markValue(c)
		}
	case *object.Native:
		// no outgoing references
	case *object.Closure:
		vm.markObject(obj.Function)
		for _, uv := range obj.Upvalues {
			if uv != nil {
				vm.markObject(uv)
			}
		}
	case *object.Upvalue:
		vm.markValue(obj.Closed)
	case *object.Class:
		vm.markObject(obj.Name)
		obj.Methods.Mark(vm.markValue)
	case *object.Instance:
		vm.markObject(obj.Class)
		obj.Fields.Mark(vm.markValue)
	case *object.BoundMethod:
		vm.markValue(obj.Receiver)
		vm.markObject(obj.Method)
	}
}
