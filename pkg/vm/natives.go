package vm

import (
	"time"

	"github.com/kristofer/loxgo/pkg/object"
	"github.com/kristofer/loxgo/pkg/value"
)

// defineNatives installs the standard library spec.md §6 allows:
// a single clock() builtin. Non-goals explicitly exclude any broader
// standard library.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", func(args []value.Value) (value.Value, error) {
		return value.Number(time.Since(vm.startTime).Seconds()), nil
	})
}

// defineNative installs fn as a global named name. Both the interned
// name and the native object are pushed onto the stack before the
// globals-table insert (spec.md §4.H "native-binding setup pushes name
// and native before installing"), so neither is vulnerable to a
// collection triggered by the other's own allocation.
func (vm *VM) defineNative(name string, fn object.NativeFn) {
	nameStr := vm.heap.InternString(name)
	vm.push(value.NewObj(nameStr))
	native := vm.heap.NewNative(name, fn)
	vm.push(value.NewObj(native))

	vm.globals.Set(nameStr, vm.peek(0))

	vm.pop()
	vm.pop()
}
