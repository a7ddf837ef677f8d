package vm

import (
	"fmt"
	"strings"
)

// StackFrame is one line of a RuntimeError's synthetic trace: the source
// line active in that frame, and the callee's name ("" for the top-level
// script, printed as "script").
type StackFrame struct {
	Line int
	Name string
}

// RuntimeError is raised for any runtime fault: arity mismatch, stack
// overflow, undefined global, wrong-typed operand, non-callable callee,
// property access on a non-instance, undefined property, non-class
// superclass, too many arguments to a class with no initializer.
type RuntimeError struct {
	Message string
	Frames  []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, f := range e.Frames {
		b.WriteByte('\n')
		if f.Name == "" {
			fmt.Fprintf(&b, "[line %d] in script", f.Line)
		} else {
			fmt.Fprintf(&b, "[line %d] in %s()", f.Line, f.Name)
		}
	}
	return b.String()
}

// runtimeError builds the message and full call-frame trace (top to
// bottom), resets the VM's stack and frame count so the VM remains
// usable after the error, and returns the error for the caller to
// propagate.
func (vm *VM) runtimeError(format string, args ...interface{}) *RuntimeError {
	message := fmt.Sprintf(format, args...)

	frames := make([]StackFrame, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		fn := fr.closure.Function
		instruction := fr.ip - 1
		line := fn.Chunk.Lines[instruction]
		name := ""
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		frames = append(frames, StackFrame{Line: line, Name: name})
	}

	vm.resetStack()
	return &RuntimeError{Message: message, Frames: frames}
}
