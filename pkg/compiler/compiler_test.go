package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/loxgo/pkg/chunk"
	"github.com/kristofer/loxgo/pkg/compiler"
	"github.com/kristofer/loxgo/pkg/object"
	"github.com/kristofer/loxgo/pkg/value"
)

// fakeHost is a minimal object.GCHost: a bare value stack, enough to
// exercise the compiler's push-before-insert allocation-safety discipline
// without needing a full VM.
type fakeHost struct{ stack []value.Value }

func (h *fakeHost) Push(v value.Value) { h.stack = append(h.stack, v) }
func (h *fakeHost) Pop() value.Value {
	v := h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	return v
}

func compile(t *testing.T, source string) (*object.Function, error) {
	t.Helper()
	heap := object.NewHeap()
	host := &fakeHost{}
	return compiler.Compile(source, heap, host)
}

func TestCompileSimpleScript(t *testing.T) {
	fn, err := compile(t, `print 1 + 2 * 3;`)
	require.NoError(t, err)
	require.NotNil(t, fn)
	assert.Equal(t, 0, fn.Arity)
	assert.Contains(t, fn.Chunk.Code, byte(chunk.OpPrint))
}

func TestCompileSyntaxErrorReportsLine(t *testing.T) {
	_, err := compile(t, "var x = ;\n")
	require.Error(t, err)
	errs, ok := err.(compiler.Errors)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Line)
}

func TestCompileUndeclaredThisIsError(t *testing.T) {
	_, err := compile(t, `fun f() { return this; }`)
	require.Error(t, err)
	errs := err.(compiler.Errors)
	assert.Contains(t, errs[0].Message, "'this' outside of a class")
}

func TestCompileReturnValueFromInitializerIsError(t *testing.T) {
	_, err := compile(t, `class C { init() { return 1; } }`)
	require.Error(t, err)
	errs := err.(compiler.Errors)
	assert.Contains(t, errs[0].Message, "return a value from an initializer")
}

func TestCompileRedeclarationInSameScopeIsError(t *testing.T) {
	_, err := compile(t, `{ var a = 1; var a = 2; }`)
	require.Error(t, err)
	errs := err.(compiler.Errors)
	assert.Contains(t, errs[0].Message, "Already a variable with this name")
}

func TestCompileFunctionRecordsArityAndName(t *testing.T) {
	fn, err := compile(t, `fun add(a, b) { return a + b; } add(1, 2);`)
	require.NoError(t, err)
	require.NotNil(t, fn)
	assert.Equal(t, 0, fn.Arity) // top-level script itself takes no args

	var add *object.Function
	for _, constant := range fn.Chunk.Constants {
		if f, ok := constant.Obj.(*object.Function); ok {
			add = f
		}
	}
	require.NotNil(t, add)
	assert.Equal(t, 2, add.Arity)
	require.NotNil(t, add.Name)
	assert.Equal(t, "add", add.Name.Chars)
}

func TestCompileClassWithSuperclass(t *testing.T) {
	fn, err := compile(t, `
		class A { speak() { print "A"; } }
		class B < A { speak() { super.speak(); } }
	`)
	require.NoError(t, err)
	assert.Contains(t, fn.Chunk.Code, byte(chunk.OpInherit))
}

func TestCompilePanicModeRecoversAtNextStatement(t *testing.T) {
	// The first statement has a syntax error; the second is well-formed
	// and should still be reachable (synchronize() resumes at `;`).
	_, err := compile(t, "var = 1;\nvar ok = 2;")
	require.Error(t, err)
	errs := err.(compiler.Errors)
	// Exactly one error: synchronization suppresses cascading reports.
	assert.Len(t, errs, 1)
}
