package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/loxgo/pkg/compiler"
	"github.com/kristofer/loxgo/pkg/object"
	"github.com/kristofer/loxgo/pkg/value"
	"github.com/kristofer/loxgo/pkg/vm"
)

// scratchHost is a minimal object.GCHost, just enough of a value stack for
// the compiler's push-before-insert constant-pool safety rule.
type scratchHost struct{ stack []value.Value }

func (h *scratchHost) Push(v value.Value) { h.stack = append(h.stack, v) }
func (h *scratchHost) Pop() value.Value {
	v := h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	return v
}

func TestDisassembleListsEmittedOpcodes(t *testing.T) {
	fn, err := compiler.Compile(`
		fun add(a, b) { return a + b; }
		print add(1, 2);
	`, object.NewHeap(), &scratchHost{})
	require.NoError(t, err)

	var out bytes.Buffer
	vm.Disassemble(&out, "<script>", fn.Chunk)

	got := out.String()
	assert.Contains(t, got, "== <script> ==")
	assert.Contains(t, got, "OP_CLOSURE")
	assert.Contains(t, got, "OP_DEFINE_GLOBAL")
	assert.Contains(t, got, "OP_PRINT")
}
