package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/kristofer/loxgo/pkg/chunk"
	"github.com/kristofer/loxgo/pkg/object"
)

// Disassemble is an offline pretty-printer for a compiled Chunk: it
// never runs as part of interpretation, only as a debug aid invoked
// explicitly. Rendered with github.com/olekukonko/tablewriter rather
// than hand-aligned fmt.Printf columns.
func Disassemble(w io.Writer, name string, c *chunk.Chunk) {
	fmt.Fprintf(w, "== %s ==\n", name)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Offset", "Line", "Opcode", "Operands"})
	table.SetAutoWrapText(false)

	offset := 0
	lastLine := -1
	for offset < c.Count() {
		next, lineText, op, operands := disassembleInstruction(c, offset, lastLine)
		table.Append([]string{fmt.Sprintf("%04d", offset), lineText, op, operands})
		lastLine = c.Lines[offset]
		offset = next
	}
	table.Render()
}

func disassembleInstruction(c *chunk.Chunk, offset int, lastLine int) (int, string, string, string) {
	line := c.Lines[offset]
	lineText := fmt.Sprintf("%d", line)
	if line == lastLine {
		lineText = "|"
	}

	op := chunk.Op(c.Code[offset])
	switch op {
	case chunk.OpConstant, chunk.OpGetGlobal, chunk.OpDefineGlobal, chunk.OpSetGlobal,
		chunk.OpGetProperty, chunk.OpSetProperty, chunk.OpGetSuper, chunk.OpClass, chunk.OpMethod:
		idx := c.Code[offset+1]
		return offset + 2, lineText, op.String(), constantOperand(c, idx)

	case chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetUpvalue, chunk.OpSetUpvalue, chunk.OpCall:
		slot := c.Code[offset+1]
		return offset + 2, lineText, op.String(), fmt.Sprintf("%d", slot)

	case chunk.OpInvoke, chunk.OpSuperInvoke:
		idx := c.Code[offset+1]
		argc := c.Code[offset+2]
		return offset + 3, lineText, op.String(), fmt.Sprintf("%s (%d args)", constantOperand(c, idx), argc)

	case chunk.OpJump, chunk.OpJumpIfFalse, chunk.OpLoop:
		hi := c.Code[offset+1]
		lo := c.Code[offset+2]
		jumpOffset := int(hi)<<8 | int(lo)
		sign := 1
		if op == chunk.OpLoop {
			sign = -1
		}
		target := offset + 3 + sign*jumpOffset
		return offset + 3, lineText, op.String(), fmt.Sprintf("-> %04d", target)

	case chunk.OpClosure:
		idx := c.Code[offset+1]
		fnOperand := constantOperand(c, idx)
		next := offset + 2
		var upvalues []string
		if fn, ok := c.Constants[idx].Obj.(*object.Function); ok {
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := c.Code[next]
				index := c.Code[next+1]
				kind := "upvalue"
				if isLocal == 1 {
					kind = "local"
				}
				upvalues = append(upvalues, fmt.Sprintf("%s %d", kind, index))
				next += 2
			}
		}
		return next, lineText, op.String(), fmt.Sprintf("%s {%s}", fnOperand, strings.Join(upvalues, ", "))

	default:
		return offset + 1, lineText, op.String(), ""
	}
}

func constantOperand(c *chunk.Chunk, idx byte) string {
	if int(idx) >= len(c.Constants) {
		return fmt.Sprintf("%d <out of range>", idx)
	}
	return fmt.Sprintf("%d '%s'", idx, c.Constants[idx].String())
}
