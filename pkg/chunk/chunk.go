// Package chunk defines the compiled-code container: an append-only
// byte stream of instructions, a parallel per-byte line-number array,
// and a pooled constant table.
//
// The instruction stream is raw bytes rather than a slice of decoded
// instruction structs, because jump opcodes are backpatched by byte
// offset after the fact (pkg/compiler writes a placeholder 16-bit
// operand, keeps the offset, and overwrites those two bytes once the
// jump target is known) and because the VM's instruction pointer
// advances byte-by-byte with variable-width operands.
package chunk

import "github.com/kristofer/loxgo/pkg/value"

// Op is a single-byte opcode.
type Op byte

const (
	OpConstant Op = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpGetUpvalue
	OpSetUpvalue
	OpGetProperty
	OpSetProperty
	OpGetSuper
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpInvoke
	OpSuperInvoke
	OpClosure
	OpCloseUpvalue
	OpReturn
	OpClass
	OpInherit
	OpMethod
)

var opNames = map[Op]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpSetUpvalue:   "OP_SET_UPVALUE",
	OpGetProperty:  "OP_GET_PROPERTY",
	OpSetProperty:  "OP_SET_PROPERTY",
	OpGetSuper:     "OP_GET_SUPER",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpInvoke:       "OP_INVOKE",
	OpSuperInvoke:  "OP_SUPER_INVOKE",
	OpClosure:      "OP_CLOSURE",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpReturn:       "OP_RETURN",
	OpClass:        "OP_CLASS",
	OpInherit:      "OP_INHERIT",
	OpMethod:       "OP_METHOD",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "OP_UNKNOWN"
}

// MaxConstants is the ceiling a single-byte constant index imposes.
const MaxConstants = 256

// Chunk is a unit of compiled code: one per Function.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

// New returns an empty chunk.
func New() *Chunk {
	return &Chunk{}
}

// Write appends one instruction byte (an opcode or an operand byte) at
// the given source line. Code and Lines always grow in lockstep.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp is Write for an opcode, for call-site readability.
func (c *Chunk) WriteOp(op Op, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends v to the constant pool and returns its index.
// Callers must check against MaxConstants themselves (the compiler turns
// that into a compile error with a source line; this package has no line
// to report).
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Count is the current length of the instruction stream, i.e. the offset
// the next Write will land at. Used by the compiler to compute jump
// targets and loop-back offsets.
func (c *Chunk) Count() int { return len(c.Code) }
