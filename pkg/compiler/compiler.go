// Package compiler implements a single-pass Pratt compiler: tokens flow
// in from pkg/lexer and bytecode flows straight out into a
// pkg/chunk.Chunk, with no intermediate AST. One Compiler drives a
// stack of function-scoped contexts (funcState) for nested
// function/method bodies, and a parallel stack of class contexts
// (classState) gating `this`/`super`.
package compiler

import (
	"github.com/kristofer/loxgo/pkg/chunk"
	"github.com/kristofer/loxgo/pkg/lexer"
	"github.com/kristofer/loxgo/pkg/object"
	"github.com/kristofer/loxgo/pkg/value"
)

// FunctionKind distinguishes the four shapes a compiled body can take;
// it controls slot-0 naming, implicit-return value, and whether a bare
// `return expr;` is legal.
type FunctionKind int

const (
	ScriptFn FunctionKind = iota
	PlainFn
	MethodFn
	InitializerFn
)

const (
	maxLocals   = 256
	maxUpvalues = 256
	maxArgs     = 255
)

// uninitialized marks a local whose initializer hasn't finished
// compiling yet: referencing it from within its own initializer is an
// error.
const uninitialized = -1

// Local is one slot of a funcState's flat local-variable array.
type Local struct {
	Name       string
	Depth      int
	IsCaptured bool
}

// Upvalue is a descriptor recorded in a funcState's upvalue array: either
// a direct capture of the immediately enclosing function's local
// (IsLocal true, Index a local slot) or a capture relayed from a
// function further out (IsLocal false, Index an upvalue slot of the
// enclosing funcState).
type Upvalue struct {
	IsLocal bool
	Index   byte
}

// funcState is one nested compiler context: one per function/method body
// currently being compiled, linked to its enclosing context to form a
// stack of in-progress function bodies.
type funcState struct {
	enclosing *funcState
	function  *object.Function
	kind      FunctionKind

	locals     []Local
	upvalues   []Upvalue
	scopeDepth int
}

// classState tracks whether a class body is currently being compiled and
// whether it declared a superclass, gating `this`/`super` resolution.
type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// Compiler drives the whole single-pass parse-and-emit process.
type Compiler struct {
	lex       *lexer.Lexer
	previous  lexer.Token
	current   lexer.Token
	hadError  bool
	panicMode bool
	errors    Errors

	heap *object.Heap
	host object.GCHost

	fn    *funcState
	class *classState
}

// active is the compiler instance currently running, if any, so the
// garbage collector can mark its in-progress function chain as a root.
// Single-threaded by design: at most one Compile call is ever in flight.
var active *Compiler

// Compile parses source and emits bytecode into a fresh top-level
// Function, returned only if no error was reported. heap is where every
// Function/String the compiler allocates comes from; host lets
// makeConstant keep freshly minted values reachable across a GC that
// another allocation might trigger mid-compile.
func Compile(source string, heap *object.Heap, host object.GCHost) (*object.Function, error) {
	c := &Compiler{
		lex:  lexer.New(source),
		heap: heap,
		host: host,
	}
	prevActive := active
	active = c
	defer func() { active = prevActive }()

	c.fn = &funcState{function: heap.NewFunction(), kind: ScriptFn}
	c.fn.locals = append(c.fn.locals, Local{Name: "", Depth: 0})

	c.advance()
	for !c.match(lexer.EOF) {
		c.declaration()
	}
	fn := c.endFunction()

	if c.hadError {
		return nil, c.errors
	}
	return fn, nil
}

// MarkRoots marks every Function object reachable from the currently
// active compiler's context chain, via mark. A no-op when no compile is
// in progress.
func MarkRoots(mark func(value.Value)) {
	for fs := activeFuncState(); fs != nil; fs = fs.enclosing {
		mark(value.NewObj(fs.function))
	}
}

func activeFuncState() *funcState {
	if active == nil {
		return nil
	}
	return active.fn
}

// --- token stream plumbing ---

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.Next()
		if c.current.Kind != lexer.Error {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(kind lexer.TokenKind) bool { return c.current.Kind == kind }

func (c *Compiler) match(kind lexer.TokenKind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind lexer.TokenKind, message string) {
	if c.current.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// synchronize implements panic-mode statement-level resynchronization:
// skip tokens until a statement boundary (past a ';', or at the next
// statement-starting keyword).
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Kind != lexer.EOF {
		if c.previous.Kind == lexer.Semicolon {
			return
		}
		switch c.current.Kind {
		case lexer.Class, lexer.Fun, lexer.Var, lexer.For, lexer.If,
			lexer.While, lexer.Print, lexer.Return:
			return
		}
		c.advance()
	}
}

// --- emission helpers ---

func (c *Compiler) currentChunk() *chunk.Chunk { return c.fn.function.Chunk }

func (c *Compiler) emitByte(b byte) {
	c.currentChunk().Write(b, c.previous.Line)
}

func (c *Compiler) emitOp(op chunk.Op) {
	c.currentChunk().WriteOp(op, c.previous.Line)
}

func (c *Compiler) emitOps(op chunk.Op, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

// emitConstant adds v to the current chunk's constant pool and emits
// OP_CONSTANT idx. v is pushed onto the host stack before the pool append
// and popped right after (the push-before-insert rule for constants);
// Chunk.AddConstant itself is a plain slice append and never triggers a
// collection.
func (c *Compiler) emitConstant(v value.Value) {
	idx := c.makeConstant(v)
	c.emitOps(chunk.OpConstant, idx)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	c.host.Push(v)
	idx := c.currentChunk().AddConstant(v)
	c.host.Pop()
	if idx > chunk.MaxConstants-1 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

// identifierConstant interns name and installs it as a constant, for use
// as an OP_*_GLOBAL/OP_GET_PROPERTY/OP_METHOD operand.
func (c *Compiler) identifierConstant(tok lexer.Token) byte {
	return c.makeConstant(value.NewObj(c.heap.InternString(tok.Lexeme)))
}

func (c *Compiler) emitJump(op chunk.Op) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.currentChunk().Count() - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := c.currentChunk().Count() - offset - 2
	if jump > 0xffff {
		c.error("Too much code to jump over.")
	}
	code := c.currentChunk().Code
	code[offset] = byte((jump >> 8) & 0xff)
	code[offset+1] = byte(jump & 0xff)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := c.currentChunk().Count() - loopStart + 2
	if offset > 0xffff {
		c.error("Loop body too large.")
	}
	c.emitByte(byte((offset >> 8) & 0xff))
	c.emitByte(byte(offset & 0xff))
}

func (c *Compiler) emitReturn() {
	if c.fn.kind == InitializerFn {
		c.emitOps(chunk.OpGetLocal, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

// endFunction finalizes the current funcState's chunk and pops back to
// its enclosing context, returning the finished Function.
func (c *Compiler) endFunction() *object.Function {
	c.emitReturn()
	fn := c.fn.function
	fn.UpvalueCount = len(c.fn.upvalues)
	if c.fn.enclosing != nil {
		c.fn = c.fn.enclosing
	}
	return fn
}
