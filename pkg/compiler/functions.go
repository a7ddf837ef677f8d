package compiler

import (
	"github.com/kristofer/loxgo/pkg/chunk"
	"github.com/kristofer/loxgo/pkg/lexer"
	"github.com/kristofer/loxgo/pkg/object"
	"github.com/kristofer/loxgo/pkg/value"
)

// --- scopes ---

func (c *Compiler) beginScope() { c.fn.scopeDepth++ }

// endScope pops every local declared at the scope being left. A captured
// local is closed (OP_CLOSE_UPVALUE hoists its value off the stack into
// the upvalue object) rather than merely popped.
func (c *Compiler) endScope() {
	c.fn.scopeDepth--
	locals := c.fn.locals
	for len(locals) > 0 && locals[len(locals)-1].Depth > c.fn.scopeDepth {
		if locals[len(locals)-1].IsCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	c.fn.locals = locals
}

// --- locals ---

func (c *Compiler) addLocal(name string) {
	if len(c.fn.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.fn.locals = append(c.fn.locals, Local{Name: name, Depth: uninitialized})
}

// declareVariable registers the variable named by c.previous as a new
// local if we're inside a scope (globals are declared lazily, by name,
// at runtime). Redeclaring a name already present in the *same* scope is
// an error.
func (c *Compiler) declareVariable() {
	if c.fn.scopeDepth == 0 {
		return
	}
	name := c.previous.Lexeme
	for i := len(c.fn.locals) - 1; i >= 0; i-- {
		local := c.fn.locals[i]
		if local.Depth != uninitialized && local.Depth < c.fn.scopeDepth {
			break
		}
		if local.Name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

// markInitialized sets the most recent local's depth to the current
// scope, making it visible to reads. Called once its initializer has
// finished compiling; a function declaration calls it before compiling the
// body, so the function can refer to itself recursively.
func (c *Compiler) markInitialized() {
	if c.fn.scopeDepth == 0 {
		return
	}
	c.fn.locals[len(c.fn.locals)-1].Depth = c.fn.scopeDepth
}

func (c *Compiler) resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].Name == name {
			if fs.locals[i].Depth == uninitialized {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// --- upvalues ---

func (c *Compiler) addUpvalue(fs *funcState, index byte, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, Upvalue{IsLocal: isLocal, Index: index})
	return len(fs.upvalues) - 1
}

// resolveUpvalue walks up the enclosing funcState chain to find name as
// a local, capturing it (and every intermediate function's relaying
// upvalue) as it comes back down.
func (c *Compiler) resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(fs.enclosing, name); local != -1 {
		fs.enclosing.locals[local].IsCaptured = true
		return c.addUpvalue(fs, byte(local), true)
	}
	if upvalue := c.resolveUpvalue(fs.enclosing, name); upvalue != -1 {
		return c.addUpvalue(fs, byte(upvalue), false)
	}
	return -1
}

// --- variable declaration front door (used by varDeclaration, params, fun/class names) ---

func (c *Compiler) parseVariable(errorMessage string) byte {
	c.consume(lexer.Identifier, errorMessage)
	c.declareVariable()
	if c.fn.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) defineVariable(global byte) {
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOps(chunk.OpDefineGlobal, global)
}

// --- function bodies (fun declarations and method bodies share this) ---

func (c *Compiler) function(kind FunctionKind, name string) {
	fs := &funcState{enclosing: c.fn, kind: kind}
	fs.function = c.heap.NewFunction()
	c.fn = fs
	fs.function.Name = c.heap.InternString(name)
	slot0 := ""
	if kind == MethodFn || kind == InitializerFn {
		slot0 = "this"
	}
	fs.locals = append(fs.locals, Local{Name: slot0, Depth: 0})

	c.beginScope()
	c.consume(lexer.LeftParen, "Expect '(' after function name.")
	if !c.check(lexer.RightParen) {
		for {
			c.fn.function.Arity++
			if c.fn.function.Arity > maxArgs {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConst := c.parseVariable("Expect parameter name.")
			c.defineVariable(paramConst)
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after parameters.")
	c.consume(lexer.LeftBrace, "Expect '{' before function body.")
	c.block()

	fn := c.endFunction()
	upvalues := fs.upvalues
	c.emitClosure(fn, upvalues)
}

// emitClosure emits OP_CLOSURE idx, trailed by one (isLocal, index) byte
// pair per captured upvalue.
func (c *Compiler) emitClosure(fn *object.Function, upvalues []Upvalue) {
	idx := c.makeConstant(value.NewObj(fn))
	c.emitOps(chunk.OpClosure, idx)
	for _, uv := range upvalues {
		if uv.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.Index)
	}
}
