package compiler

import (
	"github.com/kristofer/loxgo/pkg/chunk"
	"github.com/kristofer/loxgo/pkg/lexer"
)

// classDeclaration compiles `class Name [< Super] { methods... }`:
// OP_CLASS, an optional superclass hookup that installs a hidden
// `super` local, then one OP_METHOD per method body.
func (c *Compiler) classDeclaration() {
	c.consume(lexer.Identifier, "Expect class name.")
	className := c.previous
	nameConstant := c.identifierConstant(c.previous)
	c.declareVariable()

	c.emitOps(chunk.OpClass, nameConstant)
	c.defineVariable(nameConstant)

	cs := &classState{enclosing: c.class}
	c.class = cs

	if c.match(lexer.Less) {
		c.consume(lexer.Identifier, "Expect superclass name.")
		c.variable(false)

		if c.previous.Lexeme == className.Lexeme {
			c.error("A class can't inherit from itself.")
		}

		c.beginScope()
		c.addLocal("super")
		c.defineVariable(0)

		c.namedVariable(className, false)
		c.emitOp(chunk.OpInherit)
		cs.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(lexer.LeftBrace, "Expect '{' before class body.")
	for !c.check(lexer.RightBrace) && !c.check(lexer.EOF) {
		c.method()
	}
	c.consume(lexer.RightBrace, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop)

	if cs.hasSuperclass {
		c.endScope()
	}

	c.class = cs.enclosing
}

// method compiles one method body. A method literally named "init" is
// the class's initializer: its implicit/explicit return value becomes
// `this` instead of nil (enforced in emitReturn/returnStatement).
func (c *Compiler) method() {
	c.consume(lexer.Identifier, "Expect method name.")
	constant := c.identifierConstant(c.previous)

	kind := MethodFn
	if c.previous.Lexeme == "init" {
		kind = InitializerFn
	}
	c.function(kind, c.previous.Lexeme)
	c.emitOps(chunk.OpMethod, constant)
}
