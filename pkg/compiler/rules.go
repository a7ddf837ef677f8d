package compiler

import (
	"strconv"

	"github.com/kristofer/loxgo/pkg/chunk"
	"github.com/kristofer/loxgo/pkg/lexer"
	"github.com/kristofer/loxgo/pkg/value"
)

// Precedence, ascending.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[lexer.TokenKind]parseRule

func init() {
	rules = map[lexer.TokenKind]parseRule{
		lexer.LeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: PrecCall},
		lexer.Dot:          {infix: (*Compiler).dot, precedence: PrecCall},
		lexer.Minus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: PrecTerm},
		lexer.Plus:         {infix: (*Compiler).binary, precedence: PrecTerm},
		lexer.Slash:        {infix: (*Compiler).binary, precedence: PrecFactor},
		lexer.Star:         {infix: (*Compiler).binary, precedence: PrecFactor},
		lexer.Bang:         {prefix: (*Compiler).unary},
		lexer.BangEqual:    {infix: (*Compiler).binary, precedence: PrecEquality},
		lexer.EqualEqual:   {infix: (*Compiler).binary, precedence: PrecEquality},
		lexer.Greater:      {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.GreaterEqual: {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.Less:         {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.LessEqual:    {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.Identifier:   {prefix: (*Compiler).variable},
		lexer.String:       {prefix: (*Compiler).stringLiteral},
		lexer.Number:       {prefix: (*Compiler).number},
		lexer.And:          {infix: (*Compiler).and_, precedence: PrecAnd},
		lexer.Or:           {infix: (*Compiler).or_, precedence: PrecOr},
		lexer.False:        {prefix: (*Compiler).literal},
		lexer.Nil:          {prefix: (*Compiler).literal},
		lexer.True:         {prefix: (*Compiler).literal},
		lexer.Super:        {prefix: (*Compiler).super_},
		lexer.This:         {prefix: (*Compiler).this_},
	}
}

func getRule(kind lexer.TokenKind) parseRule {
	if r, ok := rules[kind]; ok {
		return r
	}
	return parseRule{}
}

// parsePrecedence consumes the prefix rule of the current token, then
// keeps consuming infix rules while the current token's precedence is at
// least prec — the core Pratt-parsing step.
func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	rule := getRule(c.previous.Kind)
	if rule.prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= PrecAssignment
	rule.prefix(c, canAssign)

	for prec <= getRule(c.current.Kind).precedence {
		c.advance()
		infixRule := getRule(c.previous.Kind).infix
		infixRule(c, canAssign)
	}

	if canAssign && c.match(lexer.Equal) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }

// --- prefix rules ---

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	kind := c.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch kind {
	case lexer.Minus:
		c.emitOp(chunk.OpNegate)
	case lexer.Bang:
		c.emitOp(chunk.OpNot)
	}
}

func (c *Compiler) number(canAssign bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.Number(n))
}

// stringLiteral strips the surrounding quotes the scanner leaves in the
// lexeme: string lexemes include the quotes themselves.
func (c *Compiler) stringLiteral(canAssign bool) {
	raw := c.previous.Lexeme
	s := raw[1 : len(raw)-1]
	c.emitConstant(value.NewObj(c.heap.InternString(s)))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Kind {
	case lexer.False:
		c.emitOp(chunk.OpFalse)
	case lexer.Nil:
		c.emitOp(chunk.OpNil)
	case lexer.True:
		c.emitOp(chunk.OpTrue)
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

// namedVariable resolves name against the local, then upvalue, then
// global namespaces (in that order) and emits the matching get/set pair,
// honoring canAssign the same way dot() does for properties.
func (c *Compiler) namedVariable(name lexer.Token, canAssign bool) {
	var getOp, setOp chunk.Op
	var arg int

	if local := c.resolveLocal(c.fn, name.Lexeme); local != -1 {
		arg = local
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	} else if upvalue := c.resolveUpvalue(c.fn, name.Lexeme); upvalue != -1 {
		arg = upvalue
		getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
	}

	if canAssign && c.match(lexer.Equal) {
		c.expression()
		c.emitOps(setOp, byte(arg))
	} else {
		c.emitOps(getOp, byte(arg))
	}
}

func (c *Compiler) this_(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.namedVariable(lexer.Token{Kind: lexer.Identifier, Lexeme: "this"}, false)
}

func (c *Compiler) super_(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.class.hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}

	c.consume(lexer.Dot, "Expect '.' after 'super'.")
	c.consume(lexer.Identifier, "Expect superclass method name.")
	name := c.identifierConstant(c.previous)

	c.namedVariable(lexer.Token{Kind: lexer.Identifier, Lexeme: "this"}, false)
	if c.match(lexer.LeftParen) {
		argCount := c.argumentList()
		c.namedVariable(lexer.Token{Kind: lexer.Identifier, Lexeme: "super"}, false)
		c.emitOps(chunk.OpSuperInvoke, name)
		c.emitByte(argCount)
	} else {
		c.namedVariable(lexer.Token{Kind: lexer.Identifier, Lexeme: "super"}, false)
		c.emitOps(chunk.OpGetSuper, name)
	}
}

// --- infix rules ---

func (c *Compiler) binary(canAssign bool) {
	kind := c.previous.Kind
	rule := getRule(kind)
	c.parsePrecedence(rule.precedence + 1)

	switch kind {
	case lexer.BangEqual:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case lexer.EqualEqual:
		c.emitOp(chunk.OpEqual)
	case lexer.Greater:
		c.emitOp(chunk.OpGreater)
	case lexer.GreaterEqual:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case lexer.Less:
		c.emitOp(chunk.OpLess)
	case lexer.LessEqual:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	case lexer.Plus:
		c.emitOp(chunk.OpAdd)
	case lexer.Minus:
		c.emitOp(chunk.OpSubtract)
	case lexer.Star:
		c.emitOp(chunk.OpMultiply)
	case lexer.Slash:
		c.emitOp(chunk.OpDivide)
	}
}

func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOps(chunk.OpCall, argCount)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.Identifier, "Expect property name after '.'.")
	name := c.identifierConstant(c.previous)

	if canAssign && c.match(lexer.Equal) {
		c.expression()
		c.emitOps(chunk.OpSetProperty, name)
	} else if c.match(lexer.LeftParen) {
		argCount := c.argumentList()
		c.emitOps(chunk.OpInvoke, name)
		c.emitByte(argCount)
	} else {
		c.emitOps(chunk.OpGetProperty, name)
	}
}

func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) argumentList() byte {
	argCount := 0
	if !c.check(lexer.RightParen) {
		for {
			c.expression()
			if argCount == maxArgs {
				c.error("Can't have more than 255 arguments.")
			}
			argCount++
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after arguments.")
	return byte(argCount)
}

// --- statements & declarations ---

func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.Class):
		c.classDeclaration()
	case c.match(lexer.Fun):
		c.funDeclaration()
	case c.match(lexer.Var):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function(PlainFn, c.previous.Lexeme)
	c.defineVariable(global)
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(lexer.Equal) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(lexer.Semicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.Print):
		c.printStatement()
	case c.match(lexer.For):
		c.forStatement()
	case c.match(lexer.If):
		c.ifStatement()
	case c.match(lexer.Return):
		c.returnStatement()
	case c.match(lexer.While):
		c.whileStatement()
	case c.match(lexer.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(lexer.RightBrace) && !c.check(lexer.EOF) {
		c.declaration()
	}
	c.consume(lexer.RightBrace, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(lexer.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.currentChunk().Count()
	c.consume(lexer.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.LeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(lexer.Semicolon):
		// no initializer
	case c.match(lexer.Var):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.currentChunk().Count()
	exitJump := -1
	if !c.match(lexer.Semicolon) {
		c.expression()
		c.consume(lexer.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.match(lexer.RightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := c.currentChunk().Count()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(lexer.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}

	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.fn.kind == ScriptFn {
		c.error("Can't return from top-level code.")
	}
	if c.match(lexer.Semicolon) {
		c.emitReturn()
		return
	}
	if c.fn.kind == InitializerFn {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}
