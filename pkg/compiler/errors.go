package compiler

import (
	"fmt"
	"strings"

	"github.com/kristofer/loxgo/pkg/lexer"
)

// CompileError is one diagnostic produced while compiling. Message already
// has the "[line L] Error at '<lexeme>': " prefix.
type CompileError struct {
	Line    int
	Message string
}

func (e CompileError) Error() string { return e.Message }

// Errors is the accumulated failure returned by Compile when parsing
// surfaced one or more diagnostics; implements error by joining messages
// with newlines, matching how they'd appear printed to stderr one per
// line.
type Errors []CompileError

func (es Errors) Error() string {
	lines := make([]string, len(es))
	for i, e := range es {
		lines[i] = e.Message
	}
	return strings.Join(lines, "\n")
}

// errorAt records a diagnostic anchored at token, suppressing cascading
// reports while in panic mode.
func (c *Compiler) errorAt(tok lexer.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	var where string
	switch tok.Kind {
	case lexer.EOF:
		where = "at end"
	case lexer.Error:
		where = ""
	default:
		where = fmt.Sprintf("at '%s'", tok.Lexeme)
	}

	var msg string
	if where == "" {
		msg = fmt.Sprintf("[line %d] Error: %s", tok.Line, message)
	} else {
		msg = fmt.Sprintf("[line %d] Error %s: %s", tok.Line, where, message)
	}
	c.errors = append(c.errors, CompileError{Line: tok.Line, Message: msg})
}

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.current, message) }
func (c *Compiler) error(message string)          { c.errorAt(c.previous, message) }
