package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, source string) []Token {
	t.Helper()
	l := New(source)
	var tokens []Token
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return tokens
}

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestPunctuationAndOperators(t *testing.T) {
	tokens := scanAll(t, "(){};,.+-*!!====<<=>>=/")
	got := kinds(tokens)
	want := []TokenKind{
		LeftParen, RightParen, LeftBrace, RightBrace, Semicolon, Comma, Dot,
		Plus, Minus, Star, Bang, BangEqual, EqualEqual, Equal, Less, LessEqual,
		Greater, GreaterEqual, Slash, EOF,
	}
	assert.Equal(t, want, got)
}

func TestKeywordsAreNotIdentifiers(t *testing.T) {
	tokens := scanAll(t, "class else false for fun if nil or print return super this true var while and")
	got := kinds(tokens)
	want := []TokenKind{
		Class, Else, False, For, Fun, If, Nil, Or, Print, Return, Super,
		This, True, Var, While, And, EOF,
	}
	assert.Equal(t, want, got)
}

func TestIdentifierNotKeyword(t *testing.T) {
	tokens := scanAll(t, "classroom")
	require.Len(t, tokens, 2)
	assert.Equal(t, Identifier, tokens[0].Kind)
	assert.Equal(t, "classroom", tokens[0].Lexeme)
}

func TestStringLexemeIncludesQuotes(t *testing.T) {
	tokens := scanAll(t, `"hello world"`)
	require.Len(t, tokens, 2)
	assert.Equal(t, String, tokens[0].Kind)
	assert.Equal(t, `"hello world"`, tokens[0].Lexeme)
}

func TestUnterminatedStringIsError(t *testing.T) {
	tokens := scanAll(t, `"oops`)
	require.Len(t, tokens, 2)
	assert.Equal(t, Error, tokens[0].Kind)
	assert.Equal(t, "Unterminated string.", tokens[0].Lexeme)
}

func TestNumberLiteral(t *testing.T) {
	tokens := scanAll(t, "3.14 42")
	require.Len(t, tokens, 3)
	assert.Equal(t, "3.14", tokens[0].Lexeme)
	assert.Equal(t, "42", tokens[1].Lexeme)
}

func TestCommentsAndWhitespaceAreSkipped(t *testing.T) {
	tokens := scanAll(t, "var x = 1; // a comment\nvar y = 2;")
	got := kinds(tokens)
	want := []TokenKind{
		Var, Identifier, Equal, Number, Semicolon,
		Var, Identifier, Equal, Number, Semicolon, EOF,
	}
	assert.Equal(t, want, got)
	// the second "var" is on line 2.
	assert.Equal(t, 2, tokens[5].Line)
}

func TestUnexpectedCharacterIsError(t *testing.T) {
	tokens := scanAll(t, "@")
	require.Len(t, tokens, 2)
	assert.Equal(t, Error, tokens[0].Kind)
}
