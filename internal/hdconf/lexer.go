// Package hdconf reads and writes the libconfig-syntax documents used by
// N2 EDM header (.hd) files.
package hdconf

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError
	TokenName
	TokenString
	TokenInteger
	TokenInteger64
	TokenHex
	TokenHex64
	TokenFloat
	TokenBool

	TokenAssign    // = or :
	TokenSemicolon // ;
	TokenComma     // ,
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLParen    // (
	TokenRParen    // )
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
}

// String returns a string representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("Token{%s, %q, line %d}", t.Type.String(), t.Literal, t.Line)
}

// String returns the string representation of a TokenType.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "ERROR"
	case TokenName:
		return "NAME"
	case TokenString:
		return "STRING"
	case TokenInteger, TokenInteger64, TokenHex, TokenHex64:
		return "INTEGER"
	case TokenFloat:
		return "FLOAT"
	case TokenBool:
		return "BOOLEAN"
	case TokenAssign:
		return "="
	case TokenSemicolon:
		return ";"
	case TokenComma:
		return ","
	case TokenLBrace:
		return "{"
	case TokenRBrace:
		return "}"
	case TokenLBracket:
		return "["
	case TokenRBracket:
		return "]"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	default:
		return "UNKNOWN"
	}
}

// Lexer tokenizes libconfig input.
type Lexer struct {
	input   string
	pos     int  // Current position in input
	readPos int  // Reading position (after current char)
	ch      byte // Current character
	line    int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// skipSpaceAndComments skips whitespace and #, // and /* */ comments.
func (l *Lexer) skipSpaceAndComments() error {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f':
			l.readChar()
		case l.ch == '#' || (l.ch == '/' && l.peekChar() == '/'):
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			start := l.line
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					return fmt.Errorf("unterminated comment starting on line %d", start)
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
		default:
			return nil
		}
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	if err := l.skipSpaceAndComments(); err != nil {
		return Token{Type: TokenError, Literal: err.Error(), Line: l.line}
	}

	line := l.line
	var tok Token

	switch l.ch {
	case '=', ':':
		tok = Token{Type: TokenAssign, Literal: string(l.ch), Line: line}
	case ';':
		tok = Token{Type: TokenSemicolon, Literal: ";", Line: line}
	case ',':
		tok = Token{Type: TokenComma, Literal: ",", Line: line}
	case '{':
		tok = Token{Type: TokenLBrace, Literal: "{", Line: line}
	case '}':
		tok = Token{Type: TokenRBrace, Literal: "}", Line: line}
	case '[':
		tok = Token{Type: TokenLBracket, Literal: "[", Line: line}
	case ']':
		tok = Token{Type: TokenRBracket, Literal: "]", Line: line}
	case '(':
		tok = Token{Type: TokenLParen, Literal: "(", Line: line}
	case ')':
		tok = Token{Type: TokenRParen, Literal: ")", Line: line}
	case '"':
		return l.readString()
	case 0:
		return Token{Type: TokenEOF, Line: line}
	default:
		if isNameStart(l.ch) {
			return l.readName()
		}
		if isDigit(l.ch) || l.ch == '-' || l.ch == '+' || l.ch == '.' {
			return l.readNumber()
		}
		tok = Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character %q", l.ch), Line: line}
	}

	l.readChar()
	return tok
}

// readName reads a setting name or a boolean literal.
func (l *Lexer) readName() Token {
	line := l.line
	start := l.pos
	for isNameStart(l.ch) || isDigit(l.ch) || l.ch == '-' {
		l.readChar()
	}
	literal := l.input[start:l.pos]
	switch strings.ToLower(literal) {
	case "true", "false":
		return Token{Type: TokenBool, Literal: strings.ToLower(literal), Line: line}
	}
	return Token{Type: TokenName, Literal: literal, Line: line}
}

// readNumber reads an integer, 64-bit integer (L suffix), hex or float literal.
func (l *Lexer) readNumber() Token {
	line := l.line
	start := l.pos

	if l.ch == '-' || l.ch == '+' {
		l.readChar()
	}

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		digits := l.pos
		for isHexDigit(l.ch) {
			l.readChar()
		}
		if l.pos == digits {
			return Token{Type: TokenError, Literal: "malformed hex literal", Line: line}
		}
		literal := l.input[start:l.pos]
		if l.readLongSuffix() {
			return Token{Type: TokenHex64, Literal: literal, Line: line}
		}
		return Token{Type: TokenHex, Literal: literal, Line: line}
	}

	isFloat := false
	digits := 0
	for isDigit(l.ch) {
		l.readChar()
		digits++
	}
	if l.ch == '.' {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
			digits++
		}
	}
	if digits == 0 {
		return Token{Type: TokenError, Literal: "malformed number", Line: line}
	}
	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		l.readChar()
		if l.ch == '-' || l.ch == '+' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			return Token{Type: TokenError, Literal: "malformed exponent", Line: line}
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	literal := l.input[start:l.pos]
	if isFloat {
		return Token{Type: TokenFloat, Literal: literal, Line: line}
	}
	if l.readLongSuffix() {
		return Token{Type: TokenInteger64, Literal: literal, Line: line}
	}
	return Token{Type: TokenInteger, Literal: literal, Line: line}
}

// readLongSuffix consumes an optional L or LL suffix.
func (l *Lexer) readLongSuffix() bool {
	if l.ch != 'L' && l.ch != 'l' {
		return false
	}
	l.readChar()
	if l.ch == 'L' || l.ch == 'l' {
		l.readChar()
	}
	return true
}

// readString reads a double-quoted string with C escapes.
func (l *Lexer) readString() Token {
	line := l.line
	l.readChar() // opening quote

	var sb strings.Builder
	for l.ch != '"' {
		switch l.ch {
		case 0:
			return Token{Type: TokenError, Literal: "unterminated string", Line: line}
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'f':
				sb.WriteByte('\f')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case 'x':
				hi, lo := l.peekChar(), byte(0)
				if !isHexDigit(hi) {
					return Token{Type: TokenError, Literal: "malformed \\x escape", Line: l.line}
				}
				l.readChar()
				lo = l.peekChar()
				if !isHexDigit(lo) {
					return Token{Type: TokenError, Literal: "malformed \\x escape", Line: l.line}
				}
				l.readChar()
				sb.WriteByte(hexValue(hi)<<4 | hexValue(lo))
			default:
				return Token{Type: TokenError, Literal: fmt.Sprintf("unknown escape \\%c", l.ch), Line: l.line}
			}
		default:
			sb.WriteByte(l.ch)
		}
		l.readChar()
	}
	l.readChar() // closing quote

	return Token{Type: TokenString, Literal: sb.String(), Line: line}
}

func isNameStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '*'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func hexValue(ch byte) byte {
	switch {
	case isDigit(ch):
		return ch - '0'
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10
	default:
		return ch - 'A' + 10
	}
}
