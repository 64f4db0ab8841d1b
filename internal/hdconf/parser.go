package hdconf

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// SyntaxError represents a parsing error with location information.
type SyntaxError struct {
	Message string
	Line    int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Document is a parsed configuration. Root is the unnamed top-level group.
type Document struct {
	Root *Setting
}

// Parser parses libconfig text into a Document.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a new Parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses the input and returns a Document.
func Parse(input string) (*Document, error) {
	return NewParser(input).ParseDocument()
}

// ParseFile reads and parses a file. Read failures are returned as-is so
// callers can tell a missing file from a syntax error.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	if p.curToken.Type == TokenError {
		return &SyntaxError{Message: p.curToken.Literal, Line: p.curToken.Line}
	}
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Line: p.curToken.Line}
}

// ParseDocument parses a whole document.
func (p *Parser) ParseDocument() (*Document, error) {
	root := &Setting{Kind: KindGroup, Line: 1}
	if err := p.parseSettingList(root, TokenEOF); err != nil {
		return nil, err
	}
	return &Document{Root: root}, nil
}

// parseSettingList parses settings into group until the end token.
func (p *Parser) parseSettingList(group *Setting, end TokenType) error {
	for p.curToken.Type != end {
		if p.curToken.Type != TokenName {
			return p.errorf("expected setting name, got %s", p.curToken.Type)
		}
		name, line := p.curToken.Literal, p.curToken.Line
		if group.Member(name) != nil {
			return p.errorf("duplicate setting name %q", name)
		}
		p.nextToken()
		if p.curToken.Type != TokenAssign {
			return p.errorf("expected = or : after %q", name)
		}
		p.nextToken()

		s, err := p.parseValue()
		if err != nil {
			return err
		}
		s.Name = name
		s.Line = line
		group.Children = append(group.Children, s)

		if p.curToken.Type == TokenSemicolon || p.curToken.Type == TokenComma {
			p.nextToken()
		}
	}
	return nil
}

// parseValue parses one value starting at curToken and leaves curToken on
// the token after it.
func (p *Parser) parseValue() (*Setting, error) {
	line := p.curToken.Line
	switch p.curToken.Type {
	case TokenLBrace:
		p.nextToken()
		g := &Setting{Kind: KindGroup, Line: line}
		if err := p.parseSettingList(g, TokenRBrace); err != nil {
			return nil, err
		}
		p.nextToken()
		return g, nil

	case TokenLBracket:
		p.nextToken()
		a := &Setting{Kind: KindArray, Line: line}
		if err := p.parseElements(a, TokenRBracket); err != nil {
			return nil, err
		}
		p.nextToken()
		return a, nil

	case TokenLParen:
		p.nextToken()
		l := &Setting{Kind: KindList, Line: line}
		if err := p.parseElements(l, TokenRParen); err != nil {
			return nil, err
		}
		p.nextToken()
		return l, nil

	default:
		return p.parseScalar()
	}
}

// parseElements parses comma-separated array or list elements.
func (p *Parser) parseElements(agg *Setting, end TokenType) error {
	for p.curToken.Type != end {
		if len(agg.Children) > 0 {
			if p.curToken.Type != TokenComma {
				return p.errorf("expected , or %s", end)
			}
			p.nextToken()
			if p.curToken.Type == end {
				break
			}
		}
		v, err := p.parseValue()
		if err != nil {
			return err
		}
		if agg.Kind == KindArray {
			if v.IsAggregate() {
				return p.errorf("arrays may only hold scalar values")
			}
			if len(agg.Children) > 0 && !sameScalarKind(agg.Children[0].Kind, v.Kind) {
				return p.errorf("mixed types in array")
			}
		}
		agg.Children = append(agg.Children, v)
	}
	return nil
}

func sameScalarKind(a, b Kind) bool {
	isInt := func(k Kind) bool { return k == KindInt || k == KindInt64 }
	return a == b || (isInt(a) && isInt(b))
}

func (p *Parser) parseScalar() (*Setting, error) {
	tok := p.curToken
	s := &Setting{Line: tok.Line}

	switch tok.Type {
	case TokenString:
		var sb strings.Builder
		for p.curToken.Type == TokenString {
			sb.WriteString(p.curToken.Literal)
			p.nextToken()
		}
		s.Kind = KindString
		s.Str = sb.String()
		return s, nil

	case TokenBool:
		s.Kind = KindBool
		s.Bool = tok.Literal == "true"

	case TokenInteger, TokenInteger64:
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, p.errorf("integer out of range: %s", tok.Literal)
		}
		s.Kind = intKind(tok.Type == TokenInteger64, v)
		s.Int = v

	case TokenHex, TokenHex64:
		lit := tok.Literal
		neg := strings.HasPrefix(lit, "-")
		lit = strings.TrimLeft(lit, "+-")
		u, err := strconv.ParseUint(lit[2:], 16, 64)
		if err != nil {
			return nil, p.errorf("hex value out of range: %s", tok.Literal)
		}
		v := int64(u)
		if neg {
			v = -v
		}
		s.Kind = intKind(tok.Type == TokenHex64 || u > math.MaxUint32, v)
		s.Int = v
		s.Format = FormatHex

	case TokenFloat:
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorf("invalid float: %s", tok.Literal)
		}
		s.Kind = KindFloat
		s.Float = v

	default:
		return nil, p.errorf("unexpected %s", tok.Type)
	}

	p.nextToken()
	return s, nil
}

func intKind(long bool, v int64) Kind {
	if long || v < math.MinInt32 || v > math.MaxInt32 {
		return KindInt64
	}
	return KindInt
}

// Lookup resolves a path from the root group.
func (d *Document) Lookup(path string) *Setting {
	return d.Root.Lookup(path)
}

// LookupString returns a string setting by path.
func (d *Document) LookupString(path string) (string, bool) {
	return d.Lookup(path).AsString()
}

// LookupInt returns a 32-bit integer setting by path.
func (d *Document) LookupInt(path string) (int32, bool) {
	return d.Lookup(path).AsInt()
}

// LookupInt64 returns an integer setting by path.
func (d *Document) LookupInt64(path string) (int64, bool) {
	return d.Lookup(path).AsInt64()
}
