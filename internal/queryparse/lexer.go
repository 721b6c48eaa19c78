package queryparse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TokenType classifies lexical tokens.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenOperator
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenOperator:
		return "operator"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}

// Token is one lexical token. Start and End are byte offsets into the
// source, so the exact statement text can be sliced back out.
type Token struct {
	Type   TokenType
	Value  string // Decoded value for strings, raw text otherwise
	Start  int
	End    int
	Line   int
	Column int
}

// lexer turns query source into tokens. Comments use // and /* */.
type lexer struct {
	file   string
	input  string
	pos    int
	line   int
	column int
}

func tokenize(file, input string) ([]Token, error) {
	l := &lexer{file: file, input: input, line: 1, column: 1}
	var tokens []Token
	for {
		if err := l.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		if l.pos >= len(l.input) {
			tokens = append(tokens, Token{Type: TokenEOF, Start: l.pos, End: l.pos, Line: l.line, Column: l.column})
			return tokens, nil
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
}

func (l *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{File: l.file, Line: l.line, Column: l.column, Message: fmt.Sprintf(format, args...)}
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

// advance consumes n bytes, tracking line and column.
func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.input); i++ {
		if l.input[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else if l.input[l.pos]&0xC0 != 0x80 {
			l.column++
		}
		l.pos++
	}
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.input) {
		switch c := l.peek(0); {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance(1)
		case c == '/' && l.peek(1) == '/':
			for l.pos < len(l.input) && l.peek(0) != '\n' {
				l.advance(1)
			}
		case c == '/' && l.peek(1) == '*':
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				return l.errorf("unterminated comment")
			}
			l.advance(end + 4)
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (Token, error) {
	start, line, column := l.pos, l.line, l.column
	tok := func(typ TokenType, value string) Token {
		return Token{Type: typ, Value: value, Start: start, End: l.pos, Line: line, Column: column}
	}

	c := l.peek(0)
	switch {
	case c == '=' && l.peek(1) == '=', c == '!' && l.peek(1) == '=',
		c == '<' && l.peek(1) == '=', c == '>' && l.peek(1) == '=':
		l.advance(2)
		return tok(TokenOperator, l.input[start:l.pos]), nil
	case strings.IndexByte("<>()[]{},.:", c) >= 0:
		l.advance(1)
		return tok(TokenOperator, string(c)), nil
	case c == '"' || c == '\'':
		s, err := l.readString(c)
		if err != nil {
			return Token{}, err
		}
		return tok(TokenString, s), nil
	case isDigit(c) || (c == '-' && isDigit(l.peek(1))):
		l.readNumber()
		return tok(TokenNumber, l.input[start:l.pos]), nil
	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentPart(l.peek(0)) {
			l.advance(1)
		}
		return tok(TokenIdent, l.input[start:l.pos]), nil
	default:
		r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
		return Token{}, l.errorf("unexpected character %q", r)
	}
}

func (l *lexer) readString(quote byte) (string, error) {
	var sb strings.Builder
	l.advance(1) // opening quote
	for {
		if l.pos >= len(l.input) {
			return "", l.errorf("unterminated string")
		}
		c := l.peek(0)
		switch {
		case c == quote:
			l.advance(1)
			return sb.String(), nil
		case c == '\n':
			return "", l.errorf("unterminated string")
		case c == '\\':
			l.advance(1)
			esc := l.peek(0)
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case '\\', '"', '\'', '/':
				sb.WriteByte(esc)
			case 'u':
				if l.pos+5 > len(l.input) {
					return "", l.errorf("invalid unicode escape")
				}
				n, err := strconv.ParseUint(l.input[l.pos+1:l.pos+5], 16, 16)
				if err != nil {
					return "", l.errorf("invalid unicode escape")
				}
				sb.WriteRune(rune(n))
				l.advance(4)
			default:
				return "", l.errorf("invalid escape sequence: \\%c", esc)
			}
			l.advance(1)
		default:
			sb.WriteByte(c)
			l.advance(1)
		}
	}
}

func (l *lexer) readNumber() {
	if l.peek(0) == '-' {
		l.advance(1)
	}
	for isDigit(l.peek(0)) {
		l.advance(1)
	}
	if l.peek(0) == '.' && isDigit(l.peek(1)) {
		l.advance(1)
		for isDigit(l.peek(0)) {
			l.advance(1)
		}
	}
	if c := l.peek(0); c == 'e' || c == 'E' {
		n := 1
		if s := l.peek(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(l.peek(n)) {
			l.advance(n)
			for isDigit(l.peek(0)) {
				l.advance(1)
			}
		}
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
