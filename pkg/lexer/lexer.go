// Package lexer implements the Perp language tokenizer.
//
// Perp source is a whitespace-separated stream of prefix-notation tokens.
// A ';' starts a comment that runs to the end of the line.
package lexer

import (
	"fmt"
	"unicode/utf8"

	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/diagnostics"
)

// TokenType identifies the type of a lexer token.
type TokenType int

const (
	TokIdent    TokenType = iota // starts with a letter
	TokInt                       // decimal digits
	TokAssign                    // :=
	TokPrint                     // @
	TokBinaryOp                  // + - * //
	TokUnaryOp                   // _ #
	TokUnknown
)

var tokenTypeNames = map[TokenType]string{
	TokIdent:    "IDENT",
	TokInt:      "INT",
	TokAssign:   "ASSIGN",
	TokPrint:    "PRINT",
	TokBinaryOp: "BINOP",
	TokUnaryOp:  "UNOP",
	TokUnknown:  "UNKNOWN",
}

func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token represents a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Span  ast.Span
}

// IsMarker reports whether the token starts a statement.
func (t Token) IsMarker() bool {
	return t.Type == TokAssign || t.Type == TokPrint
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// IsIdentifier reports whether text matches the identifier pattern: a
// letter followed by anything.
func IsIdentifier(text string) bool {
	return len(text) > 0 && isLetter(text[0])
}

// IsNumeral reports whether text is a non-empty run of decimal digits.
func IsNumeral(text string) bool {
	if text == "" {
		return false
	}
	for i := 0; i < len(text); i++ {
		if !isDigit(text[i]) {
			return false
		}
	}
	return true
}

// Classify returns the token type of a single token's text.
func Classify(text string) TokenType {
	switch {
	case text == ast.AssignMarker:
		return TokAssign
	case text == ast.PrintMarker:
		return TokPrint
	case IsIdentifier(text):
		return TokIdent
	case IsNumeral(text):
		return TokInt
	}
	switch ast.Arity(text) {
	case 2:
		return TokBinaryOp
	case 1:
		return TokUnaryOp
	}
	return TokUnknown
}

type scanner struct {
	source   string
	filename string
	pos      int
	line     int
	col      int
}

func newScanner(source, filename string) *scanner {
	return &scanner{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.source)
}

func (s *scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.pos]
}

func (s *scanner) advance() byte {
	ch := s.source[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else if utf8.RuneStart(ch) {
		s.col++
	}
	return ch
}

func (s *scanner) span(startLine, startCol int) ast.Span {
	return ast.Span{
		File:      s.filename,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   s.line,
		EndCol:    s.col,
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == '\v'
}

func (s *scanner) skipWhitespaceAndComments() {
	for !s.atEnd() {
		ch := s.peek()
		if isSpace(ch) {
			s.advance()
		} else if ch == ';' {
			for !s.atEnd() && s.peek() != '\n' {
				s.advance()
			}
		} else {
			break
		}
	}
}

func (s *scanner) lexError(line, col int, msg string, value any) error {
	return &LexError{Diag: diagnostics.MakeDiag(
		diagnostics.ELex,
		msg,
		value,
		&ast.Span{File: s.filename, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1},
		"",
	)}
}

// LexError wraps a diagnostic for lex errors.
type LexError struct {
	Diag diagnostics.Diagnostic
}

func (e *LexError) Error() string {
	return e.Diag.Message
}

// nextToken scans one maximal run of non-blank characters. The boolean is
// false at end of input.
func (s *scanner) nextToken() (Token, bool, error) {
	s.skipWhitespaceAndComments()
	if s.atEnd() {
		return Token{}, false, nil
	}

	startLine, startCol := s.line, s.col
	startPos := s.pos
	for !s.atEnd() && !isSpace(s.peek()) && s.peek() != ';' {
		s.advance()
	}
	text := s.source[startPos:s.pos]
	if !utf8.ValidString(text) {
		return Token{}, false, s.lexError(startLine, startCol, "invalid UTF-8 in token", fmt.Sprintf("%q", text))
	}

	return Token{
		Type:  Classify(text),
		Value: text,
		Span:  s.span(startLine, startCol),
	}, true, nil
}

// Tokenize breaks source code into a slice of tokens. Unrecognized tokens
// are returned as TokUnknown and rejected by the parser, which knows the
// context they appear in.
func Tokenize(source, filename string) ([]Token, error) {
	s := newScanner(source, filename)
	var tokens []Token

	for {
		tok, ok, err := s.nextToken()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tokens = append(tokens, tok)
	}

	return tokens, nil
}

// FromStrings classifies an already split token list. The tokens carry no
// source location.
func FromStrings(words []string) []Token {
	tokens := make([]Token, len(words))
	for i, w := range words {
		tokens[i] = Token{Type: Classify(w), Value: w}
	}
	return tokens
}

// Strings returns the text of each token.
func Strings(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Value
	}
	return out
}
