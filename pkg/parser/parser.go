// Package parser implements the Perp prefix-notation parser.
//
// The token stream is first split into statements at every ':=' or '@'
// marker. Each statement is then parsed left to right with one token of
// lookahead: an operator token is followed by exactly as many expressions
// as its arity.
package parser

import (
	"errors"
	"strconv"

	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/diagnostics"
	"github.com/thomasrohde/perp/pkg/lexer"
)

const stmtHint = "statements start with ':=' or '@'"

type parser struct {
	tokens []lexer.Token
	pos    int
}

// Parse parses an already split token list. Nodes carry no source spans.
func Parse(tokens []string) (*ast.ActionSequence, error) {
	return ParseTokens(lexer.FromStrings(tokens))
}

// ParseSource tokenizes source and parses it. Errors point at file:line:col.
func ParseSource(source, filename string) (*ast.ActionSequence, error) {
	tokens, err := lexer.Tokenize(source, filename)
	if err != nil {
		var le *lexer.LexError
		if errors.As(err, &le) {
			return nil, &diagnostics.Error{Diag: le.Diag}
		}
		return nil, diagnostics.Report(diagnostics.ELex, err.Error(), nil)
	}
	return ParseTokens(tokens)
}

// ParseTokens parses classified tokens into one ActionSequence holding
// every statement in source order. The first malformed statement stops the
// parse.
func ParseTokens(tokens []lexer.Token) (*ast.ActionSequence, error) {
	prog := &ast.ActionSequence{}
	if len(tokens) > 0 {
		prog.Span = spanFromTo(tokens[0].Span, tokens[len(tokens)-1].Span)
	}

	for _, stmt := range SplitStatements(tokens) {
		p := &parser{tokens: stmt}
		action, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Actions = append(prog.Actions, action)
	}
	return prog, nil
}

// SplitStatements cuts tokens before every statement marker. Only the first
// group may lack a leading marker.
func SplitStatements(tokens []lexer.Token) [][]lexer.Token {
	var stmts [][]lexer.Token
	var buf []lexer.Token
	for _, tok := range tokens {
		if tok.IsMarker() && len(buf) > 0 {
			stmts = append(stmts, buf)
			buf = nil
		}
		buf = append(buf, tok)
	}
	if len(buf) > 0 {
		stmts = append(stmts, buf)
	}
	return stmts
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

// last returns the most recently consumed token.
func (p *parser) last() lexer.Token {
	return p.tokens[p.pos-1]
}

func spanFromTo(start, end ast.Span) ast.Span {
	return ast.Span{
		File:      start.File,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

func (p *parser) parseStatement() (ast.Action, error) {
	first := p.advance()

	var action ast.Action
	switch first.Type {
	case lexer.TokAssign:
		if p.atEnd() {
			return nil, diagnostics.ReportAt(diagnostics.ETruncated, "assignment has no target", first.Value, first.Span)
		}
		target := p.advance()
		if target.Type != lexer.TokIdent {
			return nil, diagnostics.ReportAt(diagnostics.EBadTarget, "assignment target must be an identifier", target.Value, target.Span)
		}
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		action = &ast.Assignment{Ident: target.Value, Rhs: rhs}
	case lexer.TokPrint:
		printee, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		action = &ast.Print{Printee: printee}
	default:
		return nil, diagnostics.ReportAt(diagnostics.EUnknownStmt, "unknown statement", first.Value, first.Span).WithHint(stmtHint)
	}

	if !p.atEnd() {
		extra := p.tokens[p.pos]
		return nil, diagnostics.ReportAt(diagnostics.ETrailing, "unexpected token after complete statement", extra.Value, extra.Span).WithHint(stmtHint)
	}

	span := spanFromTo(first.Span, p.last().Span)
	switch a := action.(type) {
	case *ast.Assignment:
		a.Span = span
	case *ast.Print:
		a.Span = span
	}
	return action, nil
}

func (p *parser) parseExpr() (ast.Expr, error) {
	if p.atEnd() {
		prev := p.last()
		return nil, diagnostics.ReportAt(diagnostics.ETruncated, "expression expected after token", prev.Value, prev.Span)
	}

	tok := p.advance()
	switch tok.Type {
	case lexer.TokIdent:
		return &ast.Variable{Span: tok.Span, Name: tok.Value}, nil

	case lexer.TokInt:
		v, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, diagnostics.ReportAt(diagnostics.EUnknownToken, "integer out of range", tok.Value, tok.Span)
		}
		return &ast.Constant{Span: tok.Span, Value: v}, nil

	case lexer.TokBinaryOp:
		op, _ := ast.LookupBinary(tok.Value)
		left, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOperation{
			Span:  spanFromTo(tok.Span, p.last().Span),
			Op:    op,
			Left:  left,
			Right: right,
		}, nil

	case lexer.TokUnaryOp:
		op, _ := ast.LookupUnary(tok.Value)
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOperation{
			Span:    spanFromTo(tok.Span, p.last().Span),
			Op:      op,
			Operand: operand,
		}, nil
	}

	return nil, diagnostics.ReportAt(diagnostics.EUnknownToken, "unknown token", tok.Value, tok.Span)
}
