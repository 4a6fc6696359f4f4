// Package validator implements static checks of Perp programs.
package validator

import (
	"github.com/thomasrohde/perp/pkg/arith"
	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/diagnostics"
)

type scope struct {
	bindings map[string]bool
}

func newScope() *scope {
	return &scope{bindings: make(map[string]bool)}
}

func (s *scope) has(name string) bool {
	return s.bindings[name]
}

func (s *scope) add(name string) {
	s.bindings[name] = true
}

type validator struct {
	diags []diagnostics.Diagnostic
}

// Validate checks program without running it. It reports every variable
// read before any assignment to its name, and every constant
// subexpression that is certain to fail at run time.
func Validate(program *ast.ActionSequence) []diagnostics.Diagnostic {
	v := &validator{}
	if program != nil {
		v.validateAction(program, newScope())
	}
	return v.diags
}

func (v *validator) addDiag(code, msg string, value any, span ast.Span) {
	var sp *ast.Span
	if !span.IsZero() {
		sp = &span
	}
	v.diags = append(v.diags, diagnostics.MakeDiag(code, msg, value, sp, ""))
}

func (v *validator) validateAction(action ast.Action, sc *scope) {
	switch a := action.(type) {
	case *ast.ActionSequence:
		for _, child := range a.Actions {
			v.validateAction(child, sc)
		}
	case *ast.Assignment:
		// The right-hand side is read before the target is bound.
		v.validateExpr(a.Rhs, sc)
		sc.add(a.Ident)
	case *ast.Print:
		v.validateExpr(a.Printee, sc)
	}
}

// validateExpr walks e and returns its value when e is built from constants
// only.
func (v *validator) validateExpr(e ast.Expr, sc *scope) (int64, bool) {
	switch expr := e.(type) {
	case *ast.Constant:
		return expr.Value, true
	case *ast.Variable:
		if !sc.has(expr.Name) {
			v.addDiag(diagnostics.EUnbound, "variable is read before it is assigned", expr.Name, expr.Span)
		}
		return 0, false
	case *ast.BinaryOperation:
		a, aok := v.validateExpr(expr.Left, sc)
		b, bok := v.validateExpr(expr.Right, sc)
		if expr.Op == ast.OpDiv && bok && b == 0 {
			v.addDiag(diagnostics.EDivZero, "division by constant zero", nil, expr.Span)
			return 0, false
		}
		if !aok || !bok {
			return 0, false
		}
		val, err := arith.Binary(expr.Op, a, b)
		return val, err == nil
	case *ast.UnaryOperation:
		a, ok := v.validateExpr(expr.Operand, sc)
		if !ok {
			return 0, false
		}
		val, err := arith.Unary(expr.Op, a)
		if err != nil {
			d := diagnostics.FromError(err, diagnostics.EAst)
			v.addDiag(d.Code, d.Message, d.Value, expr.Span)
			return 0, false
		}
		return val, true
	}
	return 0, false
}
