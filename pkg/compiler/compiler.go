// Package compiler translates Perp syntax trees into stack machine code.
//
// Code is emitted in postorder: operands first, then the operator, so each
// expression leaves exactly one value on the stack and each statement
// leaves none.
package compiler

import (
	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/diagnostics"
	"github.com/thomasrohde/perp/pkg/machine"
)

type emitter struct {
	code []machine.Instruction
}

// Emit returns the instruction sequence for any node.
func Emit(n ast.Node) ([]machine.Instruction, error) {
	e := &emitter{}
	if err := e.node(n); err != nil {
		return nil, err
	}
	return e.code, nil
}

// Compile returns the code for a whole program.
func Compile(program *ast.ActionSequence) ([]machine.Instruction, error) {
	return Emit(program)
}

func (e *emitter) emit(in machine.Instruction) {
	e.code = append(e.code, in)
}

func (e *emitter) node(n ast.Node) error {
	switch node := n.(type) {
	case ast.Expr:
		return e.expr(node)
	case ast.Action:
		return e.action(node)
	}
	return diagnostics.Report(diagnostics.EAst, "cannot compile node", kindOf(n))
}

func (e *emitter) action(a ast.Action) error {
	switch act := a.(type) {
	case *ast.ActionSequence:
		if act == nil {
			return diagnostics.Report(diagnostics.EAst, "missing program", nil)
		}
		for _, child := range act.Actions {
			if err := e.action(child); err != nil {
				return err
			}
		}
		return nil
	case *ast.Assignment:
		if act == nil {
			return diagnostics.Report(diagnostics.EAst, "missing statement", nil)
		}
		if err := e.expr(act.Rhs); err != nil {
			return err
		}
		e.emit(machine.Store(act.Ident))
		return nil
	case *ast.Print:
		if act == nil {
			return diagnostics.Report(diagnostics.EAst, "missing statement", nil)
		}
		if err := e.expr(act.Printee); err != nil {
			return err
		}
		e.emit(machine.Print())
		return nil
	}
	return diagnostics.Report(diagnostics.EAst, "cannot compile statement", kindOf(a))
}

func (e *emitter) expr(x ast.Expr) error {
	switch expr := x.(type) {
	case *ast.Constant:
		e.emit(machine.PushConst(expr.Value))
		return nil
	case *ast.Variable:
		e.emit(machine.Load(expr.Name))
		return nil
	case *ast.BinaryOperation:
		op, ok := machine.BinaryOpcode(expr.Op)
		if !ok {
			return diagnostics.ReportAt(diagnostics.EAst, "unknown binary operator", string(expr.Op), expr.Span)
		}
		if err := e.expr(expr.Left); err != nil {
			return err
		}
		if err := e.expr(expr.Right); err != nil {
			return err
		}
		e.emit(machine.Instruction{Op: op})
		return nil
	case *ast.UnaryOperation:
		op, ok := machine.UnaryOpcode(expr.Op)
		if !ok {
			return diagnostics.ReportAt(diagnostics.EAst, "unknown unary operator", string(expr.Op), expr.Span)
		}
		if err := e.expr(expr.Operand); err != nil {
			return err
		}
		e.emit(machine.Instruction{Op: op})
		return nil
	}
	return diagnostics.Report(diagnostics.EAst, "cannot compile expression", kindOf(x))
}

func kindOf(n ast.Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.Kind()
}
