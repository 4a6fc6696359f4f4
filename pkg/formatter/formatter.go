// Package formatter renders Perp programs in infix notation.
package formatter

import (
	"io"
	"strconv"
	"strings"

	"github.com/thomasrohde/perp/pkg/ast"
)

// Heading precedes the infix rendering of a whole program.
const Heading = "\nThe program, with expressions in infix notation:\n\n"

// FormatExpr renders one expression. Every binary operation is fully
// parenthesized, so the output never depends on operator precedence.
func FormatExpr(e ast.Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e)
	return sb.String()
}

// Format renders a node. Statements end with a newline.
func Format(n ast.Node) string {
	var sb strings.Builder
	writeNode(&sb, n)
	return sb.String()
}

// WriteNode writes the infix rendering of n to w.
func WriteNode(w io.Writer, n ast.Node) error {
	_, err := io.WriteString(w, Format(n))
	return err
}

// DisplayProgram writes the heading followed by the program.
func DisplayProgram(w io.Writer, program ast.Node) error {
	if _, err := io.WriteString(w, Heading); err != nil {
		return err
	}
	return WriteNode(w, program)
}

func writeNode(sb *strings.Builder, n ast.Node) {
	switch node := n.(type) {
	case ast.Expr:
		writeExpr(sb, node)
	case ast.Action:
		writeAction(sb, node)
	}
}

func writeAction(sb *strings.Builder, a ast.Action) {
	switch act := a.(type) {
	case *ast.ActionSequence:
		for _, child := range act.Actions {
			writeAction(sb, child)
		}
	case *ast.Assignment:
		sb.WriteString(act.Ident)
		sb.WriteString(" := ")
		writeExpr(sb, act.Rhs)
		sb.WriteByte('\n')
	case *ast.Print:
		sb.WriteString("Print ")
		writeExpr(sb, act.Printee)
		sb.WriteByte('\n')
	}
}

func writeExpr(sb *strings.Builder, e ast.Expr) {
	switch expr := e.(type) {
	case *ast.Constant:
		sb.WriteString(strconv.FormatInt(expr.Value, 10))
	case *ast.Variable:
		sb.WriteString(expr.Name)
	case *ast.BinaryOperation:
		sb.WriteString("( ")
		writeExpr(sb, expr.Left)
		sb.WriteString(" " + string(expr.Op) + " ")
		writeExpr(sb, expr.Right)
		sb.WriteString(" )")
	case *ast.UnaryOperation:
		sb.WriteString(string(expr.Op))
		writeExpr(sb, expr.Operand)
	case nil:
		sb.WriteString("<nil>")
	}
}
