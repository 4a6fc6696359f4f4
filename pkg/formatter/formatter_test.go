package formatter

import (
	"bytes"
	"testing"

	"github.com/thomasrohde/perp/pkg/ast"
)

func c(v int64) *ast.Constant     { return &ast.Constant{Value: v} }
func v(name string) *ast.Variable { return &ast.Variable{Name: name} }

func TestFormatExpr(t *testing.T) {
	tests := []struct {
		name     string
		expr     ast.Expr
		expected string
	}{
		{"constant", c(42), "42"},
		{"variable", v("x"), "x"},
		{"binary", &ast.BinaryOperation{Op: ast.OpAdd, Left: c(3), Right: c(4)}, "( 3 + 4 )"},
		{"nested", &ast.BinaryOperation{
			Op:    ast.OpMul,
			Left:  &ast.BinaryOperation{Op: ast.OpSub, Left: v("a"), Right: c(1)},
			Right: c(2),
		}, "( ( a - 1 ) * 2 )"},
		{"negate", &ast.UnaryOperation{Op: ast.OpNeg, Operand: v("x")}, "_x"},
		{"sqrt of sum", &ast.UnaryOperation{
			Op:      ast.OpSqrt,
			Operand: &ast.BinaryOperation{Op: ast.OpDiv, Left: c(9), Right: c(3)},
		}, "#( 9 // 3 )"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatExpr(tt.expr); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFormatProgram(t *testing.T) {
	program := &ast.ActionSequence{Actions: []ast.Action{
		&ast.Assignment{Ident: "x", Rhs: &ast.BinaryOperation{Op: ast.OpAdd, Left: c(3), Right: c(4)}},
		&ast.Print{Printee: &ast.BinaryOperation{Op: ast.OpSub, Left: v("x"), Right: c(2)}},
	}}

	expected := "x := ( 3 + 4 )\nPrint ( x - 2 )\n"
	if got := Format(program); got != expected {
		t.Errorf("got %q, want %q", got, expected)
	}
}

func TestFormatEmptySequence(t *testing.T) {
	if got := Format(&ast.ActionSequence{}); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestDisplayProgram(t *testing.T) {
	program := &ast.ActionSequence{Actions: []ast.Action{
		&ast.Print{Printee: c(8)},
	}}
	var buf bytes.Buffer
	if err := DisplayProgram(&buf, program); err != nil {
		t.Fatal(err)
	}
	expected := Heading + "Print 8\n"
	if buf.String() != expected {
		t.Errorf("got %q, want %q", buf.String(), expected)
	}
}
