package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/diagnostics"
	"github.com/thomasrohde/perp/pkg/machine"
)

func bin(op ast.BinaryOp, l, r ast.Expr) *ast.BinaryOperation {
	return &ast.BinaryOperation{Op: op, Left: l, Right: r}
}

func num(v int64) *ast.Constant { return &ast.Constant{Value: v} }

func name(n string) *ast.Variable { return &ast.Variable{Name: n} }

func TestEmit(t *testing.T) {
	tests := []struct {
		name string
		node ast.Node
		want []machine.Instruction
	}{
		{"constant", num(3), []machine.Instruction{machine.PushConst(3)}},
		{"variable", name("x"), []machine.Instruction{machine.Load("x")}},
		{
			"binary is postorder",
			bin(ast.OpSub, num(5), num(3)),
			[]machine.Instruction{machine.PushConst(5), machine.PushConst(3), machine.Subtract()},
		},
		{
			"unary",
			&ast.UnaryOperation{Op: ast.OpSqrt, Operand: name("y")},
			[]machine.Instruction{machine.Load("y"), machine.SquareRoot()},
		},
		{
			"assignment",
			&ast.Assignment{Ident: "x", Rhs: bin(ast.OpAdd, num(3), num(4))},
			[]machine.Instruction{machine.PushConst(3), machine.PushConst(4), machine.Add(), machine.Store("x")},
		},
		{
			"print",
			&ast.Print{Printee: &ast.UnaryOperation{Op: ast.OpNeg, Operand: num(2)}},
			[]machine.Instruction{machine.PushConst(2), machine.Negate(), machine.Print()},
		},
		{"empty sequence", &ast.ActionSequence{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Emit(tt.node)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("code mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileSequence(t *testing.T) {
	program := &ast.ActionSequence{Actions: []ast.Action{
		&ast.Assignment{Ident: "y", Rhs: num(5)},
		&ast.Print{Printee: &ast.UnaryOperation{Op: ast.OpSqrt, Operand: name("y")}},
		&ast.Print{Printee: bin(ast.OpDiv, bin(ast.OpMul, num(2), num(3)), name("y"))},
	}}

	want := []machine.Instruction{
		machine.PushConst(5), machine.Store("y"),
		machine.Load("y"), machine.SquareRoot(), machine.Print(),
		machine.PushConst(2), machine.PushConst(3), machine.Multiply(), machine.Load("y"), machine.Divide(), machine.Print(),
	}
	got, err := Compile(program)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("code mismatch (-want +got):\n%s", diff)
	}
}

// Every expression contributes exactly one net push; statements none.
func TestStackBalance(t *testing.T) {
	exprs := []ast.Expr{
		num(1),
		name("a"),
		bin(ast.OpAdd, bin(ast.OpMul, num(1), num(2)), &ast.UnaryOperation{Op: ast.OpNeg, Operand: num(3)}),
		&ast.UnaryOperation{Op: ast.OpSqrt, Operand: &ast.UnaryOperation{Op: ast.OpNeg, Operand: name("b")}},
	}
	for _, e := range exprs {
		code, err := Emit(e)
		if err != nil {
			t.Fatal(err)
		}
		if d := netEffect(code); d != 1 {
			t.Errorf("%s: net stack effect %d, want 1", e.Kind(), d)
		}
		code, err = Emit(&ast.Print{Printee: e})
		if err != nil {
			t.Fatal(err)
		}
		if d := netEffect(code); d != 0 {
			t.Errorf("print %s: net stack effect %d, want 0", e.Kind(), d)
		}
	}
}

func netEffect(code []machine.Instruction) int {
	d := 0
	for _, in := range code {
		switch in.Op {
		case machine.OpPushConst, machine.OpLoad:
			d++
		case machine.OpAdd, machine.OpSub, machine.OpMul, machine.OpDiv, machine.OpStore, machine.OpPrint:
			d--
		}
	}
	return d
}

func TestEmitErrors(t *testing.T) {
	tests := []struct {
		name string
		node ast.Node
	}{
		{"nil node", nil},
		{"nil program", (*ast.ActionSequence)(nil)},
		{"nil assignment", (*ast.Assignment)(nil)},
		{"nil print", (*ast.Print)(nil)},
		{"nil rhs", &ast.Assignment{Ident: "x"}},
		{"nil child", bin(ast.OpAdd, num(1), nil)},
		{"bad operator", bin(ast.BinaryOp("%"), num(1), num(2))},
		{"bad unary", &ast.UnaryOperation{Op: ast.UnaryOp("!"), Operand: num(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Emit(tt.node)
			if diagnostics.CodeOf(err) != diagnostics.EAst {
				t.Errorf("expected E_AST, got %v", err)
			}
		})
	}
}

func TestCompileNilProgram(t *testing.T) {
	code, err := Compile(nil)
	if diagnostics.CodeOf(err) != diagnostics.EAst {
		t.Errorf("expected E_AST, got %v", err)
	}
	if code != nil {
		t.Errorf("expected no code, got %v", code)
	}
}
