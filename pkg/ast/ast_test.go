package ast_test

import (
	"testing"

	"github.com/thomasrohde/perp/pkg/ast"
)

func TestNodeKinds(t *testing.T) {
	nodes := []ast.Node{
		&ast.Constant{Value: 42},
		&ast.Variable{Name: "x"},
		&ast.BinaryOperation{Op: ast.OpAdd},
		&ast.UnaryOperation{Op: ast.OpNeg},
		&ast.ActionSequence{},
		&ast.Assignment{Ident: "x"},
		&ast.Print{},
	}

	expected := []string{
		"Constant", "Variable", "BinaryOperation", "UnaryOperation",
		"ActionSequence", "Assignment", "Print",
	}

	for i, node := range nodes {
		if got := node.Kind(); got != expected[i] {
			t.Errorf("node %d: got Kind() = %q, want %q", i, got, expected[i])
		}
	}
}

func TestArity(t *testing.T) {
	tests := []struct {
		token string
		want  int
	}{
		{"+", 2},
		{"-", 2},
		{"*", 2},
		{"//", 2},
		{"_", 1},
		{"#", 1},
		{"/", 0},
		{"x", 0},
		{":=", 0},
		{"@", 0},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			if got := ast.Arity(tt.token); got != tt.want {
				t.Errorf("Arity(%q) = %d, want %d", tt.token, got, tt.want)
			}
		})
	}
}

func TestIsMarker(t *testing.T) {
	if !ast.IsMarker(":=") || !ast.IsMarker("@") {
		t.Error("expected := and @ to be statement markers")
	}
	if ast.IsMarker("=") || ast.IsMarker("print") {
		t.Error("unexpected statement marker")
	}
}

func TestSpanIsZero(t *testing.T) {
	if !(ast.Span{}).IsZero() {
		t.Error("empty span should be zero")
	}
	if (ast.Span{File: "a.perp", StartLine: 1, StartCol: 1}).IsZero() {
		t.Error("located span should not be zero")
	}
}
