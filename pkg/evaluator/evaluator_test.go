package evaluator_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/diagnostics"
	"github.com/thomasrohde/perp/pkg/evaluator"
	"github.com/thomasrohde/perp/pkg/parser"
	"github.com/thomasrohde/perp/pkg/symtab"
)

// --- helpers ---

// run parses and executes Perp source, failing the test on parse errors.
func run(t *testing.T, src string) (*evaluator.ExecResult, string, error) {
	t.Helper()
	prog, err := parser.ParseSource(src, "test.perp")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	var out bytes.Buffer
	res, err := evaluator.Execute(context.Background(), prog, nil, evaluator.ExecOptions{Out: &out})
	return res, out.String(), err
}

func mustGet(t *testing.T, table *symtab.Table, name string) int64 {
	t.Helper()
	v, err := table.Get(name)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

// --- Evaluate ---

func TestEvaluate(t *testing.T) {
	table := symtab.New()
	table.Put("x", 10)

	tests := []struct {
		name string
		expr ast.Expr
		want int64
	}{
		{"constant", &ast.Constant{Value: 4}, 4},
		{"variable", &ast.Variable{Name: "x"}, 10},
		{"left before right", &ast.BinaryOperation{Op: ast.OpSub, Left: &ast.Constant{Value: 5}, Right: &ast.Constant{Value: 3}}, 2},
		{"division", &ast.BinaryOperation{Op: ast.OpDiv, Left: &ast.Variable{Name: "x"}, Right: &ast.Constant{Value: 3}}, 3},
		{"negate", &ast.UnaryOperation{Op: ast.OpNeg, Operand: &ast.Variable{Name: "x"}}, -10},
		{"sqrt", &ast.UnaryOperation{Op: ast.OpSqrt, Operand: &ast.Variable{Name: "x"}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluator.Evaluate(tt.expr, table)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEvaluateNil(t *testing.T) {
	_, err := evaluator.Evaluate(nil, symtab.New())
	if diagnostics.CodeOf(err) != diagnostics.EAst {
		t.Errorf("expected E_AST, got %v", err)
	}
}

// --- Execute ---

func TestExecuteNilProgram(t *testing.T) {
	_, err := evaluator.Execute(context.Background(), (*ast.ActionSequence)(nil), nil, evaluator.ExecOptions{})
	if diagnostics.CodeOf(err) != diagnostics.EAst {
		t.Errorf("expected E_AST, got %v", err)
	}
}

func TestAssignment(t *testing.T) {
	res, out, err := run(t, ":= x + 3 4")
	if err != nil {
		t.Fatal(err)
	}
	if v := mustGet(t, res.Table, "x"); v != 7 {
		t.Errorf("x = %d, want 7", v)
	}
	if out != "" {
		t.Errorf("assignment must not print, got %q", out)
	}
}

func TestPrint(t *testing.T) {
	_, out, err := run(t, "@ - 5 3")
	if err != nil {
		t.Fatal(err)
	}
	if out != "=== 2\n" {
		t.Errorf("got %q", out)
	}
}

func TestSequence(t *testing.T) {
	res, out, err := run(t, ":= y 5 @ # y := y * y 2 @ y")
	if err != nil {
		t.Fatal(err)
	}
	if out != "=== 2\n=== 10\n" {
		t.Errorf("got %q", out)
	}
	if len(res.Prints) != 2 || res.Prints[1] != 10 {
		t.Errorf("prints = %v", res.Prints)
	}
}

func TestReassignment(t *testing.T) {
	res, _, err := run(t, ":= a 1 := a + a 1 := a * a 10")
	if err != nil {
		t.Fatal(err)
	}
	if v := mustGet(t, res.Table, "a"); v != 20 {
		t.Errorf("a = %d, want 20", v)
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		code     string
		value    any
		prints   int
		startCol int
	}{
		{"division by zero", "@ 1 @ // 6 0", diagnostics.EDivZero, "6/0", 1, 7},
		{"negative sqrt", "@ # _ 4", diagnostics.ENegSqrt, int64(-4), 0, 3},
		{"unbound", "@ + 1 z", diagnostics.EUnbound, "z", 0, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := run(t, tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			d := diagnostics.FromError(err, "")
			if d.Code != tt.code {
				t.Fatalf("expected %s, got %s", tt.code, d.Code)
			}
			if d.Value != tt.value {
				t.Errorf("value = %#v, want %#v", d.Value, tt.value)
			}
			if d.Span == nil || d.Span.StartCol != tt.startCol {
				t.Errorf("unexpected span %+v", d.Span)
			}
			if len(res.Prints) != tt.prints {
				t.Errorf("expected %d prints before the error, got %v", tt.prints, res.Prints)
			}
		})
	}
}

func TestExecuteUsesGivenTable(t *testing.T) {
	table := symtab.New()
	table.Put("n", 16)
	prog, err := parser.Parse([]string{"@", "#", "n"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := evaluator.Execute(context.Background(), prog, table, evaluator.ExecOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Table != table || res.Prints[0] != 4 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestCanceled(t *testing.T) {
	prog, err := parser.Parse([]string{"@", "1"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = evaluator.Execute(ctx, prog, nil, evaluator.ExecOptions{})
	if diagnostics.CodeOf(err) != diagnostics.ECanceled {
		t.Errorf("expected E_CANCELED, got %v", err)
	}
}

func TestTraceEvents(t *testing.T) {
	prog, err := parser.ParseSource(":= x 2\n@ x", "trace.perp")
	if err != nil {
		t.Fatal(err)
	}
	var events []evaluator.TraceEvent
	_, err = evaluator.Execute(context.Background(), prog, nil, evaluator.ExecOptions{
		RunID: "r1",
		Trace: func(e evaluator.TraceEvent) { events = append(events, e) },
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []evaluator.TraceEventType{
		evaluator.TraceRunStart,
		evaluator.TraceStmtStart, evaluator.TraceStmtEnd,
		evaluator.TraceStmtStart, evaluator.TraceStmtEnd,
		evaluator.TraceRunEnd,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Event != want[i] {
			t.Errorf("event %d: got %s, want %s", i, e.Event, want[i])
		}
		if e.RunID != "r1" {
			t.Errorf("event %d: missing run id", i)
		}
	}
	if events[2].Data["name"] != "x" || events[2].Data["value"] != "2" {
		t.Errorf("unexpected assignment data %v", events[2].Data)
	}
	if events[3].Span == nil || events[3].Span.StartLine != 2 {
		t.Errorf("unexpected span %+v", events[3].Span)
	}
}
