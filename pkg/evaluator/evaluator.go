// Package evaluator implements the tree-walking Perp interpreter.
package evaluator

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/thomasrohde/perp/pkg/arith"
	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/diagnostics"
	"github.com/thomasrohde/perp/pkg/symtab"
)

// PrintPrefix starts every line written by a Print statement.
const PrintPrefix = "=== "

// TraceEventType identifies the type of a trace event.
type TraceEventType string

const (
	TraceRunStart  TraceEventType = "run_start"
	TraceRunEnd    TraceEventType = "run_end"
	TraceStmtStart TraceEventType = "stmt_start"
	TraceStmtEnd   TraceEventType = "stmt_end"
)

// TraceEvent represents a single trace event emitted during execution.
type TraceEvent struct {
	Timestamp string            `json:"ts"`
	RunID     string            `json:"runId"`
	Event     TraceEventType    `json:"event"`
	Span      *ast.Span         `json:"span,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// ExecOptions configures program execution.
type ExecOptions struct {
	// Out receives printed values. Nil discards them.
	Out    io.Writer
	Trace  func(event TraceEvent)
	RunID  string
	Logger log15.Logger
}

// ExecResult holds the result of a program execution. On error it holds the
// state reached before the failing statement.
type ExecResult struct {
	Table  *symtab.Table
	Prints []int64
}

type evaluator struct {
	ctx    context.Context
	opts   ExecOptions
	table  *symtab.Table
	prints []int64
	log    log15.Logger
}

func (ev *evaluator) emit(event TraceEventType, span ast.Span, data map[string]string) {
	if ev.opts.Trace == nil {
		return
	}
	var sp *ast.Span
	if !span.IsZero() {
		sp = &span
	}
	ev.opts.Trace(TraceEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     ev.opts.RunID,
		Event:     event,
		Span:      sp,
		Data:      data,
	})
}

// Evaluate computes the value of expr against table. Children are evaluated
// depth first, left before right.
func Evaluate(expr ast.Expr, table *symtab.Table) (int64, error) {
	switch e := expr.(type) {
	case *ast.Constant:
		return e.Value, nil
	case *ast.Variable:
		v, err := table.Get(e.Name)
		if err != nil {
			return 0, diagnostics.Locate(err, e.Span)
		}
		return v, nil
	case *ast.BinaryOperation:
		a, err := Evaluate(e.Left, table)
		if err != nil {
			return 0, err
		}
		b, err := Evaluate(e.Right, table)
		if err != nil {
			return 0, err
		}
		v, err := arith.Binary(e.Op, a, b)
		if err != nil {
			return 0, diagnostics.Locate(err, e.Span)
		}
		return v, nil
	case *ast.UnaryOperation:
		a, err := Evaluate(e.Operand, table)
		if err != nil {
			return 0, err
		}
		v, err := arith.Unary(e.Op, a)
		if err != nil {
			return 0, diagnostics.Locate(err, e.Span)
		}
		return v, nil
	case nil:
		return 0, diagnostics.Report(diagnostics.EAst, "missing expression", nil)
	}
	return 0, diagnostics.Report(diagnostics.EAst, "cannot evaluate node", expr.Kind())
}

// Execute runs action against table, creating a fresh table when table is
// nil. The context is checked before every statement.
func Execute(ctx context.Context, action ast.Action, table *symtab.Table, opts ExecOptions) (*ExecResult, error) {
	if table == nil {
		table = symtab.New()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	ev := &evaluator{
		ctx:   ctx,
		opts:  opts,
		table: table,
		log:   opts.Logger,
	}
	if ev.log == nil {
		ev.log = log15.New("module", "evaluator")
		ev.log.SetHandler(log15.DiscardHandler())
	}
	if seq, ok := action.(*ast.ActionSequence); ok && seq == nil {
		action = nil
	}

	var span ast.Span
	if action != nil {
		span = action.NodeSpan()
	}
	ev.emit(TraceRunStart, span, nil)
	err := ev.exec(action)
	ev.emit(TraceRunEnd, span, nil)

	res := &ExecResult{Table: ev.table, Prints: ev.prints}
	if err != nil {
		ev.log.Debug("Execution failed", "err", err)
		return res, err
	}
	return res, nil
}

func (ev *evaluator) exec(action ast.Action) error {
	switch a := action.(type) {
	case *ast.ActionSequence:
		for _, child := range a.Actions {
			if err := ev.exec(child); err != nil {
				return err
			}
		}
		return nil
	case *ast.Assignment, *ast.Print:
		return ev.statement(a)
	case nil:
		return diagnostics.Report(diagnostics.EAst, "missing statement", nil)
	}
	return diagnostics.Report(diagnostics.EAst, "cannot execute node", action.Kind())
}

func (ev *evaluator) statement(action ast.Action) error {
	if err := ev.ctx.Err(); err != nil {
		return diagnostics.Report(diagnostics.ECanceled, "execution canceled", err.Error())
	}

	span := action.NodeSpan()
	ev.emit(TraceStmtStart, span, map[string]string{"kind": action.Kind()})

	var data map[string]string
	switch s := action.(type) {
	case *ast.Assignment:
		v, err := Evaluate(s.Rhs, ev.table)
		if err != nil {
			return diagnostics.Locate(err, span)
		}
		ev.table.Put(s.Ident, v)
		data = map[string]string{"name": s.Ident, "value": strconv.FormatInt(v, 10)}
	case *ast.Print:
		v, err := Evaluate(s.Printee, ev.table)
		if err != nil {
			return diagnostics.Locate(err, span)
		}
		ev.prints = append(ev.prints, v)
		fmt.Fprintf(ev.opts.Out, "%s%d\n", PrintPrefix, v)
		data = map[string]string{"value": strconv.FormatInt(v, 10)}
	}

	ev.emit(TraceStmtEnd, span, data)
	return nil
}
