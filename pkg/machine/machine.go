// Package machine implements the Perp stack machine.
//
// A Machine owns one operand stack of 64-bit integers and one symbol
// table. Each Run starts from an empty stack and an empty table, so two
// machines never share state.
package machine

import (
	"context"
	"fmt"
	"io"

	"github.com/inconshreveable/log15"

	"github.com/thomasrohde/perp/pkg/arith"
	"github.com/thomasrohde/perp/pkg/diagnostics"
	"github.com/thomasrohde/perp/pkg/symtab"
)

// PrintPrefix starts every line written by OpPrint.
const PrintPrefix = "*** "

// StepEvent describes one executed instruction.
type StepEvent struct {
	PC    int
	Instr Instruction
	Depth int // stack depth after the instruction
}

// Result holds the outcome of a completed run.
type Result struct {
	Steps     int
	StackSize int
	Table     *symtab.Table
	Prints    []int64
}

// Machine executes instruction sequences.
type Machine struct {
	stack  []int64
	table  *symtab.Table
	prints []int64

	out   io.Writer
	log   log15.Logger
	trace func(StepEvent)
}

// Option configures a Machine.
type Option func(*Machine)

// WithOutput sets the writer receiving run banners, printed values and the
// final table dump. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(m *Machine) {
		m.out = w
	}
}

// WithLogger sets the logger.
func WithLogger(l log15.Logger) Option {
	return func(m *Machine) {
		m.log = l
	}
}

// WithTrace reports every executed instruction to fn.
func WithTrace(fn func(StepEvent)) Option {
	return func(m *Machine) {
		m.trace = fn
	}
}

// New creates a machine with an empty stack and table.
func New(opts ...Option) *Machine {
	m := &Machine{
		out: io.Discard,
		log: log15.New("module", "machine"),
	}
	m.log.SetHandler(log15.DiscardHandler())
	for _, opt := range opts {
		opt(m)
	}
	m.Reset()
	return m
}

// Reset empties the stack, the table and the recorded prints.
func (m *Machine) Reset() {
	m.stack = make([]int64, 0, 16)
	m.table = symtab.New()
	m.prints = nil
}

// Table returns the machine's symbol table.
func (m *Machine) Table() *symtab.Table {
	return m.table
}

// Prints returns the values printed since the last reset.
func (m *Machine) Prints() []int64 {
	return append([]int64(nil), m.prints...)
}

// Stack returns a copy of the operand stack, bottom first.
func (m *Machine) Stack() []int64 {
	out := make([]int64, len(m.stack))
	copy(out, m.stack)
	return out
}

// Run resets the machine and executes program from the first instruction to
// the last. The first error stops the run; output already written stays.
func (m *Machine) Run(ctx context.Context, program []Instruction) (*Result, error) {
	m.Reset()
	fmt.Fprintln(m.out, "Executing compiled code...")
	m.log.Debug("Run started", "instructions", len(program))

	for pc, in := range program {
		if err := ctx.Err(); err != nil {
			return nil, diagnostics.Report(diagnostics.ECanceled, "execution canceled", err.Error())
		}
		if err := m.Step(in); err != nil {
			m.log.Debug("Run failed", "pc", pc, "instr", in, "err", err)
			return nil, err
		}
		if m.trace != nil {
			m.trace(StepEvent{PC: pc, Instr: in, Depth: len(m.stack)})
		}
	}

	if n := len(m.stack); n != 0 {
		m.log.Warn("Values left on the stack", "count", n)
	}
	fmt.Fprintf(m.out, "Machine: execution ended with %d items left on the stack.\n\n", len(m.stack))
	m.table.Dump(m.out)

	return &Result{
		Steps:     len(program),
		StackSize: len(m.stack),
		Table:     m.table,
		Prints:    m.prints,
	}, nil
}

// Step executes a single instruction against the current state.
func (m *Machine) Step(in Instruction) error {
	if int(in.Op) >= len(opcodeTable) {
		return diagnostics.Report(diagnostics.EBadInstruction, "unknown instruction", int(in.Op))
	}
	info := opcodeTable[in.Op]

	switch {
	case info.binary != "":
		// b was pushed last.
		b, err := m.pop(in)
		if err != nil {
			return err
		}
		a, err := m.pop(in)
		if err != nil {
			return err
		}
		v, err := arith.Binary(info.binary, a, b)
		if err != nil {
			return err
		}
		m.push(v)
		return nil
	case info.unary != "":
		a, err := m.pop(in)
		if err != nil {
			return err
		}
		v, err := arith.Unary(info.unary, a)
		if err != nil {
			return err
		}
		m.push(v)
		return nil
	}

	switch in.Op {
	case OpPushConst:
		m.push(in.Value)
	case OpLoad:
		v, err := m.table.Get(in.Name)
		if err != nil {
			return err
		}
		m.push(v)
	case OpStore:
		v, err := m.pop(in)
		if err != nil {
			return err
		}
		m.table.Put(in.Name, v)
	case OpPrint:
		v, err := m.pop(in)
		if err != nil {
			return err
		}
		m.prints = append(m.prints, v)
		fmt.Fprintf(m.out, "%s%d\n", PrintPrefix, v)
	default:
		return diagnostics.Report(diagnostics.EBadInstruction, "unknown instruction", in.String())
	}
	return nil
}

func (m *Machine) push(v int64) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pop(in Instruction) (int64, error) {
	n := len(m.stack)
	if n == 0 {
		return 0, diagnostics.Report(diagnostics.EStackUnderflow, "stack underflow", in.String())
	}
	v := m.stack[n-1]
	m.stack = m.stack[:n-1]
	return v, nil
}
