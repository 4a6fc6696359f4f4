// Package runtime provides the top-level Perp program driver.
//
// A Runtime wires the parser, the tree-walking interpreter, the compiler and
// the stack machine together and writes the console protocol of a run to
// its output.
package runtime

import (
	"context"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru"
	"github.com/inconshreveable/log15"

	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/compiler"
	"github.com/thomasrohde/perp/pkg/config"
	"github.com/thomasrohde/perp/pkg/diagnostics"
	"github.com/thomasrohde/perp/pkg/evaluator"
	"github.com/thomasrohde/perp/pkg/formatter"
	"github.com/thomasrohde/perp/pkg/machine"
	"github.com/thomasrohde/perp/pkg/parser"
	"github.com/thomasrohde/perp/pkg/symtab"
	"github.com/thomasrohde/perp/pkg/validator"
)

// Runtime wires together all Perp components for program execution.
type Runtime struct {
	out       io.Writer
	log       log15.Logger
	runID     string
	trace     func(event evaluator.TraceEvent)
	stepTrace func(event machine.StepEvent)
	showInfix bool
	showCode  bool
	cacheSize int
	cache     *lru.Cache
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithOutput sets the writer receiving all program output.
func WithOutput(w io.Writer) Option {
	return func(rt *Runtime) {
		rt.out = w
	}
}

// WithLogger sets the logger. Components log through children of it.
func WithLogger(l log15.Logger) Option {
	return func(rt *Runtime) {
		rt.log = l
	}
}

// WithRunID sets the run ID for trace events.
func WithRunID(id string) Option {
	return func(rt *Runtime) {
		rt.runID = id
	}
}

// WithTrace sets the interpreter trace callback.
func WithTrace(fn func(event evaluator.TraceEvent)) Option {
	return func(rt *Runtime) {
		rt.trace = fn
	}
}

// WithStepTrace sets the machine trace callback.
func WithStepTrace(fn func(event machine.StepEvent)) Option {
	return func(rt *Runtime) {
		rt.stepTrace = fn
	}
}

// WithCacheSize sets how many compiled sources CompileSource keeps. Zero
// disables the cache.
func WithCacheSize(n int) Option {
	return func(rt *Runtime) {
		rt.cacheSize = n
	}
}

// WithDisplay selects whether Run shows the infix program and the compiled
// listing.
func WithDisplay(showInfix, showCode bool) Option {
	return func(rt *Runtime) {
		rt.showInfix = showInfix
		rt.showCode = showCode
	}
}

// WithConfig applies the display and cache settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(rt *Runtime) {
		rt.showInfix = cfg.ShowInfix
		rt.showCode = cfg.ShowCode
		rt.cacheSize = cfg.CacheSize
	}
}

// New creates a new Runtime with the given options.
// By default output is discarded and nothing extra is displayed.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		out:       io.Discard,
		log:       log15.New("module", "runtime"),
		runID:     "cli",
		cacheSize: 64,
	}
	rt.log.SetHandler(log15.DiscardHandler())
	for _, opt := range opts {
		opt(rt)
	}
	if rt.cacheSize > 0 {
		// lru.New only fails for a non-positive size.
		rt.cache, _ = lru.New(rt.cacheSize)
	}
	return rt
}

// Parse parses an already split token list.
func (rt *Runtime) Parse(tokens []string) (*ast.ActionSequence, error) {
	return parser.Parse(tokens)
}

// ParseSource tokenizes and parses source text.
func (rt *Runtime) ParseSource(source, filename string) (*ast.ActionSequence, error) {
	return parser.ParseSource(source, filename)
}

// DisplayProgram writes the program in infix notation.
func (rt *Runtime) DisplayProgram(tree *ast.ActionSequence) error {
	return formatter.DisplayProgram(rt.out, tree)
}

// DisplayInstructions writes the compiled listing.
func (rt *Runtime) DisplayInstructions(program []machine.Instruction) error {
	return machine.Listing(rt.out, program)
}

// Interpret runs tree on the tree-walking interpreter with a fresh symbol
// table, then dumps the table.
func (rt *Runtime) Interpret(ctx context.Context, tree *ast.ActionSequence) (*evaluator.ExecResult, error) {
	fmt.Fprintln(rt.out, "\nInterpreting the parse tree...")
	res, err := evaluator.Execute(ctx, tree, nil, evaluator.ExecOptions{
		Out:    rt.out,
		Trace:  rt.trace,
		RunID:  rt.runID,
		Logger: rt.log.New("module", "evaluator"),
	})
	if err != nil {
		return res, err
	}
	fmt.Fprint(rt.out, "Interpretation Completed.\n\n")
	res.Table.Dump(rt.out)
	return res, nil
}

// Compile translates tree into machine code.
func (rt *Runtime) Compile(tree *ast.ActionSequence) ([]machine.Instruction, error) {
	return compiler.Compile(tree)
}

// CompileSource parses and compiles source, reusing the code of an earlier
// call with identical source.
func (rt *Runtime) CompileSource(source, filename string) ([]machine.Instruction, error) {
	if rt.cache != nil {
		if code, ok := rt.cache.Get(source); ok {
			rt.log.Debug("Compile cache hit", "file", filename)
			return code.([]machine.Instruction), nil
		}
	}
	tree, err := parser.ParseSource(source, filename)
	if err != nil {
		return nil, err
	}
	code, err := compiler.Compile(tree)
	if err != nil {
		return nil, err
	}
	if rt.cache != nil {
		rt.cache.Add(source, code)
	}
	return code, nil
}

// RunMachine executes program on a new stack machine.
func (rt *Runtime) RunMachine(ctx context.Context, program []machine.Instruction) (*machine.Result, error) {
	m := machine.New(
		machine.WithOutput(rt.out),
		machine.WithLogger(rt.log.New("module", "machine")),
		machine.WithTrace(rt.stepTrace),
	)
	return m.Run(ctx, program)
}

// Check parses and validates a program without executing it.
func (rt *Runtime) Check(source, filename string) []diagnostics.Diagnostic {
	tree, err := parser.ParseSource(source, filename)
	if err != nil {
		return []diagnostics.Diagnostic{diagnostics.FromError(err, diagnostics.EAst)}
	}
	return validator.Validate(tree)
}

// Run parses source and executes it in the given mode: "interpret",
// "compile" or "both". In both mode the interpreter runs first.
func (rt *Runtime) Run(ctx context.Context, source, filename, mode string) error {
	switch mode {
	case config.ModeInterpret, config.ModeCompile, config.ModeBoth:
	default:
		return diagnostics.Report(diagnostics.EConfig, "unknown execution mode", mode)
	}

	tree, err := rt.ParseSource(source, filename)
	if err != nil {
		return err
	}
	rt.log.Debug("Parsed program", "file", filename, "statements", len(tree.Actions))

	if rt.showInfix {
		if err := rt.DisplayProgram(tree); err != nil {
			return diagnostics.Report(diagnostics.EIO, "cannot write output", err.Error())
		}
	}

	if mode != config.ModeCompile {
		if _, err := rt.Interpret(ctx, tree); err != nil {
			return err
		}
	}

	if mode != config.ModeInterpret {
		code, err := rt.Compile(tree)
		if err != nil {
			return err
		}
		if rt.showCode {
			if err := rt.DisplayInstructions(code); err != nil {
				return diagnostics.Report(diagnostics.EIO, "cannot write output", err.Error())
			}
		}
		if _, err := rt.RunMachine(ctx, code); err != nil {
			return err
		}
	}
	return nil
}

// Outcome is what one execution path produced.
type Outcome struct {
	Prints []int64
	Table  *symtab.Table
	Code   string // diagnostic code of the failure, empty on success
}

// Verdict compares the two execution paths of one program.
type Verdict struct {
	Interpreter Outcome
	Machine     Outcome
	Agree       bool
}

// Verify runs tree on both paths with output discarded and reports whether
// they printed the same values in the same order and ended with the same
// tables. When both fail, they agree if they fail with the same code after
// the same prints.
func (rt *Runtime) Verify(ctx context.Context, tree *ast.ActionSequence) (*Verdict, error) {
	code, err := compiler.Compile(tree)
	if err != nil {
		return nil, err
	}

	ires, ierr := evaluator.Execute(ctx, tree, nil, evaluator.ExecOptions{
		Logger: rt.log.New("module", "evaluator"),
	})
	m := machine.New(machine.WithLogger(rt.log.New("module", "machine")))
	_, merr := m.Run(ctx, code)

	v := &Verdict{
		Interpreter: Outcome{Prints: ires.Prints, Table: ires.Table, Code: diagnostics.CodeOf(ierr)},
		Machine:     Outcome{Prints: m.Prints(), Table: m.Table(), Code: diagnostics.CodeOf(merr)},
	}
	v.Agree = v.Interpreter.Code == v.Machine.Code &&
		equalPrints(v.Interpreter.Prints, v.Machine.Prints) &&
		(v.Interpreter.Code != "" || v.Interpreter.Table.Equal(v.Machine.Table))
	if !v.Agree {
		rt.log.Warn("Execution paths disagree", "interpreter", v.Interpreter.Code, "machine", v.Machine.Code)
	}
	return v, nil
}

func equalPrints(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
