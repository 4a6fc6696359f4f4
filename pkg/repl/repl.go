// Package repl implements the interactive Perp session.
//
// Every line is parsed as zero or more statements and interpreted against
// one symbol table that lives for the whole session.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/peterh/liner"
	"github.com/pkg/errors"

	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/compiler"
	"github.com/thomasrohde/perp/pkg/diagnostics"
	"github.com/thomasrohde/perp/pkg/evaluator"
	"github.com/thomasrohde/perp/pkg/machine"
	"github.com/thomasrohde/perp/pkg/parser"
	"github.com/thomasrohde/perp/pkg/symtab"
)

// Prompt is shown before every line.
const Prompt = "perp> "

const helpText = `Statements:  := <name> <expr>   @ <expr>
Operators:   + - * //  (binary)   _ #  (negate, square root)
Commands:    :table  :code  :reset  :help  :quit
`

// Session holds the state shared by all lines of one REPL.
type Session struct {
	table *symtab.Table
	last  []machine.Instruction
	out   io.Writer
	log   log15.Logger
}

// NewSession creates a session with an empty table.
func NewSession(out io.Writer, logger log15.Logger) *Session {
	if logger == nil {
		logger = log15.New("module", "repl")
		logger.SetHandler(log15.DiscardHandler())
	}
	return &Session{table: symtab.New(), out: out, log: logger}
}

// Table returns the session's symbol table.
func (s *Session) Table() *symtab.Table {
	return s.table
}

// Eval handles one input line. It reports true when the session should end.
// Statements executed before an error keep their effect.
func (s *Session) Eval(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, ":") && !strings.HasPrefix(line, ast.AssignMarker) {
		return s.command(line)
	}
	if line == "" {
		return false, nil
	}

	tree, err := parser.ParseSource(line, "<repl>")
	if err != nil {
		return false, err
	}
	code, err := compiler.Compile(tree)
	if err != nil {
		return false, err
	}
	s.last = code

	_, err = evaluator.Execute(ctx, tree, s.table, evaluator.ExecOptions{Out: s.out, Logger: s.log})
	return false, err
}

func (s *Session) command(line string) (bool, error) {
	switch line {
	case ":quit", ":q", ":exit":
		return true, nil
	case ":table":
		s.table.Dump(s.out)
	case ":code":
		if err := machine.Listing(s.out, s.last); err != nil {
			return false, diagnostics.Report(diagnostics.EIO, "cannot write listing", err.Error())
		}
	case ":reset":
		s.table = symtab.New()
		s.last = nil
		fmt.Fprintln(s.out, "Symbol table cleared.")
	case ":help":
		fmt.Fprint(s.out, helpText)
	default:
		return false, diagnostics.Report(diagnostics.EUnknownStmt, "unknown command", line).WithHint("type :help for a list of commands")
	}
	return false, nil
}

// LineReader is the part of a line editor the loop needs.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Loop reads lines from r until end of input, an abort or :quit. Errors are
// printed and the session continues.
func Loop(ctx context.Context, r LineReader, s *Session, printer *diagnostics.Printer) error {
	for {
		input, err := r.Prompt(Prompt)
		if err == io.EOF || err == liner.ErrPromptAborted {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "repl")
		}
		if strings.TrimSpace(input) != "" {
			r.AppendHistory(input)
		}

		quit, err := s.Eval(ctx, input)
		if err != nil {
			printer.PrintError(err, diagnostics.EAst)
		}
		if quit {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
	}
}

// Run starts an interactive terminal session. History is loaded from and
// saved to historyFile when it is not empty.
func Run(ctx context.Context, s *Session, printer *diagnostics.Printer, historyFile string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			if _, err := line.ReadHistory(f); err != nil {
				s.log.Warn("Failed to read history", "file", historyFile, "err", err)
			}
			f.Close()
		}
	}

	fmt.Fprintln(s.out, "Perp REPL. Type :help for help, :quit to exit.")
	err := Loop(ctx, line, s, printer)

	if historyFile != "" {
		f, ferr := os.Create(historyFile)
		if ferr != nil {
			s.log.Warn("Failed to save history", "file", historyFile, "err", ferr)
			return err
		}
		defer f.Close()
		if _, ferr := line.WriteHistory(f); ferr != nil {
			s.log.Warn("Failed to save history", "file", historyFile, "err", ferr)
		}
	}
	return err
}
