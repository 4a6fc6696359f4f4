// Package diagnostics defines Perp diagnostic types for parse and runtime errors.
package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/thomasrohde/perp/pkg/ast"
)

// Diagnostic code constants.
const (
	// Parse errors
	ELex          = "E_LEX"
	EUnknownStmt  = "E_UNKNOWN_STMT"
	EUnknownToken = "E_UNKNOWN_TOKEN"
	ETruncated    = "E_TRUNCATED"
	EBadTarget    = "E_BAD_TARGET"
	ETrailing     = "E_TRAILING"
	EAst          = "E_AST"

	// Evaluation and runtime errors
	EUnbound  = "E_UNBOUND"
	EDivZero  = "E_DIV_ZERO"
	ENegSqrt  = "E_NEG_SQRT"
	ECanceled = "E_CANCELED"

	// Stack discipline errors (machine only)
	EStackUnderflow = "E_STACK_UNDERFLOW"
	EBadInstruction = "E_BAD_INSTRUCTION"

	// Tooling
	EAssemble = "E_ASSEMBLE"
	EIO       = "E_IO"
	EConfig   = "E_CONFIG"
)

// Diagnostic represents a parse, validation, or runtime diagnostic.
// Value holds the offending token, name or operand.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Value   any       `json:"value,omitempty"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, value any, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Value:   value,
		Span:    span,
		Hint:    hint,
	}
}

// Error carries a diagnostic up the call chain. Every error condition in the
// parser, interpreter and machine is reported as an *Error.
type Error struct {
	Diag Diagnostic
}

func (e *Error) Error() string {
	if e.Diag.Value != nil {
		return fmt.Sprintf("%s: %v", e.Diag.Message, e.Diag.Value)
	}
	return e.Diag.Message
}

// Report is the single entry point for raising an error: a message plus
// the offending value. The caller must return the result and stop.
func Report(code, message string, value any) *Error {
	return &Error{Diag: MakeDiag(code, message, value, nil, "")}
}

// ReportAt is Report with a source location. A zero span is dropped.
func ReportAt(code, message string, value any, span ast.Span) *Error {
	return Report(code, message, value).At(span)
}

// At returns a copy of e located at span, unless e already has a location
// or span is zero.
func (e *Error) At(span ast.Span) *Error {
	if e.Diag.Span != nil || span.IsZero() {
		return e
	}
	d := e.Diag
	d.Span = &span
	return &Error{Diag: d}
}

// WithHint returns a copy of e carrying hint.
func (e *Error) WithHint(hint string) *Error {
	d := e.Diag
	d.Hint = hint
	return &Error{Diag: d}
}

// CodeOf returns the diagnostic code carried by err, or "" if err is not a
// diagnostic error.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Diag.Code
	}
	return ""
}

// Locate attaches span to err when err is a diagnostic error without a
// location. Other errors are returned unchanged.
func Locate(err error, span ast.Span) error {
	var de *Error
	if errors.As(err, &de) {
		return de.At(span)
	}
	return err
}

// FromError converts any error into a diagnostic, using fallbackCode for
// errors that do not carry one.
func FromError(err error, fallbackCode string) Diagnostic {
	var de *Error
	if errors.As(err, &de) {
		return de.Diag
	}
	return MakeDiag(fallbackCode, err.Error(), nil, nil, "")
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	out := fmt.Sprintf("error[%s]: %s", d.Code, d.Message)
	if d.Value != nil {
		out += fmt.Sprintf(" (%v)", d.Value)
	}
	if d.Span != nil {
		out += fmt.Sprintf("\n  --> %s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol)
	}
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}

// Printer writes diagnostics to a terminal, optionally colored.
type Printer struct {
	w      io.Writer
	pretty bool
	code   *color.Color
	loc    *color.Color
	hint   *color.Color
}

// NewPrinter returns a Printer writing to w. Color only applies in pretty
// mode.
func NewPrinter(w io.Writer, pretty, colored bool) *Printer {
	p := &Printer{
		w:      w,
		pretty: pretty,
		code:   color.New(color.FgRed, color.Bold),
		loc:    color.New(color.FgCyan),
		hint:   color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{p.code, p.loc, p.hint} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Print writes diags, one block per diagnostic.
func (p *Printer) Print(diags ...Diagnostic) {
	if !p.pretty {
		fmt.Fprintln(p.w, FormatDiagnostics(diags, false))
		return
	}
	for i, d := range diags {
		if i > 0 {
			fmt.Fprintln(p.w)
		}
		head := p.code.Sprintf("error[%s]", d.Code)
		line := fmt.Sprintf("%s: %s", head, d.Message)
		if d.Value != nil {
			line += fmt.Sprintf(" (%v)", d.Value)
		}
		fmt.Fprintln(p.w, line)
		if d.Span != nil {
			fmt.Fprintf(p.w, "  --> %s\n", p.loc.Sprintf("%s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol))
		}
		if d.Hint != "" {
			fmt.Fprintf(p.w, "  %s %s\n", p.hint.Sprint("hint:"), d.Hint)
		}
	}
}

// PrintError writes err as a diagnostic, using fallbackCode when err carries
// none.
func (p *Printer) PrintError(err error, fallbackCode string) {
	p.Print(FromError(err, fallbackCode))
}
