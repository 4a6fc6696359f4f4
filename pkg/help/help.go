// Package help holds the reference text shown by `perp help`.
package help

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/machine"
)

// QUICKREF is printed by `perp help` without a topic.
const QUICKREF = `Perp v0.1 quick reference

Programs are whitespace-separated tokens in prefix notation.

  := <name> <expr>    assign
  @ <expr>            print
  + - * //            add, subtract, multiply, divide (truncating)
  _ #                 negate, integer square root
  ; comment           runs to the end of the line

Every program runs twice: on the tree-walking interpreter (=== lines) and
as compiled code on the stack machine (*** lines).

Topics: syntax, operators, machine, diagnostics, repl, examples
Run 'perp help <topic>' for details; 'perp help machine --index' lists the
instruction set.
`

// TopicList orders the topics as QUICKREF lists them.
var TopicList = []string{"syntax", "operators", "machine", "diagnostics", "repl", "examples"}

// Topics maps a topic name to its text.
var Topics = map[string]string{
	"syntax": `Syntax

A program is a sequence of statements. A statement starts at ':=' or '@'
and runs until the next one, so line breaks carry no meaning.

  := x + 3 4      x becomes 7
  @ - x 2         prints 5

Tokens are separated by blanks. Identifiers start with a letter; numerals
are decimal digits and fit a signed 64-bit integer. There are no
parentheses: every operator takes a fixed number of operands, so the
nesting is fixed by the token order.
`,
	"operators": `Operators

  + a b     a plus b
  - a b     a minus b (the first operand is the left one)
  * a b     a times b
  // a b    a divided by b, truncated toward zero; b = 0 is an error
  _ a       minus a
  # a       largest integer whose square is at most a; a < 0 is an error

Arithmetic wraps around on 64-bit overflow.
`,
	"machine": `Stack machine

The compiler turns every expression into postfix order: operands first,
then the operator. The machine keeps one operand stack and one symbol
table per run. Binary instructions pop b, then a, and push a op b.

A well-formed program leaves the stack empty. Run 'perp compile' to see
the code of a program and 'perp exec' to run a saved listing.
`,
	"diagnostics": `Diagnostics

Errors print as JSON, or as text with --pretty. Parse errors exit with
status 2, runtime errors with 4 and a disagreement found by 'perp verify'
with 5.

  E_UNKNOWN_STMT   statement does not start with ':=' or '@'
  E_UNKNOWN_TOKEN  token is not an operator, identifier or numeral
  E_TRUNCATED      input ends inside a statement
  E_BAD_TARGET     assignment target is not an identifier
  E_TRAILING       extra tokens after a complete statement
  E_UNBOUND        variable read before assignment
  E_DIV_ZERO       division by zero
  E_NEG_SQRT       square root of a negative number
`,
	"repl": `REPL

'perp repl' reads one line at a time and interprets it against a symbol
table that lives for the whole session.

  :table   show the symbol table
  :code    show the compiled code of the last line
  :reset   clear the symbol table
  :help    list the commands
  :quit    leave (also Ctrl-D)
`,
	"examples": `Examples

  := y 5 @ # y                  prints 2
  := a 7 := b _ 2 @ // a b      prints -3
  := s 0 := s + s 1 @ * s s     prints 1
`,
}

// MatchTopic resolves query to a topic by exact name or unique prefix.
func MatchTopic(query string) (string, string, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if content, ok := Topics[query]; ok {
		return query, content, nil
	}

	var matches []string
	for _, name := range TopicList {
		if query != "" && strings.HasPrefix(name, query) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 0:
		return "", "", errors.Errorf("unknown help topic %q", query)
	case 1:
		return matches[0], Topics[matches[0]], nil
	}
	return "", "", errors.Errorf("ambiguous help topic %q: %s", query, strings.Join(matches, ", "))
}

// OperatorIndex lists every source operator with the instruction it
// compiles to.
func OperatorIndex() string {
	var sb strings.Builder
	for _, op := range ast.BinaryOperators {
		code, _ := machine.BinaryOpcode(op)
		fmt.Fprintf(&sb, "  %-4s %s\n", op, code)
	}
	for _, op := range ast.UnaryOperators {
		code, _ := machine.UnaryOpcode(op)
		fmt.Fprintf(&sb, "  %-4s %s\n", op, code)
	}
	return sb.String()
}

// MachineIndex lists the instruction set.
func MachineIndex() string {
	var sb strings.Builder
	ops := machine.Opcodes()
	for _, op := range ops {
		fmt.Fprintf(&sb, "  %s\n", op.Synopsis())
	}
	fmt.Fprintf(&sb, "\nTotal: %d instructions\n", len(ops))
	return sb.String()
}
