package machine

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/diagnostics"
)

// ListingHeader is the title line written by Listing.
const ListingHeader = "Compiled code:"

// Listing writes program one mnemonic per line, between the header and a
// trailing blank line.
func Listing(w io.Writer, program []Instruction) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\n%s\n", ListingHeader)
	for _, in := range program {
		fmt.Fprintln(bw, in.String())
	}
	fmt.Fprintln(bw)
	return bw.Flush()
}

// Assemble reads a listing back into instructions. Blank lines, lines
// starting with ';' and the listing header are skipped.
func Assemble(r io.Reader, filename string) ([]Instruction, error) {
	var program []Instruction
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text == ListingHeader || strings.HasPrefix(text, ";") {
			continue
		}
		in, err := assembleLine(text)
		if err != nil {
			return nil, diagnostics.Locate(err, ast.Span{
				File:      filename,
				StartLine: line,
				StartCol:  1,
				EndLine:   line,
				EndCol:    len(text) + 1,
			})
		}
		program = append(program, in)
	}
	if err := sc.Err(); err != nil {
		return nil, diagnostics.Report(diagnostics.EIO, "cannot read listing", err.Error())
	}
	return program, nil
}

func assembleLine(text string) (Instruction, error) {
	fields := strings.Fields(text)
	op, ok := LookupMnemonic(fields[0])
	if !ok {
		return Instruction{}, diagnostics.Report(diagnostics.EAssemble, "unknown mnemonic", fields[0])
	}

	info := opcodeTable[op]
	want := 1
	if info.operand != operandNone {
		want = 2
	}
	if len(fields) != want {
		return Instruction{}, diagnostics.Report(diagnostics.EAssemble,
			fmt.Sprintf("%s takes %d operand(s)", op, want-1), text)
	}

	switch info.operand {
	case operandInt:
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Instruction{}, diagnostics.Report(diagnostics.EAssemble, "bad integer operand", fields[1])
		}
		return PushConst(v), nil
	case operandName:
		return Instruction{Op: op, Name: fields[1]}, nil
	}
	return Instruction{Op: op}, nil
}
