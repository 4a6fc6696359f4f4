// Package arith holds the integer semantics shared by the interpreter and
// the stack machine. Division truncates toward zero; square root is the
// floor of the exact root. Errors are detected before any arithmetic runs.
package arith

import (
	"fmt"
	"math"

	"github.com/thomasrohde/perp/pkg/ast"
	"github.com/thomasrohde/perp/pkg/diagnostics"
)

// Binary applies op to a and b. Overflow wraps.
func Binary(op ast.BinaryOp, a, b int64) (int64, error) {
	switch op {
	case ast.OpAdd:
		return a + b, nil
	case ast.OpSub:
		return a - b, nil
	case ast.OpMul:
		return a * b, nil
	case ast.OpDiv:
		if b == 0 {
			return 0, diagnostics.Report(diagnostics.EDivZero, "division by zero", fmt.Sprintf("%d/%d", a, b))
		}
		if a == math.MinInt64 && b == -1 {
			// The one quotient that overflows; wrap like the other operators.
			return math.MinInt64, nil
		}
		return a / b, nil
	}
	return 0, diagnostics.Report(diagnostics.EAst, "unknown binary operator", string(op))
}

// Unary applies op to a.
func Unary(op ast.UnaryOp, a int64) (int64, error) {
	switch op {
	case ast.OpNeg:
		return -a, nil
	case ast.OpSqrt:
		if a < 0 {
			return 0, diagnostics.Report(diagnostics.ENegSqrt, "square root of a negative number", a)
		}
		return Isqrt(a), nil
	}
	return 0, diagnostics.Report(diagnostics.EAst, "unknown unary operator", string(op))
}

// Isqrt returns the largest r with r*r <= a, for a >= 0.
func Isqrt(a int64) int64 {
	r := int64(math.Sqrt(float64(a)))
	// float64 rounding can be off by one in either direction for large a.
	for r > 0 && r > a/r {
		r--
	}
	for r+1 <= a/(r+1) {
		r++
	}
	return r
}
