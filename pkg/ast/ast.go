// Package ast defines the Perp language AST node types.
package ast

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// IsZero reports whether the span carries no location, as for nodes parsed
// from a bare token list.
func (s Span) IsZero() bool {
	return s == Span{}
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() string
	NodeSpan() Span
}

// BinaryOp represents a binary operator.
type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "//"
)

// BinaryOperators lists every legal binary operator, for use by parsers.
var BinaryOperators = []BinaryOp{OpAdd, OpSub, OpMul, OpDiv}

// UnaryOp represents a unary operator.
type UnaryOp string

const (
	OpNeg  UnaryOp = "_"
	OpSqrt UnaryOp = "#"
)

// UnaryOperators lists every legal unary operator, for use by parsers.
var UnaryOperators = []UnaryOp{OpNeg, OpSqrt}

// Statement markers. Each one both ends the previous statement and starts a
// new one.
const (
	AssignMarker = ":="
	PrintMarker  = "@"
)

// LookupBinary returns the binary operator spelled s.
func LookupBinary(s string) (BinaryOp, bool) {
	for _, op := range BinaryOperators {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// LookupUnary returns the unary operator spelled s.
func LookupUnary(s string) (UnaryOp, bool) {
	for _, op := range UnaryOperators {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// Arity returns the number of operands the operator spelled s takes, or 0
// if s is not an operator.
func Arity(s string) int {
	if _, ok := LookupBinary(s); ok {
		return 2
	}
	if _, ok := LookupUnary(s); ok {
		return 1
	}
	return 0
}

// IsMarker reports whether s is a statement marker.
func IsMarker(s string) bool {
	return s == AssignMarker || s == PrintMarker
}

// --- Expr is the interface for all expression nodes ---

type Expr interface {
	Node
	exprNode() // sealed marker
}

// --- Action is the interface for all statement nodes ---

type Action interface {
	Node
	actionNode() // sealed marker
}

// --- Expressions ---

type Constant struct {
	Span  Span
	Value int64
}

func (n *Constant) Kind() string   { return "Constant" }
func (n *Constant) NodeSpan() Span { return n.Span }
func (n *Constant) exprNode()      {}

// Variable reads a name from the symbol table. More than one Variable may
// refer to the same name.
type Variable struct {
	Span Span
	Name string
}

func (n *Variable) Kind() string   { return "Variable" }
func (n *Variable) NodeSpan() Span { return n.Span }
func (n *Variable) exprNode()      {}

type BinaryOperation struct {
	Span  Span
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (n *BinaryOperation) Kind() string   { return "BinaryOperation" }
func (n *BinaryOperation) NodeSpan() Span { return n.Span }
func (n *BinaryOperation) exprNode()      {}

type UnaryOperation struct {
	Span    Span
	Op      UnaryOp
	Operand Expr
}

func (n *UnaryOperation) Kind() string   { return "UnaryOperation" }
func (n *UnaryOperation) NodeSpan() Span { return n.Span }
func (n *UnaryOperation) exprNode()      {}

// --- Actions ---

// ActionSequence runs its children in insertion order. It is the root of
// every parsed program.
type ActionSequence struct {
	Span    Span
	Actions []Action
}

func (n *ActionSequence) Kind() string   { return "ActionSequence" }
func (n *ActionSequence) NodeSpan() Span { return n.Span }
func (n *ActionSequence) actionNode()    {}

// Assignment stores the value of Rhs under Ident. Ident is a write target,
// not a Variable node.
type Assignment struct {
	Span  Span
	Ident string
	Rhs   Expr
}

func (n *Assignment) Kind() string   { return "Assignment" }
func (n *Assignment) NodeSpan() Span { return n.Span }
func (n *Assignment) actionNode()    {}

type Print struct {
	Span    Span
	Printee Expr
}

func (n *Print) Kind() string   { return "Print" }
func (n *Print) NodeSpan() Span { return n.Span }
func (n *Print) actionNode()    {}
