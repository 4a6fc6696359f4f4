package machine

import (
	"strconv"

	"github.com/thomasrohde/perp/pkg/ast"
)

// Opcode identifies a stack machine instruction.
type Opcode uint8

const (
	// OpPushConst pushes the instruction's Value.
	OpPushConst Opcode = iota
	// OpLoad pushes the value bound to Name.
	OpLoad
	// OpStore pops a value and binds it to Name.
	OpStore

	// Binary arithmetic pops b then a and pushes a op b.
	OpAdd
	OpSub
	OpMul
	OpDiv

	// Unary arithmetic pops a and pushes op a.
	OpNeg
	OpSqrt

	// OpPrint pops a value and writes it.
	OpPrint

	opcodeCount
)

// Operand kinds.
const (
	operandNone = iota
	operandInt
	operandName
)

type opcodeInfo struct {
	// name is the listing mnemonic.
	name    string
	operand int
	binary  ast.BinaryOp
	unary   ast.UnaryOp
}

var opcodeTable = [opcodeCount]opcodeInfo{
	OpPushConst: {name: "PUSH", operand: operandInt},
	OpLoad:      {name: "LOAD", operand: operandName},
	OpStore:     {name: "STORE", operand: operandName},
	OpAdd:       {name: "ADD", binary: ast.OpAdd},
	OpSub:       {name: "SUB", binary: ast.OpSub},
	OpMul:       {name: "MUL", binary: ast.OpMul},
	OpDiv:       {name: "DIV", binary: ast.OpDiv},
	OpNeg:       {name: "NEG", unary: ast.OpNeg},
	OpSqrt:      {name: "SQRT", unary: ast.OpSqrt},
	OpPrint:     {name: "PRINT"},
}

// String returns the mnemonic name of the opcode.
func (op Opcode) String() string {
	if int(op) >= len(opcodeTable) {
		return "UNKNOWN"
	}
	return opcodeTable[op].name
}

// Synopsis returns the listing form of op with a placeholder for its
// operand, as in "PUSH <int>".
func (op Opcode) Synopsis() string {
	if int(op) >= len(opcodeTable) {
		return "UNKNOWN"
	}
	switch opcodeTable[op].operand {
	case operandInt:
		return op.String() + " <int>"
	case operandName:
		return op.String() + " <name>"
	}
	return op.String()
}

// Opcodes returns every defined opcode in numeric order.
func Opcodes() []Opcode {
	ops := make([]Opcode, opcodeCount)
	for i := range ops {
		ops[i] = Opcode(i)
	}
	return ops
}

// LookupMnemonic returns the opcode named name.
func LookupMnemonic(name string) (Opcode, bool) {
	for op := Opcode(0); op < opcodeCount; op++ {
		if opcodeTable[op].name == name {
			return op, true
		}
	}
	return 0, false
}

// BinaryOpcode returns the instruction implementing a binary operator.
func BinaryOpcode(op ast.BinaryOp) (Opcode, bool) {
	for code := Opcode(0); code < opcodeCount; code++ {
		if opcodeTable[code].binary == op && op != "" {
			return code, true
		}
	}
	return 0, false
}

// UnaryOpcode returns the instruction implementing a unary operator.
func UnaryOpcode(op ast.UnaryOp) (Opcode, bool) {
	for code := Opcode(0); code < opcodeCount; code++ {
		if opcodeTable[code].unary == op && op != "" {
			return code, true
		}
	}
	return 0, false
}

// Instruction is one immutable machine instruction. Value is used by
// OpPushConst and Name by OpLoad and OpStore.
type Instruction struct {
	Op    Opcode
	Value int64
	Name  string
}

// String renders the instruction as one listing line.
func (in Instruction) String() string {
	if int(in.Op) >= len(opcodeTable) {
		return "UNKNOWN"
	}
	switch opcodeTable[in.Op].operand {
	case operandInt:
		return in.Op.String() + "\t" + strconv.FormatInt(in.Value, 10)
	case operandName:
		return in.Op.String() + "\t" + in.Name
	}
	return in.Op.String()
}

func PushConst(v int64) Instruction { return Instruction{Op: OpPushConst, Value: v} }
func Load(name string) Instruction  { return Instruction{Op: OpLoad, Name: name} }
func Store(name string) Instruction { return Instruction{Op: OpStore, Name: name} }
func Add() Instruction              { return Instruction{Op: OpAdd} }
func Subtract() Instruction         { return Instruction{Op: OpSub} }
func Multiply() Instruction         { return Instruction{Op: OpMul} }
func Divide() Instruction           { return Instruction{Op: OpDiv} }
func Negate() Instruction           { return Instruction{Op: OpNeg} }
func SquareRoot() Instruction       { return Instruction{Op: OpSqrt} }
func Print() Instruction            { return Instruction{Op: OpPrint} }
