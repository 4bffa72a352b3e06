package luacode

import "fmt"

// Bit widths of a Lua 5.1 instruction word, matching the reference
// compiler's lopcodes.h exactly: a 32-bit word split into an opcode and
// either three small fields (A/B/C) or one wide field (Bx/sBx).
const (
	sizeOp = 6
	sizeA  = 8
	sizeB  = 9
	sizeC  = 9
	sizeBx = sizeB + sizeC

	posOp = 0
	posA  = posOp + sizeOp
	posC  = posA + sizeA
	posB  = posC + sizeC
	posBx = posC

	maxArgA  = 1<<sizeA - 1
	maxArgB  = 1<<sizeB - 1
	maxArgC  = 1<<sizeC - 1
	maxArgBx = 1<<sizeBx - 1
	// sBx is stored biased so it can be represented unsigned on the wire.
	maxArgSBx = maxArgBx >> 1

	// BitRK set on a B or C operand means "this is a constant-table index,
	// not a register index" (the RK encoding, glossary).
	BitRK = 1 << (sizeB - 1)
	// MaxIndexRK is the largest constant index encodable as an RK operand.
	MaxIndexRK = BitRK - 1
)

// Instruction is an opaque 32-bit VM word. Use the typed constructors below
// to build one and the ArgX accessors to read it back; never manipulate the
// bits directly outside this file.
type Instruction uint32

func mask(width uint) uint32 { return 1<<width - 1 }

// NewABC builds an iABC-mode instruction.
func NewABC(op OpCode, a, b, c int) Instruction {
	if op.Mode() != IABC {
		panic(fmt.Sprintf("luacode: %s is not an iABC instruction", op))
	}
	return Instruction(uint32(op)<<posOp |
		(uint32(a)&mask(sizeA))<<posA |
		(uint32(b)&mask(sizeB))<<posB |
		(uint32(c)&mask(sizeC))<<posC)
}

// NewABx builds an iABx-mode instruction (unsigned wide operand).
func NewABx(op OpCode, a, bx int) Instruction {
	if op.Mode() != IABx {
		panic(fmt.Sprintf("luacode: %s is not an iABx instruction", op))
	}
	return Instruction(uint32(op)<<posOp |
		(uint32(a)&mask(sizeA))<<posA |
		(uint32(bx)&mask(sizeBx))<<posBx)
}

// NewAsBx builds an iAsBx-mode instruction (signed wide operand, biased).
func NewAsBx(op OpCode, a, sbx int) Instruction {
	if op.Mode() != IAsBx {
		panic(fmt.Sprintf("luacode: %s is not an iAsBx instruction", op))
	}
	bx := sbx + maxArgSBx
	return Instruction(uint32(op)<<posOp |
		(uint32(a)&mask(sizeA))<<posA |
		(uint32(bx)&mask(sizeBx))<<posBx)
}

func (i Instruction) OpCode() OpCode { return OpCode(uint32(i) >> posOp & mask(sizeOp)) }
func (i Instruction) ArgA() int      { return int(uint32(i) >> posA & mask(sizeA)) }
func (i Instruction) ArgB() int      { return int(uint32(i) >> posB & mask(sizeB)) }
func (i Instruction) ArgC() int      { return int(uint32(i) >> posC & mask(sizeC)) }
func (i Instruction) ArgBx() int     { return int(uint32(i) >> posBx & mask(sizeBx)) }
func (i Instruction) ArgSBx() int    { return i.ArgBx() - maxArgSBx }

// WithArgA returns a copy of i with its A operand replaced. Used to patch a
// relocable instruction's destination register once it becomes known.
func (i Instruction) WithArgA(a int) Instruction {
	cleared := uint32(i) &^ (mask(sizeA) << posA)
	return Instruction(cleared | (uint32(a)&mask(sizeA))<<posA)
}

// WithArgC returns a copy of i with its C operand replaced. Used to patch a
// pending return/argument count once the true multi-ret count is known.
func (i Instruction) WithArgC(c int) Instruction {
	cleared := uint32(i) &^ (mask(sizeC) << posC)
	return Instruction(cleared | (uint32(c)&mask(sizeC))<<posC)
}

// WithArgB returns a copy of i with its B operand replaced.
func (i Instruction) WithArgB(b int) Instruction {
	cleared := uint32(i) &^ (mask(sizeB) << posB)
	return Instruction(cleared | (uint32(b)&mask(sizeB))<<posB)
}

// IsK reports whether an RK-encoded B or C operand refers to a constant.
func IsK(arg int) bool { return arg&BitRK != 0 }

// RK sets the constant-flag bit on a constant-table index so it can be used
// as a B or C operand in place of a register.
func RK(constantIndex int) int { return constantIndex | BitRK }

// IndexK strips the constant-flag bit off an RK operand known to be a
// constant (callers must check IsK first).
func IndexK(arg int) int { return arg &^ BitRK }

func (i Instruction) String() string {
	op := i.OpCode()
	switch op.Mode() {
	case IABx:
		return fmt.Sprintf("%-10s A=%d Bx=%d", op, i.ArgA(), i.ArgBx())
	case IAsBx:
		return fmt.Sprintf("%-10s A=%d sBx=%d", op, i.ArgA(), i.ArgSBx())
	default:
		return fmt.Sprintf("%-10s A=%d B=%d C=%d", op, i.ArgA(), i.ArgB(), i.ArgC())
	}
}
