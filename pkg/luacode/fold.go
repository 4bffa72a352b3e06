package luacode

import "math"

// foldUnaryMinus applies constant folding for unary `-` on a numeral operand.
// `#` on a number is never folded (spec §4.4) so it is not handled here.
func foldUnaryMinus(c *Constants, e ExpDesc) (ExpDesc, bool) {
	n, ok := e.IsNumeral(c)
	if !ok || e.HasJumps() {
		return e, false
	}
	return NumberExp(-n), true
}

// foldArith applies constant folding for binary `+ - * / % ^` when both
// operands are number-literal descriptors with no pending jumps. Division
// and modulo by exactly zero are deliberately excluded: the runtime must
// raise the error there instead (spec §4.4).
func foldArith(c *Constants, op BinArithOp, e1, e2 ExpDesc) (ExpDesc, bool) {
	if e1.HasJumps() || e2.HasJumps() {
		return e1, false
	}
	n1, ok1 := e1.IsNumeral(c)
	n2, ok2 := e2.IsNumeral(c)
	if !ok1 || !ok2 {
		return e1, false
	}

	var result float64
	switch op {
	case BinAdd:
		result = n1 + n2
	case BinSub:
		result = n1 - n2
	case BinMul:
		result = n1 * n2
	case BinDiv:
		if n2 == 0 {
			return e1, false
		}
		result = n1 / n2
	case BinMod:
		if n2 == 0 {
			return e1, false
		}
		result = n1 - math.Floor(n1/n2)*n2
	case BinPow:
		result = math.Pow(n1, n2)
	default:
		return e1, false
	}

	// Matches the reference compiler's constfolding: a result that can't
	// represent itself back as a numeral (NaN) is left for the runtime to
	// produce via the opcode instead of baked into the constants table.
	if math.IsNaN(result) {
		return e1, false
	}
	return NumberExp(result), true
}

// BinArithOp enumerates the binary operators eligible for folding and
// direct opcode emission (comparison, concat, logical operators are handled
// elsewhere or not at all, per spec §9 Open Questions).
type BinArithOp uint8

const (
	BinAdd BinArithOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinPow
)

func (op BinArithOp) opcode() OpCode {
	switch op {
	case BinAdd:
		return OpAdd
	case BinSub:
		return OpSub
	case BinMul:
		return OpMul
	case BinDiv:
		return OpDiv
	case BinMod:
		return OpMod
	case BinPow:
		return OpPow
	default:
		panic("luacode: unreachable BinArithOp")
	}
}
