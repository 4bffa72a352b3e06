package luacode

// ExpKind tags the variants an ExpDesc can hold. Conversions between
// variants go through the discharge helpers in discharge.go; the generator
// reads Info/Aux directly once a descriptor names a register, an
// instruction, or a constant.
type ExpKind uint8

const (
	ExpVoid ExpKind = iota
	ExpNil
	ExpTrue
	ExpFalse
	ExpConstant // constants[Info]
	ExpNumber   // Num, not yet interned
	ExpLocal    // local's home register is Info
	ExpUpval    // reserved: captured-variable index (unimplemented)
	ExpGlobal   // name is constants[Info]
	ExpIndexed  // t[key]; Info=table register, Aux=key RK operand
	ExpReloc    // code[Info]'s A operand (destination) not yet patched
	ExpNonReloc // value already sits in register Info
	ExpCall     // result of CALL at code[Info]
	ExpVararg   // result of VARARG at code[Info]
	ExpJmp      // reserved: pending conditional jump (control flow, unimplemented)
)

// ExpDesc is the tagged value handed between sub-expressions during code
// generation: it records how a partially compiled expression currently
// exists, not a long-lived value. TrueList/FalseList are reserved for
// short-circuit and/or, which this generator does not implement; the
// constructors set them to noJump and they stay there throughout.
type ExpDesc struct {
	Kind ExpKind
	Info int     // register, instruction index, or constant index depending on Kind
	Aux  int     // ExpIndexed's key RK operand
	Num  float64 // ExpNumber's literal value

	TrueList  int
	FalseList int
}

// noJump marks an empty jump patch list (no pending conditional jump).
const noJump = -1

func VoidExp() ExpDesc       { return ExpDesc{Kind: ExpVoid, TrueList: noJump, FalseList: noJump} }
func NilExp() ExpDesc        { return ExpDesc{Kind: ExpNil, TrueList: noJump, FalseList: noJump} }
func TrueExp() ExpDesc       { return ExpDesc{Kind: ExpTrue, TrueList: noJump, FalseList: noJump} }
func FalseExp() ExpDesc      { return ExpDesc{Kind: ExpFalse, TrueList: noJump, FalseList: noJump} }
func NumberExp(n float64) ExpDesc {
	return ExpDesc{Kind: ExpNumber, Num: n, TrueList: noJump, FalseList: noJump}
}
func ConstantExp(k int) ExpDesc {
	return ExpDesc{Kind: ExpConstant, Info: k, TrueList: noJump, FalseList: noJump}
}
func LocalExp(reg int) ExpDesc {
	return ExpDesc{Kind: ExpLocal, Info: reg, TrueList: noJump, FalseList: noJump}
}
func GlobalExp(nameK int) ExpDesc {
	return ExpDesc{Kind: ExpGlobal, Info: nameK, TrueList: noJump, FalseList: noJump}
}
func IndexedExp(tableReg, keyRK int) ExpDesc {
	return ExpDesc{Kind: ExpIndexed, Info: tableReg, Aux: keyRK, TrueList: noJump, FalseList: noJump}
}
func RelocExp(pc int) ExpDesc {
	return ExpDesc{Kind: ExpReloc, Info: pc, TrueList: noJump, FalseList: noJump}
}
func NonRelocExp(reg int) ExpDesc {
	return ExpDesc{Kind: ExpNonReloc, Info: reg, TrueList: noJump, FalseList: noJump}
}
func CallExp(pc int) ExpDesc {
	return ExpDesc{Kind: ExpCall, Info: pc, TrueList: noJump, FalseList: noJump}
}
func VarargExp(pc int) ExpDesc {
	return ExpDesc{Kind: ExpVararg, Info: pc, TrueList: noJump, FalseList: noJump}
}

// HasJumps reports whether e has a pending true/false exit; always false in
// this generator since and/or/comparisons are not implemented, but the
// discharge helpers still check it the way the reference compiler does.
func (e ExpDesc) HasJumps() bool { return e.TrueList != e.FalseList }

// IsMultiRet reports whether e is a call or vararg result, i.e. its number
// of values is still patchable.
func (e ExpDesc) IsMultiRet() bool { return e.Kind == ExpCall || e.Kind == ExpVararg }

// IsNumeral reports whether e is foldable as a plain numeral: either a
// not-yet-interned ExpNumber, or a constant-table entry known to be a
// number.
func (e ExpDesc) IsNumeral(c *Constants) (float64, bool) {
	switch e.Kind {
	case ExpNumber:
		return e.Num, true
	case ExpConstant:
		v := c.Get(e.Info)
		if v.Kind() == KindNumber {
			return v.AsNumber(), true
		}
	}
	return 0, false
}
