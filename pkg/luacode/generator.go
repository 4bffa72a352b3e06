// Package luacode implements the Lua 5.1 code generator: constants table,
// register allocator, expression descriptor discharge machinery, and the
// AST walker that drives them (this file).
package luacode

import (
	"luac51.dev/compiler/pkg/errs"
	"luac51.dev/compiler/pkg/luaast"
)

// Generator walks a luaast.Block and drives one FuncState's code emission.
// It carries no state of its own beyond what FuncState already owns; the
// receiver exists so the walker reads the way pkg/jack/lowering.go's
// Lowerer does (one method per AST node kind, dispatched by type switch).
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// Generate compiles a whole chunk: a vararg main FuncState whose body is
// block, with the compile driver's own trailing RETURN(0,0) appended after
// it regardless of whether the body already ends in an explicit return
// (spec §4.5 Return: "an explicit return thus produces two RETURN
// instructions, matching the reference").
func (g *Generator) Generate(block *luaast.Block) (*Prototype, error) {
	fs := NewFuncState(nil, "", true)
	if err := g.genBlock(fs, block); err != nil {
		return nil, err
	}
	fs.emit(NewABC(OpReturn, 0, 1, 0))
	fs.removeLocals(fs.NumActiveLocals)
	return fs.Finish(), nil
}

func (g *Generator) genBlock(fs *FuncState, b *luaast.Block) error {
	for _, stmt := range b.Statements {
		if err := g.genStatement(fs, stmt); err != nil {
			return err
		}
		// Invariant: free_register == num_active_local_vars after every
		// top-level statement (spec §3, testable property 2).
		fs.FreeRegister = fs.NumActiveLocals
	}
	return nil
}

func (g *Generator) genStatement(fs *FuncState, stmt luaast.Statement) error {
	switch s := stmt.(type) {
	case *luaast.LocalStmt:
		return g.genLocalStmt(fs, s)
	case *luaast.AssignStmt:
		return g.genAssignStmt(fs, s)
	case *luaast.ReturnStmt:
		return g.genReturnStmt(fs, s)
	case *luaast.CallStmt:
		return g.genCallStmt(fs, s)
	default:
		return errs.New(errs.CompileError, errs.Position{}, "unsupported statement node %T", stmt)
	}
}

// exprList generates every expression but the last via exp2nextreg (pushing
// each to the next register) and returns the last one undischarged, so its
// multi-ret nature (call/vararg) is still visible to the caller, plus the
// total count generated. Mirrors the reference compiler's explist1.
func (g *Generator) exprList(fs *FuncState, exprs []luaast.Expression) (ExpDesc, int, error) {
	if len(exprs) == 0 {
		return VoidExp(), 0, nil
	}
	for _, e := range exprs[:len(exprs)-1] {
		desc, err := g.genExpr(fs, e)
		if err != nil {
			return ExpDesc{}, 0, err
		}
		if _, err := fs.exp2nextreg(desc); err != nil {
			return ExpDesc{}, 0, err
		}
	}
	last, err := g.genExpr(fs, exprs[len(exprs)-1])
	if err != nil {
		return ExpDesc{}, 0, err
	}
	return last, len(exprs), nil
}

// adjustAssign reconciles an expression list of nexprs values against
// nwanted destinations (local declarations or assignment targets): a
// multi-ret last expression is patched to produce exactly the shortfall;
// otherwise the last expression is pushed and any shortfall is padded with
// LOADNIL; any surplus is simply dropped off the top of the register stack.
// This is spec §4.5's adjust_assign step, both for locals and assignments.
func (fs *FuncState) adjustAssign(nwanted, nexprs int, last ExpDesc) error {
	extra := nwanted - nexprs
	if last.IsMultiRet() {
		extra++
		if extra < 0 {
			extra = 0
		}
		if err := fs.setReturnsChecked(last, extra); err != nil {
			return err
		}
		if extra > 1 {
			if err := fs.reserveRegisters(extra - 1); err != nil {
				return err
			}
		}
	} else {
		if last.Kind != ExpVoid {
			if _, err := fs.exp2nextreg(last); err != nil {
				return err
			}
		}
		if extra > 0 {
			reg := fs.FreeRegister
			if err := fs.reserveRegisters(extra); err != nil {
				return err
			}
			fs.codeNil(reg, extra)
		}
	}
	if nexprs > nwanted {
		fs.FreeRegister -= nexprs - nwanted
	}
	return nil
}

// setReturnsChecked wraps setReturns for the reserveRegisters-style error
// path VARARG's patch can raise (stack overflow on the vararg's own slot).
func (fs *FuncState) setReturnsChecked(e ExpDesc, nresults int) error {
	inst := fs.Code[e.Info]
	if inst.OpCode() == OpVararg {
		fs.Code[e.Info] = inst.WithArgB(nresults + 1).WithArgA(fs.FreeRegister)
		return fs.reserveRegisters(1)
	}
	fs.setReturns(e, nresults)
	return nil
}

func (g *Generator) genLocalStmt(fs *FuncState, s *luaast.LocalStmt) error {
	for _, name := range s.Names {
		if _, err := fs.newLocal(name); err != nil {
			return err
		}
	}
	last, nexprs, err := g.exprList(fs, s.Exprs)
	if err != nil {
		return err
	}
	if err := fs.adjustAssign(len(s.Names), nexprs, last); err != nil {
		return err
	}
	fs.activateLocals(len(s.Names))
	return nil
}

// genTargetExpr generates an assignment LHS target into the ExpDesc variant
// spec §4.5 names (local_register, global, or indexed).
func (g *Generator) genTargetExpr(fs *FuncState, expr luaast.Expression) (ExpDesc, error) {
	switch t := expr.(type) {
	case *luaast.NameExpr:
		if reg, ok := fs.resolveLocal(t.Name); ok {
			return LocalExp(reg), nil
		}
		k, err := fs.stringConstant(t.Name)
		if err != nil {
			return ExpDesc{}, err
		}
		return GlobalExp(k), nil

	case *luaast.IndexExpr:
		tbl, err := g.genExpr(fs, t.Target)
		if err != nil {
			return ExpDesc{}, err
		}
		tblE, err := fs.exp2anyreg(tbl)
		if err != nil {
			return ExpDesc{}, err
		}
		key, err := g.genExpr(fs, t.Key)
		if err != nil {
			return ExpDesc{}, err
		}
		_, keyRK, err := fs.exp2RK(key)
		if err != nil {
			return ExpDesc{}, err
		}
		return IndexedExp(tblE.Info, keyRK), nil

	case *luaast.FieldExpr:
		tbl, err := g.genExpr(fs, t.Target)
		if err != nil {
			return ExpDesc{}, err
		}
		tblE, err := fs.exp2anyreg(tbl)
		if err != nil {
			return ExpDesc{}, err
		}
		k, err := fs.stringConstant(t.Name)
		if err != nil {
			return ExpDesc{}, err
		}
		_, keyRK, err := fs.exp2RK(ConstantExp(k))
		if err != nil {
			return ExpDesc{}, err
		}
		return IndexedExp(tblE.Info, keyRK), nil

	default:
		return ExpDesc{}, errs.New(errs.CompileError, errs.Position{}, "invalid assignment target %T", expr)
	}
}

// storeVar emits the per-target store for one assignment destination, the
// value having already been placed in valueReg (spec §4.5 "per-target
// storage").
func (fs *FuncState) storeVar(target ExpDesc, valueReg int) {
	switch target.Kind {
	case ExpLocal:
		if target.Info != valueReg {
			fs.emit(NewABC(OpMove, target.Info, valueReg, 0))
		}
	case ExpGlobal:
		fs.emit(NewABx(OpSetGlobal, valueReg, target.Info))
	case ExpIndexed:
		fs.emit(NewABC(OpSetTable, target.Info, target.Aux, valueReg))
	default:
		panic("luacode: storeVar on unexpected ExpKind")
	}
}

func (fs *FuncState) freeTargetRegs(target ExpDesc) {
	if target.Kind != ExpIndexed {
		return
	}
	if !IsK(target.Aux) {
		fs.freeRegister(target.Aux)
	}
	fs.freeRegister(target.Info)
}

func (g *Generator) genAssignStmt(fs *FuncState, s *luaast.AssignStmt) error {
	if len(s.Targets) > MaxLocals {
		return errs.New(errs.TooManyVariablesInAssignment, errs.Position{},
			"more than %d variables in assignment", MaxLocals)
	}

	targets := make([]ExpDesc, len(s.Targets))
	for i, t := range s.Targets {
		td, err := g.genTargetExpr(fs, t)
		if err != nil {
			return err
		}
		targets[i] = td
	}

	rhsBase := fs.FreeRegister
	last, nexprs, err := g.exprList(fs, s.Exprs)
	if err != nil {
		return err
	}
	if err := fs.adjustAssign(len(targets), nexprs, last); err != nil {
		return err
	}

	// Store remaining targets in reverse source order, consuming values
	// from the top of the free-register stack (spec §4.5 step 4); this
	// reversal is what keeps register freeing in LIFO order.
	for i := len(targets) - 1; i >= 0; i-- {
		valueReg := rhsBase + i
		fs.storeVar(targets[i], valueReg)
		fs.freeRegister(valueReg)
	}
	for i := len(targets) - 1; i >= 0; i-- {
		fs.freeTargetRegs(targets[i])
	}
	return nil
}

func (g *Generator) genReturnStmt(fs *FuncState, s *luaast.ReturnStmt) error {
	if len(s.Exprs) == 0 {
		fs.emit(NewABC(OpReturn, 0, 1, 0))
		return nil
	}

	if len(s.Exprs) == 1 {
		if call, ok := s.Exprs[0].(*luaast.CallExpr); ok {
			e, err := g.genCallExpr(fs, call)
			if err != nil {
				return err
			}
			inst := fs.Code[e.Info]
			if inst.OpCode() == OpCall && inst.ArgA() == fs.NumActiveLocals {
				fs.Code[e.Info] = NewABC(OpTailCall, inst.ArgA(), inst.ArgB(), 0)
				fs.emit(NewABC(OpReturn, fs.NumActiveLocals, 0, 0))
				return nil
			}
			return g.finishReturn(fs, e, 1)
		}
	}

	last, nexprs, err := g.exprList(fs, s.Exprs)
	if err != nil {
		return err
	}
	return g.finishReturn(fs, last, nexprs)
}

func (g *Generator) finishReturn(fs *FuncState, last ExpDesc, nexprs int) error {
	base := fs.NumActiveLocals
	if last.IsMultiRet() {
		if err := fs.setReturnsChecked(last, -1); err != nil {
			return err
		}
		fs.emit(NewABC(OpReturn, base, 0, 0))
		return nil
	}
	if _, err := fs.exp2nextreg(last); err != nil {
		return err
	}
	nret := fs.FreeRegister - base
	fs.emit(NewABC(OpReturn, base, nret+1, 0))
	return nil
}

func (g *Generator) genCallStmt(fs *FuncState, s *luaast.CallStmt) error {
	e, err := g.genExpr(fs, s.Call)
	if err != nil {
		return err
	}
	if e.Kind == ExpCall {
		fs.Code[e.Info] = fs.Code[e.Info].WithArgC(1) // statement context: discard all results
	}
	return nil
}

// genArgs pushes a call's argument list and returns CALL's B operand
// (number of arguments + 1; 0 means "all values up to top", i.e. the last
// argument was itself multi-ret).
func (g *Generator) genArgs(fs *FuncState, base int, args []luaast.Expression) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	last, _, err := g.exprList(fs, args)
	if err != nil {
		return 0, err
	}
	if last.IsMultiRet() {
		if err := fs.setReturnsChecked(last, -1); err != nil {
			return 0, err
		}
		return 0, nil
	}
	if _, err := fs.exp2nextreg(last); err != nil {
		return 0, err
	}
	return fs.FreeRegister - base, nil
}

func (g *Generator) genCallExpr(fs *FuncState, c *luaast.CallExpr) (ExpDesc, error) {
	callee, err := g.genExpr(fs, c.Callee)
	if err != nil {
		return ExpDesc{}, err
	}
	calleeE, err := fs.exp2nextreg(callee)
	if err != nil {
		return ExpDesc{}, err
	}
	base := calleeE.Info

	bField, err := g.genArgs(fs, base, c.Args)
	if err != nil {
		return ExpDesc{}, err
	}

	pc := fs.emit(NewABC(OpCall, base, bField, 2)) // 1 result by default (spec §4.5 Call)
	fs.FreeRegister = base + 1
	return CallExp(pc), nil
}

func (g *Generator) genMethodCallExpr(fs *FuncState, c *luaast.MethodCallExpr) (ExpDesc, error) {
	recv, err := g.genExpr(fs, c.Receiver)
	if err != nil {
		return ExpDesc{}, err
	}
	recvE, err := fs.exp2anyreg(recv)
	if err != nil {
		return ExpDesc{}, err
	}
	base := recvE.Info

	if err := fs.reserveRegisters(1); err != nil { // the implicit self slot at base+1
		return ExpDesc{}, err
	}
	keyK, err := fs.stringConstant(c.Method)
	if err != nil {
		return ExpDesc{}, err
	}
	_, keyRK, err := fs.exp2RK(ConstantExp(keyK))
	if err != nil {
		return ExpDesc{}, err
	}
	fs.emit(NewABC(OpSelf, base, recvE.Info, keyRK))

	bField, err := g.genArgs(fs, base, c.Args)
	if err != nil {
		return ExpDesc{}, err
	}

	pc := fs.emit(NewABC(OpCall, base, bField, 2))
	fs.FreeRegister = base + 1
	return CallExp(pc), nil
}

func (g *Generator) genExpr(fs *FuncState, expr luaast.Expression) (ExpDesc, error) {
	switch e := expr.(type) {
	case *luaast.NilExpr:
		return NilExp(), nil
	case *luaast.TrueExpr:
		return TrueExp(), nil
	case *luaast.FalseExpr:
		return FalseExp(), nil
	case *luaast.NumberExpr:
		return NumberExp(e.Value), nil
	case *luaast.StringExpr:
		k, err := fs.stringConstant(e.Value)
		if err != nil {
			return ExpDesc{}, err
		}
		return ConstantExp(k), nil
	case *luaast.VarargExpr:
		if !fs.IsVararg {
			return ExpDesc{}, errs.New(errs.CompileError, errs.Position{}, "cannot use '...' outside a vararg function")
		}
		pc := fs.emit(NewABC(OpVararg, 0, 1, 0))
		return VarargExp(pc), nil
	case *luaast.NameExpr:
		if reg, ok := fs.resolveLocal(e.Name); ok {
			return LocalExp(reg), nil
		}
		k, err := fs.stringConstant(e.Name)
		if err != nil {
			return ExpDesc{}, err
		}
		return GlobalExp(k), nil
	case *luaast.IndexExpr:
		tbl, err := g.genExpr(fs, e.Target)
		if err != nil {
			return ExpDesc{}, err
		}
		tblE, err := fs.exp2anyreg(tbl)
		if err != nil {
			return ExpDesc{}, err
		}
		key, err := g.genExpr(fs, e.Key)
		if err != nil {
			return ExpDesc{}, err
		}
		_, keyRK, err := fs.exp2RK(key)
		if err != nil {
			return ExpDesc{}, err
		}
		return IndexedExp(tblE.Info, keyRK), nil
	case *luaast.FieldExpr:
		tbl, err := g.genExpr(fs, e.Target)
		if err != nil {
			return ExpDesc{}, err
		}
		tblE, err := fs.exp2anyreg(tbl)
		if err != nil {
			return ExpDesc{}, err
		}
		k, err := fs.stringConstant(e.Name)
		if err != nil {
			return ExpDesc{}, err
		}
		_, keyRK, err := fs.exp2RK(ConstantExp(k))
		if err != nil {
			return ExpDesc{}, err
		}
		return IndexedExp(tblE.Info, keyRK), nil
	case *luaast.CallExpr:
		return g.genCallExpr(fs, e)
	case *luaast.MethodCallExpr:
		return g.genMethodCallExpr(fs, e)
	case *luaast.TableExpr:
		return g.genTableExpr(fs, e)
	case *luaast.BinaryExpr:
		return g.genBinaryExpr(fs, e)
	case *luaast.UnaryExpr:
		return g.genUnaryExpr(fs, e)
	case *luaast.GroupedExpr:
		inner, err := g.genExpr(fs, e.Inner)
		if err != nil {
			return ExpDesc{}, err
		}
		if inner.IsMultiRet() {
			return fs.setOneReturn(inner), nil
		}
		return inner, nil
	default:
		return ExpDesc{}, errs.New(errs.CompileError, errs.Position{}, "unsupported expression node %T", expr)
	}
}

func toBinArith(op luaast.BinaryOp) (BinArithOp, bool) {
	switch op {
	case luaast.OpAdd:
		return BinAdd, true
	case luaast.OpSub:
		return BinSub, true
	case luaast.OpMul:
		return BinMul, true
	case luaast.OpDiv:
		return BinDiv, true
	case luaast.OpMod:
		return BinMod, true
	case luaast.OpPow:
		return BinPow, true
	default:
		return 0, false
	}
}

func (g *Generator) genBinaryExpr(fs *FuncState, e *luaast.BinaryExpr) (ExpDesc, error) {
	if e.Op == luaast.OpConcat {
		return g.genConcat(fs, e)
	}

	arithOp, ok := toBinArith(e.Op)
	if !ok {
		return ExpDesc{}, errs.New(errs.CompileError, errs.Position{}, "unsupported binary operator")
	}

	lhs, err := g.genExpr(fs, e.Lhs)
	if err != nil {
		return ExpDesc{}, err
	}
	// Mirrors the reference compiler's luaK_infix: a left operand that is
	// already a plain numeral is left untouched here, so the constant-fold
	// check below can still fire without interning a constant it would
	// immediately discard. Anything else is discharged to RK before the
	// right operand is generated, so the right operand's code never lands
	// in a register the left operand still needs to read from.
	lhsE := lhs
	if _, isNum := lhs.IsNumeral(fs.Constants); !isNum {
		lhsE, _, err = fs.exp2RK(lhs)
		if err != nil {
			return ExpDesc{}, err
		}
	}

	rhs, err := g.genExpr(fs, e.Rhs)
	if err != nil {
		return ExpDesc{}, err
	}

	if folded, ok := foldArith(fs.Constants, arithOp, lhsE, rhs); ok {
		return folded, nil
	}

	lhsE, lhsRK, err := fs.exp2RK(lhsE)
	if err != nil {
		return ExpDesc{}, err
	}
	rhsE, rhsRK, err := fs.exp2RK(rhs)
	if err != nil {
		return ExpDesc{}, err
	}
	// Ordering rule: free whichever operand occupies the higher register
	// first so the LIFO free invariant holds (spec §4.3).
	fs.freeExps(lhsE, rhsE)

	pc := fs.emit(NewABC(arithOp.opcode(), 0, lhsRK, rhsRK))
	return RelocExp(pc), nil
}

// genConcat is never constant-folded (spec §4.4: "concat are never
// folded"); both operands are forced into consecutive registers.
func (g *Generator) genConcat(fs *FuncState, e *luaast.BinaryExpr) (ExpDesc, error) {
	lhs, err := g.genExpr(fs, e.Lhs)
	if err != nil {
		return ExpDesc{}, err
	}
	lhsE, err := fs.exp2nextreg(lhs)
	if err != nil {
		return ExpDesc{}, err
	}
	rhs, err := g.genExpr(fs, e.Rhs)
	if err != nil {
		return ExpDesc{}, err
	}
	rhsE, err := fs.exp2nextreg(rhs)
	if err != nil {
		return ExpDesc{}, err
	}

	fs.freeRegister(rhsE.Info)
	fs.freeRegister(lhsE.Info)
	pc := fs.emit(NewABC(OpConcat, 0, lhsE.Info, rhsE.Info))
	return RelocExp(pc), nil
}

func (g *Generator) genUnaryExpr(fs *FuncState, e *luaast.UnaryExpr) (ExpDesc, error) {
	operand, err := g.genExpr(fs, e.Operand)
	if err != nil {
		return ExpDesc{}, err
	}

	if e.Op == luaast.OpNeg {
		if folded, ok := foldUnaryMinus(fs.Constants, operand); ok {
			return folded, nil
		}
	}

	reg, err := fs.exp2anyreg(operand)
	if err != nil {
		return ExpDesc{}, err
	}
	fs.freeExp(reg)

	op := OpUnm
	if e.Op == luaast.OpLen {
		op = OpLen
	}
	pc := fs.emit(NewABC(op, 0, reg.Info, 0))
	return RelocExp(pc), nil
}

// sizeHint encodes a count as the 8-bit floating-point byte the reference
// compiler uses for NEWTABLE's array/hash size hints (luaO_int2fb):
// mantissa/exponent pairs so sizes up to a few billion fit in one byte.
func sizeHint(x int) int {
	e := 0
	for x >= 16 {
		x = (x + 1) >> 1
		e++
	}
	if x < 8 {
		return x
	}
	return ((e + 1) << 3) | (x - 8)
}

func (g *Generator) genTableExpr(fs *FuncState, t *luaast.TableExpr) (ExpDesc, error) {
	pc := fs.emit(NewABC(OpNewTable, 0, 0, 0))
	tE, err := fs.exp2nextreg(RelocExp(pc))
	if err != nil {
		return ExpDesc{}, err
	}
	tReg := tE.Info

	arrayFlushed := 0
	toStore := 0
	hashFields := 0
	var pending ExpDesc
	havePending := false

	flush := func(isMulti bool) error {
		if !isMulti && toStore == 0 {
			return nil
		}
		bField := toStore
		if isMulti {
			bField = 0
		}
		batch := arrayFlushed/FieldsPerFlush + 1
		if batch > maxArgC {
			fs.emit(NewABC(OpSetList, tReg, bField, 0))
			fs.emit(Instruction(uint32(batch))) // overflow escape: batch index as a trailing raw word
		} else {
			fs.emit(NewABC(OpSetList, tReg, bField, batch))
		}
		if !isMulti {
			fs.FreeRegister -= toStore
			arrayFlushed += toStore
			toStore = 0
		}
		return nil
	}

	for _, field := range t.Fields {
		if field.Key != nil {
			keyE, err := g.genExpr(fs, field.Key)
			if err != nil {
				return ExpDesc{}, err
			}
			_, keyRK, err := fs.exp2RK(keyE)
			if err != nil {
				return ExpDesc{}, err
			}
			valE, err := g.genExpr(fs, field.Value)
			if err != nil {
				return ExpDesc{}, err
			}
			_, valRK, err := fs.exp2RK(valE)
			if err != nil {
				return ExpDesc{}, err
			}
			fs.emit(NewABC(OpSetTable, tReg, keyRK, valRK))
			if !IsK(valRK) {
				fs.freeRegister(valRK)
			}
			if !IsK(keyRK) {
				fs.freeRegister(keyRK)
			}
			hashFields++
			continue
		}

		if havePending {
			if _, err := fs.exp2nextreg(pending); err != nil {
				return ExpDesc{}, err
			}
			toStore++
			if toStore == FieldsPerFlush {
				if err := flush(false); err != nil {
					return ExpDesc{}, err
				}
			}
		}
		val, err := g.genExpr(fs, field.Value)
		if err != nil {
			return ExpDesc{}, err
		}
		pending = val
		havePending = true
	}

	if havePending {
		if pending.IsMultiRet() {
			if err := fs.setReturnsChecked(pending, -1); err != nil {
				return ExpDesc{}, err
			}
			if err := flush(true); err != nil {
				return ExpDesc{}, err
			}
		} else {
			if _, err := fs.exp2nextreg(pending); err != nil {
				return ExpDesc{}, err
			}
			toStore++
			if err := flush(false); err != nil {
				return ExpDesc{}, err
			}
		}
	}

	fs.Code[pc] = NewABC(OpNewTable, tReg, sizeHint(arrayFlushed), sizeHint(hashFields))
	return NonRelocExp(tReg), nil
}
