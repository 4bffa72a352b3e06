package luacode

// codeNil emits a LOADNIL covering registers [from, from+n).
func (fs *FuncState) codeNil(from, n int) {
	fs.emit(NewABC(OpLoadNil, from, from+n-1, 0))
}

// dischargevars resolves the "not yet materialized" variants of e into a
// form discharge2reg can finish: a local becomes nonreloc, a global becomes
// a relocable GETGLOBAL, an indexed expression becomes a relocable GETTABLE
// (freeing its key then its table register, in that order), and a
// multi-ret call/vararg is pinned down to exactly one result.
func (fs *FuncState) dischargevars(e ExpDesc) ExpDesc {
	switch e.Kind {
	case ExpLocal:
		return NonRelocExp(e.Info)

	case ExpGlobal:
		pc := fs.emit(NewABx(OpGetGlobal, 0, e.Info))
		return RelocExp(pc)

	case ExpIndexed:
		// Ordering rule: free the key register (if temporary) before the
		// table register, matching exp2RK's RK-vs-register key encoding.
		if !IsK(e.Aux) {
			fs.freeRegister(e.Aux)
		}
		fs.freeRegister(e.Info)
		pc := fs.emit(NewABC(OpGetTable, 0, e.Info, e.Aux))
		return RelocExp(pc)

	case ExpCall, ExpVararg:
		return fs.setOneReturn(e)

	default:
		return e
	}
}

// setOneReturn patches a call/vararg instruction's return count field to
// "exactly one". A call becomes nonreloc (CALL already leaves its result at
// its base register); a vararg becomes relocable, since VARARG still needs
// a destination register.
func (fs *FuncState) setOneReturn(e ExpDesc) ExpDesc {
	inst := fs.Code[e.Info]
	switch inst.OpCode() {
	case OpCall, OpTailCall:
		fs.Code[e.Info] = inst.WithArgC(2) // C=2 means "exactly 1 result"
		return NonRelocExp(inst.ArgA())
	case OpVararg:
		fs.Code[e.Info] = inst.WithArgB(2)
		return RelocExp(e.Info)
	default:
		panic("luacode: setOneReturn on non call/vararg instruction")
	}
}

// setReturns patches a pending multi-ret instruction's result count to
// nresults (use -1 for "all remaining", the LUA_MULTRET convention).
func (fs *FuncState) setReturns(e ExpDesc, nresults int) {
	inst := fs.Code[e.Info]
	switch inst.OpCode() {
	case OpCall, OpTailCall:
		fs.Code[e.Info] = inst.WithArgC(nresults + 1)
	case OpVararg:
		fs.Code[e.Info] = inst.WithArgB(nresults + 1).WithArgA(inst.ArgA())
	default:
		panic("luacode: setReturns on non call/vararg instruction")
	}
}

// discharge2reg forces e into register r, emitting whichever instruction is
// needed (LOADNIL/LOADBOOL/LOADK/MOVE) or patching an already-emitted
// relocable instruction's A operand. e is always dischargevars'd first.
func (fs *FuncState) discharge2reg(e ExpDesc, r int) (ExpDesc, error) {
	e = fs.dischargevars(e)

	switch e.Kind {
	case ExpNil:
		fs.codeNil(r, 1)
	case ExpTrue:
		fs.emit(NewABC(OpLoadBool, r, 1, 0))
	case ExpFalse:
		fs.emit(NewABC(OpLoadBool, r, 0, 0))
	case ExpConstant:
		fs.emit(NewABx(OpLoadK, r, e.Info))
	case ExpNumber:
		k, err := fs.Constants.Intern(Number(e.Num))
		if err != nil {
			return e, err
		}
		fs.emit(NewABx(OpLoadK, r, k))
	case ExpReloc:
		fs.Code[e.Info] = fs.Code[e.Info].WithArgA(r)
	case ExpNonReloc:
		if e.Info != r {
			fs.emit(NewABC(OpMove, r, e.Info, 0))
		}
	case ExpVoid, ExpJmp:
		return NonRelocExp(r), nil
	default:
		panic("luacode: discharge2reg on unexpected ExpKind")
	}

	return NonRelocExp(r), nil
}

// exp2nextreg discharges e into a freshly reserved register (the next free
// one), freeing any temporary e already held first.
func (fs *FuncState) exp2nextreg(e ExpDesc) (ExpDesc, error) {
	e = fs.dischargevars(e)
	fs.freeExp(e)
	if err := fs.reserveRegisters(1); err != nil {
		return e, err
	}
	return fs.discharge2reg(e, fs.FreeRegister-1)
}

// exp2anyreg returns a register holding e's value, reusing e's existing
// register when possible. If e already sits in a register with no pending
// jumps, it is returned unchanged, whether that register is a temporary or
// a local's home. With pending jumps, a temporary is kept, while a local's
// home is moved to a fresh temporary so the local is never clobbered.
func (fs *FuncState) exp2anyreg(e ExpDesc) (ExpDesc, error) {
	e = fs.dischargevars(e)
	if e.Kind == ExpNonReloc {
		if !e.HasJumps() {
			return e, nil
		}
		if e.Info >= fs.NumActiveLocals {
			return e, nil
		}
	}
	return fs.exp2nextreg(e)
}

// exp2RK tries to encode e as an RK operand (register-or-constant). Literal
// nil/true/false/number/already-interned-constant descriptors are eligible
// when the resulting constant index fits the RK range; everything else
// falls back to exp2anyreg.
func (fs *FuncState) exp2RK(e ExpDesc) (ExpDesc, int, error) {
	switch e.Kind {
	case ExpNil:
		k, err := fs.Constants.Intern(Nil())
		if err != nil {
			return e, 0, err
		}
		if k <= MaxIndexRK {
			return e, RK(k), nil
		}
	case ExpTrue:
		k, err := fs.Constants.Intern(Bool(true))
		if err != nil {
			return e, 0, err
		}
		if k <= MaxIndexRK {
			return e, RK(k), nil
		}
	case ExpFalse:
		k, err := fs.Constants.Intern(Bool(false))
		if err != nil {
			return e, 0, err
		}
		if k <= MaxIndexRK {
			return e, RK(k), nil
		}
	case ExpNumber:
		k, err := fs.Constants.Intern(Number(e.Num))
		if err != nil {
			return e, 0, err
		}
		if k <= MaxIndexRK {
			return e, RK(k), nil
		}
	case ExpConstant:
		if e.Info <= MaxIndexRK {
			return e, RK(e.Info), nil
		}
	}

	e, err := fs.exp2anyreg(e)
	if err != nil {
		return e, 0, err
	}
	return e, e.Info, nil
}

// stringConstant interns a string expression's value; used by GETGLOBAL-style
// name lookups (global{k} / field-access name), not by exp2RK (those stay
// as ExpConstant and go through the RK path normally).
func (fs *FuncState) stringConstant(s string) (int, error) {
	return fs.Constants.Intern(String(s))
}
