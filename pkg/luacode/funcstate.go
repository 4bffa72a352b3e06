package luacode

import "luac51.dev/compiler/pkg/errs"

// Limits the reference compiler enforces on a single function's frame.
const (
	MaxLocals   = 200
	MaxStack    = 250
	FieldsPerFlush = 50
)

// LocalVar records one named local's lifetime within its owning FuncState.
// Records are append-only; a local's DeadFrom is set exactly once, when it
// leaves scope.
type LocalVar struct {
	Name       string
	ActiveFrom int
	DeadFrom   int
}

// FuncState is the per-function scratchpad: instruction buffer, constants
// table, local-variable records, active-local map, register watermark, and
// a link to the enclosing frame. One is created per function body; the
// outermost FuncState represents the main chunk.
//
// Invariants (must hold between statements, see spec §3):
//   - NumActiveLocals <= FreeRegister <= MaxStackSize
//   - registers [0, NumActiveLocals) hold named locals
//   - registers [NumActiveLocals, FreeRegister) hold temporaries
//   - FreeRegister resets to NumActiveLocals after each top-level statement
type FuncState struct {
	Prev *FuncState // enclosing frame, forming a stack for nested functions

	Constants *Constants
	Code      []Instruction

	Locals           []LocalVar
	ActiveLocalVars  []int // i-th live local's position -> index into Locals
	NumActiveLocals  int

	FreeRegister  int
	MaxStackSize  int

	IsVararg bool
	Name     string
}

func NewFuncState(prev *FuncState, name string, vararg bool) *FuncState {
	return &FuncState{
		Prev:         prev,
		Constants:    NewConstants(),
		MaxStackSize: 2,
		IsVararg:     vararg,
		Name:         name,
	}
}

// emit appends an instruction and returns its index (the PC a relocable
// ExpDesc should remember).
func (fs *FuncState) emit(i Instruction) int {
	fs.Code = append(fs.Code, i)
	return len(fs.Code) - 1
}

// reserveRegisters advances FreeRegister by n, raising MaxStackSize as
// needed. Fails with StackOverflow once the per-function register limit is
// exceeded (spec §4.2, §6 Limits).
func (fs *FuncState) reserveRegisters(n int) error {
	fs.FreeRegister += n
	if fs.FreeRegister > fs.MaxStackSize {
		if fs.FreeRegister >= MaxStack {
			return errs.New(errs.StackOverflow, errs.Position{},
				"function uses more than %d registers", MaxStack)
		}
		fs.MaxStackSize = fs.FreeRegister
	}
	return nil
}

// freeRegister releases the most recently reserved temporary. It is only
// ever valid to free the topmost free slot: this strict LIFO discipline is
// what makes single-pass generation correct (spec §4.2, §9 "register
// allocator as watermark").
func (fs *FuncState) freeRegister(r int) {
	if r < fs.NumActiveLocals {
		return // freeing a local is a no-op, never an error
	}
	if r == fs.FreeRegister-1 {
		fs.FreeRegister--
		return
	}
	panic("luacode: freeRegister called out of LIFO order")
}

// freeExp frees the register e occupies, if any. Constants and locals are
// no-ops; only ExpNonReloc temporaries actually release a register.
func (fs *FuncState) freeExp(e ExpDesc) {
	if e.Kind == ExpNonReloc {
		fs.freeRegister(e.Info)
	}
}

// freeExps frees e1 and e2 in the order the reference compiler requires:
// whichever operand occupies the higher register must be freed first, so
// the freed-temp invariant (free only the topmost temp) holds (spec §4.3
// "Ordering rule").
func (fs *FuncState) freeExps(e1, e2 ExpDesc) {
	r1, ok1 := -1, e1.Kind == ExpNonReloc
	r2, ok2 := -1, e2.Kind == ExpNonReloc
	if ok1 {
		r1 = e1.Info
	}
	if ok2 {
		r2 = e2.Info
	}

	if ok1 && ok2 {
		if r1 > r2 {
			fs.freeRegister(r1)
			fs.freeRegister(r2)
		} else {
			fs.freeRegister(r2)
			fs.freeRegister(r1)
		}
		return
	}
	fs.freeExp(e2)
	fs.freeExp(e1)
}

// newLocal registers a LocalVar (not yet active) and returns its index.
func (fs *FuncState) newLocal(name string) (int, error) {
	if len(fs.Locals) >= MaxLocals {
		return 0, errs.New(errs.TooManyLocals, errs.Position{},
			"more than %d locals in function", MaxLocals)
	}
	fs.Locals = append(fs.Locals, LocalVar{Name: name, ActiveFrom: -1, DeadFrom: -1})
	return len(fs.Locals) - 1, nil
}

// activateLocals brings the n most recently registered-but-inactive locals
// into scope, stamping each with the current instruction index as its
// active-from point and homing it to the next NumActiveLocals+i register.
func (fs *FuncState) activateLocals(n int) {
	for i := 0; i < n; i++ {
		localIdx := len(fs.Locals) - n + i
		fs.Locals[localIdx].ActiveFrom = len(fs.Code)
		fs.ActiveLocalVars = append(fs.ActiveLocalVars, localIdx)
		fs.NumActiveLocals++
	}
}

// removeLocals pops n active locals off scope (e.g. at block exit), marking
// each dead at the current instruction index.
func (fs *FuncState) removeLocals(n int) {
	for i := 0; i < n; i++ {
		fs.NumActiveLocals--
		localIdx := fs.ActiveLocalVars[fs.NumActiveLocals]
		fs.Locals[localIdx].DeadFrom = len(fs.Code)
		fs.ActiveLocalVars = fs.ActiveLocalVars[:fs.NumActiveLocals]
	}
}

// resolveLocal looks up an in-scope local by name, most recently declared
// first (so shadowing works), returning its home register.
func (fs *FuncState) resolveLocal(name string) (reg int, ok bool) {
	for i := fs.NumActiveLocals - 1; i >= 0; i-- {
		if fs.Locals[fs.ActiveLocalVars[i]].Name == name {
			return i, true
		}
	}
	return 0, false
}
