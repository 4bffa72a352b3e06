package luacode

// Prototype is the generator's output for one function: everything a
// dumper needs to serialize, and everything pkg/dump needs to disassemble.
// Produced once per FuncState, after its body has been fully generated.
type Prototype struct {
	Name         string
	Code         []Instruction
	Constants    []Value
	MaxStackSize int
	IsVararg     bool
	Locals       []LocalVar
}

// Finish extracts fs's long-lived output. Called once generation of fs's
// body is complete; fs itself (the transient arena) is discarded afterward.
func (fs *FuncState) Finish() *Prototype {
	return &Prototype{
		Name:         fs.Name,
		Code:         fs.Code,
		Constants:    fs.Constants.List(),
		MaxStackSize: fs.MaxStackSize,
		IsVararg:     fs.IsVararg,
		Locals:       fs.Locals,
	}
}
