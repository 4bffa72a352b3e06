// Package dump implements a luac -l style disassembler: a human-readable
// listing of a prototype's instruction stream, constants table, and locals,
// not the binary chunk format (spec explicitly scopes serialization out).
// This is the generator's main observability surface, the text equivalent
// of the teacher's GenerateXxxOp dispatch but one opcode family at a time.
package dump

import (
	"fmt"
	"strings"

	"luac51.dev/compiler/pkg/luacode"
)

// Disassembler renders a single *luacode.Prototype to text.
type Disassembler struct {
	proto *luacode.Prototype
}

// NewDisassembler returns a Disassembler for proto. Requires proto to be
// non-nil.
func NewDisassembler(proto *luacode.Prototype) Disassembler {
	return Disassembler{proto: proto}
}

// Generate produces the full listing: header, instruction stream annotated
// with operand meaning, constants table, and locals table, in that order
// (mirroring luac -l's own section ordering).
func (d *Disassembler) Generate() (string, error) {
	if d.proto == nil {
		return "", fmt.Errorf("dump: nil prototype")
	}

	var b strings.Builder
	b.WriteString(d.header())
	for i, instr := range d.proto.Code {
		line, err := d.GenerateInstruction(i, instr)
		if err != nil {
			return "", err
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(d.constants())
	b.WriteString(d.locals())
	return b.String(), nil
}

func (d *Disassembler) header() string {
	name := d.proto.Name
	if name == "" {
		name = "main"
	}
	vararg := ""
	if d.proto.IsVararg {
		vararg = "+"
	}
	return fmt.Sprintf("%s (%d instructions)\n0%s params, %d slots, %d locals, %d constants\n",
		name, len(d.proto.Code), vararg, d.proto.MaxStackSize, len(d.proto.Locals), len(d.proto.Constants))
}

// GenerateInstruction renders one instruction at index pc, including a
// trailing comment for operands a reader can't decode from the raw numbers
// alone: an RK operand resolves to its constant, a jump shows its target pc.
func (d *Disassembler) GenerateInstruction(pc int, instr luacode.Instruction) (string, error) {
	op := instr.OpCode()
	var body string
	switch op.Mode() {
	case luacode.IABx:
		body = fmt.Sprintf("%-10s %d %d", op, instr.ArgA(), instr.ArgBx())
	case luacode.IAsBx:
		body = fmt.Sprintf("%-10s %d %d", op, instr.ArgA(), instr.ArgSBx())
	default:
		body = fmt.Sprintf("%-10s %d %d %d", op, instr.ArgA(), instr.ArgB(), instr.ArgC())
	}

	comment := d.GenerateComment(pc, instr)
	if comment != "" {
		return fmt.Sprintf("\t%d\t%s\t; %s", pc+1, body, comment), nil
	}
	return fmt.Sprintf("\t%d\t%s", pc+1, body), nil
}

// GenerateComment produces the annotation luac prints after an instruction
// whose operands reference something not obvious from the raw numbers:
// a constant, a jump displacement's landing pc, or an RK-encoded operand.
func (d *Disassembler) GenerateComment(pc int, instr luacode.Instruction) string {
	switch instr.OpCode() {
	case luacode.OpLoadK:
		return d.constantComment(instr.ArgBx())
	case luacode.OpGetGlobal, luacode.OpSetGlobal:
		return d.constantComment(instr.ArgBx())
	case luacode.OpJmp:
		return fmt.Sprintf("to %d", pc+2+instr.ArgSBx())
	case luacode.OpForLoop, luacode.OpForPrep:
		return fmt.Sprintf("to %d", pc+2+instr.ArgSBx())
	case luacode.OpGetTable, luacode.OpSetTable, luacode.OpAdd, luacode.OpSub,
		luacode.OpMul, luacode.OpDiv, luacode.OpMod, luacode.OpPow,
		luacode.OpEq, luacode.OpLt, luacode.OpLe, luacode.OpSelf:
		return d.rkComment(instr.ArgB(), instr.ArgC())
	default:
		return ""
	}
}

func (d *Disassembler) constantComment(index int) string {
	if index < 0 || index >= len(d.proto.Constants) {
		return ""
	}
	return formatConstant(d.proto.Constants[index])
}

// rkComment annotates whichever of B/C (or both) are RK-encoded constant
// references; register operands are left to speak for themselves.
func (d *Disassembler) rkComment(b, c int) string {
	var parts []string
	if luacode.IsK(b) {
		parts = append(parts, formatConstant(d.proto.Constants[luacode.IndexK(b)]))
	}
	if luacode.IsK(c) {
		parts = append(parts, formatConstant(d.proto.Constants[luacode.IndexK(c)]))
	}
	return strings.Join(parts, " ")
}

func formatConstant(v luacode.Value) string {
	switch v.Kind() {
	case luacode.KindNil:
		return "nil"
	case luacode.KindBool:
		return fmt.Sprintf("%t", v.AsBool())
	case luacode.KindNumber:
		return fmt.Sprintf("%v", v.AsNumber())
	case luacode.KindString:
		return fmt.Sprintf("%q", v.AsString())
	default:
		return "?"
	}
}

func (d *Disassembler) constants() string {
	if len(d.proto.Constants) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("constants:\n")
	for i, c := range d.proto.Constants {
		fmt.Fprintf(&b, "\t%d\t%s\n", i, formatConstant(c))
	}
	return b.String()
}

func (d *Disassembler) locals() string {
	if len(d.proto.Locals) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("locals:\n")
	for i, l := range d.proto.Locals {
		fmt.Fprintf(&b, "\t%d\t%s\t%d\t%d\n", i, l.Name, l.ActiveFrom, l.DeadFrom)
	}
	return b.String()
}
