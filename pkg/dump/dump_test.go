package dump_test

import (
	"strings"
	"testing"

	"luac51.dev/compiler/pkg/dump"
	"luac51.dev/compiler/pkg/luacode"
	"luac51.dev/compiler/pkg/parser"
)

func compile(t *testing.T, source string) *luacode.Prototype {
	t.Helper()
	p := parser.NewParser(strings.NewReader(source))
	block, err := p.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	gen := luacode.NewGenerator()
	proto, err := gen.Generate(&block)
	if err != nil {
		t.Fatalf("unexpected generation error: %v", err)
	}
	return proto
}

func TestGenerateListsInstructionsConstantsAndLocals(t *testing.T) {
	proto := compile(t, "local a = 1\nreturn a")
	disasm := dump.NewDisassembler(proto)

	listing, err := disasm.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"LOADK", "RETURN", "constants:", "1", "locals:", "a"} {
		if !strings.Contains(listing, want) {
			t.Errorf("expected listing to contain %q, got:\n%s", want, listing)
		}
	}
}

func TestGenerateOmitsEmptyConstantsAndLocalsSections(t *testing.T) {
	proto := compile(t, "return 1")
	disasm := dump.NewDisassembler(proto)

	listing, err := disasm.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(listing, "locals:") {
		t.Errorf("expected no locals section for a chunk with no locals, got:\n%s", listing)
	}
	if !strings.Contains(listing, "constants:") {
		t.Errorf("expected a constants section (the literal 1), got:\n%s", listing)
	}
}

func TestGenerateRejectsNilPrototype(t *testing.T) {
	disasm := dump.NewDisassembler(nil)
	if _, err := disasm.Generate(); err == nil {
		t.Error("expected an error for a nil prototype")
	}
}

// LOADK's trailing comment resolves the constant index to its value so a
// reader doesn't have to cross-reference the constants table by hand.
func TestGenerateInstructionAnnotatesLoadKWithConstant(t *testing.T) {
	proto := compile(t, `local s = "hi"`)
	disasm := dump.NewDisassembler(proto)

	var loadK luacode.Instruction
	found := false
	for _, instr := range proto.Code {
		if instr.OpCode() == luacode.OpLoadK {
			loadK = instr
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected a LOADK instruction")
	}

	line, err := disasm.GenerateInstruction(0, loadK)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(line, `"hi"`) {
		t.Errorf("expected the LOADK line to annotate the string constant, got %q", line)
	}
}

// A binary op's RK-encoded constant operand is resolved the same way.
func TestGenerateInstructionAnnotatesRKConstant(t *testing.T) {
	proto := compile(t, "local x = 1\nreturn x + 2")
	disasm := dump.NewDisassembler(proto)

	var add luacode.Instruction
	found := false
	for _, instr := range proto.Code {
		if instr.OpCode() == luacode.OpAdd {
			add = instr
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected an ADD instruction")
	}

	line, err := disasm.GenerateInstruction(0, add)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(line, "2") {
		t.Errorf("expected the ADD line to annotate its constant operand with 2, got %q", line)
	}
}
