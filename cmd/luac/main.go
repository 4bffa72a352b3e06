package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/teris-io/cli"

	"luac51.dev/compiler/pkg/dump"
	"luac51.dev/compiler/pkg/luacode"
	"luac51.dev/compiler/pkg/parser"
)

var Description = strings.ReplaceAll(`
luac51 compiles a Lua 5.1 source file down to its bytecode prototype and
prints a luac -l style disassembly of the result: the instruction stream,
the constants table, and the locals table. It does not produce a binary
chunk, only a text listing.
`, "\n", " ")

var Luac = cli.New(Description).
	WithArg(cli.NewArg("input", "The Lua source (.lua) file to compile")).
	WithOption(cli.NewOption("output", "Write the disassembly to this file instead of stdout").
		WithType(cli.TypeString)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	listing, err := compile(args[0])
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}

	if options["output"] == "" {
		fmt.Print(listing)
		return 0
	}

	if err := os.WriteFile(options["output"], []byte(listing), 0644); err != nil {
		fmt.Printf("ERROR: Unable to write output file: %s\n", err)
		return -1
	}
	return 0
}

// compile runs the full pipeline for one source file: parse, generate,
// disassemble. Each stage's error is wrapped with the stage name so a
// failure's origin is obvious without a stack trace.
func compile(input string) (string, error) {
	content, err := os.ReadFile(input)
	if err != nil {
		return "", errors.Wrap(err, "reading input")
	}

	p := parser.NewParser(bytes.NewReader(content))
	block, err := p.Parse()
	if err != nil {
		return "", errors.Wrap(err, "parsing")
	}

	gen := luacode.NewGenerator()
	proto, err := gen.Generate(&block)
	if err != nil {
		return "", errors.Wrap(err, "code generation")
	}
	proto.Name = input

	disasm := dump.NewDisassembler(proto)
	listing, err := disasm.Generate()
	if err != nil {
		return "", errors.Wrap(err, "disassembly")
	}
	return listing, nil
}

func main() { os.Exit(Luac.Run(os.Args, os.Stdout)) }
