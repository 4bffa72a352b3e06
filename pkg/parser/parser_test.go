package parser_test

import (
	"strings"
	"testing"

	"luac51.dev/compiler/pkg/luaast"
	"luac51.dev/compiler/pkg/parser"
)

func parse(t *testing.T, source string) luaast.Block {
	t.Helper()
	p := parser.NewParser(strings.NewReader(source))
	block, err := p.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error for %q: %v", source, err)
	}
	return block
}

func TestParseLocalWithMultipleNamesAndExprs(t *testing.T) {
	block := parse(t, "local a, b = 1, 2")
	if len(block.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(block.Statements))
	}
	stmt, ok := block.Statements[0].(*luaast.LocalStmt)
	if !ok {
		t.Fatalf("expected *LocalStmt, got %T", block.Statements[0])
	}
	if len(stmt.Names) != 2 || stmt.Names[0] != "a" || stmt.Names[1] != "b" {
		t.Errorf("expected names [a b], got %v", stmt.Names)
	}
	if len(stmt.Exprs) != 2 {
		t.Fatalf("expected 2 initializer expressions, got %d", len(stmt.Exprs))
	}
	n0, ok := stmt.Exprs[0].(*luaast.NumberExpr)
	if !ok || n0.Value != 1 {
		t.Errorf("expected first initializer to be NumberExpr(1), got %#v", stmt.Exprs[0])
	}
}

func TestParseLocalWithoutInitializer(t *testing.T) {
	block := parse(t, "local x")
	stmt := block.Statements[0].(*luaast.LocalStmt)
	if len(stmt.Names) != 1 || stmt.Names[0] != "x" {
		t.Errorf("expected a single name 'x', got %v", stmt.Names)
	}
	if stmt.Exprs != nil {
		t.Errorf("expected no initializer expressions, got %v", stmt.Exprs)
	}
}

func TestParseAssignStmt(t *testing.T) {
	block := parse(t, "x = 1")
	stmt, ok := block.Statements[0].(*luaast.AssignStmt)
	if !ok {
		t.Fatalf("expected *AssignStmt, got %T", block.Statements[0])
	}
	if len(stmt.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(stmt.Targets))
	}
	if _, ok := stmt.Targets[0].(*luaast.NameExpr); !ok {
		t.Errorf("expected a NameExpr target, got %T", stmt.Targets[0])
	}
}

func TestParseReturnMultipleValues(t *testing.T) {
	block := parse(t, "return 1, 2")
	stmt, ok := block.Statements[0].(*luaast.ReturnStmt)
	if !ok {
		t.Fatalf("expected *ReturnStmt, got %T", block.Statements[0])
	}
	if len(stmt.Exprs) != 2 {
		t.Fatalf("expected 2 return values, got %d", len(stmt.Exprs))
	}
}

func TestParseReturnWithNoValues(t *testing.T) {
	block := parse(t, "return")
	stmt, ok := block.Statements[0].(*luaast.ReturnStmt)
	if !ok {
		t.Fatalf("expected *ReturnStmt, got %T", block.Statements[0])
	}
	if len(stmt.Exprs) != 0 {
		t.Errorf("expected no return values, got %v", stmt.Exprs)
	}
}

func TestParseCallStmt(t *testing.T) {
	block := parse(t, `print("hi")`)
	stmt, ok := block.Statements[0].(*luaast.CallStmt)
	if !ok {
		t.Fatalf("expected *CallStmt, got %T", block.Statements[0])
	}
	call, ok := stmt.Call.(*luaast.CallExpr)
	if !ok {
		t.Fatalf("expected *CallExpr, got %T", stmt.Call)
	}
	callee, ok := call.Callee.(*luaast.NameExpr)
	if !ok || callee.Name != "print" {
		t.Errorf("expected callee NameExpr(print), got %#v", call.Callee)
	}
	if len(call.Args) != 1 {
		t.Fatalf("expected 1 argument, got %d", len(call.Args))
	}
	arg, ok := call.Args[0].(*luaast.StringExpr)
	if !ok || arg.Value != "hi" {
		t.Errorf("expected argument StringExpr(hi), got %#v", call.Args[0])
	}
}

func TestParseMethodCallStmt(t *testing.T) {
	block := parse(t, "o:m(1)")
	stmt := block.Statements[0].(*luaast.CallStmt)
	call, ok := stmt.Call.(*luaast.MethodCallExpr)
	if !ok {
		t.Fatalf("expected *MethodCallExpr, got %T", stmt.Call)
	}
	if call.Method != "m" {
		t.Errorf("expected method name 'm', got %q", call.Method)
	}
	if _, ok := call.Receiver.(*luaast.NameExpr); !ok {
		t.Errorf("expected a NameExpr receiver, got %T", call.Receiver)
	}
}

// Binary operator precedence: `1 + 2 * 3` must nest as Add(1, Mul(2,3)), not
// Mul(Add(1,2), 3) (spec §6).
func TestParseBinaryPrecedence(t *testing.T) {
	block := parse(t, "return 1 + 2 * 3")
	stmt := block.Statements[0].(*luaast.ReturnStmt)
	add, ok := stmt.Exprs[0].(*luaast.BinaryExpr)
	if !ok || add.Op != luaast.OpAdd {
		t.Fatalf("expected a top-level Add, got %#v", stmt.Exprs[0])
	}
	if _, ok := add.Lhs.(*luaast.NumberExpr); !ok {
		t.Errorf("expected Add's LHS to be NumberExpr(1), got %#v", add.Lhs)
	}
	mul, ok := add.Rhs.(*luaast.BinaryExpr)
	if !ok || mul.Op != luaast.OpMul {
		t.Fatalf("expected Add's RHS to be a Mul, got %#v", add.Rhs)
	}
}

// `^` is right-associative: `2 ^ 3 ^ 2` nests as Pow(2, Pow(3,2)).
func TestParsePowIsRightAssociative(t *testing.T) {
	block := parse(t, "return 2 ^ 3 ^ 2")
	stmt := block.Statements[0].(*luaast.ReturnStmt)
	outer, ok := stmt.Exprs[0].(*luaast.BinaryExpr)
	if !ok || outer.Op != luaast.OpPow {
		t.Fatalf("expected a top-level Pow, got %#v", stmt.Exprs[0])
	}
	inner, ok := outer.Rhs.(*luaast.BinaryExpr)
	if !ok || inner.Op != luaast.OpPow {
		t.Fatalf("expected Pow's RHS to itself be a Pow, got %#v", outer.Rhs)
	}
}

func TestParseFieldAndIndexAccess(t *testing.T) {
	block := parse(t, "return t.x, t[1]")
	stmt := block.Statements[0].(*luaast.ReturnStmt)
	if len(stmt.Exprs) != 2 {
		t.Fatalf("expected 2 return values, got %d", len(stmt.Exprs))
	}
	field, ok := stmt.Exprs[0].(*luaast.FieldExpr)
	if !ok || field.Name != "x" {
		t.Errorf("expected FieldExpr(x), got %#v", stmt.Exprs[0])
	}
	index, ok := stmt.Exprs[1].(*luaast.IndexExpr)
	if !ok {
		t.Errorf("expected IndexExpr, got %#v", stmt.Exprs[1])
	} else if key, ok := index.Key.(*luaast.NumberExpr); !ok || key.Value != 1 {
		t.Errorf("expected index key NumberExpr(1), got %#v", index.Key)
	}
}

func TestParseTableConstructor(t *testing.T) {
	block := parse(t, "return {1, x = 2, [3] = 4}")
	stmt := block.Statements[0].(*luaast.ReturnStmt)
	table, ok := stmt.Exprs[0].(*luaast.TableExpr)
	if !ok {
		t.Fatalf("expected *TableExpr, got %T", stmt.Exprs[0])
	}
	if len(table.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(table.Fields))
	}
	if table.Fields[0].Key != nil {
		t.Errorf("expected the first field to be positional (nil key), got %#v", table.Fields[0].Key)
	}
	named, ok := table.Fields[1].Key.(*luaast.StringExpr)
	if !ok || named.Value != "x" {
		t.Errorf("expected the second field's key to be StringExpr(x), got %#v", table.Fields[1].Key)
	}
	keyed, ok := table.Fields[2].Key.(*luaast.NumberExpr)
	if !ok || keyed.Value != 3 {
		t.Errorf("expected the third field's key to be NumberExpr(3), got %#v", table.Fields[2].Key)
	}
}

func TestParseUnaryMinusAndLength(t *testing.T) {
	block := parse(t, "return -1, #t")
	stmt := block.Statements[0].(*luaast.ReturnStmt)
	neg, ok := stmt.Exprs[0].(*luaast.UnaryExpr)
	if !ok || neg.Op != luaast.OpNeg {
		t.Errorf("expected a unary negation, got %#v", stmt.Exprs[0])
	}
	length, ok := stmt.Exprs[1].(*luaast.UnaryExpr)
	if !ok || length.Op != luaast.OpLen {
		t.Errorf("expected a unary length, got %#v", stmt.Exprs[1])
	}
}

func TestParseGroupedExpr(t *testing.T) {
	block := parse(t, "return (1)")
	stmt := block.Statements[0].(*luaast.ReturnStmt)
	if _, ok := stmt.Exprs[0].(*luaast.GroupedExpr); !ok {
		t.Errorf("expected *GroupedExpr, got %#v", stmt.Exprs[0])
	}
}

func TestParseRejectsInvalidSyntax(t *testing.T) {
	p := parser.NewParser(strings.NewReader("local = = ="))
	if _, err := p.Parse(); err == nil {
		t.Error("expected a parse error for malformed source")
	}
}
