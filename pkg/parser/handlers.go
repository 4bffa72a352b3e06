package parser

import (
	"fmt"

	pc "github.com/prataprc/goparsec"

	"luac51.dev/compiler/pkg/lexer"
	"luac51.dev/compiler/pkg/luaast"
)

func nodePos(pc.Queryable) luaast.Position {
	// goparsec's Queryable does not expose line/column, so every node gets
	// the zero ("unknown") position; the generator does not read Pos.
	return luaast.Position{}
}

func (Parser) HandleStatement(node pc.Queryable) (luaast.Statement, error) {
	children := node.GetChildren()
	if len(children) == 0 {
		return nil, fmt.Errorf("empty statement node")
	}
	body := children[0]

	switch body.GetName() {
	case "localstmt":
		return handleLocalStmt(body)
	case "returnstmt":
		return handleReturnStmt(body)
	case "assignstmt":
		return handleAssignStmt(body)
	case "callstmt":
		return handleCallStmt(body)
	default:
		return nil, fmt.Errorf("unrecognized statement node '%s'", body.GetName())
	}
}

func handleLocalStmt(node pc.Queryable) (luaast.Statement, error) {
	children := node.GetChildren()
	if len(children) < 2 {
		return nil, fmt.Errorf("malformed localstmt")
	}
	names, err := handleNameList(children[1])
	if err != nil {
		return nil, err
	}

	var exprs []luaast.Expression
	if len(children) > 2 {
		if init := children[2]; init.GetName() == "init" && len(init.GetChildren()) == 2 {
			exprs, err = handleExprList(init.GetChildren()[1])
			if err != nil {
				return nil, err
			}
		}
	}

	return &luaast.LocalStmt{Names: names, Exprs: exprs, Pos: nodePos(node)}, nil
}

func handleReturnStmt(node pc.Queryable) (luaast.Statement, error) {
	children := node.GetChildren()
	var exprs []luaast.Expression
	if len(children) > 1 && children[1].GetName() == "exprlist" {
		var err error
		exprs, err = handleExprList(children[1])
		if err != nil {
			return nil, err
		}
	}
	return &luaast.ReturnStmt{Exprs: exprs, Pos: nodePos(node)}, nil
}

func handleAssignStmt(node pc.Queryable) (luaast.Statement, error) {
	children := node.GetChildren()
	if len(children) < 3 {
		return nil, fmt.Errorf("malformed assignstmt")
	}
	targets, err := handleTargetList(children[0])
	if err != nil {
		return nil, err
	}
	exprs, err := handleExprList(children[2])
	if err != nil {
		return nil, err
	}
	return &luaast.AssignStmt{Targets: targets, Exprs: exprs, Pos: nodePos(node)}, nil
}

func handleCallStmt(node pc.Queryable) (luaast.Statement, error) {
	children := node.GetChildren()
	if len(children) != 1 {
		return nil, fmt.Errorf("malformed callstmt")
	}
	call, err := handlePrefixExpr(children[0])
	if err != nil {
		return nil, err
	}
	switch call.(type) {
	case *luaast.CallExpr, *luaast.MethodCallExpr:
		return &luaast.CallStmt{Call: call, Pos: nodePos(node)}, nil
	default:
		return nil, fmt.Errorf("expression used as statement is not a call")
	}
}

func handleNameList(node pc.Queryable) ([]string, error) {
	var names []string
	for _, child := range node.GetChildren() {
		if child.GetName() != "NAME" {
			continue
		}
		names = append(names, child.GetValue())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("expected at least one name in '%s'", node.GetName())
	}
	return names, nil
}

func handleExprList(node pc.Queryable) ([]luaast.Expression, error) {
	var exprs []luaast.Expression
	for _, child := range node.GetChildren() {
		if child.GetName() == "COMMA" || child.GetName() == "SEMI" {
			continue
		}
		e, err := handleExpr(child)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func handleTargetList(node pc.Queryable) ([]luaast.Expression, error) {
	var targets []luaast.Expression
	for _, child := range node.GetChildren() {
		if child.GetName() != "prefixexpr" {
			continue
		}
		t, err := handlePrefixExpr(child)
		if err != nil {
			return nil, err
		}
		switch t.(type) {
		case *luaast.NameExpr, *luaast.IndexExpr, *luaast.FieldExpr:
			targets = append(targets, t)
		default:
			return nil, fmt.Errorf("invalid assignment target")
		}
	}
	return targets, nil
}

// ----------------------------------------------------------------------------
// Expressions

// handleExpr resolves one "exprchain" node: a primary expression followed by
// zero or more (binop, primary) pairs, flattened by the grammar and folded
// here into a correctly precedence-nested luaast.BinaryExpr tree.
func handleExpr(node pc.Queryable) (luaast.Expression, error) {
	children := node.GetChildren()
	if len(children) == 0 {
		return nil, fmt.Errorf("empty expression node")
	}

	first, err := handlePrimary(children[0])
	if err != nil {
		return nil, err
	}
	if len(children) == 1 {
		return first, nil
	}

	tail := children[1]
	var operands = []luaast.Expression{first}
	var ops []string
	for _, pair := range tail.GetChildren() {
		if pair.GetName() != "binopterm" {
			continue
		}
		opNode, operandNode := pair.GetChildren()[0], pair.GetChildren()[1]
		operand, err := handlePrimary(operandNode)
		if err != nil {
			return nil, err
		}
		ops = append(ops, opNode.GetValue())
		operands = append(operands, operand)
	}
	if len(ops) == 0 {
		return first, nil
	}

	idx := 0
	return climb(operands, ops, &idx, 0), nil
}

func binPrec(op string) int {
	switch op {
	case "^":
		return 4
	case "*", "/", "%":
		return 3
	case "+", "-":
		return 2
	case "..":
		return 1
	default:
		return -1
	}
}

func rightAssoc(op string) bool { return op == "^" || op == ".." }

func binOpOf(op string) luaast.BinaryOp {
	switch op {
	case "+":
		return luaast.OpAdd
	case "-":
		return luaast.OpSub
	case "*":
		return luaast.OpMul
	case "/":
		return luaast.OpDiv
	case "%":
		return luaast.OpMod
	case "^":
		return luaast.OpPow
	case "..":
		return luaast.OpConcat
	default:
		panic("parser: unreachable binary operator " + op)
	}
}

// climb implements standard precedence climbing over the flat operand/op
// arrays the grammar produces, since goparsec's combinators (unlike a
// hand-rolled recursive-descent parser) don't encode operator precedence
// directly in the grammar shape.
func climb(operands []luaast.Expression, ops []string, idx *int, minPrec int) luaast.Expression {
	left := operands[*idx]
	*idx++

	for *idx-1 < len(ops) {
		op := ops[*idx-1]
		prec := binPrec(op)
		if prec < minPrec {
			break
		}
		nextMin := prec + 1
		if rightAssoc(op) {
			nextMin = prec
		}
		right := climb(operands, ops, idx, nextMin)
		left = &luaast.BinaryExpr{Op: binOpOf(op), Lhs: left, Rhs: right}
	}
	return left
}

func handlePrimary(node pc.Queryable) (luaast.Expression, error) {
	switch node.GetName() {
	case "NIL":
		return &luaast.NilExpr{Pos: nodePos(node)}, nil
	case "TRUE":
		return &luaast.TrueExpr{Pos: nodePos(node)}, nil
	case "FALSE":
		return &luaast.FalseExpr{Pos: nodePos(node)}, nil
	case "ELLIPSIS":
		return &luaast.VarargExpr{Pos: nodePos(node)}, nil
	case "NUMBER":
		n, err := lexer.DecodeNumber(node.GetValue())
		if err != nil {
			return nil, err
		}
		return &luaast.NumberExpr{Value: n, Pos: nodePos(node)}, nil
	case "STRING":
		s, err := lexer.DecodeString(lexer.StripQuotes(node.GetValue()))
		if err != nil {
			return nil, err
		}
		return &luaast.StringExpr{Value: s, Pos: nodePos(node)}, nil
	case "tablector":
		return handleTableCtor(node)
	case "unary":
		return handleUnary(node)
	case "prefixexpr":
		return handlePrefixExpr(node)
	default:
		return nil, fmt.Errorf("unrecognized primary expression node '%s'", node.GetName())
	}
}

func handleUnary(node pc.Queryable) (luaast.Expression, error) {
	children := node.GetChildren()
	if len(children) != 2 {
		return nil, fmt.Errorf("malformed unary expression")
	}
	operand, err := handlePrimary(children[1])
	if err != nil {
		return nil, err
	}
	var op luaast.UnaryOp
	switch children[0].GetValue() {
	case "-":
		op = luaast.OpNeg
	case "#":
		op = luaast.OpLen
	default:
		return nil, fmt.Errorf("unrecognized unary operator '%s'", children[0].GetValue())
	}
	return &luaast.UnaryExpr{Op: op, Operand: operand, Pos: nodePos(node)}, nil
}

// handlePrefixExpr resolves a Name-or-parenthesized base followed by zero or
// more suffixes (field/index/call/methodcall), folding left to right.
func handlePrefixExpr(node pc.Queryable) (luaast.Expression, error) {
	children := node.GetChildren()
	if len(children) < 1 {
		return nil, fmt.Errorf("malformed prefix expression")
	}

	base, err := handlePrefixBase(children[0])
	if err != nil {
		return nil, err
	}

	if len(children) == 1 {
		return base, nil
	}

	expr := base
	for _, suffix := range children[1].GetChildren() {
		expr, err = applySuffix(expr, suffix)
		if err != nil {
			return nil, err
		}
	}
	return expr, nil
}

func handlePrefixBase(node pc.Queryable) (luaast.Expression, error) {
	switch node.GetName() {
	case "NAME":
		return &luaast.NameExpr{Name: node.GetValue(), Pos: nodePos(node)}, nil
	case "paren":
		children := node.GetChildren()
		if len(children) != 3 {
			return nil, fmt.Errorf("malformed parenthesized expression")
		}
		inner, err := handleExpr(children[1])
		if err != nil {
			return nil, err
		}
		return &luaast.GroupedExpr{Inner: inner, Pos: nodePos(node)}, nil
	default:
		return nil, fmt.Errorf("unrecognized prefix base node '%s'", node.GetName())
	}
}

func applySuffix(base luaast.Expression, suffix pc.Queryable) (luaast.Expression, error) {
	switch suffix.GetName() {
	case "field":
		children := suffix.GetChildren()
		if len(children) != 2 {
			return nil, fmt.Errorf("malformed field access")
		}
		return &luaast.FieldExpr{Target: base, Name: children[1].GetValue()}, nil
	case "index":
		children := suffix.GetChildren()
		if len(children) != 3 {
			return nil, fmt.Errorf("malformed index access")
		}
		key, err := handleExpr(children[1])
		if err != nil {
			return nil, err
		}
		return &luaast.IndexExpr{Target: base, Key: key}, nil
	case "methodcall":
		children := suffix.GetChildren()
		if len(children) != 3 {
			return nil, fmt.Errorf("malformed method call")
		}
		args, err := handleArgs(children[2])
		if err != nil {
			return nil, err
		}
		return &luaast.MethodCallExpr{Receiver: base, Method: children[1].GetValue(), Args: args}, nil
	case "args":
		args, err := handleArgs(suffix)
		if err != nil {
			return nil, err
		}
		return &luaast.CallExpr{Callee: base, Args: args}, nil
	default:
		return nil, fmt.Errorf("unrecognized suffix node '%s'", suffix.GetName())
	}
}

func handleArgs(node pc.Queryable) ([]luaast.Expression, error) {
	children := node.GetChildren()
	if len(children) < 2 {
		return nil, fmt.Errorf("malformed argument list")
	}
	return handleExprList(children[1])
}

func handleTableCtor(node pc.Queryable) (luaast.Expression, error) {
	children := node.GetChildren()
	if len(children) < 2 {
		return nil, fmt.Errorf("malformed table constructor")
	}

	var fields []luaast.TableField
	for _, child := range children[1].GetChildren() {
		switch child.GetName() {
		case "keyedfield":
			kc := child.GetChildren()
			if len(kc) != 5 {
				return nil, fmt.Errorf("malformed keyed table field")
			}
			key, err := handleExpr(kc[1])
			if err != nil {
				return nil, err
			}
			value, err := handleExpr(kc[3])
			if err != nil {
				return nil, err
			}
			fields = append(fields, luaast.TableField{Key: key, Value: value})
		case "namedfield":
			nc := child.GetChildren()
			if len(nc) != 3 {
				return nil, fmt.Errorf("malformed named table field")
			}
			value, err := handleExpr(nc[2])
			if err != nil {
				return nil, err
			}
			fields = append(fields, luaast.TableField{
				Key:   &luaast.StringExpr{Value: nc[0].GetValue()},
				Value: value,
			})
		case "exprchain":
			value, err := handleExpr(child)
			if err != nil {
				return nil, err
			}
			fields = append(fields, luaast.TableField{Value: value})
		default:
			// COMMA/SEMI field separators, if the Kleene combinator surfaces
			// them as children rather than consuming them internally.
			continue
		}
	}

	return &luaast.TableExpr{Fields: fields, Pos: nodePos(node)}, nil
}
