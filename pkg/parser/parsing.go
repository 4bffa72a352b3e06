// Package parser turns Lua source into pkg/luaast nodes using goparsec
// combinators, the same two-phase pipeline (FromSource -> pc.Queryable,
// FromAST -> typed tree) the teacher's asm and jack front ends use.
//
// The grammar covers exactly the statement and expression forms the
// generator recognizes (spec §6): local/assign/return/call statements,
// name/index/field/call/methodcall/table-constructor/binary/unary/grouped
// expressions. Control flow, function literals, and short-circuit and/or
// are intentionally absent, matching the generator's own scope.
package parser

import (
	"fmt"
	"io"
	"os"

	pc "github.com/prataprc/goparsec"

	"luac51.dev/compiler/pkg/lexer"
	"luac51.dev/compiler/pkg/luaast"
)

var ast = pc.NewAST("lua_chunk", 100)

// ----------------------------------------------------------------------------
// Lexical atoms

var (
	pKwLocal  = pc.Token(`local\b`, "LOCAL")
	pKwReturn = pc.Token(`return\b`, "RETURN")
	pKwNil    = pc.Token(`nil\b`, "NIL")
	pKwTrue   = pc.Token(`true\b`, "TRUE")
	pKwFalse  = pc.Token(`false\b`, "FALSE")

	pName     = pc.Token(`[A-Za-z_][A-Za-z0-9_]*`, "NAME")
	pNumber   = pc.Token(`0[xX][0-9a-fA-F]+|(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`, "NUMBER")
	pString   = pc.Token(`"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`, "STRING")
	pEllipsis = pc.Atom("...", "ELLIPSIS")

	pAssign   = pc.Atom("=", "ASSIGN")
	pComma    = pc.Atom(",", "COMMA")
	pSemi     = pc.Atom(";", "SEMI")
	pLParen   = pc.Atom("(", "LPAREN")
	pRParen   = pc.Atom(")", "RPAREN")
	pLBrace   = pc.Atom("{", "LBRACE")
	pRBrace   = pc.Atom("}", "RBRACE")
	pLBracket = pc.Atom("[", "LBRACKET")
	pRBracket = pc.Atom("]", "RBRACKET")
	pColon    = pc.Atom(":", "COLON")
	pConcat   = pc.Atom("..", "CONCAT")
	pDot      = pc.Atom(".", "DOT")

	pPlus    = pc.Atom("+", "PLUS")
	pMinus   = pc.Atom("-", "MINUS")
	pStar    = pc.Atom("*", "STAR")
	pSlash   = pc.Atom("/", "SLASH")
	pPercent = pc.Atom("%", "PERCENT")
	pCaret   = pc.Atom("^", "CARET")
	pHash    = pc.Atom("#", "HASH")

	pBinOp   = ast.OrdChoice("binop", nil, pPlus, pMinus, pStar, pSlash, pPercent, pCaret, pConcat)
	pUnaryOp = ast.OrdChoice("unaryop", nil, pMinus, pHash)
)

// ----------------------------------------------------------------------------
// Recursive expression grammar
//
// pExpr/pPrimary are mutually recursive (a call's argument is an expr, a
// parenthesized expr contains an expr, a table field's value is an expr).
// Go can't initialize mutually-recursive package vars directly, so each is
// declared here and only assigned its real definition in init(), below;
// forward uses go through a thin same-signature wrapper that reads the
// variable at call time, by which point init() has already run.

var (
	pExpr    pc.Parser
	pPrimary pc.Parser
)

func exprFwd(s pc.Scanner) (pc.ParsecNode, pc.Scanner)    { return pExpr(s) }
func primaryFwd(s pc.Scanner) (pc.ParsecNode, pc.Scanner) { return pPrimary(s) }

var (
	pArgs = ast.And("args", nil, pLParen, ast.Kleene("arglist", nil, pc.Parser(exprFwd), pComma), pRParen)

	pSuffix = ast.OrdChoice("suffix", nil,
		ast.And("field", nil, pDot, pName),
		ast.And("index", nil, pLBracket, pc.Parser(exprFwd), pRBracket),
		ast.And("methodcall", nil, pColon, pName, pArgs),
		pArgs,
	)

	pPrefixBase = ast.OrdChoice("prefixbase", nil, pName, ast.And("paren", nil, pLParen, pc.Parser(exprFwd), pRParen))
	pPrefixExpr = ast.And("prefixexpr", nil, pPrefixBase, ast.Kleene("suffixes", nil, pSuffix))

	pFieldSep   = ast.OrdChoice("fieldsep", nil, pComma, pSemi)
	pTableField = ast.OrdChoice("field", nil,
		ast.And("keyedfield", nil, pLBracket, pc.Parser(exprFwd), pRBracket, pAssign, pc.Parser(exprFwd)),
		ast.And("namedfield", nil, pName, pAssign, pc.Parser(exprFwd)),
		pc.Parser(exprFwd),
	)
	pTableCtor = ast.And("tablector", nil,
		pLBrace,
		ast.Kleene("fields", nil, pTableField, pFieldSep),
		ast.Maybe("trailingsep", nil, pFieldSep),
		pRBrace,
	)
)

func init() {
	pPrimary = ast.OrdChoice("primary", nil,
		pKwNil, pKwTrue, pKwFalse, pEllipsis,
		pNumber, pString,
		pTableCtor,
		ast.And("unary", nil, pUnaryOp, pc.Parser(primaryFwd)),
		pPrefixExpr,
	)

	pExpr = ast.And("exprchain", nil, pc.Parser(primaryFwd),
		ast.Kleene("binoptail", nil, ast.And("binopterm", nil, pBinOp, pc.Parser(primaryFwd))))
}

// ----------------------------------------------------------------------------
// Statements

var (
	pNameList   = ast.Many("namelist", nil, pName, pComma)
	pExprList   = ast.Many("exprlist", nil, pc.Parser(exprFwd), pComma)
	pTargetList = ast.Many("targetlist", nil, pPrefixExpr, pComma)

	pLocalStmt = ast.And("localstmt", nil, pKwLocal, pNameList,
		ast.Maybe("localinit", nil, ast.And("init", nil, pAssign, pExprList)))

	pAssignStmt = ast.And("assignstmt", nil, pTargetList, pAssign, pExprList)
	pReturnStmt = ast.And("returnstmt", nil, pKwReturn, ast.Maybe("retvals", nil, pExprList))
	pCallStmt   = ast.And("callstmt", nil, pPrefixExpr)

	pStatement = ast.And("statement", nil,
		ast.OrdChoice("stmtbody", nil, pLocalStmt, pReturnStmt, pAssignStmt, pCallStmt),
		ast.Maybe("semi", nil, pSemi))

	pChunk = ast.ManyUntil("chunk", nil, pStatement, pc.End())
)

// ----------------------------------------------------------------------------
// Parser

// Parser reads Lua source from an io.Reader and turns it into pkg/luaast
// nodes, reading the same debug env vars the teacher's front ends do:
// PARSEC_DEBUG, EXPORT_AST, PRINT_AST (DEBUG_FOLDER controls where the AST
// dot file lands).
type Parser struct{ reader io.Reader }

func NewParser(r io.Reader) Parser {
	return Parser{reader: r}
}

// Parse runs both phases: source bytes -> traversable AST -> luaast.Block.
func (p *Parser) Parse() (luaast.Block, error) {
	content, err := io.ReadAll(p.reader)
	if err != nil {
		return luaast.Block{}, fmt.Errorf("cannot read from 'io.Reader': %s", err)
	}

	root, success := p.FromSource(content)
	if !success {
		return luaast.Block{}, fmt.Errorf("failed to parse AST from input content")
	}

	return p.FromAST(root)
}

func (p *Parser) FromSource(source []byte) (pc.Queryable, bool) {
	if os.Getenv("PARSEC_DEBUG") != "" {
		ast.SetDebug()
	}

	root, _ := ast.Parsewith(pChunk, pc.NewScanner(source))

	if os.Getenv("EXPORT_AST") != "" {
		file, _ := os.Create(fmt.Sprintf("%s/debug.ast.dot", os.Getenv("DEBUG_FOLDER")))
		defer file.Close()
		file.Write([]byte(ast.Dotstring("\"Lua Chunk AST\"")))
	}
	if os.Getenv("PRINT_AST") != "" {
		ast.Prettyprint()
	}

	// TODO: surface the unconsumed-input case (pChunk's ManyUntil/End already
	// requires reaching EOF to succeed, but goparsec reports no matched root
	// on outright failure rather than a separate error value).
	return root, root != nil
}

// FromAST walks the root "chunk" node, converting each statement subtree
// into a luaast.Statement.
func (p *Parser) FromAST(root pc.Queryable) (luaast.Block, error) {
	if root.GetName() != "chunk" {
		return luaast.Block{}, fmt.Errorf("expected node 'chunk', found %s", root.GetName())
	}

	block := luaast.Block{}
	for _, child := range root.GetChildren() {
		if child.GetName() != "statement" {
			continue
		}
		stmt, err := p.HandleStatement(child)
		if err != nil {
			return luaast.Block{}, err
		}
		block.Statements = append(block.Statements, stmt)
	}
	return block, nil
}
