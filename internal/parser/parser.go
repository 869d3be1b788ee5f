// Package parser implements the recursive-descent parser that consumes the
// lexer's token stream and produces an ast.Node tree rooted at a Module.
package parser

import (
	"github.com/axlang/ax/internal/ast"
	"github.com/axlang/ax/internal/diag"
	"github.com/axlang/ax/internal/token"
)

// Parser holds 1-token lookahead state over a fixed token slice, with
// occasional peek-ahead for disambiguation.
type Parser struct {
	toks []token.Token
	pos  int
	mod  *ast.Node

	Diags diag.Bag
}

// New constructs a Parser over a pre-lexed token stream.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peekN(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) atEOF() bool { return p.cur().Kind == token.EOF }

func (p *Parser) advance() token.Token {
	t := p.cur()
	if !p.atEOF() {
		p.pos++
	}
	return t
}

func (p *Parser) check(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) checkKw(kw token.Keyword) bool {
	return p.cur().Kind == token.Keyword && token.Lookup(p.cur().Text) == kw
}

func (p *Parser) matchKw(kw token.Keyword) bool {
	if p.checkKw(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) match(k token.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k token.Kind) token.Token {
	if !p.check(k) {
		p.Diags.Fatalf(p.cur().Loc, diag.ExpectedToken, "expected %s, got %s %q", k, p.cur().Kind, p.cur().Text)
		return p.cur()
	}
	return p.advance()
}

func (p *Parser) expectKw(kw token.Keyword, name string) {
	if !p.checkKw(kw) {
		p.Diags.Fatalf(p.cur().Loc, diag.ExpectedToken, "expected keyword %q", name)
		return
	}
	p.advance()
}

func (p *Parser) expectIdentifier() string {
	if !p.check(token.Identifier) {
		p.Diags.Fatalf(p.cur().Loc, diag.ExpectedIdentifier, "expected identifier, got %q", p.cur().Text)
		return ""
	}
	return p.advance().Text
}

// synchronize recovers from a syntactic error by skipping to the next
// semicolon (or EOF), so later, independent errors remain discoverable.
func (p *Parser) synchronize() {
	for !p.atEOF() && !p.check(token.Semicolon) {
		p.advance()
	}
	if p.check(token.Semicolon) {
		p.advance()
	}
}

// Parse consumes the whole token stream and returns the Module node. The
// first required declaration is `module <Identifier>` (or, recovered from
// original_source, the synonym `package <Identifier>`).
func (p *Parser) Parse() *ast.Node {
	loc := p.cur().Loc
	if p.checkKw(token.KwModule) || p.checkKw(token.KwPackage) {
		p.advance()
	} else {
		p.Diags.Fatalf(loc, diag.ExpectedModule, "source must begin with 'module <name>'")
	}
	name := p.expectIdentifier()
	p.match(token.Semicolon)

	mod := ast.New(ast.KindModule, loc, nil)
	mod.Name = name
	mod.Module = mod

	for !p.atEOF() {
		stmt := p.parseTopLevel(mod)
		if stmt != nil {
			mod.Children = append(mod.Children, stmt)
		}
	}
	return mod
}

func (p *Parser) parseTopLevel(mod *ast.Node) *ast.Node {
	if p.checkKw(token.KwImport) {
		return p.parseImports(mod)
	}
	return p.parseStatement(mod)
}

func (p *Parser) parseImports(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	node := ast.New(ast.KindImports, loc, mod)
	for p.matchKw(token.KwImport) {
		imp := ast.New(ast.KindImport, p.cur().Loc, mod)
		str := p.expect(token.String).Text
		imp.ImportStr = str
		imp.RelativePath = str
		imp.IsModuleImport = true
		p.match(token.Semicolon)
		node.Children = append(node.Children, imp)
	}
	return node
}

// parseStatement parses any of the statement forms named in the language
// grammar: variable declaration, alias, using, attribute-wrapped statement,
// class, enum, function definition, if, return, for, while, print,
// try/catch, code block, or an expression-as-statement (wrapped in an
// Expression node with ShouldClearStack so the unused result is discarded).
func (p *Parser) parseStatement(mod *ast.Node) *ast.Node {
	switch {
	case p.check(token.Semicolon):
		loc := p.cur().Loc
		p.advance()
		return ast.New(ast.KindStatement, loc, mod)
	case p.check(token.LBrace):
		return p.parseBlock(mod)
	case p.checkKw(token.KwVar):
		return p.parseVarDecl(mod, false)
	case p.checkKw(token.KwConst):
		p.advance()
		return p.parseVarDecl(mod, true)
	case p.checkKw(token.KwAlias):
		return p.parseAlias(mod)
	case p.checkKw(token.KwUsing):
		return p.parseUsing(mod)
	case p.checkKw(token.KwAttribute):
		return p.parseAttributeStatement(mod)
	case p.checkKw(token.KwClass), p.checkKw(token.KwStruct):
		return p.parseClass(mod)
	case p.checkKw(token.KwEnum):
		return p.parseEnum(mod)
	case p.checkKw(token.KwFunc):
		return p.parseFunctionDefinition(mod, nil)
	case p.checkKw(token.KwIf):
		return p.parseIf(mod)
	case p.checkKw(token.KwReturn):
		return p.parseReturn(mod)
	case p.checkKw(token.KwFor):
		return p.parseFor(mod)
	case p.checkKw(token.KwForeach):
		return p.parseForeach(mod)
	case p.checkKw(token.KwWhile):
		return p.parseWhile(mod)
	case p.checkKw(token.KwPrint):
		return p.parsePrint(mod)
	case p.checkKw(token.KwTry):
		return p.parseTryCatch(mod)
	case p.checkKw(token.KwDelete):
		return p.parseDelete(mod)
	default:
		return p.parseExpressionStatement(mod)
	}
}

func (p *Parser) parseBlock(mod *ast.Node) *ast.Node {
	loc := p.expect(token.LBrace).Loc
	block := ast.New(ast.KindBlock, loc, mod)
	for !p.check(token.RBrace) && !p.atEOF() {
		stmt := p.parseStatement(mod)
		if stmt != nil {
			block.Children = append(block.Children, stmt)
		}
	}
	p.expect(token.RBrace)
	return block
}

// parseArrowOrBlock implements the `->` sugar: a body following `->` is a
// single statement wrapped in a synthetic block.
func (p *Parser) parseArrowOrBlock(mod *ast.Node) *ast.Node {
	if p.check(token.LBrace) {
		return p.parseBlock(mod)
	}
	if p.match(token.RightArrow) {
		loc := p.cur().Loc
		stmt := p.parseStatement(mod)
		block := ast.New(ast.KindBlock, loc, mod)
		if stmt != nil {
			block.Children = append(block.Children, stmt)
		}
		return block
	}
	if p.check(token.Colon) {
		p.advance()
		loc := p.cur().Loc
		stmt := p.parseStatement(mod)
		block := ast.New(ast.KindBlock, loc, mod)
		if stmt != nil {
			block.Children = append(block.Children, stmt)
		}
		return block
	}
	return p.parseBlock(mod)
}

func (p *Parser) parseVarDecl(mod *ast.Node, isConst bool) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'var'
	name := p.expectIdentifier()
	node := ast.New(ast.KindVariableDeclaration, loc, mod)
	node.Name = name
	node.IsConst = isConst
	if p.matchOperatorText("=") {
		node.Assignment = p.parseExpression(mod)
	}
	p.match(token.Semicolon)
	return node
}

func (p *Parser) matchOperatorText(text string) bool {
	if p.check(token.Operator) && p.cur().Text == text {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) parseAlias(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'alias'
	name := p.expectIdentifier()
	node := ast.New(ast.KindAlias, loc, mod)
	node.Name = name
	if !p.matchOperatorText("=") {
		p.Diags.Fatalf(p.cur().Loc, diag.AliasMissingAssignment, "alias %q is missing an assignment", name)
	} else {
		node.AliasTo = p.parseAliasPath()
	}
	p.match(token.Semicolon)
	return node
}

// parseAliasPath parses a dotted identifier path used as an alias target.
func (p *Parser) parseAliasPath() string {
	path := p.expectIdentifier()
	for p.match(token.Period) {
		path += "." + p.expectIdentifier()
	}
	return path
}

func (p *Parser) parseUsing(mod *ast.Node) *ast.Node {
	// `using <Identifier-path>` desugars to an Alias node whose local name
	// is the path's last component.
	loc := p.cur().Loc
	p.advance() // 'using'
	path := p.parseAliasPath()
	p.match(token.Semicolon)
	node := ast.New(ast.KindAlias, loc, mod)
	last := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			last = path[i+1:]
			break
		}
	}
	node.Name = last
	node.AliasTo = path
	return node
}

// parseAttributeStatement parses `attribute(name, ...) <statement>`. Only
// the `inline` attribute changes code generation (FunctionDefinition
// splicing); others are recorded but otherwise inert.
func (p *Parser) parseAttributeStatement(mod *ast.Node) *ast.Node {
	p.advance() // 'attribute'
	var attrs []string
	if p.match(token.LParen) {
		for !p.check(token.RParen) && !p.atEOF() {
			attrs = append(attrs, p.expectIdentifier())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
	}
	stmt := p.parseStatement(mod)
	if stmt != nil && stmt.Kind == ast.KindFunctionDefinition {
		stmt.Attributes = attrs
		for _, a := range attrs {
			if a == "inline" {
				stmt.IsInline = true
			}
		}
	}
	return stmt
}

func (p *Parser) parseClass(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	isStruct := p.checkKw(token.KwStruct)
	p.advance() // 'class' or 'struct'
	name := p.expectIdentifier()
	node := ast.New(ast.KindClass, loc, mod)
	node.Name = name
	node.IsStruct = isStruct
	p.expect(token.LBrace)
	for !p.check(token.RBrace) && !p.atEOF() {
		modifier := ""
		isStatic := false
		for p.checkKw(token.KwPublic) || p.checkKw(token.KwPrivate) || p.checkKw(token.KwProtect) || p.checkKw(token.KwStatic) {
			switch {
			case p.checkKw(token.KwPublic):
				modifier = "pub"
			case p.checkKw(token.KwPrivate):
				modifier = "priv"
			case p.checkKw(token.KwProtect):
				modifier = "protect"
			case p.checkKw(token.KwStatic):
				isStatic = true
			}
			p.advance()
		}
		member := p.parseStatement(mod)
		node.Members = append(node.Members, ast.ClassMember{Node: member, IsStatic: isStatic, Modifier: modifier})
	}
	p.expect(token.RBrace)
	return node
}

func (p *Parser) parseEnum(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'enum'
	name := p.expectIdentifier()
	node := ast.New(ast.KindEnum, loc, mod)
	node.Name = name
	p.expect(token.LBrace)
	next := int64(0)
	for !p.check(token.RBrace) && !p.atEOF() {
		memberName := p.expectIdentifier()
		val := next
		if p.matchOperatorText("=") {
			lit := p.expect(token.Integer)
			val = parseInt(lit.Text)
		}
		node.EnumMembers = append(node.EnumMembers, ast.EnumMember{Name: memberName, Value: val})
		next = val + 1
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	return node
}

func (p *Parser) parseFunctionDefinition(mod *ast.Node, leadingAttrs []string) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'func'
	name := p.expectIdentifier()
	node := ast.New(ast.KindFunctionDefinition, loc, mod)
	node.Name = name
	node.Attributes = leadingAttrs
	p.expect(token.LParen)
	for !p.check(token.RParen) && !p.atEOF() {
		if p.match(token.Ellipsis) {
			node.IsVariadic = true
			node.Arguments = append(node.Arguments, p.expectIdentifier())
			break
		}
		node.Arguments = append(node.Arguments, p.expectIdentifier())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	node.Block = p.parseArrowOrBlock(mod)
	return node
}

func (p *Parser) parseFunctionExpression(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'func'
	node := ast.New(ast.KindFunctionExpression, loc, mod)
	p.expect(token.LParen)
	for !p.check(token.RParen) && !p.atEOF() {
		if p.match(token.Ellipsis) {
			node.IsVariadic = true
			node.Arguments = append(node.Arguments, p.expectIdentifier())
			break
		}
		node.Arguments = append(node.Arguments, p.expectIdentifier())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	node.Block = p.parseArrowOrBlock(mod)
	return node
}

func (p *Parser) parseIf(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'if'
	node := ast.New(ast.KindIf, loc, mod)
	node.Conditional = p.parseExpression(mod)
	node.Then = p.parseArrowOrBlock(mod)
	if p.matchKw(token.KwElse) {
		if p.checkKw(token.KwIf) {
			node.Else = p.parseIf(mod)
		} else {
			node.Else = p.parseArrowOrBlock(mod)
		}
	}
	return node
}

func (p *Parser) parseReturn(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'return'
	node := ast.New(ast.KindReturn, loc, mod)
	if !p.check(token.Semicolon) && !p.check(token.RBrace) {
		node.Value = p.parseExpression(mod)
	}
	p.match(token.Semicolon)
	return node
}

func (p *Parser) parseFor(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'for'
	node := ast.New(ast.KindForLoop, loc, mod)
	p.expect(token.LParen)
	if !p.check(token.Semicolon) {
		node.Initializer = p.parseStatement(mod)
	} else {
		p.advance()
	}
	if !p.check(token.Semicolon) {
		node.Conditional = p.parseExpression(mod)
	}
	p.expect(token.Semicolon)
	if !p.check(token.RParen) {
		node.Afterthought = p.parseExpression(mod)
	}
	p.expect(token.RParen)
	node.Block = p.parseArrowOrBlock(mod)
	return node
}

// parseForeach desugars `foreach (v in expr) body` into a ForLoop, purely
// at the AST level, introducing no new opcodes (SPEC_FULL.md §4.12).
func (p *Parser) parseForeach(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'foreach'
	p.expect(token.LParen)
	varName := p.expectIdentifier()
	p.expectIdentifier() // consumes the literal word "in"
	iterable := p.parseExpression(mod)
	p.expect(token.RParen)
	body := p.parseArrowOrBlock(mod)

	idxName := "__idx_" + varName
	lenName := "__len_" + varName

	forNode := ast.New(ast.KindForLoop, loc, mod)

	idxDecl := ast.New(ast.KindVariableDeclaration, loc, mod)
	idxDecl.Name = idxName
	idxDecl.Assignment = intLit(loc, mod, 0)
	forNode.Initializer = idxDecl

	lenDecl := ast.New(ast.KindVariableDeclaration, loc, mod)
	lenDecl.Name = lenName
	lenCall := ast.New(ast.KindFunctionCall, loc, mod)
	lenCall.Name = "Reflection_length"
	lenCall.CallArgs = []*ast.Node{iterable}
	lenDecl.Assignment = lenCall

	cond := ast.New(ast.KindBinaryOp, loc, mod)
	cond.BinOp = int(tokenOpLess())
	cond.Left = varRef(loc, mod, idxName)
	cond.Right = varRef(loc, mod, lenName)
	forNode.Conditional = cond

	after := ast.New(ast.KindUnaryOp, loc, mod)
	after.UnOp = int(tokenOpIncrement())
	after.Child = varRef(loc, mod, idxName)
	forNode.Afterthought = after

	access := ast.New(ast.KindArrayAccess, loc, mod)
	access.Object = iterable
	access.Index = varRef(loc, mod, idxName)
	elemDecl := ast.New(ast.KindVariableDeclaration, loc, mod)
	elemDecl.Name = varName
	elemDecl.Assignment = access

	block := ast.New(ast.KindBlock, loc, mod)
	block.Children = append(block.Children, elemDecl)
	if body != nil {
		block.Children = append(block.Children, body.Children...)
	}
	forNode.Block = block

	wrapper := ast.New(ast.KindBlock, loc, mod)
	wrapper.Children = append(wrapper.Children, lenDecl, forNode)
	return wrapper
}

func (p *Parser) parseWhile(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'while'
	node := ast.New(ast.KindWhileLoop, loc, mod)
	node.Conditional = p.parseExpression(mod)
	node.Block = p.parseArrowOrBlock(mod)
	return node
}

func (p *Parser) parsePrint(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'print'
	node := ast.New(ast.KindPrint, loc, mod)
	p.expect(token.LParen)
	for !p.check(token.RParen) && !p.atEOF() {
		node.PrintArgs = append(node.PrintArgs, p.parseExpression(mod))
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	p.match(token.Semicolon)
	return node
}

func (p *Parser) parseTryCatch(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'try'
	node := ast.New(ast.KindTryCatch, loc, mod)
	node.TryBlock = p.parseBlock(mod)
	p.expectKw(token.KwCatch, "catch")
	p.expect(token.LParen)
	node.ExceptionIdent = p.expectIdentifier()
	p.expect(token.RParen)
	node.CatchBlock = p.parseBlock(mod)
	return node
}

// parseDelete recovers `delete x;`, desugaring to reassigning the local to
// null (SPEC_FULL.md §4.12).
func (p *Parser) parseDelete(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'delete'
	name := p.expectIdentifier()
	p.match(token.Semicolon)
	assign := ast.New(ast.KindBinaryOp, loc, mod)
	assign.BinOp = int(tokenOpAssign())
	assign.Left = varRef(loc, mod, name)
	assign.Right = ast.New(ast.KindNull, loc, mod)
	expr := ast.New(ast.KindExpression, loc, mod)
	expr.Child = assign
	expr.ShouldClearStack = true
	return expr
}

func (p *Parser) parseExpressionStatement(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	expr := p.parseExpression(mod)
	p.match(token.Semicolon)
	node := ast.New(ast.KindExpression, loc, mod)
	node.Child = expr
	node.ShouldClearStack = true
	return node
}

func varRef(loc diag.Location, mod *ast.Node, name string) *ast.Node {
	n := ast.New(ast.KindVariable, loc, mod)
	n.Name = name
	return n
}

func intLit(loc diag.Location, mod *ast.Node, v int64) *ast.Node {
	n := ast.New(ast.KindInteger, loc, mod)
	n.IntValue = v
	return n
}

func tokenOpLess() token.BinaryOp      { return token.OpLess }
func tokenOpAssign() token.BinaryOp    { return token.OpAssign }
func tokenOpIncrement() token.UnaryOp  { return token.UnIncrement }

func parseInt(s string) int64 {
	var v int64
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		v = v*10 + int64(c-'0')
	}
	if neg {
		v = -v
	}
	return v
}
