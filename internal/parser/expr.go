package parser

import (
	"github.com/axlang/ax/internal/ast"
	"github.com/axlang/ax/internal/diag"
	"github.com/axlang/ax/internal/token"
)

// precedence implements the fixed precedence table from highest to lowest:
// `**`, then `* / \ %`, then `+ -`, then `<< >>`, then `< > <= >=`, then
// `== !=`, then `& ^ |`, then `&& ||`, then the (right-associative)
// assignment family. Higher numbers bind tighter.
func precedence(op token.BinaryOp) int {
	switch op {
	case token.OpPower:
		return 9
	case token.OpMultiply, token.OpDivide, token.OpTrueDiv, token.OpModulus:
		return 8
	case token.OpAdd, token.OpSubtract:
		return 7
	case token.OpLeftShift, token.OpRightShift:
		return 6
	case token.OpLess, token.OpGreater, token.OpLessEql, token.OpGreaterEql:
		return 5
	case token.OpEquals, token.OpNotEquals:
		return 4
	case token.OpBitAnd, token.OpBitXor, token.OpBitOr:
		return 3
	case token.OpLogAnd, token.OpLogOr:
		return 2
	case token.OpAssign, token.OpAddAssign, token.OpSubAssign, token.OpMulAssign,
		token.OpDivAssign, token.OpModAssign, token.OpBitAndAssign, token.OpBitXorAssign,
		token.OpBitOrAssign:
		return 1
	default:
		return -1
	}
}

func isRightAssoc(op token.BinaryOp) bool {
	switch op {
	case token.OpPower:
		return true
	}
	return precedence(op) == 1 // assignment family is right-associative
}

func isAssignOp(op token.BinaryOp) bool { return precedence(op) == 1 }

// parseExpression parses a full expression via precedence climbing.
func (p *Parser) parseExpression(mod *ast.Node) *ast.Node {
	return p.parseBinary(mod, 0)
}

func (p *Parser) peekBinaryOp() (token.BinaryOp, bool) {
	if p.check(token.Operator) {
		if op := token.LookupBinaryOp(p.cur().Text); op != token.OpInvalid {
			return op, true
		}
	}
	return token.OpInvalid, false
}

func (p *Parser) parseBinary(mod *ast.Node, minPrec int) *ast.Node {
	left := p.parseUnary(mod)
	for {
		op, ok := p.peekBinaryOp()
		if !ok {
			return left
		}
		prec := precedence(op)
		if prec < minPrec {
			return left
		}
		loc := p.cur().Loc
		p.advance()
		nextMin := prec + 1
		if isRightAssoc(op) {
			nextMin = prec
		}
		right := p.parseBinary(mod, nextMin)
		node := ast.New(ast.KindBinaryOp, loc, mod)
		node.BinOp = int(op)
		node.Left = left
		node.Right = right
		left = node
	}
}

func (p *Parser) peekUnaryOp() (token.UnaryOp, bool) {
	if p.check(token.Operator) {
		if op := token.LookupUnaryOp(p.cur().Text); op != token.UnInvalid {
			return op, true
		}
	}
	return token.UnInvalid, false
}

// parseUnary handles `! - + ~ ++ --`, which bind tighter than any binary
// operator, then falls through to postfix/term parsing.
func (p *Parser) parseUnary(mod *ast.Node) *ast.Node {
	if op, ok := p.peekUnaryOp(); ok {
		loc := p.cur().Loc
		p.advance()
		child := p.parseUnary(mod)
		node := ast.New(ast.KindUnaryOp, loc, mod)
		node.UnOp = int(op)
		node.Child = child
		return node
	}
	if p.checkKw(token.KwTypeof) {
		return p.parseTypeofExpr(mod)
	}
	if p.checkKw(token.KwCast) {
		return p.parseCastExpr(mod)
	}
	return p.parsePostfix(mod, p.parseTerm(mod))
}

// parseTypeofExpr lowers `typeof expr` to Reflection.typeof(expr), since
// the runtime's Reflection table already defines that native function
// (SPEC_FULL.md §4.12).
func (p *Parser) parseTypeofExpr(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance()
	paren := p.match(token.LParen)
	arg := p.parseExpression(mod)
	if paren {
		p.expect(token.RParen)
	}
	call := ast.New(ast.KindFunctionCall, loc, mod)
	call.Name = "Reflection_typeof"
	call.CallArgs = []*ast.Node{arg}
	return call
}

// parseCastExpr lowers `cast(expr, "type")` to the matching Convert.to*
// native call.
func (p *Parser) parseCastExpr(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance()
	p.expect(token.LParen)
	arg := p.parseExpression(mod)
	p.expect(token.Comma)
	typeName := p.expect(token.String).Text
	p.expect(token.RParen)
	fn := "Convert_toString"
	switch typeName {
	case "int", "integer":
		fn = "Convert_toInt"
	case "float":
		fn = "Convert_toFloat"
	case "bool", "boolean":
		fn = "Convert_toBool"
	}
	call := ast.New(ast.KindFunctionCall, loc, mod)
	call.Name = fn
	call.CallArgs = []*ast.Node{arg}
	return call
}

// parsePostfix handles `.ident`, `[expr]`, `(args)`, and the `is` binary
// keyword-operator (typeof-equality sugar), chained against a base term.
func (p *Parser) parsePostfix(mod *ast.Node, base *ast.Node) *ast.Node {
	for {
		switch {
		case p.check(token.Period):
			loc := p.cur().Loc
			p.advance()
			name := p.expectIdentifier()
			if p.check(token.LParen) {
				call := p.parseCallArgs(mod, loc, name)
				member := ast.New(ast.KindMemberAccess, loc, mod)
				member.Left = base
				member.Right = call
				base = member
				continue
			}
			member := ast.New(ast.KindMemberAccess, loc, mod)
			member.Left = base
			member.Right = varRef(loc, mod, name)
			base = member
		case p.check(token.LBracket):
			loc := p.cur().Loc
			p.advance()
			idx := p.parseExpression(mod)
			p.expect(token.RBracket)
			node := ast.New(ast.KindArrayAccess, loc, mod)
			node.Object = base
			node.Index = idx
			base = node
		case p.check(token.LParen):
			loc := p.cur().Loc
			if base.Kind == ast.KindVariable {
				call := p.parseCallArgs(mod, loc, base.Name)
				base = call
				continue
			}
			// Calling an arbitrary expression result (e.g. a function
			// expression or member access already folded into base).
			call := p.parseCallArgs(mod, loc, "")
			call.Definition = base
			base = call
		case p.checkKw(token.KwIs):
			loc := p.cur().Loc
			p.advance()
			other := p.parsePostfix(mod, p.parseTerm(mod))
			typeofLeft := ast.New(ast.KindFunctionCall, loc, mod)
			typeofLeft.Name = "Reflection_typeof"
			typeofLeft.CallArgs = []*ast.Node{base}
			typeofRight := ast.New(ast.KindFunctionCall, loc, mod)
			typeofRight.Name = "Reflection_typeof"
			typeofRight.CallArgs = []*ast.Node{other}
			cmp := ast.New(ast.KindBinaryOp, loc, mod)
			cmp.BinOp = int(token.OpEquals)
			cmp.Left = typeofLeft
			cmp.Right = typeofRight
			base = cmp
		case p.checkKw(token.KwAs):
			p.advance()
			p.expectIdentifier() // target type name; accepted and discarded (no static type system)
		default:
			return base
		}
	}
}

func (p *Parser) parseCallArgs(mod *ast.Node, loc diag.Location, name string) *ast.Node {
	p.expect(token.LParen)
	call := ast.New(ast.KindFunctionCall, loc, mod)
	call.Name = name
	for !p.check(token.RParen) && !p.atEOF() {
		call.CallArgs = append(call.CallArgs, p.parseExpression(mod))
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	return call
}

// parseTerm parses a primary expression: literal, identifier, module
// access, parenthesized expression, `new`, `self`, or a function
// expression literal.
func (p *Parser) parseTerm(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	switch {
	case p.check(token.Integer):
		text := p.advance().Text
		n := ast.New(ast.KindInteger, loc, mod)
		n.IntValue = parseInt(text)
		return n
	case p.check(token.Float):
		text := p.advance().Text
		n := ast.New(ast.KindFloat, loc, mod)
		n.FloatValue = parseFloat(text)
		return n
	case p.check(token.String):
		text := p.advance().Text
		n := ast.New(ast.KindString, loc, mod)
		n.StringValue = text
		return n
	case p.checkKw(token.KwTrue):
		p.advance()
		return ast.New(ast.KindTrue, loc, mod)
	case p.checkKw(token.KwFalse):
		p.advance()
		return ast.New(ast.KindFalse, loc, mod)
	case p.checkKw(token.KwNull):
		p.advance()
		return ast.New(ast.KindNull, loc, mod)
	case p.checkKw(token.KwSelf):
		p.advance()
		return ast.New(ast.KindSelf, loc, mod)
	case p.checkKw(token.KwNew):
		return p.parseNew(mod)
	case p.checkKw(token.KwFunc):
		return p.parseFunctionExpression(mod)
	case p.check(token.LParen):
		p.advance()
		e := p.parseExpression(mod)
		p.expect(token.RParen)
		return e
	case p.check(token.Identifier):
		name := p.advance().Text
		if p.check(token.Period) && p.peekN(1).Kind == token.Identifier {
			// Disambiguated later by the analyzer: if `name` resolves to a
			// known imported module, this becomes a ModuleAccess; otherwise
			// it stays a MemberAccess chain rooted at a Variable. We emit a
			// ModuleAccess node eagerly and let the analyzer rewrite it back
			// to a MemberAccess if `name` is not actually a module.
			save := p.pos
			dotLoc := p.cur().Loc
			p.advance() // '.'
			member := p.expectIdentifierOrKeywordName()
			if p.check(token.LParen) {
				call := p.parseCallArgs(mod, dotLoc, member)
				node := ast.New(ast.KindModuleAccess, loc, mod)
				node.ModuleName = name
				node.Right = call
				return node
			}
			p.pos = save
			return varRef(loc, mod, name)
		}
		return varRef(loc, mod, name)
	default:
		p.Diags.Fatalf(loc, diag.UnexpectedToken, "unexpected token %q", p.cur().Text)
		p.advance()
		return ast.New(ast.KindNull, loc, mod)
	}
}

// expectIdentifierOrKeywordName allows module members to share a spelling
// with a keyword (e.g. Console.print is legal even though `print` is
// reserved at statement level).
func (p *Parser) expectIdentifierOrKeywordName() string {
	if p.check(token.Identifier) || p.check(token.Keyword) {
		return p.advance().Text
	}
	p.Diags.Fatalf(p.cur().Loc, diag.ExpectedIdentifier, "expected identifier")
	return ""
}

func (p *Parser) parseNew(mod *ast.Node) *ast.Node {
	loc := p.cur().Loc
	p.advance() // 'new'
	name := p.expectIdentifier()
	node := ast.New(ast.KindNew, loc, mod)
	node.Identifier = name
	if p.check(token.LParen) {
		node.Constructor = p.parseCallArgs(mod, loc, name)
	}
	return node
}

func parseFloat(s string) float64 {
	var intPart, fracPart int64
	var fracDigits int
	i := 0
	for i < len(s) && s[i] != '.' {
		intPart = intPart*10 + int64(s[i]-'0')
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) {
			fracPart = fracPart*10 + int64(s[i]-'0')
			fracDigits++
			i++
		}
	}
	result := float64(intPart)
	if fracDigits > 0 {
		div := 1.0
		for j := 0; j < fracDigits; j++ {
			div *= 10
		}
		result += float64(fracPart) / div
	}
	return result
}
