package utility

import (
	"math"
	"strconv"
	"strings"

	"taskbridge/server/internal/modules"
)

// evaluate parses and evaluates an arithmetic expression. Only numeric
// literals, + - * / ( ) and the ** power operator are accepted; anything
// else is rejected before evaluation.
func evaluate(expression string) (string, error) {
	for _, r := range expression {
		if !strings.ContainsRune("0123456789+-*/.() ", r) {
			return "", modules.Validationf("invalid characters in expression; only numbers and + - * / ( ) are allowed")
		}
	}

	p := &parser{input: expression}
	result, err := p.parseExpr()
	if err != nil {
		return "", err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return "", modules.Validationf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return "", modules.Validationf("expression result is not a finite number")
	}

	// Integral results print without a decimal point
	return strconv.FormatFloat(result, 'f', -1, 64), nil
}

// parser is a recursive-descent evaluator with the usual precedence:
// + - < * / < unary minus < ** (right-associative) < literals and parens.
// The power operator binds tighter than a unary minus on its left, so
// -2**2 is -(2**2); the exponent is parsed at the unary level, so 2**-2
// still works.
type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.peek() == '*' && !p.peekPower():
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.peek() == '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, modules.Validationf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

// peekPower reports whether the next token is "**" rather than "*".
func (p *parser) peekPower() bool {
	p.skipSpaces()
	return p.pos+1 < len(p.input) && p.input[p.pos] == '*' && p.input[p.pos+1] == '*'
}

func (p *parser) parseFactor() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case '+':
		p.pos++
		return p.parseFactor()
	}
	return p.parsePower()
}

func (p *parser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if p.peekPower() {
		p.pos += 2
		// Right-associative: 2 ** 3 ** 2 == 2 ** 9
		exp, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (float64, error) {
	c := p.peek()
	if c == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, modules.Validationf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}
	return p.parseNumber()
}

func (p *parser) parseNumber() (float64, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, modules.Validationf("expected a number at position %d", p.pos)
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, modules.Validationf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}
