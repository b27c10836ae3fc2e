package builtin

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const calcAllowed = "0123456789+-*/.() "

var splitNumber = regexp.MustCompile(`[0-9.] +[0-9.]`)

// Errors from Evaluate.
var (
	ErrInvalidExpression = errors.New("invalid characters in expression")
	ErrDivisionByZero    = errors.New("division by zero")
)

// Evaluate computes an arithmetic expression over + - * / // ** and
// parentheses. Only digits, operators, dots, parentheses and spaces are
// accepted.
func Evaluate(expr string) (float64, error) {
	for _, r := range expr {
		if !strings.ContainsRune(calcAllowed, r) {
			return 0, ErrInvalidExpression
		}
	}
	if splitNumber.MatchString(expr) {
		return 0, errors.New("missing operator between numbers")
	}
	p := &calcParser{src: strings.ReplaceAll(expr, " ", "")}
	if p.src == "" {
		return 0, errors.New("empty expression")
	}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.src) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("result out of range")
	}
	return v, nil
}

type calcParser struct {
	src string
	pos int
}

func (p *calcParser) peek(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

// expr := term (("+" | "-") term)*
func (p *calcParser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.pos < len(p.src) {
		op := p.src[p.pos]
		if op != '+' && op != '-' {
			break
		}
		p.pos++
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			v += rhs
		} else {
			v -= rhs
		}
	}
	return v, nil
}

// term := unary (("*" | "/" | "//") unary)*
func (p *calcParser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.pos < len(p.src) {
		var op string
		switch {
		case p.peek("**"):
			return v, nil
		case p.peek("//"):
			op = "//"
		case p.peek("*"):
			op = "*"
		case p.peek("/"):
			op = "/"
		default:
			return v, nil
		}
		p.pos += len(op)
		rhs, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			v *= rhs
		case "/", "//":
			if rhs == 0 {
				return 0, ErrDivisionByZero
			}
			v /= rhs
			if op == "//" {
				v = math.Floor(v)
			}
		}
	}
	return v, nil
}

// unary := ("+" | "-") unary | power
func (p *calcParser) unary() (float64, error) {
	if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
		neg := p.src[p.pos] == '-'
		p.pos++
		v, err := p.unary()
		if neg {
			v = -v
		}
		return v, err
	}
	return p.power()
}

// power := primary ("**" unary)?
func (p *calcParser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if p.peek("**") {
		p.pos += 2
		exp, err := p.unary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

// primary := number | "(" expr ")"
func (p *calcParser) primary() (float64, error) {
	if p.pos >= len(p.src) {
		return 0, errors.New("unexpected end of expression")
	}
	if p.src[p.pos] == '(' {
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}

	start := p.pos
	for p.pos < len(p.src) && (p.src[p.pos] == '.' || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.src[start:p.pos])
	}
	return v, nil
}
