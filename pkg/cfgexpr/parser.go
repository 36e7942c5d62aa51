// Copyright (C) 2024 stencil contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfgexpr

import "fmt"

// parser is a small recursive-descent parser over the token stream
// produced by lexer. It holds exactly one token of lookahead.
type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// parseExpr parses one predicate or combinator node. It does not
// consume the token that follows the node (the caller decides whether
// that should be a comma, a closing paren, or EOF).
func (p *parser) parseExpr() (node, error) {
	if p.tok.kind != tokIdent {
		return nil, fmt.Errorf("expected identifier, got %v", p.tok)
	}
	name := p.tok.text

	if err := p.advance(); err != nil {
		return nil, err
	}

	switch {
	case p.tok.kind == tokLParen:
		return p.parseCombinatorOrKey(name)
	case p.tok.kind == tokEquals:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokString {
			return nil, fmt.Errorf("expected string literal after %q =", name)
		}
		val := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &keyValue{key: name, value: val}, nil
	default:
		return &bareFlag{name: name}, nil
	}
}

// parseCombinatorOrKey handles the "name(" case, which is either the
// all/any/not combinator or (per spec.md §4.3) the target(<key>=<val>)
// composite form. Both share the same "list of comma-separated
// children in parens" shape; for the combinators the children are
// themselves predicate expressions, while for "target(...)" the
// single child is a bare key=value predicate keyed directly off of
// the descriptor (handled identically to a top-level key=value
// predicate once parsed).
func (p *parser) parseCombinatorOrKey(name string) (node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	var children []node
	for {
		if p.tok.kind == tokRParen {
			break
		}

		child, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		children = append(children, child)

		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	if p.tok.kind != tokRParen {
		return nil, fmt.Errorf("expected closing %q for %q", ")", name)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch name {
	case "all":
		return &all{children: children}, nil
	case "any":
		return &any_{children: children}, nil
	case "not":
		if len(children) != 1 {
			return nil, fmt.Errorf("not(...) takes exactly one child, got %d", len(children))
		}
		return &not{child: children[0]}, nil
	case "target":
		// The composite target(<key>=<val>) form: unwrap to the single
		// key=value predicate it wraps.
		if len(children) != 1 {
			return nil, fmt.Errorf("target(...) takes exactly one key=value predicate, got %d", len(children))
		}
		return children[0], nil
	default:
		return nil, fmt.Errorf("unknown combinator %q", name)
	}
}
