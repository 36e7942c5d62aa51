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

// Description: parses and evaluates a dependency's target_guard.

// Package cfgexpr implements the conditional-compilation predicate
// language that gates per-dependency inclusion against a fixed target
// descriptor: cfg(...) boolean expressions over target(...)-style
// predicates, all/any/not combinators, and bare target triples.
package cfgexpr

import (
	"fmt"
	"strings"

	"github.com/crates-vendor/cvmirror/pkg/target"
)

// Expr is a parsed target_guard, ready to be evaluated against a
// target.Descriptor any number of times.
type Expr struct {
	root node
}

// Eval evaluates the expression against d. A nil *Expr (an absent
// guard) always evaluates true, matching spec.md §4.3 ("if absent,
// the guard is TRUE").
//
// warnf, if non-nil, is called once per predicate that this tool does
// not recognize (an unsupported key=value predicate other than
// "target"), which spec.md §4.3 requires be logged and assumed false.
func (e *Expr) Eval(d *target.Descriptor, warnf func(string, ...any)) bool {
	if e == nil {
		return true
	}
	return e.root.eval(d, warnf)
}

// Parse parses a target_guard string. Per spec.md §4.3: if the guard
// begins with "cfg", it is parsed as a boolean predicate expression;
// otherwise the guard is treated as a literal full target triple
// compared for string equality against the descriptor's triple.
func Parse(guard string) (*Expr, error) {
	guard = strings.TrimSpace(guard)
	if guard == "" {
		return nil, nil
	}

	if !strings.HasPrefix(guard, "cfg") {
		return &Expr{root: &tripleLiteral{triple: guard}}, nil
	}

	p := &parser{lex: newLexer(guard)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokIdent || p.tok.text != "cfg" {
		return nil, fmt.Errorf("target_guard %q: expected %q", guard, "cfg")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokLParen {
		return nil, fmt.Errorf("target_guard %q: expected %q after cfg", guard, "(")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	n, err := p.parseExpr()
	if err != nil {
		return nil, fmt.Errorf("target_guard %q: %w", guard, err)
	}

	if p.tok.kind != tokRParen {
		return nil, fmt.Errorf("target_guard %q: expected closing %q", guard, ")")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("target_guard %q: unexpected trailing input", guard)
	}

	return &Expr{root: n}, nil
}

// node is a parsed node in the cfg(...) boolean expression tree.
type node interface {
	eval(d *target.Descriptor, warnf func(string, ...any)) bool
}

// tripleLiteral is a bare (non-cfg) target_guard: a literal target
// triple compared for string equality.
type tripleLiteral struct {
	triple string
}

func (n *tripleLiteral) eval(d *target.Descriptor, _ func(string, ...any)) bool {
	return d.Triple == n.triple
}

// bareFlag is a predicate with no "= value", e.g. cfg(unix) or
// cfg(some_injected_flag). Per spec.md §4.3 these are always assumed
// FALSE: the mirror has no way to know whether the downstream build
// will inject the flag.
type bareFlag struct {
	name string
}

func (n *bareFlag) eval(_ *target.Descriptor, _ func(string, ...any)) bool {
	return false
}

// keyValue is a "key = \"value\"" predicate.
type keyValue struct {
	key, value string
}

func (n *keyValue) eval(d *target.Descriptor, warnf func(string, ...any)) bool {
	if n.key == "target_feature" {
		// Assumed true: the mirror assumes the downstream build will
		// enable whatever target feature it needs.
		return true
	}

	attr, known := d.Attr(n.key)
	if !known {
		if warnf != nil {
			warnf("target_guard: unrecognized cfg predicate key %q, assuming false", n.key)
		}
		return false
	}
	return attr == n.value
}

// all is the cfg(all(a, b, ...)) combinator.
type all struct {
	children []node
}

func (n *all) eval(d *target.Descriptor, warnf func(string, ...any)) bool {
	for _, c := range n.children {
		if !c.eval(d, warnf) {
			return false
		}
	}
	return true
}

// any_ is the cfg(any(a, b, ...)) combinator.
type any_ struct {
	children []node
}

func (n *any_) eval(d *target.Descriptor, warnf func(string, ...any)) bool {
	for _, c := range n.children {
		if c.eval(d, warnf) {
			return true
		}
	}
	return false
}

// not is the cfg(not(a)) combinator.
type not struct {
	child node
}

func (n *not) eval(d *target.Descriptor, warnf func(string, ...any)) bool {
	return !n.child.eval(d, warnf)
}
