// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Pretty renders cj in the canonical jaxpr text form. This is a golden
// artefact: tests compare its output character-by-character, so every
// branch below must stay exactly in sync. Binder names are assigned in
// definition order — const vars, then input vars, then each equation's
// out vars — independent of the Vars' internal IDs, which is what
// makes Pretty a deterministic function of the jaxpr's structure
// rather than of allocation order.
func Pretty(cj *ClosedJaxpr) string {
	p := &printer{names: map[int64]string{}}
	p.assignNames(cj.Jaxpr)

	var b strings.Builder
	b.WriteString("{ lambda")
	if len(cj.Jaxpr.ConstVars) > 0 {
		b.WriteString(" ")
		p.writeBinderList(&b, cj.Jaxpr.ConstVars)
		b.WriteString(" ;")
	}
	if len(cj.Jaxpr.InVars) > 0 {
		b.WriteString(" ")
		p.writeBinderList(&b, cj.Jaxpr.InVars)
	}
	b.WriteString(" .")

	if len(cj.Jaxpr.Eqns) == 0 {
		b.WriteString(" ")
		p.writeOutAtoms(&b, cj.Jaxpr.OutAtoms)
		b.WriteString(" }")
		return b.String()
	}

	b.WriteString("\n  let ")
	const indent = "      " // width of "  let "
	for i, eqn := range cj.Jaxpr.Eqns {
		if i > 0 {
			b.WriteString(indent)
		}
		p.writeEqn(&b, eqn)
		b.WriteString("\n")
	}
	b.WriteString("  in ")
	p.writeOutAtoms(&b, cj.Jaxpr.OutAtoms)
	b.WriteString(" }")
	return b.String()
}

type printer struct {
	names map[int64]string
	next  int
}

// letterName returns the n-th canonical binder name: a, b, …, z, aa,
// ab, … readable alphabetical suffixes.
func letterName(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	if n < 26 {
		return string(alphabet[n])
	}
	return letterName(n/26-1) + string(alphabet[n%26])
}

func (p *printer) assignNames(j *Jaxpr) {
	for _, v := range j.ConstVars {
		p.name(v)
	}
	for _, v := range j.InVars {
		p.name(v)
	}
	for _, eqn := range j.Eqns {
		for _, v := range eqn.OutVars {
			p.name(v)
		}
	}
}

func (p *printer) name(v *Var) string {
	if n, ok := p.names[v.ID()]; ok {
		return n
	}
	n := letterName(p.next)
	p.next++
	p.names[v.ID()] = n
	return n
}

func (p *printer) writeBinderList(b *strings.Builder, vars []*Var) {
	for i, v := range vars {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(p.names[v.ID()])
		b.WriteString(":")
		b.WriteString(v.Aval.String())
	}
}

func (p *printer) writeAtom(b *strings.Builder, a Atom) {
	if a.IsVar() {
		b.WriteString(p.names[a.V.ID()])
		return
	}
	b.WriteString(formatLiteral(a.Lit))
}

func formatLiteral(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float32, float64:
		return strings.TrimSuffix(fmt.Sprintf("%g", x), ".0")
	default:
		return fmt.Sprintf("%v", x)
	}
}

func (p *printer) writeOutAtoms(b *strings.Builder, atoms []Atom) {
	b.WriteString("( ")
	for i, a := range atoms {
		if i > 0 {
			b.WriteString(", ")
		}
		p.writeAtom(b, a)
	}
	b.WriteString(" )")
}

func (p *printer) writeEqn(b *strings.Builder, eqn *JaxprEqn) {
	for i, v := range eqn.OutVars {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(p.names[v.ID()])
		b.WriteString(":")
		b.WriteString(v.Aval.String())
	}
	b.WriteString(" = ")
	b.WriteString(eqn.Primitive.Name)
	if params := literalParams(eqn.Params); len(params) > 0 {
		b.WriteString("[")
		b.WriteString(strings.Join(params, " "))
		b.WriteString("]")
	}
	for _, a := range eqn.InVars {
		b.WriteString(" ")
		p.writeAtom(b, a)
	}
	if nested, ok := eqn.Params["jaxpr"].(*ClosedJaxpr); ok {
		b.WriteString(" { ")
		b.WriteString(Pretty(nested))
		b.WriteString(" }")
	}
}

// literalParams renders every non-jaxpr equation parameter as
// key=value, sorted by key for determinism, skipping the "jaxpr" key
// (printed separately, nested, by writeEqn).
func literalParams(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "jaxpr" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return out
}
