package admittance

import (
	"math/cmplx"
)

// Injections 母线注入复功率 S = V·conj(Y·V) (标幺)
func (m *Model) Injections(v []complex128) []complex128 {
	i := m.Y.MulVec(v)
	s := make([]complex128, len(v))
	for k := range v {
		s[k] = v[k] * cmplx.Conj(i[k])
	}
	return s
}

// Flows 支路两端复功率(标幺)
func (m *Model) Flows(v []complex128) (sf, st []complex128) {
	If, It := m.Yf.MulVec(v), m.Yt.MulVec(v)
	g := m.Graph
	sf = make([]complex128, len(If))
	st = make([]complex128, len(It))
	for k := range sf {
		sf[k] = v[g.From[k]] * cmplx.Conj(If[k])
		st[k] = v[g.To[k]] * cmplx.Conj(It[k])
	}
	return sf, st
}

// Sbus 母线给定注入(标幺): 在线发电 - 负荷
func (m *Model) Sbus() []complex128 {
	g := m.Graph
	s := make([]complex128, g.N())
	for i := range s {
		b := g.Bus(i)
		s[i] = -complex(b.Pd, b.Qd)
	}
	for k, gi := range g.Gens {
		gen := &g.Case.Generators[gi]
		s[g.GenBus[k]] += complex(gen.Pg, gen.Qg)
	}
	for i := range s {
		s[i] /= complex(m.BaseMVA, 0)
	}
	return s
}
