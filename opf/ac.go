package opf

import (
	"gridflow/admittance"
	"gridflow/graph"
	"gridflow/maths"
	"gridflow/types"
)

// acProblem 交流最优潮流
//
//	h = [P(V) - Cg·Pg + Pd; Q(V) - Cg·Qg + Qd]          (标幺)
//	g = [|Sf|² - Smax²; |St|² - Smax²]                  (只含有容量限制的支路)
type acProblem struct {
	graph  *graph.Graph
	model  *admittance.Model
	layout layout
	gensAt [][]int
	rated  []int     // 有容量限制的支路(拓扑支路序号)
	limit  []float64 // (rate/base)²
	angle  angleLimits
}

// cols4 kernel 变量 (θa, θb, Va, Vb) 对应的优化变量列
type cols4 [4]int

func newACProblem(g *graph.Graph, m *admittance.Model) *acProblem {
	p := &acProblem{graph: g, model: m, layout: newLayout(g, types.FormulationAC), gensAt: g.GensAt()}
	base := g.Case.BaseMVA
	for k, l := range g.Branches {
		if rate := g.Case.Branches[l].RateA; rate > 0 {
			p.rated = append(p.rated, k)
			p.limit = append(p.limit, (rate/base)*(rate/base))
		}
	}
	return p
}

func (p *acProblem) Dim() int { return p.layout.n }

func (p *acProblem) Objective(x []float64) (float64, []float64) {
	return polyCost(p.graph, p.layout, x)
}

// busTerm 母线 i 与导纳元素 (i,j) 的功率项
func (p *acProblem) busTerm(x []float64, i, j int, y complex128) (admittance.Term, cols4) {
	l := p.layout
	if i == j {
		return admittance.SelfTerm(x[l.vm+i], y), cols4{l.va + i, l.va + i, l.vm + i, l.vm + i}
	}
	return admittance.PairTerm(x[l.vm+i], x[l.vm+j], x[l.va+i], x[l.va+j], y),
		cols4{l.va + i, l.va + j, l.vm + i, l.vm + j}
}

// flowTerms 支路两端功率项
func (p *acProblem) flowTerms(x []float64, k int) (sf, st admittance.Term, cf, ct cols4) {
	l, g := p.layout, p.graph
	pi := p.model.Pi[k]
	f, t := g.From[k], g.To[k]
	sf = admittance.FlowTerm(x[l.vm+f], x[l.vm+t], x[l.va+f], x[l.va+t], pi.Yff, pi.Yft)
	st = admittance.FlowTerm(x[l.vm+t], x[l.vm+f], x[l.va+t], x[l.va+f], pi.Ytt, pi.Ytf)
	cf = cols4{l.va + f, l.va + t, l.vm + f, l.vm + t}
	ct = cols4{l.va + t, l.va + f, l.vm + t, l.vm + f}
	return sf, st, cf, ct
}

func (p *acProblem) Constraints(x []float64) (h, g []float64, dh, dg *maths.SparseMatrix[float64]) {
	l, gr := p.layout, p.graph
	base := gr.Case.BaseMVA
	nb, nr := l.nb, len(p.rated)
	h = make([]float64, 2*nb)
	th := maths.NewTriplet[float64](2*nb, l.n, 8*p.model.Y.NonZeroCount()+2*l.ng)
	for i := 0; i < nb; i++ {
		cols, vals := p.model.Y.Row(i)
		for idx, j := range cols {
			t, c := p.busTerm(x, i, j, vals[idx])
			h[i] += t.P
			h[nb+i] += t.Q
			scatterRow(th, i, c, t.DP)
			scatterRow(th, nb+i, c, t.DQ)
		}
		bus := gr.Bus(i)
		h[i] += bus.Pd / base
		h[nb+i] += bus.Qd / base
		for _, k := range p.gensAt[i] {
			h[i] -= x[l.pg+k]
			h[nb+i] -= x[l.qg+k]
			th.Append(i, l.pg+k, -1)
			th.Append(nb+i, l.qg+k, -1)
		}
	}
	g = make([]float64, 2*nr)
	tg := maths.NewTriplet[float64](2*nr, l.n, 8*nr)
	for r, k := range p.rated {
		sf, st, cf, ct := p.flowTerms(x, k)
		s2, d, _ := sf.SquaredMagnitude()
		g[r] = s2 - p.limit[r]
		scatterRow(tg, r, cf, d)
		s2, d, _ = st.SquaredMagnitude()
		g[nr+r] = s2 - p.limit[r]
		scatterRow(tg, nr+r, ct, d)
	}
	return h, g, th.ToCSR(), tg.ToCSR()
}

func (p *acProblem) Hessian(x, lam, mu []float64, costMult float64) *maths.SparseMatrix[float64] {
	l := p.layout
	nb, nr := l.nb, len(p.rated)
	t := maths.NewTriplet[float64](l.n, l.n, 16*p.model.Y.NonZeroCount()+32*nr+l.ng)
	polyHessian(p.graph, p.layout, x, t, costMult)
	for i := 0; i < nb; i++ {
		cols, vals := p.model.Y.Row(i)
		for idx, j := range cols {
			term, c := p.busTerm(x, i, j, vals[idx])
			scatterBlock(t, c, lam[i], term.HP)
			scatterBlock(t, c, lam[nb+i], term.HQ)
		}
	}
	for r, k := range p.rated {
		sf, st, cf, ct := p.flowTerms(x, k)
		_, _, hf := sf.SquaredMagnitude()
		scatterBlock(t, cf, mu[r], hf)
		_, _, ht := st.SquaredMagnitude()
		scatterBlock(t, ct, mu[nr+r], ht)
	}
	return t.ToCSR()
}

func scatterRow(t *maths.Triplet[float64], row int, c cols4, d [4]float64) {
	for a := 0; a < 4; a++ {
		if d[a] != 0 {
			t.Append(row, c[a], d[a])
		}
	}
}

func scatterBlock(t *maths.Triplet[float64], c cols4, w float64, h [4][4]float64) {
	if w == 0 {
		return
	}
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			if h[a][b] != 0 {
				t.Append(c[a], c[b], w*h[a][b])
			}
		}
	}
}
