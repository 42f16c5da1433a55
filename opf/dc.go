package opf

import (
	"gridflow/admittance"
	"gridflow/graph"
	"gridflow/ipm"
	"gridflow/maths"
	"gridflow/types"
)

// dcProblem 直流最优潮流，约束全部线性
type dcProblem struct {
	graph  *graph.Graph
	model  *admittance.DCModel
	layout layout
	// 线性约束行号
	balance []int // 每母线一行
	flow    []int // 每条有容量支路一行，与 rated 对应
	rated   []int // 有容量限制的支路(拓扑支路序号)
	angle   angleLimits
}

func newDCProblem(g *graph.Graph, m *admittance.DCModel) *dcProblem {
	return &dcProblem{graph: g, model: m, layout: newLayout(g, types.FormulationDC)}
}

func (p *dcProblem) Dim() int { return p.layout.n }

func (p *dcProblem) Objective(x []float64) (float64, []float64) {
	return polyCost(p.graph, p.layout, x)
}

func (p *dcProblem) Constraints([]float64) (h, g []float64, dh, dg *maths.SparseMatrix[float64]) {
	return nil, nil, nil, nil
}

func (p *dcProblem) Hessian(x, _, _ []float64, costMult float64) *maths.SparseMatrix[float64] {
	n := p.layout.n
	t := maths.NewTriplet[float64](n, n, p.layout.ng)
	polyHessian(p.graph, p.layout, x, t, costMult)
	return t.ToCSR()
}

// linear 功率平衡、支路潮流、相角差、分段成本
//
//	B·θ - Cg·Pg = -(Pd+Gs)/base - Pbusinj
//	-rate - Pfinj <= Bf·θ <= rate - Pfinj
func (p *dcProblem) linear() ipm.Linear {
	g, m, l := p.graph, p.model, p.layout
	c := g.Case
	base := c.BaseMVA
	b := &linear{n: l.n}
	gensAt := g.GensAt()
	for i := 0; i < l.nb; i++ {
		cols, vals := m.B.Row(i)
		row := make([]entry, 0, len(cols)+len(gensAt[i]))
		for k, j := range cols {
			row = append(row, entry{l.va + j, vals[k]})
		}
		for _, k := range gensAt[i] {
			row = append(row, entry{l.pg + k, -1})
		}
		bus := g.Bus(i)
		rhs := -(bus.Pd+bus.Gs)/base - m.Pbusinj[i]
		p.balance = append(p.balance, b.add(row, rhs, rhs))
	}
	for k, br := range g.Branches {
		rate := c.Branches[br].RateA
		if rate <= 0 {
			continue
		}
		cols, vals := m.Bf.Row(k)
		row := make([]entry, 0, len(cols))
		for idx, j := range cols {
			row = append(row, entry{l.va + j, vals[idx]})
		}
		lim := rate / base
		p.flow = append(p.flow, b.add(row, -lim-m.Pfinj[k], lim-m.Pfinj[k]))
		p.rated = append(p.rated, k)
	}
	p.angle.add(g, l, b)
	rows, upper := l.pwlRows(g)
	for r, row := range rows {
		b.add(row, -ipm.Infinite, upper[r])
	}
	return b.build()
}
