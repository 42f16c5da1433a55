package admittance

import (
	"math"

	"gridflow/graph"
	"gridflow/maths"
	"gridflow/types"
)

// DCModel 直流潮流模型
// Pf = Bf·θ + Pfinj，B·θ = Pbus - Pbusinj (标幺)。
type DCModel struct {
	Graph   *graph.Graph
	B       *maths.SparseMatrix[float64] // nb×nb
	Bf      *maths.SparseMatrix[float64] // nl×nb
	Pfinj   []float64                    // 移相器等值支路注入
	Pbusinj []float64                    // 移相器等值母线注入
	Susc    []float64                    // 支路电纳 b = 1/(x·ratio)
}

// BuildDC 生成直流模型，只计电抗与移相角
func BuildDC(g *graph.Graph) (*DCModel, error) {
	c := g.Case
	nb, nl := g.N(), len(g.Branches)
	m := &DCModel{
		Graph:   g,
		B:       maths.NewSparseMatrix[float64](nb, nb),
		Pfinj:   make([]float64, nl),
		Pbusinj: make([]float64, nb),
		Susc:    make([]float64, nl),
	}
	bf := maths.NewTriplet[float64](nl, nb, 2*nl)
	for k, l := range g.Branches {
		br := &c.Branches[l]
		if br.X == 0 {
			return nil, types.NewError(types.KindDegenerateBranch,
				"支路 %d (%d-%d) 电抗为零，无法建立直流模型", br.ID, br.From, br.To)
		}
		ratio := br.Ratio
		if ratio == 0 {
			ratio = 1
		}
		b := 1 / (br.X * ratio)
		f, t := g.From[k], g.To[k]
		m.Susc[k] = b
		StampBranch(m.B, f, t, b, -b, -b, b)
		bf.Append(k, f, b)
		bf.Append(k, t, -b)
		m.Pfinj[k] = -b * br.Shift * math.Pi / 180
		m.Pbusinj[f] += m.Pfinj[k]
		m.Pbusinj[t] -= m.Pfinj[k]
	}
	m.Bf = bf.ToCSR()
	return m, nil
}

// Flows 支路有功潮流(标幺)
func (m *DCModel) Flows(theta []float64) []float64 {
	pf := m.Bf.MulVec(theta)
	for k := range pf {
		pf[k] += m.Pfinj[k]
	}
	return pf
}
