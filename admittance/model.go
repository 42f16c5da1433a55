package admittance

import (
	"gridflow/graph"
	"gridflow/maths"

	"gonum.org/v1/gonum/mat"
)

// Model 交流导纳模型
// 行列均为拓扑计算索引，支路行与 Graph.Branches 一一对应。
type Model struct {
	Graph   *graph.Graph
	BaseMVA float64
	Y       *maths.SparseMatrix[complex128] // 节点导纳矩阵 nb×nb
	Yf      *maths.SparseMatrix[complex128] // 首端电流 nl×nb
	Yt      *maths.SparseMatrix[complex128] // 末端电流 nl×nb
	Cf, Ct  *maths.SparseMatrix[float64]    // 支路-母线关联 nl×nb
	Pi      []PiModel
}

// Build 生成交流导纳模型
func Build(g *graph.Graph) (*Model, error) {
	c := g.Case
	nb, nl := g.N(), len(g.Branches)
	m := &Model{
		Graph:   g,
		BaseMVA: c.BaseMVA,
		Y:       maths.NewSparseMatrix[complex128](nb, nb),
		Cf:      maths.NewSparseMatrix[float64](nl, nb),
		Ct:      maths.NewSparseMatrix[float64](nl, nb),
		Pi:      make([]PiModel, nl),
	}
	yf := maths.NewTriplet[complex128](nl, nb, 2*nl)
	yt := maths.NewTriplet[complex128](nl, nb, 2*nl)
	for k, l := range g.Branches {
		pi, err := NewPiModel(&c.Branches[l])
		if err != nil {
			return nil, err
		}
		f, t := g.From[k], g.To[k]
		m.Pi[k] = pi
		StampBranch(m.Y, f, t, pi.Yff, pi.Yft, pi.Ytf, pi.Ytt)
		yf.Append(k, f, pi.Yff)
		yf.Append(k, t, pi.Yft)
		yt.Append(k, f, pi.Ytf)
		yt.Append(k, t, pi.Ytt)
		m.Cf.Set(k, f, 1)
		m.Ct.Set(k, t, 1)
	}
	for i := 0; i < nb; i++ {
		b := g.Bus(i)
		StampShunt(m.Y, i, complex(b.Gs, b.Bs)/complex(c.BaseMVA, 0))
	}
	m.Yf, m.Yt = yf.ToCSR(), yt.ToCSR()
	return m, nil
}

// Dense 导出稠密导纳矩阵
func (m *Model) Dense() *mat.CDense {
	n := m.Y.Rows()
	d := mat.NewCDense(n, n, nil)
	m.Y.Range(func(i, j int, v complex128) { d.Set(i, j, d.At(i, j)+v) })
	return d
}
