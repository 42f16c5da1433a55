package pf

import (
	"math"

	"gridflow/maths"
)

// solveDC 直流潮流: B_red·θ = P - Pbusinj - B[:,ref]·θref
func (s *solver) solveDC() error {
	if err := s.canceled(); err != nil {
		return err
	}
	g, dc := s.graph, s.dc
	n := g.N()
	base := g.Case.BaseMVA
	// 有功注入(标幺)，并联电导按 1.0 p.u. 电压计入
	pbus := make([]float64, n)
	for i := 0; i < n; i++ {
		b := g.Bus(i)
		pbus[i] = -(b.Pd + b.Gs) / base
	}
	for k, gi := range g.Gens {
		pbus[g.GenBus[k]] += g.Case.Generators[gi].Pg / base
	}
	s.theta = make([]float64, n)
	for _, r := range g.Ref {
		s.theta[r] = g.Bus(r).Va * math.Pi / 180
	}
	// 去除平衡节点
	pos := make([]int, n)
	m := 0
	for i := 0; i < n; i++ {
		pos[i] = -1
		if !g.IsRef(i) {
			pos[i] = m
			m++
		}
	}
	if m > 0 {
		red := maths.NewTriplet[float64](m, m, dc.B.NonZeroCount())
		rhs := make([]float64, m)
		for i := 0; i < n; i++ {
			if pos[i] < 0 {
				continue
			}
			rhs[pos[i]] = pbus[i] - dc.Pbusinj[i]
			cols, vals := dc.B.Row(i)
			for idx, k := range cols {
				if pos[k] < 0 {
					rhs[pos[i]] -= vals[idx] * s.theta[k]
					continue
				}
				red.Append(pos[i], pos[k], vals[idx])
			}
		}
		x, err := maths.Solve(red.ToCSR(), rhs)
		if err != nil {
			return s.singular(err, "直流B矩阵奇异")
		}
		for i := 0; i < n; i++ {
			if pos[i] >= 0 {
				s.theta[i] = x[pos[i]]
			}
		}
	}
	// 残差
	calc := dc.B.MulVec(s.theta)
	var worst float64
	for i := 0; i < n; i++ {
		if pos[i] >= 0 {
			worst = math.Max(worst, math.Abs(calc[i]+dc.Pbusinj[i]-pbus[i]))
		}
	}
	s.residual = worst
	s.Vm = maths.Fill(n, 1)
	s.Va = s.theta
	s.V = polar(s.Vm, s.Va)
	s.record("dc", 1)
	return nil
}
