package pf

import (
	"math"

	"gridflow/admittance"
	"gridflow/maths"
)

// newton 牛顿-拉夫逊迭代
func (s *solver) newton() error {
	g := s.graph
	pvpq := append(append([]int{}, g.PV...), g.PQ...)
	pq := g.PQ
	npvpq := len(pvpq)
	for s.iter = 0; ; s.iter++ {
		if err := s.canceled(); err != nil {
			return err
		}
		f := s.mismatch(pvpq, pq)
		s.residual = maths.NormInf(f)
		s.record("newton", 1)
		switch {
		case math.IsNaN(s.residual) || math.IsInf(s.residual, 0):
			return s.diverged()
		case s.residual < s.opts.Tolerance:
			return nil
		case s.iter >= s.opts.MaxIterations:
			return s.diverged()
		}
		// J·Δx = -F
		jac := s.jacobian(pvpq, pq)
		for k := range f {
			f[k] = -f[k]
		}
		dx, err := maths.Solve(jac, f)
		if err != nil {
			return s.singular(err, "雅可比矩阵奇异")
		}
		for k, i := range pvpq {
			s.Va[i] += dx[k]
		}
		for k, i := range pq {
			s.Vm[i] += dx[npvpq+k]
		}
		s.V = polar(s.Vm, s.Va)
	}
}

// jacobian 极坐标雅可比矩阵
//
//	| ∂P/∂θ  ∂P/∂V |  行: P(pv∪pq), Q(pq)
//	| ∂Q/∂θ  ∂Q/∂V |  列: θ(pv∪pq), V(pq)
func (s *solver) jacobian(pvpq, pq []int) *maths.SparseMatrix[float64] {
	n := s.graph.N()
	npvpq, npq := len(pvpq), len(pq)
	prow, qrow := index(n, pvpq, 0), index(n, pq, npvpq)
	tcol, vcol := prow, qrow
	y := s.model.Y
	jac := maths.NewTriplet[float64](npvpq+npq, npvpq+npq, 4*y.NonZeroCount())
	add := func(r, c int, v float64) {
		if r >= 0 && c >= 0 {
			jac.Append(r, c, v)
		}
	}
	for i := 0; i < n; i++ {
		if prow[i] < 0 && qrow[i] < 0 {
			continue
		}
		cols, vals := y.Row(i)
		for idx, k := range cols {
			var t admittance.Term
			if k == i {
				t = admittance.SelfTerm(s.Vm[i], vals[idx])
				add(prow[i], vcol[i], t.DP[2])
				add(qrow[i], vcol[i], t.DQ[2])
				continue
			}
			t = admittance.PairTerm(s.Vm[i], s.Vm[k], s.Va[i], s.Va[k], vals[idx])
			add(prow[i], tcol[i], t.DP[0])
			add(prow[i], tcol[k], t.DP[1])
			add(prow[i], vcol[i], t.DP[2])
			add(prow[i], vcol[k], t.DP[3])
			add(qrow[i], tcol[i], t.DQ[0])
			add(qrow[i], tcol[k], t.DQ[1])
			add(qrow[i], vcol[i], t.DQ[2])
			add(qrow[i], vcol[k], t.DQ[3])
		}
	}
	return jac.ToCSR()
}

// index 母线到行列号的映射，未包含为 -1
func index(n int, list []int, offset int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = -1
	}
	for k, i := range list {
		idx[i] = offset + k
	}
	return idx
}
