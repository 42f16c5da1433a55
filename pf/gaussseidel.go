package pf

import (
	"math"
	"math/cmplx"

	"gridflow/maths"
)

// gaussSeidel 高斯-赛德尔迭代，收敛判据与牛顿法相同
func (s *solver) gaussSeidel() error {
	g := s.graph
	pvpq := append(append([]int{}, g.PV...), g.PQ...)
	y := s.model.Y
	// 节点i的注入电流 Y[i,:]·V
	rowDot := func(i int) (sum, diag complex128) {
		cols, vals := y.Row(i)
		for idx, k := range cols {
			sum += vals[idx] * s.V[k]
			if k == i {
				diag = vals[idx]
			}
		}
		return sum, diag
	}
	for s.iter = 0; ; s.iter++ {
		if err := s.canceled(); err != nil {
			return err
		}
		f := s.mismatch(pvpq, g.PQ)
		s.residual = maths.NormInf(f)
		s.record("gauss-seidel", 1)
		switch {
		case math.IsNaN(s.residual) || math.IsInf(s.residual, 0):
			return s.diverged()
		case s.residual < s.opts.Tolerance:
			return nil
		case s.iter >= s.opts.MaxIterations:
			return s.diverged()
		}
		for _, k := range g.PQ {
			sum, diag := rowDot(k)
			if diag == 0 {
				return s.singular(maths.ErrSingular, "导纳矩阵对角元为零")
			}
			s.V[k] += (cmplx.Conj(s.Sbus[k]/s.V[k]) - sum) / diag
		}
		for _, k := range g.PV {
			sum, diag := rowDot(k)
			if diag == 0 {
				return s.singular(maths.ErrSingular, "导纳矩阵对角元为零")
			}
			// PV 节点无功取当前电压下的计算值
			s.Sbus[k] = complex(real(s.Sbus[k]), imag(s.V[k]*cmplx.Conj(sum)))
			s.V[k] += (cmplx.Conj(s.Sbus[k]/s.V[k]) - sum) / diag
			s.V[k] *= complex(s.Vm[k]/cmplx.Abs(s.V[k]), 0)
		}
		for _, i := range pvpq {
			s.Vm[i], s.Va[i] = cmplx.Abs(s.V[i]), cmplx.Phase(s.V[i])
		}
	}
}
