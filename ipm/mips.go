package ipm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gridflow/maths"
	"gridflow/types"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// mips 原始-对偶内点法状态
type mips struct {
	p    Problem
	opts Options
	nx   int
	// 线性约束分类后的等式与不等式
	ae, ai       *maths.SparseMatrix[float64]
	be, bi       []float64
	nA           int
	ieq          []int // 等式行在 [I;A] 中的位置
	ilt, igt     []int // 只有上界 / 只有下界
	ibx          []int // 双边界
	neqn, niqn   int   // 非线性等式 / 不等式数量
	f            float64
	df, h, g, lx []float64
	dh, dg       *maths.SparseMatrix[float64]
}

// Solve 求解非线性规划
// 每步求解约化KKT系统
//
//	| Lxx + dgᵀ·Z⁻¹·M·dg   dhᵀ | |  dx |   | -N |
//	| dh                   0   | | dλ  | = | -h |
//
// 步长按边界比例规则保持 z > 0，μ > 0。
func Solve(ctx context.Context, p Problem, lin Linear, xmin, xmax, x0 []float64, opts Options) (*Result, error) {
	opts = opts.normalize()
	m := &mips{p: p, opts: opts, nx: p.Dim()}
	if len(x0) != m.nx || len(xmin) != m.nx || len(xmax) != m.nx {
		return nil, fmt.Errorf("变量维度不匹配: x0=%d xmin=%d xmax=%d nx=%d", len(x0), len(xmin), len(xmax), m.nx)
	}
	m.split(lin, xmin, xmax)
	x := append([]float64(nil), x0...)
	m.eval(x)
	neq, niq := len(m.h), len(m.g)
	log := opts.Logger

	// 初始对偶变量
	gamma := 1.0
	lam := make([]float64, neq)
	z := maths.Fill(niq, Z0)
	mu := maths.Fill(niq, Z0)
	for k := range z {
		if m.g[k] < -Z0 {
			z[k] = -m.g[k]
		}
		if gamma/z[k] > Z0 {
			mu[k] = gamma / z[k]
		}
	}
	e := maths.Fill(niq, 1)
	m.lagrangianGradient(lam, mu)
	f0 := m.f
	step := m.conditions(x, z, lam, mu, f0)
	step.Gamma = gamma
	res := &Result{History: []Step{step}}
	converged := m.converged(step)
	var failure error
	i := 0
	for !converged && i < opts.MaxIter {
		if err := ctx.Err(); err != nil {
			return res, &types.SolveError{Kind: types.KindCancelled, Iterations: i, Residual: step.Feas, Err: err}
		}
		i++
		// 约化KKT系统
		kkt, rhs := m.kkt(x, z, lam, mu, gamma, e)
		// KKT 矩阵在接近最优时病态，只拒绝零主元
		sol, err := maths.SolveTol(kkt, rhs, 0)
		if err != nil || floats.HasNaN(sol) {
			failure = &types.SolveError{Kind: types.KindSingularSystem, Iterations: i, Residual: step.Feas, Detail: "KKT矩阵奇异", Err: err}
			break
		}
		dx, dlam := sol[:m.nx], sol[m.nx:]
		dz := make([]float64, niq)
		dgdx := mulVec(m.dg, dx, niq)
		dmu := make([]float64, niq)
		for k := 0; k < niq; k++ {
			dz[k] = -m.g[k] - z[k] - dgdx[k]
			dmu[k] = -mu[k] + (gamma-mu[k]*dz[k])/z[k]
		}
		// 边界比例规则
		alphap, alphad := boundaryStep(z, dz), boundaryStep(mu, dmu)
		floats.AddScaled(x, alphap, dx)
		floats.AddScaled(z, alphap, dz)
		floats.AddScaled(lam, alphad, dlam)
		floats.AddScaled(mu, alphad, dmu)
		if niq > 0 {
			gamma = Sigma * floats.Dot(z, mu) / float64(niq)
		}
		m.eval(x)
		m.lagrangianGradient(lam, mu)
		step = m.conditions(x, z, lam, mu, f0)
		step.Iter, step.Gamma, step.AlphaP, step.AlphaD = i, gamma, alphap, alphad
		step.MaxStep = maths.NormInf(dx)
		res.History = append(res.History, step)
		m.record(step)
		log.Debug("内点法迭代",
			zap.Int("iter", i),
			zap.Float64("feas", step.Feas),
			zap.Float64("grad", step.Grad),
			zap.Float64("comp", step.Comp),
			zap.Float64("cost", step.Cost),
			zap.Float64("alphap", alphap),
			zap.Float64("alphad", alphad))
		if floats.HasNaN(x) || alphap < AlphaMin || alphad < AlphaMin ||
			gamma < maths.Epsilon || gamma > 1/maths.Epsilon {
			failure = &types.SolveError{Kind: types.KindDivergedMaxIterations, Iterations: i, Residual: step.Feas, Detail: "数值失败"}
			break
		}
		converged = m.converged(step)
		if !converged && m.certified(res.History) {
			failure = &types.SolveError{Kind: types.KindInfeasible, Iterations: i, Residual: step.Feas, Detail: "可行性停滞而互补间隙持续下降"}
			break
		}
		f0 = m.f
	}
	res.Iterations = i
	res.X = x
	res.F = m.f / opts.CostMult
	if failure != nil || !converged {
		// 步长崩溃或KKT奇异看最后一步，达到上限看完整窗口
		window := 1
		if failure == nil {
			failure = &types.SolveError{Kind: types.KindDivergedMaxIterations, Iterations: i, Residual: step.Feas, Detail: "达到迭代上限"}
			window = Window
		}
		if types.KindOf(failure) != types.KindInfeasible && m.stalled(res.History, window) {
			var se *types.SolveError
			errors.As(failure, &se)
			failure = &types.SolveError{Kind: types.KindInfeasible, Iterations: i, Residual: step.Feas,
				Detail: se.Detail + "，仍不满足约束"}
		}
		return res, failure
	}
	res.Converged = true
	m.multipliers(res, lam, mu)
	return res, nil
}

// split 把变量边界与线性约束拆分为等式和单边不等式
func (m *mips) split(lin Linear, xmin, xmax []float64) {
	nx, nA := m.nx, lin.Rows()
	m.nA = nA
	ll := append(append([]float64(nil), xmin...), lin.L...)
	uu := append(append([]float64(nil), xmax...), lin.U...)
	for k := 0; k < nx+nA; k++ {
		lo, hi := isInf(ll[k], -1), isInf(uu[k], 1)
		switch {
		case math.Abs(uu[k]-ll[k]) <= maths.Epsilon:
			m.ieq = append(m.ieq, k)
		case !lo && hi:
			m.igt = append(m.igt, k)
		case lo && !hi:
			m.ilt = append(m.ilt, k)
		case !lo && !hi:
			m.ibx = append(m.ibx, k)
		}
	}
	row := func(t *maths.Triplet[float64], r, k int, sign float64) {
		if k < nx {
			t.Append(r, k, sign)
			return
		}
		cols, vals := lin.A.Row(k - nx)
		for idx, j := range cols {
			t.Append(r, j, sign*vals[idx])
		}
	}
	ae := maths.NewTriplet[float64](len(m.ieq), nx, len(m.ieq))
	for r, k := range m.ieq {
		row(ae, r, k, 1)
		m.be = append(m.be, uu[k])
	}
	niq := len(m.ilt) + len(m.igt) + 2*len(m.ibx)
	ai := maths.NewTriplet[float64](niq, nx, niq)
	r := 0
	for _, k := range m.ilt {
		row(ai, r, k, 1)
		m.bi = append(m.bi, uu[k])
		r++
	}
	for _, k := range m.igt {
		row(ai, r, k, -1)
		m.bi = append(m.bi, -ll[k])
		r++
	}
	for _, k := range m.ibx {
		row(ai, r, k, 1)
		m.bi = append(m.bi, uu[k])
		r++
	}
	for _, k := range m.ibx {
		row(ai, r, k, -1)
		m.bi = append(m.bi, -ll[k])
		r++
	}
	m.ae, m.ai = ae.ToCSR(), ai.ToCSR()
}

// eval 计算目标与全部约束
func (m *mips) eval(x []float64) {
	f, df := m.p.Objective(x)
	m.f = f * m.opts.CostMult
	m.df = append(m.df[:0], df...)
	floats.Scale(m.opts.CostMult, m.df)
	hn, gn, dhn, dgn := m.p.Constraints(x)
	m.neqn, m.niqn = len(hn), len(gn)
	m.h = append(append([]float64(nil), hn...), m.ae.MulVec(x)...)
	for k := range m.be {
		m.h[m.neqn+k] -= m.be[k]
	}
	m.g = append(append([]float64(nil), gn...), m.ai.MulVec(x)...)
	for k := range m.bi {
		m.g[m.niqn+k] -= m.bi[k]
	}
	m.dh = stack(m.nx, dhn, m.ae)
	m.dg = stack(m.nx, dgn, m.ai)
}

// lagrangianGradient Lx = df + dhᵀλ + dgᵀμ
func (m *mips) lagrangianGradient(lam, mu []float64) {
	m.lx = append(m.lx[:0], m.df...)
	if len(lam) > 0 {
		floats.Add(m.lx, m.dh.MulTransVec(lam))
	}
	if len(mu) > 0 {
		floats.Add(m.lx, m.dg.MulTransVec(mu))
	}
}

// conditions 收敛指标
func (m *mips) conditions(x, z, lam, mu []float64, f0 float64) Step {
	normx := maths.NormInf(x)
	return Step{
		Feas: math.Max(maths.NormInf(m.h), maths.MaxOr(m.g, 0)) / (1 + math.Max(normx, maths.NormInf(z))),
		Grad: maths.NormInf(m.lx) / (1 + math.Max(maths.NormInf(lam), maths.NormInf(mu))),
		Comp: dot(z, mu) / (1 + normx),
		Cost: math.Abs(m.f-f0) / (1 + math.Abs(f0)),
		F:    m.f / m.opts.CostMult,
	}
}

func (m *mips) converged(s Step) bool {
	o := m.opts
	return s.Feas < o.FeasTol && s.Grad < o.GradTol && s.Comp < o.CompTol && s.Cost < o.CostTol
}

// stalled 仍不可行，且最近 w 步原始可行性改善不足一半
// 历史不足 w 步或只有一步迭代时不下结论。
func (m *mips) stalled(hist []Step, w int) bool {
	n := len(hist) - 1
	if n < 2 || n < w {
		return false
	}
	now, then := hist[n], hist[n-w]
	return now.Feas > m.opts.FeasTol && now.Feas >= 0.5*then.Feas
}

// certified 迭代中途的不可行证明: 完整窗口内显著不可行且停滞，互补间隙仍在下降
func (m *mips) certified(hist []Step) bool {
	n := len(hist) - 1
	if n < Window || !m.stalled(hist, Window) {
		return false
	}
	now, then := hist[n], hist[n-Window]
	return now.Feas > math.Sqrt(m.opts.FeasTol) && now.Comp < then.Comp
}

// kkt 组装约化KKT矩阵与右端项
func (m *mips) kkt(x, z, lam, mu []float64, gamma float64, e []float64) (*maths.SparseMatrix[float64], []float64) {
	nx, neq := m.nx, len(m.h)
	t := maths.NewTriplet[float64](nx+neq, nx+neq, 0)
	lxx := m.p.Hessian(x, lam[:m.neqn], mu[:m.niqn], m.opts.CostMult)
	if lxx != nil {
		t.AppendMatrix(0, 0, lxx)
	}
	n := append([]float64(nil), m.lx...)
	for r := 0; r < len(m.g); r++ {
		cols, vals := m.dg.Row(r)
		w := mu[r] / z[r]
		for a, ja := range cols {
			for b, jb := range cols {
				t.Append(ja, jb, w*vals[a]*vals[b])
			}
		}
		c := (mu[r]*m.g[r] + gamma*e[r]) / z[r]
		for a, ja := range cols {
			n[ja] += c * vals[a]
		}
	}
	t.AppendTranspose(0, nx, m.dh)
	t.AppendMatrix(nx, 0, m.dh)
	rhs := make([]float64, nx+neq)
	for k := 0; k < nx; k++ {
		rhs[k] = -n[k]
	}
	for k := 0; k < neq; k++ {
		rhs[nx+k] = -m.h[k]
	}
	return t.ToCSR(), rhs
}

// multipliers 去缩放并把线性部分乘子映射回变量上下界与线性约束
func (m *mips) multipliers(res *Result, lam, mu []float64) {
	cm := m.opts.CostMult
	for k := range mu {
		if m.g[k] < -m.opts.FeasTol && mu[k] < MuThreshold {
			mu[k] = 0
		}
	}
	floats.Scale(1/cm, lam)
	floats.Scale(1/cm, mu)
	res.Lam = append([]float64(nil), lam[:m.neqn]...)
	res.Mu = append([]float64(nil), mu[:m.niqn]...)
	total := m.nx + m.nA
	lower, upper := make([]float64, total), make([]float64, total)
	linLam := lam[m.neqn:]
	for r, k := range m.ieq {
		if linLam[r] < 0 {
			lower[k] = -linLam[r]
		} else {
			upper[k] = linLam[r]
		}
	}
	linMu := mu[m.niqn:]
	r := 0
	for _, k := range m.ilt {
		upper[k] = linMu[r]
		r++
	}
	for _, k := range m.igt {
		lower[k] = linMu[r]
		r++
	}
	for _, k := range m.ibx {
		upper[k] = linMu[r]
		r++
	}
	for _, k := range m.ibx {
		lower[k] = linMu[r]
		r++
	}
	res.MuLower, res.MuUpper = lower[:m.nx], upper[:m.nx]
	res.LinLower, res.LinUpper = lower[m.nx:], upper[m.nx:]
}

// record 调试记录
func (m *mips) record(s Step) {
	d := m.opts.Debug
	if d == nil || !d.IsDebug() {
		return
	}
	d.Update(types.Iteration{
		Solver:   "ipm",
		Iter:     s.Iter,
		Residual: math.Max(math.Max(s.Feas, s.Grad), s.Comp),
		Step:     s.AlphaP,
		Extra: map[string]float64{
			"feas":  s.Feas,
			"grad":  s.Grad,
			"comp":  s.Comp,
			"cost":  s.Cost,
			"gamma": s.Gamma,
			"f":     s.F,
		},
	})
}

// boundaryStep 边界比例步长 min(ξ·min(v/-dv), 1)
func boundaryStep(v, dv []float64) float64 {
	alpha := 1.0
	for k := range v {
		if dv[k] < 0 {
			alpha = math.Min(alpha, Xi*v[k]/-dv[k])
		}
	}
	return alpha
}

// stack 纵向拼接，nil 视为 0 行
func stack(nx int, top, bottom *maths.SparseMatrix[float64]) *maths.SparseMatrix[float64] {
	if top == nil || top.Rows() == 0 {
		return bottom
	}
	t := maths.NewTriplet[float64](top.Rows()+bottom.Rows(), nx, top.NonZeroCount()+bottom.NonZeroCount())
	t.AppendMatrix(0, 0, top)
	t.AppendMatrix(top.Rows(), 0, bottom)
	return t.ToCSR()
}

func mulVec(a *maths.SparseMatrix[float64], x []float64, rows int) []float64 {
	if rows == 0 {
		return nil
	}
	return a.MulVec(x)
}

func dot(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Dot(a, b)
}
