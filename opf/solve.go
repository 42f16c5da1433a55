package opf

import (
	"context"
	"fmt"
	"math"
	"time"

	"gridflow/admittance"
	"gridflow/graph"
	"gridflow/ipm"
	"gridflow/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result 最优潮流结果
type Result struct {
	RunID       string
	Formulation types.Formulation
	Iterations  int
	Cost        float64 // 目标值($/h)
	X           []float64
	History     []ipm.Step
	Graph       *graph.Graph
	Warnings    []types.Warning
	Elapsed     time.Duration
}

// Solve 求解最优潮流，成功后写回出力、电压、潮流与乘子
func Solve(ctx context.Context, c *types.Case, opts types.OPFOptions) (*Result, error) {
	opts = opts.Normalize()
	res := &Result{RunID: uuid.NewString(), Formulation: opts.Formulation}
	log := opts.Logger.With(zap.String("run", res.RunID), zap.String("formulation", opts.Formulation.String()))
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	g, err := graph.NewGraph(c)
	if err != nil {
		return nil, err
	}
	res.Graph = g
	po := ipm.Options{
		FeasTol:  opts.Tolerance,
		GradTol:  opts.Tolerance,
		CompTol:  opts.Tolerance,
		CostTol:  opts.Tolerance,
		MaxIter:  opts.MaxIterations,
		CostMult: 1,
		Logger:   log,
		Debug:    opts.Debug,
	}
	var (
		problem ipm.Problem
		lin     ipm.Linear
		lay     layout
		ac      *acProblem
		dc      *dcProblem
	)
	switch opts.Formulation {
	case types.FormulationAC:
		m, err := admittance.Build(g)
		if err != nil {
			return nil, err
		}
		ac = newACProblem(g, m)
		lay = ac.layout
		b := &linear{n: lay.n}
		ac.angle.add(g, lay, b)
		rows, upper := lay.pwlRows(g)
		for r, row := range rows {
			b.add(row, -ipm.Infinite, upper[r])
		}
		problem, lin = ac, b.build()
		po.CostMult = types.AcCostMultiplier
	case types.FormulationDC:
		m, err := admittance.BuildDC(g)
		if err != nil {
			return nil, err
		}
		dc = newDCProblem(g, m)
		lay = dc.layout
		problem, lin = dc, dc.linear()
	default:
		return nil, types.NewError(types.KindInvalidCase, "未知最优潮流模型: %v", opts.Formulation)
	}
	xmin, xmax, x0 := lay.bounds(g)
	log.Debug("最优潮流问题",
		zap.Int("variables", lay.n),
		zap.Int("linear", lin.Rows()),
		zap.Int("pwl", lay.ny))

	r, err := ipm.Solve(ctx, problem, lin, xmin, xmax, x0, po)
	if r != nil {
		res.Iterations, res.History, res.X, res.Cost = r.Iterations, r.History, r.X, r.F
	}
	if err != nil {
		log.Warn("最优潮流求解失败", zap.Int("iter", res.Iterations), zap.Error(err))
		if opts.Debug != nil {
			opts.Debug.Error(err)
		}
		return res, err
	}
	if ac != nil {
		ac.commit(r)
	} else {
		dc.commit(r)
	}
	res.Warnings = warnings(g, res.Iterations, opts.MaxIterations)
	for _, w := range res.Warnings {
		log.Warn("最优潮流告警", zap.Stringer("warning", w))
	}
	log.Info("最优潮流收敛", zap.Int("iter", res.Iterations), zap.Float64("cost", res.Cost))
	return res, nil
}

// clearResults 清空上次的结果与乘子
func clearResults(c *types.Case) {
	for i := range c.Buses {
		b := &c.Buses[i]
		b.PLambda, b.QLambda, b.MuVMin, b.MuVMax = 0, 0, 0, 0
	}
	for i := range c.Branches {
		br := &c.Branches[i]
		br.PFrom, br.QFrom, br.PTo, br.QTo = 0, 0, 0, 0
		br.MuSFrom, br.MuSTo, br.MuAngMin, br.MuAngMax = 0, 0, 0, 0
	}
	for i := range c.Generators {
		gen := &c.Generators[i]
		gen.MuPMin, gen.MuPMax, gen.MuQMin, gen.MuQMax = 0, 0, 0, 0
	}
}

// commit 交流结果写回
func (p *acProblem) commit(r *ipm.Result) {
	g, l := p.graph, p.layout
	c := g.Case
	base := c.BaseMVA
	x := r.X
	clearResults(c)
	v := make([]complex128, l.nb)
	for i := 0; i < l.nb; i++ {
		b := g.Bus(i)
		b.Vm, b.Va = x[l.vm+i], x[l.va+i]*180/math.Pi
		b.PLambda, b.QLambda = r.Lam[i]/base, r.Lam[l.nb+i]/base
		b.MuVMin, b.MuVMax = r.MuLower[l.vm+i], r.MuUpper[l.vm+i]
		sin, cos := math.Sincos(x[l.va+i])
		v[i] = complex(b.Vm*cos, b.Vm*sin)
	}
	for k, gi := range g.Gens {
		gen := &c.Generators[gi]
		gen.Pg, gen.Qg = x[l.pg+k]*base, x[l.qg+k]*base
		gen.MuPMin, gen.MuPMax = r.MuLower[l.pg+k]/base, r.MuUpper[l.pg+k]/base
		gen.MuQMin, gen.MuQMax = r.MuLower[l.qg+k]/base, r.MuUpper[l.qg+k]/base
	}
	sf, st := p.model.Flows(v)
	for k, li := range g.Branches {
		br := &c.Branches[li]
		br.PFrom, br.QFrom = real(sf[k])*base, imag(sf[k])*base
		br.PTo, br.QTo = real(st[k])*base, imag(st[k])*base
	}
	// |S|² 约束乘子换算为 $/MVAh
	nr := len(p.rated)
	for j, k := range p.rated {
		br := &c.Branches[g.Branches[k]]
		br.MuSFrom = 2 * r.Mu[j] * br.RateA / base / base
		br.MuSTo = 2 * r.Mu[nr+j] * br.RateA / base / base
	}
	p.angle.commit(g, r)
}

// commit 直流结果写回，Vm 置 1，无功潮流为零
func (p *dcProblem) commit(r *ipm.Result) {
	g, l := p.graph, p.layout
	c := g.Case
	base := c.BaseMVA
	x := r.X
	clearResults(c)
	for i := 0; i < l.nb; i++ {
		b := g.Bus(i)
		b.Vm, b.Va = 1, x[l.va+i]*180/math.Pi
		row := p.balance[i]
		b.PLambda = (r.LinUpper[row] - r.LinLower[row]) / base
	}
	for k, gi := range g.Gens {
		gen := &c.Generators[gi]
		gen.Pg = x[l.pg+k] * base
		gen.MuPMin, gen.MuPMax = r.MuLower[l.pg+k]/base, r.MuUpper[l.pg+k]/base
	}
	pf := p.model.Flows(x[l.va : l.va+l.nb])
	for k, li := range g.Branches {
		br := &c.Branches[li]
		br.PFrom, br.PTo = pf[k]*base, -pf[k]*base
	}
	for j, k := range p.rated {
		br := &c.Branches[g.Branches[k]]
		row := p.flow[j]
		br.MuSFrom, br.MuSTo = r.LinUpper[row]/base, r.LinLower[row]/base
	}
	p.angle.commit(g, r)
}

func warnings(g *graph.Graph, iter, limit int) []types.Warning {
	var list []types.Warning
	if iter >= int(math.Ceil(types.NearCapRatio*float64(limit))) {
		list = append(list, types.Warning{
			Kind:    types.WarnNearIterationCap,
			Message: fmt.Sprintf("迭代 %d 次，上限 %d", iter, limit),
		})
	}
	for _, id := range g.Isolated {
		list = append(list, types.Warning{Kind: types.WarnIsolatedBus, Subject: id, Message: "孤立母线未参与计算"})
	}
	return list
}
