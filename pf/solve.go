package pf

import (
	"context"
	"errors"
	"math"
	"time"

	"gridflow/admittance"
	"gridflow/graph"
	"gridflow/maths"
	"gridflow/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result 潮流求解结果
type Result struct {
	RunID      string
	Method     types.Method
	Iterations int          // 已完成的修正次数
	Residual   float64      // 最终失配无穷范数(标幺)
	V          []complex128 // 计算索引下的母线电压
	Graph      *graph.Graph // 拓扑
	Warnings   []types.Warning
	Elapsed    time.Duration
}

// Solve 求解潮流，成功后把结果写回算例
func Solve(ctx context.Context, c *types.Case, method types.Method, opts types.Options) (*Result, error) {
	opts = opts.Normalize(method)
	res := &Result{RunID: uuid.NewString(), Method: method}
	log := opts.Logger.With(zap.String("run", res.RunID), zap.String("method", method.String()))
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	g, err := graph.NewGraph(c)
	if err != nil {
		return nil, err
	}
	res.Graph = g
	s := &solver{ctx: ctx, opts: opts, log: log, graph: g, debug: opts.Debug}
	switch method {
	case types.NewtonRaphson, types.GaussSeidel:
		if s.model, err = admittance.Build(g); err != nil {
			return nil, err
		}
		s.init()
		if method == types.NewtonRaphson {
			err = s.newton()
		} else {
			err = s.gaussSeidel()
		}
	case types.DCPowerFlow:
		if s.dc, err = admittance.BuildDC(g); err != nil {
			return nil, err
		}
		err = s.solveDC()
	default:
		return nil, types.NewError(types.KindInvalidCase, "未知潮流算法: %v", method)
	}
	res.Iterations, res.Residual, res.V = s.iter, s.residual, s.V
	if err != nil {
		log.Warn("潮流求解失败", zap.Int("iter", s.iter), zap.Float64("residual", s.residual), zap.Error(err))
		if s.debug != nil {
			s.debug.Error(err)
		}
		return res, err
	}
	// 提交结果
	if method == types.DCPowerFlow {
		s.commitDC()
	} else {
		s.commitAC()
	}
	res.Warnings = s.warnings(method)
	for _, w := range res.Warnings {
		log.Warn("潮流告警", zap.Stringer("warning", w))
	}
	log.Info("潮流收敛", zap.Int("iter", s.iter), zap.Float64("residual", s.residual))
	return res, nil
}

// solver 迭代状态
type solver struct {
	ctx      context.Context
	opts     types.Options
	log      *zap.Logger
	debug    types.Debug
	graph    *graph.Graph
	model    *admittance.Model
	dc       *admittance.DCModel
	V        []complex128 // 母线电压
	Vm, Va   []float64
	Sbus     []complex128 // 给定注入
	theta    []float64    // 直流相角
	iter     int
	residual float64
}

// init 电压初值: 热启动取算例电压，否则平启动；平衡节点相角取给定值，PV/平衡节点幅值取机组设定
func (s *solver) init() {
	g := s.graph
	n := g.N()
	s.Vm, s.Va = make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		b := g.Bus(i)
		s.Vm[i], s.Va[i] = 1, 0
		if s.opts.WarmStart && b.Vm > 0 {
			s.Vm[i], s.Va[i] = b.Vm, b.Va*math.Pi/180
		}
		if g.IsRef(i) {
			s.Va[i] = b.Va * math.Pi / 180
		}
	}
	set := make([]bool, n)
	for k, gi := range g.Gens {
		i := g.GenBus[k]
		if g.Types[i] == types.BusPQ || set[i] {
			continue
		}
		s.Vm[i] = g.Case.Generators[gi].Vg
		set[i] = true
	}
	s.V = polar(s.Vm, s.Va)
	s.Sbus = s.model.Sbus()
}

// canceled 检查调用方取消
func (s *solver) canceled() error {
	if err := s.ctx.Err(); err != nil {
		return &types.SolveError{Kind: types.KindCancelled, Iterations: s.iter, Residual: s.residual, Err: err}
	}
	return nil
}

// diverged 达到迭代上限
func (s *solver) diverged() error {
	return &types.SolveError{
		Kind:       types.KindDivergedMaxIterations,
		Iterations: s.iter,
		Residual:   s.residual,
		Detail:     "未在迭代上限内收敛",
	}
}

// singular 线性求解失败
func (s *solver) singular(err error, what string) error {
	if errors.Is(err, maths.ErrSingular) {
		return &types.SolveError{Kind: types.KindSingularSystem, Iterations: s.iter, Residual: s.residual, Detail: what, Err: err}
	}
	return err
}

// record 调试记录
func (s *solver) record(name string, step float64) {
	s.log.Debug("迭代", zap.Int("iter", s.iter), zap.Float64("residual", s.residual))
	if s.debug == nil || !s.debug.IsDebug() {
		return
	}
	s.debug.Update(types.Iteration{
		Solver:   name,
		Iter:     s.iter,
		Residual: s.residual,
		Step:     step,
		Vm:       append([]float64(nil), s.Vm...),
		Va:       append([]float64(nil), s.Va...),
	})
}

// mismatch F = [P(pv∪pq); Q(pq)]，S计算 - S给定
func (s *solver) mismatch(pvpq, pq []int) []float64 {
	sc := s.model.Injections(s.V)
	f := make([]float64, len(pvpq)+len(pq))
	for k, i := range pvpq {
		f[k] = real(sc[i] - s.Sbus[i])
	}
	for k, i := range pq {
		f[len(pvpq)+k] = imag(sc[i] - s.Sbus[i])
	}
	return f
}

func polar(vm, va []float64) []complex128 {
	v := make([]complex128, len(vm))
	for i := range v {
		sin, cos := math.Sincos(va[i])
		v[i] = complex(vm[i]*cos, vm[i]*sin)
	}
	return v
}
