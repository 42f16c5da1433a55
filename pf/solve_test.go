package pf

import (
	"context"
	"math"
	"math/cmplx"
	"testing"

	"gridflow/admittance"
	"gridflow/debug"
	"gridflow/graph"
	"gridflow/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// twoBus 无损单线: 平衡节点 1.0∠0，PQ 节点负荷 50 MW
//
//	P2 = 10·V2·sinθ2 = -0.5，Q2 = 10·V2² - 10·V2·cosθ2 = 0
//	=> V2 = cosθ2，sin2θ2 = -0.1
func twoBus() *types.Case {
	c := types.NewCase("two")
	c.AddBus(types.Bus{ID: 1, Type: types.BusSlack})
	c.AddBus(types.Bus{ID: 2, Type: types.BusPQ, Pd: 50})
	c.AddBranch(types.Branch{ID: 1, From: 1, To: 2, X: 0.1, InService: true})
	c.AddGenerator(types.Generator{ID: 1, Bus: 1, PMax: 200, QMax: 100, QMin: -100, InService: true})
	return c
}

// threeBus 三母线环网，平衡节点两台机组
func threeBus() *types.Case {
	c := types.NewCase("three")
	c.AddBus(types.Bus{ID: 1, Type: types.BusSlack})
	c.AddBus(types.Bus{ID: 2, Type: types.BusPV, Pd: 20})
	c.AddBus(types.Bus{ID: 3, Type: types.BusPQ, Pd: 100, Qd: 30, Gs: 2, Bs: 10})
	c.AddBranch(types.Branch{ID: 1, From: 1, To: 2, R: 0.01, X: 0.1, B: 0.02, InService: true})
	c.AddBranch(types.Branch{ID: 2, From: 2, To: 3, R: 0.02, X: 0.2, B: 0.04, InService: true})
	c.AddBranch(types.Branch{ID: 3, From: 1, To: 3, R: 0.005, X: 0.08, Ratio: 0.98, Shift: 3, InService: true})
	c.AddGenerator(types.Generator{ID: 1, Bus: 1, Pg: 0, PMax: 300, QMax: 100, QMin: -100, InService: true})
	c.AddGenerator(types.Generator{ID: 2, Bus: 2, Pg: 60, PMax: 100, QMax: 50, QMin: -50, Vg: 1.01, InService: true})
	c.AddGenerator(types.Generator{ID: 3, Bus: 1, Pg: 10, PMax: 50, QMax: 50, QMin: -50, InService: true})
	return c
}

// maxMismatch 以写回后的算例重新计算母线功率不平衡(标幺)
func maxMismatch(t *testing.T, c *types.Case) float64 {
	t.Helper()
	g, err := graph.NewGraph(c)
	require.NoError(t, err)
	m, err := admittance.Build(g)
	require.NoError(t, err)
	v := make([]complex128, g.N())
	for i := range v {
		v[i] = g.Bus(i).Voltage()
	}
	s, want := m.Injections(v), m.Sbus()
	var worst float64
	for i := range s {
		worst = math.Max(worst, cmplx.Abs(s[i]-want[i]))
	}
	return worst
}

func TestNewtonTwoBusClosedForm(t *testing.T) {
	c := twoBus()
	res, err := Solve(context.Background(), c, types.NewtonRaphson, types.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Residual, types.Tolerance)

	theta := -math.Asin(0.1) / 2
	b := &c.Buses[1]
	assert.InDelta(t, math.Cos(theta), b.Vm, 1e-6, "电压幅值")
	assert.InDelta(t, theta*180/math.Pi, b.Va, 1e-6, "电压相角")
	assert.InDelta(t, 1.0, c.Buses[0].Vm, 1e-12)

	// 无损线路: 平衡机出力等于负荷
	assert.InDelta(t, 50, c.Generators[0].Pg, 1e-5)
	assert.InDelta(t, 50, c.Branches[0].PFrom, 1e-5)
	assert.InDelta(t, -50, c.Branches[0].PTo, 1e-5)
	assert.InDelta(t, 0, c.Branches[0].PLosses(), 1e-5)
}

func TestGaussSeidelTwoBus(t *testing.T) {
	c := twoBus()
	res, err := Solve(context.Background(), c, types.GaussSeidel, types.Options{})
	require.NoError(t, err)
	assert.Greater(t, res.Iterations, 1)

	theta := -math.Asin(0.1) / 2
	assert.InDelta(t, math.Cos(theta), c.Buses[1].Vm, 1e-6)
	assert.InDelta(t, theta*180/math.Pi, c.Buses[1].Va, 1e-6)
}

// TestPowerBalance 机组有功 = 负荷 + 支路损耗 + 并联电导消耗
func TestPowerBalance(t *testing.T) {
	for _, method := range []types.Method{types.NewtonRaphson, types.GaussSeidel} {
		c := threeBus()
		_, err := Solve(context.Background(), c, method, types.Options{})
		require.NoError(t, err, method.String())

		var gen, load, losses, shunt float64
		for i := range c.Generators {
			gen += c.Generators[i].Pg
		}
		for i := range c.Buses {
			b := &c.Buses[i]
			load += b.Pd
			shunt += b.Gs * b.Vm * b.Vm
		}
		for i := range c.Branches {
			losses += c.Branches[i].PLosses()
		}
		assert.Greater(t, losses, 0.0)
		assert.InDelta(t, gen, load+losses+shunt, 1e-5, method.String())
		assert.Less(t, maxMismatch(t, c), 1e-6, method.String())

		// PV 节点电压保持设定值
		assert.InDelta(t, 1.01, c.Buses[1].Vm, 1e-9)
		// 平衡节点第二台机组有功不变，无功按范围比例分配
		g1, g3 := &c.Generators[0], &c.Generators[2]
		assert.Equal(t, 10.0, g3.Pg)
		assert.InDelta(t, (g1.Qg-g1.QMin)/(g1.QMax-g1.QMin), (g3.Qg-g3.QMin)/(g3.QMax-g3.QMin), 1e-9)
	}
}

// TestDCMatchesLosslessAC 无损且电压为 1.0 时直流相角与交流一致
func TestDCMatchesLosslessAC(t *testing.T) {
	lossless := func() *types.Case {
		c := types.NewCase("lossless")
		c.AddBus(types.Bus{ID: 1, Type: types.BusSlack})
		c.AddBus(types.Bus{ID: 2, Type: types.BusPV})
		c.AddBus(types.Bus{ID: 3, Type: types.BusPV, Pd: 100})
		c.AddBranch(types.Branch{ID: 1, From: 1, To: 2, X: 0.1, InService: true})
		c.AddBranch(types.Branch{ID: 2, From: 2, To: 3, X: 0.2, InService: true})
		c.AddBranch(types.Branch{ID: 3, From: 1, To: 3, X: 0.08, InService: true})
		c.AddGenerator(types.Generator{ID: 1, Bus: 1, PMax: 300, InService: true})
		c.AddGenerator(types.Generator{ID: 2, Bus: 2, Pg: 50, PMax: 100, InService: true})
		c.AddGenerator(types.Generator{ID: 3, Bus: 3, PMax: 100, InService: true})
		return c
	}
	ac, dc := lossless(), lossless()
	_, err := Solve(context.Background(), ac, types.NewtonRaphson, types.Options{})
	require.NoError(t, err)
	res, err := Solve(context.Background(), dc, types.DCPowerFlow, types.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Iterations)

	// B·θ = P 的精确解
	assert.InDelta(t, 0.015789473684210527*180/math.Pi, dc.Buses[1].Va, 1e-9)
	assert.InDelta(t, -0.05263157894736842*180/math.Pi, dc.Buses[2].Va, 1e-9)
	for i := range ac.Buses {
		assert.InDelta(t, ac.Buses[i].Va, dc.Buses[i].Va, 0.01, "母线 %d 相角(度)", ac.Buses[i].ID)
		assert.Equal(t, 1.0, dc.Buses[i].Vm)
	}
	assert.InDelta(t, 50, dc.Generators[0].Pg, 1e-9)
	assert.InDelta(t, ac.Generators[0].Pg, dc.Generators[0].Pg, 1e-4)
	for i := range dc.Branches {
		br := &dc.Branches[i]
		assert.Equal(t, -br.PFrom, br.PTo)
		assert.Equal(t, 0.0, br.QFrom)
	}
}

// TestWarmStartIdempotent 已收敛算例热启动至多迭代一次
func TestWarmStartIdempotent(t *testing.T) {
	c := threeBus()
	first, err := Solve(context.Background(), c, types.NewtonRaphson, types.Options{})
	require.NoError(t, err)
	assert.Greater(t, first.Iterations, 1)
	vm := c.Buses[2].Vm

	second, err := Solve(context.Background(), c, types.NewtonRaphson, types.Options{WarmStart: true})
	require.NoError(t, err)
	assert.LessOrEqual(t, second.Iterations, 1)
	assert.InDelta(t, vm, c.Buses[2].Vm, 1e-9)

	// 平启动仍需完整迭代
	third, err := Solve(context.Background(), c, types.NewtonRaphson, types.Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Iterations, third.Iterations)
}

// TestDegenerateBranch 零阻抗支路在迭代前失败，算例不变
func TestDegenerateBranch(t *testing.T) {
	for _, method := range []types.Method{types.NewtonRaphson, types.GaussSeidel, types.DCPowerFlow} {
		c := threeBus()
		c.Branches[1].R, c.Branches[1].X = 0, 0
		before := c.Clone()
		dbg := debug.NewRecord(nil)
		_, err := Solve(context.Background(), c, method, types.Options{Debug: dbg})
		require.ErrorIs(t, err, types.ErrDegenerateBranch, method.String())
		assert.Equal(t, types.KindDegenerateBranch, types.KindOf(err))
		assert.Equal(t, 0, dbg.Len(), "不应开始迭代")
		assert.Equal(t, before, c)
	}
}

// TestSingularSystem 两条电抗相反的并联支路使节点导纳为零
// 三种算法都应报告奇异且不改动算例
func TestSingularSystem(t *testing.T) {
	for _, method := range []types.Method{types.NewtonRaphson, types.GaussSeidel, types.DCPowerFlow} {
		c := twoBus()
		c.AddBranch(types.Branch{ID: 2, From: 1, To: 2, X: -0.1, InService: true})
		before := c.Clone()
		dbg := debug.NewRecord(nil)
		_, err := Solve(context.Background(), c, method, types.Options{Debug: dbg})
		require.ErrorIs(t, err, types.ErrSingularSystem, method.String())
		assert.Equal(t, types.KindSingularSystem, types.KindOf(err), method.String())
		assert.NotErrorIs(t, err, types.ErrDivergedMaxIterations, method.String())
		assert.Len(t, dbg.Errors, 1, "失败应写入调试记录")
		assert.Equal(t, before, c, method.String())
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, method := range []types.Method{types.NewtonRaphson, types.GaussSeidel, types.DCPowerFlow} {
		c := threeBus()
		before := c.Clone()
		_, err := Solve(ctx, c, method, types.Options{})
		require.ErrorIs(t, err, types.ErrCancelled, method.String())
		assert.Equal(t, before, c)
	}
}

func TestDivergedMaxIterations(t *testing.T) {
	c := threeBus()
	before := c.Clone()
	res, err := Solve(context.Background(), c, types.NewtonRaphson, types.Options{MaxIterations: 1})
	require.ErrorIs(t, err, types.ErrDivergedMaxIterations)
	assert.Equal(t, 1, res.Iterations)
	assert.Greater(t, res.Residual, types.Tolerance)
	assert.Equal(t, before, c)
}

func TestInvalidCase(t *testing.T) {
	// 第二个连通分量缺少平衡节点
	c := twoBus()
	c.AddBus(types.Bus{ID: 3, Type: types.BusPQ, Pd: 10})
	c.AddBus(types.Bus{ID: 4, Type: types.BusPQ})
	c.AddBranch(types.Branch{ID: 2, From: 3, To: 4, X: 0.1, InService: true})
	_, err := Solve(context.Background(), c, types.NewtonRaphson, types.Options{})
	require.ErrorIs(t, err, types.ErrInvalidCase)

	// 悬空母线引用
	c = twoBus()
	c.AddBranch(types.Branch{ID: 9, From: 1, To: 42, X: 0.1, InService: true})
	_, err = Solve(context.Background(), c, types.DCPowerFlow, types.Options{})
	require.ErrorIs(t, err, types.ErrInvalidCase)

	_, err = Solve(context.Background(), twoBus(), types.Method(99), types.Options{})
	require.ErrorIs(t, err, types.ErrInvalidCase)
}

// TestWarnings 越限与孤立母线告警随成功结果返回
func TestWarnings(t *testing.T) {
	c := threeBus()
	c.Buses[2].VMin, c.Buses[2].VMax = 0.4, 0.5
	c.AddBus(types.Bus{ID: 9, Type: types.BusPQ, Pd: 5})
	res, err := Solve(context.Background(), c, types.NewtonRaphson, types.Options{})
	require.NoError(t, err)

	kinds := map[types.WarningKind][]int{}
	for _, w := range res.Warnings {
		kinds[w.Kind] = append(kinds[w.Kind], w.Subject)
	}
	assert.Equal(t, []int{3}, kinds[types.WarnVoltageLimit])
	assert.Equal(t, []int{9}, kinds[types.WarnIsolatedBus])
	// 孤立母线保持原值
	assert.Equal(t, 1.0, c.Buses[3].Vm)
	assert.Equal(t, 0.0, c.Buses[3].Va)
}

// TestDebugRecord 每次迭代写入调试记录
func TestDebugRecord(t *testing.T) {
	c := threeBus()
	dbg := debug.NewRecord(nil)
	res, err := Solve(context.Background(), c, types.NewtonRaphson, types.Options{Debug: dbg})
	require.NoError(t, err)
	require.Equal(t, res.Iterations+1, dbg.Len())
	assert.Less(t, dbg.Residual[dbg.Len()-1], types.Tolerance)
	assert.Equal(t, []string{"newton"}, keys(dbg.Series()))
	vm, _ := dbg.LastVoltage()
	assert.Len(t, vm, 3)

	dbg.SetDebug(false)
	dbg.Reset()
	_, err = Solve(context.Background(), c, types.NewtonRaphson, types.Options{Debug: dbg})
	require.NoError(t, err)
	assert.Equal(t, 0, dbg.Len())
}

func keys(m map[string][]int) []string {
	list := make([]string, 0, len(m))
	for k := range m {
		list = append(list, k)
	}
	return list
}
