package opf

import (
	"context"
	"math"
	"math/cmplx"
	"testing"

	"gridflow/debug"
	"gridflow/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// meritCase 两母线直流调度: 母线1机组 10 $/MWh 上限 100 MW，母线2机组 30 $/MWh，负荷 150 MW 在母线2
func meritCase(rate float64) *types.Case {
	c := types.NewCase("merit")
	c.AddBus(types.Bus{ID: 1, Type: types.BusSlack})
	c.AddBus(types.Bus{ID: 2, Type: types.BusPV, Pd: 150})
	c.AddBranch(types.Branch{ID: 1, From: 1, To: 2, X: 0.1, RateA: rate, InService: true})
	c.AddGenerator(types.Generator{ID: 1, Bus: 1, PMax: 100, QMax: 100, QMin: -100, InService: true,
		Cost: types.CostCurve{Coeffs: []float64{10, 0}}})
	c.AddGenerator(types.Generator{ID: 2, Bus: 2, PMax: 200, QMax: 100, QMin: -100, InService: true,
		Cost: types.CostCurve{Coeffs: []float64{30, 0}}})
	return c
}

func dcOptions() types.OPFOptions {
	return types.OPFOptions{Formulation: types.FormulationDC}
}

// TestDCMeritOrder 便宜机组先满发
func TestDCMeritOrder(t *testing.T) {
	c := meritCase(0)
	res, err := Solve(context.Background(), c, dcOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, types.FormulationDC, res.Formulation)

	g1, g2 := &c.Generators[0], &c.Generators[1]
	assert.InDelta(t, 100, g1.Pg, 1e-3)
	assert.InDelta(t, 50, g2.Pg, 1e-3)
	assert.InDelta(t, 2500, res.Cost, 0.1)
	assert.InDelta(t, c.TotalCost(), res.Cost, 0.1)

	// 边际价格由昂贵机组决定
	assert.InDelta(t, 30, c.Buses[0].PLambda, 1e-3)
	assert.InDelta(t, 30, c.Buses[1].PLambda, 1e-3)
	assert.InDelta(t, 20, g1.MuPMax, 1e-3)
	assert.InDelta(t, 0, g2.MuPMax, 1e-3)

	assert.InDelta(t, 0, c.Buses[0].Va, 1e-9)
	assert.InDelta(t, -0.1*180/math.Pi, c.Buses[1].Va, 1e-4)
	assert.InDelta(t, 100, c.Branches[0].PFrom, 1e-3)
	assert.Equal(t, -c.Branches[0].PFrom, c.Branches[0].PTo)
	assert.Equal(t, 1.0, c.Buses[1].Vm)
}

// TestDCFlowLimit 支路容量约束使价格分离
func TestDCFlowLimit(t *testing.T) {
	c := meritCase(60)
	_, err := Solve(context.Background(), c, dcOptions())
	require.NoError(t, err)

	br := &c.Branches[0]
	assert.InDelta(t, 60, c.Generators[0].Pg, 1e-3)
	assert.InDelta(t, 90, c.Generators[1].Pg, 1e-3)
	assert.InDelta(t, 60, br.PFrom, 1e-3)
	assert.InDelta(t, 10, c.Buses[0].PLambda, 1e-3)
	assert.InDelta(t, 30, c.Buses[1].PLambda, 1e-3)
	assert.InDelta(t, 20, br.MuSFrom, 1e-3)
	assert.InDelta(t, 0, br.MuSTo, 1e-3)
	assert.InDelta(t, 0, c.Generators[0].MuPMax, 1e-3)
}

// TestDCPiecewiseLinear 分段线性成本: 20 $/MWh 至 100 MW，之后 40 $/MWh
func TestDCPiecewiseLinear(t *testing.T) {
	c := meritCase(0)
	c.Generators[1].Cost = types.CostCurve{
		Model:  types.CostPiecewiseLinear,
		Points: [][2]float64{{0, 0}, {100, 2000}, {200, 6000}},
	}
	res, err := Solve(context.Background(), c, dcOptions())
	require.NoError(t, err)
	assert.InDelta(t, 100, c.Generators[0].Pg, 1e-3)
	assert.InDelta(t, 50, c.Generators[1].Pg, 1e-3)
	assert.InDelta(t, 2000, res.Cost, 0.1)
	assert.InDelta(t, 20, c.Buses[1].PLambda, 1e-3)
	assert.InDelta(t, 10, c.Generators[0].MuPMax, 1e-3)
	require.Len(t, res.X, 5)
}

// TestDCInfeasible 机组容量小于负荷
func TestDCInfeasible(t *testing.T) {
	c := types.NewCase("short")
	c.AddBus(types.Bus{ID: 1, Type: types.BusSlack})
	c.AddBus(types.Bus{ID: 2, Type: types.BusPQ, Pd: 100})
	c.AddBranch(types.Branch{ID: 1, From: 1, To: 2, X: 0.1, InService: true})
	c.AddGenerator(types.Generator{ID: 1, Bus: 1, PMax: 50, InService: true,
		Cost: types.CostCurve{Coeffs: []float64{10, 0}}})
	before := c.Clone()

	opts := dcOptions()
	dbg := debug.NewRecord(nil)
	opts.Debug = dbg
	res, err := Solve(context.Background(), c, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInfeasible)
	assert.Len(t, dbg.Errors, 1)
	assert.NotErrorIs(t, err, types.ErrDivergedMaxIterations)
	assert.Equal(t, types.KindInfeasible, types.KindOf(err))
	require.NotNil(t, res)
	assert.NotEmpty(t, res.History)
	assert.Equal(t, before, c, "失败时算例不变")
}

// TestDCAngleLimit 相角差 3° 限制联络线送电
//
//	P12 = (θ1-θ2)/x = 0.05236/0.1 = 0.5236 标幺
func TestDCAngleLimit(t *testing.T) {
	c := meritCase(0)
	c.Branches[0].AngMax = 3
	_, err := Solve(context.Background(), c, dcOptions())
	require.NoError(t, err)

	br := &c.Branches[0]
	assert.InDelta(t, 52.3599, c.Generators[0].Pg, 1e-3)
	assert.InDelta(t, 97.6401, c.Generators[1].Pg, 1e-3)
	assert.InDelta(t, 3, c.Buses[0].Va-c.Buses[1].Va, 1e-4)
	assert.InDelta(t, 10, c.Buses[0].PLambda, 1e-3)
	assert.InDelta(t, 30, c.Buses[1].PLambda, 1e-3)
	// 20 $/MWh 价差 × (base/x) MW/rad，换算为每度
	assert.InDelta(t, 20*1000*math.Pi/180, br.MuAngMax, 0.05)
	assert.InDelta(t, 0, br.MuAngMin, 1e-3)
	assert.Equal(t, 0.0, br.MuSFrom, "无容量限制")

	// 再次求解时不受限的乘子被清零
	c.Branches[0].AngMax = 0
	_, err = Solve(context.Background(), c, dcOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Branches[0].MuAngMax)
	assert.InDelta(t, 100, c.Generators[0].Pg, 1e-3)
}

// TestDCMaxIterations 迭代上限内未收敛一律报告达到上限，不误判为不可行
func TestDCMaxIterations(t *testing.T) {
	for limit := 1; limit <= 5; limit++ {
		c := meritCase(60)
		before := c.Clone()
		opts := dcOptions()
		opts.MaxIterations = limit
		res, err := Solve(context.Background(), c, opts)
		require.Error(t, err, "limit=%d", limit)
		assert.Equal(t, types.KindDivergedMaxIterations, types.KindOf(err), "limit=%d", limit)
		assert.NotErrorIs(t, err, types.ErrInfeasible, "limit=%d", limit)
		assert.Equal(t, limit, res.Iterations)
		assert.Equal(t, before, c)
	}
}

// acCase 两母线交流最优潮流
func acCase(rate float64) *types.Case {
	c := types.NewCase("ac")
	c.AddBus(types.Bus{ID: 1, Type: types.BusSlack, VMin: 0.95, VMax: 1.05})
	c.AddBus(types.Bus{ID: 2, Type: types.BusPV, Pd: 100, Qd: 50, VMin: 0.95, VMax: 1.05})
	c.AddBranch(types.Branch{ID: 1, From: 1, To: 2, R: 0.01, X: 0.1, B: 0.02, RateA: rate, InService: true})
	c.AddGenerator(types.Generator{ID: 1, Bus: 1, PMax: 200, QMax: 100, QMin: -100, InService: true,
		Cost: types.CostCurve{Coeffs: []float64{0.01, 10, 0}}})
	c.AddGenerator(types.Generator{ID: 2, Bus: 2, PMax: 200, QMax: 100, QMin: -100, InService: true,
		Cost: types.CostCurve{Coeffs: []float64{0.02, 20, 0}}})
	return c
}

func TestACOPF(t *testing.T) {
	c := acCase(0)
	dbg := debug.NewRecord(nil)
	res, err := Solve(context.Background(), c, types.OPFOptions{Debug: dbg})
	require.NoError(t, err)
	assert.Equal(t, types.FormulationAC, res.Formulation)
	assert.Equal(t, res.Iterations, dbg.Len())
	assert.Contains(t, dbg.ExtraKeys(), "feas")

	g1, g2 := &c.Generators[0], &c.Generators[1]
	assert.InDelta(t, 100.924, g1.Pg, 0.01)
	assert.InDelta(t, 0, g2.Pg, 0.01)
	assert.Greater(t, g1.Pg, g2.Pg, "便宜机组出力更多")
	assert.InDelta(t, 1111.09, res.Cost, 0.05)
	assert.InDelta(t, 1.05, c.Buses[0].Vm, 1e-4)
	assert.InDelta(t, 1.0448, c.Buses[1].Vm, 1e-3)
	assert.InDelta(t, 12.018, c.Buses[0].PLambda, 0.01)
	assert.Greater(t, c.Buses[0].MuVMax, 0.0)
	assert.InDelta(t, 0, c.Buses[0].Va, 1e-9)

	// 写回的电压满足潮流方程
	br := &c.Branches[0]
	assert.InDelta(t, g1.Pg, br.PFrom, 1e-3)
	assert.InDelta(t, g2.Pg-100, br.PTo, 1e-3)
	assert.InDelta(t, g2.Qg-50, br.QTo, 1e-3)
	assert.Greater(t, br.PLosses(), 0.0)
}

// TestACOPFFlowLimit 容量 60 MVA 约束生效
func TestACOPFFlowLimit(t *testing.T) {
	c := acCase(60)
	res, err := Solve(context.Background(), c, types.OPFOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 60, c.Generators[0].Pg, 0.01)
	assert.InDelta(t, 40.33, c.Generators[1].Pg, 0.01)
	assert.InDelta(t, 1475.06, res.Cost, 0.05)

	br := &c.Branches[0]
	sf := cmplx.Abs(complex(br.PFrom, br.QFrom))
	assert.LessOrEqual(t, sf, 60+1e-3)
	assert.Greater(t, br.MuSFrom, 1.0)
	assert.Less(t, c.Buses[0].PLambda, c.Buses[1].PLambda)
}

// TestACOPFAngleLimit 无约束时相角差约 5°，限制为 3° 后昂贵机组承担部分负荷
func TestACOPFAngleLimit(t *testing.T) {
	c := acCase(0)
	c.Branches[0].AngMax = 3
	res, err := Solve(context.Background(), c, types.OPFOptions{})
	require.NoError(t, err)
	assert.LessOrEqual(t, c.Buses[0].Va-c.Buses[1].Va, 3+1e-3)
	assert.Greater(t, c.Branches[0].MuAngMax, 0.0)
	assert.Greater(t, c.Generators[1].Pg, 1.0)
	assert.Greater(t, res.Cost, 1111.09)
}

// TestOPFRepeatable 同一输入重复求解结果一致
func TestOPFRepeatable(t *testing.T) {
	a, b := acCase(60), acCase(60)
	ra, err := Solve(context.Background(), a, types.OPFOptions{})
	require.NoError(t, err)
	rb, err := Solve(context.Background(), b, types.OPFOptions{})
	require.NoError(t, err)
	assert.Equal(t, ra.Iterations, rb.Iterations)
	assert.InDeltaSlice(t, ra.X, rb.X, 1e-12)
	assert.NotEqual(t, ra.RunID, rb.RunID)
}

func TestOPFCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := acCase(0)
	before := c.Clone()
	_, err := Solve(ctx, c, types.OPFOptions{})
	require.ErrorIs(t, err, types.ErrCancelled)
	assert.Equal(t, before, c)
}

func TestOPFInvalid(t *testing.T) {
	c := acCase(0)
	c.Branches[0].R, c.Branches[0].X = 0, 0
	_, err := Solve(context.Background(), c, types.OPFOptions{})
	require.ErrorIs(t, err, types.ErrDegenerateBranch)

	c = acCase(0)
	c.Generators[0].PMin = 300
	_, err = Solve(context.Background(), c, dcOptions())
	require.ErrorIs(t, err, types.ErrInvalidCase)

	_, err = Solve(context.Background(), acCase(0), types.OPFOptions{Formulation: types.Formulation(7)})
	require.ErrorIs(t, err, types.ErrInvalidCase)
}

// TestOPFMaxIterations 迭代上限过小
func TestOPFMaxIterations(t *testing.T) {
	c := acCase(0)
	_, err := Solve(context.Background(), c, types.OPFOptions{MaxIterations: 2})
	require.ErrorIs(t, err, types.ErrDivergedMaxIterations)
	assert.Equal(t, types.KindDivergedMaxIterations, types.KindOf(err))
	assert.NotErrorIs(t, err, types.ErrInfeasible)
	assert.Equal(t, 0.0, c.Generators[0].Pg)
}
