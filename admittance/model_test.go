package admittance

import (
	"math"
	"math/cmplx"
	"testing"

	"gridflow/graph"
	"gridflow/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeBus 三母线环网，支路3为带移相的变压器
func threeBus() *types.Case {
	c := types.NewCase("three")
	c.AddBus(types.Bus{ID: 1, Type: types.BusSlack})
	c.AddBus(types.Bus{ID: 2, Type: types.BusPV, Pd: 20})
	c.AddBus(types.Bus{ID: 3, Type: types.BusPQ, Pd: 100, Qd: 30, Gs: 2, Bs: 10})
	c.AddBranch(types.Branch{ID: 1, From: 1, To: 2, R: 0.01, X: 0.1, B: 0.02, InService: true})
	c.AddBranch(types.Branch{ID: 2, From: 2, To: 3, R: 0.02, X: 0.2, B: 0.04, InService: true})
	c.AddBranch(types.Branch{ID: 3, From: 1, To: 3, R: 0.005, X: 0.08, Ratio: 0.98, Shift: 3, InService: true})
	c.AddBranch(types.Branch{ID: 4, From: 1, To: 3, R: 0.005, X: 0.08, InService: false})
	c.AddGenerator(types.Generator{ID: 1, Bus: 1, PMax: 300, QMax: 100, QMin: -100, InService: true})
	c.AddGenerator(types.Generator{ID: 2, Bus: 2, Pg: 60, PMax: 100, QMax: 50, QMin: -50, Vg: 1.01, InService: true})
	return c
}

func build(t *testing.T, c *types.Case) (*graph.Graph, *Model) {
	t.Helper()
	g, err := graph.NewGraph(c)
	require.NoError(t, err)
	m, err := Build(g)
	require.NoError(t, err)
	return g, m
}

// TestTwoBusPi 单条线路的π模型
func TestTwoBusPi(t *testing.T) {
	c := types.NewCase("two")
	c.AddBus(types.Bus{ID: 1, Type: types.BusSlack})
	c.AddBus(types.Bus{ID: 2, Type: types.BusPQ, Bs: 5})
	c.AddBranch(types.Branch{ID: 7, From: 1, To: 2, R: 0.01, X: 0.1, B: 0.02, InService: true})
	_, m := build(t, c)

	ys := 1 / complex(0.01, 0.1)
	want := [][]complex128{
		{ys + 0.01i, -ys},
		{-ys, ys + 0.01i + 0.05i},
	}
	d := m.Dense()
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if cmplx.Abs(d.At(i, j)-want[i][j]) > 1e-12 {
				t.Errorf("Y[%d][%d] 错误, 得到 %v, 希望 %v", i, j, d.At(i, j), want[i][j])
			}
		}
	}
	assert.Equal(t, 1.0, m.Cf.Get(0, 0))
	assert.Equal(t, 1.0, m.Ct.Get(0, 1))
}

// TestTransformerPi 变比与移相
func TestTransformerPi(t *testing.T) {
	br := types.Branch{R: 0.005, X: 0.08, B: 0.01, Ratio: 0.98, Shift: 3}
	pi, err := NewPiModel(&br)
	require.NoError(t, err)
	tap := cmplx.Rect(0.98, 3*math.Pi/180)
	ys := 1 / complex(0.005, 0.08)
	assert.InDelta(t, 0, cmplx.Abs(pi.Ytt-(ys+0.005i)), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(pi.Yff-(ys+0.005i)/complex(0.98*0.98, 0)), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(pi.Yft-(-ys/cmplx.Conj(tap))), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(pi.Ytf-(-ys/tap)), 1e-12)
	// 移相使导纳矩阵不对称
	assert.Greater(t, cmplx.Abs(pi.Yft-pi.Ytf), 1e-3)
}

func TestDegenerateBranch(t *testing.T) {
	c := threeBus()
	c.Branches[1].R, c.Branches[1].X = 0, 0
	g, err := graph.NewGraph(c)
	require.NoError(t, err)
	_, err = Build(g)
	require.ErrorIs(t, err, types.ErrDegenerateBranch)

	// 停运支路不参与
	c = threeBus()
	c.Branches[3].R, c.Branches[3].X = 0, 0
	_, _ = build(t, c)
}

// TestOutOfServiceIgnored 停运支路对Y无贡献
func TestOutOfServiceIgnored(t *testing.T) {
	c := threeBus()
	_, m := build(t, c)
	c.Branches = c.Branches[:3]
	_, m2 := build(t, c)
	d, d2 := m.Dense(), m2.Dense()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, d2.At(i, j), d.At(i, j))
		}
	}
	assert.Equal(t, 3, m.Yf.Rows())
}

// TestInjectionsMatchFlows 母线注入等于所连支路首末端功率与并联支路之和
func TestInjectionsMatchFlows(t *testing.T) {
	c := threeBus()
	g, m := build(t, c)
	v := []complex128{cmplx.Rect(1.02, 0), cmplx.Rect(1.01, -0.02), cmplx.Rect(0.97, -0.06)}
	s := m.Injections(v)
	sf, st := m.Flows(v)
	sum := make([]complex128, g.N())
	for k := range g.Branches {
		sum[g.From[k]] += sf[k]
		sum[g.To[k]] += st[k]
	}
	for i := 0; i < g.N(); i++ {
		b := g.Bus(i)
		vm := cmplx.Abs(v[i])
		sum[i] += complex(b.Gs, -b.Bs) / complex(c.BaseMVA, 0) * complex(vm*vm, 0)
		if cmplx.Abs(sum[i]-s[i]) > 1e-12 {
			t.Errorf("母线 %d 注入不平衡: %v != %v", b.ID, s[i], sum[i])
		}
	}
}

func TestSbus(t *testing.T) {
	c := threeBus()
	_, m := build(t, c)
	s := m.Sbus()
	assert.InDelta(t, 0.4, real(s[1]), 1e-12)
	assert.InDelta(t, -1.0, real(s[2]), 1e-12)
	assert.InDelta(t, -0.3, imag(s[2]), 1e-12)
}

// TestDCModel B矩阵与移相注入
func TestDCModel(t *testing.T) {
	c := threeBus()
	g, err := graph.NewGraph(c)
	require.NoError(t, err)
	m, err := BuildDC(g)
	require.NoError(t, err)

	b1, b2, b3 := 1/0.1, 1/0.2, 1/(0.08*0.98)
	want := [][]float64{
		{b1 + b3, -b1, -b3},
		{-b1, b1 + b2, -b2},
		{-b3, -b2, b2 + b3},
	}
	for i := range want {
		for j := range want[i] {
			assert.InDelta(t, want[i][j], m.B.Get(i, j), 1e-12, "B[%d][%d]", i, j)
		}
	}
	shift := 3 * math.Pi / 180
	assert.InDelta(t, -b3*shift, m.Pfinj[2], 1e-12)
	assert.InDelta(t, -b3*shift, m.Pbusinj[0], 1e-12)
	assert.InDelta(t, b3*shift, m.Pbusinj[2], 1e-12)
	assert.InDelta(t, 0, m.Pbusinj[1], 1e-12)

	theta := []float64{0, -0.01, -0.05}
	pf := m.Flows(theta)
	assert.InDelta(t, b1*0.01, pf[0], 1e-12)
	assert.InDelta(t, b3*0.05-b3*shift, pf[2], 1e-12)

	c.Branches[0].X = 0
	g, err = graph.NewGraph(c)
	require.NoError(t, err)
	_, err = BuildDC(g)
	require.ErrorIs(t, err, types.ErrDegenerateBranch)
}
