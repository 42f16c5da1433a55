package opf

import (
	"math"

	"gridflow/graph"
	"gridflow/ipm"
	"gridflow/maths"
	"gridflow/types"
)

// layout 优化变量排列
// 交流 [Va Vm Pg Qg y]，直流 [Va Pg y]，直流时 vm、qg 为 -1。
type layout struct {
	nb, ng, ny int
	va, vm     int
	pg, qg     int
	y          int
	n          int
	pwl        []int // 分段线性成本机组(在 Graph.Gens 中的序号)
	ypos       []int // 机组 -> y 序号，非分段线性为 -1
}

func newLayout(g *graph.Graph, f types.Formulation) layout {
	l := layout{nb: g.N(), ng: len(g.Gens), vm: -1, qg: -1}
	l.ypos = make([]int, l.ng)
	for k, gi := range g.Gens {
		l.ypos[k] = -1
		if g.Case.Generators[gi].Cost.Model == types.CostPiecewiseLinear {
			l.ypos[k] = len(l.pwl)
			l.pwl = append(l.pwl, k)
		}
	}
	l.ny = len(l.pwl)
	next := l.nb
	if f == types.FormulationAC {
		l.vm = next
		next += l.nb
	}
	l.pg = next
	next += l.ng
	if f == types.FormulationAC {
		l.qg = next
		next += l.ng
	}
	l.y = next
	l.n = next + l.ny
	return l
}

// bounds 变量上下界与初值
// 参考母线相角固定；初值取边界中点，相角取参考角，y 取最大断点成本再加 10%。
func (l layout) bounds(g *graph.Graph) (xmin, xmax, x0 []float64) {
	c := g.Case
	base := c.BaseMVA
	xmin = maths.Fill(l.n, -ipm.Infinite)
	xmax = maths.Fill(l.n, ipm.Infinite)
	ref := make([]float64, len(g.Islands))
	for _, i := range g.Ref {
		ref[g.Island[i]] = g.Bus(i).Va * math.Pi / 180
	}
	for _, i := range g.Ref {
		xmin[l.va+i], xmax[l.va+i] = ref[g.Island[i]], ref[g.Island[i]]
	}
	if l.vm >= 0 {
		for i := 0; i < l.nb; i++ {
			b := g.Bus(i)
			xmin[l.vm+i], xmax[l.vm+i] = b.VMin, b.VMax
		}
	}
	for k, gi := range g.Gens {
		gen := &c.Generators[gi]
		xmin[l.pg+k], xmax[l.pg+k] = gen.PMin/base, gen.PMax/base
		if l.qg >= 0 {
			xmin[l.qg+k], xmax[l.qg+k] = gen.QMin/base, gen.QMax/base
		}
	}
	x0 = make([]float64, l.n)
	for k := range x0 {
		x0[k] = (xmin[k] + xmax[k]) / 2
	}
	for i := 0; i < l.nb; i++ {
		x0[l.va+i] = ref[g.Island[i]]
	}
	if l.ny > 0 {
		top := math.Inf(-1)
		for _, k := range l.pwl {
			pts := c.Generators[g.Gens[k]].Cost.Points
			top = math.Max(top, pts[len(pts)-1][1])
		}
		for j := 0; j < l.ny; j++ {
			x0[l.y+j] = top + 0.1*math.Abs(top)
		}
	}
	return xmin, xmax, x0
}

// pwlRows 分段线性成本的上镜图约束 m·base·Pg - y <= -b
func (l layout) pwlRows(g *graph.Graph) (rows [][]entry, upper []float64) {
	base := g.Case.BaseMVA
	for j, k := range l.pwl {
		cost := &g.Case.Generators[g.Gens[k]].Cost
		for s := 0; s < cost.Segments(); s++ {
			m, b := cost.Segment(s)
			rows = append(rows, []entry{{l.pg + k, m * base}, {l.y + j, -1}})
			upper = append(upper, -b)
		}
	}
	return rows, upper
}

// angleLimits 支路相角差约束 θf - θt ∈ [lo, hi]，交直流共用
type angleLimits struct {
	branch []int // 拓扑支路序号
	row    []int // 线性约束行号
}

func (a *angleLimits) add(g *graph.Graph, l layout, b *linear) {
	for k, li := range g.Branches {
		lo, hi, ok := g.Case.Branches[li].AngleLimits()
		if !ok {
			continue
		}
		lo, hi = math.Max(lo, -ipm.Infinite), math.Min(hi, ipm.Infinite)
		row := []entry{{l.va + g.From[k], 1}, {l.va + g.To[k], -1}}
		a.branch = append(a.branch, k)
		a.row = append(a.row, b.add(row, lo, hi))
	}
}

// commit 乘子换算为 $/h 每度
func (a *angleLimits) commit(g *graph.Graph, r *ipm.Result) {
	for j, k := range a.branch {
		br := &g.Case.Branches[g.Branches[k]]
		br.MuAngMin = r.LinLower[a.row[j]] * math.Pi / 180
		br.MuAngMax = r.LinUpper[a.row[j]] * math.Pi / 180
	}
}

type entry struct {
	col int
	val float64
}

// linear 组装线性约束
type linear struct {
	n    int
	l, u []float64
	rows [][]entry
}

func (b *linear) add(row []entry, lo, hi float64) int {
	b.rows = append(b.rows, row)
	b.l = append(b.l, lo)
	b.u = append(b.u, hi)
	return len(b.rows) - 1
}

func (b *linear) build() ipm.Linear {
	t := maths.NewTriplet[float64](len(b.rows), b.n, 2*len(b.rows))
	for r, row := range b.rows {
		for _, e := range row {
			t.Append(r, e.col, e.val)
		}
	}
	return ipm.Linear{A: t.ToCSR(), L: b.l, U: b.u}
}

// polyCost 多项式成本及其导数(变量为标幺出力)
func polyCost(g *graph.Graph, l layout, x []float64) (f float64, df []float64) {
	c := g.Case
	base := c.BaseMVA
	df = make([]float64, l.n)
	for k, gi := range g.Gens {
		if l.ypos[k] >= 0 {
			continue
		}
		cost := &c.Generators[gi].Cost
		p := x[l.pg+k] * base
		f += cost.Eval(p)
		df[l.pg+k] = cost.Derivative(p) * base
	}
	for j := 0; j < l.ny; j++ {
		f += x[l.y+j]
		df[l.y+j] = 1
	}
	return f, df
}

// polyHessian 成本二阶导，对角
func polyHessian(g *graph.Graph, l layout, x []float64, t *maths.Triplet[float64], scale float64) {
	c := g.Case
	base := c.BaseMVA
	for k, gi := range g.Gens {
		if l.ypos[k] >= 0 {
			continue
		}
		cost := &c.Generators[gi].Cost
		if d2 := cost.SecondDerivative(x[l.pg+k]*base) * base * base; d2 != 0 {
			t.Append(l.pg+k, l.pg+k, scale*d2)
		}
	}
}
