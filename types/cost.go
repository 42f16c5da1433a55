package types

import "fmt"

// CostModel 成本模型
type CostModel uint8

const (
	CostPolynomial      CostModel = iota // 多项式
	CostPiecewiseLinear                  // 分段线性
)

// MarshalText 文本编码
func (m CostModel) MarshalText() ([]byte, error) {
	if m == CostPiecewiseLinear {
		return []byte("pwl"), nil
	}
	return []byte("poly"), nil
}

// UnmarshalText 文本解码
func (m *CostModel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "poly", "polynomial", "":
		*m = CostPolynomial
	case "pwl", "piecewise":
		*m = CostPiecewiseLinear
	default:
		return fmt.Errorf("未知成本模型: %s", b)
	}
	return nil
}

// CostCurve 发电成本曲线
// 多项式系数按最高次在前、常数项在后排列，单位为 MW 与 $/h。
// 分段线性为 (MW, $/h) 断点序列，MW 严格递增。
type CostCurve struct {
	Model    CostModel    `yaml:"model"`
	StartUp  float64      `yaml:"startup,omitempty"`
	ShutDown float64      `yaml:"shutdown,omitempty"`
	Coeffs   []float64    `yaml:"coeffs,omitempty"`
	Points   [][2]float64 `yaml:"points,omitempty"`
}

// Clone 拷贝
func (cc CostCurve) Clone() CostCurve {
	cc.Coeffs = append([]float64(nil), cc.Coeffs...)
	cc.Points = append([][2]float64(nil), cc.Points...)
	return cc
}

// Eval 计算成本($/h)
func (cc *CostCurve) Eval(p float64) float64 {
	if cc.Model == CostPiecewiseLinear {
		return cc.evalPWL(p)
	}
	var v float64
	for _, c := range cc.Coeffs {
		v = v*p + c
	}
	return v
}

// Derivative 边际成本
func (cc *CostCurve) Derivative(p float64) float64 {
	if cc.Model == CostPiecewiseLinear {
		k := cc.segment(p)
		if k < 0 {
			return 0
		}
		return cc.slope(k)
	}
	n := len(cc.Coeffs) - 1
	var v float64
	for i, c := range cc.Coeffs[:max(n, 0)] {
		v = v*p + c*float64(n-i)
	}
	return v
}

// SecondDerivative 二阶导数
func (cc *CostCurve) SecondDerivative(p float64) float64 {
	if cc.Model == CostPiecewiseLinear {
		return 0
	}
	n := len(cc.Coeffs) - 1
	var v float64
	for i := 0; i < n-1; i++ {
		d := float64(n - i)
		v = v*p + cc.Coeffs[i]*d*(d-1)
	}
	return v
}

// Segments 分段数量
func (cc *CostCurve) Segments() int { return max(len(cc.Points)-1, 0) }

// Segment 第k段的斜率与截距: c = m*p + b
func (cc *CostCurve) Segment(k int) (m, b float64) {
	m = cc.slope(k)
	return m, cc.Points[k][1] - m*cc.Points[k][0]
}

func (cc *CostCurve) slope(k int) float64 {
	p0, p1 := cc.Points[k], cc.Points[k+1]
	return (p1[1] - p0[1]) / (p1[0] - p0[0])
}

func (cc *CostCurve) segment(p float64) int {
	n := cc.Segments()
	if n == 0 {
		return -1
	}
	for k := 0; k < n-1; k++ {
		if p < cc.Points[k+1][0] {
			return k
		}
	}
	return n - 1
}

func (cc *CostCurve) evalPWL(p float64) float64 {
	switch k := cc.segment(p); {
	case k < 0 && len(cc.Points) == 1:
		return cc.Points[0][1]
	case k < 0:
		return 0
	default:
		m, b := cc.Segment(k)
		return m*p + b
	}
}

// Validate 检查
func (cc *CostCurve) Validate() error {
	if cc.Model != CostPiecewiseLinear {
		return nil
	}
	if len(cc.Points) < 2 {
		return fmt.Errorf("分段线性成本至少需要两个断点")
	}
	for k := 1; k < len(cc.Points); k++ {
		if cc.Points[k][0] <= cc.Points[k-1][0] {
			return fmt.Errorf("分段线性断点必须递增: %v", cc.Points)
		}
	}
	return nil
}

// PolyToPWL 多项式成本在 [pmin,pmax] 上等距线性化为 n 段
func (cc *CostCurve) PolyToPWL(pmin, pmax float64, n int) CostCurve {
	if cc.Model == CostPiecewiseLinear {
		return cc.Clone()
	}
	if n < 1 {
		n = 1
	}
	lo := pmin
	if lo < 0 {
		lo = 0
	}
	pwl := CostCurve{Model: CostPiecewiseLinear, StartUp: cc.StartUp, ShutDown: cc.ShutDown}
	if pmax <= lo {
		pwl.Points = [][2]float64{{lo, cc.Eval(lo)}, {lo + 1, cc.Eval(lo + 1)}}
		return pwl
	}
	step := (pmax - lo) / float64(n)
	for i := 0; i <= n; i++ {
		p := lo + step*float64(i)
		if i == n {
			p = pmax
		}
		pwl.Points = append(pwl.Points, [2]float64{p, cc.Eval(p)})
	}
	return pwl
}

// TotalCost 在线机组总成本($/h)
func (c *Case) TotalCost() float64 {
	var total float64
	for i := range c.Generators {
		g := &c.Generators[i]
		if g.InService {
			total += g.Cost.Eval(g.Pg)
		}
	}
	return total
}
