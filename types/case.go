package types

import (
	"fmt"
	"math"
	"math/cmplx"
)

// BusIndex 母线句柄
type BusIndex = int

// BranchIndex 支路句柄
type BranchIndex = int

// GenIndex 发电机句柄
type GenIndex = int

// BusType 母线类型
type BusType uint8

const (
	BusPQ       BusType = iota + 1 // 负荷节点
	BusPV                          // 电压控制节点
	BusSlack                       // 平衡节点
	BusIsolated                    // 孤立节点
)

// String 类型名称
func (t BusType) String() string {
	switch t {
	case BusPQ:
		return "PQ"
	case BusPV:
		return "PV"
	case BusSlack:
		return "Slack"
	case BusIsolated:
		return "Isolated"
	}
	return fmt.Sprintf("BusType(%d)", t)
}

// MarshalText 文本编码
func (t BusType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText 文本解码
func (t *BusType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "PQ", "pq":
		*t = BusPQ
	case "PV", "pv":
		*t = BusPV
	case "Slack", "slack", "ref", "REF":
		*t = BusSlack
	case "Isolated", "isolated":
		*t = BusIsolated
	default:
		return fmt.Errorf("未知母线类型: %s", b)
	}
	return nil
}

// Bus 母线
type Bus struct {
	ID     int     `yaml:"id"`
	Name   string  `yaml:"name,omitempty"`
	Type   BusType `yaml:"type"`
	Vm     float64 `yaml:"vm"`              // 电压幅值(标幺)
	Va     float64 `yaml:"va"`              // 电压相角(度)
	BaseKV float64 `yaml:"base_kv"`         // 基准电压
	Gs     float64 `yaml:"gs,omitempty"`    // 并联电导(MW @ 1.0 p.u.)
	Bs     float64 `yaml:"bs,omitempty"`    // 并联电纳(MVAr @ 1.0 p.u.)
	Pd     float64 `yaml:"pd,omitempty"`    // 有功负荷(MW)
	Qd     float64 `yaml:"qd,omitempty"`    // 无功负荷(MVAr)
	VMin   float64 `yaml:"v_min"`           // 电压下限
	VMax   float64 `yaml:"v_max"`           // 电压上限
	Zone   int     `yaml:"zone,omitempty"`  // 区域
	// 最优潮流结果
	PLambda float64 `yaml:"p_lambda,omitempty"` // 有功边际价格($/MWh)
	QLambda float64 `yaml:"q_lambda,omitempty"` // 无功边际价格($/MVArh)
	MuVMin  float64 `yaml:"mu_vmin,omitempty"`
	MuVMax  float64 `yaml:"mu_vmax,omitempty"`
}

// Voltage 复电压(标幺)
func (b *Bus) Voltage() complex128 {
	return cmplx.Rect(b.Vm, b.Va*math.Pi/180)
}

// Branch 支路
type Branch struct {
	ID        int     `yaml:"id"`
	Name      string  `yaml:"name,omitempty"`
	From      int     `yaml:"from"`             // 首端母线ID
	To        int     `yaml:"to"`               // 末端母线ID
	R         float64 `yaml:"r"`                // 电阻(标幺)
	X         float64 `yaml:"x"`                // 电抗(标幺)
	B         float64 `yaml:"b,omitempty"`      // 充电电纳(标幺)
	RateA     float64 `yaml:"rate_a,omitempty"` // 容量(MVA)，0 不限
	Ratio     float64 `yaml:"ratio,omitempty"`  // 变比，0 视为 1
	Shift     float64 `yaml:"shift,omitempty"`  // 移相角(度)
	AngMin    float64 `yaml:"ang_min,omitempty"` // 相角差下限(度)，0 不限
	AngMax    float64 `yaml:"ang_max,omitempty"` // 相角差上限(度)，0 不限
	InService bool    `yaml:"in_service"`
	// 潮流结果
	PFrom float64 `yaml:"p_from,omitempty"`
	QFrom float64 `yaml:"q_from,omitempty"`
	PTo   float64 `yaml:"p_to,omitempty"`
	QTo   float64 `yaml:"q_to,omitempty"`
	// 最优潮流结果
	MuSFrom  float64 `yaml:"mu_s_from,omitempty"`
	MuSTo    float64 `yaml:"mu_s_to,omitempty"`
	MuAngMin float64 `yaml:"mu_ang_min,omitempty"` // $/h 每度
	MuAngMax float64 `yaml:"mu_ang_max,omitempty"`
}

// Tap 复变比
func (br *Branch) Tap() complex128 {
	ratio := br.Ratio
	if ratio == 0 {
		ratio = 1
	}
	return cmplx.Rect(ratio, br.Shift*math.Pi/180)
}

// AngleLimits 首末端相角差限值(弧度)
// 为 0 或超出 ±360° 的一侧不限，ok 表示至少有一侧受限。
func (br *Branch) AngleLimits() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(-1), math.Inf(1)
	if br.AngMin != 0 && br.AngMin > -360 {
		lo, ok = br.AngMin*math.Pi/180, true
	}
	if br.AngMax != 0 && br.AngMax < 360 {
		hi, ok = br.AngMax*math.Pi/180, true
	}
	return lo, hi, ok
}

// IsDegenerate 阻抗为零
func (br *Branch) IsDegenerate() bool { return br.R == 0 && br.X == 0 }

// PLosses 有功损耗(MW)
func (br *Branch) PLosses() float64 { return br.PFrom + br.PTo }

// QLosses 无功损耗(MVAr)
func (br *Branch) QLosses() float64 { return br.QFrom + br.QTo }

// Generator 发电机
type Generator struct {
	ID        int       `yaml:"id"`
	Name      string    `yaml:"name,omitempty"`
	Bus       int       `yaml:"bus"` // 所在母线ID
	Pg        float64   `yaml:"pg"`  // 有功出力(MW)
	Qg        float64   `yaml:"qg"`  // 无功出力(MVAr)
	PMax      float64   `yaml:"p_max"`
	PMin      float64   `yaml:"p_min"`
	QMax      float64   `yaml:"q_max"`
	QMin      float64   `yaml:"q_min"`
	Vg        float64   `yaml:"vg"`               // 电压设定值
	MBase     float64   `yaml:"m_base,omitempty"` // 机组基准容量
	InService bool      `yaml:"in_service"`
	Cost      CostCurve `yaml:"cost"`
	// 最优潮流结果
	MuPMin float64 `yaml:"mu_pmin,omitempty"`
	MuPMax float64 `yaml:"mu_pmax,omitempty"`
	MuQMin float64 `yaml:"mu_qmin,omitempty"`
	MuQMax float64 `yaml:"mu_qmax,omitempty"`
}

// IsLoad 可调度负荷
func (g *Generator) IsLoad() bool { return g.PMin < 0 && g.PMax == 0 }

// QLimited 无功越限
func (g *Generator) QLimited() bool { return g.Qg >= g.QMax || g.Qg <= g.QMin }

// Case 网络算例
type Case struct {
	Name       string      `yaml:"name"`
	BaseMVA    float64     `yaml:"base_mva"`
	Buses      []Bus       `yaml:"buses"`
	Branches   []Branch    `yaml:"branches"`
	Generators []Generator `yaml:"generators"`
}

// NewCase 创建空算例
func NewCase(name string) *Case {
	return &Case{Name: name, BaseMVA: DefaultBaseMVA}
}

// AddBus 添加母线
func (c *Case) AddBus(b Bus) BusIndex {
	if b.Vm == 0 {
		b.Vm = 1
	}
	if b.VMin == 0 && b.VMax == 0 {
		b.VMin, b.VMax = DefaultVoltageMin, DefaultVoltageMax
	}
	c.Buses = append(c.Buses, b)
	return len(c.Buses) - 1
}

// AddBranch 添加支路
func (c *Case) AddBranch(br Branch) BranchIndex {
	c.Branches = append(c.Branches, br)
	return len(c.Branches) - 1
}

// AddGenerator 添加发电机
func (c *Case) AddGenerator(g Generator) GenIndex {
	if g.Vg == 0 {
		g.Vg = 1
	}
	if g.MBase == 0 {
		g.MBase = c.BaseMVA
	}
	c.Generators = append(c.Generators, g)
	return len(c.Generators) - 1
}

// BusIndexByID 母线ID到句柄
func (c *Case) BusIndexByID() map[int]BusIndex {
	m := make(map[int]BusIndex, len(c.Buses))
	for i := range c.Buses {
		m[c.Buses[i].ID] = i
	}
	return m
}

// Bus 按ID查找母线
func (c *Case) Bus(id int) (*Bus, bool) {
	for i := range c.Buses {
		if c.Buses[i].ID == id {
			return &c.Buses[i], true
		}
	}
	return nil, false
}

// OnlineGenerators 在线发电机句柄
func (c *Case) OnlineGenerators() []GenIndex {
	list := make([]GenIndex, 0, len(c.Generators))
	for i := range c.Generators {
		if c.Generators[i].InService {
			list = append(list, i)
		}
	}
	return list
}

// OnlineBranches 投运支路句柄
func (c *Case) OnlineBranches() []BranchIndex {
	list := make([]BranchIndex, 0, len(c.Branches))
	for i := range c.Branches {
		if c.Branches[i].InService {
			list = append(list, i)
		}
	}
	return list
}

// Clone 深拷贝
func (c *Case) Clone() *Case {
	n := &Case{Name: c.Name, BaseMVA: c.BaseMVA}
	n.Buses = append([]Bus(nil), c.Buses...)
	n.Branches = append([]Branch(nil), c.Branches...)
	n.Generators = make([]Generator, len(c.Generators))
	for i, g := range c.Generators {
		g.Cost = g.Cost.Clone()
		n.Generators[i] = g
	}
	return n
}

// CopyResults 把求解结果写回(结构必须一致)
func (c *Case) CopyResults(from *Case) {
	copy(c.Buses, from.Buses)
	copy(c.Branches, from.Branches)
	for i := range from.Generators {
		cost := c.Generators[i].Cost
		c.Generators[i] = from.Generators[i]
		c.Generators[i].Cost = cost
	}
}
