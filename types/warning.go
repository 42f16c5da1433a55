package types

import "fmt"

// WarningKind 告警类别
type WarningKind uint8

const (
	WarnNearIterationCap WarningKind = iota + 1 // 迭代次数接近上限
	WarnVoltageLimit                            // 电压越限
	WarnReactiveLimit                           // 无功越限
	WarnIsolatedBus                             // 孤立母线未参与计算
)

// String 名称
func (k WarningKind) String() string {
	switch k {
	case WarnNearIterationCap:
		return "NearIterationCap"
	case WarnVoltageLimit:
		return "VoltageLimit"
	case WarnReactiveLimit:
		return "ReactiveLimit"
	case WarnIsolatedBus:
		return "IsolatedBus"
	}
	return fmt.Sprintf("WarningKind(%d)", k)
}

// Warning 数值告警，与成功结果一起返回
type Warning struct {
	Kind    WarningKind
	Subject int // 相关对象ID
	Message string
}

func (w Warning) String() string { return fmt.Sprintf("%s[%d]: %s", w.Kind, w.Subject, w.Message) }

// CheckLimits 检查电压与无功越限
func (c *Case) CheckLimits() []Warning {
	var list []Warning
	for i := range c.Buses {
		b := &c.Buses[i]
		if b.Type == BusIsolated || b.VMax <= 0 {
			continue
		}
		if b.Vm < b.VMin || b.Vm > b.VMax {
			list = append(list, Warning{WarnVoltageLimit, b.ID,
				fmt.Sprintf("Vm=%.4f 超出 [%.3f, %.3f]", b.Vm, b.VMin, b.VMax)})
		}
	}
	for i := range c.Generators {
		g := &c.Generators[i]
		if !g.InService || (g.QMax == 0 && g.QMin == 0) {
			continue
		}
		if g.Qg > g.QMax || g.Qg < g.QMin {
			list = append(list, Warning{WarnReactiveLimit, g.ID,
				fmt.Sprintf("Qg=%.3f 超出 [%.3f, %.3f]", g.Qg, g.QMin, g.QMax)})
		}
	}
	return list
}
