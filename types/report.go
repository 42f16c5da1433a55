package types

import (
	"fmt"
	"io"
	"math"
)

// Report 算例统计
type Report struct {
	Buses        int
	Generators   int // 在线
	Branches     int // 投运
	Transformers int
	Generation   complex128 // 总发电(MW + jMVAr)
	Load         complex128 // 总负荷
	Shunt        complex128 // 并联支路消耗
	Losses       complex128 // 支路损耗
	Cost         float64    // 总成本($/h)
	MinVm, MaxVm float64
	MinVmBus     int
	MaxVmBus     int
}

// NewReport 统计已求解算例
func NewReport(c *Case) *Report {
	r := &Report{MinVm: math.Inf(1), MaxVm: math.Inf(-1)}
	for i := range c.Buses {
		b := &c.Buses[i]
		if b.Type == BusIsolated {
			continue
		}
		r.Buses++
		r.Load += complex(b.Pd, b.Qd)
		v2 := b.Vm * b.Vm
		r.Shunt += complex(b.Gs*v2, -b.Bs*v2)
		if b.Vm < r.MinVm {
			r.MinVm, r.MinVmBus = b.Vm, b.ID
		}
		if b.Vm > r.MaxVm {
			r.MaxVm, r.MaxVmBus = b.Vm, b.ID
		}
	}
	for i := range c.Generators {
		g := &c.Generators[i]
		if g.InService {
			r.Generators++
			r.Generation += complex(g.Pg, g.Qg)
		}
	}
	for i := range c.Branches {
		br := &c.Branches[i]
		if !br.InService {
			continue
		}
		r.Branches++
		if (br.Ratio != 0 && br.Ratio != 1) || br.Shift != 0 {
			r.Transformers++
		}
		r.Losses += complex(br.PLosses(), br.QLosses())
	}
	r.Cost = c.TotalCost()
	return r
}

// Render 输出文本报告
func (r *Report) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"母线: %d  发电机: %d  支路: %d  变压器: %d\n"+
			"发电: %.3f MW %.3f MVAr\n"+
			"负荷: %.3f MW %.3f MVAr\n"+
			"并联: %.3f MW %.3f MVAr\n"+
			"损耗: %.3f MW %.3f MVAr\n"+
			"电压: min %.4f (母线 %d)  max %.4f (母线 %d)\n"+
			"成本: %.2f $/h\n",
		r.Buses, r.Generators, r.Branches, r.Transformers,
		real(r.Generation), imag(r.Generation),
		real(r.Load), imag(r.Load),
		real(r.Shunt), imag(r.Shunt),
		real(r.Losses), imag(r.Losses),
		r.MinVm, r.MinVmBus, r.MaxVm, r.MaxVmBus,
		r.Cost)
	return err
}
