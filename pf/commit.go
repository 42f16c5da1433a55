package pf

import (
	"fmt"
	"math"

	"gridflow/types"
)

// commitAC 写回交流潮流结果: 电压、机组出力、支路潮流
func (s *solver) commitAC() {
	g := s.graph
	c := g.Case
	base := c.BaseMVA
	for i := 0; i < g.N(); i++ {
		b := g.Bus(i)
		b.Vm, b.Va = s.Vm[i], s.Va[i]*180/math.Pi
	}
	sc := s.model.Injections(s.V)
	for i, gens := range g.GensAt() {
		if len(gens) == 0 || g.Types[i] == types.BusPQ {
			continue
		}
		b := g.Bus(i)
		// 无功按各机组无功范围比例分配
		qTotal := imag(sc[i])*base + b.Qd
		var qMin, qRange float64
		for _, k := range gens {
			gen := &c.Generators[g.Gens[k]]
			qMin += gen.QMin
			qRange += gen.QMax - gen.QMin
		}
		for _, k := range gens {
			gen := &c.Generators[g.Gens[k]]
			if qRange > 0 {
				gen.Qg = gen.QMin + (qTotal-qMin)*(gen.QMax-gen.QMin)/qRange
			} else {
				gen.Qg = qTotal / float64(len(gens))
			}
		}
		// 平衡节点第一台机组承担有功不平衡
		if g.IsRef(i) {
			pTotal := real(sc[i])*base + b.Pd
			first := &c.Generators[g.Gens[gens[0]]]
			for _, k := range gens[1:] {
				pTotal -= c.Generators[g.Gens[k]].Pg
			}
			first.Pg = pTotal
		}
	}
	s.commitFlows()
}

// commitFlows 支路潮流(MW/MVAr)
func (s *solver) commitFlows() {
	g := s.graph
	c := g.Case
	for l := range c.Branches {
		br := &c.Branches[l]
		br.PFrom, br.QFrom, br.PTo, br.QTo = 0, 0, 0, 0
	}
	sf, st := s.model.Flows(s.V)
	for k, l := range g.Branches {
		br := &c.Branches[l]
		br.PFrom, br.QFrom = real(sf[k])*c.BaseMVA, imag(sf[k])*c.BaseMVA
		br.PTo, br.QTo = real(st[k])*c.BaseMVA, imag(st[k])*c.BaseMVA
	}
}

// commitDC 写回直流潮流结果
func (s *solver) commitDC() {
	g, dc := s.graph, s.dc
	c := g.Case
	base := c.BaseMVA
	for i := 0; i < g.N(); i++ {
		b := g.Bus(i)
		b.Vm, b.Va = 1, s.theta[i]*180/math.Pi
	}
	calc := dc.B.MulVec(s.theta)
	for i, gens := range g.GensAt() {
		if len(gens) == 0 || !g.IsRef(i) {
			continue
		}
		b := g.Bus(i)
		pTotal := (calc[i]+dc.Pbusinj[i])*base + b.Pd + b.Gs
		for _, k := range gens[1:] {
			pTotal -= c.Generators[g.Gens[k]].Pg
		}
		c.Generators[g.Gens[gens[0]]].Pg = pTotal
	}
	for l := range c.Branches {
		br := &c.Branches[l]
		br.PFrom, br.QFrom, br.PTo, br.QTo = 0, 0, 0, 0
	}
	pf := dc.Flows(s.theta)
	for k, l := range g.Branches {
		br := &c.Branches[l]
		br.PFrom, br.PTo = pf[k]*base, -pf[k]*base
	}
}

// warnings 成功结果附带的告警
func (s *solver) warnings(method types.Method) []types.Warning {
	var list []types.Warning
	if method != types.DCPowerFlow {
		limit := int(math.Ceil(types.NearCapRatio * float64(s.opts.MaxIterations)))
		if s.iter >= limit && s.iter > 1 {
			list = append(list, types.Warning{
				Kind:    types.WarnNearIterationCap,
				Message: fmt.Sprintf("迭代 %d 次，上限 %d", s.iter, s.opts.MaxIterations),
			})
		}
		list = append(list, s.graph.Case.CheckLimits()...)
	}
	for _, id := range s.graph.Isolated {
		list = append(list, types.Warning{Kind: types.WarnIsolatedBus, Subject: id, Message: "孤立母线未参与计算"})
	}
	return list
}
