package types

// Validate 检查算例结构
func (c *Case) Validate() error {
	if c.BaseMVA <= 0 {
		return NewError(KindInvalidCase, "基准容量必须为正: %g", c.BaseMVA)
	}
	if len(c.Buses) == 0 {
		return NewError(KindInvalidCase, "算例没有母线")
	}
	buses := make(map[int]*Bus, len(c.Buses))
	for i := range c.Buses {
		b := &c.Buses[i]
		if _, ok := buses[b.ID]; ok {
			return NewError(KindInvalidCase, "母线ID重复: %d", b.ID)
		}
		buses[b.ID] = b
		switch b.Type {
		case BusPQ, BusPV, BusSlack, BusIsolated:
		default:
			return NewError(KindInvalidCase, "母线 %d 类型无效: %v", b.ID, b.Type)
		}
		if b.Vm < 0 {
			return NewError(KindInvalidCase, "母线 %d 电压幅值为负: %g", b.ID, b.Vm)
		}
		if b.VMin > b.VMax {
			return NewError(KindInvalidCase, "母线 %d 电压上下限颠倒: [%g, %g]", b.ID, b.VMin, b.VMax)
		}
	}
	ids := make(map[int]bool, len(c.Branches))
	for i := range c.Branches {
		br := &c.Branches[i]
		if ids[br.ID] {
			return NewError(KindInvalidCase, "支路ID重复: %d", br.ID)
		}
		ids[br.ID] = true
		if _, ok := buses[br.From]; !ok {
			return NewError(KindInvalidCase, "支路 %d 首端母线不存在: %d", br.ID, br.From)
		}
		if _, ok := buses[br.To]; !ok {
			return NewError(KindInvalidCase, "支路 %d 末端母线不存在: %d", br.ID, br.To)
		}
		if br.From == br.To {
			return NewError(KindInvalidCase, "支路 %d 首末端相同: %d", br.ID, br.From)
		}
		if lo, hi, ok := br.AngleLimits(); ok && lo > hi {
			return NewError(KindInvalidCase, "支路 %d 相角差上下限颠倒: [%g, %g]", br.ID, br.AngMin, br.AngMax)
		}
	}
	clear(ids)
	for i := range c.Generators {
		g := &c.Generators[i]
		if ids[g.ID] {
			return NewError(KindInvalidCase, "发电机ID重复: %d", g.ID)
		}
		ids[g.ID] = true
		b, ok := buses[g.Bus]
		if !ok {
			return NewError(KindInvalidCase, "发电机 %d 所在母线不存在: %d", g.ID, g.Bus)
		}
		if g.InService && b.Type == BusIsolated {
			return NewError(KindInvalidCase, "发电机 %d 接在孤立母线 %d", g.ID, g.Bus)
		}
		if g.InService && (b.Type == BusPV || b.Type == BusSlack) && g.Vg <= 0 {
			return NewError(KindInvalidCase, "发电机 %d 电压设定值必须为正: %g", g.ID, g.Vg)
		}
		if g.PMin > g.PMax {
			return NewError(KindInvalidCase, "发电机 %d 有功上下限颠倒: [%g, %g]", g.ID, g.PMin, g.PMax)
		}
		if g.QMin > g.QMax {
			return NewError(KindInvalidCase, "发电机 %d 无功上下限颠倒: [%g, %g]", g.ID, g.QMin, g.QMax)
		}
		if err := g.Cost.Validate(); err != nil {
			return &SolveError{Kind: KindInvalidCase, Detail: "发电机成本曲线", Err: err}
		}
	}
	return nil
}
