package graph

import (
	"gridflow/types"
)

// Graph 网络拓扑
// 只包含参与计算的母线，Index 为计算索引到算例母线句柄的映射。
type Graph struct {
	Case     *types.Case
	Index    []types.BusIndex // 计算索引 -> 母线句柄
	Position map[int]int      // 母线ID -> 计算索引
	Types    []types.BusType  // 计算用母线类型(无在线机组的 PV 视为 PQ)
	Islands  [][]int          // 连通分量(计算索引)
	Island   []int            // 计算索引 -> 分量序号
	Ref      []int            // 平衡节点(计算索引)
	PV, PQ   []int            // 计算索引
	Isolated []int            // 被排除的母线ID
	Branches []types.BranchIndex
	From, To []int // 支路两端计算索引，与 Branches 对应
	Gens     []types.GenIndex
	GenBus   []int // 发电机所在计算索引，与 Gens 对应
}

// NewGraph 创建拓扑
func NewGraph(c *types.Case) (*Graph, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	g := &Graph{Case: c, Position: make(map[int]int, len(c.Buses))}
	return g, g.Init()
}

// N 参与计算的母线数量
func (g *Graph) N() int { return len(g.Index) }

// Init 初始化
func (g *Graph) Init() error {
	c := g.Case
	byID := c.BusIndexByID()
	// 母线连接度
	degree := make([]int, len(c.Buses))
	for _, l := range c.OnlineBranches() {
		br := &c.Branches[l]
		f, t := byID[br.From], byID[br.To]
		if c.Buses[f].Type == types.BusIsolated || c.Buses[t].Type == types.BusIsolated {
			continue
		}
		degree[f]++
		degree[t]++
	}
	hasGen := make([]bool, len(c.Buses))
	for _, i := range c.OnlineGenerators() {
		hasGen[byID[c.Generators[i].Bus]] = true
	}
	// 排除孤立母线
	for i := range c.Buses {
		b := &c.Buses[i]
		if b.Type == types.BusIsolated || (degree[i] == 0 && b.Type != types.BusSlack) {
			g.Isolated = append(g.Isolated, b.ID)
			continue
		}
		g.Position[b.ID] = len(g.Index)
		g.Index = append(g.Index, i)
		t := b.Type
		if t == types.BusPV && !hasGen[i] {
			t = types.BusPQ
		}
		g.Types = append(g.Types, t)
	}
	for _, l := range c.OnlineBranches() {
		br := &c.Branches[l]
		f, okf := g.Position[br.From]
		t, okt := g.Position[br.To]
		if !okf || !okt {
			continue
		}
		g.Branches = append(g.Branches, l)
		g.From = append(g.From, f)
		g.To = append(g.To, t)
	}
	for _, i := range c.OnlineGenerators() {
		if k, ok := g.Position[c.Generators[i].Bus]; ok {
			g.Gens = append(g.Gens, i)
			g.GenBus = append(g.GenBus, k)
		}
	}
	g.buildIslands()
	for i, t := range g.Types {
		switch t {
		case types.BusPV:
			g.PV = append(g.PV, i)
		case types.BusPQ:
			g.PQ = append(g.PQ, i)
		}
	}
	return g.checkRef()
}

// buildIslands 广度优先求连通分量
func (g *Graph) buildIslands() {
	n := g.N()
	adj := make([][]int, n)
	for k := range g.Branches {
		f, t := g.From[k], g.To[k]
		adj[f] = append(adj[f], t)
		adj[t] = append(adj[t], f)
	}
	g.Island = make([]int, n)
	for i := range g.Island {
		g.Island[i] = -1
	}
	for s := 0; s < n; s++ {
		if g.Island[s] >= 0 {
			continue
		}
		id := len(g.Islands)
		queue := []int{s}
		g.Island[s] = id
		members := []int{}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			members = append(members, u)
			for _, v := range adj[u] {
				if g.Island[v] < 0 {
					g.Island[v] = id
					queue = append(queue, v)
				}
			}
		}
		g.Islands = append(g.Islands, members)
	}
}

// checkRef 每个连通分量恰好一个平衡节点
func (g *Graph) checkRef() error {
	count := make([]int, len(g.Islands))
	for i, t := range g.Types {
		if t == types.BusSlack {
			count[g.Island[i]]++
			g.Ref = append(g.Ref, i)
		}
	}
	for k, n := range count {
		id := g.Case.Buses[g.Index[g.Islands[k][0]]].ID
		switch {
		case n == 0:
			return types.NewError(types.KindInvalidCase, "连通分量(含母线 %d)缺少平衡节点", id)
		case n > 1:
			return types.NewError(types.KindInvalidCase, "连通分量(含母线 %d)有 %d 个平衡节点", id, n)
		}
	}
	return nil
}

// Bus 计算索引对应母线
func (g *Graph) Bus(i int) *types.Bus { return &g.Case.Buses[g.Index[i]] }

// IsRef 是否平衡节点
func (g *Graph) IsRef(i int) bool { return g.Types[i] == types.BusSlack }

// GensAt 母线上的在线发电机(在 Gens 中的序号)
func (g *Graph) GensAt() [][]int {
	list := make([][]int, g.N())
	for k, b := range g.GenBus {
		list[b] = append(list[b], k)
	}
	return list
}
