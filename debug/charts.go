package debug

import (
	"fmt"
	"io"
	"sort"

	gtypes "gridflow/types"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// Charts 曲线绘制
type Charts struct {
	Record
	Case *gtypes.Case // 非空时绘制网络拓扑
}

// NewCharts 创建
func NewCharts(c *gtypes.Case) *Charts {
	return &Charts{Record: *NewRecord(nil), Case: c}
}

func legend() opts.Legend {
	return opts.Legend{
		Type:   "scroll",
		Orient: "vertical",
		Right:  "10",
		Top:    "20",
		Bottom: "20",
	}
}

// Render 格式化
func (c *Charts) Render(w io.Writer) error {
	page := components.NewPage()
	if c.Case != nil {
		page.AddCharts(c.network())
	}
	page.AddCharts(c.residual())
	if vm, va := c.LastVoltage(); vm != nil {
		page.AddCharts(c.voltage(vm, va))
	}
	if keys := c.ExtraKeys(); len(keys) > 0 {
		page.AddCharts(c.extra(keys))
	}
	return page.Render(w)
}

// network 母线-支路拓扑
func (c *Charts) network() *charts.Graph {
	graph := charts.NewGraph()
	graph.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "网络拓扑",
			Subtitle: c.Case.Name,
		}),
		charts.WithLegendOpts(legend()),
	)
	nodes := make([]opts.GraphNode, len(c.Case.Buses))
	for i, b := range c.Case.Buses {
		category := 0
		switch b.Type {
		case gtypes.BusPV:
			category = 1
		case gtypes.BusSlack:
			category = 2
		case gtypes.BusIsolated:
			category = 3
		}
		nodes[i] = opts.GraphNode{
			Name:     fmt.Sprintf("Bus(%d)", b.ID),
			Value:    float32(b.Vm),
			Category: category,
			Tooltip:  &opts.Tooltip{Show: opts.Bool(true)},
		}
	}
	links := make([]opts.GraphLink, 0, len(c.Case.Branches))
	for _, br := range c.Case.Branches {
		if !br.InService {
			continue
		}
		links = append(links, opts.GraphLink{
			Source: fmt.Sprintf("Bus(%d)", br.From),
			Target: fmt.Sprintf("Bus(%d)", br.To),
			Value:  float32(br.PFrom),
		})
	}
	graph.AddSeries("母线", nodes, links,
		charts.WithGraphChartOpts(opts.GraphChart{
			Categories: []*opts.GraphCategory{
				{Name: "PQ", ItemStyle: &opts.ItemStyle{Color: "#1987c7b7"}},
				{Name: "PV", ItemStyle: &opts.ItemStyle{Color: "#c71979b7"}},
				{Name: "平衡", ItemStyle: &opts.ItemStyle{Color: "#000000de"}},
				{Name: "孤立", ItemStyle: &opts.ItemStyle{Color: "#999999b7"}},
			},
			Roam:               opts.Bool(true),
			Force:              &opts.GraphForce{Repulsion: 80},
			EdgeLabel:          &opts.EdgeLabel{Show: opts.Bool(true)},
			FocusNodeAdjacency: opts.Bool(true),
		}))
	return graph
}

// residual 每个求解器的收敛曲线，对数纵轴
func (c *Charts) residual() *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "收敛曲线",
			Subtitle: "失配无穷范数随迭代变化",
		}),
		charts.WithLegendOpts(legend()),
		charts.WithXAxisOpts(opts.XAxis{Name: "iter"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "log"}),
		charts.WithAnimation(true),
	)
	groups := c.Series()
	names := make([]string, 0, len(groups))
	longest := 0
	for name, idx := range groups {
		names = append(names, name)
		longest = max(longest, len(idx))
	}
	sort.Strings(names)
	x := make([]int, longest)
	for i := range x {
		x[i] = i + 1
	}
	line.SetXAxis(x)
	for _, name := range names {
		items := make([]opts.LineData, 0, len(groups[name]))
		for _, i := range groups[name] {
			items = append(items, opts.LineData{Value: max(c.Residual[i], 1e-16)})
		}
		line.AddSeries(name, items)
	}
	return line
}

// voltage 最终电压分布
func (c *Charts) voltage(vm, va []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "电压分布",
			Subtitle: "计算索引下的母线电压幅值与相角",
		}),
		charts.WithLegendOpts(legend()),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	x := make([]int, len(vm))
	itemsM := make([]opts.LineData, len(vm))
	itemsA := make([]opts.LineData, len(va))
	for i := range vm {
		x[i] = i
		itemsM[i].Value = vm[i]
	}
	for i := range va {
		itemsA[i].Value = va[i]
	}
	line.SetXAxis(x).
		AddSeries("Vm", itemsM).
		AddSeries("Va", itemsA)
	return line
}

// extra 内点法等附加指标
func (c *Charts) extra(keys []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "附加指标",
			Subtitle: "可行性/对偶/互补/目标",
		}),
		charts.WithLegendOpts(legend()),
		charts.WithYAxisOpts(opts.YAxis{Type: "log"}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
	)
	x := make([]int, c.Len())
	for i := range x {
		x[i] = i + 1
	}
	line.SetXAxis(x)
	for _, k := range keys {
		items := make([]opts.LineData, c.Len())
		for i, m := range c.Extra {
			if v, ok := m[k]; ok {
				if v < 0 {
					v = -v
				}
				items[i].Value = max(v, 1e-16)
			}
		}
		line.AddSeries(k, items)
	}
	return line
}
