package debug

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot 收敛曲线图片
type Plot struct {
	Record
	Title  string
	Width  vg.Length
	Height vg.Length
}

// NewPlot 创建
func NewPlot(title string) *Plot {
	return &Plot{Record: *NewRecord(nil), Title: title, Width: 16 * vg.Centimeter, Height: 10 * vg.Centimeter}
}

// Render 输出PNG
func (p *Plot) Render(w io.Writer) error {
	pl, err := p.build()
	if err != nil {
		return err
	}
	wt, err := pl.WriterTo(p.Width, p.Height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save 保存到文件，格式由扩展名决定
func (p *Plot) Save(filename string) error {
	pl, err := p.build()
	if err != nil {
		return err
	}
	return pl.Save(p.Width, p.Height, filename)
}

func (p *Plot) build() (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = p.Title
	pl.X.Label.Text = "iter"
	pl.Y.Label.Text = "residual"
	pl.Y.Scale = plot.LogScale{}
	pl.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	pl.Add(plotter.NewGrid())
	groups := p.Series()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for k, name := range names {
		idx := groups[name]
		pts := make(plotter.XYs, len(idx))
		for j, i := range idx {
			pts[j].X = float64(j + 1)
			// 对数轴不能为零
			pts[j].Y = max(p.Residual[i], 1e-16)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		line.Color = plotutil.Color(k)
		pl.Add(line)
		pl.Legend.Add(name, line)
	}
	return pl, nil
}
