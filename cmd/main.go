package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"gridflow"
	"gridflow/config"
	"gridflow/debug"
	"gridflow/types"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	fs := pflag.NewFlagSet("gridflow", pflag.ExitOnError)
	config.Flags(fs)
	cfgPath := fs.StringP("config", "c", "", "配置文件(YAML)")
	mode := fs.StringP("mode", "m", "pf", "运行模式: pf | opf | both")
	out := fs.StringP("out", "o", "", "结果算例输出路径(YAML)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "用法: gridflow [参数] case.yaml...\n")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	cfg, err := config.Load(*cfgPath, fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cases := make([]*types.Case, 0, fs.NArg())
	for _, name := range fs.Args() {
		c, err := gridflow.Load(name)
		if err != nil {
			log.Fatal("加载算例失败", zap.String("file", name), zap.Error(err))
		}
		cases = append(cases, c)
	}
	if len(cases) > 1 {
		// 多个算例并行求解，不输出调试文件
		err = gridflow.SolveAll(ctx, cases, 0, func(ctx context.Context, c *types.Case) error {
			return run(ctx, cfg, log.With(zap.String("case", c.Name)), c, *mode, nil)
		})
		for _, c := range cases {
			types.NewReport(c).Render(os.Stdout)
		}
		if err != nil {
			log.Fatal("求解失败", zap.Error(err))
		}
		return
	}
	c := cases[0]
	charts := debug.NewCharts(c)
	charts.Logger = log
	charts.SetDebug(cfg.Debug.Enabled)
	err = run(ctx, cfg, log, c, *mode, charts)
	if cfg.Debug.Enabled {
		if werr := dump(cfg.Debug, charts); werr != nil {
			log.Warn("调试输出失败", zap.Error(werr))
		}
	}
	if err != nil {
		var se *types.SolveError
		if errors.As(err, &se) {
			log.Error("求解失败",
				zap.Stringer("kind", se.Kind),
				zap.Int("iter", se.Iterations),
				zap.Float64("residual", se.Residual))
		}
		log.Fatal("求解失败", zap.Error(err))
	}
	types.NewReport(c).Render(os.Stdout)
	if *out != "" {
		if err := gridflow.Export(c, *out); err != nil {
			log.Fatal("导出失败", zap.Error(err))
		}
	}
}

// run 按模式求解单个算例
func run(ctx context.Context, cfg *config.Config, log *zap.Logger, c *types.Case, mode string, dbg types.Debug) error {
	if mode == "pf" || mode == "both" {
		method, opts, err := cfg.PowerFlowOptions(log, dbg)
		if err != nil {
			return err
		}
		res, err := gridflow.SolvePowerFlow(ctx, c, method, opts)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			fmt.Println(w)
		}
	}
	if mode == "opf" || mode == "both" {
		opts, err := cfg.OPFOptions(log, dbg)
		if err != nil {
			return err
		}
		res, err := gridflow.SolveOPF(ctx, c, opts)
		if err != nil {
			return err
		}
		fmt.Printf("最优潮流成本: %.2f $/h (%d 次迭代)\n", res.Cost, res.Iterations)
		for _, w := range res.Warnings {
			fmt.Println(w)
		}
	}
	if mode != "pf" && mode != "opf" && mode != "both" {
		return fmt.Errorf("未知运行模式: %s", mode)
	}
	return nil
}

// dump 写出迭代历史: JSON、HTML 图表、PNG 收敛曲线
func dump(d config.Debug, charts *debug.Charts) error {
	if d.JSON != "" {
		if err := write(d.JSON, charts.Record.Render); err != nil {
			return err
		}
	}
	if d.HTML != "" {
		if err := write(d.HTML, charts.Render); err != nil {
			return err
		}
	}
	if d.PNG != "" {
		p := debug.NewPlot("收敛曲线")
		p.Record = charts.Record
		if err := p.Save(d.PNG); err != nil {
			return err
		}
	}
	return nil
}

func write(name string, render func(w io.Writer) error) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
