package gridflow

import (
	"context"

	"gridflow/admittance"
	"gridflow/graph"
	"gridflow/opf"
	"gridflow/pf"
	"gridflow/types"

	"golang.org/x/sync/errgroup"
)

// BuildAdmittance 生成交流导纳模型与直流模型
func BuildAdmittance(c *types.Case) (*admittance.Model, *admittance.DCModel, error) {
	g, err := graph.NewGraph(c)
	if err != nil {
		return nil, nil, err
	}
	ac, err := admittance.Build(g)
	if err != nil {
		return nil, nil, err
	}
	dc, err := admittance.BuildDC(g)
	if err != nil {
		return nil, nil, err
	}
	return ac, dc, nil
}

// SolvePowerFlow 潮流计算，成功后结果写回算例
func SolvePowerFlow(ctx context.Context, c *types.Case, method types.Method, opts types.Options) (*pf.Result, error) {
	return pf.Solve(ctx, c, method, opts)
}

// SolveOPF 最优潮流，成功后出力、电压与乘子写回算例
func SolveOPF(ctx context.Context, c *types.Case, opts types.OPFOptions) (*opf.Result, error) {
	return opf.Solve(ctx, c, opts)
}

// SolveAll 并行处理互不相关的算例，limit <= 0 不限并发
// 任一算例失败即取消其余算例并返回第一个错误。
func SolveAll(ctx context.Context, cases []*types.Case, limit int, fn func(ctx context.Context, c *types.Case) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}
	for _, c := range cases {
		c := c
		eg.Go(func() error { return fn(ctx, c) })
	}
	return eg.Wait()
}
