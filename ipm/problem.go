package ipm

import (
	"math"

	"gridflow/maths"
	"gridflow/types"

	"go.uber.org/zap"
)

// Problem 非线性规划
//
//	min f(x)  s.t.  h(x) = 0，g(x) <= 0，l <= A·x <= u，xmin <= x <= xmax
//
// 雅可比矩阵按 约束×变量 排列。
type Problem interface {
	Dim() int
	Objective(x []float64) (f float64, df []float64)
	Constraints(x []float64) (h, g []float64, dh, dg *maths.SparseMatrix[float64])
	// Hessian 拉格朗日函数 costMult·f + lamᵀh + muᵀg 的二阶导(只含非线性部分)
	Hessian(x, lam, mu []float64, costMult float64) *maths.SparseMatrix[float64]
}

// Linear 线性约束 l <= A·x <= u，无界用 ±Inf
type Linear struct {
	A    *maths.SparseMatrix[float64]
	L, U []float64
}

// Rows 行数
func (l Linear) Rows() int {
	if l.A == nil {
		return 0
	}
	return l.A.Rows()
}

// 内点法参数
const (
	Xi          = 0.99995 // 边界比例
	Sigma       = 0.1     // 中心化参数
	Z0          = 1       // 松弛变量初值
	AlphaMin    = 1e-8    // 最小步长
	MuThreshold = 1e-5    // 非紧约束乘子置零阈值
	Infinite    = 1e10    // 无界代理值
	Window      = 10      // 不可行判定窗口
)

// Options 求解参数
type Options struct {
	FeasTol  float64
	GradTol  float64
	CompTol  float64
	CostTol  float64
	MaxIter  int
	CostMult float64 // 目标函数缩放
	Logger   *zap.Logger
	Debug    types.Debug
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		FeasTol:  types.OPFTolerance,
		GradTol:  types.OPFTolerance,
		CompTol:  types.OPFTolerance,
		CostTol:  types.OPFTolerance,
		MaxIter:  types.MaxIterationsOPF,
		CostMult: 1,
	}
}

func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.FeasTol <= 0 {
		o.FeasTol = d.FeasTol
	}
	if o.GradTol <= 0 {
		o.GradTol = d.GradTol
	}
	if o.CompTol <= 0 {
		o.CompTol = d.CompTol
	}
	if o.CostTol <= 0 {
		o.CostTol = d.CostTol
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.CostMult <= 0 {
		o.CostMult = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Step 单步收敛指标
type Step struct {
	Iter    int
	Feas    float64 // 原始可行性
	Grad    float64 // 对偶可行性
	Comp    float64 // 互补松弛
	Cost    float64 // 目标变化
	Gamma   float64
	AlphaP  float64
	AlphaD  float64
	F       float64 // 未缩放目标值
	MaxStep float64 // max|dx|
}

// Result 求解结果，乘子已除以 CostMult
type Result struct {
	X          []float64
	F          float64
	Converged  bool
	Iterations int
	Lam        []float64 // 非线性等式乘子
	Mu         []float64 // 非线性不等式乘子
	MuLower    []float64 // 变量下界乘子
	MuUpper    []float64 // 变量上界乘子
	LinLower   []float64 // 线性约束下界乘子(等式行取负乘子)
	LinUpper   []float64 // 线性约束上界乘子
	History    []Step
}

func isInf(v float64, sign int) bool {
	return math.IsInf(v, sign) || (sign > 0 && v >= Infinite) || (sign < 0 && v <= -Infinite)
}
