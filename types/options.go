package types

import (
	"fmt"

	"go.uber.org/zap"
)

// Method 潮流算法
type Method uint8

const (
	NewtonRaphson Method = iota // 牛顿-拉夫逊
	GaussSeidel                 // 高斯-赛德尔
	DCPowerFlow                 // 直流潮流
)

// String 名称
func (m Method) String() string {
	switch m {
	case NewtonRaphson:
		return "newton"
	case GaussSeidel:
		return "gauss-seidel"
	case DCPowerFlow:
		return "dc"
	}
	return fmt.Sprintf("Method(%d)", m)
}

// ParseMethod 解析算法名称
func ParseMethod(s string) (Method, error) {
	switch s {
	case "newton", "nr", "newton_raphson", "":
		return NewtonRaphson, nil
	case "gauss-seidel", "gs", "gauss_seidel":
		return GaussSeidel, nil
	case "dc":
		return DCPowerFlow, nil
	}
	return 0, fmt.Errorf("未知潮流算法: %s", s)
}

// Formulation 最优潮流模型
type Formulation uint8

const (
	FormulationAC Formulation = iota // 交流
	FormulationDC                    // 直流
)

// String 名称
func (f Formulation) String() string {
	if f == FormulationDC {
		return "dc"
	}
	return "ac"
}

// ParseFormulation 解析模型名称
func ParseFormulation(s string) (Formulation, error) {
	switch s {
	case "ac", "AC", "":
		return FormulationAC, nil
	case "dc", "DC":
		return FormulationDC, nil
	}
	return 0, fmt.Errorf("未知最优潮流模型: %s", s)
}

// Options 潮流求解参数
type Options struct {
	Tolerance     float64     // 收敛容差(标幺功率)，0 取默认值
	MaxIterations int         // 最大迭代次数，0 按算法取默认值
	WarmStart     bool        // 以算例中的电压作为初值
	Logger        *zap.Logger // 日志，nil 不输出
	Debug         Debug       // 迭代调试记录
}

// Normalize 填充默认值
func (o Options) Normalize(m Method) Options {
	if o.Tolerance <= 0 {
		o.Tolerance = Tolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = MaxIterations
		if m == GaussSeidel {
			o.MaxIterations = MaxIterationsGS
		}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// OPFOptions 最优潮流参数
type OPFOptions struct {
	Formulation   Formulation
	Tolerance     float64 // 可行性/梯度/互补/成本容差
	MaxIterations int
	Logger        *zap.Logger
	Debug         Debug
}

// Normalize 填充默认值
func (o OPFOptions) Normalize() OPFOptions {
	if o.Tolerance <= 0 {
		o.Tolerance = OPFTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = MaxIterationsOPF
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
