package types

// 默认参数常量定义，单次求解的取值在 Options/OPFOptions 中覆盖
const (
	Tolerance         = 1e-8 // 潮流收敛容差(标幺功率)
	MaxIterations     = 10   // 牛顿法最大迭代次数
	MaxIterationsGS   = 1000 // 高斯-赛德尔最大迭代次数
	OPFTolerance      = 1e-6 // 最优潮流收敛容差
	MaxIterationsOPF  = 150  // 内点法最大迭代次数
	NearCapRatio      = 0.8  // 迭代次数接近上限的告警比例
	DefaultBaseMVA    = 100.0
	DefaultVoltageMin = 0.9 // 电压下限(标幺)
	DefaultVoltageMax = 1.1 // 电压上限(标幺)
	AcCostMultiplier  = 1e-4
)

// Unlimited 无限值标记
const Unlimited = 1e10
