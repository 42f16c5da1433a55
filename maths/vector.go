package maths

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NormInf 无穷范数，空向量为0
func NormInf(x []float64) float64 { return floats.Norm(x, math.Inf(1)) }

// MaxOr 最大值，空向量返回 def
func MaxOr(x []float64, def float64) float64 {
	if len(x) == 0 {
		return def
	}
	return floats.Max(x)
}

// Gather 按索引取子向量
func Gather[T Number](x []T, idx []int) []T {
	out := make([]T, len(idx))
	for k, i := range idx {
		out[k] = x[i]
	}
	return out
}

// Concat 拼接向量
func Concat(parts ...[]float64) []float64 {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]float64, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Fill 填充常数向量
func Fill(n int, v float64) []float64 {
	out := make([]float64, n)
	if v != 0 {
		floats.AddConst(v, out)
	}
	return out
}
