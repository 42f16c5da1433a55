package maths

import (
	"errors"
	"math"
	"math/cmplx"
)

// 补充必要常量（浮点精度阈值）
const Epsilon = 1e-16

// PivotTolerance 相对主元阈值，按列计
const PivotTolerance = 1e-13

// ErrSingular 矩阵奇异
var ErrSingular = errors.New("matrix is singular or nearly singular")

// ErrDimension 维度不匹配
var ErrDimension = errors.New("vector dimension mismatch")

// Number 是一个约束，允许任何浮点或复数类型
type Number interface {
	~float32 | ~float64 | ~complex64 | ~complex128
}

// Abs 是一个泛型函数，返回任何支持的 Number 类型的绝对值。
func Abs[T Number](v T) float64 {
	switch x := any(v).(type) {
	case float32:
		return math.Abs(float64(x))
	case float64:
		return math.Abs(x)
	case complex64:
		return cmplx.Abs(complex128(x))
	case complex128:
		return cmplx.Abs(x)
	}
	return 0
}

// isNaN 是否含非数
func isNaN[T Number](v T) bool {
	switch x := any(v).(type) {
	case float32:
		return math.IsNaN(float64(x))
	case float64:
		return math.IsNaN(x)
	case complex64:
		return cmplx.IsNaN(complex128(x))
	case complex128:
		return cmplx.IsNaN(x)
	}
	return false
}

// LU 接口定义了 LU 分解和求解线性方程组的操作。
type LU[T Number] interface {
	Decompose(matrix *SparseMatrix[T]) error // 对输入方阵执行LU分解（PA=LU）
	SolveReuse(b, x []T) error               // 重用分解结果求解Ax=b
}
