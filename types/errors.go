package types

import (
	"errors"
	"fmt"
)

// ErrorKind 求解失败类别
type ErrorKind uint8

const (
	KindDegenerateBranch      ErrorKind = iota + 1 // 零阻抗支路
	KindSingularSystem                             // 奇异矩阵
	KindDivergedMaxIterations                      // 达到最大迭代次数
	KindInfeasible                                 // 最优潮流不可行
	KindCancelled                                  // 调用方取消
	KindInvalidCase                                // 算例结构错误
)

// String 类别名称
func (k ErrorKind) String() string {
	switch k {
	case KindDegenerateBranch:
		return "DegenerateBranch"
	case KindSingularSystem:
		return "SingularSystem"
	case KindDivergedMaxIterations:
		return "DivergedMaxIterations"
	case KindInfeasible:
		return "Infeasible"
	case KindCancelled:
		return "Cancelled"
	case KindInvalidCase:
		return "InvalidCase"
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// 哨兵错误，配合 errors.Is 使用
var (
	ErrDegenerateBranch      = errors.New("degenerate branch")
	ErrSingularSystem        = errors.New("singular system")
	ErrDivergedMaxIterations = errors.New("diverged: max iterations")
	ErrInfeasible            = errors.New("infeasible")
	ErrCancelled             = errors.New("cancelled")
	ErrInvalidCase           = errors.New("invalid case")
)

// Sentinel 类别对应的哨兵错误
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindDegenerateBranch:
		return ErrDegenerateBranch
	case KindSingularSystem:
		return ErrSingularSystem
	case KindDivergedMaxIterations:
		return ErrDivergedMaxIterations
	case KindInfeasible:
		return ErrInfeasible
	case KindCancelled:
		return ErrCancelled
	case KindInvalidCase:
		return ErrInvalidCase
	}
	return nil
}

// SolveError 结构化失败信息
type SolveError struct {
	Kind       ErrorKind // 类别
	Iterations int       // 已完成迭代数
	Residual   float64   // 失败时残差
	Detail     string    // 说明
	Err        error     // 底层错误
}

// Error 输出
func (e *SolveError) Error() string {
	s := e.Kind.String()
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if e.Iterations > 0 {
		s += fmt.Sprintf(" (iter=%d, res=%.3e)", e.Iterations, e.Residual)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap 底层错误
func (e *SolveError) Unwrap() error { return e.Err }

// Is 按类别匹配哨兵错误
func (e *SolveError) Is(target error) bool {
	if t, ok := target.(*SolveError); ok {
		return t.Kind == e.Kind
	}
	return target == e.Kind.Sentinel()
}

// NewError 创建失败信息
func NewError(kind ErrorKind, format string, args ...any) *SolveError {
	return &SolveError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf 提取错误类别，非求解错误返回0
func KindOf(err error) ErrorKind {
	var se *SolveError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
