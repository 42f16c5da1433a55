package types

import "io"

// Iteration 单次迭代快照
type Iteration struct {
	Solver   string    // 求解器名称
	Iter     int       // 迭代序号
	Residual float64   // 收敛判据(无穷范数)
	Step     float64   // 步长
	Vm       []float64 // 母线电压幅值
	Va       []float64 // 母线电压相角(弧度)
	Extra    map[string]float64
}

// Debug 调试接口
type Debug interface {
	IsDebug() bool
	SetDebug(is bool)
	Update(it Iteration)
	Render(w io.Writer) error
	Error(err error)
}
