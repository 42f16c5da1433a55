package debug

import (
	"encoding/json"
	"io"
	"sort"

	"gridflow/types"

	"go.uber.org/zap"
)

// Record 记录迭代历史
type Record struct {
	Solver   []string             // 求解器
	Iter     []int                // 迭代序号
	Residual []float64            // 收敛判据
	Step     []float64            // 步长
	Vm       [][]float64          // 电压幅值
	Va       [][]float64          // 电压相角
	Extra    []map[string]float64 // 附加指标
	Errors   []string             // 求解错误
	Disabled bool                 `json:"-"`
	Logger   *zap.Logger          `json:"-"`
}

// NewRecord 创建记录
func NewRecord(log *zap.Logger) *Record {
	if log == nil {
		log = zap.NewNop()
	}
	return &Record{Logger: log}
}

func (list *Record) IsDebug() bool    { return !list.Disabled }
func (list *Record) SetDebug(is bool) { list.Disabled = !is }

// Render 格式和输出内容
func (list *Record) Render(w io.Writer) error { return json.NewEncoder(w).Encode(list) }

// Update 记录数据
func (list *Record) Update(it types.Iteration) {
	list.Solver = append(list.Solver, it.Solver)
	list.Iter = append(list.Iter, it.Iter)
	list.Residual = append(list.Residual, it.Residual)
	list.Step = append(list.Step, it.Step)
	list.Vm = append(list.Vm, append([]float64(nil), it.Vm...))
	list.Va = append(list.Va, append([]float64(nil), it.Va...))
	extra := make(map[string]float64, len(it.Extra))
	for k, v := range it.Extra {
		extra[k] = v
	}
	list.Extra = append(list.Extra, extra)
}

func (list *Record) Error(err error) {
	list.Errors = append(list.Errors, err.Error())
	if list.Logger != nil {
		list.Logger.Warn("求解错误", zap.Error(err))
	}
}

// Len 记录条数
func (list *Record) Len() int { return len(list.Iter) }

// Reset 清空
func (list *Record) Reset() {
	*list = Record{Disabled: list.Disabled, Logger: list.Logger}
}

// Series 按求解器分组的下标
func (list *Record) Series() map[string][]int {
	groups := map[string][]int{}
	for i, name := range list.Solver {
		groups[name] = append(groups[name], i)
	}
	return groups
}

// ExtraKeys 附加指标名称(排序)
func (list *Record) ExtraKeys() []string {
	seen := map[string]struct{}{}
	for _, m := range list.Extra {
		for k := range m {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LastVoltage 最后一次记录的电压
func (list *Record) LastVoltage() (vm, va []float64) {
	for i := len(list.Vm) - 1; i >= 0; i-- {
		if len(list.Vm[i]) > 0 {
			return list.Vm[i], list.Va[i]
		}
	}
	return nil, nil
}
