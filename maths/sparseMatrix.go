package maths

import (
	"fmt"
	"sort"
	"strings"
)

// SparseMatrix 稀疏矩阵，CSR (Compressed Sparse Row) 格式存储
type SparseMatrix[T Number] struct {
	rows, cols int
	rowPtr     []int // 行指针数组
	colInd     []int // 列索引数组
	values     []T   // 非零元素值数组
}

// NewSparseMatrix 创建稀疏矩阵
func NewSparseMatrix[T Number](rows, cols int) *SparseMatrix[T] {
	return &SparseMatrix[T]{
		rows:   rows,
		cols:   cols,
		rowPtr: make([]int, rows+1), // 多一个元素用于存储结束位置
	}
}

// search 二分查找列索引
func (m *SparseMatrix[T]) search(row, col int) (pos int, ok bool) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		panic(fmt.Sprintf("index out of range: (%d,%d) in %dx%d", row, col, m.rows, m.cols))
	}
	start, end := m.rowPtr[row], m.rowPtr[row+1]
	pos = sort.Search(end-start, func(i int) bool {
		return m.colInd[start+i] >= col
	}) + start
	return pos, pos < end && m.colInd[pos] == col
}

// Set 设置矩阵元素
func (m *SparseMatrix[T]) Set(row, col int, value T) {
	pos, ok := m.search(row, col)
	switch {
	case ok && value == 0:
		m.deleteElement(row, pos)
	case ok:
		m.values[pos] = value
	case value != 0:
		m.insertElement(row, col, value, pos)
	}
}

// Increment 累加矩阵元素
func (m *SparseMatrix[T]) Increment(row, col int, value T) {
	if value == 0 {
		return
	}
	pos, ok := m.search(row, col)
	if ok {
		m.values[pos] += value
	} else {
		m.insertElement(row, col, value, pos)
	}
}

// Get 获取矩阵元素
func (m *SparseMatrix[T]) Get(row, col int) T {
	if pos, ok := m.search(row, col); ok {
		return m.values[pos]
	}
	return 0
}

// deleteElement 删除指定位置的元素
func (m *SparseMatrix[T]) deleteElement(row, pos int) {
	m.colInd = append(m.colInd[:pos], m.colInd[pos+1:]...)
	m.values = append(m.values[:pos], m.values[pos+1:]...)
	for i := row + 1; i <= m.rows; i++ {
		m.rowPtr[i]--
	}
}

// insertElement 在指定位置插入元素
func (m *SparseMatrix[T]) insertElement(row, col int, value T, pos int) {
	m.colInd = append(m.colInd, 0)
	m.values = append(m.values, 0)
	copy(m.colInd[pos+1:], m.colInd[pos:])
	copy(m.values[pos+1:], m.values[pos:])
	m.colInd[pos] = col
	m.values[pos] = value
	for i := row + 1; i <= m.rows; i++ {
		m.rowPtr[i]++
	}
}

// Rows 返回行数
func (m *SparseMatrix[T]) Rows() int { return m.rows }

// Cols 返回列数
func (m *SparseMatrix[T]) Cols() int { return m.cols }

// IsSquare 检查是否为方阵
func (m *SparseMatrix[T]) IsSquare() bool { return m.rows == m.cols }

// NonZeroCount 返回存储元素数量
func (m *SparseMatrix[T]) NonZeroCount() int { return len(m.values) }

// Row 第row行的列索引与值(共享底层存储，只读)
func (m *SparseMatrix[T]) Row(row int) ([]int, []T) {
	start, end := m.rowPtr[row], m.rowPtr[row+1]
	return m.colInd[start:end], m.values[start:end]
}

// Range 遍历所有存储元素
func (m *SparseMatrix[T]) Range(fn func(row, col int, value T)) {
	for i := 0; i < m.rows; i++ {
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			fn(i, m.colInd[p], m.values[p])
		}
	}
}

// Clear 清空
func (m *SparseMatrix[T]) Clear() {
	m.colInd = m.colInd[:0]
	m.values = m.values[:0]
	clear(m.rowPtr)
}

// Copy 复制矩阵
func (m *SparseMatrix[T]) Copy() *SparseMatrix[T] {
	return &SparseMatrix[T]{
		rows:   m.rows,
		cols:   m.cols,
		rowPtr: append([]int(nil), m.rowPtr...),
		colInd: append([]int(nil), m.colInd...),
		values: append([]T(nil), m.values...),
	}
}

// Scale 缩放
func (m *SparseMatrix[T]) Scale(s T) {
	for i := range m.values {
		m.values[i] *= s
	}
}

// MulVec 矩阵向量乘法 y = A*x
func (m *SparseMatrix[T]) MulVec(x []T) []T {
	y := make([]T, m.rows)
	m.MulVecTo(y, x)
	return y
}

// MulVecTo 矩阵向量乘法写入 dst
func (m *SparseMatrix[T]) MulVecTo(dst, x []T) {
	if len(x) != m.cols || len(dst) != m.rows {
		panic(ErrDimension)
	}
	for i := 0; i < m.rows; i++ {
		var sum T
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			sum += m.values[p] * x[m.colInd[p]]
		}
		dst[i] = sum
	}
}

// MulTransVec 转置乘法 y = Aᵀ*x
func (m *SparseMatrix[T]) MulTransVec(x []T) []T {
	if len(x) != m.rows {
		panic(ErrDimension)
	}
	y := make([]T, m.cols)
	for i := 0; i < m.rows; i++ {
		if x[i] == 0 {
			continue
		}
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			y[m.colInd[p]] += m.values[p] * x[i]
		}
	}
	return y
}

// Transpose 转置
func (m *SparseMatrix[T]) Transpose() *SparseMatrix[T] {
	t := NewTriplet[T](m.cols, m.rows, len(m.values))
	m.Range(func(i, j int, v T) { t.Append(j, i, v) })
	return t.ToCSR()
}

// ToDense 转换为稠密矩阵
func (m *SparseMatrix[T]) ToDense() [][]T {
	d := make([][]T, m.rows)
	for i := range d {
		d[i] = make([]T, m.cols)
	}
	m.Range(func(i, j int, v T) { d[i][j] += v })
	return d
}

// BuildFromDense 从稠密矩阵构建稀疏矩阵
func BuildFromDense[T Number](dense [][]T) *SparseMatrix[T] {
	rows, cols := len(dense), 0
	if rows > 0 {
		cols = len(dense[0])
	}
	t := NewTriplet[T](rows, cols, 0)
	for i, r := range dense {
		if len(r) != cols {
			panic("dimension mismatch")
		}
		for j, v := range r {
			if v != 0 {
				t.Append(i, j, v)
			}
		}
	}
	return t.ToCSR()
}

// String 字符串表示
func (m *SparseMatrix[T]) String() string {
	var sb strings.Builder
	for _, r := range m.ToDense() {
		for _, v := range r {
			fmt.Fprintf(&sb, "%8.4v ", v)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
