package maths

import "sort"

// Triplet 三元组(COO)构造器，重复位置累加
type Triplet[T Number] struct {
	rows, cols int
	i, j       []int
	v          []T
}

// NewTriplet 创建构造器
func NewTriplet[T Number](rows, cols, capacity int) *Triplet[T] {
	return &Triplet[T]{
		rows: rows,
		cols: cols,
		i:    make([]int, 0, capacity),
		j:    make([]int, 0, capacity),
		v:    make([]T, 0, capacity),
	}
}

// Append 追加元素
func (t *Triplet[T]) Append(i, j int, v T) {
	if i < 0 || i >= t.rows || j < 0 || j >= t.cols {
		panic("index out of range")
	}
	t.i = append(t.i, i)
	t.j = append(t.j, j)
	t.v = append(t.v, v)
}

// AppendMatrix 在 (r0,c0) 偏移处追加矩阵
func (t *Triplet[T]) AppendMatrix(r0, c0 int, m *SparseMatrix[T]) {
	m.Range(func(i, j int, v T) { t.Append(r0+i, c0+j, v) })
}

// AppendTranspose 在 (r0,c0) 偏移处追加矩阵转置
func (t *Triplet[T]) AppendTranspose(r0, c0 int, m *SparseMatrix[T]) {
	m.Range(func(i, j int, v T) { t.Append(r0+j, c0+i, v) })
}

// Len 元素数量
func (t *Triplet[T]) Len() int { return len(t.v) }

// ToCSR 压缩为CSR格式，保留结构零
func (t *Triplet[T]) ToCSR() *SparseMatrix[T] {
	m := NewSparseMatrix[T](t.rows, t.cols)
	count := make([]int, t.rows+1)
	for _, i := range t.i {
		count[i+1]++
	}
	for i := 0; i < t.rows; i++ {
		count[i+1] += count[i]
	}
	colInd := make([]int, len(t.v))
	values := make([]T, len(t.v))
	next := append([]int(nil), count[:t.rows]...)
	for k, i := range t.i {
		p := next[i]
		colInd[p], values[p] = t.j[k], t.v[k]
		next[i]++
	}
	// 行内排序并合并重复
	m.colInd = make([]int, 0, len(colInd))
	m.values = make([]T, 0, len(values))
	for i := 0; i < t.rows; i++ {
		start, end := count[i], count[i+1]
		row := rowSorter[T]{colInd[start:end], values[start:end]}
		sort.Sort(row)
		for p := start; p < end; p++ {
			if n := len(m.colInd); n > m.rowPtr[i] && m.colInd[n-1] == colInd[p] {
				m.values[n-1] += values[p]
				continue
			}
			m.colInd = append(m.colInd, colInd[p])
			m.values = append(m.values, values[p])
		}
		m.rowPtr[i+1] = len(m.colInd)
	}
	return m
}

type rowSorter[T Number] struct {
	col []int
	val []T
}

func (r rowSorter[T]) Len() int           { return len(r.col) }
func (r rowSorter[T]) Less(a, b int) bool { return r.col[a] < r.col[b] }
func (r rowSorter[T]) Swap(a, b int) {
	r.col[a], r.col[b] = r.col[b], r.col[a]
	r.val[a], r.val[b] = r.val[b], r.val[a]
}
