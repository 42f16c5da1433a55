package maths

import "sort"

// lu 稀疏LU分解
// 按列消元、行部分主元，消元过程在行哈希表上进行，只触及非零元素。
type lu[T Number] struct {
	n     int
	tol   float64     // 相对主元阈值
	perm  []int       // perm[k] 第k步主元所在原始行
	upper []sparseRow[T]
	lower [][]elim[T] // 第k步的消元因子
}

type sparseRow[T Number] struct {
	col []int
	val []T
}

type elim[T Number] struct {
	row    int
	factor T
}

// NewLU 创建稀疏LU分解
func NewLU[T Number](n int) LU[T] {
	return &lu[T]{n: n, tol: PivotTolerance}
}

// NewLUTol 指定主元阈值，0 表示只有零主元才视为奇异
func NewLUTol[T Number](n int, tol float64) LU[T] {
	return &lu[T]{n: n, tol: tol}
}

// Decompose 执行LU分解
// 1. 把矩阵展开为行哈希表并记录每列的非零行
// 2. 第k步在第k列的活动行中选绝对值最大者为主元(并列取行号小者)
// 3. 用主元行消去其余活动行的第k列，记录因子
func (lu *lu[T]) Decompose(matrix *SparseMatrix[T]) error {
	n := lu.n
	if matrix.Rows() != n || matrix.Cols() != n {
		return ErrDimension
	}
	rows := make([]map[int]T, n)
	cols := make([]map[int]struct{}, n)
	for i := range rows {
		rows[i] = map[int]T{}
		cols[i] = map[int]struct{}{}
	}
	// 每列原始最大值，主元低于 tol 倍视为奇异
	scale := make([]float64, n)
	matrix.Range(func(i, j int, v T) {
		if v == 0 {
			return
		}
		rows[i][j] += v
		cols[j][i] = struct{}{}
		scale[j] = max(scale[j], Abs(v))
	})
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}
	lu.perm = make([]int, n)
	lu.upper = make([]sparseRow[T], n)
	lu.lower = make([][]elim[T], n)
	for k := 0; k < n; k++ {
		// 寻找主元
		p, best := -1, 0.0
		for r := range cols[k] {
			if !active[r] {
				continue
			}
			a := Abs(rows[r][k])
			if a > best || (a == best && p >= 0 && r < p) {
				p, best = r, a
			}
		}
		if p < 0 || best <= lu.tol*scale[k] || best != best {
			return ErrSingular
		}
		active[p] = false
		lu.perm[k] = p
		pivotRow := rows[p]
		pivot := pivotRow[k]
		// 主元行即U的第k行
		u := sparseRow[T]{col: make([]int, 0, len(pivotRow)), val: make([]T, 0, len(pivotRow))}
		for j, v := range pivotRow {
			u.col = append(u.col, j)
			u.val = append(u.val, v)
			delete(cols[j], p)
		}
		sort.Sort(rowSorter[T](u))
		lu.upper[k] = u
		// 高斯消元
		for r := range cols[k] {
			row := rows[r]
			factor := row[k] / pivot
			lu.lower[k] = append(lu.lower[k], elim[T]{row: r, factor: factor})
			for idx, j := range u.col {
				if j == k {
					continue
				}
				if _, ok := row[j]; !ok {
					cols[j][r] = struct{}{}
				}
				row[j] -= factor * u.val[idx]
			}
			delete(row, k)
		}
		clear(cols[k])
	}
	return nil
}

// SolveReuse 解线性方程组 Ax = b
// 1. 前向替换：按记录的消元因子作用到b
// 2. 后向替换：从最后一个主元行开始回代
func (lu *lu[T]) SolveReuse(b, x []T) error {
	if len(b) != lu.n || len(x) != lu.n || lu.perm == nil {
		return ErrDimension
	}
	y := append([]T(nil), b...)
	for k := 0; k < lu.n; k++ {
		yp := y[lu.perm[k]]
		if yp == 0 {
			continue
		}
		for _, e := range lu.lower[k] {
			y[e.row] -= e.factor * yp
		}
	}
	for k := lu.n - 1; k >= 0; k-- {
		u := lu.upper[k]
		sum := y[lu.perm[k]]
		var diag T
		for idx, j := range u.col {
			if j == k {
				diag = u.val[idx]
				continue
			}
			sum -= u.val[idx] * x[j]
		}
		x[k] = sum / diag
		if isNaN(x[k]) {
			return ErrSingular
		}
	}
	return nil
}

// Solve 一次性求解 Ax = b
func Solve[T Number](a *SparseMatrix[T], b []T) ([]T, error) {
	return SolveTol(a, b, PivotTolerance)
}

// SolveTol 指定主元阈值一次性求解
func SolveTol[T Number](a *SparseMatrix[T], b []T, tol float64) ([]T, error) {
	f := NewLUTol[T](a.Rows(), tol)
	if err := f.Decompose(a); err != nil {
		return nil, err
	}
	x := make([]T, len(b))
	return x, f.SolveReuse(b, x)
}
