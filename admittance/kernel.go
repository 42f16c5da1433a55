package admittance

import "math"

// Term 极坐标下一项功率及其导数
// 变量顺序为 (θa, θb, Va, Vb)。
//
//	互项: P = Va·Vb·(G·cosθ + B·sinθ)，Q = Va·Vb·(G·sinθ - B·cosθ)，θ = θa-θb，y = G+jB
//	自项: P = Va²·G，Q = -Va²·B
type Term struct {
	P, Q   float64
	DP, DQ [4]float64
	HP, HQ [4][4]float64
}

// PairTerm Va·conj(y·Vb) 的功率与导数
func PairTerm(va, vb, ta, tb float64, y complex128) Term {
	g, b := real(y), imag(y)
	sin, cos := math.Sincos(ta - tb)
	fp := g*cos + b*sin
	fq := g*sin - b*cos
	vv := va * vb
	var t Term
	t.P, t.Q = vv*fp, vv*fq
	t.DP = [4]float64{-vv * fq, vv * fq, vb * fp, va * fp}
	t.DQ = [4]float64{vv * fp, -vv * fp, vb * fq, va * fq}
	// f'' = -f，fp' = -fq，fq' = fp
	t.HP = pairHessian(va, vb, fp, -fq)
	t.HQ = pairHessian(va, vb, fq, fp)
	return t
}

func pairHessian(va, vb, f, df float64) (h [4][4]float64) {
	vv := va * vb
	h[0][0], h[1][1] = -vv*f, -vv*f
	h[0][1], h[1][0] = vv*f, vv*f
	h[0][2], h[2][0] = vb*df, vb*df
	h[0][3], h[3][0] = va*df, va*df
	h[1][2], h[2][1] = -vb*df, -vb*df
	h[1][3], h[3][1] = -va*df, -va*df
	h[2][3], h[3][2] = f, f
	return h
}

// SelfTerm Va·conj(y·Va) 的功率与导数，只有 Va 分量非零
func SelfTerm(va float64, y complex128) Term {
	g, b := real(y), imag(y)
	var t Term
	t.P, t.Q = va*va*g, -va*va*b
	t.DP[2], t.DQ[2] = 2*va*g, -2*va*b
	t.HP[2][2], t.HQ[2][2] = 2*g, -2*b
	return t
}

// Add 合并
func (t Term) Add(o Term) Term {
	t.P += o.P
	t.Q += o.Q
	for i := 0; i < 4; i++ {
		t.DP[i] += o.DP[i]
		t.DQ[i] += o.DQ[i]
		for j := 0; j < 4; j++ {
			t.HP[i][j] += o.HP[i][j]
			t.HQ[i][j] += o.HQ[i][j]
		}
	}
	return t
}

// FlowTerm 支路一端功率 Sa = Va·conj(yaa·Va + yab·Vb)
func FlowTerm(va, vb, ta, tb float64, yaa, yab complex128) Term {
	return SelfTerm(va, yaa).Add(PairTerm(va, vb, ta, tb, yab))
}

// SquaredMagnitude |S|² 的梯度与Hessian
func (t Term) SquaredMagnitude() (s2 float64, d [4]float64, h [4][4]float64) {
	s2 = t.P*t.P + t.Q*t.Q
	for i := 0; i < 4; i++ {
		d[i] = 2 * (t.P*t.DP[i] + t.Q*t.DQ[i])
		for j := 0; j < 4; j++ {
			h[i][j] = 2 * (t.DP[i]*t.DP[j] + t.P*t.HP[i][j] + t.DQ[i]*t.DQ[j] + t.Q*t.HQ[i][j])
		}
	}
	return s2, d, h
}
