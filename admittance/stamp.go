package admittance

import (
	"gridflow/maths"
	"gridflow/types"
)

// PiModel 支路π型等值导纳
//
//	| If |   | Yff Yft | | Vf |
//	| It | = | Ytf Ytt | | Vt |
type PiModel struct {
	Yff, Yft, Ytf, Ytt complex128
}

// NewPiModel 计算支路π型模型
// ys = 1/(r+jx)，tap = ratio·e^{j·shift}，充电电纳两端各一半，变比在首端。
func NewPiModel(br *types.Branch) (PiModel, error) {
	if br.IsDegenerate() {
		return PiModel{}, types.NewError(types.KindDegenerateBranch,
			"支路 %d (%d-%d) 电阻与电抗均为零", br.ID, br.From, br.To)
	}
	ys := 1 / complex(br.R, br.X)
	tap := br.Tap()
	ytt := ys + complex(0, br.B/2)
	return PiModel{
		Yff: ytt / (tap * conj(tap)),
		Yft: -ys / conj(tap),
		Ytf: -ys / tap,
		Ytt: ytt,
	}, nil
}

// StampBranch 支路四点加盖
func StampBranch[T maths.Number](m *maths.SparseMatrix[T], f, t int, ff, ft, tf, tt T) {
	m.Increment(f, f, ff)
	m.Increment(f, t, ft)
	m.Increment(t, f, tf)
	m.Increment(t, t, tt)
}

// StampShunt 对地导纳加盖
func StampShunt[T maths.Number](m *maths.SparseMatrix[T], i int, y T) {
	m.Increment(i, i, y)
}

func conj(z complex128) complex128 { return complex(real(z), -imag(z)) }
