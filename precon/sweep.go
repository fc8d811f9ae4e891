package precon

func (p *Preconditioner[K]) scale(y, x []float64, trans bool) {
	var (
		k   = p.kern
		r   = p.m.Rank()
		tmp = make([]float64, r)
	)
	for e := 0; e < p.m.NRows(); e++ {
		copy(tmp, x[e*r:e*r+r])
		if trans {
			k.TransMulVec(y[e*r:e*r+r], p.Inverse(e), tmp)
		} else {
			k.MulVec(y[e*r:e*r+r], p.Inverse(e), tmp)
		}
	}
}

// forward solves (D+L)·y = x in ascending element order. For the transpose
// the strictly lower part is Uᵀ and the diagonal Dᵀ.
func (p *Preconditioner[K]) forward(y, x []float64, trans bool) {
	var (
		m     = p.m
		k     = p.kern
		r     = m.Rank()
		lower = m.Addressing().LowerAddr()
		tmp   = make([]float64, r)
	)
	for e := 0; e < m.NRows(); e++ {
		copy(tmp, x[e*r:e*r+r])
		for _, b := range m.Addressing().NeighbourBonds(e) {
			o := lower[b]
			if trans {
				k.TransMulVecSub(tmp, m.Upper(b), y[o*r:o*r+r])
			} else {
				k.MulVecSub(tmp, m.Lower(b), y[o*r:o*r+r])
			}
		}
		if trans {
			k.TransMulVec(y[e*r:e*r+r], p.Inverse(e), tmp)
		} else {
			k.MulVec(y[e*r:e*r+r], p.Inverse(e), tmp)
		}
	}
}

// backward applies (I + D⁻¹U)⁻¹ in place, descending. For the transpose the
// strictly upper part is Lᵀ.
func (p *Preconditioner[K]) backward(y []float64, trans bool) {
	var (
		m     = p.m
		k     = p.kern
		r     = m.Rank()
		upper = m.Addressing().UpperAddr()
		tmp   = make([]float64, r)
	)
	for e := m.NRows() - 1; e >= 0; e-- {
		owned := m.Addressing().OwnedBonds(e)
		if len(owned) == 0 {
			continue
		}
		clear(tmp)
		for _, b := range owned {
			n := upper[b]
			if trans {
				k.TransMulVecAdd(tmp, m.Lower(b), y[n*r:n*r+r])
			} else {
				k.MulVecAdd(tmp, m.Upper(b), y[n*r:n*r+r])
			}
		}
		if trans {
			k.TransMulVecSub(y[e*r:e*r+r], p.Inverse(e), tmp)
		} else {
			k.MulVecSub(y[e*r:e*r+r], p.Inverse(e), tmp)
		}
	}
}
