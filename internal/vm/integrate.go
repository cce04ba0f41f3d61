package vm

// stockDerivative computes each stock cell's net flow (ΣInflows -
// ΣOutflows) by reading already-evaluated flow values out of dst —
// spec.md §4.4's "new = prev + dt*(ΣI-ΣO)" rule, kept as one small
// generic routine the VM runs for every stock rather than compiled
// per-model bytecode, since the shape never varies.
func (s *Sim) stockDerivative(dst []float64) []float64 {
	out := make([]float64, len(dst))
	for _, fr := range s.Prog.Stocks {
		for i := 0; i < fr.Length; i++ {
			var inSum, outSum float64
			for _, off := range fr.Inflows {
				inSum += dst[off+i]
			}
			for _, off := range fr.Outflows {
				outSum += dst[off+i]
			}
			out[fr.StockOffset+i] = inSum - outSum
		}
	}
	return out
}

func (s *Sim) setStockValues(stage, base, deriv []float64, scale float64) {
	for _, fr := range s.Prog.Stocks {
		for i := 0; i < fr.Length; i++ {
			off := fr.StockOffset + i
			stage[off] = base[off] + scale*deriv[off]
		}
	}
}

func clampNonNegative(nonNegative bool, v float64) float64 {
	if nonNegative && v < 0 {
		return 0
	}
	return v
}

// stepEuler is the default integrator: one evaluation of the step
// program against prev, then a direct forward-Euler stock update.
func (s *Sim) stepEuler() {
	env := &evalEnv{data: s.data, prevSrc: s.prev}
	for _, vc := range s.Prog.Step {
		s.execVarCode(vc, env)
	}
	d := s.stockDerivative(s.data)
	for _, fr := range s.Prog.Stocks {
		for i := 0; i < fr.Length; i++ {
			off := fr.StockOffset + i
			s.data[off] = clampNonNegative(fr.NonNegative, s.prev[off]+s.dt*d[off])
		}
	}
}

// stepRK4 runs the classic four-stage Runge-Kutta integrator: the step
// program is re-evaluated at four successive stock estimates (y0,
// y0+dt/2*k1, y0+dt/2*k2, y0+dt*k3) to get four flow-derivative samples,
// combined with RK4's standard 1-2-2-1 weights. A fifth, final
// evaluation against the unchanged prev array reproduces the ordinary
// (Euler-consistent) non-stock values for this step's recorded frame,
// since those are reporting output rather than integration input.
func (s *Sim) stepRK4() {
	total := len(s.data)
	y0 := make([]float64, total)
	copy(y0, s.prev)

	stage := make([]float64, total)
	copy(stage, y0)
	env := &evalEnv{data: stage, prevSrc: stage}

	runStage := func() []float64 {
		for _, vc := range s.Prog.Step {
			s.execVarCode(vc, env)
		}
		return s.stockDerivative(stage)
	}

	d1 := runStage()
	s.setStockValues(stage, y0, d1, s.dt/2)
	d2 := runStage()
	s.setStockValues(stage, y0, d2, s.dt/2)
	d3 := runStage()
	s.setStockValues(stage, y0, d3, s.dt)
	d4 := runStage()

	finalEnv := &evalEnv{data: s.data, prevSrc: s.prev}
	for _, vc := range s.Prog.Step {
		s.execVarCode(vc, finalEnv)
	}
	for _, fr := range s.Prog.Stocks {
		for i := 0; i < fr.Length; i++ {
			off := fr.StockOffset + i
			avg := (d1[off] + 2*d2[off] + 2*d3[off] + d4[off]) / 6
			s.data[off] = clampNonNegative(fr.NonNegative, y0[off]+s.dt*avg)
		}
	}
}
