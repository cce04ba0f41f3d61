package vm

import (
	"math"

	"github.com/sd-lang/sdcore/internal/compiler"
)

// safeDiv, safeMod, safePow and the math builtins never panic: spec.md
// §4.2's propagation policy makes division by zero, NaN, and other
// runtime anomalies propagate as NaN rather than abort the simulation.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	return a / b
}

func safeMod(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	return math.Mod(a, b)
}

func safePow(a, b float64) float64 {
	return math.Pow(a, b)
}

func unaryMath(op compiler.Opcode, x float64) float64 {
	switch op {
	case compiler.OpAbs:
		return math.Abs(x)
	case compiler.OpExp:
		return math.Exp(x)
	case compiler.OpLn:
		if x <= 0 {
			return math.NaN()
		}
		return math.Log(x)
	case compiler.OpLog10:
		if x <= 0 {
			return math.NaN()
		}
		return math.Log10(x)
	case compiler.OpSqrt:
		if x < 0 {
			return math.NaN()
		}
		return math.Sqrt(x)
	case compiler.OpSin:
		return math.Sin(x)
	case compiler.OpCos:
		return math.Cos(x)
	case compiler.OpTan:
		return math.Tan(x)
	case compiler.OpArcsin:
		return math.Asin(x)
	case compiler.OpArccos:
		return math.Acos(x)
	case compiler.OpArctan:
		return math.Atan(x)
	case compiler.OpInteger:
		return math.Trunc(x)
	}
	return math.NaN()
}

func minSlice(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		if x < m {
			m = x
		}
	}
	return m
}

func maxSlice(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}
