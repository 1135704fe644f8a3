package ovation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/common"
)

func TestProbEstimateRegression(t *testing.T) {
	tbl := constTable(Winter, Diffuse, ElectronEnergyFlux, 1, 0, 0.2, 1e-4, 0.9)
	e := NewSeasonalEstimatorFromTable(tbl, EstimatorOptions{})

	p, err := e.ProbEstimate(1000, 10, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, p, 1e-12)

	p, err = e.ProbEstimate(20000, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	p, err = e.ProbEstimate(-5000, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)
}

func TestProbEstimateEndToEnd(t *testing.T) {
	tbl := constTable(Winter, Diffuse, ElectronEnergyFlux, 0, 0, 0, 0, 0)
	setCell(tbl, 24, 140, 0.0634671, -2.70994e-06, 0.826437, 2.26261e-05)
	e := NewSeasonalEstimatorFromTable(tbl, EstimatorOptions{})

	const dF = 3134.17
	p, err := e.ProbEstimate(dF, 24, 140)
	require.NoError(t, err)
	wantP := 0.826437 + 2.26261e-05*dF
	assert.InDelta(t, wantP, p, 1e-12)
	assert.InDelta(t, 0.897, p, 1e-3)

	flux, err := e.EstimateAuroralFlux(dF, 24, 140)
	require.NoError(t, err)
	assert.InDelta(t, (0.0634671-2.70994e-06*dF)*wantP, flux, 1e-12)
}

func TestProbEstimateTabulatedFallback(t *testing.T) {
	tbl := constTable(Winter, Mono, ElectronEnergyFlux, 1, 0, 0, 0, 0)
	c := cellIndex(5, 5)
	for d := 0; d < NumDFBins; d++ {
		tbl.prob[c*NumDFBins+d] = 0.05 * float64(d+1)
	}
	e := NewSeasonalEstimatorFromTable(tbl, EstimatorOptions{})

	p, src, err := e.probEstimate(3*dFStep, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, probTabulated, src)
	assert.InDelta(t, 0.2, p, 1e-12)

	// Halves round to even: 2.5 -> 2, 3.5 -> 4.
	p, err = e.ProbEstimate(2.5*dFStep, 5, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, p, 1e-12)
	p, err = e.ProbEstimate(3.5*dFStep, 5, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p, 1e-12)

	// Out of range couplings clamp to the edge bins.
	p, err = e.ProbEstimate(-100, 5, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, p, 1e-12)
	p, err = e.ProbEstimate(1e6, 5, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, p, 1e-12)
}

func TestProbEstimateInterpolatedFallback(t *testing.T) {
	tbl := constTable(Winter, Wave, ElectronEnergyFlux, 1, 0, 0, 0, 0)
	c := cellIndex(7, 90)
	for d := 0; d < NumDFBins; d++ {
		tbl.prob[c*NumDFBins+d] = 0.05 * float64(d+1)
	}
	e := NewSeasonalEstimatorFromTable(tbl, EstimatorOptions{})

	tests := []struct {
		name string
		bin  int
		dF   float64
		want float64
	}{
		{"interior", 3, 3 * dFStep, (0.15 + 0.25) / 2},
		{"bottom edge", 0, 0, (0.15 + 0.10) / 2},
		{"top edge", NumDFBins - 1, 11 * dFStep, (0.55 + 0.50) / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := tbl.prob[c*NumDFBins+tt.bin]
			tbl.prob[c*NumDFBins+tt.bin] = 0
			defer func() { tbl.prob[c*NumDFBins+tt.bin] = saved }()

			p, src, err := e.probEstimate(tt.dF, 7, 90)
			require.NoError(t, err)
			assert.Equal(t, probInterpolated, src)
			assert.InDelta(t, tt.want, p, 1e-12)
		})
	}
}

func TestWhichDFBin(t *testing.T) {
	assert.Equal(t, 0, whichDFBin(-1))
	assert.Equal(t, 0, whichDFBin(0))
	assert.Equal(t, 1, whichDFBin(dFStep))
	assert.Equal(t, 8, whichDFBin(dFAve))
	assert.Equal(t, NumDFBins-1, whichDFBin(100*dFAve))
}

func TestProbEstimateIons(t *testing.T) {
	tbl := constTable(Winter, Ions, IonEnergyFlux, 0.5, 0, math.NaN(), math.NaN(), math.NaN())
	e := NewSeasonalEstimatorFromTable(tbl, EstimatorOptions{})

	p, err := e.ProbEstimate(2000, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	flux, err := e.EstimateAuroralFlux(2000, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, flux)
}

func TestEstimateMissingCoefficients(t *testing.T) {
	e := NewSeasonalEstimatorFromTable(newCoefficientTable(Winter, Diffuse, ElectronEnergyFlux), EstimatorOptions{})
	_, err := e.EstimateAuroralFlux(1000, 0, 0)
	assert.True(t, errors.Is(err, ErrMissingCoefficient))

	// Regression coefficients present but zero, tabulated value never loaded.
	tbl := newCoefficientTable(Winter, Diffuse, ElectronEnergyFlux)
	setCell(tbl, 1, 1, 1, 0, 0, 0)
	e = NewSeasonalEstimatorFromTable(tbl, EstimatorOptions{})
	_, err = e.ProbEstimate(1000, 1, 1)
	assert.True(t, errors.Is(err, ErrMissingCoefficient))

	// Probability present, flux coefficients missing.
	tbl = newCoefficientTable(Winter, Diffuse, ElectronEnergyFlux)
	setCell(tbl, 2, 2, math.NaN(), math.NaN(), 0.5, 0)
	e = NewSeasonalEstimatorFromTable(tbl, EstimatorOptions{})
	_, err = e.EstimateAuroralFlux(1000, 2, 2)
	assert.True(t, errors.Is(err, ErrMissingCoefficient))
}

func TestEstimateRangeErrors(t *testing.T) {
	e := NewSeasonalEstimatorFromTable(constTable(Winter, Diffuse, ElectronEnergyFlux, 1, 0, 1, 0, 1), EstimatorOptions{})

	var rerr *RangeError
	_, err := e.ProbEstimate(1000, NumMLTBins, 0)
	assert.True(t, errors.As(err, &rerr))
	_, err = e.ProbEstimate(1000, 0, -1)
	assert.True(t, errors.As(err, &rerr))
	_, err = e.EstimateAuroralFlux(math.NaN(), 0, 0)
	assert.True(t, errors.As(err, &rerr))
}

func TestNewSeasonalEstimatorSpeciesCheck(t *testing.T) {
	var rerr *RangeError
	_, err := NewSeasonalEstimator(t.TempDir(), Winter, Ions, ElectronEnergyFlux, EstimatorOptions{})
	assert.True(t, errors.As(err, &rerr))
	_, err = NewSeasonalEstimator(t.TempDir(), Winter, Diffuse, IonNumberFlux, EstimatorOptions{})
	assert.True(t, errors.As(err, &rerr))
}

func TestNewSeasonalEstimatorLoads(t *testing.T) {
	dir := t.TempDir()
	writeCoefficientFiles(t, dir, Summer, Diffuse, ElectronEnergyFlux, false)

	e, err := NewSeasonalEstimator(dir, Summer, Diffuse, ElectronEnergyFlux, EstimatorOptions{})
	require.NoError(t, err)
	assert.Equal(t, Summer, e.Season())
	assert.Equal(t, Diffuse, e.AuroralType())
	assert.Equal(t, ElectronEnergyFlux, e.FluxType())

	// synthetic bin (10, 20): b1p 0.5, b2p 1e-4, b1a 10.02, b2a -2e-5
	p, err := e.ProbEstimate(1000, 10, 20)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, p, 1e-12)

	flux, err := e.EstimateAuroralFlux(1000, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 5.0, flux) // (10.02-0.02)*0.6 = 6 is in (5, 10]
}

func TestCorrectFlux(t *testing.T) {
	tests := []struct {
		name  string
		atype AuroralType
		ftype FluxType
		in    float64
		want  float64
	}{
		{"negative", Diffuse, ElectronEnergyFlux, -1, 0},
		{"electron energy small", Diffuse, ElectronEnergyFlux, 3, 3},
		{"electron energy mid", Mono, ElectronEnergyFlux, 7, 5},
		{"electron energy large", Wave, ElectronEnergyFlux, 11, 0.5},
		{"electron energy at 10", Diffuse, ElectronEnergyFlux, 10, 5},
		{"electron energy at 5", Diffuse, ElectronEnergyFlux, 5, 5},
		{"electron number small", Diffuse, ElectronNumberFlux, 1e9, 1e9},
		{"electron number mid", Diffuse, ElectronNumberFlux, 5e9, 1e9},
		{"electron number large", Diffuse, ElectronNumberFlux, 3e10, 0},
		{"ion energy small", Ions, IonEnergyFlux, 1, 1},
		{"ion energy mid", Ions, IonEnergyFlux, 3, 2},
		{"ion energy large", Ions, IonEnergyFlux, 5, 0},
		{"ion number small", Ions, IonNumberFlux, 5e7, 5e7},
		{"ion number mid", Ions, IonNumberFlux, 2e8, 1e8},
		{"ion number large", Ions, IonNumberFlux, 6e8, 0},
		{"ion negative", Ions, IonNumberFlux, -3, 0},
		{"average energy untouched", Diffuse, ElectronAverageEnergy, 50, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CorrectFlux(tt.in, tt.atype, tt.ftype))
		})
	}
}

func TestCorrectFluxNeverNegative(t *testing.T) {
	for _, ft := range []FluxType{ElectronEnergyFlux, ElectronNumberFlux, ElectronAverageEnergy} {
		for x := -1e11; x <= 1e11; x += 7.3e8 {
			assert.GreaterOrEqual(t, CorrectFlux(x, Diffuse, ft), 0.0)
		}
	}
}

func TestEstimatorStats(t *testing.T) {
	stats := common.NewStats()
	tbl := constTable(Winter, Diffuse, ElectronEnergyFlux, 1, 0, 0, 0, 0.5)
	e := NewSeasonalEstimatorFromTable(tbl, EstimatorOptions{Stats: stats})

	_, err := e.GriddedFlux(1000, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*NumHemiMLatBins*NumMLTBins), stats.GetBins())
	assert.Equal(t, uint64(2*NumHemiMLatBins*NumMLTBins), stats.GetTabulatedFallbacks())
	assert.Equal(t, uint64(0), stats.GetInterpolatedFallbacks())
	assert.Equal(t, uint64(1), stats.GetGrids())
}
