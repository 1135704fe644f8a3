package ovation

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/common"
)

// EstimatorOptions configures a SeasonalEstimator.
type EstimatorOptions struct {
	Load   LoadOptions
	Stats  *common.Stats
	Logger *zap.SugaredLogger
}

// SeasonalEstimator turns one season's coefficient table and a coupling
// strength into probability and flux estimates.
type SeasonalEstimator struct {
	table  *CoefficientTable
	stats  *common.Stats
	logger *zap.SugaredLogger
}

// NewSeasonalEstimator loads the coefficient files for (season, atype, ftype)
// from dir.
func NewSeasonalEstimator(dir string, season Season, atype AuroralType, ftype FluxType, opts EstimatorOptions) (*SeasonalEstimator, error) {
	if err := checkTypes(atype, ftype); err != nil {
		return nil, err
	}
	if opts.Load.Logger == nil {
		opts.Load.Logger = opts.Logger
	}
	table, err := LoadCoefficientTable(dir, season, atype, ftype, opts.Load)
	if err != nil {
		return nil, err
	}
	return NewSeasonalEstimatorFromTable(table, opts), nil
}

// NewSeasonalEstimatorFromTable wraps an already loaded table.
func NewSeasonalEstimatorFromTable(table *CoefficientTable, opts EstimatorOptions) *SeasonalEstimator {
	if opts.Stats == nil {
		opts.Stats = common.NewStats()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &SeasonalEstimator{table: table, stats: opts.Stats, logger: opts.Logger}
}

// checkTypes rejects electron flux types on the ion model and vice versa.
func checkTypes(atype AuroralType, ftype FluxType) error {
	if !atype.valid() {
		return &RangeError{What: "auroral type", Value: int(atype)}
	}
	if !ftype.valid() {
		return &RangeError{What: "flux type", Value: int(ftype)}
	}
	if (atype == Ions) != ftype.IsIon() {
		return &RangeError{What: "flux type for " + atype.String(), Value: ftype.String()}
	}
	return nil
}

func (e *SeasonalEstimator) Season() Season           { return e.table.Season }
func (e *SeasonalEstimator) AuroralType() AuroralType { return e.table.AuroralType }
func (e *SeasonalEstimator) FluxType() FluxType       { return e.table.FluxType }
func (e *SeasonalEstimator) Table() *CoefficientTable { return e.table }

// =============================================================================
// Probability of Precipitation
// =============================================================================

type probSource int

const (
	probRegression probSource = iota
	probTabulated
	probInterpolated
	probNone // auroral type without a probability model
)

// whichDFBin returns the tabulated bin for a coupling strength, clamped to
// [0, NumDFBins-1]. Halves round to even.
func whichDFBin(dF float64) int {
	i := math.RoundToEven(dF / dFStep)
	if i < 0 {
		return 0
	}
	if i > NumDFBins-1 {
		return NumDFBins - 1
	}
	return int(i)
}

// ProbEstimate returns the probability of precipitation in a bin for
// coupling strength dF.
//
// The linear fit b1p + b2p*dF is used, clamped to [0, 1]. A bin whose fit is
// all zero falls back to the tabulated dF-bin value; a zero tabulated value
// is replaced by the mean of two neighbouring dF bins (-1 and +1, or +1 and
// +2 at the bottom edge, -1 and -2 at the top edge).
func (e *SeasonalEstimator) ProbEstimate(dF float64, mltBin, mlatBin int) (float64, error) {
	p, _, err := e.probEstimate(dF, mltBin, mlatBin)
	return p, err
}

func (e *SeasonalEstimator) probEstimate(dF float64, mltBin, mlatBin int) (float64, probSource, error) {
	if err := checkBin(mltBin, mlatBin); err != nil {
		return 0, probNone, err
	}
	if math.IsNaN(dF) {
		return 0, probNone, &RangeError{What: "coupling strength", Value: dF}
	}
	if !e.table.AuroralType.HasProbabilityModel() {
		return 1, probNone, nil
	}

	b1, b2 := e.table.ProbabilityCoefficients(mltBin, mlatBin)
	if math.IsNaN(b1) || math.IsNaN(b2) {
		return 0, probNone, fmt.Errorf("probability coefficients at (%d,%d): %w", mltBin, mlatBin, ErrMissingCoefficient)
	}

	p := b1 + b2*dF
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	if b1 != 0 || b2 != 0 {
		return p, probRegression, nil
	}

	i := whichDFBin(dF)
	p = e.table.Tabulated(mltBin, mlatBin, i)
	source := probTabulated
	if p == 0 {
		i1 := i - 1
		if i == 0 {
			i1 = i + 2
		}
		i2 := i + 1
		if i == NumDFBins-1 {
			i2 = i - 2
		}
		p = (e.table.Tabulated(mltBin, mlatBin, i1) + e.table.Tabulated(mltBin, mlatBin, i2)) / 2
		source = probInterpolated
	}
	if math.IsNaN(p) {
		return 0, probNone, fmt.Errorf("tabulated probability at (%d,%d) dF bin %d: %w", mltBin, mlatBin, i, ErrMissingCoefficient)
	}
	return p, source, nil
}

// =============================================================================
// Flux
// =============================================================================

// EstimateAuroralFlux returns the corrected flux in a bin:
// (b1a + b2a*dF) * ProbEstimate, passed through CorrectFlux.
func (e *SeasonalEstimator) EstimateAuroralFlux(dF float64, mltBin, mlatBin int) (float64, error) {
	flux, _, err := e.estimateAuroralFlux(dF, mltBin, mlatBin)
	return flux, err
}

func (e *SeasonalEstimator) estimateAuroralFlux(dF float64, mltBin, mlatBin int) (float64, probSource, error) {
	p, source, err := e.probEstimate(dF, mltBin, mlatBin)
	if err != nil {
		return 0, source, err
	}
	b1, b2 := e.table.FluxCoefficients(mltBin, mlatBin)
	if math.IsNaN(b1) || math.IsNaN(b2) {
		return 0, source, fmt.Errorf("flux coefficients at (%d,%d): %w", mltBin, mlatBin, ErrMissingCoefficient)
	}
	flux := (b1 + b2*dF) * p
	return CorrectFlux(flux, e.table.AuroralType, e.table.FluxType), source, nil
}

// CorrectFlux applies the empirical clamps of the model.
//
// The threshold checks run largest first, so an electron energy flux above
// 10 becomes 0.5 while one in (5, 10] becomes 5. This ordering is inherited
// from the published model and kept as is.
func CorrectFlux(flux float64, atype AuroralType, ftype FluxType) float64 {
	if flux < 0 {
		flux = 0
	}

	if atype != Ions {
		switch ftype {
		case ElectronEnergyFlux:
			if flux > 10 {
				flux = 0.5
			} else if flux > 5 {
				flux = 5
			}
		case ElectronNumberFlux:
			if flux > 2.0e10 {
				flux = 0
			} else if flux > 2.0e9 {
				flux = 1.0e9
			}
		}
		return flux
	}

	switch ftype {
	case IonEnergyFlux:
		if flux > 4 {
			flux = 0
		} else if flux > 2 {
			flux = 2
		}
	case IonNumberFlux:
		if flux > 5.0e8 {
			flux = 0
		} else if flux > 1.0e8 {
			flux = 1.0e8
		}
	}
	return flux
}
