package ovation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// SeasonalWeight maps every season to its weight for one day of year.
// Exactly the two seasons bracketing the day are nonzero and sum to 1.
type SeasonalWeight map[Season]float64

// SeasonWeights weights the seasons for day of year doy. Each window between
// a solstice/equinox pair ramps the incoming season linearly from 0 to 1:
//
//	[79, 171)  spring -> summer
//	[171, 263) summer -> fall
//	[263, 354) fall   -> winter
//	[354, 79)  winter -> spring, wrapping the year end
func SeasonWeights(doy float64) SeasonalWeight {
	w := SeasonalWeight{Winter: 0, Spring: 0, Summer: 0, Fall: 0}

	switch {
	case doy >= 79 && doy < 171:
		w[Summer] = 1 - (171-doy)/92
		w[Spring] = 1 - w[Summer]
	case doy >= 171 && doy < 263:
		w[Fall] = 1 - (263-doy)/92
		w[Summer] = 1 - w[Fall]
	case doy >= 263 && doy < 354:
		w[Winter] = 1 - (354-doy)/91
		w[Fall] = 1 - w[Winter]
	default:
		doy0 := doy
		if doy >= 354 {
			doy0 = doy - 365
		}
		w[Spring] = 1 - (79-doy0)/90
		w[Winter] = 1 - w[Spring]
	}
	return w
}

// CouplingSource supplies the averaged solar wind coupling strength for a time.
type CouplingSource interface {
	AvgCoupling(ctx context.Context, t time.Time) (float64, error)
}

// FluxMap is a season-blended flux grid for one time and hemisphere.
type FluxMap struct {
	Grid
	Time       time.Time
	Hemisphere Hemisphere
	Coupling   float64
	Weights    SeasonalWeight
}

// FluxEstimatorOptions configures a FluxEstimator. Seasonal, when set,
// supplies prebuilt estimators for all four seasons instead of loading them.
type FluxEstimatorOptions struct {
	EstimatorOptions
	Seasonal map[Season]*SeasonalEstimator
}

// FluxEstimator blends the four seasonal models of one auroral and flux type.
type FluxEstimator struct {
	atype    AuroralType
	ftype    FluxType
	seasonal map[Season]*SeasonalEstimator
	coupling CouplingSource
	logger   *zap.SugaredLogger
}

// NewFluxEstimator builds an estimator for atype/ftype. All four seasons are
// required regardless of the dates later queried.
func NewFluxEstimator(dir string, atype AuroralType, ftype FluxType, coupling CouplingSource, opts FluxEstimatorOptions) (*FluxEstimator, error) {
	if err := checkTypes(atype, ftype); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	seasonal := make(map[Season]*SeasonalEstimator, len(Seasons))
	if opts.Seasonal != nil {
		for _, s := range Seasons {
			est, ok := opts.Seasonal[s]
			if !ok || est == nil {
				return nil, &RangeError{What: "seasonal estimators, missing season", Value: s.String()}
			}
			if est.AuroralType() != atype || est.FluxType() != ftype || est.Season() != s {
				return nil, &RangeError{
					What:  fmt.Sprintf("seasonal estimator for %s %s", atype, ftype),
					Value: fmt.Sprintf("%s %s %s", est.Season(), est.AuroralType(), est.FluxType()),
				}
			}
			seasonal[s] = est
		}
	} else {
		for _, s := range Seasons {
			est, err := NewSeasonalEstimator(dir, s, atype, ftype, opts.EstimatorOptions)
			if err != nil {
				return nil, err
			}
			seasonal[s] = est
		}
	}

	return &FluxEstimator{
		atype:    atype,
		ftype:    ftype,
		seasonal: seasonal,
		coupling: coupling,
		logger:   opts.Logger,
	}, nil
}

func (f *FluxEstimator) AuroralType() AuroralType { return f.atype }
func (f *FluxEstimator) FluxType() FluxType       { return f.ftype }

// Seasonal returns the estimator for one season.
func (f *FluxEstimator) Seasonal(s Season) *SeasonalEstimator { return f.seasonal[s] }

// DayOfYear returns the day of year used for hemisphere hemi at t. The
// southern hemisphere uses the opposite season: 365 - doy.
func DayOfYear(t time.Time, hemi Hemisphere) float64 {
	doy := float64(t.UTC().YearDay())
	if hemi == South {
		doy = 365 - doy
	}
	return doy
}

// FluxForTime returns the season-blended, hemisphere-combined flux grid at t.
// Southern grids carry negative latitudes.
func (f *FluxEstimator) FluxForTime(ctx context.Context, t time.Time, hemi Hemisphere) (*FluxMap, error) {
	if hemi != North && hemi != South {
		return nil, &RangeError{What: "hemisphere", Value: int(hemi)}
	}
	if f.coupling == nil {
		return nil, fmt.Errorf("flux for %s: no coupling source configured", t.Format(time.RFC3339))
	}
	dF, err := f.coupling.AvgCoupling(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("coupling at %s: %w", t.Format(time.RFC3339), err)
	}

	m, err := f.FluxForCoupling(dF, DayOfYear(t, hemi), hemi)
	if err != nil {
		return nil, err
	}
	m.Time = t
	return m, nil
}

// FluxForCoupling blends the seasonal grids for day of year doy at a known
// coupling strength.
func (f *FluxEstimator) FluxForCoupling(dF, doy float64, hemi Hemisphere) (*FluxMap, error) {
	weights := SeasonWeights(doy)

	flux := mat.NewDense(NumHemiMLatBins, NumMLTBins, nil)
	scaled := mat.NewDense(NumHemiMLatBins, NumMLTBins, nil)
	var coords *Grid
	for _, s := range Seasons {
		w := weights[s]
		if w <= 0 {
			continue
		}
		grids, err := f.seasonal[s].GriddedFlux(dF, true)
		if err != nil {
			return nil, fmt.Errorf("%s grid: %w", s, err)
		}
		scaled.Scale(w, grids.Combined.Flux)
		flux.Add(flux, scaled)
		coords = grids.Combined
	}
	if coords == nil {
		return nil, fmt.Errorf("no season has weight for day of year %.1f", doy)
	}

	mlat := mat.DenseCopyOf(coords.MLat)
	if hemi == South {
		mlat.Scale(-1, mlat)
	}
	f.logger.Debugf("Blended %s %s for doy %.0f (%s) at dF=%.2f", f.atype, f.ftype, doy, hemi, dF)

	return &FluxMap{
		Grid:       Grid{MLat: mlat, MLT: mat.DenseCopyOf(coords.MLT), Flux: flux},
		Hemisphere: hemi,
		Coupling:   dF,
		Weights:    weights,
	}, nil
}
