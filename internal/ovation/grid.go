package ovation

import (
	"gonum.org/v1/gonum/mat"
)

// Grid is a hemisphere map: rows are latitude bins, columns MLT bins.
// MLat and MLT hold the coordinates of each cell of Flux.
type Grid struct {
	MLat *mat.Dense
	MLT  *mat.Dense
	Flux *mat.Dense
}

// HemisphereGrids is the result of one full sweep of a seasonal model.
// Combined is set only when the hemispheres were averaged.
type HemisphereGrids struct {
	North    Grid
	South    Grid
	Combined *Grid
}

// MLatValue returns the latitude of an mlat bin: -90..-50 for bins 0-79 and
// 50..90 for bins 80-159.
func MLatValue(mlatBin int) float64 {
	const span = 40.0
	if mlatBin < NumHemiMLatBins {
		return -90 + span*float64(mlatBin)/float64(NumHemiMLatBins-1)
	}
	return 50 + span*float64(mlatBin-NumHemiMLatBins)/float64(NumHemiMLatBins-1)
}

// MLTValue returns the magnetic local time, in hours, of an mlt bin.
func MLTValue(mltBin int) float64 {
	return 24 * float64(mltBin) / float64(NumMLTBins-1)
}

// coordinateGrids builds the mlat/mlt coordinates for the hemisphere whose
// first latitude bin is offset.
func coordinateGrids(offset int) (mlat, mlt *mat.Dense) {
	mlat = mat.NewDense(NumHemiMLatBins, NumMLTBins, nil)
	mlt = mat.NewDense(NumHemiMLatBins, NumMLTBins, nil)
	for j := 0; j < NumHemiMLatBins; j++ {
		lat := MLatValue(offset + j)
		for i := 0; i < NumMLTBins; i++ {
			mlat.Set(j, i, lat)
			mlt.Set(j, i, MLTValue(i))
		}
	}
	return mlat, mlt
}

// GriddedFlux evaluates every bin of both hemispheres for coupling strength
// dF. With combine set, Combined holds the elementwise mean of the two
// hemispheres on the northern coordinates. Any bin failure aborts the sweep.
func (e *SeasonalEstimator) GriddedFlux(dF float64, combine bool) (*HemisphereGrids, error) {
	north := mat.NewDense(NumHemiMLatBins, NumMLTBins, nil)
	south := mat.NewDense(NumHemiMLatBins, NumMLTBins, nil)

	var tabulated, interpolated int
	count := func(s probSource) {
		switch s {
		case probTabulated:
			tabulated++
			e.stats.AddTabulatedFallback()
		case probInterpolated:
			interpolated++
			e.stats.AddInterpolatedFallback()
		}
	}

	for i := 0; i < NumMLTBins; i++ {
		for j := 0; j < NumHemiMLatBins; j++ {
			fn, sn, err := e.estimateAuroralFlux(dF, i, NumHemiMLatBins+j)
			if err != nil {
				return nil, err
			}
			fs, ss, err := e.estimateAuroralFlux(dF, i, j)
			if err != nil {
				return nil, err
			}
			north.Set(j, i, fn)
			south.Set(j, i, fs)
			count(sn)
			count(ss)
		}
	}
	e.stats.AddBins(uint64(2 * NumHemiMLatBins * NumMLTBins))
	e.stats.AddGrid()
	e.logger.Debugf("Swept %s %s %s grid at dF=%.2f: %d tabulated, %d interpolated probabilities",
		e.table.Season, e.table.AuroralType, e.table.FluxType, dF, tabulated, interpolated)

	mlatN, mltN := coordinateGrids(NumHemiMLatBins)
	mlatS, mltS := coordinateGrids(0)
	out := &HemisphereGrids{
		North: Grid{MLat: mlatN, MLT: mltN, Flux: north},
		South: Grid{MLat: mlatS, MLT: mltS, Flux: south},
	}
	if combine {
		avg := mat.NewDense(NumHemiMLatBins, NumMLTBins, nil)
		avg.Add(north, south)
		avg.Scale(0.5, avg)
		out.Combined = &Grid{MLat: mlatN, MLT: mltN, Flux: avg}
	}
	return out, nil
}
