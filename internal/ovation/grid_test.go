package ovation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinateValues(t *testing.T) {
	assert.Equal(t, -90.0, MLatValue(0))
	assert.Equal(t, -50.0, MLatValue(NumHemiMLatBins-1))
	assert.Equal(t, 50.0, MLatValue(NumHemiMLatBins))
	assert.Equal(t, 90.0, MLatValue(NumMLatBins-1))

	assert.Equal(t, 0.0, MLTValue(0))
	assert.Equal(t, 24.0, MLTValue(NumMLTBins-1))
}

func TestGriddedFluxHemispheres(t *testing.T) {
	tbl := constTable(Spring, Diffuse, ElectronEnergyFlux, 1, 0, 1, 0, 1)
	// southern bin (mlt 3, mlat 10) and its northern twin (mlt 3, mlat 90)
	setCell(tbl, 3, 10, 4, 0, 1, 0)
	setCell(tbl, 3, NumHemiMLatBins+10, 2, 0, 1, 0)
	e := NewSeasonalEstimatorFromTable(tbl, EstimatorOptions{})

	grids, err := e.GriddedFlux(1000, true)
	require.NoError(t, err)

	rows, cols := grids.North.Flux.Dims()
	assert.Equal(t, NumHemiMLatBins, rows)
	assert.Equal(t, NumMLTBins, cols)

	assert.Equal(t, 2.0, grids.North.Flux.At(10, 3))
	assert.Equal(t, 4.0, grids.South.Flux.At(10, 3))
	assert.Equal(t, 3.0, grids.Combined.Flux.At(10, 3))
	assert.Equal(t, 1.0, grids.Combined.Flux.At(0, 0))

	assert.Equal(t, MLatValue(NumHemiMLatBins+10), grids.North.MLat.At(10, 3))
	assert.Equal(t, MLatValue(10), grids.South.MLat.At(10, 3))
	assert.Equal(t, MLTValue(3), grids.North.MLT.At(10, 3))
	assert.Equal(t, grids.North.MLat, grids.Combined.MLat)
}

func TestGriddedFluxWithoutCombine(t *testing.T) {
	e := NewSeasonalEstimatorFromTable(constTable(Spring, Diffuse, ElectronEnergyFlux, 1, 0, 1, 0, 1), EstimatorOptions{})
	grids, err := e.GriddedFlux(1000, false)
	require.NoError(t, err)
	assert.Nil(t, grids.Combined)
}

func TestGriddedFluxAbortsOnMissingCoefficient(t *testing.T) {
	tbl := constTable(Spring, Diffuse, ElectronEnergyFlux, 1, 0, 1, 0, 1)
	setCell(tbl, 50, 120, math.NaN(), math.NaN(), 1, 0)
	e := NewSeasonalEstimatorFromTable(tbl, EstimatorOptions{})

	grids, err := e.GriddedFlux(1000, true)
	assert.Nil(t, grids)
	assert.True(t, errors.Is(err, ErrMissingCoefficient))
}
