package ovation

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// constTable returns a fully populated table with the same coefficients and
// tabulated probability in every bin.
func constTable(season Season, atype AuroralType, ftype FluxType, b1a, b2a, b1p, b2p, prob float64) *CoefficientTable {
	t := newCoefficientTable(season, atype, ftype)
	for c := 0; c < numCells; c++ {
		t.b1a[c], t.b2a[c] = b1a, b2a
		t.b1p[c], t.b2p[c] = b1p, b2p
		for d := 0; d < NumDFBins; d++ {
			t.prob[c*NumDFBins+d] = prob
		}
		t.order = append(t.order, c)
	}
	return t
}

// setCell overrides the coefficients of one bin.
func setCell(t *CoefficientTable, mlt, mlat int, b1a, b2a, b1p, b2p float64) {
	c := cellIndex(mlt, mlat)
	t.b1a[c], t.b2a[c] = b1a, b2a
	t.b1p[c], t.b2p[c] = b1p, b2p
}

func fmtG(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// fileOrder lists the cells in the order synthetic files write them:
// mlt descending, mlat ascending.
func fileOrder() [][2]int {
	order := make([][2]int, 0, numCells)
	for mlt := NumMLTBins - 1; mlt >= 0; mlt-- {
		for mlat := 0; mlat < NumMLatBins; mlat++ {
			order = append(order, [2]int{mlt, mlat})
		}
	}
	return order
}

func synthAurora(mlt, mlat int) (b1, b2 float64) {
	return float64(mlt) + float64(mlat)/1000, -float64(mlat) * 1e-6
}

func synthProbCoef(mlt, mlat int) (b1, b2 float64) {
	return 0.5, float64(mlt) * 1e-5
}

// synthProb is the k-th flat probability value.
func synthProb(k int) float64 {
	return float64(k%1000) / 1000
}

const testAuroraHeader = "Ovation Prime synthetic aurora coefficients"
const testProbHeader = "Ovation Prime synthetic probability coefficients"

func create(t *testing.T, path string, gz bool) (*bufio.Writer, func()) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)

	var w io.Writer = f
	var zw *gzip.Writer
	if gz {
		zw = gzip.NewWriter(f)
		w = zw
	}
	bw := bufio.NewWriter(w)
	return bw, func() {
		require.NoError(t, bw.Flush())
		if zw != nil {
			require.NoError(t, zw.Close())
		}
		require.NoError(t, f.Close())
	}
}

// writeCoefficientFiles writes a complete synthetic aurora file, and the
// probability file when atype has one, in the on-disk naming scheme.
func writeCoefficientFiles(t *testing.T, dir string, season Season, atype AuroralType, ftype FluxType, gz bool) {
	t.Helper()
	ext := ".txt"
	if gz {
		ext = ".txt.gz"
	}
	suffix := ""
	if ftype.IsNumberFlux() {
		suffix = "_n"
	}

	w, done := create(t, filepath.Join(dir, season.String()+"_"+atype.String()+suffix+ext), gz)
	w.WriteString(testAuroraHeader + "\n")
	for _, cell := range fileOrder() {
		b1, b2 := synthAurora(cell[0], cell[1])
		w.WriteString(strconv.Itoa(cell[0]) + " " + strconv.Itoa(cell[1]) + " " + fmtG(b1) + " " + fmtG(b2) + "\n")
	}
	done()

	if !atype.HasProbabilityModel() {
		return
	}
	w, done = create(t, filepath.Join(dir, season.String()+"_prob_b_"+atype.String()+ext), gz)
	w.WriteString(testProbHeader + "\n")
	for _, cell := range fileOrder() {
		b1, b2 := synthProbCoef(cell[0], cell[1])
		w.WriteString(fmtG(b1) + " " + fmtG(b2) + "\n")
	}
	for k := 0; k < numCells*NumDFBins; k++ {
		w.WriteString(fmtG(synthProb(k)))
		if (k+1)%NumDFBins == 0 {
			w.WriteString("\n")
		} else {
			w.WriteString(" ")
		}
	}
	done()
}

// writeLines writes raw lines to dir/name.
func writeLines(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	w, done := create(t, filepath.Join(dir, name), false)
	for _, l := range lines {
		w.WriteString(l + "\n")
	}
	done()
}

// fixedCoupling is a CouplingSource returning a constant or an error.
type fixedCoupling struct {
	dF    float64
	err   error
	calls []time.Time
}

func (f *fixedCoupling) AvgCoupling(_ context.Context, t time.Time) (float64, error) {
	f.calls = append(f.calls, t)
	return f.dF, f.err
}

// seasonalSet builds four constant-flux estimators for diffuse electron
// energy flux; season s has flux fluxes[s] everywhere (probability 1).
func seasonalSet(fluxes map[Season]float64) map[Season]*SeasonalEstimator {
	out := make(map[Season]*SeasonalEstimator, len(Seasons))
	for _, s := range Seasons {
		out[s] = NewSeasonalEstimatorFromTable(
			constTable(s, Diffuse, ElectronEnergyFlux, fluxes[s], 0, 1, 0, 1),
			EstimatorOptions{})
	}
	return out
}
