package ovation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

const numCells = NumMLTBins * NumMLatBins

// ProbabilityLayout declares the stride of the flat probability block that
// follows the b1/b2 rows in a probability file.
type ProbabilityLayout int

const (
	// PositionFastest: value d*rows+k belongs to row k, dF bin d. This is the
	// column-major (one column per dF bin) order of the published files.
	PositionFastest ProbabilityLayout = iota
	// CouplingFastest: value k*NumDFBins+d belongs to row k, dF bin d.
	CouplingFastest
)

func (l ProbabilityLayout) String() string {
	switch l {
	case PositionFastest:
		return "position"
	case CouplingFastest:
		return "coupling"
	default:
		return "layout(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseProbabilityLayout accepts "position" or "coupling", naming the index
// that varies fastest in the flat probability block.
func ParseProbabilityLayout(name string) (ProbabilityLayout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "position", "position_fastest":
		return PositionFastest, nil
	case "coupling", "coupling_fastest":
		return CouplingFastest, nil
	}
	return 0, &RangeError{What: "probability layout", Value: name}
}

// LoadOptions tunes how coefficient files are read.
type LoadOptions struct {
	Layout ProbabilityLayout
	Logger *zap.SugaredLogger
}

// AuroraRow is one populated row of an aurora coefficient file.
type AuroraRow struct {
	MLTBin  int
	MLatBin int
	B1      float64
	B2      float64
}

// CoefficientTable holds the regression tables of one
// (season, auroral type, flux type). Cells never populated stay NaN.
type CoefficientTable struct {
	Season      Season
	AuroralType AuroralType
	FluxType    FluxType

	// Header lines as read; they carry no values used by the model.
	AuroraHeader string
	ProbHeader   string

	b1a, b2a []float64 // [mlt*NumMLatBins+mlat]
	b1p, b2p []float64
	prob     []float64 // [(mlt*NumMLatBins+mlat)*NumDFBins+dF]

	// cell index of each aurora file row, in file order
	order []int
}

func newCoefficientTable(season Season, atype AuroralType, ftype FluxType) *CoefficientTable {
	t := &CoefficientTable{
		Season:      season,
		AuroralType: atype,
		FluxType:    ftype,
		b1a:         nanSlice(numCells),
		b2a:         nanSlice(numCells),
		b1p:         nanSlice(numCells),
		b2p:         nanSlice(numCells),
		prob:        nanSlice(numCells * NumDFBins),
	}
	return t
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func cellIndex(mltBin, mlatBin int) int { return mltBin*NumMLatBins + mlatBin }

// FluxCoefficients returns b1a, b2a for a bin.
func (t *CoefficientTable) FluxCoefficients(mltBin, mlatBin int) (b1, b2 float64) {
	c := cellIndex(mltBin, mlatBin)
	return t.b1a[c], t.b2a[c]
}

// ProbabilityCoefficients returns b1p, b2p for a bin.
func (t *CoefficientTable) ProbabilityCoefficients(mltBin, mlatBin int) (b1, b2 float64) {
	c := cellIndex(mltBin, mlatBin)
	return t.b1p[c], t.b2p[c]
}

// Tabulated returns the tabulated probability for a bin and dF bin.
func (t *CoefficientTable) Tabulated(mltBin, mlatBin, dFBin int) float64 {
	return t.prob[cellIndex(mltBin, mlatBin)*NumDFBins+dFBin]
}

// AuroraRows returns the populated aurora rows in file order.
func (t *CoefficientTable) AuroraRows() []AuroraRow {
	rows := make([]AuroraRow, len(t.order))
	for i, c := range t.order {
		rows[i] = AuroraRow{
			MLTBin:  c / NumMLatBins,
			MLatBin: c % NumMLatBins,
			B1:      t.b1a[c],
			B2:      t.b2a[c],
		}
	}
	return rows
}

// WriteAuroraRows writes rows in the aurora file format.
func WriteAuroraRows(w io.Writer, header string, rows []AuroraRow) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, header); err != nil {
		return err
	}
	for _, r := range rows {
		_, err := fmt.Fprintf(bw, "%d %d %s %s\n", r.MLTBin, r.MLatBin,
			strconv.FormatFloat(r.B1, 'g', -1, 64),
			strconv.FormatFloat(r.B2, 'g', -1, 64))
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// =============================================================================
// File Resolution
// =============================================================================

// TablePaths returns the aurora and probability file paths for a
// coefficient set under dir. A ".gz" variant is used when only it exists.
// probPath is empty for auroral types without a probability model.
func TablePaths(dir string, season Season, atype AuroralType, ftype FluxType) (auroraPath, probPath string) {
	suffix := ""
	if ftype.IsNumberFlux() {
		suffix = "_n"
	}
	auroraPath = resolveGz(filepath.Join(dir, fmt.Sprintf("%s_%s%s.txt", season, atype, suffix)))
	if atype.HasProbabilityModel() {
		probPath = resolveGz(filepath.Join(dir, fmt.Sprintf("%s_prob_b_%s.txt", season, atype)))
	}
	return auroraPath, probPath
}

func resolveGz(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if _, err := os.Stat(path + ".gz"); err == nil {
		return path + ".gz"
	}
	return path
}

// =============================================================================
// Loader
// =============================================================================

// LoadCoefficientTable reads the coefficient files for one seasonal model
// from dir.
func LoadCoefficientTable(dir string, season Season, atype AuroralType, ftype FluxType, opts LoadOptions) (*CoefficientTable, error) {
	if !season.valid() {
		return nil, &RangeError{What: "season", Value: int(season)}
	}
	if !atype.valid() {
		return nil, &RangeError{What: "auroral type", Value: int(atype)}
	}
	if !ftype.valid() {
		return nil, &RangeError{What: "flux type", Value: int(ftype)}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	auroraPath, probPath := TablePaths(dir, season, atype, ftype)
	t := newCoefficientTable(season, atype, ftype)

	if err := withLines(auroraPath, t.readAurora); err != nil {
		return nil, err
	}
	logger.Debugf("Read auroral flux coefficient file %s, header: %s", auroraPath, t.AuroraHeader)

	if probPath != "" {
		err := withLines(probPath, func(path string, lr *lineReader) error {
			return t.readProbability(path, lr, opts.Layout)
		})
		if err != nil {
			return nil, err
		}
		logger.Debugf("Read probability coefficient file %s, header: %s", probPath, t.ProbHeader)
	}
	return t, nil
}

// lineReader yields non-blank lines with their 1-based line numbers.
type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func (lr *lineReader) next() (string, bool) {
	for lr.sc.Scan() {
		lr.line++
		text := strings.TrimSpace(lr.sc.Text())
		if text != "" {
			return text, true
		}
	}
	return "", false
}

func withLines(path string, fn func(path string, lr *lineReader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return &LoadError{Path: path, Err: err}
		}
		defer gz.Close()
		r = gz
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lr := &lineReader{sc: sc}
	if err := fn(path, lr); err != nil {
		return err
	}
	if err := sc.Err(); err != nil {
		return &LoadError{Path: path, Line: lr.line, Err: err}
	}
	return nil
}

var errTruncated = errors.New("truncated file")

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// parseBin accepts "24" as well as the "24.0" some table writers emit.
func parseBin(s string) (int, error) {
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("bin index %q is not an integer", s)
	}
	return int(v), nil
}

// readAurora parses: header, then numCells rows of (mlt_bin, mlat_bin, b1, b2).
func (t *CoefficientTable) readAurora(path string, lr *lineReader) error {
	header, ok := lr.next()
	if !ok {
		return &LoadError{Path: path, Err: errTruncated}
	}
	t.AuroraHeader = header

	seen := make([]bool, numCells)
	t.order = make([]int, 0, numCells)
	for len(t.order) < numCells {
		text, ok := lr.next()
		if !ok {
			return &LoadError{Path: path, Line: lr.line,
				Err: fmt.Errorf("%w: %d of %d rows", errTruncated, len(t.order), numCells)}
		}
		fields := strings.Fields(text)
		if len(fields) < 4 {
			return &LoadError{Path: path, Line: lr.line, Err: fmt.Errorf("expected 4 columns, got %d", len(fields))}
		}
		mltBin, err1 := parseBin(fields[0])
		mlatBin, err2 := parseBin(fields[1])
		if err := errors.Join(err1, err2); err != nil {
			return &LoadError{Path: path, Line: lr.line, Err: err}
		}
		if err := checkBin(mltBin, mlatBin); err != nil {
			return &LoadError{Path: path, Line: lr.line, Err: err}
		}
		vals, err := parseFloats(fields[2:4])
		if err != nil {
			return &LoadError{Path: path, Line: lr.line, Err: err}
		}
		c := cellIndex(mltBin, mlatBin)
		if seen[c] {
			return &LoadError{Path: path, Line: lr.line,
				Err: fmt.Errorf("duplicate bin (%d,%d)", mltBin, mlatBin)}
		}
		seen[c] = true
		t.b1a[c], t.b2a[c] = vals[0], vals[1]
		t.order = append(t.order, c)
	}
	if _, extra := lr.next(); extra {
		return &LoadError{Path: path, Line: lr.line, Err: fmt.Errorf("more than %d rows", numCells)}
	}
	return nil
}

// readProbability parses: header, numCells rows of (b1, b2) in aurora file
// row order, then numCells*NumDFBins probability values.
func (t *CoefficientTable) readProbability(path string, lr *lineReader, layout ProbabilityLayout) error {
	header, ok := lr.next()
	if !ok {
		return &LoadError{Path: path, Err: errTruncated}
	}
	t.ProbHeader = header

	for k, c := range t.order {
		text, ok := lr.next()
		if !ok {
			return &LoadError{Path: path, Line: lr.line,
				Err: fmt.Errorf("%w: %d of %d coefficient rows", errTruncated, k, numCells)}
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return &LoadError{Path: path, Line: lr.line, Err: fmt.Errorf("expected 2 columns, got %d", len(fields))}
		}
		vals, err := parseFloats(fields[:2])
		if err != nil {
			return &LoadError{Path: path, Line: lr.line, Err: err}
		}
		t.b1p[c], t.b2p[c] = vals[0], vals[1]
	}

	want := numCells * NumDFBins
	flat := make([]float64, 0, want)
	for {
		text, ok := lr.next()
		if !ok {
			break
		}
		vals, err := parseFloats(strings.Fields(text))
		if err != nil {
			return &LoadError{Path: path, Line: lr.line, Err: err}
		}
		if len(flat)+len(vals) > want {
			return &LoadError{Path: path, Line: lr.line, Err: fmt.Errorf("more than %d probability values", want)}
		}
		flat = append(flat, vals...)
	}
	if len(flat) != want {
		return &LoadError{Path: path, Line: lr.line,
			Err: fmt.Errorf("%w: %d of %d probability values", errTruncated, len(flat), want)}
	}
	if err := t.decodeProbabilities(flat, layout); err != nil {
		return &LoadError{Path: path, Err: err}
	}
	return nil
}

// decodeProbabilities moves the flat probability block into prob using the
// declared stride.
func (t *CoefficientTable) decodeProbabilities(flat []float64, layout ProbabilityLayout) error {
	n := len(t.order)
	if len(flat) != n*NumDFBins {
		return fmt.Errorf("probability block has %d values, want %d", len(flat), n*NumDFBins)
	}
	for k, c := range t.order {
		for d := 0; d < NumDFBins; d++ {
			var v float64
			switch layout {
			case CouplingFastest:
				v = flat[k*NumDFBins+d]
			case PositionFastest:
				v = flat[d*n+k]
			default:
				return &RangeError{What: "probability layout", Value: int(layout)}
			}
			t.prob[c*NumDFBins+d] = v
		}
	}
	return nil
}
