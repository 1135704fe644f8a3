package solar

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrDataGap matches every *DataGapError.
var ErrDataGap = errors.New("solar wind data gap")

// DataGapError reports that no usable samples cover a requested range.
type DataGapError struct {
	Cadence Cadence
	Start   time.Time
	End     time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("no %s solar wind samples in [%s, %s)", e.Cadence,
		e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339))
}

func (e *DataGapError) Is(target error) bool { return target == ErrDataGap }

// Table is the field-keyed column set returned by a Source.
type Table struct {
	Epoch   []time.Time
	Columns map[string][]float64
}

// TableFromRecords builds a Table using the column names of cadence.
func TableFromRecords(records []Record, cadence Cadence) *Table {
	n := len(records)
	t := &Table{
		Epoch: make([]time.Time, n),
		Columns: map[string][]float64{
			FieldBx:                 make([]float64, n),
			FieldBy:                 make([]float64, n),
			FieldBz:                 make([]float64, n),
			cadence.VelocityField(): make([]float64, n),
			cadence.DensityField():  make([]float64, n),
			FieldF107:               make([]float64, n),
		},
	}
	for i, r := range records {
		t.Epoch[i] = r.Epoch
		t.Columns[FieldBx][i] = r.Bx
		t.Columns[FieldBy][i] = r.By
		t.Columns[FieldBz][i] = r.Bz
		t.Columns[cadence.VelocityField()][i] = r.V
		t.Columns[cadence.DensityField()][i] = r.N
		t.Columns[FieldF107][i] = r.F107
	}
	return t
}

// Window is a contiguous [Start, End) range of samples at one cadence,
// ordered by epoch. A Window is never modified after NewWindow returns.
type Window struct {
	Cadence   Cadence
	Start     time.Time
	End       time.Time
	FetchedAt time.Time

	Epoch []time.Time
	Bx    []float64
	By    []float64
	Bz    []float64
	V     []float64
	Ni    []float64
	F107  []float64
	Ec    []float64 // Newell coupling per sample
}

// NewWindow copies the samples of tbl that fall in [start, end) into a
// time-ordered Window and derives Ec. A table without any such sample is a
// DataGapError.
func NewWindow(tbl *Table, cadence Cadence, start, end time.Time) (*Window, error) {
	if tbl == nil {
		return nil, &DataGapError{Cadence: cadence, Start: start, End: end}
	}
	required := []string{FieldBx, FieldBy, FieldBz, cadence.VelocityField(), cadence.DensityField()}
	n := len(tbl.Epoch)
	for _, name := range required {
		col, ok := tbl.Columns[name]
		if !ok {
			return nil, fmt.Errorf("solar wind table missing field %s", name)
		}
		if len(col) != n {
			return nil, fmt.Errorf("solar wind field %s has %d values for %d epochs", name, len(col), n)
		}
	}
	f107, hasF107 := tbl.Columns[FieldF107]
	if hasF107 && len(f107) != n {
		return nil, fmt.Errorf("solar wind field %s has %d values for %d epochs", FieldF107, len(f107), n)
	}

	idx := make([]int, 0, n)
	for i, e := range tbl.Epoch {
		if !e.Before(start) && e.Before(end) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, &DataGapError{Cadence: cadence, Start: start, End: end}
	}
	sort.SliceStable(idx, func(a, b int) bool { return tbl.Epoch[idx[a]].Before(tbl.Epoch[idx[b]]) })

	pick := func(col []float64) []float64 {
		out := make([]float64, len(idx))
		for k, i := range idx {
			out[k] = col[i]
		}
		return out
	}

	w := &Window{
		Cadence: cadence,
		Start:   start,
		End:     end,
		Epoch:   make([]time.Time, len(idx)),
		Bx:      pick(tbl.Columns[FieldBx]),
		By:      pick(tbl.Columns[FieldBy]),
		Bz:      pick(tbl.Columns[FieldBz]),
		V:       pick(tbl.Columns[cadence.VelocityField()]),
		Ni:      pick(tbl.Columns[cadence.DensityField()]),
		Ec:      make([]float64, len(idx)),
	}
	for k, i := range idx {
		w.Epoch[k] = tbl.Epoch[i]
	}
	if hasF107 {
		w.F107 = pick(f107)
	} else {
		w.F107 = make([]float64, len(idx))
		for k := range w.F107 {
			w.F107[k] = math.NaN()
		}
	}
	for k := range w.Ec {
		w.Ec[k] = NewellCoupling(w.Bx[k], w.By[k], w.Bz[k], w.V[k])
	}
	return w, nil
}

// Len returns the number of samples.
func (w *Window) Len() int { return len(w.Epoch) }

// Covers reports whether t leaves more than the required lookback after
// Start and lookahead before End.
func (w *Window) Covers(t time.Time) bool {
	return t.Sub(w.Start) > MinLookback && w.End.Sub(t) > MinLookahead
}
