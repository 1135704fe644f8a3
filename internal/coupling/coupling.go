// Package coupling derives the solar wind driver of the auroral model: the
// Newell coupling averaged backward over the hours preceding a query time.
package coupling

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/solar"
)

const (
	// NumHours is the oldest hourly slot included in an average.
	NumHours = 4
	// PrevHourWeight is the weight decay per hour back.
	PrevHourWeight = 0.65
)

// Variable names, in Average.Values order.
const (
	VarBx = "Bx"
	VarBy = "By"
	VarBz = "Bz"
	VarV  = "V"
	VarNi = "Ni"
	VarEc = "Ec"
)

// Variable is one named averaged value.
type Variable struct {
	Name  string
	Value float64
}

// Average is the weighted solar wind average for one query time. Fields with
// no data in any slot are NaN.
type Average struct {
	Time   time.Time // query time
	Latest time.Time // newest sample used
	Slots  int       // hourly slots that held data

	Bx, By, Bz, V, Ni, Ec float64
}

// Values returns the averaged variables in a fixed order.
func (a *Average) Values() []Variable {
	return []Variable{
		{VarBx, a.Bx},
		{VarBy, a.By},
		{VarBz, a.Bz},
		{VarV, a.V},
		{VarNi, a.Ni},
		{VarEc, a.Ec},
	}
}

// Averager computes backward weighted averages from a window cache.
type Averager struct {
	cache   *solar.WindowCache
	cadence solar.Cadence
	logger  *zap.SugaredLogger
}

// NewAverager averages samples of cadence served by cache.
func NewAverager(cache *solar.WindowCache, cadence solar.Cadence, logger *zap.SugaredLogger) *Averager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Averager{cache: cache, cadence: cadence, logger: logger}
}

// Cadence returns the sample cadence averaged.
func (a *Averager) Cadence() solar.Cadence { return a.cadence }

// ReadSolarWind returns the cached window serving t, Ec included.
func (a *Averager) ReadSolarWind(ctx context.Context, t time.Time) (*solar.Window, error) {
	return a.cache.Get(ctx, a.cadence, t)
}

// bucket collects the samples of one hourly slot.
type bucket struct {
	latest time.Time
	n      int
	sums   [6][]float64
}

// Average buckets the samples of the NumHours+1 hours before t by whole hours
// back, then weights slot h by PrevHourWeight^h. The weights are normalized
// over the slots that contribute to each variable.
func (a *Averager) Average(ctx context.Context, t time.Time) (*Average, error) {
	w, err := a.ReadSolarWind(ctx, t)
	if err != nil {
		return nil, err
	}
	return averageWindow(w, t), nil
}

func averageWindow(w *solar.Window, t time.Time) *Average {
	var slots [NumHours + 1]bucket
	for k, epoch := range w.Epoch {
		back := t.Sub(epoch).Hours()
		if back < 0 || back >= NumHours+1 {
			continue
		}
		b := &slots[int(math.Floor(back))]
		b.n++
		if epoch.After(b.latest) {
			b.latest = epoch
		}
		for v, x := range [6]float64{w.Bx[k], w.By[k], w.Bz[k], w.V[k], w.Ni[k], w.Ec[k]} {
			b.sums[v] = append(b.sums[v], x)
		}
	}

	out := &Average{Time: t}
	var means [6][]float64
	var weights [6][]float64
	for h := range slots {
		b := &slots[h]
		if b.n == 0 {
			continue
		}
		out.Slots++
		if b.latest.After(out.Latest) {
			out.Latest = b.latest
		}
		wh := math.Pow(PrevHourWeight, float64(h))
		for v := range b.sums {
			m := nanMean(b.sums[v])
			if math.IsNaN(m) {
				continue
			}
			means[v] = append(means[v], m)
			weights[v] = append(weights[v], wh)
		}
	}

	var result [6]float64
	for v := range result {
		if len(means[v]) == 0 {
			result[v] = math.NaN()
			continue
		}
		result[v] = floats.Dot(means[v], weights[v]) / floats.Sum(weights[v])
	}
	out.Bx, out.By, out.Bz, out.V, out.Ni, out.Ec = result[0], result[1], result[2], result[3], result[4], result[5]
	return out
}

// AvgCoupling returns the averaged Newell coupling at t. A window without any
// finite Ec in the averaging span is a data gap.
func (a *Averager) AvgCoupling(ctx context.Context, t time.Time) (float64, error) {
	avg, err := a.Average(ctx, t)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(avg.Ec) {
		return 0, &solar.DataGapError{Cadence: a.cadence, Start: t.Add(-(NumHours + 1) * time.Hour), End: t}
	}
	a.logger.Debugf("dF at %s = %.2f from %d slots", t.UTC().Format(time.RFC3339), avg.Ec, avg.Slots)
	return avg.Ec, nil
}

// DailyF107 returns the mean F10.7 over the hourly samples of t's UTC day.
func (a *Averager) DailyF107(ctx context.Context, t time.Time) (float64, error) {
	w, err := a.cache.Get(ctx, solar.Hourly, t)
	if err != nil {
		return 0, err
	}
	y, m, d := t.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)

	var vals []float64
	for k, e := range w.Epoch {
		if !e.Before(day) && e.Before(next) {
			vals = append(vals, w.F107[k])
		}
	}
	mean := nanMean(vals)
	if math.IsNaN(mean) {
		return 0, &solar.DataGapError{Cadence: solar.Hourly, Start: day, End: next}
	}
	return mean, nil
}

// nanMean is the mean of the non-NaN values, NaN when there are none.
func nanMean(x []float64) float64 {
	finite := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	return stat.Mean(finite, nil)
}
