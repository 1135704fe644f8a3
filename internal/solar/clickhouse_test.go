package solar

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSelecter struct {
	rows  []Record
	err   error
	query string
	args  []any
}

func (f *fakeSelecter) Select(_ context.Context, dest any, query string, args ...any) error {
	f.query, f.args = query, args
	if f.err != nil {
		return f.err
	}
	*dest.(*[]Record) = f.rows
	return nil
}

func TestSelectQuery(t *testing.T) {
	q := selectQuery("omni", Hourly)
	assert.Contains(t, q, "FROM omni.omni_hourly")
	assert.Contains(t, q, ", f107 FROM")
	assert.Contains(t, q, "ORDER BY epoch")

	q = selectQuery("omni", OneMinute)
	assert.Contains(t, q, "FROM omni.omni_1min")
	assert.Contains(t, q, "nan AS f107")
}

func TestClickHouseSourceFetch(t *testing.T) {
	conn := &fakeSelecter{rows: []Record{
		{Epoch: t0, Bx: 1, By: 2, Bz: -3, V: 450, N: 4, F107: math.NaN()},
		{Epoch: t0.Add(5 * time.Minute), Bx: 1, By: 2, Bz: -4, V: 460, N: 4, F107: math.NaN()},
	}}
	src := &ClickHouseSource{conn: conn, database: "omni", logger: zap.NewNop().Sugar()}

	tbl, err := src.Fetch(context.Background(), t0, t0.Add(time.Hour), FiveMinute)
	require.NoError(t, err)
	assert.Equal(t, []any{t0, t0.Add(time.Hour)}, conn.args)
	assert.Contains(t, conn.query, "omni.omni_5min")
	assert.Equal(t, []float64{450, 460}, tbl.Columns[FieldFlowSpeed])
	assert.Equal(t, []float64{4, 4}, tbl.Columns[FieldProtonDensity])

	w, err := NewWindow(tbl, FiveMinute, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, w.Len())
	assert.NoError(t, src.Close())
}

func TestClickHouseSourceFetchError(t *testing.T) {
	boom := errors.New("table missing")
	src := &ClickHouseSource{conn: &fakeSelecter{err: boom}, database: "omni", logger: zap.NewNop().Sugar()}
	_, err := src.Fetch(context.Background(), t0, t0.Add(time.Hour), Hourly)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "omni_hourly")
}
