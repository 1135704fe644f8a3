package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/solar"
)

func TestArchiveURL(t *testing.T) {
	assert.Equal(t, "https://spdf.gsfc.nasa.gov/pub/data/omni/low_res_omni/omni2_2015.dat", archiveURL(solar.Hourly, 2015))
	assert.Equal(t, "https://spdf.gsfc.nasa.gov/pub/data/omni/high_res_omni/omni_5min2015.asc", archiveURL(solar.FiveMinute, 2015))
	assert.Equal(t, "https://spdf.gsfc.nasa.gov/pub/data/omni/high_res_omni/omni_min2015.asc", archiveURL(solar.OneMinute, 2015))
}

func TestCopyBodyGzip(t *testing.T) {
	body := strings.Repeat("2015  76  0 1.5 -2.5\n", 100)

	var buf bytes.Buffer
	n, err := copyBody(&buf, strings.NewReader(body), true)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)

	zr, err := pgzip.NewReader(&buf)
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, body, string(out))

	buf.Reset()
	_, err = copyBody(&buf, strings.NewReader(body), false)
	require.NoError(t, err)
	assert.Equal(t, body, buf.String())
}
