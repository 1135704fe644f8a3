package solar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
)

// omniLayout describes the whitespace-separated columns of one OMNI product.
type omniLayout struct {
	minute int // -1 for hourly records
	fields int

	bx, by, bz, v, n, f107 int // f107 is -1 when absent

	bFill, vFill, nFill, f107Fill float64
}

var (
	// OMNI2 hourly merged data, omni2_YYYY.dat
	omni2Layout = omniLayout{
		minute: -1, fields: 51,
		bx: 12, by: 15, bz: 16, n: 23, v: 24, f107: 50,
		bFill: 999.9, vFill: 9999., nFill: 999.9, f107Fill: 999.9,
	}
	// High resolution OMNI, omni_5minYYYY.asc and omni_minYYYY.asc
	hroLayout = omniLayout{
		minute: 3, fields: 26,
		bx: 14, by: 17, bz: 18, v: 21, n: 25, f107: -1,
		bFill: 9999.99, vFill: 99999.9, nFill: 999.99,
	}
)

func layoutFor(cadence Cadence) omniLayout {
	if cadence == Hourly {
		return omni2Layout
	}
	return hroLayout
}

// OMNIFileName returns the archive file name for one year of cadence data.
func OMNIFileName(cadence Cadence, year int) string {
	switch cadence {
	case FiveMinute:
		return fmt.Sprintf("omni_5min%d.asc", year)
	case OneMinute:
		return fmt.Sprintf("omni_min%d.asc", year)
	default:
		return fmt.Sprintf("omni2_%d.dat", year)
	}
}

// ParseOMNI reads OMNI records of the given cadence from r. Fill values
// become NaN. Blank lines are skipped.
func ParseOMNI(r io.Reader, cadence Cadence) ([]Record, error) {
	layout := layoutFor(cadence)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var records []Record
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < layout.fields {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", lineNum, layout.fields, len(fields))
		}
		rec, err := layout.parse(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (l omniLayout) parse(fields []string) (Record, error) {
	year, err := strconv.Atoi(fields[0])
	if err != nil {
		return Record{}, fmt.Errorf("year: %w", err)
	}
	doy, err := strconv.Atoi(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("day: %w", err)
	}
	hour, err := strconv.Atoi(fields[2])
	if err != nil {
		return Record{}, fmt.Errorf("hour: %w", err)
	}
	minute := 0
	if l.minute >= 0 {
		if minute, err = strconv.Atoi(fields[l.minute]); err != nil {
			return Record{}, fmt.Errorf("minute: %w", err)
		}
	}

	value := func(col int, fill float64) (float64, error) {
		v, err := strconv.ParseFloat(fields[col], 64)
		if err != nil {
			return 0, fmt.Errorf("column %d: %w", col, err)
		}
		if math.Abs(v) >= fill {
			return math.NaN(), nil
		}
		return v, nil
	}

	rec := Record{
		Epoch: time.Date(year, time.January, 1, hour, minute, 0, 0, time.UTC).AddDate(0, 0, doy-1),
		F107:  math.NaN(),
	}
	if rec.Bx, err = value(l.bx, l.bFill); err != nil {
		return Record{}, err
	}
	if rec.By, err = value(l.by, l.bFill); err != nil {
		return Record{}, err
	}
	if rec.Bz, err = value(l.bz, l.bFill); err != nil {
		return Record{}, err
	}
	if rec.V, err = value(l.v, l.vFill); err != nil {
		return Record{}, err
	}
	if rec.N, err = value(l.n, l.nFill); err != nil {
		return Record{}, err
	}
	if l.f107 >= 0 {
		if rec.F107, err = value(l.f107, l.f107Fill); err != nil {
			return Record{}, err
		}
	}
	return rec, nil
}

// ReadOMNIFile parses one OMNI archive file, gunzipping .gz files.
func ReadOMNIFile(path string, cadence Cadence) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	records, err := ParseOMNI(r, cadence)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// FileSource reads yearly OMNI archive files from a directory.
type FileSource struct {
	Dir    string
	Logger *zap.SugaredLogger
}

// NewFileSource returns a FileSource over dir.
func NewFileSource(dir string, logger *zap.SugaredLogger) *FileSource {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FileSource{Dir: dir, Logger: logger}
}

// Path returns the file for one year, preferring the uncompressed name.
func (s *FileSource) Path(cadence Cadence, year int) string {
	path := filepath.Join(s.Dir, OMNIFileName(cadence, year))
	if _, err := os.Stat(path); err != nil {
		if _, gzErr := os.Stat(path + ".gz"); gzErr == nil {
			return path + ".gz"
		}
	}
	return path
}

// Fetch reads every yearly file touching [start, end) and keeps the samples
// inside it.
func (s *FileSource) Fetch(ctx context.Context, start, end time.Time, cadence Cadence) (*Table, error) {
	var kept []Record
	for year := start.UTC().Year(); year <= end.UTC().Year(); year++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := s.Path(cadence, year)
		records, err := ReadOMNIFile(path, cadence)
		if err != nil {
			return nil, err
		}
		s.Logger.Debugf("Read %d %s records from %s", len(records), cadence, filepath.Base(path))
		for _, r := range records {
			if !r.Epoch.Before(start) && r.Epoch.Before(end) {
				kept = append(kept, r)
			}
		}
	}
	return TableFromRecords(kept, cadence), nil
}
