// aurora-flux - Ovation Prime auroral flux grids from OMNI solar wind
//
// Blends the four seasonal coefficient tables for each requested time,
// drives them with the averaged Newell coupling, and optionally writes
// every grid cell to Parquet.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/aurora-flux ./cmd/aurora-flux

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/parquet-go/parquet-go"
	"gonum.org/v1/gonum/floats"

	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/common"
	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/coupling"
	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/log"
	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/ovation"
	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/solar"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

const timeLayout = "2006-01-02T15:04"

// FluxCell is one grid cell of one map in the Parquet output.
type FluxCell struct {
	Timestamp   int64   `parquet:"timestamp"`
	Hemisphere  string  `parquet:"hemisphere"`
	AuroralType string  `parquet:"auroral_type"`
	FluxType    string  `parquet:"flux_type"`
	MLat        float64 `parquet:"mlat"`
	MLT         float64 `parquet:"mlt"`
	Flux        float64 `parquet:"flux"`
	Coupling    float64 `parquet:"coupling"`
}

// fluxCells flattens a map into rows, latitude-major.
func fluxCells(m *ovation.FluxMap, atype ovation.AuroralType, ftype ovation.FluxType) []FluxCell {
	rows, cols := m.Flux.Dims()
	cells := make([]FluxCell, 0, rows*cols)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			cells = append(cells, FluxCell{
				Timestamp:   m.Time.Unix(),
				Hemisphere:  m.Hemisphere.String(),
				AuroralType: atype.String(),
				FluxType:    ftype.String(),
				MLat:        m.MLat.At(j, i),
				MLT:         m.MLT.At(j, i),
				Flux:        m.Flux.At(j, i),
				Coupling:    m.Coupling,
			})
		}
	}
	return cells
}

// gridSummary returns the total and peak flux of a map.
func gridSummary(m *ovation.FluxMap) (total, peak float64) {
	data := m.Flux.RawMatrix().Data
	if len(data) == 0 {
		return 0, math.NaN()
	}
	return floats.Sum(data), floats.Max(data)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, timeLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want %s or RFC3339)", s, timeLayout)
}

func parseHemispheres(s string) ([]ovation.Hemisphere, error) {
	if strings.EqualFold(s, "both") {
		return []ovation.Hemisphere{ovation.North, ovation.South}, nil
	}
	var out []ovation.Hemisphere
	for _, part := range strings.Split(s, ",") {
		h, err := ovation.ParseHemisphere(part)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// openSource builds the configured solar wind source. The returned closer is
// never nil.
func openSource(ctx context.Context, cfg *common.Config) (solar.Source, func() error, error) {
	if cfg.OMNI.Source == "clickhouse" {
		src, err := solar.OpenClickHouseSource(ctx, solar.ClickHouseOptions{
			Host:     cfg.ClickHouse.Host,
			Database: cfg.ClickHouse.Database,
			User:     cfg.ClickHouse.User,
			Password: cfg.ClickHouse.Password,
			Logger:   log.Named("clickhouse"),
		})
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	}
	return solar.NewFileSource(cfg.OMNI.Dir, log.Named("omni")), func() error { return nil }, nil
}

// options holds the command line, before parsing into a plan.
type options struct {
	atype         string
	selector      string
	hemis         string
	start         string
	end           string
	step          time.Duration
	statsInterval time.Duration
	parquetPath   string
}

// plan is a validated run request.
type plan struct {
	atype         ovation.AuroralType
	ftype         ovation.FluxType
	hemis         []ovation.Hemisphere
	start         time.Time
	end           time.Time
	step          time.Duration
	statsInterval time.Duration
	parquetPath   string
}

func newPlan(o options) (*plan, error) {
	start, err := parseTime(o.start)
	if err != nil {
		return nil, err
	}
	end := start.Add(time.Nanosecond)
	if o.end != "" {
		if end, err = parseTime(o.end); err != nil {
			return nil, err
		}
	}
	if o.step <= 0 {
		return nil, fmt.Errorf("step must be positive")
	}
	if o.statsInterval <= 0 {
		return nil, fmt.Errorf("stats-interval must be positive")
	}

	atype, err := ovation.ParseAuroralType(o.atype)
	if err != nil {
		return nil, err
	}
	ftype, err := ovation.FluxTypeFor(atype, o.selector)
	if err != nil {
		return nil, err
	}
	hemis, err := parseHemispheres(o.hemis)
	if err != nil {
		return nil, err
	}
	return &plan{
		atype:         atype,
		ftype:         ftype,
		hemis:         hemis,
		start:         start,
		end:           end,
		step:          o.step,
		statsInterval: o.statsInterval,
		parquetPath:   o.parquetPath,
	}, nil
}

// cellSink writes grid cells to a Parquet file.
type cellSink struct {
	path string
	f    *os.File
	pw   *parquet.GenericWriter[FluxCell]
}

func createCellSink(path string) (*cellSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &cellSink{path: path, f: f, pw: parquet.NewGenericWriter[FluxCell](f)}, nil
}

func (s *cellSink) Write(cells []FluxCell) error {
	if _, err := s.pw.Write(cells); err != nil {
		return fmt.Errorf("parquet write: %w", err)
	}
	return nil
}

// Close writes the Parquet footer and closes the file.
func (s *cellSink) Close() error {
	err := s.pw.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}

type fluxMapper interface {
	FluxForTime(ctx context.Context, t time.Time, hemi ovation.Hemisphere) (*ovation.FluxMap, error)
}

// produce computes every map of the plan, writing cells to sink when it is
// non-nil. Data gaps are logged and skipped; any other error stops the run.
func produce(ctx context.Context, est fluxMapper, p *plan, sink *cellSink) (maps, gaps int, err error) {
	for t := p.start; t.Before(p.end); t = t.Add(p.step) {
		if ctx.Err() != nil {
			return maps, gaps, nil
		}
		for _, hemi := range p.hemis {
			m, err := est.FluxForTime(ctx, t, hemi)
			if errors.Is(err, solar.ErrDataGap) {
				log.Warnf("[%s %s] %v", t.Format(timeLayout), hemi, err)
				gaps++
				continue
			}
			if err != nil {
				return maps, gaps, fmt.Errorf("[%s %s] %w", t.Format(timeLayout), hemi, err)
			}
			maps++

			total, peak := gridSummary(m)
			log.Infof("[%s %s] dF=%.1f total=%.4g peak=%.4g", t.Format(timeLayout), hemi, m.Coupling, total, peak)

			if sink != nil {
				if err := sink.Write(fluxCells(m, p.atype, p.ftype)); err != nil {
					return maps, gaps, err
				}
			}
		}
	}
	return maps, gaps, nil
}

func run(ctx context.Context, cfg *common.Config, p *plan) (err error) {
	cadence, _ := solar.ParseCadence(cfg.OMNI.Cadence)
	layout, err := ovation.ParseProbabilityLayout(cfg.CoefficientLayout)
	if err != nil {
		return err
	}

	log.Infof("=========================================================")
	log.Infof("Aurora Flux v%s", Version)
	log.Infof("=========================================================")
	log.Infof("Model:        %s / %s", p.atype, p.ftype)
	log.Infof("Coefficients: %s (%s fastest)", cfg.CoefficientDir, layout)
	log.Infof("Solar wind:   %s (%s)", cfg.OMNI.Source, cadence)

	src, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("solar wind source: %w", err)
	}
	defer func() {
		if cerr := closeSource(); cerr != nil {
			log.Warnf("Close solar wind source: %v", cerr)
		}
	}()

	stats := common.NewStats()
	cache := solar.NewWindowCache(src, solar.CacheOptions{
		MaxAge: cfg.OMNI.MaxAge,
		Stats:  stats,
		Logger: log.Named("window"),
	})
	averager := coupling.NewAverager(cache, cadence, log.Named("coupling"))

	estimator, err := ovation.NewFluxEstimator(cfg.CoefficientDir, p.atype, p.ftype, averager, ovation.FluxEstimatorOptions{
		EstimatorOptions: ovation.EstimatorOptions{
			Load:   ovation.LoadOptions{Layout: layout},
			Stats:  stats,
			Logger: log.Named("ovation"),
		},
	})
	if err != nil {
		return fmt.Errorf("load coefficients: %w", err)
	}

	var sink *cellSink
	if p.parquetPath != "" {
		if sink, err = createCellSink(p.parquetPath); err != nil {
			return err
		}
		defer func() {
			if cerr := sink.Close(); err == nil {
				err = cerr
			}
			if err == nil {
				log.Infof("Wrote %s", p.parquetPath)
			}
		}()
	}

	stats.StartReporter(log.Named("stats"), p.statsInterval)
	defer stats.StopReporter()
	startTime := time.Now()

	maps, gaps, err := produce(ctx, estimator, p, sink)
	if err != nil {
		return err
	}

	log.Infof("=========================================================")
	log.Infof("Final Statistics")
	log.Infof("=========================================================")
	log.Infof("Maps:     %d", maps)
	log.Infof("Gaps:     %d", gaps)
	log.Infof("Elapsed:  %v", time.Since(startTime).Round(time.Millisecond))
	log.Infow("stats", stats.Summary()...)
	return nil
}

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	atypeName := flag.String("atype", "diff", "Auroral type: diff, mono, wave, ions")
	selector := flag.String("flux", "energy", "Flux selector: energy, number, average")
	hemiNames := flag.String("hemi", "N", "Hemispheres: N, S, N,S or both")
	startStr := flag.String("time", "", "Start time (YYYY-MM-DDTHH:MM, UTC)")
	endStr := flag.String("end", "", "End time, exclusive (default: single map)")
	step := flag.Duration("step", time.Hour, "Time step for ranges")
	parquetPath := flag.String("parquet", "", "Write grid cells to this Parquet file")
	coefDir := flag.String("coef-dir", "", "Override coefficient directory")
	coefLayout := flag.String("coef-layout", "", "Override probability block layout: position or coupling")
	source := flag.String("source", "", "Override OMNI source: file or clickhouse")
	statsInterval := flag.Duration("stats-interval", 10*time.Second, "Progress report interval")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "aurora-flux v%s - Ovation Prime Auroral Flux\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] -time YYYY-MM-DDTHH:MM\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Computes season-blended auroral flux grids driven by OMNI solar wind.\n")
		fmt.Fprintf(os.Stderr, "Configuration is also read from AURORA_* environment variables.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("aurora-flux v%s\n", Version)
		return
	}
	if *startStr == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := common.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *coefDir != "" {
		cfg.CoefficientDir = *coefDir
	}
	if *coefLayout != "" {
		cfg.CoefficientLayout = *coefLayout
	}
	if *source != "" {
		cfg.OMNI.Source = *source
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	p, err := newPlan(options{
		atype:         *atypeName,
		selector:      *selector,
		hemis:         *hemiNames,
		start:         *startStr,
		end:           *endStr,
		step:          *step,
		statsInterval: *statsInterval,
		parquetPath:   *parquetPath,
	})
	if err != nil {
		log.Errorf("%v", err)
		log.Sync()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warnf("Shutdown requested...")
		cancel()
	}()

	if err := run(ctx, cfg, p); err != nil {
		log.Errorf("%v", err)
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}
