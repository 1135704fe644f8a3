// omni-ingest - OMNI solar wind archive ingestion into ClickHouse
//
// Supports the NASA OMNIWeb yearly ASCII products:
//   - OMNI2 hourly (omni2_YYYY.dat)
//   - HRO 5-minute (omni_5minYYYY.asc)
//   - HRO 1-minute (omni_minYYYY.asc)
//
// Files may be gzipped. Rows land in omni_hourly, omni_5min or omni_1min,
// the tables read back by aurora-flux when omni.source is clickhouse.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/omni-ingest ./cmd/omni-ingest

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"

	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/common"
	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/log"
	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/solar"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

const BatchSize = 100_000

// OMNIBatch holds column data for native insert
type OMNIBatch struct {
	Epoch         *proto.ColDateTime
	Bx            *proto.ColFloat64
	By            *proto.ColFloat64
	Bz            *proto.ColFloat64
	FlowSpeed     *proto.ColFloat64
	ProtonDensity *proto.ColFloat64
	F107          *proto.ColFloat64
	hourly        bool
}

func NewOMNIBatch(cadence solar.Cadence) *OMNIBatch {
	return &OMNIBatch{
		Epoch:         new(proto.ColDateTime),
		Bx:            new(proto.ColFloat64),
		By:            new(proto.ColFloat64),
		Bz:            new(proto.ColFloat64),
		FlowSpeed:     new(proto.ColFloat64),
		ProtonDensity: new(proto.ColFloat64),
		F107:          new(proto.ColFloat64),
		hourly:        cadence == solar.Hourly,
	}
}

func (b *OMNIBatch) Reset() {
	b.Epoch.Reset()
	b.Bx.Reset()
	b.By.Reset()
	b.Bz.Reset()
	b.FlowSpeed.Reset()
	b.ProtonDensity.Reset()
	b.F107.Reset()
}

func (b *OMNIBatch) Len() int {
	return b.Epoch.Rows()
}

func (b *OMNIBatch) Columns() []string {
	cols := []string{"epoch", "bx_gse", "by_gsm", "bz_gsm", "flow_speed", "proton_density"}
	if b.hourly {
		cols = append(cols, "f107")
	}
	return cols
}

func (b *OMNIBatch) Input() proto.Input {
	input := proto.Input{
		{Name: "epoch", Data: b.Epoch},
		{Name: "bx_gse", Data: b.Bx},
		{Name: "by_gsm", Data: b.By},
		{Name: "bz_gsm", Data: b.Bz},
		{Name: "flow_speed", Data: b.FlowSpeed},
		{Name: "proton_density", Data: b.ProtonDensity},
	}
	if b.hourly {
		input = append(input, proto.InputColumn{Name: "f107", Data: b.F107})
	}
	return input
}

func (b *OMNIBatch) AddRecord(r solar.Record) {
	b.Epoch.Append(r.Epoch)
	b.Bx.Append(r.Bx)
	b.By.Append(r.By)
	b.Bz.Append(r.Bz)
	b.FlowSpeed.Append(r.V)
	b.ProtonDensity.Append(r.N)
	if b.hourly {
		b.F107.Append(r.F107)
	}
}

func flushBatch(ctx context.Context, conn *ch.Client, tableFQN string, batch *OMNIBatch) error {
	if batch.Len() == 0 {
		return nil
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES", tableFQN, strings.Join(batch.Columns(), ", "))
	return conn.Do(ctx, ch.Query{
		Body:  query,
		Input: batch.Input(),
	})
}

// detectCadence determines the product from the file name
func detectCadence(filePath string) (solar.Cadence, bool) {
	base := strings.ToLower(filepath.Base(filePath))
	base = strings.TrimSuffix(base, ".gz")

	switch {
	case strings.HasPrefix(base, "omni2_") && strings.HasSuffix(base, ".dat"):
		return solar.Hourly, true
	case strings.HasPrefix(base, "omni_5min") && strings.HasSuffix(base, ".asc"):
		return solar.FiveMinute, true
	case strings.HasPrefix(base, "omni_min") && strings.HasSuffix(base, ".asc"):
		return solar.OneMinute, true
	}
	return 0, false
}

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	chHost := flag.String("ch-host", "", "ClickHouse address (default from config)")
	chDB := flag.String("ch-db", "", "ClickHouse database (default from config)")
	sourceDir := flag.String("source-dir", "", "OMNI archive directory (default from config)")
	truncate := flag.Bool("truncate", false, "Truncate target tables before insert")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "omni-ingest v%s - OMNI Solar Wind Ingester\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [files...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ingests OMNIWeb solar wind archives into ClickHouse.\n\n")
		fmt.Fprintf(os.Stderr, "Supported formats:\n")
		fmt.Fprintf(os.Stderr, "  - omni2_YYYY.dat       hourly -> omni_hourly\n")
		fmt.Fprintf(os.Stderr, "  - omni_5minYYYY.asc    5-min  -> omni_5min\n")
		fmt.Fprintf(os.Stderr, "  - omni_minYYYY.asc     1-min  -> omni_1min\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg, err := common.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *chHost != "" {
		cfg.ClickHouse.Host = *chHost
	}
	if *chDB != "" {
		cfg.ClickHouse.Database = *chDB
	}
	if *sourceDir != "" {
		cfg.OMNI.Dir = *sourceDir
	}
	if err := log.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Infof("=========================================================")
	log.Infof("OMNI Ingest v%s", Version)
	log.Infof("=========================================================")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warnf("Shutdown requested...")
		cancel()
	}()

	// Connect to ClickHouse
	log.Infof("Connecting to ClickHouse at %s...", cfg.ClickHouse.Host)
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     cfg.ClickHouse.Host,
		Database:    cfg.ClickHouse.Database,
		User:        cfg.ClickHouse.User,
		Password:    cfg.ClickHouse.Password,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		log.Fatalf("ClickHouse connection failed: %v", err)
	}
	defer conn.Close()

	// Discover files
	var files []string
	if len(flag.Args()) > 0 {
		files = flag.Args()
	} else {
		entries, err := os.ReadDir(cfg.OMNI.Dir)
		if err != nil {
			log.Fatalf("Cannot read source directory: %v", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(cfg.OMNI.Dir, e.Name()))
			}
		}
	}

	if len(files) == 0 {
		log.Fatalf("No files to process")
	}

	log.Infof("Found %d file(s)", len(files))

	truncated := make(map[string]bool)
	startTime := time.Now()
	totalRecords := 0

	for _, filePath := range files {
		if ctx.Err() != nil {
			break
		}

		name := filepath.Base(filePath)
		cadence, ok := detectCadence(filePath)
		if !ok {
			log.Infof("[%s] Skipping (unknown format)", name)
			continue
		}
		tableFQN := fmt.Sprintf("%s.%s", cfg.ClickHouse.Database, solar.TableName(cadence))

		if *truncate && !truncated[tableFQN] {
			log.Infof("Truncating table %s...", tableFQN)
			if err := conn.Do(ctx, ch.Query{Body: fmt.Sprintf("TRUNCATE TABLE %s", tableFQN)}); err != nil {
				log.Warnf("Truncate warning: %v", err)
			}
			truncated[tableFQN] = true
		}

		records, err := solar.ReadOMNIFile(filePath, cadence)
		if err != nil {
			log.Errorf("[%s] Parse error: %v", name, err)
			continue
		}

		batch := NewOMNIBatch(cadence)
		for _, r := range records {
			batch.AddRecord(r)
			if batch.Len() >= BatchSize {
				if err := flushBatch(ctx, conn, tableFQN, batch); err != nil {
					log.Fatalf("Insert error: %v", err)
				}
				batch.Reset()
			}
		}
		if err := flushBatch(ctx, conn, tableFQN, batch); err != nil {
			log.Fatalf("Insert error: %v", err)
		}

		log.Infof("[%s] Inserted %d %s records into %s", name, len(records), cadence, tableFQN)
		totalRecords += len(records)
	}

	elapsed := time.Since(startTime)

	log.Infof("=========================================================")
	log.Infof("Final Statistics")
	log.Infof("=========================================================")
	log.Infof("Total Records: %d", totalRecords)
	log.Infof("Elapsed:       %v", elapsed.Round(time.Millisecond))
	log.Infof("Rate:          %.0f records/sec", float64(totalRecords)/elapsed.Seconds())
	log.Infof("=========================================================")
}
