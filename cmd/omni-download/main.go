// omni-download - Download yearly OMNI solar wind archives from NASA SPDF
//
// Products:
//   - hourly: OMNI2 merged hourly data (omni2_YYYY.dat)
//   - 5min:   high resolution OMNI, 5-minute averages (omni_5minYYYY.asc)
//   - 1min:   high resolution OMNI, 1-minute averages (omni_minYYYY.asc)
//
// Files land under the configured omni.dir with the names FileSource reads,
// optionally gzipped.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/omni-download ./cmd/omni-download

package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/common"
	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/log"
	"github.com/KI7MT/ki7mt-ai-lab-aurora/internal/solar"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

const spdfBase = "https://spdf.gsfc.nasa.gov/pub/data/omni"

// archiveURL returns the SPDF location of one yearly file.
func archiveURL(cadence solar.Cadence, year int) string {
	dir := "high_res_omni"
	if cadence == solar.Hourly {
		dir = "low_res_omni"
	}
	return fmt.Sprintf("%s/%s/%s", spdfBase, dir, solar.OMNIFileName(cadence, year))
}

func downloadFile(url, destPath string, timeout time.Duration, compress bool) (int64, error) {
	client := &http.Client{
		Timeout: timeout,
	}

	resp, err := client.Get(url)
	if err != nil {
		return 0, fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Create temp file
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create file failed: %w", err)
	}

	n, err := copyBody(f, resp.Body, compress)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("download failed: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename failed: %w", err)
	}
	return n, nil
}

// copyBody copies r to w, through a parallel gzip writer when compress is set.
func copyBody(w io.Writer, r io.Reader, compress bool) (int64, error) {
	if !compress {
		return io.Copy(w, r)
	}
	zw := pgzip.NewWriter(w)
	n, err := io.Copy(zw, r)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	destDir := flag.String("dest", "", "Destination directory (default: omni.dir)")
	cadenceName := flag.String("cadence", "hourly", "Product: hourly, 5min, 1min")
	startYear := flag.Int("start-year", time.Now().UTC().Year(), "First year to download")
	endYear := flag.Int("end-year", time.Now().UTC().Year(), "Last year to download")
	timeout := flag.Duration("timeout", 5*time.Minute, "HTTP timeout per download")
	compress := flag.Bool("gzip", false, "Store files gzipped")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "omni-download v%s - OMNI Archive Downloader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Downloads yearly OMNI solar wind files from NASA SPDF.\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg, err := common.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *destDir == "" {
		*destDir = cfg.OMNI.Dir
	}
	if err := log.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cadence, ok := solar.ParseCadence(*cadenceName)
	if !ok {
		log.Fatalf("Unknown cadence %q", *cadenceName)
	}
	if *endYear < *startYear {
		log.Fatalf("end-year %d is before start-year %d", *endYear, *startYear)
	}

	log.Infof("=========================================================")
	log.Infof("OMNI Download v%s", Version)
	log.Infof("=========================================================")
	log.Infof("Destination: %s", *destDir)
	log.Infof("Product:     %s %d-%d", cadence, *startYear, *endYear)
	log.Infof("Timeout:     %v", *timeout)

	// Create destination directory
	if err := os.MkdirAll(*destDir, 0755); err != nil {
		log.Fatalf("Cannot create directory: %v", err)
	}

	startTime := time.Now()
	downloaded := 0
	failed := 0

	for year := *startYear; year <= *endYear; year++ {
		url := archiveURL(cadence, year)
		name := solar.OMNIFileName(cadence, year)
		if *compress {
			name += ".gz"
		}
		destPath := filepath.Join(*destDir, name)
		log.Infof("[%d] Downloading from %s...", year, url)

		n, err := downloadFile(url, destPath, *timeout, *compress)
		if err != nil {
			log.Errorf("[%d] %v", year, err)
			failed++
			continue
		}
		log.Infof("[%d] Downloaded %s (%d bytes)", year, name, n)
		downloaded++
	}

	elapsed := time.Since(startTime)

	log.Infof("=========================================================")
	log.Infof("Download Summary")
	log.Infof("=========================================================")
	log.Infof("Downloaded: %d files", downloaded)
	log.Infof("Failed:     %d files", failed)
	log.Infof("Elapsed:    %v", elapsed.Round(time.Millisecond))
	log.Infof("=========================================================")

	if failed > 0 {
		log.Sync()
		os.Exit(1)
	}
}
