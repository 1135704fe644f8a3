// Package solar provides solar wind data handling for the auroral model.
// This package reads OMNI-style interplanetary magnetic field and plasma
// samples from archive files or ClickHouse, and keeps a time-bounded
// window of them cached per data cadence.
package solar

import (
	"strconv"
	"strings"
	"time"
)

// SchemaVersion is the current solar wind table schema version.
const SchemaVersion = 2

// Record represents one solar wind sample.
// Missing values are NaN.
type Record struct {
	Epoch time.Time `ch:"epoch"`
	Bx    float64   `ch:"bx_gse"`         // IMF Bx, GSE (nT)
	By    float64   `ch:"by_gsm"`         // IMF By, GSM (nT)
	Bz    float64   `ch:"bz_gsm"`         // IMF Bz, GSM (nT)
	V     float64   `ch:"flow_speed"`     // Bulk flow speed (km/s)
	N     float64   `ch:"proton_density"` // Proton density (n/cc)
	F107  float64   `ch:"f107"`           // Daily F10.7 (sfu), hourly data only
}

// =============================================================================
// Cadence
// =============================================================================

// Cadence is the sampling interval of a solar wind data product.
type Cadence int

const (
	Hourly Cadence = iota
	FiveMinute
	OneMinute
)

// Cadences lists the supported cadences.
var Cadences = [3]Cadence{Hourly, FiveMinute, OneMinute}

func (c Cadence) String() string {
	switch c {
	case Hourly:
		return "hourly"
	case FiveMinute:
		return "5min"
	case OneMinute:
		return "1min"
	default:
		return "cadence(" + strconv.Itoa(int(c)) + ")"
	}
}

// Interval returns the nominal sample spacing.
func (c Cadence) Interval() time.Duration {
	switch c {
	case FiveMinute:
		return 5 * time.Minute
	case OneMinute:
		return time.Minute
	default:
		return time.Hour
	}
}

// ParseCadence parses hourly, 5min or 1min.
func ParseCadence(s string) (Cadence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hourly", "1h", "hour":
		return Hourly, true
	case "5min", "5m":
		return FiveMinute, true
	case "1min", "1m", "minute":
		return OneMinute, true
	}
	return 0, false
}

// =============================================================================
// Table Field Names
// =============================================================================

const (
	FieldEpoch         = "Epoch"
	FieldBx            = "BX_GSE"
	FieldBy            = "BY_GSM"
	FieldBz            = "BZ_GSM"
	FieldV             = "V"
	FieldN             = "N"
	FieldFlowSpeed     = "flow_speed"
	FieldProtonDensity = "proton_density"
	FieldF107          = "F10_INDEX"
)

// VelocityField is the velocity column name for tables of this cadence.
func (c Cadence) VelocityField() string {
	if c == Hourly {
		return FieldV
	}
	return FieldFlowSpeed
}

// DensityField is the density column name for tables of this cadence.
func (c Cadence) DensityField() string {
	if c == Hourly {
		return FieldN
	}
	return FieldProtonDensity
}
