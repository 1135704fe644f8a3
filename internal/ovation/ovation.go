// Package ovation implements the Ovation Prime auroral precipitation model.
// It loads the seasonal regression tables, estimates probability and flux
// per (mlt, mlat) bin, sweeps full hemisphere grids, and blends the four
// seasons into a flux map for an arbitrary date.
//
// Grid geometry is fixed by the coefficient files:
//   - 96 magnetic local time bins (15 minute resolution, 0-24h)
//   - 160 magnetic latitude bins (0.25 degree, 80 southern then 80 northern)
//   - 12 coupling strength (dF) bins for the tabulated probabilities
package ovation

import (
	"strconv"
	"strings"
)

// =============================================================================
// Grid Constants
// =============================================================================

const (
	NumMLTBins  = 96
	NumMLatBins = 160
	NumDFBins   = 12

	// NumHemiMLatBins is the number of latitude rows per hemisphere.
	NumHemiMLatBins = NumMLatBins / 2

	// dFAve/8 is the width of one tabulated coupling strength bin.
	dFAve  = 4421.0
	dFStep = dFAve / 8.0
)

// =============================================================================
// Season
// =============================================================================

// Season selects one of the four seasonal coefficient sets.
type Season int

const (
	Winter Season = iota
	Spring
	Summer
	Fall
)

// Seasons lists every season in a stable order.
var Seasons = [4]Season{Winter, Spring, Summer, Fall}

func (s Season) String() string {
	switch s {
	case Winter:
		return "winter"
	case Spring:
		return "spring"
	case Summer:
		return "summer"
	case Fall:
		return "fall"
	default:
		return "season(" + strconv.Itoa(int(s)) + ")"
	}
}

func (s Season) valid() bool { return s >= Winter && s <= Fall }

// ParseSeason parses a season name.
func ParseSeason(name string) (Season, error) {
	for _, s := range Seasons {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	return 0, &RangeError{What: "season", Value: name}
}

// =============================================================================
// Auroral Type
// =============================================================================

// AuroralType is the precipitation mechanism a coefficient set describes.
type AuroralType int

const (
	Diffuse AuroralType = iota
	Mono
	Wave
	Ions
)

// AuroralTypes lists every auroral type in a stable order.
var AuroralTypes = [4]AuroralType{Diffuse, Mono, Wave, Ions}

// String returns the short name used in coefficient file names.
func (a AuroralType) String() string {
	switch a {
	case Diffuse:
		return "diff"
	case Mono:
		return "mono"
	case Wave:
		return "wave"
	case Ions:
		return "ions"
	default:
		return "atype(" + strconv.Itoa(int(a)) + ")"
	}
}

func (a AuroralType) valid() bool { return a >= Diffuse && a <= Ions }

// HasProbabilityModel reports whether a probability file exists for this type.
func (a AuroralType) HasProbabilityModel() bool { return a != Ions }

// ParseAuroralType parses diff, mono, wave or ions.
func ParseAuroralType(name string) (AuroralType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "diffuse" {
		return Diffuse, nil
	}
	for _, a := range AuroralTypes {
		if n == a.String() {
			return a, nil
		}
	}
	return 0, &RangeError{What: "auroral type", Value: name}
}

// =============================================================================
// Flux Type
// =============================================================================

// FluxType is the quantity being estimated.
type FluxType int

const (
	ElectronEnergyFlux FluxType = iota + 1
	IonEnergyFlux
	ElectronNumberFlux
	IonNumberFlux
	ElectronAverageEnergy
	IonAverageEnergy
)

var fluxTypeNames = map[FluxType]string{
	ElectronEnergyFlux:    "electron energy flux",
	IonEnergyFlux:         "ion energy flux",
	ElectronNumberFlux:    "electron number flux",
	IonNumberFlux:         "ion number flux",
	ElectronAverageEnergy: "electron average energy",
	IonAverageEnergy:      "ion average energy",
}

func (f FluxType) String() string {
	if name, ok := fluxTypeNames[f]; ok {
		return name
	}
	return "ftype(" + strconv.Itoa(int(f)) + ")"
}

func (f FluxType) valid() bool { return f >= ElectronEnergyFlux && f <= IonAverageEnergy }

// IsNumberFlux reports whether the number flux ("_n") coefficient files apply.
func (f FluxType) IsNumberFlux() bool {
	return f == ElectronNumberFlux || f == IonNumberFlux
}

// IsIon reports whether the flux type describes ions.
func (f FluxType) IsIon() bool {
	return f == IonEnergyFlux || f == IonNumberFlux || f == IonAverageEnergy
}

// ParseFluxType accepts the canonical names ("electron energy flux"), their
// underscore forms, and the legacy integer codes 1-6.
func ParseFluxType(s string) (FluxType, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	if code, err := strconv.Atoi(n); err == nil {
		f := FluxType(code)
		if f.valid() {
			return f, nil
		}
		return 0, &RangeError{What: "flux type", Value: s}
	}
	n = strings.ReplaceAll(n, "_", " ")
	for f, name := range fluxTypeNames {
		if n == name {
			return f, nil
		}
	}
	return 0, &RangeError{What: "flux type", Value: s}
}

// FluxTypeFor resolves the short "energy" / "number" selector to the
// flux type matching the species of the auroral type.
func FluxTypeFor(atype AuroralType, energyOrNumber string) (FluxType, error) {
	ion := atype == Ions
	switch strings.ToLower(energyOrNumber) {
	case "energy":
		if ion {
			return IonEnergyFlux, nil
		}
		return ElectronEnergyFlux, nil
	case "number":
		if ion {
			return IonNumberFlux, nil
		}
		return ElectronNumberFlux, nil
	case "average", "average energy":
		if ion {
			return IonAverageEnergy, nil
		}
		return ElectronAverageEnergy, nil
	}
	return 0, &RangeError{What: "flux selector", Value: energyOrNumber}
}

// =============================================================================
// Hemisphere
// =============================================================================

// Hemisphere selects the northern or southern polar cap.
type Hemisphere int

const (
	North Hemisphere = iota
	South
)

func (h Hemisphere) String() string {
	if h == South {
		return "S"
	}
	return "N"
}

// ParseHemisphere accepts N/S (any case) or north/south.
func ParseHemisphere(s string) (Hemisphere, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "north":
		return North, nil
	case "s", "south":
		return South, nil
	}
	return 0, &RangeError{What: "hemisphere", Value: s}
}
