// Package calculator sizes a firefighting resource bundle from
// weather and fire metrics. It is pure: no state, no I/O, and
// deterministic for any given input.
package calculator

import (
	"math"

	"github.com/zargham101/wildfire-backend/models"
)

// Fire size is a scalar in [0, 3.0] derived from a fixed linear
// combination of temperature (°C), wind speed (km/h) and relative
// humidity (%).
const (
	temperatureWeight = 0.03
	windWeight        = 0.05
	humidityWeight    = 0.02
	maxFireSize       = 3.0
)

// Severity tier thresholds on fire size.
const (
	verySmallBelow = 0.1
	smallBelow     = 0.5
	moderateBelow  = 2.0
)

type tierProfile struct {
	base     models.ResourceBundle
	longTerm models.LongTermBundle
}

var tiers = map[string]tierProfile{
	models.SeverityVerySmall: {
		base: models.ResourceBundle{Firefighters: 2, Firetrucks: 1, Helicopters: 0, Commanders: 1},
		longTerm: models.LongTermBundle{
			DailyFirefighters:  2,
			FireStationsNeeded: 0,
		},
	},
	models.SeveritySmall: {
		base: models.ResourceBundle{Firefighters: 8, Firetrucks: 2, Helicopters: 0, Commanders: 1},
		longTerm: models.LongTermBundle{
			DailyFirefighters:  5,
			FireStationsNeeded: 1,
			HeavyEquipment:     []string{"water-tender"},
		},
	},
	models.SeverityModerate: {
		base: models.ResourceBundle{Firefighters: 25, Firetrucks: 5, Helicopters: 2, Commanders: 3},
		longTerm: models.LongTermBundle{
			DailyFirefighters:  15,
			FireStationsNeeded: 2,
			HeavyEquipment:     []string{"bulldozer", "water-tender"},
		},
	},
	models.SeverityLarge: {
		base: models.ResourceBundle{Firefighters: 60, Firetrucks: 12, Helicopters: 5, Commanders: 6},
		longTerm: models.LongTermBundle{
			DailyFirefighters:  40,
			FireStationsNeeded: 4,
			HeavyEquipment:     []string{"bulldozer", "excavator", "water-tender", "mobile-command-unit"},
		},
	},
}

// FireSize derives the clamped fire-size scalar.
func FireSize(temperature, windSpeed, humidity float64) float64 {
	size := temperatureWeight*temperature + windWeight*windSpeed - humidityWeight*humidity
	if size < 0 {
		return 0
	}
	if size > maxFireSize {
		return maxFireSize
	}
	return size
}

// SeverityFor maps a fire size to its severity tier.
func SeverityFor(fireSize float64) string {
	switch {
	case fireSize < verySmallBelow:
		return models.SeverityVerySmall
	case fireSize < smallBelow:
		return models.SeveritySmall
	case fireSize < moderateBelow:
		return models.SeverityModerate
	default:
		return models.SeverityLarge
	}
}

// windUplift returns the percentage uplift for wind speed. Thresholds
// at 10/20/30 km/h add 10%/30%/50%.
func windUplift(windSpeed float64) float64 {
	switch {
	case windSpeed >= 30:
		return 0.5
	case windSpeed >= 20:
		return 0.3
	case windSpeed >= 10:
		return 0.1
	default:
		return 0
	}
}

// humidityUplift returns the percentage uplift for dry air. Below
// 50%/30% humidity adds 10%/20%.
func humidityUplift(humidity float64) float64 {
	switch {
	case humidity < 30:
		return 0.2
	case humidity < 50:
		return 0.1
	default:
		return 0
	}
}

// Size computes the full resource sizing for the given weather inputs.
// Wind and humidity uplifts stack additively and are applied once to
// the tier's base firefighter and helicopter counts. Callers must
// reject NaN inputs before invocation.
func Size(temperature, windSpeed, humidity float64) models.Sizing {
	fireSize := FireSize(temperature, windSpeed, humidity)
	severity := SeverityFor(fireSize)
	profile := tiers[severity]

	uplift := windUplift(windSpeed) + humidityUplift(humidity)

	immediate := profile.base
	immediate.Firefighters = scale(profile.base.Firefighters, uplift)
	immediate.Helicopters = scale(profile.base.Helicopters, uplift)
	immediate.HeavyEquipment = append([]string(nil), profile.longTerm.HeavyEquipment...)

	longTerm := profile.longTerm
	longTerm.HeavyEquipment = append([]string(nil), profile.longTerm.HeavyEquipment...)

	return models.Sizing{
		FireSize:  fireSize,
		Severity:  severity,
		Immediate: immediate,
		LongTerm:  longTerm,
	}
}

func scale(base int, uplift float64) int {
	return int(math.Round(float64(base) * (1 + uplift)))
}
