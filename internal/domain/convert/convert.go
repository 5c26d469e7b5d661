// Package convert holds the pure unit conversions between platform-native
// attribute ranges and the Hue API's ranges. Every function is total and
// clamps its result into the documented Hue bounds.
package convert

import (
	"math"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
)

// ToHueBrightness converts a platform brightness (0-255) to the Hue scale.
// Zero stays zero so an off-equivalent level is never reported as dimly on;
// any non-zero level floors at 1.
func ToHueBrightness(v int) int {
	if v <= 0 {
		return 0
	}
	bri := int(math.Round(float64(v) / 255 * model.BriMax))
	return clamp(bri, model.BriMin, model.BriMax)
}

// ToPlatformBrightness converts a Hue brightness (1-254) to the platform's
// 0-255 scale. Any in-range Hue value maps to at least 1, so "on with
// minimum" is never coerced to off.
func ToPlatformBrightness(bri int) int {
	if bri <= 0 {
		return 0
	}
	v := int(math.Round(float64(bri) / model.BriMax * 255))
	return clamp(v, 1, 255)
}

// ToHueHue converts hue degrees (0-360) to the Hue 0-65535 scale.
func ToHueHue(degrees float64) int {
	return clamp(int(degrees/360*model.HueMax), model.HueMin, model.HueMax)
}

// ToPlatformHue converts a Hue hue (0-65535) back to degrees.
func ToPlatformHue(hue int) int {
	return clamp(int(float64(hue)/model.HueMax*360), 0, 360)
}

// ToHueSat converts a saturation percentage (0-100) to the Hue 0-254 scale.
func ToHueSat(percent float64) int {
	return clamp(int(percent/100*model.SatMax), model.SatMin, model.SatMax)
}

// ToPlatformSat converts a Hue saturation (0-254) back to a percentage.
func ToPlatformSat(sat int) int {
	return clamp(int(float64(sat)/model.SatMax*100), 0, 100)
}

// KelvinToMired converts a color temperature in Kelvin to mireds, clamped
// into the Hue-reportable range.
func KelvinToMired(kelvin int) int {
	if kelvin <= 0 {
		return model.CtMax
	}
	return clamp(int(math.Round(1_000_000/float64(kelvin))), model.CtMin, model.CtMax)
}

// MiredToKelvin converts mireds to Kelvin. The input is clamped into the
// Hue range first, so the conversion is its own inverse up to rounding.
func MiredToKelvin(mired int) int {
	mired = clamp(mired, model.CtMin, model.CtMax)
	return int(math.Round(1_000_000 / float64(mired)))
}

// LevelToHueBrightness converts a 0-100 platform level (position, speed,
// volume percent, target temperature, humidity) to the Hue 0-254 scale.
func LevelToHueBrightness(level float64) int {
	return clamp(int(math.Round(level*model.BriMax/100)), 0, model.BriMax)
}

// HueBrightnessToLevel converts a Hue brightness to a 0-100 level.
func HueBrightnessToLevel(bri int) int {
	return clamp(int(math.Round(float64(bri)/model.BriMax*100)), 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp bounds a Hue-scale value; exported for the translator's cached-state
// normalization.
func Clamp(v, lo, hi int) int { return clamp(v, lo, hi) }
