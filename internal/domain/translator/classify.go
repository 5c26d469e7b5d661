package translator

import (
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
)

// Feature bits, matching the platform's supported_features bitmasks for the
// categories that have a brightness-equivalent command.
const (
	FanSupportsSetSpeed              = 1
	ClimateSupportsTargetTemperature = 1
	CoverSupportsSetPosition         = 4
	MediaPlayerSupportsVolumeSet     = 4
	LightSupportsTransition          = 32
)

var colorCapableModes = map[string]struct{}{
	"hs":    {},
	"xy":    {},
	"rgb":   {},
	"rgbw":  {},
	"rgbww": {},
}

// BrightnessSupported reports whether a light's color modes include any mode
// with a brightness channel.
func BrightnessSupported(colorModes []string) bool {
	for _, m := range colorModes {
		if m != "onoff" && m != "unknown" {
			return true
		}
	}
	return false
}

// ColorSupported reports whether any declared color mode carries hue/sat.
func ColorSupported(colorModes []string) bool {
	for _, m := range colorModes {
		if _, ok := colorCapableModes[m]; ok {
			return true
		}
	}
	return false
}

// ColorTempSupported reports whether the light declares a color temperature
// mode.
func ColorTempSupported(colorModes []string) bool {
	for _, m := range colorModes {
		if m == "color_temp" {
			return true
		}
	}
	return false
}

// BrightnessEquivalent centralizes the per-category feature check: does this
// entity have a command a Hue brightness request can drive? For lights that
// is a brightness-capable color mode; for the dimmable categories it is the
// category's set-level feature bit.
func BrightnessEquivalent(category model.Category, features int, colorModes []string) bool {
	if category == model.CategoryLight {
		return BrightnessSupported(colorModes)
	}
	r, ok := rules[category]
	if !ok || r.dimFeature == 0 {
		// Scripts and humidifiers still take a level at dispatch time, but
		// they present as plain on/off lights.
		return false
	}
	return features&r.dimFeature != 0
}

// Classify maps an entity's declared capabilities to the Hue light type it
// presents as.
func Classify(category model.Category, features int, colorModes []string) model.LightType {
	if category == model.CategoryLight {
		color := ColorSupported(colorModes)
		temp := ColorTempSupported(colorModes)
		switch {
		case color && temp:
			return model.TypeExtendedColor
		case color:
			return model.TypeColor
		case temp:
			return model.TypeColorTemp
		case BrightnessSupported(colorModes):
			return model.TypeDimmable
		default:
			return model.TypeOnOff
		}
	}
	if BrightnessEquivalent(category, features, colorModes) {
		return model.TypeDimmable
	}
	return model.TypeOnOff
}

// FeaturesOf extracts the supported_features bitmask from a platform
// attribute map.
func FeaturesOf(attrs map[string]any) int {
	switch v := attrs["supported_features"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// ColorModesOf extracts the supported_color_modes list from a platform
// attribute map.
func ColorModesOf(attrs map[string]any) []string {
	raw, ok := attrs["supported_color_modes"].([]any)
	if !ok {
		return nil
	}
	modes := make([]string, 0, len(raw))
	for _, m := range raw {
		if s, ok := m.(string); ok {
			modes = append(modes, s)
		}
	}
	return modes
}
