package translator

import (
	"math"
	"strings"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/convert"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
)

// Command is one platform service call produced from a Hue state request.
type Command struct {
	Domain  string
	Action  string
	Payload map[string]any

	// PreTurnOn means the entity needs a generic turn_on issued before the
	// level-setting call (humidifiers and media players won't accept a
	// level while off).
	PreTurnOn bool
}

// CommandInput bundles everything a rule needs to map a request.
type CommandInput struct {
	EntityID   string
	Request    model.LightState
	Features   int
	ColorModes []string
	Overrides  *model.ActionConfig
}

// rule is one row of the per-category mapping table: how an entity of this
// category advertises a brightness-equivalent command, how a Hue brightness
// request is reinterpreted, how its level reads back as Hue brightness, and
// how a parsed request becomes a platform command.
type rule struct {
	dimFeature   int
	rescaleLevel bool
	readLevel    func(attrs map[string]any, on bool) *int
	mapCommand   func(in CommandInput) *Command
}

var rules = map[model.Category]rule{
	model.CategoryLight: {
		mapCommand: mapLightCommand,
	},
	model.CategorySwitch: {
		mapCommand: turnOnOff,
	},
	model.CategoryInputBoolean: {
		mapCommand: turnOnOff,
	},
	model.CategoryScript: {
		rescaleLevel: true,
		mapCommand:   mapScriptCommand,
	},
	model.CategoryScene: {
		mapCommand: turnOnOff,
	},
	model.CategoryClimate: {
		dimFeature:   ClimateSupportsTargetTemperature,
		rescaleLevel: true,
		readLevel:    levelFromAttr("temperature"),
		mapCommand:   mapClimateCommand,
	},
	model.CategoryHumidifier: {
		rescaleLevel: true,
		readLevel:    levelFromAttr("humidity"),
		mapCommand:   mapHumidifierCommand,
	},
	model.CategoryMediaPlayer: {
		dimFeature:   MediaPlayerSupportsVolumeSet,
		rescaleLevel: true,
		readLevel:    readVolumeLevel,
		mapCommand:   mapMediaPlayerCommand,
	},
	model.CategoryCover: {
		dimFeature:   CoverSupportsSetPosition,
		rescaleLevel: true,
		readLevel:    levelFromAttr("current_position"),
		mapCommand:   mapCoverCommand,
	},
	model.CategoryFan: {
		dimFeature:   FanSupportsSetSpeed,
		rescaleLevel: true,
		readLevel:    levelFromAttr("percentage"),
		mapCommand:   mapFanCommand,
	},
}

// NormalizeRequest applies the per-category brightness reinterpretation to a
// parsed request that carried a bri field. Lights gate on/off at bri>0 (or
// drop bri entirely when undimmable); scenes ignore bri and always turn on;
// the level categories rescale 0-254 to 0-100 and treat the request as
// "turn on with level".
func NormalizeRequest(category model.Category, features int, colorModes []string, req *model.LightState) {
	if req.Bri == nil {
		return
	}
	switch {
	case category == model.CategoryLight:
		if BrightnessSupported(colorModes) {
			req.On = *req.Bri > 0
		} else {
			req.Bri = nil
		}
	case category == model.CategoryScene:
		req.Bri = nil
		req.On = true
	case rules[category].rescaleLevel:
		level := convert.HueBrightnessToLevel(*req.Bri)
		req.Bri = &level
		req.On = true
	}
}

// MapCommand turns a parsed, normalized request into the platform command
// for the entity's category, or nil when no service call applies (a climate
// request with nothing to set). Off-maps-to-on categories always dispatch an
// activation; per-device action overrides are applied last.
func MapCommand(category model.Category, in CommandInput) *Command {
	r, ok := rules[category]
	var cmd *Command
	if ok {
		cmd = r.mapCommand(in)
	} else {
		cmd = turnOnOff(in)
	}
	if cmd == nil {
		return nil
	}

	if category.OffMapsToOn() {
		cmd.Action = "turn_on"
	}

	if in.Overrides != nil {
		override := in.Overrides.OffAction
		if in.Request.On {
			override = in.Overrides.OnAction
		}
		if domain, action, ok := strings.Cut(override, "."); ok {
			cmd.Domain = domain
			cmd.Action = action
		}
	}
	return cmd
}

// ReadLevel returns the category's Hue-scale brightness read from platform
// attributes, or nil when the category reports brightness the generic way.
func ReadLevel(category model.Category, attrs map[string]any, on bool) *int {
	r, ok := rules[category]
	if !ok || r.readLevel == nil {
		return nil
	}
	return r.readLevel(attrs, on)
}

func turnOnOff(in CommandInput) *Command {
	action := "turn_off"
	if in.Request.On {
		action = "turn_on"
	}
	return &Command{
		Domain:  "homeassistant",
		Action:  action,
		Payload: map[string]any{"entity_id": in.EntityID},
	}
}

func mapLightCommand(in CommandInput) *Command {
	cmd := turnOnOff(in)
	if !in.Request.On {
		return cmd
	}

	req := in.Request
	if BrightnessSupported(in.ColorModes) && req.Bri != nil {
		cmd.Payload["brightness"] = platformBrightness(in)
	}

	if ColorSupported(in.ColorModes) {
		hue, sat := 0, 0
		if req.Hue != nil {
			hue = *req.Hue
		}
		if req.Sat != nil {
			sat = *req.Sat
		}
		if hue > 0 || sat > 0 {
			cmd.Payload["hs_color"] = []float64{
				float64(convert.ToPlatformHue(hue)),
				float64(convert.ToPlatformSat(sat)),
			}
		}
		if req.XY != nil {
			cmd.Payload["xy_color"] = []float64{req.XY[0], req.XY[1]}
		}
	}

	if ColorTempSupported(in.ColorModes) && req.Ct != nil {
		cmd.Payload["color_temp_kelvin"] = convert.MiredToKelvin(*req.Ct)
	}

	if in.Features&LightSupportsTransition != 0 && req.TransitionTime != nil {
		// Hue transition time is in 100ms units, the platform wants seconds.
		cmd.Payload["transition"] = float64(*req.TransitionTime) / 10
	}
	return cmd
}

func mapScriptCommand(in CommandInput) *Command {
	requested := "off"
	if in.Request.On {
		requested = "on"
	}
	variables := map[string]any{"requested_state": requested}
	if lvl := requestLevel(in); lvl != nil {
		variables["requested_level"] = *lvl
	}
	cmd := turnOnOff(in)
	cmd.Payload["variables"] = variables
	return cmd
}

func mapClimateCommand(in CommandInput) *Command {
	lvl := requestLevel(in)
	if in.Features&ClimateSupportsTargetTemperature == 0 || lvl == nil {
		return nil
	}
	return &Command{
		Domain:  "climate",
		Action:  "set_temperature",
		Payload: map[string]any{"entity_id": in.EntityID, "temperature": *lvl},
	}
}

func mapHumidifierCommand(in CommandInput) *Command {
	lvl := requestLevel(in)
	if lvl == nil {
		return turnOnOff(in)
	}
	return &Command{
		Domain:    "humidifier",
		Action:    "set_humidity",
		Payload:   map[string]any{"entity_id": in.EntityID, "humidity": *lvl},
		PreTurnOn: true,
	}
}

func mapMediaPlayerCommand(in CommandInput) *Command {
	lvl := requestLevel(in)
	if in.Features&MediaPlayerSupportsVolumeSet == 0 || lvl == nil {
		return turnOnOff(in)
	}
	return &Command{
		Domain:    "media_player",
		Action:    "volume_set",
		Payload:   map[string]any{"entity_id": in.EntityID, "volume_level": float64(*lvl) / 100},
		PreTurnOn: true,
	}
}

func mapCoverCommand(in CommandInput) *Command {
	lvl := requestLevel(in)
	if in.Features&CoverSupportsSetPosition != 0 && lvl != nil {
		return &Command{
			Domain:  "cover",
			Action:  "set_cover_position",
			Payload: map[string]any{"entity_id": in.EntityID, "position": *lvl},
		}
	}
	action := "close_cover"
	if in.Request.On {
		action = "open_cover"
	}
	return &Command{
		Domain:  "cover",
		Action:  action,
		Payload: map[string]any{"entity_id": in.EntityID},
	}
}

func mapFanCommand(in CommandInput) *Command {
	lvl := requestLevel(in)
	if in.Features&FanSupportsSetSpeed == 0 || lvl == nil {
		return turnOnOff(in)
	}
	cmd := turnOnOff(in)
	cmd.Domain = "fan"
	cmd.Payload["percentage"] = *lvl
	return cmd
}

// requestLevel returns the request's 0-100 level with any per-device
// to-platform formula applied.
func requestLevel(in CommandInput) *int {
	if in.Request.Bri == nil {
		return nil
	}
	lvl := float64(*in.Request.Bri)
	if in.Overrides != nil {
		lvl = evalFormula(in.Overrides.ToPlatformFormula, lvl)
	}
	n := int(math.Round(lvl))
	return &n
}

// platformBrightness converts the request's Hue brightness to the platform's
// 0-255 scale, honoring a per-device formula when one is set.
func platformBrightness(in CommandInput) int {
	bri := *in.Request.Bri
	if in.Overrides != nil && in.Overrides.ToPlatformFormula != "" {
		return int(math.Round(evalFormula(in.Overrides.ToPlatformFormula, float64(bri))))
	}
	return convert.ToPlatformBrightness(bri)
}

func levelFromAttr(key string) func(attrs map[string]any, on bool) *int {
	return func(attrs map[string]any, _ bool) *int {
		v, _ := attrFloat(attrs, key)
		bri := convert.LevelToHueBrightness(v)
		return &bri
	}
}

func readVolumeLevel(attrs map[string]any, on bool) *int {
	v, ok := attrFloat(attrs, "volume_level")
	if !ok {
		if on {
			v = 1.0
		} else {
			v = 0.0
		}
	}
	bri := convert.LevelToHueBrightness(math.Min(1.0, v) * 100)
	return &bri
}

func attrFloat(attrs map[string]any, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
