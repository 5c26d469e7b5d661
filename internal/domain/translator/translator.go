// Package translator converts between the platform's entity state model and
// Hue light resources: capability classification, the per-category mapping
// table, and the on-demand Hue JSON builder.
package translator

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/convert"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
	"github.com/richardctrimble/ha-emulated-hue/internal/ports"
)

// ToResource converts one virtual device plus its live entity snapshot into
// the Hue light JSON resource. cached, when non-nil, is a still-valid
// command-echo entry that overrides the live attribute reads. A nil snapshot
// (unlinked device, or entity gone from the platform) yields the fixed
// unreachable dimmable shape.
func ToResource(device *model.VirtualDevice, st *ports.EntityState, cached *model.LightState) map[string]any {
	if !device.Linked() || st == nil {
		return unreachableResource(device)
	}

	category := device.Category()
	features := FeaturesOf(st.Attributes)
	colorModes := ColorModesOf(st.Attributes)

	var data model.LightState
	if cached != nil {
		data = normalizeCached(*cached)
	} else {
		data = liveState(category, st, device.ActionConfig)
	}

	state := map[string]any{
		"on":        data.On,
		"reachable": st.Reachable(),
		"mode":      "homeautomation",
	}
	resource := map[string]any{
		"state":            state,
		"name":             device.Name,
		"uniqueid":         UniqueID(device.ID),
		"manufacturername": "Home Assistant",
		"swversion":        "123",
	}

	lightType := Classify(category, features, colorModes)
	resource["type"] = string(lightType)
	resource["modelid"] = lightType.ModelID()

	switch lightType {
	case model.TypeExtendedColor:
		state["bri"] = *data.Bri
		state["hue"] = *data.Hue
		state["sat"] = *data.Sat
		state["ct"] = *data.Ct
		state["effect"] = "none"
		if *data.Hue > 0 || *data.Sat > 0 {
			state["colormode"] = "hs"
		} else {
			state["colormode"] = "ct"
		}
	case model.TypeColor:
		state["bri"] = *data.Bri
		state["colormode"] = "hs"
		state["hue"] = *data.Hue
		state["sat"] = *data.Sat
		state["effect"] = "none"
	case model.TypeColorTemp:
		state["colormode"] = "ct"
		state["ct"] = *data.Ct
		state["bri"] = *data.Bri
	case model.TypeDimmable:
		state["bri"] = *data.Bri
	default:
		resource["productname"] = "On/Off light"
	}

	return resource
}

func unreachableResource(device *model.VirtualDevice) map[string]any {
	return map[string]any{
		"state": map[string]any{
			"on":        false,
			"reachable": false,
			"mode":      "homeautomation",
			"bri":       0,
		},
		"name":             device.Name,
		"uniqueid":         UniqueID(device.ID),
		"manufacturername": "Home Assistant",
		"swversion":        "123",
		"type":             string(model.TypeDimmable),
		"modelid":          model.TypeDimmable.ModelID(),
	}
}

// liveState builds the Hue-shaped state from the platform snapshot alone.
func liveState(category model.Category, st *ports.EntityState, overrides *model.ActionConfig) model.LightState {
	attrs := st.Attributes
	on := st.On(category)

	bri, hue, sat, ct := 0, 0, 0, 0
	if on {
		if b, ok := attrFloat(attrs, "brightness"); ok {
			bri = convert.ToHueBrightness(int(b))
		}
		if hs, ok := attrs["hs_color"].([]any); ok && len(hs) == 2 {
			h, _ := toFloat(hs[0])
			s, _ := toFloat(hs[1])
			hue = convert.ToHueHue(h)
			sat = convert.ToHueSat(s)
		}
		if kelvin, ok := attrFloat(attrs, "color_temp_kelvin"); ok {
			ct = convert.KelvinToMired(int(kelvin))
		}
	}

	if lvl := ReadLevel(category, attrs, on); lvl != nil {
		bri = *lvl
	}
	if overrides != nil && overrides.ToHueFormula != "" {
		bri = int(math.Round(evalFormula(overrides.ToHueFormula, float64(bri))))
	}

	data := model.LightState{
		On:  on,
		Bri: &bri,
		Hue: &hue,
		Sat: &sat,
		Ct:  &ct,
	}
	clampState(&data)
	return data
}

// normalizeCached fills the gaps of an echoed request so it renders as a
// complete state: a missing brightness becomes full/zero by on-ness, missing
// color becomes neutral, and brightness zero forces neutral color.
func normalizeCached(s model.LightState) model.LightState {
	data := s.Copy()
	if data.Bri == nil {
		bri := 0
		if data.On {
			bri = model.BriMax
		}
		data.Bri = &bri
	}
	if data.Hue == nil || data.Sat == nil {
		data.Hue = model.Int(0)
		data.Sat = model.Int(0)
	}
	if *data.Bri == 0 {
		data.Hue = model.Int(0)
		data.Sat = model.Int(0)
	}
	if data.Ct == nil {
		data.Ct = model.Int(0)
	}
	clampState(&data)
	return data
}

func clampState(data *model.LightState) {
	*data.Bri = convert.Clamp(*data.Bri, 0, model.BriMax)
	*data.Hue = convert.Clamp(*data.Hue, model.HueMin, model.HueMax)
	*data.Sat = convert.Clamp(*data.Sat, model.SatMin, model.SatMax)
	*data.Ct = convert.Clamp(*data.Ct, model.CtMin, model.CtMax)
}

// UniqueID derives the stable MAC-style Hue unique ID for a device ID.
func UniqueID(id string) string {
	sum := md5.Sum([]byte("ha_emulated_hue_" + id))
	hexed := hex.EncodeToString(sum[:])
	return fmt.Sprintf("00:%s:%s:%s:%s:%s:%s:%s-%s",
		hexed[0:2], hexed[2:4], hexed[4:6], hexed[6:8],
		hexed[8:10], hexed[10:12], hexed[12:14], hexed[14:16])
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
