package model

// Hue API bounds, per the Lights API reference.
const (
	BriMin = 1
	BriMax = 254
	HueMin = 0
	HueMax = 65535
	SatMin = 0
	SatMax = 254
	CtMin  = 153
	CtMax  = 500
)

// LightType is the Hue light type a virtual device presents as.
type LightType string

const (
	TypeOnOff         LightType = "On/Off light"
	TypeDimmable      LightType = "Dimmable light"
	TypeColorTemp     LightType = "Color temperature light"
	TypeColor         LightType = "Color light"
	TypeExtendedColor LightType = "Extended color light"
)

// ModelID returns the model identifier reported for the light type.
func (t LightType) ModelID() string {
	switch t {
	case TypeExtendedColor:
		return "HASS231"
	case TypeColor:
		return "HASS213"
	case TypeColorTemp:
		return "HASS312"
	case TypeOnOff:
		return "HASS321"
	default:
		return "HASS123"
	}
}

// LightState is a Hue-shaped state snapshot. Nil fields were not present in
// the request (or are not reported for the light type); On is always
// meaningful.
type LightState struct {
	On             bool
	Bri            *int
	Hue            *int
	Sat            *int
	Ct             *int
	XY             *[2]float64
	TransitionTime *int
}

// Copy returns an independent copy of the state.
func (s LightState) Copy() LightState {
	cp := s
	cp.Bri = copyInt(s.Bri)
	cp.Hue = copyInt(s.Hue)
	cp.Sat = copyInt(s.Sat)
	cp.Ct = copyInt(s.Ct)
	cp.TransitionTime = copyInt(s.TransitionTime)
	if s.XY != nil {
		xy := *s.XY
		cp.XY = &xy
	}
	return cp
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

// Int is a convenience for building optional numeric fields.
func Int(v int) *int { return &v }
