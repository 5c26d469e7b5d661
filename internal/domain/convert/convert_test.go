package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrightnessZeroStaysZero(t *testing.T) {
	assert.Equal(t, 0, ToHueBrightness(0))
	assert.Equal(t, 0, ToPlatformBrightness(0))
	assert.Equal(t, 0, ToPlatformBrightness(ToHueBrightness(0)))
}

func TestBrightnessNeverCoercedToOff(t *testing.T) {
	for v := 1; v <= 255; v++ {
		assert.GreaterOrEqual(t, ToHueBrightness(v), 1, "platform %d", v)
	}
	for bri := 1; bri <= 254; bri++ {
		assert.GreaterOrEqual(t, ToPlatformBrightness(bri), 1, "hue %d", bri)
	}
}

func TestBrightnessRoundTripStable(t *testing.T) {
	for v := 0; v <= 255; v++ {
		once := ToHueBrightness(v)
		twice := ToHueBrightness(ToPlatformBrightness(once))
		assert.Equal(t, once, twice, "platform %d oscillates", v)
	}
}

func TestBrightnessClamps(t *testing.T) {
	assert.Equal(t, 254, ToHueBrightness(255))
	assert.Equal(t, 254, ToHueBrightness(400))
	assert.Equal(t, 255, ToPlatformBrightness(254))
	assert.Equal(t, 255, ToPlatformBrightness(1000))
}

func TestHueAndSatScales(t *testing.T) {
	assert.Equal(t, 0, ToHueHue(0))
	assert.Equal(t, 65535, ToHueHue(360))
	assert.Equal(t, 65535, ToHueHue(720))
	assert.Equal(t, 0, ToHueSat(0))
	assert.Equal(t, 254, ToHueSat(100))
	assert.Equal(t, 254, ToHueSat(130))
	assert.Equal(t, 100, ToPlatformSat(254))
	assert.Equal(t, 360, ToPlatformHue(65535))
}

func TestMiredRoundTrip(t *testing.T) {
	for m := 153; m <= 500; m++ {
		back := KelvinToMired(MiredToKelvin(m))
		assert.InDelta(t, m, back, 1, "mired %d", m)
	}
}

func TestMiredClamps(t *testing.T) {
	// 6535K is the hot end, 2000K the cold end of the Hue range.
	assert.Equal(t, 153, KelvinToMired(10000))
	assert.Equal(t, 500, KelvinToMired(1000))
	assert.Equal(t, 500, KelvinToMired(0))
	assert.Equal(t, MiredToKelvin(153), MiredToKelvin(100))
	assert.Equal(t, MiredToKelvin(500), MiredToKelvin(900))
}

func TestLevelConversions(t *testing.T) {
	assert.Equal(t, 0, LevelToHueBrightness(0))
	assert.Equal(t, 254, LevelToHueBrightness(100))
	assert.Equal(t, 127, LevelToHueBrightness(50))
	assert.Equal(t, 50, HueBrightnessToLevel(127))
	assert.Equal(t, 100, HueBrightnessToLevel(254))
	assert.Equal(t, 100, HueBrightnessToLevel(999))
}
