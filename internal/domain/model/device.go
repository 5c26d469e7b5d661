package model

import (
	"strings"
	"time"
)

// Category is the platform-side domain of a linked entity. An unlinked
// virtual device defaults to CategoryLight.
type Category string

const (
	CategoryLight        Category = "light"
	CategorySwitch       Category = "switch"
	CategoryFan          Category = "fan"
	CategoryCover        Category = "cover"
	CategoryClimate      Category = "climate"
	CategoryMediaPlayer  Category = "media_player"
	CategoryScript       Category = "script"
	CategoryScene        Category = "scene"
	CategoryHumidifier   Category = "humidifier"
	CategoryInputBoolean Category = "input_boolean"
)

var supportedCategories = map[Category]struct{}{
	CategoryLight:        {},
	CategorySwitch:       {},
	CategoryFan:          {},
	CategoryCover:        {},
	CategoryClimate:      {},
	CategoryMediaPlayer:  {},
	CategoryScript:       {},
	CategoryScene:        {},
	CategoryHumidifier:   {},
	CategoryInputBoolean: {},
}

// offMapsToOn holds the categories whose only platform action is a stateless
// trigger. A Hue "off" for these is still dispatched as an activation, and
// their echo-cache entries never expire.
var offMapsToOn = map[Category]struct{}{
	CategoryScript: {},
	CategoryScene:  {},
}

// Categories returns every supported category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryLight,
		CategorySwitch,
		CategoryFan,
		CategoryCover,
		CategoryClimate,
		CategoryMediaPlayer,
		CategoryScript,
		CategoryScene,
		CategoryHumidifier,
		CategoryInputBoolean,
	}
}

// CategoryOf derives the category from an entity key such as "light.kitchen".
func CategoryOf(entityKey string) Category {
	domain, _, _ := strings.Cut(entityKey, ".")
	return Category(domain)
}

// Supported reports whether the category can be linked to a virtual device.
func (c Category) Supported() bool {
	_, ok := supportedCategories[c]
	return ok
}

// OffMapsToOn reports whether a Hue "off" must be dispatched as "turn on".
func (c Category) OffMapsToOn() bool {
	_, ok := offMapsToOn[c]
	return ok
}

// OffState is the platform state string that counts as "off" in Hue terms.
// Covers report "closed"; every other category reports "off".
func (c Category) OffState() string {
	if c == CategoryCover {
		return "closed"
	}
	return "off"
}

// ActionConfig carries optional per-device overrides for how Hue commands
// and levels map onto the platform. Formulas are expressions in x, e.g.
// "x * 2.54".
type ActionConfig struct {
	OnAction          string `json:"on_action,omitempty"`
	OffAction         string `json:"off_action,omitempty"`
	ToHueFormula      string `json:"to_hue_formula,omitempty"`
	ToPlatformFormula string `json:"to_platform_formula,omitempty"`
}

// VirtualDevice is a bridge-side identity with a stable numeric ID,
// optionally linked to one platform entity. IDs of deleted devices are
// retired forever so that Hue clients with stale caches get a predictable
// not-found instead of a different device.
type VirtualDevice struct {
	ID           string        `json:"hue_id"`
	Name         string        `json:"name"`
	EntityID     string        `json:"entity_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	ModifiedAt   time.Time     `json:"modified_at"`
	LastAccessAt *time.Time    `json:"last_access_at,omitempty"`
	LastAccessBy string        `json:"last_access_by,omitempty"`
	ActionConfig *ActionConfig `json:"action_config,omitempty"`
}

// Linked reports whether the device currently maps to a platform entity.
func (d *VirtualDevice) Linked() bool {
	return d.EntityID != ""
}

// Category returns the linked entity's category, or light when unlinked.
func (d *VirtualDevice) Category() Category {
	if !d.Linked() {
		return CategoryLight
	}
	return CategoryOf(d.EntityID)
}

// RecordAccess stamps the device with the time and source of a Hue API
// touch. Observability only; nothing reads it back for logic.
func (d *VirtualDevice) RecordAccess(clientAddr string) {
	now := time.Now()
	d.LastAccessAt = &now
	d.LastAccessBy = clientAddr
}

// Copy returns an independent copy of the record.
func (d *VirtualDevice) Copy() *VirtualDevice {
	cp := *d
	if d.LastAccessAt != nil {
		t := *d.LastAccessAt
		cp.LastAccessAt = &t
	}
	if d.ActionConfig != nil {
		ac := *d.ActionConfig
		cp.ActionConfig = &ac
	}
	return &cp
}
