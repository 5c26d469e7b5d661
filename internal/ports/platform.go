package ports

import (
	"context"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
)

// EntityState is one platform entity snapshot: the raw state string plus the
// heterogeneous attribute map the platform reports for it.
type EntityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// On converts the platform state string to the Hue on/off boolean for the
// given category. Anything that is not the category's off state counts as
// on; unavailable entities are handled separately via Reachable.
func (s *EntityState) On(category model.Category) bool {
	return s.State != category.OffState()
}

// Reachable reports whether the platform can currently talk to the entity.
func (s *EntityState) Reachable() bool {
	return s.State != "unavailable"
}

// HomeAutomationPort is the narrow interface through which the bridge
// consumes the underlying home-automation platform. Command dispatch is
// fire-and-forget from the core's perspective; a dropped command surfaces
// only through the independently computed reachable flag.
type HomeAutomationPort interface {
	// GetEntityState returns the entity snapshot, or nil when the entity
	// does not exist on the platform.
	GetEntityState(ctx context.Context, entityKey string) (*EntityState, error)

	// IssueCommand calls a platform service, e.g. ("homeassistant",
	// "turn_on", map{"entity_id": …, "brightness": …}).
	IssueCommand(ctx context.Context, domain, action string, payload map[string]any) error

	// SubscribeStateChange registers a callback for any state change of the
	// entity and returns the matching unsubscribe.
	SubscribeStateChange(entityKey string, callback func()) (unsubscribe func())

	// ListEntityKeys returns all entity keys in the given category.
	ListEntityKeys(ctx context.Context, category model.Category) ([]string, error)

	// EntityExists reports whether the entity currently exists.
	EntityExists(ctx context.Context, entityKey string) bool
}
