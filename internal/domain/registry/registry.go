// Package registry owns the set of virtual Hue devices: stable numeric ID
// assignment, entity links, and persistence. IDs of deleted devices are
// retired permanently — Hue clients cache IDs, and reusing one would
// silently point a stale client at the wrong device.
package registry

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
	"github.com/richardctrimble/ha-emulated-hue/internal/ports"
)

// Registry is safe for concurrent use. Mutations hold the write lock across
// the full read-modify-write-persist sequence; reads return copies.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]*model.VirtualDevice
	retired  map[string]struct{}
	nextID   int
	store    ports.DocumentStore
	platform ports.HomeAutomationPort
	log      zerolog.Logger
	now      func() time.Time
}

// Stats summarizes the registry for the admin surface.
type Stats struct {
	TotalDevices  int `json:"total_devices"`
	LinkedDevices int `json:"linked_devices"`
	RetiredIDs    int `json:"retired_ids"`
	NextID        int `json:"next_id"`
}

// New creates a registry backed by the given document store. The platform
// port is consulted to validate entity links.
func New(store ports.DocumentStore, platform ports.HomeAutomationPort, log zerolog.Logger) *Registry {
	return &Registry{
		devices:  make(map[string]*model.VirtualDevice),
		retired:  make(map[string]struct{}),
		nextID:   1,
		store:    store,
		platform: platform,
		log:      log.With().Str("component", "registry").Logger(),
		now:      time.Now,
	}
}

// Restore loads the persisted registry. The next-ID counter is recomputed as
// one past the maximum known ID when that exceeds the stored counter, so a
// corrupted counter cannot cause ID reuse.
func (r *Registry) Restore(ctx context.Context) error {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	if doc == nil {
		r.log.Info().Msg("no stored devices, starting fresh")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[string]*model.VirtualDevice, len(doc.Devices))
	for id, d := range doc.Devices {
		r.devices[id] = d.Copy()
	}
	r.retired = make(map[string]struct{}, len(doc.RetiredIDs))
	for _, id := range doc.RetiredIDs {
		r.retired[id] = struct{}{}
	}

	r.nextID = doc.NextID
	if r.nextID < 1 {
		r.nextID = 1
	}
	for id := range r.devices {
		if n, err := strconv.Atoi(id); err == nil && n >= r.nextID {
			r.nextID = n + 1
		}
	}
	for id := range r.retired {
		if n, err := strconv.Atoi(id); err == nil && n >= r.nextID {
			r.nextID = n + 1
		}
	}

	r.log.Info().
		Int("devices", len(r.devices)).
		Int("retired", len(r.retired)).
		Int("next_id", r.nextID).
		Msg("registry restored")
	return nil
}

// Allocate creates a new virtual device. entityKey may be empty for an
// unlinked device; a non-empty key is validated for existence, supported
// category, and link uniqueness.
func (r *Registry) Allocate(ctx context.Context, name, entityKey string) (*model.VirtualDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entityKey != "" {
		if err := r.validateLinkLocked(ctx, entityKey, ""); err != nil {
			return nil, err
		}
	}

	id := r.generateIDLocked()
	now := r.now()
	device := &model.VirtualDevice{
		ID:         id,
		Name:       name,
		EntityID:   entityKey,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	r.devices[id] = device
	r.persistLocked(ctx)

	r.log.Info().Str("id", id).Str("name", name).Str("entity", entityKey).Msg("device created")
	return device.Copy(), nil
}

// Update renames and/or relinks a device. name nil leaves the name alone;
// link carries the three-state entity semantics.
func (r *Registry) Update(ctx context.Context, id string, name *string, link OptionalLink) (*model.VirtualDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return nil, model.ErrNotFound
	}

	if link.Set() && link.Value() != "" && link.Value() != device.EntityID {
		if err := r.validateLinkLocked(ctx, link.Value(), id); err != nil {
			return nil, err
		}
	}

	changed := false
	if name != nil && *name != "" && *name != device.Name {
		device.Name = *name
		changed = true
	}
	if link.Set() && link.Value() != device.EntityID {
		device.EntityID = link.Value()
		changed = true
	}
	if changed {
		device.ModifiedAt = r.now()
		r.persistLocked(ctx)
		r.log.Info().Str("id", id).Str("name", device.Name).Str("entity", device.EntityID).Msg("device updated")
	}
	return device.Copy(), nil
}

// SetActions replaces a device's action overrides. Passing an empty config
// clears them.
func (r *Registry) SetActions(ctx context.Context, id string, actions *model.ActionConfig) (*model.VirtualDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if actions != nil && *actions == (model.ActionConfig{}) {
		actions = nil
	}
	device.ActionConfig = actions
	device.ModifiedAt = r.now()
	r.persistLocked(ctx)
	return device.Copy(), nil
}

// Delete retires the device's ID permanently. A second delete of the same ID
// returns false.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return false
	}
	delete(r.devices, id)
	r.retired[id] = struct{}{}
	r.persistLocked(ctx)

	r.log.Info().Str("id", id).Str("name", device.Name).Msg("device deleted, id retired")
	return true
}

// Lookup returns a copy of the device, or nil when unknown (including
// retired IDs).
func (r *Registry) Lookup(id string) *model.VirtualDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok := r.devices[id]
	if !ok {
		return nil
	}
	return device.Copy()
}

// List returns copies of all devices, ordered by numeric ID.
func (r *Registry) List() []*model.VirtualDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.VirtualDevice, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d.Copy())
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a < b
	})
	return out
}

// ByEntity returns the device linked to the entity, or nil.
func (r *Registry) ByEntity(entityKey string) *model.VirtualDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if d.EntityID == entityKey {
			return d.Copy()
		}
	}
	return nil
}

// Touch stamps a device's last-access pair. In-memory only; the stamp rides
// along with the next persisted mutation.
func (r *Registry) Touch(id, clientAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if device, ok := r.devices[id]; ok {
		device.RecordAccess(clientAddr)
	}
}

// AvailableEntities lists platform entity keys in supported categories that
// are not yet linked to any device.
func (r *Registry) AvailableEntities(ctx context.Context) ([]string, error) {
	categories := model.Categories()
	linked := make(map[string]struct{})
	r.mu.RLock()
	for _, d := range r.devices {
		if d.EntityID != "" {
			linked[d.EntityID] = struct{}{}
		}
	}
	r.mu.RUnlock()

	var out []string
	for _, category := range categories {
		keys, err := r.platform.ListEntityKeys(ctx, category)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if _, taken := linked[key]; !taken {
				out = append(out, key)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Stats returns registry totals.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	linked := 0
	for _, d := range r.devices {
		if d.Linked() {
			linked++
		}
	}
	return Stats{
		TotalDevices:  len(r.devices),
		LinkedDevices: linked,
		RetiredIDs:    len(r.retired),
		NextID:        r.nextID,
	}
}

// Persist writes the current registry through the document store.
func (r *Registry) Persist(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistLocked(ctx)
}

func (r *Registry) validateLinkLocked(ctx context.Context, entityKey, excludeID string) error {
	category := model.CategoryOf(entityKey)
	if !category.Supported() {
		return model.Validationf("entity %s has unsupported category %q", entityKey, category)
	}
	if !r.platform.EntityExists(ctx, entityKey) {
		return model.Validationf("entity %s does not exist on the platform", entityKey)
	}
	for id, d := range r.devices {
		if id != excludeID && d.EntityID == entityKey {
			return model.Validationf("entity %s is already linked to device %s", entityKey, id)
		}
	}
	return nil
}

// generateIDLocked returns the lowest unused, never-retired ID. The counter
// only advances, so earlier IDs are always either active or retired.
func (r *Registry) generateIDLocked() string {
	for {
		id := strconv.Itoa(r.nextID)
		r.nextID++
		if _, active := r.devices[id]; active {
			continue
		}
		if _, gone := r.retired[id]; gone {
			continue
		}
		return id
	}
}

// persistLocked saves the registry, logging and swallowing failures: the
// in-memory state stays authoritative for the running process, a failed save
// only risks losing recent mutations across a restart.
func (r *Registry) persistLocked(ctx context.Context) {
	doc := &ports.RegistryDocument{
		Version:    ports.StorageVersion,
		Devices:    make(map[string]*model.VirtualDevice, len(r.devices)),
		RetiredIDs: make([]string, 0, len(r.retired)),
		NextID:     r.nextID,
	}
	for id, d := range r.devices {
		doc.Devices[id] = d.Copy()
	}
	for id := range r.retired {
		doc.RetiredIDs = append(doc.RetiredIDs, id)
	}
	sort.Strings(doc.RetiredIDs)

	if err := r.store.Save(ctx, doc); err != nil {
		r.log.Error().Err(err).Msg("failed to persist registry")
	}
}
