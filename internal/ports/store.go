package ports

import (
	"context"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
)

// StorageVersion is the current registry document schema version.
const StorageVersion = 1

// RegistryDocument is the full persisted registry: active devices, the
// permanently growing retired-ID set, and the next-ID counter.
type RegistryDocument struct {
	Version    int                             `json:"version"`
	Devices    map[string]*model.VirtualDevice `json:"devices"`
	RetiredIDs []string                        `json:"retired_ids"`
	NextID     int                             `json:"next_id"`
}

// DocumentStore persists the registry document. Implementations must return
// (nil, nil) from Load when nothing has been stored yet.
type DocumentStore interface {
	Load(ctx context.Context) (*RegistryDocument, error)
	Save(ctx context.Context, doc *RegistryDocument) error
}
