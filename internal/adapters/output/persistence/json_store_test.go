package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
	"github.com/richardctrimble/ha-emulated-hue/internal/ports"
)

func TestLoadMissingFile(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "devices.json"))
	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	store := NewJSONStore(path)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := &ports.RegistryDocument{
		Version: ports.StorageVersion,
		Devices: map[string]*model.VirtualDevice{
			"1": {
				ID:         "1",
				Name:       "Lounge lamp",
				EntityID:   "light.lounge",
				CreatedAt:  created,
				ModifiedAt: created,
				ActionConfig: &model.ActionConfig{
					OnAction: "script.lamp_on",
				},
			},
		},
		RetiredIDs: []string{"2", "3"},
		NextID:     4,
	}
	require.NoError(t, store.Save(ctx, doc))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, doc.NextID, loaded.NextID)
	assert.Equal(t, doc.RetiredIDs, loaded.RetiredIDs)
	require.Contains(t, loaded.Devices, "1")
	assert.Equal(t, "light.lounge", loaded.Devices["1"].EntityID)
	require.NotNil(t, loaded.Devices["1"].ActionConfig)
	assert.Equal(t, "script.lamp_on", loaded.Devices["1"].ActionConfig.OnAction)
}

func TestSaveCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "devices.json")
	store := NewJSONStore(path)

	require.NoError(t, store.Save(context.Background(), &ports.RegistryDocument{
		Version: ports.StorageVersion,
		NextID:  1,
	}))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0o644))

	store := NewJSONStore(path)
	_, err := store.Load(context.Background())
	assert.Error(t, err)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONStore(filepath.Join(dir, "devices.json"))
	require.NoError(t, store.Save(context.Background(), &ports.RegistryDocument{
		Version: ports.StorageVersion,
		NextID:  1,
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "devices.json", entries[0].Name())
}
