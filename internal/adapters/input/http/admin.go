package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/registry"
)

type deviceView struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	EntityID     string              `json:"entity_id,omitempty"`
	CreatedAt    string              `json:"created_at"`
	ModifiedAt   string              `json:"modified_at"`
	LastAccessAt string              `json:"last_access_at,omitempty"`
	LastAccessBy string              `json:"last_access_by,omitempty"`
	Actions      *model.ActionConfig `json:"actions,omitempty"`
}

func viewOf(d *model.VirtualDevice) deviceView {
	v := deviceView{
		ID:         d.ID,
		Name:       d.Name,
		EntityID:   d.EntityID,
		CreatedAt:  d.CreatedAt.Format(timeFormat),
		ModifiedAt: d.ModifiedAt.Format(timeFormat),
	}
	if d.LastAccessAt != nil {
		v.LastAccessAt = d.LastAccessAt.Format(timeFormat)
		v.LastAccessBy = d.LastAccessBy
	}
	if d.ActionConfig != nil {
		v.Actions = d.ActionConfig
	}
	return v
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func (s *Server) handleAdminListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.bridge.Registry().List()
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, viewOf(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"stats":   s.bridge.Registry().Stats(),
	})
}

func (s *Server) handleAdminCreateDevice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string              `json:"name"`
		EntityID string              `json:"entity_id"`
		Actions  *model.ActionConfig `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	device, err := s.bridge.Registry().Allocate(r.Context(), body.Name, body.EntityID)
	if s.adminError(w, err) {
		return
	}
	if body.Actions != nil {
		device, err = s.bridge.Registry().SetActions(r.Context(), device.ID, body.Actions)
		if s.adminError(w, err) {
			return
		}
	}
	writeJSON(w, http.StatusCreated, viewOf(device))
}

// handleAdminUpdateDevice distinguishes an absent entity_id (keep the
// current link) from an explicit null (unlink). Decoding into a
// json.RawMessage preserves that difference.
func (s *Server) handleAdminUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Name     *string             `json:"name"`
		EntityID json.RawMessage     `json:"entity_id"`
		Actions  *model.ActionConfig `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	link := registry.KeepLink()
	if len(body.EntityID) > 0 {
		if string(body.EntityID) == "null" {
			link = registry.Unlink()
		} else {
			var key string
			if err := json.Unmarshal(body.EntityID, &key); err != nil {
				http.Error(w, "entity_id must be a string or null", http.StatusBadRequest)
				return
			}
			link = registry.LinkTo(key)
		}
	}

	device, err := s.bridge.Registry().Update(r.Context(), id, body.Name, link)
	if s.adminError(w, err) {
		return
	}
	if body.Actions != nil {
		device, err = s.bridge.Registry().SetActions(r.Context(), id, body.Actions)
		if s.adminError(w, err) {
			return
		}
	}
	writeJSON(w, http.StatusOK, viewOf(device))
}

func (s *Server) handleAdminDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.bridge.Registry().Delete(r.Context(), id) {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.bridge.Registry().AvailableEntities(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

// adminError writes the response for a registry error and reports whether
// one was written.
func (s *Server) adminError(w http.ResponseWriter, err error) bool {
	var verr *model.ValidationError
	switch {
	case err == nil:
		return false
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "device not found", http.StatusNotFound)
	case errors.As(err, &verr):
		http.Error(w, verr.Reason, http.StatusBadRequest)
	default:
		s.internalError(w, err)
	}
	return true
}
