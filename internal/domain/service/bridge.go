// Package service drives the request/response pipeline: it resolves numeric
// IDs through the registry, parses Hue state requests, maps them onto
// platform commands through the translator's category table, and answers
// reads from live state overlaid by the command-echo cache.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/echo"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/registry"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/translator"
	"github.com/richardctrimble/ha-emulated-hue/internal/ports"
)

// DefaultConfirmTimeout bounds the wait for a state-change event after a
// command that should flip the entity's on/off state. Independent from the
// echo-cache TTL.
const DefaultConfirmTimeout = 5 * time.Second

// BridgeService is the Hue-facing core of the bridge.
type BridgeService struct {
	registry       *registry.Registry
	platform       ports.HomeAutomationPort
	cache          *echo.Cache
	confirmTimeout time.Duration
	log            zerolog.Logger
}

// New wires the service. A non-positive confirmTimeout uses the default.
func New(reg *registry.Registry, platform ports.HomeAutomationPort, cache *echo.Cache, confirmTimeout time.Duration, log zerolog.Logger) *BridgeService {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &BridgeService{
		registry:       reg,
		platform:       platform,
		cache:          cache,
		confirmTimeout: confirmTimeout,
		log:            log.With().Str("component", "bridge").Logger(),
	}
}

// Registry exposes the device registry for the admin surface.
func (s *BridgeService) Registry() *registry.Registry { return s.registry }

// Lights returns the Hue resource map for every linked device, keyed by
// device ID.
func (s *BridgeService) Lights(ctx context.Context) map[string]any {
	out := make(map[string]any)
	for _, device := range s.registry.List() {
		if device.Linked() {
			out[device.ID] = s.resource(ctx, device)
		}
	}
	return out
}

// Light returns the Hue resource for one device. Unknown IDs (including
// retired ones) yield ErrNotFound; unlinked devices still render, as an
// unreachable dimmable light.
func (s *BridgeService) Light(ctx context.Context, id, clientAddr string) (map[string]any, error) {
	device := s.registry.Lookup(id)
	if device == nil {
		s.log.Debug().Str("id", id).Msg("unknown device number")
		return nil, model.ErrNotFound
	}
	s.registry.Touch(id, clientAddr)
	return s.resource(ctx, device), nil
}

// SetLightState runs the full dispatch pipeline for a parsed JSON body and
// returns the Hue success array. The body must already be valid JSON; field
// type errors surface as ErrMalformedRequest before anything is dispatched.
func (s *BridgeService) SetLightState(ctx context.Context, id, clientAddr string, body map[string]any) ([]map[string]any, error) {
	device := s.registry.Lookup(id)
	if device == nil {
		s.log.Debug().Str("id", id).Msg("unknown device number")
		return nil, model.ErrNotFound
	}
	s.registry.Touch(id, clientAddr)

	if !device.Linked() {
		s.log.Warn().Str("id", id).Msg("device is not linked to an entity")
		return nil, model.ErrNotFound
	}

	st, err := s.platform.GetEntityState(ctx, device.EntityID)
	if err != nil {
		s.log.Error().Err(err).Str("entity", device.EntityID).Msg("platform state read failed")
		return nil, model.ErrNotFound
	}
	if st == nil {
		s.log.Warn().Str("entity", device.EntityID).Msg("entity not found on platform")
		return nil, model.ErrNotFound
	}

	category := device.Category()
	features := translator.FeaturesOf(st.Attributes)
	colorModes := translator.ColorModesOf(st.Attributes)
	liveOn := st.On(category)

	req, err := parseRequest(body, liveOn)
	if err != nil {
		s.log.Error().Interface("body", body).Msg("unable to parse state request")
		return nil, err
	}
	translator.NormalizeRequest(category, features, colorModes, &req)

	cmd := translator.MapCommand(category, translator.CommandInput{
		EntityID:   device.EntityID,
		Request:    req,
		Features:   features,
		ColorModes: colorModes,
		Overrides:  device.ActionConfig,
	})

	if cmd != nil {
		if cmd.PreTurnOn {
			if err := s.platform.IssueCommand(ctx, "homeassistant", "turn_on", map[string]any{"entity_id": device.EntityID}); err != nil {
				s.log.Warn().Err(err).Str("entity", device.EntityID).Msg("pre turn_on failed")
			}
		}

		willChange := req.On != liveOn
		if err := s.platform.IssueCommand(ctx, cmd.Domain, cmd.Action, cmd.Payload); err != nil {
			// The Hue protocol has no channel for a failed command; the
			// reachable flag computed from live state is the only signal.
			s.log.Warn().Err(err).
				Str("entity", device.EntityID).
				Str("action", cmd.Domain+"."+cmd.Action).
				Msg("command dispatch failed")
		}
		if willChange {
			s.waitForStateChange(ctx, device.EntityID)
		}
	}

	s.cache.Record(device.EntityID, req, category.OffMapsToOn())
	return successResponse(id, req), nil
}

// resource reads live platform state for the device and renders the Hue
// resource, overlaying any still-valid echo entry.
func (s *BridgeService) resource(ctx context.Context, device *model.VirtualDevice) map[string]any {
	if !device.Linked() {
		return translator.ToResource(device, nil, nil)
	}
	st, err := s.platform.GetEntityState(ctx, device.EntityID)
	if err != nil {
		s.log.Warn().Err(err).Str("entity", device.EntityID).Msg("platform state read failed")
		return translator.ToResource(device, nil, nil)
	}
	if st == nil {
		return translator.ToResource(device, nil, nil)
	}
	cached := s.cache.Read(device.EntityID, st.On(device.Category()))
	return translator.ToResource(device, st, cached)
}

// waitForStateChange blocks the current request only, until the entity
// reports any state change or the confirmation timeout fires. Timing out is
// not an error: the response then reflects the requested, possibly
// not-yet-realized state.
func (s *BridgeService) waitForStateChange(ctx context.Context, entityKey string) {
	changed := make(chan struct{}, 1)
	unsubscribe := s.platform.SubscribeStateChange(entityKey, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	timer := time.NewTimer(s.confirmTimeout)
	defer timer.Stop()

	select {
	case <-changed:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// parseRequest validates field types of a Hue set-state body. on defaults to
// the live on/off when omitted.
func parseRequest(body map[string]any, liveOn bool) (model.LightState, error) {
	req := model.LightState{On: liveOn}

	if v, ok := body["on"]; ok {
		b, ok := v.(bool)
		if !ok {
			return req, fmt.Errorf("field on: %w", model.ErrMalformedRequest)
		}
		req.On = b
	}

	for key, target := range map[string]**int{
		"bri":            &req.Bri,
		"hue":            &req.Hue,
		"sat":            &req.Sat,
		"ct":             &req.Ct,
		"transitiontime": &req.TransitionTime,
	} {
		v, ok := body[key]
		if !ok {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			return req, fmt.Errorf("field %s: %w", key, model.ErrMalformedRequest)
		}
		n := int(f)
		*target = &n
	}

	if v, ok := body["xy"]; ok {
		pair, ok := v.([]any)
		if !ok || len(pair) != 2 {
			return req, fmt.Errorf("field xy: %w", model.ErrMalformedRequest)
		}
		x, okX := pair[0].(float64)
		y, okY := pair[1].(float64)
		if !okX || !okY {
			return req, fmt.Errorf("field xy: %w", model.ErrMalformedRequest)
		}
		req.XY = &[2]float64{x, y}
	}

	return req, nil
}

// successResponse builds one success entry per accepted field; on is always
// present, the rest only when the request supplied them.
func successResponse(id string, req model.LightState) []map[string]any {
	entry := func(attr string, value any) map[string]any {
		return map[string]any{
			"success": map[string]any{
				fmt.Sprintf("/lights/%s/state/%s", id, attr): value,
			},
		}
	}

	out := []map[string]any{entry("on", req.On)}
	if req.Bri != nil {
		out = append(out, entry("bri", *req.Bri))
	}
	if req.Hue != nil {
		out = append(out, entry("hue", *req.Hue))
	}
	if req.Sat != nil {
		out = append(out, entry("sat", *req.Sat))
	}
	if req.Ct != nil {
		out = append(out, entry("ct", *req.Ct))
	}
	if req.XY != nil {
		out = append(out, entry("xy", []float64{req.XY[0], req.XY[1]}))
	}
	if req.TransitionTime != nil {
		out = append(out, entry("transitiontime", *req.TransitionTime))
	}
	return out
}
