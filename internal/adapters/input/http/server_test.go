package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/echo"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/registry"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/service"
	"github.com/richardctrimble/ha-emulated-hue/internal/ports"
)

type fakePlatform struct {
	states   map[string]*ports.EntityState
	commands []string
}

func (f *fakePlatform) GetEntityState(ctx context.Context, entityKey string) (*ports.EntityState, error) {
	return f.states[entityKey], nil
}

func (f *fakePlatform) IssueCommand(ctx context.Context, domain, action string, payload map[string]any) error {
	f.commands = append(f.commands, domain+"."+action)
	return nil
}

func (f *fakePlatform) SubscribeStateChange(entityKey string, callback func()) func() {
	callback()
	return func() {}
}

func (f *fakePlatform) ListEntityKeys(ctx context.Context, category model.Category) ([]string, error) {
	var keys []string
	prefix := string(category) + "."
	for key := range f.states {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakePlatform) EntityExists(ctx context.Context, entityKey string) bool {
	_, ok := f.states[entityKey]
	return ok
}

type memoryStore struct {
	doc *ports.RegistryDocument
}

func (m *memoryStore) Load(ctx context.Context) (*ports.RegistryDocument, error) {
	return m.doc, nil
}

func (m *memoryStore) Save(ctx context.Context, doc *ports.RegistryDocument) error {
	m.doc = doc
	return nil
}

func newTestServer(t *testing.T, platform *fakePlatform) (*httptest.Server, *service.BridgeService) {
	t.Helper()
	reg := registry.New(&memoryStore{}, platform, zerolog.Nop())
	bridge := service.New(reg, platform, echo.New(time.Second), 20*time.Millisecond, zerolog.Nop())
	server := NewServer(bridge, "192.168.1.10", 8080, zerolog.Nop())
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts, bridge
}

func colorLightPlatform() *fakePlatform {
	return &fakePlatform{states: map[string]*ports.EntityState{
		"light.lounge": {
			EntityID: "light.lounge",
			State:    "on",
			Attributes: map[string]any{
				"supported_color_modes": []any{"hs", "color_temp"},
				"brightness":            float64(128),
				"hs_color":              []any{float64(180), float64(50)},
			},
		},
	}}
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestNonLocalClientRejected(t *testing.T) {
	platform := &fakePlatform{states: map[string]*ports.EntityState{}}
	reg := registry.New(&memoryStore{}, platform, zerolog.Nop())
	bridge := service.New(reg, platform, echo.New(time.Second), 20*time.Millisecond, zerolog.Nop())
	server := NewServer(bridge, "192.168.1.10", 8080, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/nouser/lights", nil)
	req.RemoteAddr = "203.0.113.9:40000"
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var errs []map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, float64(1), errs[0]["error"]["type"])
}

func TestPairingAlwaysSucceeds(t *testing.T) {
	ts, _ := newTestServer(t, &fakePlatform{states: map[string]*ports.EntityState{}})

	resp, err := http.Post(ts.URL+"/api", "application/json",
		strings.NewReader(`{"devicetype":"test#suite"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var results []map[string]map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "nouser", results[0]["success"]["username"])
}

func TestPairingRejectsGarbage(t *testing.T) {
	ts, _ := newTestServer(t, &fakePlatform{states: map[string]*ports.EntityState{}})

	resp, err := http.Post(ts.URL+"/api", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWrongUsername(t *testing.T) {
	ts, _ := newTestServer(t, &fakePlatform{states: map[string]*ports.EntityState{}})

	var errs []map[string]map[string]any
	resp := getJSON(t, ts.URL+"/api/someoneelse/lights", &errs)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, errs, 1)
	assert.Equal(t, float64(1), errs[0]["error"]["type"])
	assert.Equal(t, "unauthorized user", errs[0]["error"]["description"])
}

func TestGetLightDecodesAsHueLight(t *testing.T) {
	platform := colorLightPlatform()
	ts, bridge := newTestServer(t, platform)
	device, err := bridge.Registry().Allocate(context.Background(), "Lounge", "light.lounge")
	require.NoError(t, err)

	var light huego.Light
	resp := getJSON(t, fmt.Sprintf("%s/api/nouser/lights/%s", ts.URL, device.ID), &light)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "Lounge", light.Name)
	assert.Equal(t, "Extended color light", light.Type)
	assert.Equal(t, "HASS231", light.ModelID)
	assert.Equal(t, "Home Assistant", light.ManufacturerName)
	require.NotNil(t, light.State)
	assert.True(t, light.State.On)
	assert.True(t, light.State.Reachable)
	assert.Equal(t, uint8(127), light.State.Bri)
	assert.Equal(t, uint16(32767), light.State.Hue)
	assert.Equal(t, uint8(127), light.State.Sat)
	assert.Equal(t, "hs", light.State.ColorMode)
}

func TestGetUnknownLight(t *testing.T) {
	ts, _ := newTestServer(t, &fakePlatform{states: map[string]*ports.EntityState{}})

	var errs []map[string]map[string]any
	resp := getJSON(t, ts.URL+"/api/nouser/lights/99", &errs)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Len(t, errs, 1)
	assert.Equal(t, float64(3), errs[0]["error"]["type"])
	assert.Equal(t, "/lights/99", errs[0]["error"]["address"])
	assert.Equal(t, "resource, /lights/99, not available", errs[0]["error"]["description"])
}

func TestPutLightState(t *testing.T) {
	platform := colorLightPlatform()
	ts, bridge := newTestServer(t, platform)
	device, err := bridge.Registry().Allocate(context.Background(), "Lounge", "light.lounge")
	require.NoError(t, err)

	body := bytes.NewReader([]byte(`{"on": false}`))
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/nouser/lights/%s/state", ts.URL, device.ID), body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var results []map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, false,
		results[0]["success"][fmt.Sprintf("/lights/%s/state/on", device.ID)])
	assert.Contains(t, platform.commands, "homeassistant.turn_off")
}

func TestPutLightStateBadBody(t *testing.T) {
	platform := colorLightPlatform()
	ts, bridge := newTestServer(t, platform)
	device, err := bridge.Registry().Allocate(context.Background(), "Lounge", "light.lounge")
	require.NoError(t, err)

	for _, body := range []string{`{"on": "maybe"}`, `nonsense`} {
		req, err := http.NewRequest(http.MethodPut,
			fmt.Sprintf("%s/api/nouser/lights/%s/state", ts.URL, device.ID),
			strings.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestGroupsStub(t *testing.T) {
	ts, _ := newTestServer(t, &fakePlatform{states: map[string]*ports.EntityState{}})

	var groups map[string]any
	resp := getJSON(t, ts.URL+"/api/nouser/groups", &groups)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, groups)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/nouser/groups/0/action",
		strings.NewReader(`{"scene": "whatever"}`))
	require.NoError(t, err)
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer rsp.Body.Close()

	var errs []map[string]map[string]any
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&errs))
	require.Len(t, errs, 1)
	assert.Equal(t, float64(7), errs[0]["error"]["type"])
	assert.Equal(t, "/groups/0/action/scene", errs[0]["error"]["address"])
	assert.Equal(t, "invalid value, dummy for parameter, scene", errs[0]["error"]["description"])
}

func TestFullStateIncludesConfig(t *testing.T) {
	platform := colorLightPlatform()
	ts, bridge := newTestServer(t, platform)
	_, err := bridge.Registry().Allocate(context.Background(), "Lounge", "light.lounge")
	require.NoError(t, err)

	var state struct {
		Lights map[string]any `json:"lights"`
		Config map[string]any `json:"config"`
	}
	getJSON(t, ts.URL+"/api/nouser", &state)
	assert.Len(t, state.Lights, 1)
	assert.Equal(t, "HASS BRIDGE", state.Config["name"])
	assert.Equal(t, "1.17.0", state.Config["apiversion"])
	assert.Equal(t, "192.168.1.10:8080", state.Config["ipaddress"])
}

func TestDescriptionXML(t *testing.T) {
	ts, _ := newTestServer(t, &fakePlatform{states: map[string]*ports.EntityState{}})

	resp, err := http.Get(ts.URL + "/description.xml")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "http://192.168.1.10:8080/")
	assert.Contains(t, string(body), "001788FFFE23BFC2")
	assert.Contains(t, string(body), "2f402f80-da50-11e1-9b23-001788255acc")
}

func TestAdminDeviceLifecycle(t *testing.T) {
	platform := colorLightPlatform()
	ts, _ := newTestServer(t, platform)

	// Create linked.
	resp, err := http.Post(ts.URL+"/admin/devices", "application/json",
		strings.NewReader(`{"name": "Lounge", "entity_id": "light.lounge"}`))
	require.NoError(t, err)
	var created deviceView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "1", created.ID)
	assert.Equal(t, "light.lounge", created.EntityID)

	// Unlink with an explicit null; the name stays.
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/admin/devices/1",
		strings.NewReader(`{"entity_id": null}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var updated deviceView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	assert.Empty(t, updated.EntityID)
	assert.Equal(t, "Lounge", updated.Name)

	// Rename without touching the link.
	req, err = http.NewRequest(http.MethodPut, ts.URL+"/admin/devices/1",
		strings.NewReader(`{"name": "Renamed"}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	assert.Equal(t, "Renamed", updated.Name)

	// Delete, then confirm the ID is gone for good.
	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/admin/devices/1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var listing struct {
		Devices []deviceView   `json:"devices"`
		Stats   map[string]any `json:"stats"`
	}
	getJSON(t, ts.URL+"/admin/devices", &listing)
	assert.Empty(t, listing.Devices)
	assert.Equal(t, float64(1), listing.Stats["retired_ids"])
}

func TestAdminCreateValidation(t *testing.T) {
	ts, _ := newTestServer(t, &fakePlatform{states: map[string]*ports.EntityState{}})

	cases := []string{
		`{"entity_id": "light.lounge"}`,            // missing name
		`{"name": "X", "entity_id": "light.ghost"}`, // unknown entity
		`{"name": "X", "entity_id": "camera.door"}`, // unsupported category
	}
	for _, body := range cases {
		resp, err := http.Post(ts.URL+"/admin/devices", "application/json",
			strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestAdminListEntities(t *testing.T) {
	platform := colorLightPlatform()
	platform.states["switch.plug"] = &ports.EntityState{
		EntityID: "switch.plug", State: "off", Attributes: map[string]any{},
	}
	ts, bridge := newTestServer(t, platform)
	_, err := bridge.Registry().Allocate(context.Background(), "Lounge", "light.lounge")
	require.NoError(t, err)

	var listing struct {
		Entities []string `json:"entities"`
	}
	getJSON(t, ts.URL+"/admin/entities", &listing)
	assert.Equal(t, []string{"switch.plug"}, listing.Entities)
}
