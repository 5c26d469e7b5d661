// Package http exposes the emulated Hue bridge REST API plus the local
// administration endpoints used to manage virtual devices.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/service"
)

// Username is the only API username the bridge accepts. Pairing always
// hands this fixed value back, so clients keep working across restarts.
const Username = "nouser"

// Server serves the Hue REST surface and the admin API on one listener.
type Server struct {
	bridge      *service.BridgeService
	advertiseIP string
	port        int
	apiVersion  string
	bridgeName  string
	log         zerolog.Logger
}

// NewServer builds a server around the bridge service. advertiseIP and
// port go into description.xml and the config payloads.
func NewServer(bridge *service.BridgeService, advertiseIP string, port int, log zerolog.Logger) *Server {
	return &Server{
		bridge:      bridge,
		advertiseIP: advertiseIP,
		port:        port,
		apiVersion:  "1.17.0",
		bridgeName:  "HASS BRIDGE",
		log:         log.With().Str("component", "http").Logger(),
	}
}

// ListenAndServe blocks serving the router on the configured port.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info().Str("addr", addr).Msg("http server listening")
	return http.ListenAndServe(addr, s.Router())
}

// Router assembles all routes. Every route, admin included, sits behind
// the local-network guard.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.localOnly)

	r.Get("/description.xml", s.handleDescription)

	r.Post("/api", s.handlePair)
	r.Get("/api", s.handleUnauthorizedRoot)
	r.Get("/api/config", s.handleConfig)
	r.Get("/api/{username}", s.handleFullState)
	r.Get("/api/{username}/config", s.handleConfig)
	r.Get("/api/{username}/lights", s.handleLights)
	r.Get("/api/{username}/lights/{id}", s.handleLight)
	r.Put("/api/{username}/lights/{id}/state", s.handleSetLightState)
	r.Get("/api/{username}/groups", s.handleGroups)
	r.Put("/api/{username}/groups/0/action", s.handleGroupAction)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/devices", s.handleAdminListDevices)
		r.Post("/devices", s.handleAdminCreateDevice)
		r.Put("/devices/{id}", s.handleAdminUpdateDevice)
		r.Delete("/devices/{id}", s.handleAdminDeleteDevice)
		r.Get("/entities", s.handleAdminListEntities)
	})

	return r
}

// localOnly rejects requests from outside the local network. Hue pairing
// has no real credential, so network locality is the whole access model.
func (s *Server) localOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		addr, err := netip.ParseAddr(host)
		if err != nil || !isLocal(addr) {
			s.log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("rejected non-local request")
			writeHueErrors(w, http.StatusUnauthorized, hueError(1, r.URL.Path, "unauthorized user"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLocal(addr netip.Addr) bool {
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, descriptionXML, s.advertiseIP, s.port, s.bridgeName, s.advertiseIP)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceType string `json:"devicetype"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DeviceType == "" {
		http.Error(w, "devicetype required", http.StatusBadRequest)
		return
	}
	s.log.Info().Str("devicetype", body.DeviceType).Msg("pairing request")
	writeJSON(w, http.StatusOK, []map[string]any{
		{"success": map[string]string{"username": Username}},
	})
}

func (s *Server) handleUnauthorizedRoot(w http.ResponseWriter, r *http.Request) {
	writeHueErrors(w, http.StatusOK, hueError(1, "/", "unauthorized user"))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.configPayload())
}

func (s *Server) handleFullState(w http.ResponseWriter, r *http.Request) {
	if !s.checkUsername(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lights": s.bridge.Lights(r.Context()),
		"config": s.configPayload(),
	})
}

func (s *Server) handleLights(w http.ResponseWriter, r *http.Request) {
	if !s.checkUsername(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.bridge.Lights(r.Context()))
}

func (s *Server) handleLight(w http.ResponseWriter, r *http.Request) {
	if !s.checkUsername(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	light, err := s.bridge.Light(r.Context(), id, remoteHost(r))
	if errors.Is(err, model.ErrNotFound) {
		writeHueErrors(w, http.StatusNotFound, hueError(3, "/lights/"+id, "resource, /lights/"+id+", not available"))
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, light)
}

func (s *Server) handleSetLightState(w http.ResponseWriter, r *http.Request) {
	if !s.checkUsername(w, r) {
		return
	}
	id := chi.URLParam(r, "id")

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	results, err := s.bridge.SetLightState(r.Context(), id, remoteHost(r), body)
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeHueErrors(w, http.StatusNotFound, hueError(3, "/lights/"+id, "resource, /lights/"+id+", not available"))
	case errors.Is(err, model.ErrMalformedRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		s.internalError(w, err)
	default:
		writeJSON(w, http.StatusOK, results)
	}
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	if !s.checkUsername(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

// handleGroupAction is the scene-recall stub. Some clients probe it after
// pairing; answering with a fixed invalid-value error keeps them happy
// without pretending groups exist.
func (s *Server) handleGroupAction(w http.ResponseWriter, r *http.Request) {
	if !s.checkUsername(w, r) {
		return
	}
	writeHueErrors(w, http.StatusOK,
		hueError(7, "/groups/0/action/scene", "invalid value, dummy for parameter, scene"))
}

func (s *Server) checkUsername(w http.ResponseWriter, r *http.Request) bool {
	if chi.URLParam(r, "username") != Username {
		writeHueErrors(w, http.StatusOK, hueError(1, r.URL.Path, "unauthorized user"))
		return false
	}
	return true
}

func (s *Server) configPayload() map[string]any {
	return map[string]any{
		"name":       s.bridgeName,
		"mac":        "00:00:00:00:00:00",
		"swversion":  "01003542",
		"apiversion": s.apiVersion,
		"whitelist": map[string]any{
			Username: map[string]string{"name": "HASS BRIDGE"},
		},
		"ipaddress":  fmt.Sprintf("%s:%d", s.advertiseIP, s.port),
		"linkbutton": true,
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func hueError(errType int, address, description string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"type":        errType,
			"address":     address,
			"description": description,
		},
	}
}

func writeHueErrors(w http.ResponseWriter, status int, errs ...map[string]any) {
	writeJSON(w, status, errs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const descriptionXML = `<?xml version="1.0" encoding="UTF-8" ?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
<specVersion>
<major>1</major>
<minor>0</minor>
</specVersion>
<URLBase>http://%s:%d/</URLBase>
<device>
<deviceType>urn:schemas-upnp-org:device:Basic:1</deviceType>
<friendlyName>%s (%s)</friendlyName>
<manufacturer>Royal Philips Electronics</manufacturer>
<manufacturerURL>http://www.philips.com</manufacturerURL>
<modelDescription>Philips hue Personal Wireless Lighting</modelDescription>
<modelName>Philips hue bridge 2015</modelName>
<modelNumber>BSB002</modelNumber>
<serialNumber>001788FFFE23BFC2</serialNumber>
<UDN>uuid:2f402f80-da50-11e1-9b23-001788255acc</UDN>
</device>
</root>
`
