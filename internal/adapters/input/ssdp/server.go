// Package ssdp answers UPnP discovery searches so Hue clients can find
// the bridge without manual configuration.
package ssdp

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

const (
	multicastAddr = "239.255.255.250:1900"
	bridgeUUID    = "2f402f80-da50-11e1-9b23-001788255acc"
)

// Server listens for M-SEARCH datagrams on the SSDP multicast group and
// answers with the bridge's description URL.
type Server struct {
	advertiseIP string
	port        int
	log         zerolog.Logger
}

func NewServer(advertiseIP string, port int, log zerolog.Logger) *Server {
	return &Server{
		advertiseIP: advertiseIP,
		port:        port,
		log:         log.With().Str("component", "ssdp").Logger(),
	}
}

// Serve blocks handling discovery requests until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("ssdp listen: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	s.log.Info().Str("group", multicastAddr).Msg("ssdp responder started")

	buf := make([]byte, 1024)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		request := string(buf[:n])
		if !isSearchRequest(request) {
			continue
		}
		if err := s.respond(remote); err != nil {
			s.log.Warn().Err(err).Str("remote", remote.String()).Msg("discovery response failed")
		} else {
			s.log.Debug().Str("remote", remote.String()).Msg("answered discovery search")
		}
	}
}

// isSearchRequest accepts M-SEARCH probes that look for a root device or a
// Hue-style basic device.
func isSearchRequest(request string) bool {
	if !strings.HasPrefix(request, "M-SEARCH") {
		return false
	}
	return strings.Contains(request, "ssdp:discover") &&
		(strings.Contains(request, "ssdp:all") ||
			strings.Contains(request, "upnp:rootdevice") ||
			strings.Contains(request, "device:basic:1"))
}

func (s *Server) respond(remote *net.UDPAddr) error {
	response := strings.Join([]string{
		"HTTP/1.1 200 OK",
		"CACHE-CONTROL: max-age=100",
		"EXT:",
		fmt.Sprintf("LOCATION: http://%s:%d/description.xml", s.advertiseIP, s.port),
		"SERVER: FreeRTOS/6.0.5, UPnP/1.0, IpBridge/1.17.0",
		"hue-bridgeid: 001788FFFE23BFC2",
		"ST: urn:schemas-upnp-org:device:basic:1",
		fmt.Sprintf("USN: uuid:%s", bridgeUUID),
		"", "",
	}, "\r\n")

	conn, err := net.DialUDP("udp4", nil, remote)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write([]byte(response))
	return err
}
