// Command bridge runs the emulated Hue bridge in front of a Home
// Assistant instance.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/richardctrimble/ha-emulated-hue/internal/adapters/input/http"
	"github.com/richardctrimble/ha-emulated-hue/internal/adapters/input/ssdp"
	"github.com/richardctrimble/ha-emulated-hue/internal/adapters/output/homeassistant"
	"github.com/richardctrimble/ha-emulated-hue/internal/adapters/output/persistence"
	"github.com/richardctrimble/ha-emulated-hue/internal/config"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/echo"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/registry"
	"github.com/richardctrimble/ha-emulated-hue/internal/domain/service"
	"github.com/richardctrimble/ha-emulated-hue/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logging.New("info")
		bootLog.Fatal().Err(err).Msg("configuration failed")
	}
	log := logging.New(cfg.LogLevel)

	if cfg.AdvertiseIP == "" {
		cfg.AdvertiseIP = localIP()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform := homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, log)
	go platform.Run(ctx)

	store := persistence.NewJSONStore(cfg.StoragePath)
	reg := registry.New(store, platform, log)
	if err := reg.Restore(ctx); err != nil {
		log.Fatal().Err(err).Str("path", cfg.StoragePath).Msg("device registry restore failed")
	}

	cache := echo.New(cfg.StateCacheTTL.Std())
	bridge := service.New(reg, platform, cache, cfg.ConfirmTimeout.Std(), log)

	ssdpServer := ssdp.NewServer(cfg.AdvertiseIP, cfg.AdvertisePort, log)
	go func() {
		if err := ssdpServer.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("ssdp responder stopped")
		}
	}()

	server := httpadapter.NewServer(bridge, cfg.AdvertiseIP, cfg.ListenPort, log)
	log.Info().Str("ip", cfg.AdvertiseIP).Int("port", cfg.ListenPort).Msg("bridge starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}

// localIP finds a non-loopback IPv4 address to advertise when none is
// configured.
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}
