package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"sniproxy/internal/application"
	"sniproxy/internal/config"
	"sniproxy/internal/infrastructure/epoll"
	"sniproxy/pkg/logger"
)

func main() {
	configPath := flag.String("config", "/etc/sniproxy.conf", "Path to configuration file")
	port := flag.Int("port", 443, "Fallback listen port if the config has no listener stanzas")
	flag.Parse()

	log := logger.Setup()
	log.Info("Initializing SNI proxy...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// The config file's listener stanzas are authoritative; -port only
	// binds a TLS listener on all interfaces when the file configures none.
	if len(cfg.Listeners) == 0 {
		cfg.Listeners = []config.ListenerConfig{{Address: "0.0.0.0", Port: *port, Protocol: config.ProtocolTLS}}
	}

	eventLoop, err := epoll.New()
	if err != nil {
		log.Error("Failed to create event loop", "error", err)
		os.Exit(1)
	}

	reactor, err := application.Build(cfg, eventLoop, log)
	if err != nil {
		log.Error("Failed to build reactor", "error", err)
		os.Exit(1)
	}

	log.Info("Proxy listening")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reactor.Run()
	})

	g.Go(func() error {
		return watchSignals(gctx, reactor, log, *configPath)
	})

	g.Go(func() error {
		<-gctx.Done()
		reactor.Stop()
		reactor.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Proxy stopped unexpectedly", "error", err)
		os.Exit(1)
	}
}

// watchSignals reacts to SIGHUP (reload the routing config, logged but
// not yet hot-swapped into the running reactor -- see config.Reload's
// doc comment) and SIGUSR1 (dump the connection registry), returning
// only when ctx is cancelled.
func watchSignals(ctx context.Context, reactor *application.Reactor, log *slog.Logger, configPath string) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				if _, err := config.Reload(configPath); err != nil {
					log.Warn("config reload failed", "error", err)
					continue
				}
				log.Info("config reloaded; routing tables for new connections will reflect it once wired into a running listener")
			case syscall.SIGUSR1:
				path, err := reactor.DumpConnections()
				if err != nil {
					log.Warn("connection dump failed", "error", err)
					continue
				}
				log.Info("wrote connection dump", "path", path)
			}
		}
	}
}
