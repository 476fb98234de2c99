package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/padmexporter/padmexporter/internal/config"
	"github.com/padmexporter/padmexporter/internal/exposition"
	"github.com/padmexporter/padmexporter/internal/padm"
	"github.com/padmexporter/padmexporter/internal/poller"
	"github.com/padmexporter/padmexporter/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("padm-exporter starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if lvl := cfg.SlogLevel(); lvl != slog.LevelInfo {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
	}

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"targets", len(cfg.Targets),
		"interval", cfg.Interval,
		"stale_after", cfg.StaleAfter,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(cfg.StaleAfter)

	// One poller goroutine per target; each is strictly sequential internally.
	for _, target := range cfg.Targets {
		custom := make([]padm.Definition, 0, len(target.CustomVariables))
		for _, cv := range target.CustomVariables {
			custom = append(custom, padm.Definition{
				Label: cv.Label,
				Name:  cv.Name,
				Help:  cv.Help,
				Kind:  padm.Kind(cv.Type),
			})
		}
		defs, err := padm.Resolve(target.Variables, custom)
		if err != nil {
			slog.Error("invalid variable configuration", "target", target.Name, "err", err)
			os.Exit(1)
		}

		client := padm.NewClient(padm.ClientOptions{
			Name:        target.Name,
			BaseURL:     target.BaseURL(),
			TLSInsecure: target.TLSInsecure,
			Username:    target.Username,
			Password:    target.ResolvedPassword(),
			TokenTTL:    cfg.Token.TTL,
			TokenMargin: cfg.Token.SafetyMargin,
			Definitions: defs,
		})

		p := poller.New(client, client.Tokens(), st, poller.Options{
			Interval:   target.Interval,
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
		})
		go p.Run(ctx)

		slog.Info("registered target",
			"name", target.Name, "url", target.BaseURL(),
			"interval", target.Interval, "variables", len(defs))
	}

	// Watch the config file for drift. Targets and credentials are fixed for
	// the process lifetime, so a changed file takes effect on restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config file changed, restart to apply", "targets", len(updated.Targets))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// Bind explicitly so an unusable listen address fails startup.
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.ListenAddr, "err", err)
		os.Exit(1)
	}

	srv := exposition.NewServer(cfg.ListenAddr, st)
	go func() {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("padm-exporter shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx) //nolint:errcheck
}
