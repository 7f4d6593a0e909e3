package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kingsbuilder.org/internal/auth"
	"kingsbuilder.org/internal/config"
	"kingsbuilder.org/internal/estate"
	"kingsbuilder.org/internal/httpapi"
	"kingsbuilder.org/internal/obs"
	"kingsbuilder.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = store.Close() }()

	authSvc, err := auth.NewService(store, cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	estateSvc, err := estate.NewService(store)
	if err != nil {
		log.Fatalf("estate service: %v", err)
	}

	// Bootstrap the first master_admin so a fresh deployment is reachable.
	// Skipped when no bootstrap password is configured.
	if cfg.MasterAdminPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := authSvc.EnsureMasterAdmin(ctx, cfg.MasterAdminUsername, cfg.MasterAdminEmail, cfg.MasterAdminPassword); err != nil {
			cancel()
			log.Fatalf("bootstrap master admin: %v", err)
		}
		cancel()
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, authSvc, estateSvc).
		WithCORSOrigins(cfg.CORSOrigins).
		WithRateLimit(cfg.RatePerSec, cfg.RateBurst)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("starting kingsbuilder-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Println("stopped")
}
