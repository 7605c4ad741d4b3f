package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/audit"
	"github.com/sbnctech/murmurant-sub011/internal/delegation"
	"github.com/sbnctech/murmurant-sub011/internal/httpapi"
	"github.com/sbnctech/murmurant-sub011/internal/obs"
	"github.com/sbnctech/murmurant-sub011/internal/store/memory"
	"github.com/sbnctech/murmurant-sub011/internal/store/pg"
	"github.com/sbnctech/murmurant-sub011/internal/workflow"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("CLUB_BUILD_COMMIT"))

	var (
		store   workflow.Store
		trail   audit.Reader
		denials audit.Recorder
		assigns delegation.AssignmentStore
		probe   httpapi.ReadyProbe
		pgClose func() error
	)
	if dsn := os.Getenv("CLUB_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store, trail, denials, assigns = pgStore, pgStore, pgStore, pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
		pgClose = pgStore.Close
	} else {
		mem := memory.New()
		store, trail, denials, assigns = mem, mem, mem, mem
	}

	resolver := delegation.NewResolver(assigns, denials)
	engine := workflow.NewEngine(store, denials, resolver)
	api := httpapi.New(engine, trail, probe, version)

	addr := os.Getenv("CLUB_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting club-core %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgClose != nil {
		_ = pgClose()
	}
	log.Println("Stopped")
}
