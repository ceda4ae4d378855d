// Command orchestrator runs the ops-intelligence orchestrator's HTTP
// server: the Stage Pipeline, the Asset Registry, and the trace
// inspector behind a single process-wide Services value.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ops-intel/orchestrator/infrastructure/config"
	"github.com/ops-intel/orchestrator/infrastructure/metrics"
	"github.com/ops-intel/orchestrator/infrastructure/middleware"
	"github.com/ops-intel/orchestrator/internal/app"

	"github.com/ops-intel/orchestrator/applications/httpapi"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config/env or :8080)")
	flag.Parse()

	opts := app.DefaultOptions()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := app.Build(rootCtx, opts)
	if err != nil {
		log.Fatalf("initialise services: %v", err)
	}
	defer services.Close()

	m := metrics.New("orchestrator")
	cors := middleware.CORSConfig{AllowedOrigins: []string{"*"}}
	server := httpapi.NewServer(services, m, cors)

	listenAddr := determineAddr(*addr)
	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		services.Logger.WithField("addr", listenAddr).Info("orchestrator listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

func determineAddr(flagAddr string) string {
	if flagAddr != "" {
		return flagAddr
	}
	return config.GetEnv("ORCH_HTTP_ADDR", ":8080")
}
