package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"os"
	"os/signal"
	"syscall"

	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/api"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/config"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/engine"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/middleware"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/observability"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/proxy"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/ratelimit"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/reqid"
	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/ws"
)

func main() {
	cfg := config.Load()

	shutdownTracer := observability.InitTracer("chaos-proxy")
	defer shutdownTracer()
	shutdownMeter := observability.InitMeter("chaos-proxy")
	defer shutdownMeter()

	eng := engine.New()
	registry := ratelimit.NewRegistry()
	forwarder := proxy.New(eng, registry)
	managementAPI := api.NewRouter(eng, registry, cfg.AllowOrigins)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(reqid.Middleware)
	r.Use(middleware.Tracing)
	r.Use(middleware.Metrics)

	r.Get("/ws", ws.Handler(eng))
	r.Handle("/proxy/*", forwarder)
	r.Mount("/", managementAPI)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		// WriteTimeout is intentionally left at zero: a non-zero value
		// would truncate an in-progress timeout-hang or slow-latency
		// response before the chaos pipeline gets to finish it.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("chaos proxy listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	log.Println("exited")
}
