package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/debtbook/internal/auth"
	"github.com/mmynk/debtbook/internal/config"
	"github.com/mmynk/debtbook/internal/guest"
	"github.com/mmynk/debtbook/internal/kv"
	"github.com/mmynk/debtbook/internal/kv/rediskv"
	"github.com/mmynk/debtbook/internal/kv/sqlitekv"
	"github.com/mmynk/debtbook/internal/metrics"
	"github.com/mmynk/debtbook/internal/middleware"
	"github.com/mmynk/debtbook/internal/migration"
	"github.com/mmynk/debtbook/internal/mode"
	"github.com/mmynk/debtbook/internal/service"
	"github.com/mmynk/debtbook/internal/storage/sqlite"
	"github.com/mmynk/debtbook/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.Log.Level))

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	cloud, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer cloud.Close()
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	guestKV, closeKV, err := openGuestKV(cfg.Guest)
	if err != nil {
		return err
	}
	defer closeKV()
	slog.Info("Guest storage initialized", "backend", cfg.Guest.Backend)

	m := metrics.New(prometheus.DefaultRegisterer)
	local := guest.NewStore(guestKV)
	sessions := guest.NewSessionManager(local)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
		slog.Warn("No JWT secret configured, generated one for this process; tokens will not survive a restart")
	}
	jwtManager := auth.NewJWTManager(secret, cfg.Auth.TokenTTL)
	provider := auth.NewProvider(auth.NewPasswordAuthenticator(cloud), jwtManager)

	controller := mode.NewController(local, sessions, cloud, migration.New(local, cloud, m), provider)
	defer controller.Attach()()

	interceptors := connect.WithInterceptors(
		middleware.OptionalAuth(jwtManager),
		middleware.LoggingInterceptor(),
	)

	mux := http.NewServeMux()
	mux.Handle(service.NewDebtService(controller, service.NewLedger(controller, m)).Handler(interceptors))
	mux.Handle(service.NewAuthService(provider).Handler(interceptors))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/debtbook.v1.") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	// h2c serves HTTP/2 without TLS for Connect and gRPC clients.
	handler := h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", addr, "url", fmt.Sprintf("http://localhost%s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		slog.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}

// openGuestKV opens the key-value store selected by the guest backend.
func openGuestKV(cfg config.GuestConfig) (kv.Store, func() error, error) {
	switch cfg.Backend {
	case config.GuestBackendRedis:
		store := rediskv.New(cfg.RedisAddr)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return store, store.Close, nil
	case config.GuestBackendMemory:
		return kv.NewMemory(), func() error { return nil }, nil
	default:
		store, err := sqlitekv.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open guest storage: %w", err)
		}
		return store, store.Close, nil
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
