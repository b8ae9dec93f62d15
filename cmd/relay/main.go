package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-relay/auth"
	"clinic-relay/infrastructure/ws"
	"clinic-relay/internal"
	"clinic-relay/observability"
	"clinic-relay/relay"
	"clinic-relay/repositories"
	"clinic-relay/runtime/workers"
	"clinic-relay/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle. Keeping
// the logic out of main ensures defers execute before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	auth.SetSigningKey(config.AuthSigningKey)

	// 2. Database (BadgerDB): doctor directory and portal accounts
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Relay components
	monitor := observability.NewRelayMonitor()
	registry := relay.NewRegistry(log)
	profileRepository := repositories.NewProfileRepository(db)
	accountRepository := repositories.NewAccountRepository(db)
	validator := auth.NewDirectoryValidator(log, profileRepository)
	relayServer := relay.NewServer(log, registry, validator, monitor)
	authService := services.NewAuthService(accountRepository, config.AuthTokenDuration)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised background workers
	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewHeartbeatWorker(log, monitor))
	go sup.Run(ctx)

	// 6. HTTP server: WebSocket relay endpoint plus portal auth
	wsServer := ws.NewServer(log, relayServer,
		config.ConnectionBufferSize, config.DeliveryTimeout, int64(config.MaxContentLength))
	mux := wsServer.Routes()
	ws.RegisterAuthRoutes(mux, log, authService)

	internal.StartDebugServer(db, config.DebugPort, "/inspect", nil, monitor.StatsProvider)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("relay server error: %w", err)
		}
	}()

	// 7. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
