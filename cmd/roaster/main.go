// Command roaster captures screenshots and serves them over HTTP, gRPC and MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/GriffinCanCode/screen-roaster/internal/config"
	"github.com/GriffinCanCode/screen-roaster/internal/grpcapi"
	"github.com/GriffinCanCode/screen-roaster/internal/orchestrator"
	"github.com/GriffinCanCode/screen-roaster/internal/server"
)

// Version is set via -ldflags at build time.
var Version = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	app := newCLIApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// serve runs the HTTP and gRPC servers until ctx is done or a SIGINT or
// SIGTERM arrives.
func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := orchestrator.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := orch.Start(ctx); err != nil {
		return err
	}
	defer orch.Stop()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(orch, cfg).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	grpcServer := grpcapi.NewServer(orch)

	errCh := make(chan error, 2)
	go func() {
		slog.Info("http server starting", "addr", cfg.HTTPAddr, "dir", cfg.CaptureDir, "backend", cfg.CaptureBackend)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		slog.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	stopGRPC(shutdownCtx, grpcServer)

	slog.Info("shutdown complete")
	return runErr
}

func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}
