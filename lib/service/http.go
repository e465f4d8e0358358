// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
)

// DefaultShutdownTimeout applies when HTTPServerConfig.ShutdownTimeout
// is zero.
const DefaultShutdownTimeout = 10 * time.Second

// HTTPServer serves HTTP on a TCP listener until its context is
// cancelled.
type HTTPServer struct {
	address         string
	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration
	transferTimeout time.Duration

	// ready is closed once the listener is bound; addr is valid from
	// then on.
	ready chan struct{}
	addr  net.Addr
}

// HTTPServerConfig configures an HTTPServer.
type HTTPServerConfig struct {
	// Address is the TCP listen address ("127.0.0.1:8080", ":0").
	// Required.
	Address string

	// Handler serves every request. Required.
	Handler http.Handler

	// ShutdownTimeout bounds the wait for in-flight requests after
	// the context is cancelled.
	ShutdownTimeout time.Duration

	// TransferTimeout bounds reading a request body and writing a
	// response. Uploads and downloads carry whole artifacts, so this
	// is minutes rather than seconds. Defaults to five minutes.
	TransferTimeout time.Duration

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// NewHTTPServer validates config and returns a server that has not
// yet bound its listener.
func NewHTTPServer(config HTTPServerConfig) (*HTTPServer, error) {
	if config.Address == "" {
		return nil, pkgmeta.Usage("http server", "address is required")
	}
	if config.Handler == nil {
		return nil, pkgmeta.Usage("http server", "handler is required")
	}

	server := &HTTPServer{
		address:         config.Address,
		handler:         config.Handler,
		logger:          config.Logger,
		shutdownTimeout: config.ShutdownTimeout,
		transferTimeout: config.TransferTimeout,
		ready:           make(chan struct{}),
	}
	if server.logger == nil {
		server.logger = slog.New(slog.DiscardHandler)
	}
	if server.shutdownTimeout <= 0 {
		server.shutdownTimeout = DefaultShutdownTimeout
	}
	if server.transferTimeout <= 0 {
		server.transferTimeout = 5 * time.Minute
	}
	return server, nil
}

// Ready is closed once the server is bound and accepting connections.
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Only valid after Ready is closed;
// with port 0 it carries the port the kernel picked.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

// Serve binds the listener and serves until ctx is cancelled, then
// shuts down gracefully. A listener that cannot be bound is an
// IOFailure.
func (s *HTTPServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return pkgmeta.Wrap(pkgmeta.KindIOFailure, "http server", fmt.Errorf("listening on %s: %w", s.address, err))
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.transferTimeout,
		WriteTimeout:      s.transferTimeout,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	s.logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
