package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrAddrInUse is returned by Listen when another process already holds the address.
var ErrAddrInUse = errors.New("address already in use")

// Timeouts configures the underlying http.Server.
type Timeouts struct {
	Read       time.Duration
	ReadHeader time.Duration
	Write      time.Duration
	Idle       time.Duration
}

// Server binds synchronously so that startup failures surface before the
// process reports itself as ready.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// New creates a server for addr. Nothing is bound until Listen is called.
func New(addr string, handler http.Handler, t Timeouts) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       t.Read,
			ReadHeaderTimeout: t.ReadHeader,
			WriteTimeout:      t.Write,
			IdleTimeout:       t.Idle,
			MaxHeaderBytes:    64 << 10, // 64 KB
		},
	}
}

// Listen binds the TCP listener.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %s: %w", ErrAddrInUse, s.srv.Addr, err)
		}
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.srv.Addr
}

// Serve blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) Serve() error {
	if s.ln == nil {
		return errors.New("server is not listening")
	}
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops accepting connections and waits for in-flight
// requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
