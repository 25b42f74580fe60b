package stats

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ShutdownTimeout bounds how long Close waits for scrapes in progress.
const ShutdownTimeout = 5 * time.Second

// Server serves the metrics of a prometheus.Gatherer on /metrics and a
// liveness check on /healthz.
type Server struct {
	mu        sync.RWMutex
	addr      string
	boundAddr string
	server    *http.Server

	handler http.Handler
	log     Logger
}

// NewServer returns a Server that will listen on addr, ":8080" for example.
// Every request is timed and counted by response code in the registry set
// with WithRegistry. WithLogger applies to the Server.
func NewServer(addr string, gatherer prometheus.Gatherer, opts ...Option) *Server {
	o := newOptions(opts)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		// a metric that fails to collect must not hide the others
		ErrorHandling: promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "ok\n")
	})

	return &Server{
		addr:    addr,
		handler: NewStatHandler(mux, opts...),
		log:     o.log,
	}
}

// Handler returns the http.Handler of the Server.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the address of the Server and serves in a new goroutine.
// An error is returned if the address can not be bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.server = srv
	s.mu.Unlock()

	s.log.Infof("server: listening on %s", ln.Addr())
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("server: %s", err)
		}
	}()
	return nil
}

// Addr returns the actual bound address of the server.
// Returns the configured address if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.addr
}

// Close shuts down the server, waiting up to ShutdownTimeout for requests in
// progress.
func (s *Server) Close() error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
