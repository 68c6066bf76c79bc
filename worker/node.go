package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"remote-module/logging"
	"remote-module/message"
	"remote-module/metrics"
	"remote-module/middleware"
	"remote-module/module"
	"remote-module/registry"
	"remote-module/server"
)

// Config describes one worker node.
type Config struct {
	// Name is the destination id callers address.
	Name string `koanf:"name"`
	// Listen is host:port; port 0 picks a free one.
	Listen string `koanf:"listen"`
	// Advertise is published in the registry instead of the listen address when set.
	Advertise string `koanf:"advertise"`
	Weight    int    `koanf:"weight"`
	Version   string `koanf:"version"`
	// LeaseTTL is in seconds.
	LeaseTTL int64 `koanf:"lease_ttl"`

	RequestTimeout time.Duration `koanf:"request_timeout"`
	RateLimit      float64       `koanf:"rate_limit"`
	RateBurst      int           `koanf:"rate_burst"`
	MetricsAddr    string        `koanf:"metrics_addr"`
	ShutdownGrace  time.Duration `koanf:"shutdown_grace"`
}

// Node is a running worker: RPC server, registry advertisement and optional metrics endpoint.
type Node struct {
	cfg      Config
	registry registry.Registry
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	svc      *Service
	srv      *server.Server

	mu       sync.Mutex
	lis      net.Listener
	httpSrv  *http.Server
	instance registry.Instance
	serveErr chan error
	started  bool
}

// NewNode wires a node. reg may be nil for a node reached by address only.
func NewNode(cfg Config, reg registry.Registry, catalog *module.Catalog, logger *logrus.Logger) (*Node, error) {
	if cfg.Name == "" {
		return nil, errors.New("worker: name is required")
	}
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:0"
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 10
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}

	m := metrics.New()
	svc := NewService(cfg.Name, catalog, m, logger)

	srv := server.NewServer(logger)
	srv.Use(middleware.LoggingMiddleware(logger))
	srv.Use(middleware.MetricsMiddleware(m))
	if cfg.RateLimit > 0 {
		srv.Use(middleware.RateLimitMiddleware(cfg.RateLimit, max(cfg.RateBurst, 1)))
	}
	if cfg.RequestTimeout > 0 {
		srv.Use(middleware.TimeOutMiddleware(cfg.RequestTimeout, message.MethodCreate))
		svc.createTimeout = cfg.RequestTimeout
	}
	// innermost, so it also covers the goroutine the timeout middleware starts
	srv.Use(middleware.RecoveryMiddleware())
	if err := srv.RegisterName(message.WorkerService, svc); err != nil {
		return nil, err
	}

	return &Node{
		cfg:      cfg,
		registry: reg,
		logger:   logger,
		metrics:  m,
		svc:      svc,
		srv:      srv,
		serveErr: make(chan error, 1),
	}, nil
}

// Start listens, serves in the background and advertises the node.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return errors.New("worker: already started")
	}

	lis, err := net.Listen("tcp", n.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.cfg.Listen, err)
	}
	n.lis = lis
	go func() { n.serveErr <- n.srv.Serve(lis) }()

	addr := n.cfg.Advertise
	if addr == "" {
		addr = lis.Addr().String()
	}
	n.instance = registry.Instance{Name: n.cfg.Name, Addr: addr, Weight: n.cfg.Weight, Version: n.cfg.Version}
	if n.registry != nil {
		if err := n.registry.Register(ctx, n.instance, n.cfg.LeaseTTL); err != nil {
			n.srv.Shutdown(0)
			return fmt.Errorf("register %s: %w", n.cfg.Name, err)
		}
	}

	if n.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", n.metrics.Handler())
		n.httpSrv = &http.Server{Addr: n.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := n.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				n.logger.WithError(err).Error("metrics endpoint stopped")
			}
		}()
	}

	n.started = true
	n.logger.WithFields(logrus.Fields{logging.FieldWorker: n.cfg.Name, logging.FieldAddr: addr}).Info("worker started")
	return nil
}

// Addr is the advertised address, empty before Start.
func (n *Node) Addr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.instance.Addr
}

func (n *Node) Name() string { return n.cfg.Name }

func (n *Node) Service() *Service { return n.svc }

func (n *Node) Metrics() *metrics.Metrics { return n.metrics }

// Done delivers Serve's result once the server stops.
func (n *Node) Done() <-chan error { return n.serveErr }

// Stop deregisters, drains in-flight requests and closes every hosted module.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return nil
	}
	n.started = false

	var errs []error
	if n.registry != nil {
		if err := n.registry.Deregister(ctx, n.instance.Name, n.instance.Addr); err != nil && !errors.Is(err, registry.ErrNotFound) {
			errs = append(errs, fmt.Errorf("deregister: %w", err))
		}
	}
	if err := n.srv.Shutdown(n.cfg.ShutdownGrace); err != nil {
		errs = append(errs, err)
	}
	if n.httpSrv != nil {
		if err := n.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics endpoint: %w", err))
		}
	}
	if err := n.svc.Close(); err != nil {
		errs = append(errs, err)
	}
	n.logger.WithField(logging.FieldWorker, n.cfg.Name).Info("worker stopped")
	return errors.Join(errs...)
}
