package respserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/stefankamdem/minikv/internal/resp"
	"github.com/stefankamdem/minikv/internal/store"
	"github.com/stefankamdem/minikv/internal/telemetry/metric"
	"github.com/stefankamdem/minikv/pkg/cmap"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// MaxClients is the hard cap on simultaneously active sessions.
	// At capacity, further connection acceptance is deferred until a
	// session ends; connections are never refused outright.
	MaxClients int
	// ReadTimeout is the timeout for reading one request once its first
	// byte has arrived (default: 30s).
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing a response (default: 30s).
	WriteTimeout time.Duration
	// IdleTimeout is the timeout for idle connections between requests
	// (default: 5m).
	IdleTimeout time.Duration
	// RateLimit is the maximum number of requests per second per IP.
	// 0 disables rate limiting (the default).
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:31337",
		MaxClients:   64,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		RateLimit:    0,
	}
}

// Conn represents a single client connection.
type Conn struct {
	id      string
	netConn net.Conn
	reader  *resp.Reader
	closed  atomic.Bool
}

func newConn(c net.Conn) *Conn {
	return &Conn{
		id:      ulid.Make().String(),
		netConn: c,
		reader:  resp.NewReader(c),
	}
}

// Close closes the underlying connection once. Closing unblocks any read
// or write the session is suspended on and terminates only that session.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Server accepts connections and runs one session per connection.
type Server struct {
	cfg        *Config
	dispatcher *Dispatcher
	logger     *slog.Logger
	metrics    *metric.Metrics

	ln      net.Listener
	sem     *semaphore.Weighted
	conns   *cmap.Map[*Conn]
	limiter *ipLimiter

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a server serving st.
func New(cfg *Config, st *store.Store, logger *slog.Logger, m *metric.Metrics) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metric.New(nil, st.Len)
	}

	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = DefaultConfig().MaxClients
	}

	s := &Server{
		cfg:        cfg,
		dispatcher: NewDispatcher(st, logger, m),
		logger:     logger,
		metrics:    m,
		sem:        semaphore.NewWeighted(int64(maxClients)),
		conns:      cmap.New[*Conn](),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newIPLimiter(cfg.RateLimit)
	}
	return s
}

// Start begins listening and accepting connections. It returns once the
// listener is bound; accepting runs in the background until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.running.Store(true)

	acceptCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info("server listening", "addr", ln.Addr().String(), "max_clients", s.cfg.MaxClients)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(acceptCtx, ln); err != nil && s.running.Load() {
			s.logger.Error("accept loop error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveConns returns the number of sessions currently running.
func (s *Server) ActiveConns() int {
	return s.conns.Count()
}

// Shutdown stops accepting, closes every active connection, and waits for
// sessions to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}

	var firstErr error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Unblock sessions suspended on network reads or writes.
	s.conns.Range(func(_ string, c *Conn) bool {
		_ = c.Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		// The admission gate is taken before Accept: at capacity the
		// loop stops pulling connections off the listen queue, which is
		// backpressure rather than refusal.
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		c, err := ln.Accept()
		if err != nil {
			s.sem.Release(1)
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		conn := newConn(c)

		// Register before the session goroutine runs so the close-all
		// sweep in Shutdown sees every accepted connection. If shutdown
		// began in the meantime the sweep may have already passed, so
		// re-check and close here.
		s.conns.Set(conn.id, conn)
		if !s.running.Load() {
			s.conns.Delete(conn.id)
			_ = conn.Close()
			s.sem.Release(1)
			return nil
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.serveConn(conn)
		}()
	}
}

// serveConn drives one session: read a request, dispatch it, write the
// response, repeat. It returns on clean disconnect or on any fatal error.
func (s *Server) serveConn(c *Conn) {
	log := s.logger.With("conn", c.id, "remote", c.RemoteAddr().String())

	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsActive.Inc()
	defer func() {
		s.conns.Delete(c.id)
		s.metrics.ConnectionsActive.Dec()
		_ = c.Close()
		log.Debug("session ended")
	}()

	log.Debug("connection accepted")

	readTimeout := orDefault(s.cfg.ReadTimeout, DefaultConfig().ReadTimeout)
	writeTimeout := orDefault(s.cfg.WriteTimeout, DefaultConfig().WriteTimeout)
	idleTimeout := orDefault(s.cfg.IdleTimeout, DefaultConfig().IdleTimeout)

	for {
		// Waiting for the marker byte of the next message runs under the
		// idle deadline; the connection may sit quiet between requests.
		if err := c.netConn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}
		if _, err := c.reader.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("client disconnected")
			} else if isTimeout(err) {
				log.Debug("connection idle timeout")
			} else if !errors.Is(err, net.ErrClosed) {
				log.Debug("connection read error", "error", err)
			}
			return
		}

		// Once the request has started arriving, tighten to the
		// per-request read deadline.
		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		req, err := c.reader.ReadValue()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Debug("client disconnected")
			case isTimeout(err):
				log.Debug("request read timeout")
			case errors.Is(err, resp.ErrProtocol), errors.Is(err, resp.ErrLimitExceeded):
				// The stream can no longer be trusted for framing, so the
				// session ends without a response.
				s.metrics.ProtocolErrors.Inc()
				log.Warn("protocol error, closing connection", "error", err)
			default:
				log.Debug("connection read error", "error", err)
			}
			return
		}

		var reply resp.Value
		if s.limiter != nil && !s.limiter.allow(c.RemoteAddr()) {
			reply = resp.Error("rate limit exceeded")
		} else {
			reply = s.dispatcher.Dispatch(req)
		}

		if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := resp.WriteValue(c.netConn, reply); err != nil {
			// Unlike command errors, an encode failure is fatal to the
			// connection: there is no in-band way to report it without
			// risking a half-written frame.
			if errors.Is(err, resp.ErrUnsupportedValue) {
				log.Error("unencodable response value", "error", err)
			} else if !isTimeout(err) && !errors.Is(err, net.ErrClosed) {
				log.Debug("connection write error", "error", err)
			}
			return
		}
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
