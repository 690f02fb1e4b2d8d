// Package server exposes the status API: health probes, the last cycle
// payload, an on-demand cycle trigger and prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxmirror/engine"
	"github.com/rustyeddy/fxmirror/metrics"
)

// Cycler runs one decision cycle.
type Cycler interface {
	Cycle(ctx context.Context) (engine.Result, error)
}

// State holds the outcome of the most recent cycle. The headless loop and
// the trigger endpoint both write it.
type State struct {
	mu      sync.RWMutex
	last    *engine.Result
	lastErr error
	at      time.Time
	cycles  int
}

func (s *State) Record(res engine.Result, err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	s.at = at
	s.lastErr = err
	if err == nil {
		s.last = &res
	}
}

// Last returns the last successful result, if any.
func (s *State) Last() (engine.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return engine.Result{}, false
	}
	return *s.last, true
}

type health struct {
	Status    string    `json:"status"`
	Cycles    int       `json:"cycles"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Breach    string    `json:"breach,omitempty"`
}

func (s *State) health() health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := health{Status: "ok", Cycles: s.cycles, LastCycle: s.at}
	if s.lastErr != nil {
		h.Status = "degraded"
		h.LastError = s.lastErr.Error()
	}
	if s.last != nil {
		h.Breach = s.last.Status
	}
	return h
}

type Server struct {
	addr   string
	router *gin.Engine
	state  *State
	cycler Cycler
	log    *zap.Logger
	now    func() time.Time
}

// New builds the router. cycler may be nil, which disables POST /api/cycle.
func New(addr string, state *State, cycler Cycler, log *zap.Logger) *Server {
	if addr == "" {
		addr = ":8080"
	}
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{addr: addr, router: router, state: state, cycler: cycler, log: log, now: time.Now}
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/livez", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", s.handleReady)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.state.health())
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.GET("/cycle", s.handleLast)
	api.GET("/cycle/usd", s.handleUSD)
	api.GET("/cycle/pairs", s.handlePairs)
	if cycler != nil {
		api.POST("/cycle", s.handleRun)
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string { return s.addr }

// ready once a cycle has completed without error.
func (s *Server) handleReady(c *gin.Context) {
	if _, ok := s.state.Last(); !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "waiting for first cycle"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleLast(c *gin.Context) {
	res, ok := s.state.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle yet"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleUSD(c *gin.Context) {
	res, ok := s.state.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle yet"})
		return
	}
	c.JSON(http.StatusOK, res.USDRows)
}

func (s *Server) handlePairs(c *gin.Context) {
	res, ok := s.state.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle yet"})
		return
	}
	c.JSON(http.StatusOK, res.PairRows)
}

// handleRun triggers a cycle now, like the refresh button of a dashboard.
// A started cycle runs to completion even if the client goes away.
func (s *Server) handleRun(c *gin.Context) {
	res, err := s.cycler.Cycle(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, engine.ErrCycleInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.state.Record(res, err, s.now())
	if err != nil {
		s.log.Error("triggered cycle failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("dur", time.Since(start)),
		)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.Info("status server listening", zap.String("addr", s.addr))
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
