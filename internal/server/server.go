package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"mdingest/internal/catalog"
	"mdingest/internal/model/enum"
	"mdingest/internal/obs"
	"mdingest/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	defaultBatchLimit = 50
	shutdownTimeout   = 5 * time.Second
)

// StatusProvider reports the pipeline units. *pipeline.Supervisor implements it.
type StatusProvider interface {
	Status() []pipeline.UnitStatus
	Healthy() bool
}

// BatchLister lists catalog rows. *catalog.Catalog implements it.
type BatchLister interface {
	List(ctx context.Context, eventType enum.EventType, limit int) ([]catalog.BatchRecord, error)
}

type healthResponse struct {
	Status       string                `json:"status"`
	Units        []pipeline.UnitStatus `json:"units"`
	FlushLatency obs.LatencySnapshot   `json:"flush_latency"`
}

// Server is the ops HTTP surface: health, metrics and the batch catalog.
type Server struct {
	addr    string
	router  *gin.Engine
	status  StatusProvider
	metrics *obs.Metrics
	batches BatchLister
}

// New builds the router. batches may be nil when the catalog is disabled.
func New(addr string, status StatusProvider, metrics *obs.Metrics, batches BatchLister) *Server {
	s := &Server{
		addr:    addr,
		router:  gin.New(),
		status:  status,
		metrics: metrics,
		batches: batches,
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.health)
	if reg := s.metrics.Registry(); reg != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}
	if s.batches != nil {
		s.router.GET("/batches", s.listBatches)
	}
}

func (s *Server) health(c *gin.Context) {
	resp := healthResponse{
		Status:       "ok",
		Units:        s.status.Status(),
		FlushLatency: s.metrics.FlushLatency(),
	}
	code := http.StatusOK
	if !s.status.Healthy() {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (s *Server) listBatches(c *gin.Context) {
	var eventType enum.EventType
	if raw := c.Query("event_type"); raw != "" {
		t, ok := enum.ParseEventType(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event_type " + raw})
			return
		}
		eventType = t
	}

	limit := defaultBatchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	rows, err := s.batches.List(c.Request.Context(), eventType, limit)
	if err != nil {
		logs.Errorf("server: list batches, err: %+v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": rows})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.Infof("server: listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "server: listen %s", s.addr)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "server: shutdown")
	}
	logs.Info("server: stopped")
	return nil
}
