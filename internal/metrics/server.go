package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStatus tracks the stores a backtest run depends on and the last run
// it completed. Redis only counts when publication is configured.
type HealthStatus struct {
	mu            sync.RWMutex
	sqliteOK      bool
	redisOK       bool
	redisRequired bool
	lastRunID     string
	lastRunAt     time.Time
	startedAt     time.Time
}

// NewHealthStatus returns a health status with no successful probe yet.
func NewHealthStatus(redisRequired bool) *HealthStatus {
	return &HealthStatus{startedAt: time.Now(), redisRequired: redisRequired}
}

// SetLastRun records the most recently delivered run.
func (h *HealthStatus) SetLastRun(id string, at time.Time) {
	h.mu.Lock()
	h.lastRunID, h.lastRunAt = id, at
	h.mu.Unlock()
}

// CheckRedis pings Redis.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	h.setRedis(rdb.Ping(ctx).Err() == nil)
}

// CheckSQLite pings the database.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	h.setSQLite(db.PingContext(ctx) == nil)
}

func (h *HealthStatus) setRedis(ok bool) {
	h.mu.Lock()
	h.redisOK = ok
	h.mu.Unlock()
}

func (h *HealthStatus) setSQLite(ok bool) {
	h.mu.Lock()
	h.sqliteOK = ok
	h.mu.Unlock()
}

// Status returns "healthy", "degraded" or "unhealthy".
func (h *HealthStatus) Status() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status()
}

func (h *HealthStatus) status() string {
	redisOK := h.redisOK || !h.redisRequired
	switch {
	case h.sqliteOK && redisOK:
		return "healthy"
	case !h.sqliteOK && !redisOK:
		return "unhealthy"
	}
	return "degraded"
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	body := struct {
		Status    string `json:"status"`
		Uptime    string `json:"uptime"`
		SQLiteOK  bool   `json:"sqlite_ok"`
		RedisOK   bool   `json:"redis_ok"`
		LastRunID string `json:"last_run_id,omitempty"`
		LastRunAt string `json:"last_run_at,omitempty"`
	}{
		Status:    h.status(),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		SQLiteOK:  h.sqliteOK,
		RedisOK:   h.redisOK,
		LastRunID: h.lastRunID,
	}
	if !h.lastRunAt.IsZero() {
		body.LastRunAt = h.lastRunAt.Format(time.RFC3339)
	}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if body.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(body)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server. gatherer may be nil for the
// default Prometheus registry.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler exposes the mux for in-process use.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
