package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/procguard/internal/metrics"
)

// ProcessStatus is one row of the status table.
type ProcessStatus struct {
	Name           string    `json:"name"`
	PID            int32     `json:"pid"`
	Running        bool      `json:"running"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemoryMB       float64   `json:"memory_mb"`
	MaxCPUPercent  float64   `json:"max_cpu_pct"`
	MaxMemoryMB    float64   `json:"max_mem_mb"`
	RestartOnCrash bool      `json:"restart_on_crash"`
	RestartCount   int       `json:"restart_count"`
	MaxRestarts    int       `json:"max_restarts"`
	LastChecked    time.Time `json:"last_checked"`
}

// DaemonStatus is the full answer to a status query. It is assembled from an
// immutable snapshot, so it can be served while the daemon is reloading.
type DaemonStatus struct {
	State     string          `json:"state"`
	PID       int             `json:"pid"`
	UpdatedAt time.Time       `json:"updated_at"`
	Processes []ProcessStatus `json:"processes"`
}

// Source yields the current status snapshot.
type Source func() DaemonStatus

// Server exposes the control-plane HTTP API:
//
//	GET /status   daemon state + per-process table
//	GET /healthz  liveness probe
//	GET /metrics  Prometheus metrics
type Server struct {
	http *http.Server
}

func NewRouter(src Source) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, src())
	})
	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "state": src().State})
	})
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// New starts the API server on addr in a background goroutine.
func New(addr string, src Source) *Server {
	s := &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(src),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
	go func() { _ = s.http.ListenAndServe() }()
	return s
}

// Shutdown stops the server, waiting up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
