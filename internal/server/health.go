package server

import (
	"context"
	"net/http"
	"os"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health is the /health response body.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	status := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleReady reports whether the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.db.PingContext(ctx) != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "database unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleLive answers as long as the process serves requests.
func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	components := map[string]ComponentHealth{
		"database":   s.checkDatabaseHealth(ctx),
		"upload_dir": s.checkUploadDirHealth(),
	}
	return Health{
		Status:     overallHealth(components),
		Timestamp:  time.Now(),
		Components: components,
	}
}

func (s *Server) checkDatabaseHealth(ctx context.Context) ComponentHealth {
	if s.db == nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: "database not configured"}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "database ping failed: " + err.Error(),
		}
	}

	latency := time.Since(start).Milliseconds()
	if latency > 1000 {
		return ComponentHealth{
			Status:    ComponentStatusDegraded,
			Message:   "database latency high",
			LatencyMs: float64(latency),
		}
	}
	return ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   "database healthy",
		LatencyMs: float64(latency),
	}
}

// checkUploadDirHealth verifies the upload directory exists and accepts
// new files.
func (s *Server) checkUploadDirHealth() ComponentHealth {
	dir := s.relocator.Dir()
	info, err := os.Stat(dir)
	if err != nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: err.Error()}
	}
	if !info.IsDir() {
		return ComponentHealth{Status: ComponentStatusDown, Message: dir + " is not a directory"}
	}

	tmp, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return ComponentHealth{Status: ComponentStatusDegraded, Message: "upload directory not writable: " + err.Error()}
	}
	_ = tmp.Close()
	_ = os.Remove(tmp.Name())

	return ComponentHealth{Status: ComponentStatusUp, Message: "upload directory writable"}
}

func overallHealth(components map[string]ComponentHealth) HealthStatus {
	var down, degraded int
	for _, c := range components {
		switch c.Status {
		case ComponentStatusDown:
			down++
		case ComponentStatusDegraded:
			degraded++
		}
	}
	if down > 0 {
		return HealthStatusUnhealthy
	}
	if degraded > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
