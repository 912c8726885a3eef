package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"barrace/internal/infrastructure"
	"barrace/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	frames    *FrameService
	memory    *infrastructure.MemoryMonitor
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a health service. frames and memory may be nil.
func NewHealthService(version, buildTime string, frames *FrameService, memory *infrastructure.MemoryMonitor, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "health_service"))

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		frames:    frames,
		memory:    memory,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"engine": hs.checkEngineHealth(),
			"memory": hs.checkMemoryHealth(),
		},
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":    hs.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     time.Since(hs.startTime).Seconds(),
		"start_time": hs.startTime.Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	result["api_version"] = contracts.APIVersion
	result["git_commit"] = contracts.GitCommit
	return result
}

func (hs *HealthService) checkEngineHealth() ServiceHealth {
	if hs.frames == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "frame service not initialized",
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d cached processors", hs.frames.ProcessorCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkMemoryHealth never reports not_ready; processors shed their caches
// when over the ceiling.
func (hs *HealthService) checkMemoryHealth() ServiceHealth {
	used, over := hs.memory.Check()
	if hs.memory == nil {
		used = infrastructure.HeapAlloc()
	}
	if over {
		return ServiceHealth{
			Status:  "ready",
			Message: fmt.Sprintf("heap %d MB above ceiling", used>>20),
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("heap %d MB", used>>20),
	}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	detail := map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
	}
	if hs.frames != nil {
		detail["engine"] = hs.frames.Diagnostics(ctx)
	}
	return detail
}
