package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"barrace/internal/infrastructure"
)

func TestHealthService_Readiness(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		frames     *FrameService
		memory     *infrastructure.MemoryMonitor
		wantStatus string
	}{
		{
			name:       "ready",
			frames:     newTestFrameService(t, nil),
			memory:     infrastructure.NewMemoryMonitor(0),
			wantStatus: "ready",
		},
		{
			name:   "memory pressure stays ready",
			frames: newTestFrameService(t, nil),
			memory: &infrastructure.MemoryMonitor{
				CeilingBytes: 1,
				Usage:        func() uint64 { return 8 << 20 },
			},
			wantStatus: "ready",
		},
		{
			name:       "no engine",
			wantStatus: "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthService("1.2.3", "", tt.frames, tt.memory, infrastructure.NewDiscardLogger())
			status := hs.ReadinessCheck(ctx)
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, "1.2.3", status.Version)
			assert.Contains(t, status.Services, "engine")
			assert.Contains(t, status.Services, "memory")
		})
	}
}

func TestHealthService_MemoryMessage(t *testing.T) {
	hs := NewHealthService("v", "", nil, &infrastructure.MemoryMonitor{
		CeilingBytes: 1,
		Usage:        func() uint64 { return 8 << 20 },
	}, infrastructure.NewDiscardLogger())

	assert.Equal(t, "heap 8 MB above ceiling", hs.checkMemoryHealth().Message)
}

func TestHealthService_Info(t *testing.T) {
	ctx := context.Background()
	hs := NewHealthService("1.0.0", "2024-01-01", newTestFrameService(t, nil), nil, infrastructure.NewDiscardLogger())

	assert.Equal(t, "ok", hs.HealthCheck(ctx).Status)

	live := hs.LivenessCheck(ctx)
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	version := hs.Version()
	assert.Equal(t, "1.0.0", version["version"])
	assert.Equal(t, "2024-01-01", version["build_time"])

	detail := hs.GetDetailedHealth(ctx)
	assert.Contains(t, detail, "engine")
	assert.Contains(t, detail, "readiness")
}
