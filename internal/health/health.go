package health

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db        Pinger
	redisUp   func() bool // nil when Redis is disabled
	wsClients func() int
	startedAt time.Time
}

type HealthStatus struct {
	Status   string         `json:"status"`
	Database DatabaseHealth `json:"database"`
}

type DatabaseHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

// DetailedStatus adds dependencies and host resources to the basic status
type DetailedStatus struct {
	HealthStatus
	Redis           string      `json:"redis"`
	RealtimeClients int         `json:"realtime_clients"`
	UptimeSeconds   int64       `json:"uptime_seconds"`
	Goroutines      int         `json:"goroutines"`
	System          SystemStats `json:"system"`
}

type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
}

func NewHealthChecker(db Pinger, redisUp func() bool, wsClients func() int) *HealthChecker {
	return &HealthChecker{
		db:        db,
		redisUp:   redisUp,
		wsClients: wsClients,
		startedAt: time.Now(),
	}
}

func (h *HealthChecker) CheckBasic() HealthStatus {
	dbHealth := h.checkDatabase()

	status := "healthy"
	if dbHealth.Status != "healthy" {
		status = "unhealthy"
	}

	return HealthStatus{
		Status:   status,
		Database: dbHealth,
	}
}

// CheckDetailed never fails on Redis: reports degrade to uncached reads
func (h *HealthChecker) CheckDetailed() DetailedStatus {
	status := DetailedStatus{
		HealthStatus:  h.CheckBasic(),
		Redis:         "disabled",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		System:        collectSystemStats(),
	}

	if h.redisUp != nil {
		status.Redis = "healthy"
		if !h.redisUp() {
			status.Redis = "unhealthy"
			if status.Status == "healthy" {
				status.Status = "degraded"
			}
		}
	}
	if h.wsClients != nil {
		status.RealtimeClients = h.wsClients()
	}

	return status
}

func (h *HealthChecker) checkDatabase() DatabaseHealth {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return DatabaseHealth{
			Status:       "unhealthy",
			ResponseTime: responseTime,
		}
	}

	return DatabaseHealth{
		Status:       "healthy",
		ResponseTime: responseTime,
	}
}

func collectSystemStats() SystemStats {
	var stats SystemStats

	if cpuPercents, err := cpu.Percent(0, false); err == nil && len(cpuPercents) > 0 {
		stats.CPUPercent = cpuPercents[0]
	}
	if memStats, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = memStats.UsedPercent
	}
	if diskStats, err := disk.Usage("/"); err == nil {
		stats.DiskPercent = diskStats.UsedPercent
	}

	return stats
}
