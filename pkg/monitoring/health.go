package monitoring

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// HealthChecker manages health monitoring of the external OSM services
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time
	mu          sync.RWMutex
	connections map[string]*ConnStatus
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())

	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]*ConnStatus),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start system metrics collection
	go hc.collectSystemMetrics()

	return hc
}

// UpdateConnection updates the status of a connection
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	h.connections[name] = &ConnStatus{
		Status:    status,
		Latency:   latencyMs,
		LastError: errStr,
	}
}

// RemoveConnection removes a connection from monitoring
func (h *HealthChecker) RemoveConnection(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, name)
}

// GetHealth returns the current health status
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Determine overall status
	status := "healthy"
	errorCount := 0

	for _, conn := range h.connections {
		switch conn.Status {
		case "error", "disconnected":
			errorCount++
		}
	}

	// Status logic: healthy -> degraded -> unhealthy
	if errorCount > 0 {
		if errorCount > len(h.connections)/2 { // More than half are in error
			status = "unhealthy"
		} else {
			status = "degraded"
		}
	}

	// Copy connections to avoid race conditions
	connections := make(map[string]ConnStatus)
	for k, v := range h.connections {
		connections[k] = *v
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.startTime)

	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		Uptime:        uptime,
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		Connections:   connections,
		Metrics: map[string]interface{}{
			"goroutines":        runtime.NumGoroutine(),
			"memory_alloc_mb":   m.Alloc / 1024 / 1024,
			"memory_sys_mb":     m.Sys / 1024 / 1024,
			"gc_runs":           m.NumGC,
			"cpu_count":         runtime.NumCPU(),
			"total_connections": len(h.connections),
			"error_connections": errorCount,
		},
	}
}

// collectSystemMetrics periodically collects and updates system metrics
func (h *HealthChecker) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates Prometheus metrics with current system state
func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))
	GCRuns.Set(float64(m.NumGC))
}

// Shutdown gracefully shuts down the health checker
func (h *HealthChecker) Shutdown() {
	h.cancel()
}

// ConnectionMonitor helps monitor external service connections
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	checkFunc     func() error
	interval      time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewConnectionMonitor creates a new connection monitor
func NewConnectionMonitor(name string, hc *HealthChecker, checkFunc func() error, interval time.Duration) *ConnectionMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &ConnectionMonitor{
		name:          name,
		healthChecker: hc,
		checkFunc:     checkFunc,
		interval:      interval,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins monitoring the connection
func (cm *ConnectionMonitor) Start() {
	go cm.monitor()
}

// Stop stops monitoring the connection
func (cm *ConnectionMonitor) Stop() {
	cm.cancel()
}

// monitor runs the connection monitoring loop
func (cm *ConnectionMonitor) monitor() {
	// Initial check
	cm.performCheck()

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

// performCheck executes the health check and updates status
func (cm *ConnectionMonitor) performCheck() {
	start := time.Now()
	err := cm.checkFunc()
	latency := time.Since(start).Milliseconds()

	status := "connected"
	if err != nil {
		status = "error"
	}

	cm.healthChecker.UpdateConnection(cm.name, status, latency, err)
}
