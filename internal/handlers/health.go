package handlers

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"statutelink/internal/middleware"
	"statutelink/internal/models"
)

var startTime = time.Now()

// HealthHandler serves liveness and system metrics.
type HealthHandler struct {
	deps map[string]HealthChecker
}

// Root handles GET /.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "statutelink",
		"status":  "ok",
		"uptime":  time.Since(startTime).String(),
	})
}

// Health handles GET /health: per-dependency liveness plus basic system
// metrics.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	requestID := middleware.RequestID(c)

	components := make(map[string]string, len(h.deps))
	healthy := true
	for name, dep := range h.deps {
		if dep != nil && dep.IsHealthy() {
			components[name] = "healthy"
		} else {
			components[name] = "unhealthy"
			healthy = false
		}
	}

	status := "healthy"
	code := fiber.StatusOK
	if !healthy {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	payload := fiber.Map{
		"status":     status,
		"components": components,
		"system":     systemMetrics(),
		"uptime":     time.Since(startTime).String(),
	}
	return c.Status(code).JSON(models.NewSuccessResponse(payload, requestID))
}

func systemMetrics() fiber.Map {
	metrics := fiber.Map{
		"goroutines": runtime.NumGoroutine(),
		"cpus":       runtime.NumCPU(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		metrics["memory_used_percent"] = vm.UsedPercent
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		metrics["cpu_percent"] = percents[0]
	}
	return metrics
}
