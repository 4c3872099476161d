package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/denisAlshanov/mediafetch/internal/config"
	"github.com/denisAlshanov/mediafetch/internal/services/storage"
	"github.com/denisAlshanov/mediafetch/internal/utils"
)

// BinaryLocator is implemented by backends and tools that shell out to an
// executable.
type BinaryLocator interface {
	Lookup() (string, error)
}

type HealthHandler struct {
	mode      config.Mode
	storage   *storage.Local
	mirror    *storage.Mirror
	extractor BinaryLocator
	ffmpeg    BinaryLocator
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Version   string                   `json:"version"`
	Mode      string                   `json:"mode"`
	Services  map[string]ServiceHealth `json:"services"`
}

type ServiceHealth struct {
	Status       string      `json:"status"`
	ResponseTime string      `json:"response_time,omitempty"`
	Error        string      `json:"error,omitempty"`
	Details      interface{} `json:"details,omitempty"`
}

type DiskDetails struct {
	Path        string  `json:"path"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// Service statuses. Informational checks never make the service
// unhealthy.
const (
	statusHealthy     = "healthy"
	statusUnhealthy   = "unhealthy"
	statusUnavailable = "unavailable"
)

// NewHealthHandler builds the health checks. extractor may be nil for
// backends that do not depend on an executable.
func NewHealthHandler(mode config.Mode, storage *storage.Local, mirror *storage.Mirror, extractor, ffmpeg BinaryLocator) *HealthHandler {
	return &HealthHandler{
		mode:      mode,
		storage:   storage,
		mirror:    mirror,
		extractor: extractor,
		ffmpeg:    ffmpeg,
	}
}

// Health godoc
// @Summary Health check endpoint
// @Description Check the storage directory, the extractor binary, ffmpeg and the object mirror
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Success 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	response := HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
		Mode:      string(h.mode),
		Services:  make(map[string]ServiceHealth),
	}

	response.Services["storage"] = h.checkStorage(ctx)
	if h.extractor != nil {
		response.Services["extractor"] = h.checkBinary(ctx, "extractor", h.extractor)
	}
	response.Services["ffmpeg"] = h.checkFFmpeg(ctx)
	if h.mirror.Enabled() {
		response.Services["s3"] = h.checkS3(ctx)
	}

	overallHealthy := true
	for _, service := range response.Services {
		if service.Status == statusUnhealthy {
			overallHealthy = false
			break
		}
	}

	if !overallHealthy {
		response.Status = statusUnhealthy
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Readiness godoc
// @Summary Readiness check endpoint
// @Description Check if the storage directory accepts new files
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Success 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	ready := true
	checks := make(map[string]interface{})

	if err := h.storage.Writable(); err != nil {
		ready = false
		checks["storage"] = map[string]interface{}{
			"ready": false,
			"error": err.Error(),
		}
	} else {
		checks["storage"] = map[string]interface{}{
			"ready": true,
		}
	}

	response := map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	if ready {
		c.JSON(http.StatusOK, response)
	} else {
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

// Liveness godoc
// @Summary Liveness check endpoint
// @Description Check if the service is alive
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /live [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"alive":     true,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *HealthHandler) checkStorage(ctx context.Context) ServiceHealth {
	start := time.Now()

	if err := h.storage.Writable(); err != nil {
		utils.LogError(ctx, "Storage health check failed", err)
		return ServiceHealth{
			Status:       statusUnhealthy,
			ResponseTime: time.Since(start).String(),
			Error:        err.Error(),
		}
	}

	health := ServiceHealth{Status: statusHealthy}

	usage, err := disk.UsageWithContext(ctx, h.storage.Dir())
	if err != nil {
		utils.LogWarn(ctx, "Failed to read disk usage", utils.Fields{"error": err.Error()})
	} else {
		health.Details = DiskDetails{
			Path:        usage.Path,
			FreeBytes:   usage.Free,
			UsedPercent: usage.UsedPercent,
		}
	}

	health.ResponseTime = time.Since(start).String()
	return health
}

func (h *HealthHandler) checkBinary(ctx context.Context, name string, locator BinaryLocator) ServiceHealth {
	path, err := locator.Lookup()
	if err != nil {
		utils.LogError(ctx, "Binary lookup failed", err, utils.Fields{"binary": name})
		return ServiceHealth{
			Status: statusUnhealthy,
			Error:  err.Error(),
		}
	}

	return ServiceHealth{
		Status:  statusHealthy,
		Details: map[string]string{"path": path},
	}
}

// checkFFmpeg is informational: only merges and the audio-only format
// need ffmpeg, and the serverless deployment never has it.
func (h *HealthHandler) checkFFmpeg(ctx context.Context) ServiceHealth {
	if h.ffmpeg == nil {
		return ServiceHealth{Status: statusUnavailable}
	}

	path, err := h.ffmpeg.Lookup()
	if err != nil {
		utils.LogDebug(ctx, "ffmpeg not available", utils.Fields{"error": err.Error()})
		return ServiceHealth{
			Status: statusUnavailable,
			Error:  err.Error(),
		}
	}

	return ServiceHealth{
		Status:  statusHealthy,
		Details: map[string]string{"path": path},
	}
}

func (h *HealthHandler) checkS3(ctx context.Context) ServiceHealth {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// A missing object is not an error; this only verifies connectivity.
	_, err := h.mirror.Store().Exists(checkCtx, "health-check-test")
	responseTime := time.Since(start).String()

	if err != nil {
		utils.LogError(ctx, "S3 health check failed", err)
		return ServiceHealth{
			Status:       statusUnhealthy,
			ResponseTime: responseTime,
			Error:        err.Error(),
		}
	}

	return ServiceHealth{
		Status:       statusHealthy,
		ResponseTime: responseTime,
	}
}
