package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vodgrab-go/internal/app"
	"github.com/yourusername/vodgrab-go/internal/domain"
)

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	queueMgr *app.QueueManager
	logger   *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(queueMgr *app.QueueManager, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		queueMgr: queueMgr,
		logger:   logger,
	}
}

// AddJobRequest represents a request to queue one title
type AddJobRequest struct {
	Config  json.RawMessage `json:"config" binding:"required"`
	Options domain.Options  `json:"options"`
}

// AddJob handles POST /api/v1/jobs
func (h *JobHandler) AddJob(c *gin.Context) {
	var req AddJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := domain.ParseDownloadConfig(req.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.queueMgr.AddJob(cfg, req.Options.WithDefaults())
	if err != nil {
		h.logger.Error("Failed to add job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, job)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.queueMgr.GetJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	filters := make(map[string]interface{})

	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if provider := c.Query("provider"); provider != "" {
		filters["provider"] = provider
	}

	jobs, err := h.queueMgr.ListJobs(filters)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// GetStats handles GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.queueMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// RetryJob handles POST /api/v1/jobs/:id/retry
func (h *JobHandler) RetryJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.queueMgr.RetryJob(id); err != nil {
		h.logger.Error("Failed to retry job", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job queued for retry"})
}
