package handlers

import (
	"net/http"
	"strconv"

	"github.com/tfdash/tfdash-backend/pkg/api/dtos"
	"github.com/tfdash/tfdash-backend/pkg/services"

	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	JobService *services.JobService
}

func NewJobHandler(jobService *services.JobService) *JobHandler {
	return &JobHandler{JobService: jobService}
}

// Create godoc
// @Summary  Create a deployment job
// @Tags     jobs
// @Accept   json
// @Produce  json
// @Param    request body dtos.CreateJobRequest true "job definition"
// @Success  200 {object} dtos.JobResponse
// @Router   /jobs [post]
func (h *JobHandler) Create(c *gin.Context) {
	var request dtos.CreateJobRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := request.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.JobService.CreateJob(
		request.TemplateID,
		request.Variables,
		request.Environment,
		userID(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos.JobResponse{Job: job})
}

// StartPlan godoc
// @Summary  Start the plan phase of a job
// @Tags     jobs
// @Produce  json
// @Param    id path string true "job id"
// @Router   /jobs/{id}/plan [post]
func (h *JobHandler) StartPlan(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	if err := h.JobService.StartPlan(id, userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

// StartApply godoc
// @Summary  Start the apply phase of a planned job
// @Tags     jobs
// @Accept   json
// @Produce  json
// @Param    id path string true "job id"
// @Router   /jobs/{id}/apply [post]
func (h *JobHandler) StartApply(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	var request dtos.StartApplyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := h.JobService.StartApply(id, userID(c), request.Force); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

// StartDestroy godoc
// @Summary  Tear down the infrastructure of a succeeded job
// @Tags     jobs
// @Produce  json
// @Param    id path string true "job id"
// @Router   /jobs/{id}/destroy [post]
func (h *JobHandler) StartDestroy(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	if err := h.JobService.StartDestroy(id, userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

// Cancel godoc
// @Summary  Request cancellation of a job
// @Tags     jobs
// @Produce  json
// @Param    id path string true "job id"
// @Router   /jobs/{id}/cancel [post]
func (h *JobHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	if err := h.JobService.CancelJob(id, userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

// GetAll godoc
// @Summary  List jobs
// @Tags     jobs
// @Produce  json
// @Success  200 {object} dtos.JobListResponse
// @Router   /jobs [get]
func (h *JobHandler) GetAll(c *gin.Context) {
	jobs, err := h.JobService.GetAllJobs()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos.JobListResponse{Jobs: jobs})
}

// GetByID godoc
// @Summary  Get one job
// @Tags     jobs
// @Produce  json
// @Param    id path string true "job id"
// @Success  200 {object} dtos.JobResponse
// @Router   /jobs/{id} [get]
func (h *JobHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	job, err := h.JobService.GetJob(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos.JobResponse{Job: job})
}

// GetStatus godoc
// @Summary  Get the lifecycle state of a job
// @Tags     jobs
// @Produce  json
// @Param    id path string true "job id"
// @Success  200 {object} dtos.JobStatusResponse
// @Router   /jobs/{id}/status [get]
func (h *JobHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	status, err := h.JobService.GetJobStatus(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos.JobStatusResponse{JobID: id, Status: status})
}

// GetLogs godoc
// @Summary  Read captured output from a byte offset
// @Tags     jobs
// @Produce  json
// @Param    id     path  string true  "job id"
// @Param    offset query int    false "byte offset to resume from"
// @Router   /jobs/{id}/logs [get]
func (h *JobHandler) GetLogs(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	offset, err := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}
	chunk, err := h.JobService.StreamOutput(id, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chunk)
}

// userID resolves the acting user from the request. The dashboard fronting
// this API forwards the authenticated user in a header.
func userID(c *gin.Context) string {
	return c.GetHeader("X-User-Id")
}
