package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"insiderlens/internal/repository"
)

type JobsHandler struct {
	Repo repository.Repository
}

func (h *JobsHandler) Register(group *gin.RouterGroup) {
	group.GET("/jobs", h.list)
	group.GET("/jobs/:id", h.get)
}

// @Summary Raw job listing for operators
// @Tags admin
// @Router /api/v1/admin/jobs [get]
func (h *JobsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListJobsParams{
		Limit:   limit,
		Offset:  offset,
		Status:  strQueryPtr(c, "status"),
		JobType: strQueryPtr(c, "job_type"),
		OrderBy: c.Query("order_by"),
	}
	jobs, err := h.Repo.ListJobs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountJobs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, jobs, paginationMeta(limit, offset, total))
}

// @Summary Single job by id
// @Tags admin
// @Router /api/v1/admin/jobs/{id} [get]
func (h *JobsHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid job id", nil)
		return
	}
	job, err := h.Repo.GetJobByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if job == nil {
		Error(c, http.StatusNotFound, "job not found", nil)
		return
	}
	Ok(c, job, nil)
}
