package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/forms"
	"github.com/kendall-kelly/servicepro-api/middleware"
	"github.com/kendall-kelly/servicepro-api/models"
	"github.com/kendall-kelly/servicepro-api/services"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// JobController serves the repair job endpoints
type JobController struct {
	jobs    *services.JobService
	images  services.ImageService
	reports *services.ReportService
	logger  *zap.Logger
}

// NewJobController creates a job controller
func NewJobController(jobs *services.JobService, images services.ImageService, reports *services.ReportService, logger *zap.Logger) *JobController {
	return &JobController{jobs: jobs, images: images, reports: reports, logger: logger}
}

// Create handles POST /api/v1/jobs
func (h *JobController) Create(c *gin.Context) {
	var form forms.JobFormInput
	if !bindJSON(c, &form) {
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), middleware.GetSession(c), form)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	h.linkImages(c.Request.Context(), job)
	respondData(c, http.StatusCreated, job)
}

// List handles GET /api/v1/jobs?status=
func (h *JobController) List(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	jobs, err := h.jobs.List(c.Request.Context(), middleware.GetSession(c), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	for i := range jobs {
		h.linkImages(c.Request.Context(), &jobs[i])
	}
	respondData(c, http.StatusOK, jobs)
}

// Export handles GET /api/v1/jobs/export and streams the job list as XLSX
func (h *JobController) Export(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	jobs, err := h.jobs.List(c.Request.Context(), middleware.GetSession(c), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	file, err := h.reports.ExportJobs(jobs)
	if err != nil {
		h.logger.Error("failed to build job export", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to export jobs.")
		return
	}
	defer file.Close()

	buf, err := file.WriteToBuffer()
	if err != nil {
		h.logger.Error("failed to write job export", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to export jobs.")
		return
	}

	filename := fmt.Sprintf("jobs-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// filter reads the optional status query; unknown values are rejected
func (h *JobController) filter(c *gin.Context) (services.JobFilter, bool) {
	raw := c.Query("status")
	if raw == "" {
		return services.JobFilter{}, true
	}
	status, ok := models.ParseStatusQuery(raw)
	if !ok {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid status filter.")
		return services.JobFilter{}, false
	}
	return services.JobFilter{Status: status}, true
}

// Get handles GET /api/v1/jobs/:id
func (h *JobController) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), middleware.GetSession(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	h.linkImages(c.Request.Context(), job)
	respondData(c, http.StatusOK, job)
}

// Update handles PUT /api/v1/jobs/:id
func (h *JobController) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var form forms.JobFormInput
	if !bindJSON(c, &form) {
		return
	}

	job, err := h.jobs.Update(c.Request.Context(), middleware.GetSession(c), id, form)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	h.linkImages(c.Request.Context(), job)
	respondData(c, http.StatusOK, job)
}

// Delete handles DELETE /api/v1/jobs/:id
func (h *JobController) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.jobs.Delete(c.Request.Context(), middleware.GetSession(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Job deleted successfully.")
}

// MarkAsPickedUp handles POST /api/v1/jobs/:id/pickup
func (h *JobController) MarkAsPickedUp(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	job, err := h.jobs.MarkAsPickedUp(c.Request.Context(), middleware.GetSession(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	h.linkImages(c.Request.Context(), job)
	respondData(c, http.StatusOK, job)
}

// UploadImage handles POST /api/v1/jobs/:id/images (multipart field "image")
func (h *JobController) UploadImage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if h.images == nil {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Image storage is not configured.")
		return
	}
	session := middleware.GetSession(c)
	ctx := c.Request.Context()

	// existence and auth are checked before anything is uploaded
	if _, err := h.jobs.Get(ctx, session, id); err != nil {
		respondServiceError(c, err)
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "No file was uploaded")
		return
	}

	key, err := h.images.UploadImage(ctx, fileHeader)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// the slot keeps the key; links are presigned per read
	job, err := h.jobs.AttachImage(ctx, session, id, key)
	if err != nil {
		if delErr := h.images.DeleteImage(ctx, key); delErr != nil {
			h.logger.Warn("failed to remove orphaned image", zap.String("key", key), zap.Error(delErr))
		}
		respondServiceError(c, err)
		return
	}
	h.linkImages(ctx, job)
	respondData(c, http.StatusOK, job)
}

// linkImages fills ImageLinks for the populated slots. External URLs are
// passed through and storage keys are presigned.
func (h *JobController) linkImages(ctx context.Context, job *models.Job) {
	stored := job.ImageURLs()
	if len(stored) == 0 {
		return
	}

	links := make([]string, 0, len(stored))
	for _, ref := range stored {
		if strings.Contains(ref, "://") {
			links = append(links, ref)
			continue
		}
		if h.images == nil {
			continue
		}
		link, err := h.images.GetImageURL(ctx, ref)
		if err != nil {
			h.logger.Warn("failed to link job image", zap.Uint("job_id", job.ID), zap.String("key", ref), zap.Error(err))
			continue
		}
		links = append(links, link)
	}
	job.ImageLinks = links
}

// QRCode handles GET /api/v1/jobs/:id/qrcode?size=
func (h *JobController) QRCode(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "0"))

	if _, err := h.jobs.Get(c.Request.Context(), middleware.GetSession(c), id); err != nil {
		respondServiceError(c, err)
		return
	}

	png, err := h.reports.JobQRCode(id, size)
	if err != nil {
		h.logger.Error("failed to render QR code", zap.Uint("job_id", id), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "QRCODE_ERROR", "Failed to render QR code.")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
