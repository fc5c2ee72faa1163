package controllers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/models"
	"github.com/kendall-kelly/servicepro-api/services"
	"github.com/kendall-kelly/servicepro-api/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func jobRoutes(h *harness, images services.ImageService) {
	controller := NewJobController(h.jobs, images, services.NewReportService("https://shop.example.com"), zap.NewNop())
	auth := h.as(h.staff)
	h.router.POST("/jobs", auth, controller.Create)
	h.router.GET("/jobs", auth, controller.List)
	h.router.GET("/jobs/export", auth, controller.Export)
	h.router.GET("/jobs/:id", auth, controller.Get)
	h.router.PUT("/jobs/:id", auth, controller.Update)
	h.router.DELETE("/jobs/:id", auth, controller.Delete)
	h.router.POST("/jobs/:id/pickup", auth, controller.MarkAsPickedUp)
	h.router.POST("/jobs/:id/images", auth, controller.UploadImage)
	h.router.GET("/jobs/:id/qrcode", auth, controller.QRCode)
	h.router.POST("/anonymous/jobs", controller.Create)
}

func (h *harness) upload(path, filename string, content []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("image", filename)
		require.NoError(h.t, err)
		_, _ = part.Write(content)
	}
	require.NoError(h.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestCreateJobEndpoint(t *testing.T) {
	h := newHarness(t)
	jobRoutes(h, nil)

	w := h.send(http.MethodPost, "/jobs", gin.H{
		"receiptNo":        "JOB-1",
		"problemsReported": "Paper jam every single page no matter what we try",
		"printerBrand":     "HP",
		"customerName":     "Ann",
		"customerPhone":    "555-1111",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "HP: Paper jam every single page no...", data["title"])
	assert.Equal(t, "ITEM_RECEIVED", data["status"])
	assert.Equal(t, "Ann", data["customer"].(map[string]interface{})["name"])

	w = h.send(http.MethodPost, "/anonymous/jobs", gin.H{"receiptNo": "JOB-2"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateJobEndpointRejectsBadForms(t *testing.T) {
	h := newHarness(t)
	jobRoutes(h, nil)

	w := h.send(http.MethodPost, "/jobs", gin.H{
		"receiptNo":        "JOB-1",
		"problemsReported": "Jam",
		"customerName":     "Ann",
		"customerPhone":    "555-1111",
		"status":           "ON_FIRE",
		"laborCost":        -5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	details := decodeBody(t, w)["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Contains(t, details, "status")
	assert.Contains(t, details, "laborCost")

	var count int64
	require.NoError(t, h.db.Model(&models.Customer{}).Count(&count).Error)
	assert.Zero(t, count, "Nothing is persisted for a rejected form")
}

func TestJobEndpointsLifecycle(t *testing.T) {
	h := newHarness(t)
	jobRoutes(h, nil)
	customer := testutil.SeedCustomer(t, h.db, "Ann", "555-1111", "")
	job := testutil.SeedJob(t, h.db, customer.ID, h.staff.ID, "R-1")
	path := fmt.Sprintf("/jobs/%d", job.ID)

	w := h.send(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "R-1", decodeBody(t, w)["data"].(map[string]interface{})["receipt_no"])

	w = h.send(http.MethodPut, path, gin.H{
		"receiptNo":        "R-1",
		"problemsReported": "Does not power on",
		"customerId":       fmt.Sprint(customer.ID),
		"status":           "UNDER_REPAIR",
		"assignedToId":     fmt.Sprint(h.staff.ID),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "UNDER_REPAIR", data["status"])
	assert.Equal(t, "Job R-1", data["title"])

	w = h.send(http.MethodGet, "/jobs?status=under_repair", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["data"], 1)

	w = h.send(http.MethodGet, "/jobs?status=ready_for_pickup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["data"], 0)

	w = h.send(http.MethodPost, path+"/pickup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "PICKED_UP", data["status"])
	assert.Equal(t, float64(h.staff.ID), data["delivered_by_id"])

	w = h.send(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Job deleted successfully.", decodeBody(t, w)["message"])

	w = h.send(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Job not found.", decodeBody(t, w)["error"].(map[string]interface{})["message"])
}

func TestUploadJobImages(t *testing.T) {
	h := newHarness(t)
	store := services.NewMockS3Service()
	jobRoutes(h, services.NewS3ImageService(store))
	customer := testutil.SeedCustomer(t, h.db, "Ann", "555-1111", "")
	job := testutil.SeedJob(t, h.db, customer.ID, h.staff.ID, "R-1")
	path := fmt.Sprintf("/jobs/%d/images", job.ID)

	w := h.upload(path, "anim.gif", []byte("gif"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_FILE_FORMAT", decodeBody(t, w)["error"].(map[string]interface{})["code"])

	w = h.upload(path, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", decodeBody(t, w)["error"].(map[string]interface{})["code"])

	for i := 1; i <= 3; i++ {
		w = h.upload(path, fmt.Sprintf("photo%d.jpg", i), []byte("jpeg-bytes"))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Regexp(t, `^jobs/.+\.jpg$`, data[fmt.Sprintf("image_url%d", i)])
		assert.Len(t, data["image_links"], i)
	}
	assert.Len(t, store.Keys(), 3)

	w = h.upload(path, "photo4.jpg", []byte("jpeg-bytes"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, store.Keys(), 3, "The rejected fourth image is removed again")

	w = h.upload("/jobs/999/images", "photo.png", []byte("png"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobImageLinksArePresignedPerRead(t *testing.T) {
	h := newHarness(t)
	store := services.NewMockS3Service()
	jobRoutes(h, services.NewS3ImageService(store))
	customer := testutil.SeedCustomer(t, h.db, "Ann", "555-1111", "")
	job := testutil.SeedJob(t, h.db, customer.ID, h.staff.ID, "R-1")
	path := fmt.Sprintf("/jobs/%d", job.ID)

	w := h.upload(path+"/images", "front.png", []byte("png-bytes"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, store.Keys(), 1)
	key := store.Keys()[0]

	var stored models.Job
	require.NoError(t, h.db.First(&stored, job.ID).Error)
	require.NotNil(t, stored.ImageURL1)
	assert.Equal(t, key, *stored.ImageURL1, "Only the object key is persisted")

	linkFor := func() string {
		w := h.send(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		links := decodeBody(t, w)["data"].(map[string]interface{})["image_links"].([]interface{})
		require.Len(t, links, 1)
		return links[0].(string)
	}

	before := store.PresignCount()
	first := linkFor()
	second := linkFor()
	assert.Contains(t, first, key)
	assert.NotEqual(t, first, second, "Every read gets a new link")
	assert.Equal(t, before+2, store.PresignCount())

	w = h.send(http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decodeBody(t, w)["data"].([]interface{})[0].(map[string]interface{})
	assert.Len(t, listed["image_links"], 1)
}

func TestJobImageLinksKeepExternalURLs(t *testing.T) {
	h := newHarness(t)
	jobRoutes(h, nil)

	w := h.send(http.MethodPost, "/jobs", gin.H{
		"receiptNo":        "JOB-1",
		"problemsReported": "Streaks",
		"customerName":     "Ann",
		"customerPhone":    "555-1111",
		"imageUrl1":        "https://cdn.example.com/front.png",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"https://cdn.example.com/front.png"}, data["image_links"])
}

func TestUploadJobImagesWithoutStorage(t *testing.T) {
	h := newHarness(t)
	jobRoutes(h, nil)

	w := h.upload("/jobs/1/images", "photo.png", []byte("png"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExportAndQRCodeEndpoints(t *testing.T) {
	h := newHarness(t)
	jobRoutes(h, nil)
	customer := testutil.SeedCustomer(t, h.db, "Ann", "555-1111", "")
	job := testutil.SeedJob(t, h.db, customer.ID, h.staff.ID, "R-1")

	w := h.send(http.MethodGet, "/jobs/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Regexp(t, `attachment; filename="jobs-\d{8}\.xlsx"`, w.Header().Get("Content-Disposition"))

	w = h.send(http.MethodGet, "/jobs/export?status=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.send(http.MethodGet, fmt.Sprintf("/jobs/%d/qrcode", job.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}
