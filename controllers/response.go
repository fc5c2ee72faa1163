package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/services"
	"github.com/kendall-kelly/servicepro-api/utils"
)

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// statusFor maps a service error kind to its HTTP status
func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotAuthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindValidationFailed:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes the error envelope for err. Causes of store and
// upstream failures stay in the logs.
func respondServiceError(c *gin.Context, err error) {
	var serr *services.ServiceError
	if errors.As(err, &serr) {
		body := gin.H{
			"code":    serr.Code,
			"message": serr.Message,
		}
		if len(serr.Details) > 0 {
			body["details"] = serr.Details
		}
		if serr.Err != nil {
			_ = c.Error(serr.Err)
		}
		c.JSON(statusFor(serr.Kind), gin.H{
			"success": false,
			"error":   body,
		})
		return
	}

	var uploadErr *utils.FileUploadError
	if errors.As(err, &uploadErr) {
		respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
		return
	}

	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred.")
}

// bindJSON decodes the request body, answering 400 on malformed JSON
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON.")
		return false
	}
	return true
}

// idParam parses a positive integer path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name+".")
		return 0, false
	}
	return uint(id), true
}
