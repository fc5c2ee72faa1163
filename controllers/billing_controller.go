package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/forms"
	"github.com/kendall-kelly/servicepro-api/middleware"
	"github.com/kendall-kelly/servicepro-api/services"
)

// BillingController serves invoices and payments for a job
type BillingController struct {
	billing *services.BillingService
}

func NewBillingController(billing *services.BillingService) *BillingController {
	return &BillingController{billing: billing}
}

// Invoice handles GET /api/v1/jobs/:id/invoice
func (h *BillingController) Invoice(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	invoice, err := h.billing.Invoice(c.Request.Context(), middleware.GetSession(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, invoice)
}

// CreatePaymentIntent handles POST /api/v1/jobs/:id/payment-intent
func (h *BillingController) CreatePaymentIntent(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	secret, err := h.billing.CreatePaymentIntent(c.Request.Context(), middleware.GetSession(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"clientSecret": secret})
}

// RecordPayment handles POST /api/v1/jobs/:id/payments
func (h *BillingController) RecordPayment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in forms.PaymentInput
	if !bindJSON(c, &in) {
		return
	}

	job, err := h.billing.RecordPayment(c.Request.Context(), middleware.GetSession(c), id, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, job)
}
