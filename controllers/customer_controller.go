package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/forms"
	"github.com/kendall-kelly/servicepro-api/middleware"
	"github.com/kendall-kelly/servicepro-api/services"
)

// CustomerController serves the customer endpoints
type CustomerController struct {
	customers *services.CustomerService
}

func NewCustomerController(customers *services.CustomerService) *CustomerController {
	return &CustomerController{customers: customers}
}

// Create handles POST /api/v1/customers
func (h *CustomerController) Create(c *gin.Context) {
	var in forms.CustomerInput
	if !bindJSON(c, &in) {
		return
	}

	customer, err := h.customers.AddCustomer(c.Request.Context(), middleware.GetSession(c), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, customer)
}

// List handles GET /api/v1/customers
func (h *CustomerController) List(c *gin.Context) {
	customers, err := h.customers.ListCustomers(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, customers)
}

// Get handles GET /api/v1/customers/:id and includes the customer's jobs
func (h *CustomerController) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	customer, err := h.customers.GetCustomer(c.Request.Context(), middleware.GetSession(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, customer)
}
