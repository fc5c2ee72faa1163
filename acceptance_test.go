package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/models"
	"github.com/kendall-kelly/servicepro-api/services"
	"github.com/stretchr/testify/suite"
)

// JobLifecycleAcceptanceSuite drives the API over a real HTTP listener, the
// way the front desk client does.
type JobLifecycleAcceptanceSuite struct {
	suite.Suite
	app    *testApp
	server *httptest.Server
	token  string
	userID uint
}

func TestJobLifecycleAcceptance(t *testing.T) {
	suite.Run(t, new(JobLifecycleAcceptanceSuite))
}

func (s *JobLifecycleAcceptanceSuite) SetupTest() {
	s.token = ""
	s.app = newTestApp(s.T())
	s.server = httptest.NewServer(s.app.router)

	resp, env := s.request(http.MethodPost, "/api/v1/auth/signup", gin.H{
		"name":     "Front Desk",
		"email":    "desk@example.com",
		"password": "secret1",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.userID = s.decodeUser(env.Data).ID

	resp, env = s.request(http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "desk@example.com",
		"password": "secret1",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var login struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &login))
	s.Equal(86400, login.ExpiresIn)
	s.token = login.Token
}

func (s *JobLifecycleAcceptanceSuite) TearDownTest() {
	s.server.Close()
}

func (s *JobLifecycleAcceptanceSuite) request(method, path string, body interface{}) (*http.Response, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var env envelope
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func (s *JobLifecycleAcceptanceSuite) decodeJob(raw json.RawMessage) models.Job {
	var job models.Job
	s.Require().NoError(json.Unmarshal(raw, &job))
	return job
}

func (s *JobLifecycleAcceptanceSuite) decodeUser(raw json.RawMessage) models.User {
	var user models.User
	s.Require().NoError(json.Unmarshal(raw, &user))
	return user
}

func (s *JobLifecycleAcceptanceSuite) TestIntakeToPickup() {
	resp, env := s.request(http.MethodPost, "/api/v1/jobs", gin.H{
		"receiptNo":        "JOB-1",
		"title":            "",
		"problemsReported": "Paper jam every single page no matter what we try",
		"customerName":     "Ann",
		"customerPhone":    "555-1111",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	job := s.decodeJob(env.Data)
	s.Equal("Paper jam every single page no...", job.Title)
	s.Equal(models.StatusItemReceived, job.Status)
	s.Require().NotNil(job.Customer)
	s.Equal("Ann", job.Customer.Name)

	resp, env = s.request(http.MethodPost, "/api/v1/jobs", gin.H{
		"receiptNo":        "JOB-2",
		"problemsReported": "Streaks",
		"customerName":     "Ann B.",
		"customerPhone":    "555-1111",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Equal(job.CustomerID, s.decodeJob(env.Data).CustomerID, "Same phone reuses the customer")

	_, env = s.request(http.MethodGet, "/api/v1/customers", nil)
	var customers []models.Customer
	s.Require().NoError(json.Unmarshal(env.Data, &customers))
	s.Len(customers, 1)

	path := fmt.Sprintf("/api/v1/jobs/%d", job.ID)
	resp, env = s.request(http.MethodPut, path, gin.H{
		"receiptNo":        "JOB-1",
		"problemsReported": "Paper jam every single page no matter what we try",
		"customerId":       fmt.Sprint(job.CustomerID),
		"status":           "READY_FOR_PICKUP",
		"partsCost":        20,
		"laborCost":        40,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	updated := s.decodeJob(env.Data)
	s.Equal(models.StatusReadyForPickup, updated.Status)
	s.Equal(job.Title, updated.Title, "A blank title keeps the stored one")

	_, env = s.request(http.MethodGet, path+"/invoice", nil)
	var invoice services.Invoice
	s.Require().NoError(json.Unmarshal(env.Data, &invoice))
	s.InDelta(60.0, invoice.Total, 0.0001)
	s.False(invoice.Paid)

	resp, env = s.request(http.MethodPost, path+"/payment-intent", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var intent struct {
		ClientSecret string `json:"clientSecret"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &intent))
	s.Equal("pi_test_secret_123", intent.ClientSecret)
	s.Require().Len(s.app.payments.Requests(), 1)
	s.Equal(int64(6000), s.app.payments.Requests()[0].Amount)

	resp, env = s.request(http.MethodPost, path+"/payments", gin.H{"paymentMethod": "card"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	paid := s.decodeJob(env.Data)
	s.Require().NotNil(paid.PaymentStatus)
	s.Equal(services.PaymentStatusPaid, *paid.PaymentStatus)

	resp, env = s.request(http.MethodPost, path+"/pickup", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	picked := s.decodeJob(env.Data)
	s.Equal(models.StatusPickedUp, picked.Status)
	s.NotNil(picked.PickupDate)
	s.Require().NotNil(picked.DeliveredByID)
	s.Equal(s.userID, *picked.DeliveredByID)

	resp, _ = s.request(http.MethodGet, "/api/v1/jobs?status=picked_up", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.request(http.MethodDelete, path, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp, env = s.request(http.MethodGet, path, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal("Job not found.", env.Error.Message)
}

func (s *JobLifecycleAcceptanceSuite) TestPaymentIntentWithZeroTotal() {
	resp, env := s.request(http.MethodPost, "/api/v1/jobs", gin.H{
		"receiptNo":        "JOB-9",
		"problemsReported": "Noise",
		"customerName":     "Bob",
		"customerPhone":    "555-2222",
		"partsCost":        0,
		"laborCost":        0,
		"otherCharges":     0,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	job := s.decodeJob(env.Data)

	resp, env = s.request(http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/payment-intent", job.ID), nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Require().NotNil(env.Error)
	s.Equal("Invalid amount", env.Error.Message)
	s.Empty(s.app.payments.Requests())
}

func (s *JobLifecycleAcceptanceSuite) TestProfileAndTechnicians() {
	resp, env := s.request(http.MethodPut, "/api/v1/users/me", gin.H{"name": "Desk Two"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("Desk Two", s.decodeUser(env.Data).Name)

	resp, env = s.request(http.MethodGet, "/api/v1/technicians", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var technicians []models.User
	s.Require().NoError(json.Unmarshal(env.Data, &technicians))
	s.Len(technicians, 1)

	resp, _ = s.request(http.MethodPost, "/api/v1/auth/signup", gin.H{
		"name":     "Front Desk",
		"email":    "desk@example.com",
		"password": "secret1",
	})
	s.Equal(http.StatusConflict, resp.StatusCode)
}
