package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/middleware"
	"github.com/kendall-kelly/servicepro-api/models"
	"github.com/kendall-kelly/servicepro-api/services"
	"github.com/kendall-kelly/servicepro-api/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	t         *testing.T
	db        *gorm.DB
	router    *gin.Engine
	users     *services.UserService
	customers *services.CustomerService
	jobs      *services.JobService
	staff     models.User
	admin     models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	testutil.RequireTestEnvironment(t)
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	logger := zap.NewNop()
	customers := services.NewCustomerService(db, services.NewLocalLocker(), logger)

	return &harness{
		t:         t,
		db:        db,
		router:    gin.New(),
		users:     services.NewUserService(db, services.NewTokenIssuer("test-secret"), logger),
		customers: customers,
		jobs:      services.NewJobService(db, customers, nil, logger),
		staff:     testutil.SeedUser(t, db, "Tech One", "tech@example.com", models.RoleUser),
		admin:     testutil.SeedUser(t, db, "Boss", "admin@example.com", models.RoleAdmin),
	}
}

// as authenticates every request as user
func (h *harness) as(user models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.SessionKey, services.SessionFor(user))
		c.Next()
	}
}

func (h *harness) send(method, path string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

func jsonNumber(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}
