// Package testutil holds helpers shared by package tests: environment guards,
// in-memory databases and seed records.
package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/kendall-kelly/servicepro-api/config"
	"github.com/kendall-kelly/servicepro-api/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

var dbSeq atomic.Int64

// NewTestDB opens a fresh, migrated SQLite database private to the test.
// A single connection keeps every query on the same in-memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:servicepro_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := config.OpenDatabase(name)
	require.NoError(t, err, "Failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db), "Failed to migrate test database")
	return db
}

// TestPassword is the plain-text password of users created by SeedUser
const TestPassword = "password123"

// SeedUser inserts a staff account with TestPassword
func SeedUser(t *testing.T, db *gorm.DB, name, email string, role models.Role) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := string(hash)

	user := models.User{Name: name, Email: email, Password: &hashed, Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// SeedCustomer inserts a customer with the given phone and optional email
func SeedCustomer(t *testing.T, db *gorm.DB, name, phone, email string) models.Customer {
	t.Helper()

	customer := models.Customer{Name: name, Phone: &phone}
	if email != "" {
		customer.Email = &email
	}
	require.NoError(t, db.Create(&customer).Error)
	return customer
}

// SeedJob inserts a job for customer, created by creator
func SeedJob(t *testing.T, db *gorm.DB, customerID, creatorID uint, receiptNo string) models.Job {
	t.Helper()

	job := models.Job{
		ReceiptNo:        receiptNo,
		Title:            "Job " + receiptNo,
		Status:           models.StatusItemReceived,
		ProblemsReported: "Does not power on",
		CustomerID:       customerID,
		CreatedByID:      creatorID,
	}
	require.NoError(t, db.Omit("Customer", "AssignedTo", "DiagnosedBy", "DeliveredBy", "CreatedBy").Create(&job).Error)
	return job
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
