package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kendall-kelly/servicepro-api/models"
	"github.com/kendall-kelly/servicepro-api/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// recordingNotifier captures JobCreated calls
type recordingNotifier struct {
	mu   sync.Mutex
	jobs []models.Job
}

func (n *recordingNotifier) JobCreated(job *models.Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, *job)
}

func (n *recordingNotifier) created() []models.Job {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Job(nil), n.jobs...)
}

type fixture struct {
	db        *gorm.DB
	customers *CustomerService
	jobs      *JobService
	notifier  *recordingNotifier
	staff     models.User
	admin     models.User
	session   Session
}

func newFixture(t *testing.T, opts ...JobOption) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	logger := zap.NewNop()
	notifier := &recordingNotifier{}
	customers := NewCustomerService(db, NewLocalLocker(), logger)

	opts = append([]JobOption{WithClock(func() time.Time { return testNow })}, opts...)

	staff := testutil.SeedUser(t, db, "Tech One", "tech@example.com", models.RoleUser)
	admin := testutil.SeedUser(t, db, "Boss", "admin@example.com", models.RoleAdmin)

	return &fixture{
		db:        db,
		customers: customers,
		jobs:      NewJobService(db, customers, notifier, logger, opts...),
		notifier:  notifier,
		staff:     staff,
		admin:     admin,
		session:   SessionFor(staff),
	}
}

func requireKind(t *testing.T, err error, kind ErrorKind) *ServiceError {
	t.Helper()
	require.Error(t, err)
	var serr *ServiceError
	require.True(t, errors.As(err, &serr), "expected *ServiceError, got %T: %v", err, err)
	assert.Equal(t, kind, serr.Kind, "unexpected error kind: %v", serr)
	return serr
}
