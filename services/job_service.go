package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kendall-kelly/servicepro-api/forms"
	"github.com/kendall-kelly/servicepro-api/metrics"
	"github.com/kendall-kelly/servicepro-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobListLimit caps the job list
const JobListLimit = 50

// titleProblemRunes is how much of the reported problem goes into a derived title
const titleProblemRunes = 30

// JobNotifier is told about newly created jobs after they are committed
type JobNotifier interface {
	JobCreated(job *models.Job)
}

// JobFilter narrows the job list
type JobFilter struct {
	Status models.JobStatus
}

// JobService manages the repair job lifecycle
type JobService struct {
	db                 *gorm.DB
	customers          *CustomerService
	notifier           JobNotifier
	logger             *zap.Logger
	enforceTransitions bool
	now                func() time.Time
}

// JobOption configures a JobService
type JobOption func(*JobService)

// WithStatusEnforcement rejects updates that move a job outside the lifecycle table
func WithStatusEnforcement(enabled bool) JobOption {
	return func(s *JobService) { s.enforceTransitions = enabled }
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) JobOption {
	return func(s *JobService) { s.now = now }
}

// NewJobService creates a job service. notifier may be nil.
func NewJobService(db *gorm.DB, customers *CustomerService, notifier JobNotifier, logger *zap.Logger, opts ...JobOption) *JobService {
	s := &JobService{
		db:        db,
		customers: customers,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultJobTitle derives a title from the printer details and the reported
// problem, e.g. "HP LaserJet 1020: Paper jam every single page no...".
func DefaultJobTitle(brand, model, serial *string, problems string) string {
	var parts []string
	for _, p := range []*string{brand, model, serial} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	printerInfo := strings.Join(parts, " ")

	summary := problems
	if runes := []rune(problems); len(runes) > titleProblemRunes {
		summary = string(runes[:titleProblemRunes]) + "..."
	}

	if printerInfo == "" {
		return summary
	}
	return printerInfo + ": " + summary
}

// Create validates the form, resolves the customer and stores a new job
// created by the acting user. The customer is emailed after the job is saved.
func (s *JobService) Create(ctx context.Context, session Session, form forms.JobFormInput) (*models.Job, error) {
	actorID, err := requireActor(session)
	if err != nil {
		return nil, err
	}

	in, err := forms.ValidateJobForm(form, s.now())
	if err != nil {
		return nil, fromValidation(err)
	}

	customerID, err := s.customers.ResolveCustomer(ctx, in.Customer)
	if err != nil {
		return nil, err
	}

	job := models.Job{
		CustomerID:  customerID,
		CreatedByID: actorID,
	}
	applyJobInput(&job, in)
	if job.Title == "" {
		job.Title = DefaultJobTitle(in.PrinterBrand, in.PrinterModel, in.PrinterSerial, in.ProblemsReported)
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&job).Error; err != nil {
		s.logger.Error("failed to create job", zap.String("receipt_no", job.ReceiptNo), zap.Error(err))
		return nil, storeFailure("Failed to create job. Please try again.", err)
	}

	if err := s.db.WithContext(ctx).Preload("Customer").First(&job, job.ID).Error; err != nil {
		s.logger.Error("failed to reload job", zap.Uint("job_id", job.ID), zap.Error(err))
		return nil, storeFailure("Failed to create job. Please try again.", err)
	}

	metrics.JobsCreated.Inc()
	s.logger.Info("job created",
		zap.Uint("job_id", job.ID),
		zap.Uint("customer_id", job.CustomerID),
		zap.Uint("created_by_id", actorID))

	if s.notifier != nil {
		s.notifier.JobCreated(&job)
	}
	return &job, nil
}

// Update validates the form and writes every supplied field onto the job.
// Fields left out of the form keep their stored values.
func (s *JobService) Update(ctx context.Context, session Session, jobID uint, form forms.JobFormInput) (*models.Job, error) {
	if _, err := requireActor(session); err != nil {
		return nil, err
	}

	in, err := forms.ValidateJobForm(form, s.now())
	if err != nil {
		return nil, fromValidation(err)
	}

	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if s.enforceTransitions && !in.StatusDefaulted && !models.CanTransition(job.Status, in.Status) {
		verr := invalid("Invalid status change.")
		verr.Details = map[string][]string{
			"status": {"Cannot move a job from " + job.Status.Label() + " to " + in.Status.Label() + "."},
		}
		return nil, verr
	}

	customerID, err := s.customers.ResolveCustomer(ctx, in.Customer)
	if err != nil {
		return nil, err
	}

	previous := job.Status
	job.CustomerID = customerID
	applyJobInput(job, in)

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(job).Error; err != nil {
		s.logger.Error("failed to update job", zap.Uint("job_id", jobID), zap.Error(err))
		return nil, storeFailure("Failed to update job.", err)
	}

	if job.Status != previous {
		metrics.StatusWrites.WithLabelValues(string(job.Status)).Inc()
		s.logger.Info("job status changed",
			zap.Uint("job_id", jobID),
			zap.String("from", string(previous)),
			zap.String("to", string(job.Status)))
	}
	return s.Get(ctx, session, jobID)
}

// MarkAsPickedUp records that the customer collected the item. Calling it
// again keeps the status and moves the pickup date forward.
func (s *JobService) MarkAsPickedUp(ctx context.Context, session Session, jobID uint) (*models.Job, error) {
	actorID, err := requireActor(session)
	if err != nil {
		return nil, err
	}

	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job.Status = models.StatusPickedUp
	job.PickupDate = &now
	job.DeliveredByID = &actorID
	job.CustomerPickedUp = true

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(job).Error; err != nil {
		s.logger.Error("failed to mark job as picked up", zap.Uint("job_id", jobID), zap.Error(err))
		return nil, storeFailure("Failed to update job.", err)
	}

	metrics.StatusWrites.WithLabelValues(string(models.StatusPickedUp)).Inc()
	s.logger.Info("job picked up", zap.Uint("job_id", jobID), zap.Uint("delivered_by_id", actorID))
	return job, nil
}

// Delete removes the job permanently
func (s *JobService) Delete(ctx context.Context, session Session, jobID uint) error {
	if _, err := requireActor(session); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Delete(&models.Job{}, jobID)
	if result.Error != nil {
		s.logger.Error("failed to delete job", zap.Uint("job_id", jobID), zap.Error(result.Error))
		return storeFailure("Failed to delete job.", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("Job not found.")
	}

	s.logger.Info("job deleted", zap.Uint("job_id", jobID))
	return nil
}

// Get returns a job with its customer and every related user
func (s *JobService) Get(ctx context.Context, session Session, jobID uint) (*models.Job, error) {
	if _, err := requireActor(session); err != nil {
		return nil, err
	}

	var job models.Job
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("AssignedTo").
		Preload("DiagnosedBy").
		Preload("DeliveredBy").
		Preload("CreatedBy").
		First(&job, jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Job not found.")
	}
	if err != nil {
		s.logger.Error("failed to get job", zap.Uint("job_id", jobID), zap.Error(err))
		return nil, storeFailure("Failed to retrieve job.", err)
	}
	return &job, nil
}

// List returns the newest jobs first, optionally filtered by status
func (s *JobService) List(ctx context.Context, session Session, filter JobFilter) ([]models.Job, error) {
	if _, err := requireActor(session); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("AssignedTo").
		Order("created_at desc").
		Order("id desc").
		Limit(JobListLimit)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var jobs []models.Job
	if err := query.Find(&jobs).Error; err != nil {
		s.logger.Error("failed to list jobs", zap.Error(err))
		return nil, storeFailure("Failed to retrieve jobs.", err)
	}
	return jobs, nil
}

// AttachImage stores url in the first empty image slot of the job
func (s *JobService) AttachImage(ctx context.Context, session Session, jobID uint, url string) (*models.Job, error) {
	if _, err := requireActor(session); err != nil {
		return nil, err
	}

	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	column := ""
	for _, slot := range []struct {
		column string
		value  **string
	}{
		{"image_url1", &job.ImageURL1},
		{"image_url2", &job.ImageURL2},
		{"image_url3", &job.ImageURL3},
	} {
		if *slot.value == nil || **slot.value == "" {
			column = slot.column
			*slot.value = &url
			break
		}
	}
	if column == "" {
		verr := invalid("All image slots are already used.")
		verr.Details = map[string][]string{"image": {"A job can hold at most 3 images."}}
		return nil, verr
	}

	if err := s.db.WithContext(ctx).Model(job).Update(column, url).Error; err != nil {
		s.logger.Error("failed to attach image", zap.Uint("job_id", jobID), zap.Error(err))
		return nil, storeFailure("Failed to update job.", err)
	}
	return job, nil
}

// load fetches the bare job row
func (s *JobService) load(ctx context.Context, jobID uint) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).First(&job, jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Job not found.")
	}
	if err != nil {
		s.logger.Error("failed to load job", zap.Uint("job_id", jobID), zap.Error(err))
		return nil, storeFailure("Failed to retrieve job.", err)
	}
	return &job, nil
}

// applyJobInput copies the validated input onto job. Nil optional fields are
// skipped, as are a blank title and values that were only defaulted on an
// existing job.
func applyJobInput(job *models.Job, in *forms.JobInput) {
	existing := job.ID != 0

	job.ReceiptNo = in.ReceiptNo
	job.ProblemsReported = in.ProblemsReported
	if in.Title != "" {
		job.Title = in.Title
	}
	if !existing || !in.StatusDefaulted {
		job.Status = in.Status
	}
	if !existing || !in.CheckInDateDefaulted {
		job.CheckInDate = in.CheckInDate
	}

	setIfPresent(&job.AssignedToID, in.AssignedToID)
	setIfPresent(&job.DiagnosedByID, in.DiagnosedByID)
	setIfPresent(&job.PrinterBrand, in.PrinterBrand)
	setIfPresent(&job.PrinterModel, in.PrinterModel)
	setIfPresent(&job.PrinterSerial, in.PrinterSerial)
	setIfPresent(&job.AccessoriesReceived, in.AccessoriesReceived)
	setIfPresent(&job.ImageURL1, in.ImageURL1)
	setIfPresent(&job.ImageURL2, in.ImageURL2)
	setIfPresent(&job.ImageURL3, in.ImageURL3)
	setIfPresent(&job.InitialObservations, in.InitialObservations)
	setIfPresent(&job.Notes, in.Notes)
	setIfPresent(&job.PaymentStatus, in.PaymentStatus)
	setIfPresent(&job.PaymentMethod, in.PaymentMethod)
	setIfPresent(&job.CustomerNotifiedDate, in.CustomerNotifiedDate)
	if in.CustomerPickedUp != nil {
		job.CustomerPickedUp = *in.CustomerPickedUp
	}

	if in.HasCosts() {
		setIfPresent(&job.PartsCost, in.PartsCost)
		setIfPresent(&job.LaborCost, in.LaborCost)
		setIfPresent(&job.OtherCharges, in.OtherCharges)
		total := job.ChargeTotal()
		job.TotalCharge = &total
	}
}

func setIfPresent[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}
