package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/kendall-kelly/servicepro-api/forms"
	"github.com/kendall-kelly/servicepro-api/metrics"
	"github.com/kendall-kelly/servicepro-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentStatusPaid is written by RecordPayment
const PaymentStatusPaid = "PAID"

// invoiceTerm is the time between issue and due date
const invoiceTerm = 30 * 24 * time.Hour

// InvoiceLine is one billable amount on an invoice
type InvoiceLine struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Invoice is the billing view of a job
type Invoice struct {
	JobID     uint             `json:"job_id"`
	ReceiptNo string           `json:"receipt_no"`
	Customer  *models.Customer `json:"customer"`
	Lines     []InvoiceLine    `json:"lines"`
	Total     float64          `json:"total"`
	Currency  string           `json:"currency"`
	IssuedAt  time.Time        `json:"issued_at"`
	DueAt     time.Time        `json:"due_at"`
	Paid      bool             `json:"paid"`
}

// BillingService computes charges and talks to the payment processor
type BillingService struct {
	db       *gorm.DB
	provider PaymentProvider
	currency string
	logger   *zap.Logger
	now      func() time.Time
}

// NewBillingService creates a billing service charging in currency (e.g. "usd")
func NewBillingService(db *gorm.DB, provider PaymentProvider, currency string, logger *zap.Logger) *BillingService {
	return &BillingService{
		db:       db,
		provider: provider,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

// TotalCharge sums parts, labor and other charges; unset amounts count as zero
func TotalCharge(job *models.Job) float64 {
	return job.ChargeTotal()
}

// toMinorUnits converts an amount to cents, rounding half away from zero
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreatePaymentIntent asks the processor for a payment intent covering the
// job's total and returns its client secret. The stored total is not changed.
func (s *BillingService) CreatePaymentIntent(ctx context.Context, session Session, jobID uint) (string, error) {
	if _, err := requireActor(session); err != nil {
		return "", err
	}

	job, err := s.loadJob(ctx, jobID, false)
	if err != nil {
		return "", err
	}

	total := TotalCharge(job)
	if total <= 0 {
		metrics.PaymentIntents.WithLabelValues("invalid_amount").Inc()
		return "", invalid("Invalid amount")
	}

	secret, err := s.provider.CreatePaymentIntent(ctx, PaymentIntentRequest{
		Amount:   toMinorUnits(total),
		Currency: s.currency,
		Metadata: map[string]string{"jobId": strconv.FormatUint(uint64(job.ID), 10)},
	})
	if err != nil {
		metrics.PaymentIntents.WithLabelValues("failed").Inc()
		s.logger.Error("failed to create payment intent", zap.Uint("job_id", jobID), zap.Error(err))
		return "", upstreamFailure("Failed to create payment intent.", err)
	}

	metrics.PaymentIntents.WithLabelValues("created").Inc()
	s.logger.Info("payment intent created", zap.Uint("job_id", jobID), zap.Int64("amount", toMinorUnits(total)))
	return secret, nil
}

// Invoice builds the invoice for a job, issued now and due in 30 days
func (s *BillingService) Invoice(ctx context.Context, session Session, jobID uint) (*Invoice, error) {
	if _, err := requireActor(session); err != nil {
		return nil, err
	}

	job, err := s.loadJob(ctx, jobID, true)
	if err != nil {
		return nil, err
	}

	issued := s.now()
	return &Invoice{
		JobID:     job.ID,
		ReceiptNo: job.ReceiptNo,
		Customer:  job.Customer,
		Lines: []InvoiceLine{
			{Description: "Parts Cost", Amount: amountOf(job.PartsCost)},
			{Description: "Labor Cost", Amount: amountOf(job.LaborCost)},
			{Description: "Other Charges", Amount: amountOf(job.OtherCharges)},
		},
		Total:    TotalCharge(job),
		Currency: s.currency,
		IssuedAt: issued,
		DueAt:    issued.Add(invoiceTerm),
		Paid:     job.PaymentStatus != nil && *job.PaymentStatus == PaymentStatusPaid,
	}, nil
}

// RecordPayment marks the job as paid with the given method and stores the
// current total
func (s *BillingService) RecordPayment(ctx context.Context, session Session, jobID uint, in forms.PaymentInput) (*models.Job, error) {
	if _, err := requireActor(session); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}

	job, err := s.loadJob(ctx, jobID, false)
	if err != nil {
		return nil, err
	}

	status := PaymentStatusPaid
	total := TotalCharge(job)
	job.PaymentStatus = &status
	job.PaymentMethod = &in.Method
	job.TotalCharge = &total

	err = s.db.WithContext(ctx).Model(job).Updates(map[string]interface{}{
		"payment_status": status,
		"payment_method": in.Method,
		"total_charge":   total,
	}).Error
	if err != nil {
		s.logger.Error("failed to record payment", zap.Uint("job_id", jobID), zap.Error(err))
		return nil, storeFailure("Failed to record payment.", err)
	}

	s.logger.Info("payment recorded", zap.Uint("job_id", jobID), zap.String("method", in.Method))
	return job, nil
}

func (s *BillingService) loadJob(ctx context.Context, jobID uint, withCustomer bool) (*models.Job, error) {
	query := s.db.WithContext(ctx)
	if withCustomer {
		query = query.Preload("Customer")
	}

	var job models.Job
	err := query.First(&job, jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Job not found.")
	}
	if err != nil {
		s.logger.Error("failed to load job", zap.Uint("job_id", jobID), zap.Error(err))
		return nil, storeFailure("Failed to retrieve job.", err)
	}
	return &job, nil
}

func amountOf(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
