package services

import (
	"context"
	"errors"
	"sort"

	"github.com/kendall-kelly/servicepro-api/forms"
	"github.com/kendall-kelly/servicepro-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CustomerService finds, creates and lists customers
type CustomerService struct {
	db     *gorm.DB
	locker Locker
	logger *zap.Logger
}

// NewCustomerService creates a customer service. A nil locker falls back to
// an in-process one.
func NewCustomerService(db *gorm.DB, locker Locker, logger *zap.Logger) *CustomerService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &CustomerService{db: db, locker: locker, logger: logger}
}

// ResolveCustomer returns the id of the customer a job should belong to.
// An explicit id is trusted as-is. Otherwise a customer with the same phone
// (or email, when given) is reused, or a new one is created.
func (s *CustomerService) ResolveCustomer(ctx context.Context, ref forms.CustomerRef) (uint, error) {
	if ref.CustomerID != nil {
		return *ref.CustomerID, nil
	}
	if ref.Name == "" || ref.Phone == "" {
		return 0, invalid("Customer information is missing.")
	}

	unlock, err := s.lockIdentity(ctx, ref)
	if err != nil {
		s.logger.Error("failed to lock customer lookup", zap.String("phone", ref.Phone), zap.Error(err))
		return 0, storeFailure("Failed to resolve customer.", err)
	}
	defer unlock()

	var existing models.Customer
	query := s.db.WithContext(ctx).Where("phone = ?", ref.Phone)
	if ref.Email != "" {
		query = query.Or("email = ?", ref.Email)
	}
	err = query.Order("id asc").First(&existing).Error
	switch {
	case err == nil:
		return existing.ID, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Error("failed to look up customer", zap.Error(err))
		return 0, storeFailure("Failed to resolve customer.", err)
	}

	customer := models.Customer{
		Name:    ref.Name,
		Phone:   &ref.Phone,
		Email:   optional(ref.Email),
		Address: optional(ref.Address),
	}
	if err := s.db.WithContext(ctx).Create(&customer).Error; err != nil {
		s.logger.Error("failed to create customer", zap.Error(err))
		return 0, storeFailure("Failed to create customer.", err)
	}

	s.logger.Info("customer created", zap.Uint("customer_id", customer.ID))
	return customer.ID, nil
}

// identityLockKeys returns the lock keys for every field a customer can be
// matched on, sorted so concurrent callers acquire them in the same order.
func identityLockKeys(ref forms.CustomerRef) []string {
	keys := []string{"customer:phone:" + ref.Phone}
	if ref.Email != "" {
		keys = append(keys, "customer:email:"+ref.Email)
	}
	sort.Strings(keys)
	return keys
}

// lockIdentity takes every identity lock for ref. The returned func releases
// them in reverse order.
func (s *CustomerService) lockIdentity(ctx context.Context, ref forms.CustomerRef) (func(), error) {
	keys := identityLockKeys(ref)
	held := make([]func(), 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, key := range keys {
		unlock, err := s.locker.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, unlock)
	}
	return release, nil
}

// AddCustomer creates a customer directly from the customer form
func (s *CustomerService) AddCustomer(ctx context.Context, session Session, in forms.CustomerInput) (*models.Customer, error) {
	if _, err := requireActor(session); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}

	customer := models.Customer{
		Name:    in.Name,
		Email:   optional(in.Email),
		Phone:   optional(in.Phone),
		Address: optional(in.Address),
	}
	if err := s.db.WithContext(ctx).Create(&customer).Error; err != nil {
		s.logger.Error("failed to create customer", zap.Error(err))
		return nil, storeFailure("Failed to create customer.", err)
	}
	return &customer, nil
}

// ListCustomers returns all customers ordered by name
func (s *CustomerService) ListCustomers(ctx context.Context, session Session) ([]models.Customer, error) {
	if _, err := requireActor(session); err != nil {
		return nil, err
	}

	var customers []models.Customer
	if err := s.db.WithContext(ctx).Order("name asc").Find(&customers).Error; err != nil {
		s.logger.Error("failed to list customers", zap.Error(err))
		return nil, storeFailure("Failed to retrieve customers.", err)
	}
	return customers, nil
}

// GetCustomer returns a customer with their jobs, newest first
func (s *CustomerService) GetCustomer(ctx context.Context, session Session, id uint) (*models.Customer, error) {
	if _, err := requireActor(session); err != nil {
		return nil, err
	}

	var customer models.Customer
	err := s.db.WithContext(ctx).
		Preload("Jobs", func(db *gorm.DB) *gorm.DB { return db.Order("created_at desc") }).
		First(&customer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Customer not found.")
	}
	if err != nil {
		s.logger.Error("failed to get customer", zap.Uint("customer_id", id), zap.Error(err))
		return nil, storeFailure("Failed to retrieve customer.", err)
	}
	return &customer, nil
}

// optional maps "" to nil for nullable text columns
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
