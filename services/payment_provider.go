package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// PaymentIntentRequest describes an amount to collect in the smallest
// currency unit (cents)
type PaymentIntentRequest struct {
	Amount   int64
	Currency string
	Metadata map[string]string
}

// PaymentProvider creates payment intents with an external processor
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (clientSecret string, err error)
}

// StripeProvider creates payment intents through the Stripe API
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider creates a provider using the given secret key
func NewStripeProvider(secretKey string) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeProvider{api: sc}
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe payment intent: %w", err)
	}
	return intent.ClientSecret, nil
}

// MockPaymentProvider records requests and returns a fixed client secret
type MockPaymentProvider struct {
	mu       sync.Mutex
	requests []PaymentIntentRequest
	Secret   string
	Err      error
}

// NewMockPaymentProvider creates a provider that succeeds with a test secret
func NewMockPaymentProvider() *MockPaymentProvider {
	return &MockPaymentProvider{Secret: "pi_test_secret_123"}
}

func (m *MockPaymentProvider) CreatePaymentIntent(_ context.Context, req PaymentIntentRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Secret, nil
}

// Requests returns the requests seen so far
func (m *MockPaymentProvider) Requests() []PaymentIntentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PaymentIntentRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
