package payment

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/charityfund-system/internal/validation"
)

type stubStorage struct {
	createErr    error
	createCalled bool

	payment    *Payment
	paymentErr error

	completed    *Payment
	completedErr error

	receiptSentID  int64
	receiptSentErr error
}

func (s *stubStorage) Close() error { return nil }

func (s *stubStorage) CreatePayment(ctx context.Context, p *Payment) error {
	s.createCalled = true
	if s.createErr != nil {
		return s.createErr
	}
	p.ID = 1
	return nil
}

func (s *stubStorage) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	return s.payment, s.paymentErr
}

func (s *stubStorage) MarkCompleted(ctx context.Context, providerPaymentID string) (*Payment, error) {
	return s.completed, s.completedErr
}

func (s *stubStorage) MarkReceiptSent(ctx context.Context, id int64) error {
	s.receiptSentID = id
	return s.receiptSentErr
}

type stubProcessor struct {
	result *ChargeResult
	err    error
	called bool
	amount int64
}

func (p *stubProcessor) Charge(ctx context.Context, amount int64, method, email string) (*ChargeResult, error) {
	p.called = true
	p.amount = amount
	return p.result, p.err
}

type stubPaymentMailer struct {
	count int
	email string
	err   error
}

func (m *stubPaymentMailer) SendPaymentReceipt(ctx context.Context, email, name string, amount int64, method string) error {
	m.count++
	m.email = email
	return m.err
}

func validCardForm() DonationForm {
	return DonationForm{
		Amount:     "150.00",
		Method:     MethodCreditCard,
		Email:      "donor@example.com",
		NameOnCard: "ANNA PETROVA",
		CardNumber: "4539578763621486",
	}
}

func TestProcessDonation_CreditCard(t *testing.T) {
	store := &stubStorage{}
	processor := &stubProcessor{result: &ChargeResult{ID: "ch_123", Status: "succeeded"}}
	mailer := &stubPaymentMailer{}
	svc := NewService(store, processor, mailer, zap.NewNop())

	p, err := svc.ProcessDonation(context.Background(), validCardForm())
	if err != nil {
		t.Fatalf("ProcessDonation error: %v", err)
	}
	if !processor.called {
		t.Fatalf("processor was not called")
	}
	if processor.amount != 15000 {
		t.Fatalf("charged amount = %d, want 15000", processor.amount)
	}
	if !p.Completed {
		t.Fatalf("payment must be completed for succeeded charge")
	}
	if p.CardLast4 != "1486" {
		t.Fatalf("card last4 = %q, want 1486", p.CardLast4)
	}
	if p.ProviderPaymentID != "ch_123" {
		t.Fatalf("provider payment id = %q, want ch_123", p.ProviderPaymentID)
	}
	if mailer.count != 1 || mailer.email != "donor@example.com" {
		t.Fatalf("receipt not sent to donor: count=%d email=%q", mailer.count, mailer.email)
	}
	if !p.ReceiptSent {
		t.Fatalf("payment must be marked with receipt sent")
	}
}

func TestProcessDonation_PayPalCompletesImmediately(t *testing.T) {
	store := &stubStorage{}
	mailer := &stubPaymentMailer{}
	svc := NewService(store, &stubProcessor{}, mailer, zap.NewNop())

	form := DonationForm{
		Amount: "25.00",
		Method: MethodPayPal,
		Email:  "donor@example.com",
	}

	p, err := svc.ProcessDonation(context.Background(), form)
	if err != nil {
		t.Fatalf("ProcessDonation error: %v", err)
	}
	if !p.Completed {
		t.Fatalf("paypal payment must complete immediately")
	}
	if mailer.count != 1 {
		t.Fatalf("receipt sent %d times, want 1", mailer.count)
	}
}

func TestProcessDonation_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *DonationForm)
	}{
		{
			name:   "below minimum",
			mutate: func(f *DonationForm) { f.Amount = "0.50" },
		},
		{
			name:   "blank email",
			mutate: func(f *DonationForm) { f.Email = "" },
		},
		{
			name:   "blank name on card",
			mutate: func(f *DonationForm) { f.NameOnCard = "" },
		},
		{
			name:   "invalid card number",
			mutate: func(f *DonationForm) { f.CardNumber = "4539578763621487" },
		},
		{
			name:   "unsupported method",
			mutate: func(f *DonationForm) { f.Method = "cash" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStorage{}
			svc := NewService(store, &stubProcessor{}, nil, zap.NewNop())

			form := validCardForm()
			tt.mutate(&form)

			_, err := svc.ProcessDonation(context.Background(), form)
			var validationErr *validation.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if store.createCalled {
				t.Fatalf("payment must not be stored for invalid form")
			}
		})
	}
}

func TestProcessDonation_InvalidAmount(t *testing.T) {
	svc := NewService(&stubStorage{}, &stubProcessor{}, nil, zap.NewNop())

	form := validCardForm()
	form.Amount = "abc"

	_, err := svc.ProcessDonation(context.Background(), form)
	if !errors.Is(err, validation.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestProcessDonation_ProcessorFailure(t *testing.T) {
	store := &stubStorage{}
	processor := &stubProcessor{err: errors.New("processor unavailable")}
	svc := NewService(store, processor, nil, zap.NewNop())

	_, err := svc.ProcessDonation(context.Background(), validCardForm())
	if err == nil {
		t.Fatalf("expected error when processor fails")
	}
	if store.createCalled {
		t.Fatalf("payment must not be stored when charge fails")
	}
}

func TestProcessDonation_ReceiptFailureDoesNotFail(t *testing.T) {
	store := &stubStorage{}
	mailer := &stubPaymentMailer{err: errors.New("smtp down")}
	svc := NewService(store, &stubProcessor{result: &ChargeResult{ID: "ch_1", Status: "succeeded"}}, mailer, zap.NewNop())

	p, err := svc.ProcessDonation(context.Background(), validCardForm())
	if err != nil {
		t.Fatalf("ProcessDonation must not fail on receipt error, got %v", err)
	}
	if p.ReceiptSent {
		t.Fatalf("receipt must not be marked sent after transport failure")
	}
}

func TestHandleCompletedPayment_SendsPendingReceipt(t *testing.T) {
	store := &stubStorage{
		completed: &Payment{
			ID:                3,
			Amount:            15000,
			Method:            MethodCreditCard,
			Email:             "donor@example.com",
			ProviderPaymentID: "ch_123",
			Completed:         true,
		},
	}
	mailer := &stubPaymentMailer{}
	svc := NewService(store, &stubProcessor{}, mailer, zap.NewNop())

	p, err := svc.HandleCompletedPayment(context.Background(), "ch_123")
	if err != nil {
		t.Fatalf("HandleCompletedPayment error: %v", err)
	}
	if mailer.count != 1 {
		t.Fatalf("receipt sent %d times, want 1", mailer.count)
	}
	if store.receiptSentID != 3 {
		t.Fatalf("receipt marked for payment %d, want 3", store.receiptSentID)
	}
	if !p.ReceiptSent {
		t.Fatalf("payment must be marked with receipt sent")
	}
}

func TestHandleCompletedPayment_SkipsSentReceipt(t *testing.T) {
	store := &stubStorage{
		completed: &Payment{
			ID:          3,
			Completed:   true,
			ReceiptSent: true,
		},
	}
	mailer := &stubPaymentMailer{}
	svc := NewService(store, &stubProcessor{}, mailer, zap.NewNop())

	if _, err := svc.HandleCompletedPayment(context.Background(), "ch_123"); err != nil {
		t.Fatalf("HandleCompletedPayment error: %v", err)
	}
	if mailer.count != 0 {
		t.Fatalf("receipt must not be resent, sent %d times", mailer.count)
	}
}

func TestHandleCompletedPayment_UnknownPayment(t *testing.T) {
	store := &stubStorage{completedErr: ErrPaymentNotFound}
	svc := NewService(store, &stubProcessor{}, nil, zap.NewNop())

	_, err := svc.HandleCompletedPayment(context.Background(), "ch_missing")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
