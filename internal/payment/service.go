package payment

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/charityfund-system/internal/validation"
)

// Минимальная принимаемая сумма платежа в центах.
const minAmount = 100

const (
	// MethodCreditCard обозначает оплату банковской картой.
	MethodCreditCard = "credit_card"
	// MethodPayPal обозначает оплату через PayPal.
	MethodPayPal = "paypal"

	statusSucceeded = "succeeded"
)

// Processor описывает контракт внешнего платёжного процессора.
type Processor interface {
	Charge(ctx context.Context, amount int64, method, email string) (*ChargeResult, error)
}

// Mailer описывает контракт отправки квитанций о платеже.
type Mailer interface {
	SendPaymentReceipt(ctx context.Context, email, name string, amount int64, method string) error
}

// Storage описывает контракт доступа к журналу платежей.
type Storage interface {
	Close() error
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	MarkCompleted(ctx context.Context, providerPaymentID string) (*Payment, error)
	MarkReceiptSent(ctx context.Context, id int64) error
}

// Service содержит бизнес-логику платёжного сервиса.
type Service struct {
	store     Storage
	processor Processor
	mailer    Mailer
	logger    *zap.Logger
}

// NewService создаёт платёжный сервис.
func NewService(store Storage, processor Processor, mailer Mailer, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		processor: processor,
		mailer:    mailer,
		logger:    logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// DonationForm содержит данные формы пожертвования.
type DonationForm struct {
	Amount     string
	Method     string
	Email      string
	NameOnCard string
	CardNumber string
}

// ProcessDonation проверяет форму пожертвования, выполняет списание и сохраняет платёж.
// Квитанция отправляется после сохранения и не влияет на результат.
func (s *Service) ProcessDonation(ctx context.Context, form DonationForm) (*Payment, error) {
	amount, err := validation.ParseAmount(form.Amount)
	if err != nil {
		return nil, err
	}
	if amount < minAmount {
		return nil, &validation.ValidationError{Field: "amount", Message: "must be at least 1.00"}
	}
	if form.Email == "" {
		return nil, &validation.ValidationError{Field: "email", Message: "must not be blank"}
	}

	p := &Payment{
		Amount: amount,
		Method: form.Method,
		Email:  form.Email,
	}

	switch form.Method {
	case MethodCreditCard:
		if form.NameOnCard == "" {
			return nil, &validation.ValidationError{Field: "name_on_card", Message: "must not be blank"}
		}
		if !validation.IsValidCardNumber(form.CardNumber) {
			return nil, &validation.ValidationError{Field: "card_number", Message: "invalid card number"}
		}

		res, err := s.processor.Charge(ctx, amount, form.Method, form.Email)
		if err != nil {
			return nil, err
		}

		p.Name = form.NameOnCard
		p.CardLast4 = form.CardNumber[len(form.CardNumber)-4:]
		p.ProviderPaymentID = res.ID
		p.Completed = res.Status == statusSucceeded
	case MethodPayPal:
		// Перенаправление на сторону PayPal завершается немедленно,
		// подтверждение приходит без участия процессора.
		p.Completed = true
	default:
		return nil, &validation.ValidationError{Field: "payment_method", Message: "unsupported payment method"}
	}

	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	s.sendReceipt(ctx, p)

	return p, nil
}

// HandleCompletedPayment обрабатывает подтверждение платежа от процессора:
// отмечает платёж завершённым и досылает квитанцию, если она ещё не отправлена.
func (s *Service) HandleCompletedPayment(ctx context.Context, providerPaymentID string) (*Payment, error) {
	p, err := s.store.MarkCompleted(ctx, providerPaymentID)
	if err != nil {
		return nil, err
	}

	if !p.ReceiptSent {
		s.sendReceipt(ctx, p)
	}

	return p, nil
}

// GetPayment возвращает платёж по идентификатору.
func (s *Service) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	return s.store.GetPayment(ctx, id)
}

// sendReceipt отправляет квитанцию о платеже. Ошибка отправки только логируется.
func (s *Service) sendReceipt(ctx context.Context, p *Payment) {
	if s.mailer == nil {
		return
	}

	if err := s.mailer.SendPaymentReceipt(ctx, p.Email, p.Name, p.Amount, p.Method); err != nil {
		s.logger.Warn("send payment receipt", zap.Error(err), zap.Int64("paymentID", p.ID))
		return
	}

	if err := s.store.MarkReceiptSent(ctx, p.ID); err != nil {
		s.logger.Warn("mark receipt sent", zap.Error(err), zap.Int64("paymentID", p.ID))
		return
	}

	p.ReceiptSent = true
}
