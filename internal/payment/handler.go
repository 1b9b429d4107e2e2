package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	custommiddleware "github.com/mmeshcher/charityfund-system/internal/middleware"
	"github.com/mmeshcher/charityfund-system/internal/validation"
)

// DonationService определяет контракт бизнес-логики, используемой HTTP-обработчиками
// платёжного сервиса.
type DonationService interface {
	ProcessDonation(ctx context.Context, form DonationForm) (*Payment, error)
	HandleCompletedPayment(ctx context.Context, providerPaymentID string) (*Payment, error)
	GetPayment(ctx context.Context, id int64) (*Payment, error)
}

// Handler реализует HTTP-обработчики платёжного сервиса.
type Handler struct {
	service DonationService
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика платёжного сервиса.
func NewHandler(s DonationService, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

// SetupRouter настраивает HTTP-маршруты платёжного сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/payments", h.ProcessDonation)
		r.Get("/payments/{id}", h.GetPayment)
		r.Post("/payments/validate-card", h.ValidateCard)
		r.Post("/webhooks/payment", h.PaymentWebhook)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	return r
}

type donationFormRequest struct {
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Email         string `json:"email"`
	NameOnCard    string `json:"name_on_card"`
	CardNumber    string `json:"card_number"`
}

type paymentResponse struct {
	ID          int64  `json:"id"`
	Amount      string `json:"amount"`
	Method      string `json:"payment_method"`
	Completed   bool   `json:"completed"`
	ReceiptSent bool   `json:"receipt_sent"`
	CreatedAt   string `json:"created_at"`
}

func toPaymentResponse(p *Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		Amount:      validation.FormatAmount(p.Amount),
		Method:      p.Method,
		Completed:   p.Completed,
		ReceiptSent: p.ReceiptSent,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// ProcessDonation принимает форму пожертвования и выполняет платёж.
func (h *Handler) ProcessDonation(w http.ResponseWriter, r *http.Request) {
	var req donationFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.ProcessDonation(r.Context(), DonationForm{
		Amount:     req.Amount,
		Method:     req.PaymentMethod,
		Email:      req.Email,
		NameOnCard: req.NameOnCard,
		CardNumber: req.CardNumber,
	})
	if err != nil {
		var validationErr *validation.ValidationError
		switch {
		case errors.Is(err, validation.ErrInvalidAmount):
			http.Error(w, "amount must be a positive decimal", http.StatusBadRequest)
		case errors.As(err, &validationErr):
			http.Error(w, validationErr.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("process donation error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}

// GetPayment возвращает платёж по идентификатору.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	p, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get payment error", zap.Error(err), zap.Int64("paymentID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

type validateCardRequest struct {
	CardNumber string `json:"card_number"`
}

type validateCardResponse struct {
	Valid bool `json:"valid"`
}

// ValidateCard проверяет корректность номера карты.
func (h *Handler) ValidateCard(w http.ResponseWriter, r *http.Request) {
	var req validateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, validateCardResponse{
		Valid: validation.IsValidCardNumber(req.CardNumber),
	})
}

type webhookRequest struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// PaymentWebhook обрабатывает подтверждение платежа от внешнего процессора.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Status != statusSucceeded {
		// Прочие события процессора не обрабатываются.
		w.WriteHeader(http.StatusOK)
		return
	}

	// Пустой идентификатор совпал бы со значением колонки по умолчанию.
	if req.PaymentID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if _, err := h.service.HandleCompletedPayment(r.Context(), req.PaymentID); err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			h.logger.Warn("payment confirmation without matching payment", zap.String("paymentID", req.PaymentID))
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("payment webhook error", zap.Error(err), zap.String("paymentID", req.PaymentID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
