// Package handler содержит HTTP-обработчики API благотворительной платформы.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/charityfund-system/internal/middleware"
	"github.com/mmeshcher/charityfund-system/internal/model"
	"github.com/mmeshcher/charityfund-system/internal/repository"
	"github.com/mmeshcher/charityfund-system/internal/service"
	"github.com/mmeshcher/charityfund-system/internal/validation"
)

const maxImageSize = 10 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, in service.RegisterInput) (int64, error)
	AuthenticateUser(ctx context.Context, username, password string) (int64, error)
	ListProjects(ctx context.Context, search, ordering string) ([]model.CharityProject, error)
	CreateProject(ctx context.Context, ownerID int64, in service.ProjectInput) (*model.CharityProject, error)
	GetProject(ctx context.Context, id int64) (*model.CharityProject, error)
	UpdateProject(ctx context.Context, callerID, projectID int64, patch service.ProjectPatch) (*model.CharityProject, error)
	DeleteProject(ctx context.Context, callerID, projectID int64) error
	AttachProjectImage(ctx context.Context, callerID, projectID int64, filename string, data []byte) (*model.CharityProject, error)
	GetProjectsByOwner(ctx context.Context, ownerID int64) ([]model.CharityProject, error)
	RecordDonation(ctx context.Context, userID, projectID int64, amount string) (*model.Donation, *model.CharityProject, error)
	GetDonationsByUser(ctx context.Context, userID int64) ([]repository.DonationRecord, error)
}

// Handler реализует HTTP-обработчики API благотворительной платформы.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: h.authMiddleware.IssueToken(userID)})
}

// Login выполняет аутентификацию пользователя и выдачу bearer-токена.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: h.authMiddleware.IssueToken(userID)})
}

type projectRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	GoalAmount  string   `json:"goal_amount"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Location    string   `json:"location"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

type projectPatchRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	GoalAmount  *string  `json:"goal_amount"`
	StartDate   *string  `json:"start_date"`
	EndDate     *string  `json:"end_date"`
	Location    *string  `json:"location"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

type projectResponse struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	GoalAmount   string   `json:"goal_amount"`
	AmountRaised string   `json:"amount_raised"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Location     string   `json:"location,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
	CreatedBy    int64    `json:"created_by"`
}

func toProjectResponse(p *model.CharityProject) projectResponse {
	resp := projectResponse{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		GoalAmount:   validation.FormatAmount(p.GoalAmount),
		AmountRaised: validation.FormatAmount(p.AmountRaised),
		StartDate:    p.StartDate.Format("2006-01-02"),
		EndDate:      p.EndDate.Format("2006-01-02"),
		Location:     p.Location,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.Format(time.RFC3339),
		CreatedBy:    p.OwnerID,
	}
	if p.ImagePath != "" {
		resp.ImageURL = "/media/" + p.ImagePath
	}
	return resp
}

// ListProjects возвращает список проектов. Доступно без аутентификации.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	ordering := r.URL.Query().Get("ordering")

	projects, err := h.service.ListProjects(r.Context(), search, ordering)
	if err != nil {
		h.logger.Error("list projects error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]projectResponse, 0, len(projects))
	for i := range projects {
		resp = append(resp, toProjectResponse(&projects[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateProject создаёт новый проект от имени текущего пользователя.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.CreateProject(r.Context(), userID, service.ProjectInput{
		Title:       req.Title,
		Description: req.Description,
		GoalAmount:  req.GoalAmount,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		h.writeProjectError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

// GetProject возвращает проект по идентификатору. Доступно без аутентификации.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	p, err := h.service.GetProject(r.Context(), id)
	if err != nil {
		h.writeProjectError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// UpdateProject применяет частичное обновление проекта от имени владельца.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	var req projectPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.UpdateProject(r.Context(), userID, id, service.ProjectPatch{
		Title:       req.Title,
		Description: req.Description,
		GoalAmount:  req.GoalAmount,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		h.writeProjectError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// DeleteProject удаляет проект от имени владельца.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	if err := h.service.DeleteProject(r.Context(), userID, id); err != nil {
		h.writeProjectError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadProjectImage сохраняет изображение проекта из multipart-формы.
func (h *Handler) UploadProjectImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.AttachProjectImage(r.Context(), userID, id, header.Filename, data)
	if err != nil {
		h.writeProjectError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// GetUserProjects возвращает проекты пользователя. Запрашивать можно только свой список.
func (h *Handler) GetUserProjects(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	requestedID, err := parseIDParam(r, "userID")
	if err != nil || requestedID != callerID {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	projects, err := h.service.GetProjectsByOwner(r.Context(), callerID)
	if err != nil {
		h.logger.Error("get user projects error", zap.Error(err), zap.Int64("userID", callerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(projects) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]projectResponse, 0, len(projects))
	for i := range projects {
		resp = append(resp, toProjectResponse(&projects[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

type donateRequest struct {
	Project int64  `json:"project"`
	Amount  string `json:"amount"`
}

type projectSummary struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	GoalAmount   string `json:"goal_amount"`
	AmountRaised string `json:"amount_raised"`
}

type donationResponse struct {
	ID            int64          `json:"id"`
	Amount        string         `json:"amount"`
	Date          string         `json:"date"`
	TransactionID string         `json:"transaction_id"`
	Project       projectSummary `json:"project"`
}

// Donate записывает пожертвование текущего пользователя в пользу проекта.
func (h *Handler) Donate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req donateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	d, p, err := h.service.RecordDonation(r.Context(), userID, req.Project, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProjectNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, validation.ErrInvalidAmount):
			http.Error(w, "amount must be a positive decimal", http.StatusBadRequest)
		default:
			// Прочие сбои транзакции отдаются клиенту с текстом причины.
			h.logger.Error("record donation error", zap.Error(err), zap.Int64("userID", userID), zap.Int64("projectID", req.Project))
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	writeJSON(w, http.StatusCreated, donationResponse{
		ID:            d.ID,
		Amount:        validation.FormatAmount(d.Amount),
		Date:          d.CreatedAt.Format(time.RFC3339),
		TransactionID: d.TransactionID,
		Project: projectSummary{
			ID:           p.ID,
			Title:        p.Title,
			GoalAmount:   validation.FormatAmount(p.GoalAmount),
			AmountRaised: validation.FormatAmount(p.AmountRaised),
		},
	})
}

// GetUserDonations возвращает пожертвования пользователя. Запрашивать можно только свой список.
func (h *Handler) GetUserDonations(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	requestedID, err := parseIDParam(r, "userID")
	if err != nil || requestedID != callerID {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	donations, err := h.service.GetDonationsByUser(r.Context(), callerID)
	if err != nil {
		h.logger.Error("get user donations error", zap.Error(err), zap.Int64("userID", callerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(donations) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]donationResponse, 0, len(donations))
	for _, rec := range donations {
		resp = append(resp, donationResponse{
			ID:            rec.ID,
			Amount:        validation.FormatAmount(rec.Amount),
			Date:          rec.CreatedAt.Format(time.RFC3339),
			TransactionID: rec.TransactionID,
			Project: projectSummary{
				ID:           rec.ProjectID,
				Title:        rec.ProjectTitle,
				GoalAmount:   validation.FormatAmount(rec.ProjectGoalAmount),
				AmountRaised: validation.FormatAmount(rec.ProjectAmountRaised),
			},
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeProjectError отображает ошибки операций над проектами в HTTP-статусы.
func (h *Handler) writeProjectError(w http.ResponseWriter, err error) {
	var validationErr *validation.ValidationError

	switch {
	case errors.Is(err, repository.ErrProjectNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("project operation error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
