// Package service реализует бизнес-логику благотворительной платформы.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/charityfund-system/internal/model"
	"github.com/mmeshcher/charityfund-system/internal/repository"
	"github.com/mmeshcher/charityfund-system/internal/validation"
)

// ErrForbidden возвращается, когда аутентифицированный пользователь не владеет ресурсом.
var (
	ErrForbidden = errors.New("operation forbidden")
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const dateLayout = "2006-01-02"

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	CreateProject(ctx context.Context, p *model.CharityProject) error
	GetProjectByID(ctx context.Context, id int64) (*model.CharityProject, error)
	ListProjects(ctx context.Context, search, ordering string) ([]model.CharityProject, error)
	GetProjectsByOwner(ctx context.Context, ownerID int64) ([]model.CharityProject, error)
	UpdateProject(ctx context.Context, p *model.CharityProject) error
	UpdateProjectImage(ctx context.Context, id int64, imagePath string) error
	DeleteProject(ctx context.Context, id int64) error
	CreateDonation(ctx context.Context, userID, projectID, amount int64, transactionID string) (*model.Donation, *model.CharityProject, error)
	GetDonationsByUser(ctx context.Context, userID int64) ([]repository.DonationRecord, error)
}

// Notifier описывает контракт отправки уведомлений о пожертвованиях.
type Notifier interface {
	SendDonationReceipt(ctx context.Context, donor *model.User, donation *model.Donation, project *model.CharityProject) error
	SendGoalReachedNotice(ctx context.Context, owner *model.User, project *model.CharityProject) error
}

// MediaStore описывает контракт хранилища изображений проектов.
type MediaStore interface {
	Save(filename string, data []byte) (string, error)
	Remove(key string) error
}

// Service содержит бизнес-логику благотворительной платформы.
type Service struct {
	repo     Repository
	notifier Notifier
	media    MediaStore
	logger   *zap.Logger
}

// NewService создаёт новый сервис с указанными репозиторием, отправителем
// уведомлений и хранилищем изображений.
func NewService(repo Repository, notifier Notifier, media MediaStore, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		media:    media,
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterInput содержит данные регистрации нового пользователя.
type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (int64, error) {
	u := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hashPassword(in.Username, in.Password),
	}
	return s.repo.CreateUser(ctx, u)
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, username, password string) (int64, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	hashed := hashPassword(username, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(username, password string) []byte {
	sum := sha256.Sum256([]byte(username + ":" + password))
	return sum[:]
}

// ProjectInput содержит данные создания благотворительного проекта.
type ProjectInput struct {
	Title       string
	Description string
	GoalAmount  string
	StartDate   string
	EndDate     string
	Location    string
	Latitude    *float64
	Longitude   *float64
}

// ProjectPatch содержит частичное обновление проекта: nil-поля не изменяются.
type ProjectPatch struct {
	Title       *string
	Description *string
	GoalAmount  *string
	StartDate   *string
	EndDate     *string
	Location    *string
	Latitude    *float64
	Longitude   *float64
}

// CreateProject создаёт новый проект. Сумма сбора всегда начинается с нуля,
// независимо от входных данных.
func (s *Service) CreateProject(ctx context.Context, ownerID int64, in ProjectInput) (*model.CharityProject, error) {
	goal, err := validation.ParseAmount(in.GoalAmount)
	if err != nil {
		return nil, &validation.ValidationError{Field: "goal_amount", Message: "must be a positive decimal"}
	}

	start, err := parseDate("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}

	p := &model.CharityProject{
		Title:       in.Title,
		Description: in.Description,
		GoalAmount:  goal,
		StartDate:   start,
		EndDate:     end,
		Location:    in.Location,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		OwnerID:     ownerID,
	}

	if err := validation.ValidateProject(p); err != nil {
		return nil, err
	}

	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// GetProject возвращает проект по идентификатору.
func (s *Service) GetProject(ctx context.Context, id int64) (*model.CharityProject, error) {
	return s.repo.GetProjectByID(ctx, id)
}

// ListProjects возвращает список проектов с поиском и сортировкой.
func (s *Service) ListProjects(ctx context.Context, search, ordering string) ([]model.CharityProject, error) {
	return s.repo.ListProjects(ctx, search, ordering)
}

// GetProjectsByOwner возвращает проекты, созданные указанным пользователем.
func (s *Service) GetProjectsByOwner(ctx context.Context, ownerID int64) ([]model.CharityProject, error) {
	return s.repo.GetProjectsByOwner(ctx, ownerID)
}

// UpdateProject применяет частичное обновление проекта. Изменять проект может только владелец.
func (s *Service) UpdateProject(ctx context.Context, callerID, projectID int64, patch ProjectPatch) (*model.CharityProject, error) {
	p, err := s.repo.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != callerID {
		return nil, ErrForbidden
	}

	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.GoalAmount != nil {
		goal, err := validation.ParseAmount(*patch.GoalAmount)
		if err != nil {
			return nil, &validation.ValidationError{Field: "goal_amount", Message: "must be a positive decimal"}
		}
		p.GoalAmount = goal
	}
	if patch.StartDate != nil {
		start, err := parseDate("start_date", *patch.StartDate)
		if err != nil {
			return nil, err
		}
		p.StartDate = start
	}
	if patch.EndDate != nil {
		end, err := parseDate("end_date", *patch.EndDate)
		if err != nil {
			return nil, err
		}
		p.EndDate = end
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.Latitude != nil {
		p.Latitude = patch.Latitude
	}
	if patch.Longitude != nil {
		p.Longitude = patch.Longitude
	}

	if err := validation.ValidateProject(p); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// AttachProjectImage сохраняет изображение проекта и освобождает предыдущее, если оно было.
func (s *Service) AttachProjectImage(ctx context.Context, callerID, projectID int64, filename string, data []byte) (*model.CharityProject, error) {
	p, err := s.repo.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != callerID {
		return nil, ErrForbidden
	}

	key, err := s.media.Save(filename, data)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProjectImage(ctx, projectID, key); err != nil {
		if removeErr := s.media.Remove(key); removeErr != nil {
			s.logger.Warn("remove orphan image", zap.Error(removeErr))
		}
		return nil, err
	}

	if p.ImagePath != "" {
		if err := s.media.Remove(p.ImagePath); err != nil {
			s.logger.Warn("remove replaced image", zap.Error(err), zap.String("key", p.ImagePath))
		}
	}

	p.ImagePath = key
	return p, nil
}

// DeleteProject удаляет проект вместе с его пожертвованиями и изображением.
// Удалять проект может только владелец.
func (s *Service) DeleteProject(ctx context.Context, callerID, projectID int64) error {
	p, err := s.repo.GetProjectByID(ctx, projectID)
	if err != nil {
		return err
	}
	if p.OwnerID != callerID {
		return ErrForbidden
	}

	if err := s.repo.DeleteProject(ctx, projectID); err != nil {
		return err
	}

	if p.ImagePath != "" {
		if err := s.media.Remove(p.ImagePath); err != nil {
			s.logger.Warn("remove project image", zap.Error(err), zap.String("key", p.ImagePath))
		}
	}

	return nil
}

// RecordDonation записывает пожертвование пользователя в пользу проекта.
// Создание записи и увеличение суммы сбора выполняются в одной транзакции;
// уведомления отправляются после фиксации и не влияют на результат операции.
func (s *Service) RecordDonation(ctx context.Context, userID, projectID int64, amount string) (*model.Donation, *model.CharityProject, error) {
	cents, err := validation.ParseAmount(amount)
	if err != nil {
		// Отсутствие проекта сообщается раньше некорректной суммы.
		if _, getErr := s.repo.GetProjectByID(ctx, projectID); errors.Is(getErr, repository.ErrProjectNotFound) {
			return nil, nil, getErr
		}
		return nil, nil, err
	}

	d, p, err := s.repo.CreateDonation(ctx, userID, projectID, cents, uuid.NewString())
	if err != nil {
		return nil, nil, err
	}

	s.notifyDonation(ctx, userID, d, p)

	return d, p, nil
}

// notifyDonation отправляет уведомления после зафиксированного пожертвования.
// Любая ошибка здесь только логируется: пожертвование уже состоялось.
func (s *Service) notifyDonation(ctx context.Context, donorID int64, d *model.Donation, p *model.CharityProject) {
	if s.notifier == nil {
		return
	}

	donor, err := s.repo.GetUserByID(ctx, donorID)
	if err != nil {
		s.logger.Warn("load donor for receipt", zap.Error(err), zap.Int64("userID", donorID))
	} else if err := s.notifier.SendDonationReceipt(ctx, donor, d, p); err != nil {
		s.logger.Warn("send donation receipt", zap.Error(err), zap.String("transactionID", d.TransactionID))
	}

	if !p.GoalReached() {
		return
	}

	owner, err := s.repo.GetUserByID(ctx, p.OwnerID)
	if err != nil {
		s.logger.Warn("load owner for goal notice", zap.Error(err), zap.Int64("ownerID", p.OwnerID))
		return
	}
	if err := s.notifier.SendGoalReachedNotice(ctx, owner, p); err != nil {
		s.logger.Warn("send goal reached notice", zap.Error(err), zap.Int64("projectID", p.ID))
	}
}

// GetDonationsByUser возвращает пожертвования пользователя.
func (s *Service) GetDonationsByUser(ctx context.Context, userID int64) ([]repository.DonationRecord, error) {
	return s.repo.GetDonationsByUser(ctx, userID)
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, &validation.ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}
