// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/charityfund-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже занятым логином или email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProjectNotFound возвращается, если благотворительный проект не найден.
	ErrProjectNotFound = errors.New("project not found")
	// ErrDuplicateTransaction возвращается при попытке повторно записать пожертвование
	// с уже существующим идентификатором транзакции.
	ErrDuplicateTransaction = errors.New("transaction id already exists")
)

// DonationRecord описывает пожертвование вместе со сводкой по проекту.
type DonationRecord struct {
	model.Donation
	ProjectTitle        string
	ProjectGoalAmount   int64
	ProjectAmountRaised int64
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, first_name, last_name, password_hash)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByUsername возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getUser(ctx,
		`SELECT id, username, email, first_name, last_name, password_hash, created_at
		 FROM users WHERE username = $1`, username)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getUser(ctx,
		`SELECT id, username, email, first_name, last_name, password_hash, created_at
		 FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

const projectColumns = `id, title, description, goal_amount, amount_raised, start_date, end_date,
	COALESCE(image_path, ''), location, latitude, longitude, created_at, updated_at, owner_id`

func scanProject(row pgx.Row) (*model.CharityProject, error) {
	var p model.CharityProject
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.GoalAmount, &p.AmountRaised,
		&p.StartDate, &p.EndDate, &p.ImagePath, &p.Location,
		&p.Latitude, &p.Longitude, &p.CreatedAt, &p.UpdatedAt, &p.OwnerID,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject сохраняет новый благотворительный проект.
func (r *PostgresRepository) CreateProject(ctx context.Context, p *model.CharityProject) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO charity_projects
		 (title, description, goal_amount, amount_raised, start_date, end_date, location, latitude, longitude, owner_id)
		 VALUES ($1, $2, $3, 0, $4, $5, $6, $7, $8, $9)
		 RETURNING id, amount_raised, created_at, updated_at`,
		p.Title, p.Description, p.GoalAmount, p.StartDate, p.EndDate,
		p.Location, p.Latitude, p.Longitude, p.OwnerID,
	).Scan(&p.ID, &p.AmountRaised, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrUserNotFound
		}
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetProjectByID возвращает проект по идентификатору.
func (r *PostgresRepository) GetProjectByID(ctx context.Context, id int64) (*model.CharityProject, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM charity_projects WHERE id = $1`, id)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// Допустимые значения параметра сортировки списка проектов.
var orderings = map[string]string{
	"created_at":   "created_at ASC",
	"-created_at":  "created_at DESC",
	"goal_amount":  "goal_amount ASC",
	"-goal_amount": "goal_amount DESC",
	"end_date":     "end_date ASC",
	"-end_date":    "end_date DESC",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeSearch превращает пользовательскую строку поиска в шаблон подстроки,
// экранируя метасимволы LIKE, чтобы они искались буквально.
func escapeSearch(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

// ListProjects возвращает список проектов с поиском по названию, описанию и
// местоположению (без учёта регистра) и сортировкой по одному из допустимых полей.
func (r *PostgresRepository) ListProjects(ctx context.Context, search, ordering string) ([]model.CharityProject, error) {
	orderBy, ok := orderings[ordering]
	if !ok {
		orderBy = orderings["-created_at"]
	}

	query := `SELECT ` + projectColumns + ` FROM charity_projects`
	args := []any{}
	if search != "" {
		query += ` WHERE title ILIKE $1 ESCAPE '\' OR description ILIKE $1 ESCAPE '\' OR location ILIKE $1 ESCAPE '\'`
		args = append(args, escapeSearch(search))
	}
	query += ` ORDER BY ` + orderBy

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	defer rows.Close()

	return collectProjects(rows)
}

// GetProjectsByOwner возвращает проекты, созданные указанным пользователем.
func (r *PostgresRepository) GetProjectsByOwner(ctx context.Context, ownerID int64) ([]model.CharityProject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM charity_projects WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select projects by owner: %w", err)
	}
	defer rows.Close()

	return collectProjects(rows)
}

func collectProjects(rows pgx.Rows) ([]model.CharityProject, error) {
	var projects []model.CharityProject
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return projects, nil
}

// UpdateProject сохраняет изменённые владельцем поля проекта.
// Сумма сбора при этом не затрагивается.
func (r *PostgresRepository) UpdateProject(ctx context.Context, p *model.CharityProject) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE charity_projects
		 SET title = $2, description = $3, goal_amount = $4, start_date = $5, end_date = $6,
		     location = $7, latitude = $8, longitude = $9, updated_at = now()
		 WHERE id = $1`,
		p.ID, p.Title, p.Description, p.GoalAmount, p.StartDate, p.EndDate,
		p.Location, p.Latitude, p.Longitude,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// UpdateProjectImage сохраняет путь к изображению проекта.
func (r *PostgresRepository) UpdateProjectImage(ctx context.Context, id int64, imagePath string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE charity_projects SET image_path = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		id, imagePath,
	)
	if err != nil {
		return fmt.Errorf("update project image: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// DeleteProject удаляет проект. Связанные пожертвования удаляются каскадно на уровне БД.
func (r *PostgresRepository) DeleteProject(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM charity_projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// CreateDonation атомарно записывает пожертвование и увеличивает сумму сбора проекта.
// Строка проекта блокируется на время транзакции, поэтому параллельные
// пожертвования в один проект сериализуются и не теряют обновлений.
func (r *PostgresRepository) CreateDonation(ctx context.Context, userID, projectID, amount int64, transactionID string) (*model.Donation, *model.CharityProject, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM charity_projects WHERE id = $1 FOR UPDATE`, projectID)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrProjectNotFound
		}
		return nil, nil, fmt.Errorf("lock project: %w", err)
	}

	d := &model.Donation{
		UserID:        userID,
		ProjectID:     projectID,
		Amount:        amount,
		TransactionID: transactionID,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO donations (user_id, project_id, amount, transaction_id)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		userID, projectID, amount, transactionID,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateTransaction, transactionID)
			case pgerrcode.ForeignKeyViolation:
				return nil, nil, ErrUserNotFound
			}
		}
		return nil, nil, fmt.Errorf("insert donation: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE charity_projects SET amount_raised = amount_raised + $2 WHERE id = $1`,
		projectID, amount,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("increment amount raised: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	p.AmountRaised += amount

	return d, p, nil
}

// GetDonationsByUser возвращает пожертвования пользователя со сводкой по проектам.
func (r *PostgresRepository) GetDonationsByUser(ctx context.Context, userID int64) ([]DonationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT d.id, d.user_id, d.project_id, d.amount, d.transaction_id, d.created_at,
		        p.title, p.goal_amount, p.amount_raised
		 FROM donations d
		 JOIN charity_projects p ON p.id = d.project_id
		 WHERE d.user_id = $1
		 ORDER BY d.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select donations: %w", err)
	}
	defer rows.Close()

	var res []DonationRecord
	for rows.Next() {
		var rec DonationRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.ProjectID, &rec.Amount, &rec.TransactionID, &rec.CreatedAt,
			&rec.ProjectTitle, &rec.ProjectGoalAmount, &rec.ProjectAmountRaised,
		); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		res = append(res, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
