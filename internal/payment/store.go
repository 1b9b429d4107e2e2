package payment

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrPaymentNotFound возвращается, если платёж не найден.
var ErrPaymentNotFound = errors.New("payment not found")

// Payment описывает платёж, принятый платёжным сервисом. Сумма хранится в центах.
type Payment struct {
	ID                int64
	Amount            int64
	Method            string
	Email             string
	Name              string
	CardLast4         string
	ProviderPaymentID string
	Completed         bool
	ReceiptSent       bool
	CreatedAt         time.Time
}

// Store предоставляет доступ к журналу платежей в PostgreSQL.
// Сервис платежей ведёт собственную таблицу версий миграций, поэтому может
// делить базу данных с основной платформой.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создаёт хранилище платежей и инициализирует его схему через миграции.
func NewStore(dsn string) (*Store, error) {
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

	s := &Store{pool: pool}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	goose.SetTableName("goose_payments_version")

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const paymentColumns = `id, amount, method, email, name, card_last4, provider_payment_id, completed, receipt_sent, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.Amount, &p.Method, &p.Email, &p.Name, &p.CardLast4,
		&p.ProviderPaymentID, &p.Completed, &p.ReceiptSent, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment сохраняет новый платёж.
func (s *Store) CreatePayment(ctx context.Context, p *Payment) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO payments (amount, method, email, name, card_last4, provider_payment_id, completed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		p.Amount, p.Method, p.Email, p.Name, p.CardLast4, p.ProviderPaymentID, p.Completed,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetPayment возвращает платёж по идентификатору.
func (s *Store) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// MarkCompleted отмечает платёж с указанным идентификатором процессора завершённым.
func (s *Store) MarkCompleted(ctx context.Context, providerPaymentID string) (*Payment, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE payments SET completed = TRUE
		 WHERE provider_payment_id = $1
		 RETURNING `+paymentColumns,
		providerPaymentID,
	)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("mark payment completed: %w", err)
	}
	return p, nil
}

// MarkReceiptSent отмечает, что квитанция по платежу отправлена.
func (s *Store) MarkReceiptSent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE payments SET receipt_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark receipt sent: %w", err)
	}
	return nil
}
