// Package model содержит доменные сущности благотворительной платформы.
package model

import "time"

// User представляет зарегистрированного пользователя платформы.
type User struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// CharityProject описывает благотворительный проект и ход сбора средств.
// Денежные суммы хранятся в центах.
type CharityProject struct {
	ID           int64
	Title        string
	Description  string
	GoalAmount   int64
	AmountRaised int64
	StartDate    time.Time
	EndDate      time.Time
	ImagePath    string
	Location     string
	Latitude     *float64
	Longitude    *float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	OwnerID      int64
}

// GoalReached сообщает, достигнута ли целевая сумма сбора.
func (p *CharityProject) GoalReached() bool {
	return p.AmountRaised >= p.GoalAmount
}

// Donation описывает пожертвование пользователя в пользу проекта.
// Запись создаётся один раз и далее не изменяется.
type Donation struct {
	ID            int64
	UserID        int64
	ProjectID     int64
	Amount        int64
	TransactionID string
	CreatedAt     time.Time
}
