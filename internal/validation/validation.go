// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mmeshcher/charityfund-system/internal/model"
)

// ErrInvalidAmount возвращается для неположительной или нераспознанной денежной суммы.
var ErrInvalidAmount = errors.New("invalid amount")

// ValidationError описывает ошибку валидации конкретного поля сущности.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ParseAmount разбирает десятичную строку с суммой (не более двух знаков
// после точки) и возвращает значение в центах. Сумма должна быть строго положительной.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	whole := s
	frac := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole = s[:idx]
		frac = s[idx+1:]
	}

	if whole == "" || len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if units > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	cents := int64(0)
	if frac != "" {
		v, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		if len(frac) == 1 {
			v *= 10
		}
		cents = v
	}

	total := units*100 + cents
	if total <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	return total, nil
}

// FormatAmount форматирует сумму в центах как десятичную строку вида "150.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ValidateProject проверяет поля благотворительного проекта перед записью.
func ValidateProject(p *model.CharityProject) error {
	if strings.TrimSpace(p.Title) == "" {
		return &ValidationError{Field: "title", Message: "must not be blank"}
	}
	if strings.TrimSpace(p.Description) == "" {
		return &ValidationError{Field: "description", Message: "must not be blank"}
	}
	if p.GoalAmount <= 0 {
		return &ValidationError{Field: "goal_amount", Message: "must be greater than zero"}
	}
	if p.EndDate.Before(p.StartDate) {
		return &ValidationError{Field: "end_date", Message: "must not be before start date"}
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		return &ValidationError{Field: "latitude", Message: "must be between -90 and 90"}
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		return &ValidationError{Field: "longitude", Message: "must be between -180 and 180"}
	}
	return nil
}
