// Package notification отвечает за отправку почтовых уведомлений платформы.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/charityfund-system/internal/model"
	"github.com/mmeshcher/charityfund-system/internal/validation"
)

var receiptTmpl = template.Must(template.New("receipt").Parse(
	`Dear {{.Name}},

Thank you for your donation of {{.Amount}} to "{{.Project}}".

Transaction id: {{.TransactionID}}
Date: {{.Date}}

The CharityFund team
`))

var goalReachedTmpl = template.Must(template.New("goal").Parse(
	`Dear {{.Name}},

Great news: your project "{{.Project}}" has reached its goal!

Goal amount: {{.Goal}}
Amount raised: {{.Raised}}

The CharityFund team
`))

var paymentReceiptTmpl = template.Must(template.New("payment").Parse(
	`Dear {{.Name}},

Thank you for your donation of {{.Amount}} paid by {{.Method}}.

Date: {{.Date}}

The CharityFund team
`))

// Mailer отправляет почтовые уведомления через SMTP.
// Если адрес SMTP-сервера не задан, уведомления только логируются.
type Mailer struct {
	addr   string
	from   string
	auth   smtp.Auth
	logger *zap.Logger

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer создаёт Mailer для указанного SMTP-сервера (host:port).
func NewMailer(addr, from, username, password string, logger *zap.Logger) *Mailer {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if h, _, err := net.SplitHostPort(addr); err == nil {
			host = h
		}
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &Mailer{
		addr:     addr,
		from:     from,
		auth:     auth,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// SendDonationReceipt отправляет донору письмо-благодарность за пожертвование.
func (m *Mailer) SendDonationReceipt(ctx context.Context, donor *model.User, donation *model.Donation, project *model.CharityProject) error {
	body, err := renderReceipt(donor, donation, project)
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	return m.send(ctx, donor.Email, "Thank you for your donation", body)
}

// SendGoalReachedNotice уведомляет владельца проекта о достижении целевой суммы.
func (m *Mailer) SendGoalReachedNotice(ctx context.Context, owner *model.User, project *model.CharityProject) error {
	body, err := renderGoalReached(owner, project)
	if err != nil {
		return fmt.Errorf("render goal notice: %w", err)
	}
	return m.send(ctx, owner.Email, "Your project reached its goal", body)
}

// SendPaymentReceipt отправляет квитанцию о платеже, принятом платёжным сервисом.
func (m *Mailer) SendPaymentReceipt(ctx context.Context, email, name string, amount int64, method string) error {
	body, err := renderPaymentReceipt(name, amount, method)
	if err != nil {
		return fmt.Errorf("render payment receipt: %w", err)
	}
	return m.send(ctx, email, "Your donation receipt", body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.addr == "" {
		m.logger.Info("mail transport not configured, message not sent",
			zap.String("to", to),
			zap.String("subject", subject),
		)
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)

	if err := m.sendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	return nil
}

func renderReceipt(donor *model.User, donation *model.Donation, project *model.CharityProject) (string, error) {
	var buf bytes.Buffer
	err := receiptTmpl.Execute(&buf, map[string]string{
		"Name":          donor.FirstName,
		"Amount":        validation.FormatAmount(donation.Amount),
		"Project":       project.Title,
		"TransactionID": donation.TransactionID,
		"Date":          donation.CreatedAt.Format(time.RFC3339),
	})
	return buf.String(), err
}

func renderGoalReached(owner *model.User, project *model.CharityProject) (string, error) {
	var buf bytes.Buffer
	err := goalReachedTmpl.Execute(&buf, map[string]string{
		"Name":    owner.FirstName,
		"Project": project.Title,
		"Goal":    validation.FormatAmount(project.GoalAmount),
		"Raised":  validation.FormatAmount(project.AmountRaised),
	})
	return buf.String(), err
}

func renderPaymentReceipt(name string, amount int64, method string) (string, error) {
	var buf bytes.Buffer
	err := paymentReceiptTmpl.Execute(&buf, map[string]string{
		"Name":   name,
		"Amount": validation.FormatAmount(amount),
		"Method": method,
		"Date":   time.Now().Format(time.RFC3339),
	})
	return buf.String(), err
}
