package notification

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/charityfund-system/internal/model"
)

func testDonor() *model.User {
	return &model.User{
		ID:        1,
		Username:  "donor",
		Email:     "donor@example.com",
		FirstName: "Anna",
	}
}

func testDonationProject() *model.CharityProject {
	return &model.CharityProject{
		ID:           10,
		Title:        "Clean Water",
		GoalAmount:   100000,
		AmountRaised: 100000,
	}
}

func TestRenderReceipt(t *testing.T) {
	donation := &model.Donation{
		Amount:        15000,
		TransactionID: "d3f1c2ab",
		CreatedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := renderReceipt(testDonor(), donation, testDonationProject())
	if err != nil {
		t.Fatalf("renderReceipt error: %v", err)
	}

	for _, want := range []string{"Anna", "150.00", "Clean Water", "d3f1c2ab"} {
		if !strings.Contains(body, want) {
			t.Fatalf("receipt body does not contain %q:\n%s", want, body)
		}
	}
}

func TestRenderGoalReached(t *testing.T) {
	owner := &model.User{FirstName: "Boris", Email: "owner@example.com"}

	body, err := renderGoalReached(owner, testDonationProject())
	if err != nil {
		t.Fatalf("renderGoalReached error: %v", err)
	}

	for _, want := range []string{"Boris", "Clean Water", "1000.00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("goal notice body does not contain %q:\n%s", want, body)
		}
	}
}

func TestSendDonationReceipt_UsesTransport(t *testing.T) {
	m := NewMailer("smtp.local:25", "noreply@charityfund.local", "", "", zap.NewNop())

	var gotTo []string
	var gotMsg string
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	donation := &model.Donation{Amount: 15000, TransactionID: "tx-1", CreatedAt: time.Now()}
	if err := m.SendDonationReceipt(context.Background(), testDonor(), donation, testDonationProject()); err != nil {
		t.Fatalf("SendDonationReceipt error: %v", err)
	}

	if len(gotTo) != 1 || gotTo[0] != "donor@example.com" {
		t.Fatalf("recipient = %v, want donor@example.com", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Thank you for your donation") {
		t.Fatalf("message has no subject:\n%s", gotMsg)
	}
}

func TestSend_NotConfigured(t *testing.T) {
	m := NewMailer("", "noreply@charityfund.local", "", "", zap.NewNop())

	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatalf("transport must not be used when address is not configured")
		return nil
	}

	donation := &model.Donation{Amount: 15000, TransactionID: "tx-1", CreatedAt: time.Now()}
	if err := m.SendDonationReceipt(context.Background(), testDonor(), donation, testDonationProject()); err != nil {
		t.Fatalf("SendDonationReceipt error: %v", err)
	}
}

func TestSend_CancelledContext(t *testing.T) {
	m := NewMailer("smtp.local:25", "noreply@charityfund.local", "", "", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.SendPaymentReceipt(ctx, "donor@example.com", "Anna", 15000, "paypal")
	if err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
