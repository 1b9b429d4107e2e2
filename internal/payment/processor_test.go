package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCharge_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/charges" {
			t.Fatalf("path = %s, want /api/charges", r.URL.Path)
		}

		var req chargeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Amount != 15000 {
			t.Fatalf("amount = %d, want 15000", req.Amount)
		}
		if req.Currency != "usd" {
			t.Fatalf("currency = %q, want usd", req.Currency)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ChargeResult{
			ID:     "ch_123",
			Status: "succeeded",
		})
	}))
	defer ts.Close()

	client := NewProcessorClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Charge(ctx, 15000, MethodCreditCard, "donor@example.com")
	if err != nil {
		t.Fatalf("Charge error: %v", err)
	}
	if res.ID != "ch_123" || res.Status != "succeeded" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCharge_UnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	client := NewProcessorClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := client.Charge(ctx, 15000, MethodCreditCard, "donor@example.com"); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}

func TestCharge_NotConfigured(t *testing.T) {
	var client *ProcessorClient

	if _, err := client.Charge(context.Background(), 15000, MethodCreditCard, "donor@example.com"); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
