package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitializeTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var req InitializeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Amount != 500000 || req.Reference != "DBX-1" || req.Email != "ada@example.com" {
			t.Errorf("unexpected payload %+v", req)
		}
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"DBX-1"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "sk_test_123")
	resp, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		Email:     "ada@example.com",
		Amount:    500000,
		Currency:  "NGN",
		Reference: "DBX-1",
	})
	if err != nil {
		t.Fatalf("InitializeTransaction returned error: %v", err)
	}
	if resp.AuthorizationURL != "https://checkout.paystack.com/abc" || resp.AccessCode != "abc" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestVerifyTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/DBX-2" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"id":99,"status":"success","reference":"DBX-2","amount":250000,"currency":"NGN"}}`))
	}))
	defer server.Close()

	txn, err := NewClient(server.URL, "sk").VerifyTransaction(context.Background(), "DBX-2")
	if err != nil {
		t.Fatalf("VerifyTransaction returned error: %v", err)
	}
	if txn.Status != "success" || txn.Amount != 250000 || txn.Currency != "NGN" {
		t.Fatalf("unexpected transaction %+v", txn)
	}
}

func TestClientReturnsErrorResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusBadRequest, body: `{"status":false,"message":"Invalid key"}`},
		{name: "status false on 200", status: http.StatusOK, body: `{"status":false,"message":"Transaction reference not found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "sk").VerifyTransaction(context.Background(), "missing")
			var apiErr *ErrorResponse
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected ErrorResponse, got %v", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message == "" {
				t.Fatalf("unexpected error %+v", apiErr)
			}
		})
	}
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"DBX-3","status":"success","amount":100000,"currency":"NGN"}}`)
	signature := Sign("sk_live", body)

	event, err := ParseWebhook("sk_live", body, signature)
	if err != nil {
		t.Fatalf("ParseWebhook returned error: %v", err)
	}
	if event.Event != EventChargeSuccess || event.Data.Reference != "DBX-3" || event.Data.Amount != 100000 {
		t.Fatalf("unexpected event %+v", event)
	}

	if _, err := ParseWebhook("sk_live", body, Sign("other", body)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for wrong key, got %v", err)
	}
	if _, err := ParseWebhook("sk_live", append(body, ' '), signature); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for tampered body, got %v", err)
	}
	if VerifySignature("", body, signature) {
		t.Fatal("expected empty secret to never verify")
	}
}
