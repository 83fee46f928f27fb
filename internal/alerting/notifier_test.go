package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ratewatcher/internal/model"
)

func testAlert() Alert {
	return Alert{
		To:           "subscriber@example.com",
		LocationName: "Florida",
		LocationCode: "FL",
		RateType:     model.Rate30YearFixed,
		OldRate:      decimal.NewFromFloat(6.50),
		NewRate:      decimal.NewFromFloat(6.25),
		ChangePct:    decimal.NewFromFloat(-3.85),
	}
}

func TestGatewayNotifierSendsPayload(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload gatewayPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewGatewayNotifier(server.URL, "secret-key", "alerts@ratewatcher.io", time.Second, zerolog.Nop())
	if err := n.SendRateAlert(context.Background(), testAlert()); err != nil {
		t.Fatalf("SendRateAlert: %v", err)
	}

	if gotPath != "/v1/alerts/rate" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotPayload.To != "subscriber@example.com" || gotPayload.From != "alerts@ratewatcher.io" {
		t.Fatalf("payload addressing = %+v", gotPayload)
	}
	if gotPayload.OldRate != "6.500" || gotPayload.NewRate != "6.250" || gotPayload.ChangePct != "-3.85" {
		t.Fatalf("payload rates = %+v", gotPayload)
	}
	if !strings.Contains(gotPayload.Subject, "Florida") {
		t.Fatalf("subject = %q", gotPayload.Subject)
	}
	if !strings.Contains(gotPayload.Body, "6.500%") || !strings.Contains(gotPayload.Body, "6.250%") {
		t.Fatalf("body = %q", gotPayload.Body)
	}
}

func TestGatewayNotifierErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewGatewayNotifier(server.URL, "", "alerts@ratewatcher.io", time.Second, zerolog.Nop())
	if err := n.SendRateAlert(context.Background(), testAlert()); err == nil {
		t.Fatal("expected error on non-2xx gateway response")
	}
}
