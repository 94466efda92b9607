package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"rewards/internal/core"
)

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name     string
		query    url.Values
		wantFrom string
		wantTo   string
		wantErr  error
	}{
		{name: "open range", query: url.Values{}},
		{name: "both bounds", query: url.Values{"from": {"2025-01-01"}, "to": {"2025-03-31"}}, wantFrom: "2025-01-01", wantTo: "2025-03-31"},
		{name: "from only", query: url.Values{"from": {" 2025-02-01 "}}, wantFrom: "2025-02-01"},
		{name: "same day", query: url.Values{"from": {"2025-02-01"}, "to": {"2025-02-01"}}, wantFrom: "2025-02-01", wantTo: "2025-02-01"},
		{name: "malformed", query: url.Values{"from": {"01/02/2025"}}, wantErr: core.ErrInvalidDate},
		{name: "inverted", query: url.Values{"from": {"2025-03-01"}, "to": {"2025-01-01"}}, wantErr: core.ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateRange(tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.From.String() != tt.wantFrom || got.To.String() != tt.wantTo {
				t.Errorf("range = %s..%s, want %s..%s", got.From, got.To, tt.wantFrom, tt.wantTo)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := map[string]int{
		"":    1,
		"3":   3,
		"0":   1,
		"-2":  1,
		"abc": 1,
		" 7 ": 7,
	}
	for raw, want := range tests {
		if got := ParsePage(url.Values{"page": {raw}}); got != want {
			t.Errorf("ParsePage(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestParseRewardsQuery_PathOverridesQuery(t *testing.T) {
	q, err := ParseRewardsQuery(url.Values{"customer": {"C002"}, "page": {"2"}}, "C001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.CustomerID != "C001" || q.Page != 2 || !q.Range.IsOpen() {
		t.Errorf("unexpected query %+v", q)
	}
}

func TestRequestBodyParser_Form(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader("customer=C001&amount=12%2C50&date=2025-01-15"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.IsJSON() {
		t.Error("form body reported as JSON")
	}
	if got := p.Get("amount"); got != "12,50" {
		t.Errorf("amount = %q", got)
	}
	if got := p.Get("missing"); got != "" {
		t.Errorf("missing = %q", got)
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{"customer":" C001 ","amount":120.5,"date":"2025-01-15"}`))
	req.Header.Set("Content-Type", "application/json")

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !p.IsJSON() {
		t.Error("JSON body not detected")
	}
	if got := p.Get("customer"); got != "C001" {
		t.Errorf("customer = %q", got)
	}
	if got := p.Get("amount"); got != "120.5" {
		t.Errorf("amount = %q", got)
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{"customer":`))
	req.Header.Set("Content-Type", "application/json")

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err == nil {
		t.Fatal("expected error")
	}
	if !p.IsJSON() {
		t.Error("declared JSON body should still answer in JSON")
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := "customer=" + strings.Repeat("x", maxBodyBytes)
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))

	if err := NewRequestBodyParser(req).Parse(); !errors.Is(err, errBodyTooLarge) {
		t.Fatalf("err = %v, want %v", err, errBodyTooLarge)
	}
}

func TestParseNewTransaction(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "valid", body: "customer=C001&amount=120&date=2025-01-15"},
		{name: "comma decimal", body: "customer=C001&amount=99%2C99&date=2025-01-15"},
		{name: "missing customer", body: "amount=120&date=2025-01-15", wantErr: core.ErrEmptyCustomer},
		{name: "bad amount", body: "customer=C001&amount=abc&date=2025-01-15", wantErr: core.ErrInvalidAmount},
		{name: "zero amount", body: "customer=C001&amount=0&date=2025-01-15", wantErr: core.ErrInvalidAmount},
		{name: "missing date", body: "customer=C001&amount=10", wantErr: errMissingDate},
		{name: "bad date", body: "customer=C001&amount=10&date=15-01-2025", wantErr: core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tt.body))
			p := NewRequestBodyParser(req)
			if err := p.Parse(); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			nt, err := ParseNewTransaction(p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if nt.CustomerID != "C001" || nt.Amount.Cents <= 0 || nt.Date.IsEmpty() {
				t.Errorf("unexpected transaction %+v", nt)
			}
		})
	}
}

func TestRequireMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	resp := RequirePOST(req)
	if resp == nil {
		t.Fatal("expected 405 response")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Code != http.StatusMethodNotAllowed || w.Header().Get("Allow") != "POST" {
		t.Errorf("got %d Allow=%q", w.Code, w.Header().Get("Allow"))
	}

	if RequirePOST(httptest.NewRequest(http.MethodPost, "/transactions", nil)) != nil {
		t.Error("POST should be allowed")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  C0\x0001\t "); got != "C001" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
