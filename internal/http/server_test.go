package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rewards/internal/cache"
	"rewards/internal/core"
	"rewards/internal/metrics"
	"rewards/internal/middleware/ratelimit"
	"rewards/internal/rewards"
	"rewards/internal/services"
	"rewards/internal/sources/memory"
)

type nilLister struct{}

func (nilLister) ListTransactions(context.Context, string, core.DateRange) ([]*rewards.Transaction, error) {
	return nil, nil
}

type failingLister struct{}

func (failingLister) ListTransactions(context.Context, string, core.DateRange) ([]*rewards.Transaction, error) {
	return nil, errors.New("upstream timeout")
}

type fakeSnapshots []core.MonthlySnapshot

func (f fakeSnapshots) ListMonthlySnapshots(_ context.Context, customerID string) ([]core.MonthlySnapshot, error) {
	var out []core.MonthlySnapshot
	for _, s := range f {
		if s.CustomerID == customerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func demoStore() *memory.Store {
	return memory.New(memory.DemoTransactions(), map[string]string{"C001": "Ada Lovelace"}).InLocation(time.UTC)
}

type testEnv struct {
	srv     *Server
	store   *memory.Store
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store := demoStore()
	m := metrics.New()
	loader := cache.NewLoader[[]*rewards.Transaction]("transactions", cache.NewLRUCache[[]*rewards.Transaction](16, time.Minute), m)
	rs := services.NewRewardsService(store, store, loader, m, time.UTC, 0)
	ts := services.NewTransactionService(store, nil, loader, m)

	opts = append([]Option{WithMetrics(m, "transactions"), WithLocation(time.UTC)}, opts...)
	srv := NewServer(":0", rs, ts, opts...)
	t.Cleanup(func() { srv.rateLimiter.Stop() })
	return &testEnv{srv: srv, store: store, metrics: m}
}

func (e *testEnv) do(method, target, body, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, target, "", "")
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestServer(t)

	rr := env.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Customer Rewards", `value="C001" selected`, "Ada Lovelace", `value="C003"`, "Record a purchase"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("X-Request-ID") == "" {
		t.Error("security or trace headers missing")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.get(path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := env.get("/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path status=%d", rr.Code)
	}
}

func TestReadyFailsWhenBackendDown(t *testing.T) {
	env := newTestServer(t, WithReadiness(func(context.Context) error { return errors.New("db closed") }))

	rr := env.get("/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "db closed") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestTemplatesMissing(t *testing.T) {
	env := newTestServer(t)
	env.srv.templates = nil

	if rr := env.get("/"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for missing templates, got %d", rr.Code)
	}
	if rr := env.get("/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for missing templates, got %d", rr.Code)
	}
}

func TestRewardsPartial(t *testing.T) {
	env := newTestServer(t)

	rr := env.get("/ui/rewards?customer=C001")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{">585<", "January 2025", "February 2025", "March 2025", "T001", "T007", "1 not counted"} {
		if !strings.Contains(body, want) {
			t.Errorf("partial missing %q", want)
		}
	}
	if strings.Index(body, "January 2025") > strings.Index(body, "March 2025") {
		t.Error("months not in chronological order")
	}
}

func TestRewardsPartial_FilterAndPaging(t *testing.T) {
	store := demoStore()
	rs := services.NewRewardsService(store, store, nil, nil, time.UTC, 2)
	srv := NewServer(":0", rs, nil, WithLocation(time.UTC))
	t.Cleanup(func() { srv.rateLimiter.Stop() })
	env := &testEnv{srv: srv, store: store}

	rr := env.get("/ui/rewards?customer=C001&from=2025-02-01&to=2025-02-28")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, ">320<") || strings.Contains(body, "January 2025") {
		t.Errorf("filtered partial wrong: %s", body)
	}

	rr = env.get("/ui/rewards?customer=C001&page=2")
	body = rr.Body.String()
	if !strings.Contains(body, "Page 2 of 4") || !strings.Contains(body, "T003") || strings.Contains(body, "T001") {
		t.Errorf("page 2 wrong: %s", body)
	}
	if !strings.Contains(body, "page=1") || !strings.Contains(body, "page=3") {
		t.Errorf("pager links missing: %s", body)
	}

	if strings.Contains(env.get("/").Body.String(), "Record a purchase") {
		t.Error("record form shown without a transaction service")
	}
}

func TestRewardsPartial_Errors(t *testing.T) {
	env := newTestServer(t)

	tests := []struct {
		name   string
		target string
		code   int
		want   string
	}{
		{"no customer", "/ui/rewards", http.StatusOK, "Select a customer"},
		{"bad date", "/ui/rewards?customer=C001&from=yesterday", http.StatusUnprocessableEntity, "YYYY-MM-DD"},
		{"inverted range", "/ui/rewards?customer=C001&from=2025-03-01&to=2025-01-01", http.StatusUnprocessableEntity, "start date"},
		{"unknown customer", "/ui/rewards?customer=C999", http.StatusNotFound, "Customer not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.get(tt.target)
			if rr.Code != tt.code {
				t.Fatalf("status=%d, want %d", rr.Code, tt.code)
			}
			if !strings.Contains(rr.Body.String(), tt.want) {
				t.Errorf("body missing %q: %s", tt.want, rr.Body.String())
			}
		})
	}
}

func TestRewardsPartial_EngineFailureShowsGenericState(t *testing.T) {
	store := demoStore()
	rs := services.NewRewardsService(store, nilLister{}, nil, nil, time.UTC, 0)
	srv := NewServer(":0", rs, nil)
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/rewards?customer=C001", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Unable to compute rewards") {
		t.Errorf("body = %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/customers/C001/rewards", nil))
	if rr.Code != http.StatusInternalServerError || !strings.Contains(rr.Body.String(), "unable to compute rewards") {
		t.Errorf("api status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRewardsAPI_LoadFailure(t *testing.T) {
	store := demoStore()
	rs := services.NewRewardsService(store, failingLister{}, nil, nil, time.UTC, 0)
	srv := NewServer(":0", rs, nil)
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/customers/C001/rewards", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestCustomersAPI(t *testing.T) {
	env := newTestServer(t)

	rr := env.get("/api/customers")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	resp := decodeJSON[customersResponse](t, rr)
	if len(resp.Customers) != 3 || resp.Customers[0] != (core.Customer{ID: "C001", Name: "Ada Lovelace"}) {
		t.Errorf("customers = %+v", resp.Customers)
	}

	if rr := env.do(http.MethodPost, "/api/customers", "x=1", "application/x-www-form-urlencoded"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status=%d", rr.Code)
	}
}

func TestCustomerRewardsAPI(t *testing.T) {
	env := newTestServer(t)

	rr := env.get("/api/customers/C001/rewards?from=2025-02-01&to=2025-02-28")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Customer     core.Customer `json:"customer"`
		Range        rangeJSON     `json:"range"`
		TotalPoints  int           `json:"totalPoints"`
		Months       []core.MonthSummary
		Transactions []struct {
			TransactionID   string                  `json:"transactionId"`
			Points          int                     `json:"points"`
			PointsBreakdown rewards.PointsBreakdown `json:"pointsBreakdown"`
		} `json:"transactions"`
		Page core.Page `json:"page"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalPoints != 320 || resp.Range.From != "2025-02-01" || resp.Range.To != "2025-02-28" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Months) != 1 || resp.Months[0].Key != "2025-02" || resp.Months[0].Label != "February 2025" {
		t.Errorf("months = %+v", resp.Months)
	}
	if len(resp.Transactions) != 2 || resp.Transactions[0].TransactionID != "T004" || resp.Transactions[0].Points != 271 {
		t.Errorf("transactions = %+v", resp.Transactions)
	}
	if resp.Transactions[0].PointsBreakdown != (rewards.PointsBreakdown{HighTier: 221, LowTier: 50}) {
		t.Errorf("breakdown = %+v", resp.Transactions[0].PointsBreakdown)
	}

	if rr := env.get("/api/customers/C999/rewards"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown customer status=%d", rr.Code)
	}
	if rr := env.get("/api/customers/C001/rewards?to=bad"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad range status=%d", rr.Code)
	}
}

func TestRecordTransaction_Form(t *testing.T) {
	env := newTestServer(t)

	// Warm the cache so the write has something to invalidate.
	if rr := env.get("/api/customers/C003/rewards"); rr.Code != http.StatusOK {
		t.Fatalf("warmup status=%d", rr.Code)
	}
	before := decodeJSON[rewardsResponse](t, env.get("/api/customers/C003/rewards"))

	rr := env.do(http.MethodPost, "/transactions", "customer=C003&amount=120%2C00&date=2025-03-20", "application/x-www-form-urlencoded")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "90 points") {
		t.Errorf("body = %s", rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"transaction:recorded"`) || !strings.Contains(trigger, `"month":"2025-03"`) {
		t.Errorf("HX-Trigger = %s", trigger)
	}

	after := decodeJSON[rewardsResponse](t, env.get("/api/customers/C003/rewards"))
	if after.TotalPoints != before.TotalPoints+90 || after.TransactionCount != before.TransactionCount+1 {
		t.Errorf("points %d -> %d, count %d -> %d", before.TotalPoints, after.TotalPoints, before.TransactionCount, after.TransactionCount)
	}
}

func TestRecordTransaction_JSON(t *testing.T) {
	env := newTestServer(t)

	rr := env.do(http.MethodPost, "/transactions", `{"customer":"C004","amount":75,"date":"2025-04-01"}`, "application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		TransactionID string `json:"transactionId"`
		CustomerID    string `json:"customerId"`
		Points        int    `json:"points"`
		Ref           string `json:"ref"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TransactionID == "" || resp.CustomerID != "C004" || resp.Points != 25 || resp.Ref == "" {
		t.Errorf("unexpected response %+v", resp)
	}

	if rr := env.get("/api/customers/C004/rewards"); rr.Code != http.StatusOK {
		t.Errorf("new customer not visible, status=%d", rr.Code)
	}
}

func TestRecordTransaction_Validation(t *testing.T) {
	env := newTestServer(t)

	if rr := env.get("/transactions"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	tests := []struct {
		name string
		body string
		ct   string
		code int
		want string
	}{
		{"bad amount", "customer=C001&amount=abc&date=2025-01-01", "application/x-www-form-urlencoded", http.StatusUnprocessableEntity, "Amount"},
		{"missing customer", "amount=10&date=2025-01-01", "application/x-www-form-urlencoded", http.StatusUnprocessableEntity, "Customer is required"},
		{"missing date", "customer=C001&amount=10", "application/x-www-form-urlencoded", http.StatusUnprocessableEntity, "Date is required"},
		{"broken json", `{"customer":`, "application/json", http.StatusBadRequest, `"error"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/transactions", tt.body, tt.ct)
			if rr.Code != tt.code {
				t.Fatalf("status=%d, want %d", rr.Code, tt.code)
			}
			if !strings.Contains(rr.Body.String(), tt.want) {
				t.Errorf("body missing %q: %s", tt.want, rr.Body.String())
			}
		})
	}
}

func TestRecordTransaction_Disabled(t *testing.T) {
	store := demoStore()
	srv := NewServer(":0", services.NewRewardsService(store, store, nil, nil, time.UTC, 0), nil)
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader("customer=C001&amount=10&date=2025-01-01"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestRecordTransaction_RateLimited(t *testing.T) {
	env := newTestServer(t, WithRateLimit(ratelimit.Config{
		RequestsPerMinute: 2,
		CleanupInterval:   time.Minute,
		Methods:           []string{http.MethodPost},
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		rr := env.do(http.MethodPost, "/transactions", "customer=C001&amount=10&date=2025-01-01", "application/x-www-form-urlencoded")
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	// Reads are never throttled.
	if rr := env.get("/api/customers"); rr.Code != http.StatusOK {
		t.Errorf("GET throttled: %d", rr.Code)
	}
}

func TestSnapshotsAPI(t *testing.T) {
	env := newTestServer(t)
	if rr := env.get("/api/customers/C001/snapshots"); rr.Code != http.StatusNotFound {
		t.Fatalf("no reader: status=%d", rr.Code)
	}

	at := time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)
	env = newTestServer(t, WithSnapshots(fakeSnapshots{
		{CustomerID: "C001", MonthSummary: core.MonthSummary{Key: "2025-01", Label: "January 2025", Points: 115, TransactionCount: 3, TotalAmount: 240.5}, UpdatedAt: at},
		{CustomerID: "C002", MonthSummary: core.MonthSummary{Key: "2025-01", Label: "January 2025", Points: 56}, UpdatedAt: at},
	}))

	rr := env.get("/api/customers/C001/snapshots")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	resp := decodeJSON[snapshotsResponse](t, rr)
	if resp.CustomerID != "C001" || len(resp.Months) != 1 || resp.Months[0].Points != 115 || resp.Months[0].UpdatedAt != "2025-04-01T12:00:00Z" {
		t.Errorf("snapshots = %+v", resp)
	}
}

func TestMetricsAndStats(t *testing.T) {
	env := newTestServer(t)
	env.get("/api/customers/C001/rewards")
	env.get("/api/customers/C001/rewards")

	rr := env.get("/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	for _, want := range []string{"rewards_reports_total 2", "rewards_http_request_duration_seconds", `route="GET /api/customers/{id}/rewards"`} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	stats := decodeJSON[statsResponse](t, env.get("/api/stats"))
	if stats.Rewards == nil || stats.Rewards.Reports != 2 || stats.Rewards.PointsReported != 1170 {
		t.Fatalf("stats = %+v", stats.Rewards)
	}
	if stats.Rewards.CacheHitRate != 0.5 {
		t.Errorf("cache hit rate = %v", stats.Rewards.CacheHitRate)
	}
	if stats.Requests.TotalRequests < 3 {
		t.Errorf("requests = %d", stats.Requests.TotalRequests)
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestServer(t)
	rr := env.get("/static/app.css")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}
