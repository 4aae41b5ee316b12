package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"evcharge/internal/core"
	"evcharge/internal/services"
	"evcharge/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenRepo struct{ *memory.Store }

func (brokenRepo) SaveAll(context.Context, []core.ChargingRecord) error {
	return errors.New("disk full")
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	svc := services.NewChargingService(memory.New())
	srv := NewServer(":0", svc, append([]Option{WithRateLimit(1000)}, opts...)...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/readyz", "", "").Code)

	down := newTestServer(t, WithReadinessChecker(pingFunc(func(context.Context) error {
		return errors.New("db locked")
	})))
	rr := do(t, down, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "db locked")
}

func TestRecordLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/records", "application/json",
		`{"date":"2024-01-03","energy_kwh":10,"cost":"100","charge_percent":50}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[recordView](t, rr)
	assert.Equal(t, 0, created.Position)
	require.NotNil(t, created.ChargePercent)
	assert.Equal(t, 50, *created.ChargePercent)

	rr = do(t, srv, http.MethodPost, "/api/records", "application/x-www-form-urlencoded",
		"date=2024-02-10&energy_kwh=20&cost=150&location=Home")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "/api/records/1", rr.Header().Get("Location"))

	rr = do(t, srv, http.MethodPut, "/api/records/1", "application/json",
		`{"date":"2024-02-11","energy_kwh":"25,5","cost":150}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[recordView](t, rr)
	assert.InDelta(t, 25.5, updated.EnergyKwh, 1e-9)
	assert.Nil(t, updated.ChargePercent)

	list := decode[[]recordView](t, do(t, srv, http.MethodGet, "/api/records", "", ""))
	require.Len(t, list, 2)
	assert.Equal(t, "2024-02-11", list[1].Date.String())

	rr = do(t, srv, http.MethodDelete, "/api/records/0", "", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	list = decode[[]recordView](t, do(t, srv, http.MethodGet, "/api/records", "", ""))
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].Position)
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"zero energy", http.MethodPost, "/api/records", `{"date":"2024-01-01","energy_kwh":0,"cost":1}`, 422, "invalid_energy"},
		{"negative cost", http.MethodPost, "/api/records", `{"date":"2024-01-01","energy_kwh":1,"cost":-1}`, 422, "invalid_cost"},
		{"bad percent", http.MethodPost, "/api/records", `{"date":"2024-01-01","energy_kwh":1,"cost":1,"charge_percent":150}`, 422, "invalid_charge_percent"},
		{"missing date", http.MethodPost, "/api/records", `{"energy_kwh":1,"cost":1}`, 422, "missing_required_field"},
		{"malformed json", http.MethodPost, "/api/records", `{"date":`, 400, "bad_request"},
		{"update out of range", http.MethodPut, "/api/records/3", `{"date":"2024-01-01","energy_kwh":1,"cost":1}`, 404, "index_out_of_range"},
		{"delete out of range", http.MethodDelete, "/api/records/0", "", 404, "index_out_of_range"},
		{"negative position", http.MethodDelete, "/api/records/-1", "", 404, "index_out_of_range"},
		{"non-numeric position", http.MethodDelete, "/api/records/abc", "", 400, "bad_request"},
		{"unknown chart kind", http.MethodGet, "/api/chart?kind=line", "", 400, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, "application/json", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			body := decode[ErrorBody](t, rr)
			assert.Equal(t, tt.wantErr, body.Code)
		})
	}

	assert.Empty(t, decode[[]recordView](t, do(t, srv, http.MethodGet, "/api/records", "", "")))
}

func TestStorageFailureIs500AndRollsBack(t *testing.T) {
	svc := services.NewChargingService(brokenRepo{memory.New()})
	srv := NewServer(":0", svc)
	defer srv.Shutdown(context.Background())

	rr := do(t, srv, http.MethodPost, "/api/records", "application/json",
		`{"date":"2024-01-01","energy_kwh":1,"cost":1}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "disk full")
	assert.Empty(t, svc.Records())
}

func TestSummaryAndChart(t *testing.T) {
	srv := newTestServer(t)
	for _, body := range []string{
		`{"date":"2024-01-03","energy_kwh":10,"cost":100,"charge_percent":50}`,
		`{"date":"2024-02-10","energy_kwh":20,"cost":150,"charge_percent":80}`,
		`{"date":"2024-01-28","energy_kwh":5,"cost":60,"charge_percent":100}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/records", "application/json", body).Code)
	}

	rows := decode[[]core.SummaryRow](t, do(t, srv, http.MethodGet, "/api/summary", "", ""))
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-01", rows[0].MonthKey)
	assert.InDelta(t, 160.0/15.0, rows[0].CostPerKwh, 1e-9)
	assert.True(t, rows[2].IsTotal)
	assert.InDelta(t, 310.0/35.0, rows[2].CostPerKwh, 1e-9)

	chart := decode[core.Chart](t, do(t, srv, http.MethodGet, "/api/chart?view=monthly&kind=bar", "", ""))
	assert.Equal(t, []string{"2024-01", "2024-02"}, chart.Labels)

	chart = decode[core.Chart](t, do(t, srv, http.MethodGet, "/api/chart", "", ""))
	assert.Equal(t, core.ViewRecords, chart.View)
	assert.Len(t, chart.Labels, 3)
}

func TestImportAndExport(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/import", "text/csv",
		"date;energy_kwh;cost\n2024-01-01;10;5\n2024-01-02;0;5\n")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[services.ImportResult](t, rr)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 3, res.Rejected[0].Line)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "sessions.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("Tarih,Tüketim (kWh),Maliyet (₺)\n2024-02-01,7,3\n"))
	require.NoError(t, mw.Close())
	rr = do(t, srv, http.MethodPost, "/api/import", mw.FormDataContentType(), buf.String())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodPost, "/api/import", "text/csv", "foo,bar\n1,2\n")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/export", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	assert.Len(t, lines, 3)
}

func TestOversizedBodiesAreRejected(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/records", "application/json",
		`{"date":"2024-01-01","energy_kwh":1,"cost":1}`).Code)

	// The cap falls inside the February row; nothing may be imported.
	var csv strings.Builder
	csv.WriteString("date,energy_kwh,cost\n")
	for csv.Len() < maxBodyBytes-8 {
		csv.WriteString("2024-01-15,10,5\n")
	}
	csv.WriteString("2024-02-01,10,150\n2024-03-01,10,200\n")

	rr := do(t, srv, http.MethodPost, "/api/import", "text/csv", csv.String())
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "payload_too_large", decode[ErrorBody](t, rr).Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "sessions.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(csv.String()))
	require.NoError(t, mw.Close())
	rr = do(t, srv, http.MethodPost, "/api/import", mw.FormDataContentType(), buf.String())
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	form := "date=2024-04-01&energy_kwh=10&location=" + strings.Repeat("x", maxBodyBytes) + "&cost=150"
	rr = do(t, srv, http.MethodPost, "/api/records", "application/x-www-form-urlencoded", form)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	rr = do(t, srv, http.MethodPut, "/api/records/0", "application/x-www-form-urlencoded", form)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	entries := srv.svc.Records()
	require.Len(t, entries, 1, "store must be unchanged")
	assert.Equal(t, 1.0, entries[0].Record.Cost)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/records", "application/json", `{"date":"2024-01-01","energy_kwh":1,"cost":1}`)
	do(t, srv, http.MethodGet, "/api/summary", "", "")

	rr := do(t, srv, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `evcharge_http_requests_total{method="POST",route="POST /api/records",status="201"} 1`)
	assert.Contains(t, body, `evcharge_record_mutations_total{operation="create",outcome="success"} 1`)
	assert.Contains(t, body, "evcharge_records 1")
}

func TestRateLimitOnMutations(t *testing.T) {
	svc := services.NewChargingService(memory.New())
	srv := NewServer(":0", svc, WithRateLimit(1))
	defer srv.Shutdown(context.Background())

	body := `{"date":"2024-01-01","energy_kwh":1,"cost":1}`
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/records", "application/json", body).Code)
	rr := do(t, srv, http.MethodPost, "/api/records", "application/json", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/records", "", "").Code)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/api/summary", "", "")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))
}
