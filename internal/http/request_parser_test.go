package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"evcharge/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestBodyParser_Candidate(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        core.Candidate
		wantErr     bool
	}{
		{
			name:        "json with numbers",
			contentType: "application/json",
			body:        `{"date":"2024-01-01","energy_kwh":12.5,"cost":30,"location":" Home ","charge_percent":80}`,
			want:        core.Candidate{Date: "2024-01-01", EnergyKwh: "12.5", Cost: "30", Location: "Home", ChargePercent: "80"},
		},
		{
			name: "json detected without content type",
			body: `  {"date":"2024-01-01","energy_kwh":"7,5","cost":"0","charge_percent":null}`,
			want: core.Candidate{Date: "2024-01-01", EnergyKwh: "7,5", Cost: "0"},
		},
		{
			name:        "form body",
			contentType: "application/x-www-form-urlencoded",
			body:        "date=2024-03-02&energy_kwh=4&cost=2.5&location=Office",
			want:        core.Candidate{Date: "2024-03-02", EnergyKwh: "4", Cost: "2.5", Location: "Office"},
		},
		{
			name: "empty body",
			body: "",
			want: core.Candidate{},
		},
		{
			name:        "malformed json",
			contentType: "application/json",
			body:        `{"date":`,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			p := NewRequestBodyParser(httptest.NewRecorder(), req)
			err := p.Parse()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Candidate())
			assert.NoError(t, p.Parse(), "Parse is idempotent")
		})
	}
}

func TestRequestBodyParser_OversizedBodyFails(t *testing.T) {
	body := "date=2024-01-01&energy_kwh=10&location=" + strings.Repeat("x", maxBodyBytes) + "&cost=150"
	req := httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	err := p.Parse()
	var tooLarge *http.MaxBytesError
	require.True(t, errors.As(err, &tooLarge), "got %v", err)
	assert.Equal(t, core.Candidate{}, p.Candidate())
}

func TestParsePosition(t *testing.T) {
	mux := http.NewServeMux()
	var (
		got int
		err error
	)
	mux.HandleFunc("DELETE /api/records/{position}", func(w http.ResponseWriter, r *http.Request) {
		got, err = ParsePosition(r)
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/records/4", nil))
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/records/x", nil))
	assert.Error(t, err, "non-numeric position")
}

func TestParseChartParams(t *testing.T) {
	view, kind, err := ParseChartParams(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, core.ViewRecords, view)
	assert.Equal(t, core.ChartBar, kind)

	view, kind, err = ParseChartParams(url.Values{"view": {"Monthly"}, "kind": {"PIE"}})
	require.NoError(t, err)
	assert.Equal(t, core.ViewMonthly, view)
	assert.Equal(t, core.ChartPie, kind)

	_, _, err = ParseChartParams(url.Values{"view": {"weekly"}})
	assert.ErrorIs(t, err, core.ErrUnknownChartView)
}
