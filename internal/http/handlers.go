package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"evcharge/internal/core"
	"evcharge/internal/importer"
	applog "evcharge/internal/log"
	"evcharge/internal/session"
)

// recordView is the flat JSON form of a stored record.
type recordView struct {
	ID            int64     `json:"id"`
	Position      int       `json:"position"`
	Date          core.Date `json:"date"`
	EnergyKwh     float64   `json:"energy_kwh"`
	Cost          float64   `json:"cost"`
	Location      string    `json:"location"`
	ChargePercent *int      `json:"charge_percent"`
}

func newRecordView(e session.Entry) recordView {
	v := recordView{
		ID:        e.ID,
		Position:  e.Position,
		Date:      e.Record.Date,
		EnergyKwh: e.Record.EnergyKwh,
		Cost:      e.Record.Cost,
		Location:  e.Record.Location,
	}
	if e.Record.HasChargePercent() {
		p := e.Record.ChargePercent
		v.ChargePercent = &p
	}
	return v
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"records": len(s.svc.Records()),
	}

	if s.ready == nil {
		checks["backend"] = "ok"
	} else if err := s.ready.Ping(ctx); err != nil {
		checks["backend"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	entries := s.svc.Records()
	out := make([]recordView, 0, len(entries))
	for _, e := range entries {
		out = append(out, newRecordView(e))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		RequestBodyError(err).Write(w)
		return
	}

	entry, err := s.svc.Add(r.Context(), p.Candidate())
	s.metrics.ObserveMutation(applog.OpCreate, err)
	if err != nil {
		s.writeMutationError(w, r, applog.OpCreate, -1, err)
		return
	}

	s.logRecord(r.Context(), "Charging record created", applog.OpCreate, entry)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/records/%d", entry.Position)).
		Body(newRecordView(entry)).
		Write(w)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	pos, err := ParsePosition(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		RequestBodyError(err).Write(w)
		return
	}

	entry, err := s.svc.Update(r.Context(), pos, p.Candidate())
	s.metrics.ObserveMutation(applog.OpUpdate, err)
	if err != nil {
		s.writeMutationError(w, r, applog.OpUpdate, pos, err)
		return
	}

	s.logRecord(r.Context(), "Charging record updated", applog.OpUpdate, entry)
	NewJSONResponse().Body(newRecordView(entry)).Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	pos, err := ParsePosition(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	err = s.svc.Delete(r.Context(), pos)
	s.metrics.ObserveMutation(applog.OpDelete, err)
	if err != nil {
		s.writeMutationError(w, r, applog.OpDelete, pos, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Charging record deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldPosition, pos)
	w.WriteHeader(http.StatusNoContent)
}

// handleImport accepts a multipart upload in field "file" or a raw CSV body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := importBody(w, r)
	if err != nil {
		RequestBodyError(err).Write(w)
		return
	}
	if c, ok := body.(io.Closer); ok {
		defer c.Close()
	}

	res, err := s.svc.Import(r.Context(), body)
	s.metrics.ObserveMutation(applog.OpImport, err)
	if err != nil {
		s.writeMutationError(w, r, applog.OpImport, -1, err)
		return
	}
	s.metrics.ObserveImport(res.Imported, len(res.Rejected))

	applog.FromContext(r.Context()).InfoContext(r.Context(), "CSV import processed",
		applog.FieldOperation, applog.OpImport,
		"imported", res.Imported,
		"rejected", len(res.Rejected))
	NewJSONResponse().Body(res).Write(w)
}

func importBody(w http.ResponseWriter, r *http.Request) (io.Reader, error) {
	data, err := readBody(w, r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = io.NopCloser(bytes.NewReader(data))
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file field: %w", err)
		}
		return f, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty CSV body")
	}
	return bytes.NewReader(data), nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := importer.Encode(&buf, s.svc.All()); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "CSV export failed",
			applog.FieldOperation, applog.OpExport,
			applog.FieldError, err)
		InternalServerError("export failed").Write(w)
		return
	}
	NewJSONResponse().
		Header("Content-Disposition", `attachment; filename="charging_sessions.csv"`).
		Raw("text/csv; charset=utf-8", buf.Bytes()).
		Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.svc.Table()).Write(w)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	view, kind, err := ParseChartParams(r.URL.Query())
	if err != nil {
		ErrorFromDomain(err).Write(w)
		return
	}
	chart, err := s.svc.Chart(view, kind)
	if err != nil {
		ErrorFromDomain(err).Write(w)
		return
	}
	NewJSONResponse().Body(chart).Write(w)
}

func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, op string, pos int, err error) {
	logger := applog.FromContext(r.Context())
	fields := applog.NewFields().
		WithOperation(op).
		WithError(err)
	fields[applog.FieldPosition] = pos

	switch {
	case core.IsValidationError(err):
		fields[applog.FieldErrorCode] = core.ErrorCode(err)
		logger.WarnContext(r.Context(), "Charging record rejected", fields.ToSlice()...)
	case errors.Is(err, session.ErrIndexOutOfRange):
		logger.WarnContext(r.Context(), "Charging record not found", fields.ToSlice()...)
	default:
		logger.ErrorContext(r.Context(), "Charging record mutation failed", fields.ToSlice()...)
	}
	ErrorFromDomain(err).Write(w)
}

func (s *Server) logRecord(ctx context.Context, msg, op string, e session.Entry) {
	fields := applog.NewFields().
		WithOperation(op).
		WithRecord(e.Position, e.Record.Date.String(), e.Record.EnergyKwh, e.Record.Cost)
	applog.FromContext(ctx).InfoContext(ctx, msg, fields.ToSlice()...)
}
