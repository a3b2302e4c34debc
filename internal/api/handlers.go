package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Subicson333/verify/internal/derivation"
	"github.com/Subicson333/verify/internal/domain"
	"github.com/Subicson333/verify/internal/exceptions"
	"github.com/Subicson333/verify/internal/lifecycle"
	"github.com/Subicson333/verify/internal/metrics"
)

const maxBodyBytes = 1 << 20

type submissionStore interface {
	PutSubmission(ctx context.Context, submissionID string, payload []byte) (string, error)
}

type Handler struct {
	svc         *lifecycle.Service
	detector    *exceptions.Detector
	submissions submissionStore
	log         *zap.Logger
	now         func() time.Time
}

// NewHandler wires the HTTP surface. submissions may be nil, in which case
// verification submissions are rejected as unavailable.
func NewHandler(svc *lifecycle.Service, detector *exceptions.Detector, submissions submissionStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:         svc,
		detector:    detector,
		submissions: submissions,
		log:         log,
		now:         time.Now,
	}
}

type caseDisplay struct {
	StatusLabel          string `json:"statusLabel"`
	StatusBadgeColor     string `json:"statusBadgeColor"`
	ScoreBadgeColor      string `json:"scoreBadgeColor"`
	SLARiskLabel         string `json:"slaRiskLabel"`
	IsBlockingOnboarding bool   `json:"isBlockingOnboarding"`
}

type caseResponse struct {
	domain.Case
	Display caseDisplay `json:"display"`
}

// checklistSummaryResponse keeps the counts at the top level next to caseId.
type checklistSummaryResponse struct {
	CaseID string `json:"caseId"`
	domain.ChecklistSummary
	OverallStatus domain.Status       `json:"overallStatus"`
	OverallScore  domain.OverallScore `json:"overallScore"`
}

type ingestResponse struct {
	domain.IngestResult
	Case caseResponse `json:"case"`
}

type exceptionActionRequest struct {
	CaseID     string               `json:"caseId"`
	Kind       domain.ExceptionKind `json:"kind"`
	Action     string               `json:"action"`
	AssignedTo string               `json:"assignedTo,omitempty"`
	Notes      string               `json:"notes,omitempty"`
}

func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	body, ok := readBody(w, r)
	if !ok {
		return
	}
	payload, err := domain.DecodeCreateCasePayload(body)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := h.svc.CreateCase(ctx, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present(c))
}

func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter, err := parseCaseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cases, err := h.svc.ListCases(ctx, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]caseResponse, 0, len(cases))
	for _, c := range cases {
		out = append(out, h.present(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request, caseID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.svc.GetCase(ctx, caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(c))
}

func (h *Handler) UpdateCheck(w http.ResponseWriter, r *http.Request, caseID, rawCheckType string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checkType, err := domain.ParseCheckType(rawCheckType)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload domain.UpdateCheckStatusPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	status, upd, err := domain.ParseCheckUpdate(payload)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := h.svc.UpdateCheck(ctx, caseID, checkType, status, upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(c))
}

func (h *Handler) RecordAdminDecision(w http.ResponseWriter, r *http.Request, caseID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var payload domain.AdminDecisionPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	c, err := h.svc.RecordDecision(ctx, caseID, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(c))
}

func (h *Handler) VendorWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, ok := readBody(w, r)
	if !ok {
		return
	}
	update, err := domain.DecodeVendorUpdate(body)
	if err != nil {
		writeError(w, err)
		return
	}
	result, c, err := h.svc.IngestVendorUpdate(ctx, update)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, ingestResponse{IngestResult: result, Case: h.present(c)})
}

func (h *Handler) ChecklistSummary(w http.ResponseWriter, r *http.Request, caseID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, summary, err := h.svc.ChecklistSummary(ctx, caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checklistSummaryResponse{
		CaseID:           c.CaseID,
		ChecklistSummary: summary,
		OverallStatus:    c.OverallStatus,
		OverallScore:     c.OverallScore,
	})
}

// SubmitVerification stores the posted JSON object as-is. Nothing is derived from it.
func (h *Handler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if h.submissions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "submission storage is not configured"})
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		writeError(w, domain.NewValidationError("", "body must be a JSON object"))
		return
	}

	submissionID := uuid.NewString()
	objectKey, err := h.submissions.PutSubmission(ctx, submissionID, body)
	if err != nil {
		h.log.Error("store verification submission", zap.String("submission_id", submissionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to store submission"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"submissionId": submissionID,
		"objectKey":    objectKey,
	})
}

func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := domain.ExceptionStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, domain.NewValidationError("status", fmt.Sprintf("unknown exception status %q", status)))
		return
	}
	cases, err := h.svc.ListCases(ctx, lifecycle.CaseFilter{})
	if err != nil {
		writeError(w, err)
		return
	}
	records := h.detector.Derive(cases)
	for kind, n := range exceptions.CountByKind(records) {
		metrics.ExceptionsDerived.WithLabelValues(string(kind)).Set(float64(n))
	}
	writeJSON(w, http.StatusOK, exceptions.FilterByStatus(records, status))
}

// ExceptionAction applies acknowledge, assign or resolve to a freshly derived
// record and returns the result. The change is not persisted.
func (h *Handler) ExceptionAction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req exceptionActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.GetCase(ctx, req.CaseID)
	if err != nil {
		writeError(w, err)
		return
	}
	var target *domain.ExceptionRecord
	for _, rec := range h.detector.Derive([]domain.Case{c}) {
		if rec.Kind == req.Kind {
			rec := rec
			target = &rec
			break
		}
	}
	if target == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no open exception of that kind"})
		return
	}

	now := h.now().UTC()
	var out domain.ExceptionRecord
	switch req.Action {
	case "acknowledge":
		out = exceptions.Acknowledge(*target, now)
	case "assign":
		out, err = exceptions.Assign(*target, req.AssignedTo, now)
		if err != nil {
			writeError(w, err)
			return
		}
	case "resolve":
		out = exceptions.Resolve(*target, req.Notes, now)
	default:
		writeError(w, domain.NewValidationError("action", "must be one of acknowledge, assign, resolve"))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.svc.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (h *Handler) present(c domain.Case) caseResponse {
	return caseResponse{
		Case: c,
		Display: caseDisplay{
			StatusLabel:          derivation.StatusLabel(c.OverallStatus),
			StatusBadgeColor:     derivation.StatusBadgeColor(c.OverallStatus),
			ScoreBadgeColor:      derivation.ScoreBadgeColor(c.OverallScore),
			SLARiskLabel:         derivation.SLARiskLabel(c.SLARisk, c.StartDate, h.now(), h.svc.Manager().SLAThresholdDays),
			IsBlockingOnboarding: derivation.IsBlockingOnboarding(c.OverallStatus, c.OverallScore),
		},
	}
}

func parseCaseFilter(r *http.Request) (lifecycle.CaseFilter, error) {
	q := r.URL.Query()
	f := lifecycle.CaseFilter{
		Status: domain.Status(q.Get("status")),
		Owner:  q.Get("owner"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return lifecycle.CaseFilter{}, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	from, err := domain.ParseOptionalDate("startDateFrom", q.Get("startDateFrom"))
	if err != nil {
		return lifecycle.CaseFilter{}, err
	}
	to, err := domain.ParseOptionalDate("startDateTo", q.Get("startDateTo"))
	if err != nil {
		return lifecycle.CaseFilter{}, err
	}
	f.StartDateFrom = from
	f.StartDateTo = to
	return f, nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read body"})
		return nil, false
	}
	if len(body) > maxBodyBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "body exceeds size limit"})
		return nil, false
	}
	return body, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json payload"})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case domain.IsValidation(err), errors.Is(err, domain.ErrCheckNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateOrder), errors.Is(err, domain.ErrVendorReferenceConflict),
		errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
