package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Subicson333/verify/internal/derivation"
	"github.com/Subicson333/verify/internal/domain"
)

const systemActor = "system"

// Manager applies case transitions. Every method takes a case value and
// returns a new one; the input is never modified.
type Manager struct {
	SLAThresholdDays int
	now              func() time.Time
	newID            func() string
}

type ManagerOption func(*Manager)

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func WithIDGenerator(newID func() string) ManagerOption {
	return func(m *Manager) { m.newID = newID }
}

func WithSLAThresholdDays(days int) ManagerOption {
	return func(m *Manager) { m.SLAThresholdDays = days }
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		SLAThresholdDays: derivation.DefaultSLAThresholdDays,
		now:              time.Now,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Now() time.Time {
	return m.now().UTC()
}

// CreateNewCase builds a case with one NEW check per check type and a two-event timeline.
func (m *Manager) CreateNewCase(p domain.CreateCasePayload) (domain.Case, error) {
	startDate, err := domain.ValidateCreatePayload(p)
	if err != nil {
		return domain.Case{}, err
	}
	now := m.Now()

	candidateID := p.CandidateID
	if candidateID == "" {
		candidateID = "cand_" + p.OrderID
	}

	checks := make([]domain.Check, 0, len(domain.CheckTypes))
	for _, t := range domain.CheckTypes {
		checks = append(checks, domain.Check{
			CheckID:     m.newID(),
			CheckType:   t,
			Label:       derivation.CheckTypeLabel(t),
			Status:      domain.StatusNew,
			StatusLabel: derivation.StatusLabel(domain.StatusNew),
			IsRequired:  t.Required(),
			LastUpdated: now,
			UpdatedAt:   now,
		})
	}

	c := domain.Case{
		CaseID:                 m.newID(),
		OrderID:                p.OrderID,
		CandidateID:            candidateID,
		CandidateName:          p.CandidateName,
		CandidateEmail:         p.CandidateEmail,
		StartDate:              startDate,
		Checks:                 checks,
		OverallStatus:          derivation.OverallStatus(checks),
		OverallScore:           derivation.OverallScore(checks),
		AdminDecision:          domain.DecisionInProgress,
		Owner:                  p.Owner,
		SLARisk:                derivation.SLARisk(startDate, now, m.SLAThresholdDays),
		CreatedAt:              now,
		UpdatedAt:              now,
		SecurityClassification: domain.SecuritySensitive,
	}
	c.Timeline = []domain.TimelineEvent{
		domain.NewTimelineEvent(m.newID(), now,
			"Background check order created",
			fmt.Sprintf("Case created for %s", p.CandidateName),
			p.Owner,
			domain.CreatedDetail{CandidateName: p.CandidateName, Owner: p.Owner},
		),
		domain.NewTimelineEvent(m.newID(), now,
			"Status: New",
			"Awaiting invitations to be sent to candidate",
			systemActor,
			domain.StatusChangeDetail{NewStatus: domain.StatusNew},
		),
	}
	return c, nil
}

// UpdateCheckStatus sets one check's status and re-derives the overall status and score.
// A STATUS_CHANGE event is appended only when the check status changed and a
// SCORE_CHANGE event only when the overall score changed. slaRisk is left to the refresh sweep.
func (m *Manager) UpdateCheckStatus(c domain.Case, checkType domain.CheckType, status domain.Status, upd domain.CheckUpdate) (domain.Case, error) {
	if !status.Valid() {
		return domain.Case{}, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	idx := c.CheckIndex(checkType)
	if idx < 0 {
		return domain.Case{}, fmt.Errorf("%w: %s", domain.ErrCheckNotFound, checkType)
	}
	if upd.VendorReference != "" {
		if held := c.VendorReferenceIndex(upd.VendorReference); held >= 0 && held != idx {
			return domain.Case{}, fmt.Errorf("%w: %s", domain.ErrVendorReferenceConflict, upd.VendorReference)
		}
	}

	now := m.Now()
	out := c.Clone()
	ch := &out.Checks[idx]
	oldStatus := ch.Status
	prevScore := out.OverallScore

	ch.Status = status
	ch.StatusLabel = derivation.StatusLabel(status)
	ch.LastUpdated = now
	ch.UpdatedAt = now
	if upd.VendorReference != "" {
		ch.VendorReference = upd.VendorReference
	}
	if upd.Notes != "" {
		ch.Notes = upd.Notes
	}
	if upd.CompletedAt != nil {
		t := *upd.CompletedAt
		ch.CompletedAt = &t
	}
	if upd.EstimatedCompletionDate != nil {
		t := *upd.EstimatedCompletionDate
		ch.EstimatedCompletionDate = &t
	}

	out.OverallStatus = derivation.OverallStatus(out.Checks)
	out.OverallScore = derivation.OverallScore(out.Checks)

	actor := upd.UpdatedBy
	if actor == "" {
		actor = systemActor
	}
	if oldStatus != status {
		out.Timeline = append(out.Timeline, domain.NewTimelineEvent(m.newID(), now,
			fmt.Sprintf("%s: %s", checkType, ch.StatusLabel),
			fmt.Sprintf("%s status changed from %s to %s", checkType, oldStatus, status),
			actor,
			domain.StatusChangeDetail{
				CheckType:       checkType,
				OldStatus:       oldStatus,
				NewStatus:       status,
				VendorReference: upd.VendorReference,
				Notes:           upd.Notes,
				CompletedAt:     ch.CompletedAt,
			},
		))
	}
	if prevScore != out.OverallScore {
		out.Timeline = append(out.Timeline, domain.NewTimelineEvent(m.newID(), now,
			fmt.Sprintf("Score: %s", out.OverallScore),
			fmt.Sprintf("Overall score changed from %s to %s", prevScore, out.OverallScore),
			systemActor,
			domain.ScoreChangeDetail{PreviousScore: prevScore, NewScore: out.OverallScore},
		))
	}
	out.UpdatedAt = now
	return out, nil
}

// RecordAdminDecision sets the admin decision. Derived status and score are not consulted.
func (m *Manager) RecordAdminDecision(c domain.Case, p domain.AdminDecisionPayload) (domain.Case, error) {
	if err := domain.ValidateAdminDecision(p); err != nil {
		return domain.Case{}, err
	}
	now := m.Now()
	out := c.Clone()
	out.AdminDecision = p.Decision
	out.Timeline = append(out.Timeline, domain.NewTimelineEvent(m.newID(), now,
		fmt.Sprintf("Admin Decision: %s", p.Decision),
		p.Reasoning,
		p.DecidedBy,
		domain.AdminDecisionDetail{Decision: p.Decision, Reasoning: p.Reasoning, Notes: p.Notes},
	))
	out.UpdatedAt = now
	return out, nil
}

// ApplyVendorUpdate records a vendor result on the check holding the vendor
// reference. When no check holds it yet, the reference is assigned to the
// check of u.CheckType. Status, score and slaRisk are all re-derived.
func (m *Manager) ApplyVendorUpdate(c domain.Case, u domain.VendorUpdate) (domain.Case, error) {
	if err := domain.ValidateVendorUpdate(u); err != nil {
		return domain.Case{}, err
	}
	idx, err := vendorCheckIndex(c, u)
	if err != nil {
		return domain.Case{}, err
	}
	completion, _ := domain.ParseOptionalDate("completionDate", u.CompletionDate)
	eta, _ := domain.ParseOptionalDate("estimatedCompletionDate", u.EstimatedCompletionDate)

	now := m.Now()
	out := c.Clone()
	ch := &out.Checks[idx]
	prevStatus := ch.Status

	ch.Status = u.Status
	ch.StatusLabel = derivation.StatusLabel(u.Status)
	ch.LastUpdated = now
	ch.UpdatedAt = now
	ch.VendorReference = u.VendorReference
	ch.VendorMetadata = &domain.VendorMetadata{
		Vendor:                  u.Vendor,
		StatusLabel:             u.StatusLabel,
		Score:                   u.Score,
		CompletionDate:          completion,
		EstimatedCompletionDate: eta,
		ReceivedAt:              now,
	}
	if completion != nil && u.Status.Completed() {
		t := *completion
		ch.CompletedAt = &t
	}
	if eta != nil {
		t := *eta
		ch.EstimatedCompletionDate = &t
	}

	out.OverallStatus = derivation.OverallStatus(out.Checks)
	out.OverallScore = derivation.OverallScore(out.Checks)
	out.SLARisk = derivation.SLARisk(out.StartDate, now, m.SLAThresholdDays)
	out.Timeline = append(out.Timeline, domain.NewTimelineEvent(m.newID(), now,
		fmt.Sprintf("%s updated to %s", ch.CheckType, u.Status),
		fmt.Sprintf("Vendor: %s", u.Vendor),
		u.Vendor,
		domain.CheckUpdatedDetail{
			CheckType:       ch.CheckType,
			PreviousStatus:  prevStatus,
			Status:          u.Status,
			Vendor:          u.Vendor,
			VendorReference: u.VendorReference,
		},
	))
	out.UpdatedAt = now
	return out, nil
}

func vendorCheckIndex(c domain.Case, u domain.VendorUpdate) (int, error) {
	if idx := c.VendorReferenceIndex(u.VendorReference); idx >= 0 {
		if u.CheckType != "" && c.Checks[idx].CheckType != u.CheckType {
			return -1, fmt.Errorf("%w: %s is held by %s", domain.ErrVendorReferenceConflict, u.VendorReference, c.Checks[idx].CheckType)
		}
		return idx, nil
	}
	if u.CheckType == "" {
		return -1, domain.NewValidationError("checkType", "is required for an unassigned vendor reference")
	}
	idx := c.CheckIndex(u.CheckType)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %s", domain.ErrCheckNotFound, u.CheckType)
	}
	if existing := c.Checks[idx].VendorReference; existing != "" {
		return -1, fmt.Errorf("%w: %s already carries %s", domain.ErrVendorReferenceConflict, u.CheckType, existing)
	}
	return idx, nil
}

// RefreshSLARisk recomputes slaRisk against the current clock and reports whether it changed.
func (m *Manager) RefreshSLARisk(c domain.Case) (domain.Case, bool) {
	risk := derivation.SLARisk(c.StartDate, m.Now(), m.SLAThresholdDays)
	if risk == c.SLARisk {
		return c, false
	}
	out := c.Clone()
	out.SLARisk = risk
	return out, true
}

func (m *Manager) ChecklistSummary(c domain.Case) domain.ChecklistSummary {
	return derivation.ChecklistSummary(c.Checks)
}
