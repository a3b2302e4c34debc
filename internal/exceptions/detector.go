// Package exceptions flags cases that need human attention. Records are
// derived from current case state on every call and never stored.
package exceptions

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Subicson333/verify/internal/domain"
)

const DefaultStalledAfterDays = 7

type Detector struct {
	SLAThresholdDays int
	StalledAfterDays int
	now              func() time.Time
}

func NewDetector(slaThresholdDays, stalledAfterDays int, now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{
		SLAThresholdDays: slaThresholdDays,
		StalledAfterDays: stalledAfterDays,
		now:              now,
	}
}

// Derive runs every rule against every case. Output follows case order, and
// within a case the rule order: SLA risk, needs review, error, stalled.
func (d *Detector) Derive(cases []domain.Case) []domain.ExceptionRecord {
	now := d.now().UTC()
	out := make([]domain.ExceptionRecord, 0)
	for _, c := range cases {
		if c.SLARisk {
			status := domain.ExceptionAcknowledged
			if c.AdminDecision == domain.DecisionInProgress {
				status = domain.ExceptionUnreviewed
			}
			out = append(out, record(c, domain.ExceptionSLAAtRisk, status,
				fmt.Sprintf("SLA at risk: start date within %d days", d.SLAThresholdDays)))
		}
		if c.OverallStatus == domain.StatusCompletedReview {
			out = append(out, record(c, domain.ExceptionNeedsReview, domain.ExceptionAcknowledged,
				"Background check requires admin review"))
		}
		if c.OverallStatus == domain.StatusError {
			out = append(out, record(c, domain.ExceptionError, domain.ExceptionUnreviewed,
				"Background check error: vendor or system issue"))
		}
		if c.OverallStatus == domain.StatusInProgress {
			if days := daysSince(c.UpdatedAt, now); days > d.StalledAfterDays {
				out = append(out, record(c, domain.ExceptionStalled, domain.ExceptionAcknowledged,
					fmt.Sprintf("Background check stalled: in-progress for %d days", days)))
			}
		}
	}
	return out
}

func record(c domain.Case, kind domain.ExceptionKind, status domain.ExceptionStatus, reason string) domain.ExceptionRecord {
	return domain.ExceptionRecord{
		CaseID:        c.CaseID,
		OrderID:       c.OrderID,
		CandidateName: c.CandidateName,
		Kind:          kind,
		Reason:        reason,
		Status:        status,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func daysSince(t, now time.Time) int {
	return int(math.Floor(float64(now.Sub(t)) / float64(24*time.Hour)))
}

// Acknowledge, Assign and Resolve return an updated copy of the record. Nothing is persisted.
func Acknowledge(r domain.ExceptionRecord, now time.Time) domain.ExceptionRecord {
	r.Status = domain.ExceptionAcknowledged
	r.UpdatedAt = now
	return r
}

func Assign(r domain.ExceptionRecord, assignee string, now time.Time) (domain.ExceptionRecord, error) {
	if strings.TrimSpace(assignee) == "" {
		return domain.ExceptionRecord{}, domain.NewValidationError("assignedTo", "is required")
	}
	r.Status = domain.ExceptionAssigned
	r.AssignedTo = assignee
	r.UpdatedAt = now
	return r, nil
}

func Resolve(r domain.ExceptionRecord, notes string, now time.Time) domain.ExceptionRecord {
	r.Status = domain.ExceptionResolved
	if notes != "" {
		r.Notes = notes
	}
	r.UpdatedAt = now
	return r
}

func FilterByStatus(records []domain.ExceptionRecord, status domain.ExceptionStatus) []domain.ExceptionRecord {
	if status == "" {
		return records
	}
	out := make([]domain.ExceptionRecord, 0, len(records))
	for _, r := range records {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// CountByKind is used to publish exception gauges.
func CountByKind(records []domain.ExceptionRecord) map[domain.ExceptionKind]int {
	counts := map[domain.ExceptionKind]int{
		domain.ExceptionSLAAtRisk:   0,
		domain.ExceptionNeedsReview: 0,
		domain.ExceptionError:       0,
		domain.ExceptionStalled:     0,
	}
	for _, r := range records {
		counts[r.Kind]++
	}
	return counts
}
