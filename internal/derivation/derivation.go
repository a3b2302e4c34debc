// Package derivation turns per-check state into case-level status, score and
// SLA signals. Every function here is pure: no I/O, no clock reads, no mutation.
package derivation

import (
	"math"
	"time"

	"github.com/Subicson333/verify/internal/domain"
)

// DefaultSLAThresholdDays is the window before a start date in which a case is at SLA risk.
const DefaultSLAThresholdDays = 3

const day = 24 * time.Hour

// OverallStatus applies, first match wins: any ERROR, any COMPLETED_REVIEW,
// every required check COMPLETED_CLEAR, otherwise IN_PROGRESS.
func OverallStatus(checks []domain.Check) domain.Status {
	if anyStatus(checks, domain.StatusError) {
		return domain.StatusError
	}
	if anyStatus(checks, domain.StatusCompletedReview) {
		return domain.StatusCompletedReview
	}
	if requiredCleared(checks) {
		return domain.StatusCompletedClear
	}
	return domain.StatusInProgress
}

// OverallScore is NEEDS_REVIEW when any check is COMPLETED_REVIEW or ERROR,
// CLEAR when every required check is COMPLETED_CLEAR, and PENDING otherwise.
func OverallScore(checks []domain.Check) domain.OverallScore {
	if anyStatus(checks, domain.StatusCompletedReview, domain.StatusError) {
		return domain.ScoreNeedsReview
	}
	if requiredCleared(checks) {
		return domain.ScoreClear
	}
	return domain.ScorePending
}

// DaysUntil is the number of whole days until start, rounded up.
func DaysUntil(start, now time.Time) int {
	return int(math.Ceil(float64(start.Sub(now)) / float64(day)))
}

// SLARisk is true iff 0 <= ceil(days until start) <= thresholdDays.
// A start date already in the past is not at risk here.
func SLARisk(start, now time.Time, thresholdDays int) bool {
	days := DaysUntil(start, now)
	return days >= 0 && days <= thresholdDays
}

// SLARiskLabel is the display label for a case's SLA state. Unlike SLARisk,
// a start date on or before today is shown as overdue. thresholdDays must be the
// value the flag was derived with.
func SLARiskLabel(slaRisk bool, start, now time.Time, thresholdDays int) string {
	if !slaRisk {
		return "On Track"
	}
	days := DaysUntil(start, now)
	if days <= 0 {
		return "Overdue"
	}
	if days <= thresholdDays {
		return "Critical"
	}
	return "On Track"
}

var statusLabels = map[domain.Status]string{
	domain.StatusNew:             "Not Started",
	domain.StatusInvited:         "Awaiting Candidate",
	domain.StatusPending:         "Pending",
	domain.StatusInProgress:      "In Progress",
	domain.StatusCompletedClear:  "Clear",
	domain.StatusCompletedReview: "Needs Review",
	domain.StatusError:           "Error",
}

// StatusLabel falls back to the raw status for unknown values.
func StatusLabel(status domain.Status) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

var checkTypeLabels = map[domain.CheckType]string{
	domain.CheckIdentityVerification:   "Identity Verification",
	domain.CheckCriminalHistory:        "Criminal History Check",
	domain.CheckEmploymentVerification: "Employment Verification",
	domain.CheckEducationVerification:  "Education Verification",
	domain.CheckRightToWork:            "Right-to-Work Eligibility (I-9)",
}

func CheckTypeLabel(t domain.CheckType) string {
	if label, ok := checkTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

func ScoreBadgeColor(score domain.OverallScore) string {
	switch score {
	case domain.ScoreClear:
		return "green"
	case domain.ScoreNeedsReview:
		return "red"
	case domain.ScorePending:
		return "amber"
	}
	return ""
}

func StatusBadgeColor(status domain.Status) string {
	switch status {
	case domain.StatusCompletedClear:
		return "green"
	case domain.StatusCompletedReview, domain.StatusError:
		return "red"
	case domain.StatusInProgress, domain.StatusInvited:
		return "amber"
	default:
		return "gray"
	}
}

// IsBlockingOnboarding reports whether a case still prevents the candidate from starting.
func IsBlockingOnboarding(status domain.Status, score domain.OverallScore) bool {
	return score != domain.ScoreClear || status != domain.StatusCompletedClear
}

// ChecklistSummary counts checks by completion outcome.
func ChecklistSummary(checks []domain.Check) domain.ChecklistSummary {
	s := domain.ChecklistSummary{Total: len(checks)}
	for _, c := range checks {
		switch {
		case c.Status == domain.StatusCompletedClear:
			s.Completed++
			s.Clear++
		case c.Status == domain.StatusCompletedReview:
			s.Completed++
			s.NeedsReview++
		}
	}
	s.Pending = s.Total - s.Completed
	return s
}

func anyStatus(checks []domain.Check, statuses ...domain.Status) bool {
	for _, c := range checks {
		for _, s := range statuses {
			if c.Status == s {
				return true
			}
		}
	}
	return false
}

func requiredCleared(checks []domain.Check) bool {
	for _, c := range checks {
		if c.IsRequired && c.Status != domain.StatusCompletedClear {
			return false
		}
	}
	return true
}
