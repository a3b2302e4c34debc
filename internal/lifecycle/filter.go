package lifecycle

import (
	"time"

	"github.com/Subicson333/verify/internal/domain"
)

// CaseFilter narrows a case listing. Zero fields match everything; date bounds are inclusive.
type CaseFilter struct {
	Status        domain.Status
	Owner         string
	StartDateFrom *time.Time
	StartDateTo   *time.Time
}

func (f CaseFilter) Matches(c domain.Case) bool {
	if f.Status != "" && c.OverallStatus != f.Status {
		return false
	}
	if f.Owner != "" && c.Owner != f.Owner {
		return false
	}
	if f.StartDateFrom != nil && c.StartDate.Before(*f.StartDateFrom) {
		return false
	}
	if f.StartDateTo != nil && c.StartDate.After(*f.StartDateTo) {
		return false
	}
	return true
}

// FilterCases keeps input order.
func FilterCases(cases []domain.Case, f CaseFilter) []domain.Case {
	out := make([]domain.Case, 0, len(cases))
	for _, c := range cases {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

func ComputeStats(cases []domain.Case) domain.CaseStats {
	stats := domain.CaseStats{Total: len(cases)}
	for _, c := range cases {
		switch c.OverallStatus {
		case domain.StatusCompletedClear:
			stats.Clear++
		case domain.StatusCompletedReview:
			stats.NeedsReview++
		case domain.StatusError:
			stats.Error++
		case domain.StatusInProgress:
			stats.InProgress++
		}
		if c.SLARisk {
			stats.SLARisk++
		}
	}
	return stats
}
