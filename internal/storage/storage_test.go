package storage

import (
	"fmt"
	"time"

	"github.com/Subicson333/verify/internal/domain"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func sampleCase(n int) domain.Case {
	created := baseTime.Add(time.Duration(n) * time.Minute)
	return domain.Case{
		CaseID:         fmt.Sprintf("case-%d", n),
		OrderID:        fmt.Sprintf("ORD-%d", n),
		CandidateName:  "Jordan Lee",
		CandidateEmail: "jordan.lee@example.com",
		StartDate:      baseTime.Add(14 * 24 * time.Hour),
		Checks: []domain.Check{{
			CheckID:     fmt.Sprintf("check-%d", n),
			CheckType:   domain.CheckCriminalHistory,
			Label:       "Criminal History",
			Status:      domain.StatusNew,
			StatusLabel: "New",
			IsRequired:  true,
			LastUpdated: created,
			UpdatedAt:   created,
		}},
		OverallStatus:          domain.StatusNew,
		OverallScore:           domain.ScorePending,
		AdminDecision:          domain.DecisionInProgress,
		Owner:                  "hr@example.com",
		CreatedAt:              created,
		UpdatedAt:              created,
		SecurityClassification: domain.SecuritySensitive,
		Version:                1,
	}
}
