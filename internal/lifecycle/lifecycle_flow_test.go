package lifecycle

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Subicson333/verify/internal/domain"
)

var _ = Describe("Background check case flow", Ordered, func() {
	var (
		svc   *Service
		clock *testClock
		ctx   context.Context
		c     domain.Case
	)

	BeforeAll(func() {
		var m *Manager
		m, clock = newTestManager()
		svc = NewService(newFakeRepo(), m, zap.NewNop())
		ctx = context.Background()
	})

	It("opens a case with five new checks", func() {
		var err error
		c, err = svc.CreateCase(ctx, payload("ORD-FLOW", "2026-03-20"))
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Checks).To(HaveLen(5))
		Expect(c.OverallStatus).To(Equal(domain.StatusInProgress))
		Expect(c.OverallScore).To(Equal(domain.ScorePending))
		Expect(c.Timeline).To(HaveLen(2))
	})

	It("clears every required check while education is still outstanding", func() {
		for _, ct := range []domain.CheckType{
			domain.CheckIdentityVerification,
			domain.CheckCriminalHistory,
			domain.CheckEmploymentVerification,
			domain.CheckRightToWork,
		} {
			clock.advance(time.Hour)
			var err error
			c, err = svc.UpdateCheck(ctx, c.CaseID, ct, domain.StatusCompletedClear, domain.CheckUpdate{UpdatedBy: "ops"})
			Expect(err).ToNot(HaveOccurred())
		}
		Expect(c.OverallStatus).To(Equal(domain.StatusCompletedClear))
		Expect(c.OverallScore).To(Equal(domain.ScoreClear))

		summary := svc.Manager().ChecklistSummary(c)
		Expect(summary).To(Equal(domain.ChecklistSummary{Total: 5, Completed: 4, Clear: 4, Pending: 1}))
	})

	It("drops back to review when a vendor reports a hit", func() {
		_, err := svc.UpdateCheck(ctx, c.CaseID, domain.CheckCriminalHistory, domain.StatusCompletedClear, domain.CheckUpdate{VendorReference: "CRIM-1"})
		Expect(err).ToNot(HaveOccurred())

		res, updated, err := svc.IngestVendorUpdate(ctx, domain.VendorUpdate{
			Vendor:          "Acme Screening",
			VendorReference: "CRIM-1",
			Status:          domain.StatusCompletedReview,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(res.CaseID).To(Equal(c.CaseID))
		Expect(updated.OverallStatus).To(Equal(domain.StatusCompletedReview))
		Expect(updated.OverallScore).To(Equal(domain.ScoreNeedsReview))
		c = updated
	})

	It("records an admin override without touching derived values", func() {
		decided, err := svc.RecordDecision(ctx, c.CaseID, domain.AdminDecisionPayload{
			Decision:  domain.DecisionApproved,
			Reasoning: "hit unrelated to role",
			DecidedBy: "lead@example.com",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(decided.AdminDecision).To(Equal(domain.DecisionApproved))
		Expect(decided.OverallScore).To(Equal(domain.ScoreNeedsReview))

		types := make([]domain.EventType, 0, len(decided.Timeline))
		for _, e := range decided.Timeline {
			types = append(types, e.EventType)
		}
		Expect(types[0]).To(Equal(domain.EventCreated))
		Expect(types[len(types)-1]).To(Equal(domain.EventAdminDecision))
		Expect(types).To(ContainElement(domain.EventCheckUpdated))
		Expect(types).To(ContainElement(domain.EventScoreChange))
	})
})
