package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Subicson333/verify/internal/domain"
	"github.com/Subicson333/verify/internal/metrics"
)

type fakeRepo struct {
	mu      sync.Mutex
	cases   map[string]domain.Case
	order   []string
	failPut error
	failGet error
	// conflicts makes the next n puts fail with a version conflict.
	conflicts int
	// beforePut runs once, outside the lock, ahead of the next put.
	beforePut func(domain.Case)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{cases: make(map[string]domain.Case)}
}

func (f *fakeRepo) Get(_ context.Context, caseID string) (domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return domain.Case{}, f.failGet
	}
	c, ok := f.cases[caseID]
	if !ok {
		return domain.Case{}, domain.ErrCaseNotFound
	}
	return c.Clone(), nil
}

func (f *fakeRepo) Put(_ context.Context, c domain.Case) error {
	f.mu.Lock()
	hook := f.beforePut
	f.beforePut = nil
	f.mu.Unlock()
	if hook != nil {
		hook(c)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut != nil {
		return f.failPut
	}
	if f.conflicts > 0 {
		f.conflicts--
		return domain.ErrVersionConflict
	}
	prev, ok := f.cases[c.CaseID]
	if c.Version != prev.Version+1 {
		return domain.ErrVersionConflict
	}
	if !ok {
		f.order = append(f.order, c.CaseID)
	}
	f.cases[c.CaseID] = c.Clone()
	return nil
}

func (f *fakeRepo) List(_ context.Context) ([]domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Case, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.cases[id].Clone())
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *testClock) {
	t.Helper()
	m, clock := newTestManager()
	repo := newFakeRepo()
	return NewService(repo, m, zaptest.NewLogger(t)), repo, clock
}

func TestServiceCreateCaseRejectsDuplicateOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.CreateCase(ctx, payload("ORD-1", "2026-04-01"))
	require.NoError(t, err)

	got, err := svc.GetCase(ctx, c.CaseID)
	require.NoError(t, err)
	require.Equal(t, c.CaseID, got.CaseID)

	_, err = svc.CreateCase(ctx, payload("ORD-1", "2026-05-01"))
	require.ErrorIs(t, err, domain.ErrDuplicateOrder)
}

func TestServiceGetCaseErrors(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetCase(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrCaseNotFound)

	boom := errors.New("connection reset")
	repo.failGet = boom
	_, err = svc.GetCase(ctx, "missing")
	var repoErr *domain.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	require.Equal(t, "get", repoErr.Op)
	require.ErrorIs(t, err, boom)
}

func TestServicePutFailureIsRepositoryError(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.failPut = errors.New("disk full")

	_, err := svc.CreateCase(context.Background(), payload("ORD-2", "2026-04-01"))
	var repoErr *domain.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	require.Equal(t, "put", repoErr.Op)
}

func TestServiceUpdateCheckAndDecision(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.CreateCase(ctx, payload("ORD-3", "2026-04-01"))
	require.NoError(t, err)

	updated, err := svc.UpdateCheck(ctx, c.CaseID, domain.CheckCriminalHistory, domain.StatusCompletedReview, domain.CheckUpdate{UpdatedBy: "ops"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompletedReview, updated.OverallStatus)

	stored, err := repo.Get(ctx, c.CaseID)
	require.NoError(t, err)
	require.Equal(t, updated.Timeline, stored.Timeline)

	decided, err := svc.RecordDecision(ctx, c.CaseID, domain.AdminDecisionPayload{Decision: domain.DecisionRejected, DecidedBy: "lead"})
	require.NoError(t, err)
	require.Equal(t, domain.DecisionRejected, decided.AdminDecision)

	_, err = svc.UpdateCheck(ctx, "nope", domain.CheckCriminalHistory, domain.StatusPending, domain.CheckUpdate{})
	require.ErrorIs(t, err, domain.ErrCaseNotFound)
}

func TestServiceUpdateCheckRejectsReferenceHeldByAnotherCase(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.CreateCase(ctx, payload("ORD-A", "2026-04-01"))
	require.NoError(t, err)
	b, err := svc.CreateCase(ctx, payload("ORD-B", "2026-04-01"))
	require.NoError(t, err)

	_, err = svc.UpdateCheck(ctx, a.CaseID, domain.CheckIdentityVerification, domain.StatusPending, domain.CheckUpdate{VendorReference: "REF-X"})
	require.NoError(t, err)

	_, err = svc.UpdateCheck(ctx, b.CaseID, domain.CheckIdentityVerification, domain.StatusPending, domain.CheckUpdate{VendorReference: "REF-X"})
	require.ErrorIs(t, err, domain.ErrVendorReferenceConflict)

	// re-sending the same reference to the holder is fine
	_, err = svc.UpdateCheck(ctx, a.CaseID, domain.CheckIdentityVerification, domain.StatusInProgress, domain.CheckUpdate{VendorReference: "REF-X"})
	require.NoError(t, err)
}

func vendorUpdate(ref string, ct domain.CheckType, status domain.Status) domain.VendorUpdate {
	return domain.VendorUpdate{Vendor: "Acme", VendorReference: ref, CheckType: ct, Status: status}
}

func TestServiceIngestVendorUpdateResolution(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	existing, err := svc.CreateCase(ctx, payload("ORD-10", "2026-04-01"))
	require.NoError(t, err)

	// by orderId
	u := vendorUpdate("ACME-1", domain.CheckIdentityVerification, domain.StatusInProgress)
	u.VendorData = &domain.VendorCandidateData{OrderID: "ORD-10"}
	res, c, err := svc.IngestVendorUpdate(ctx, u)
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, existing.CaseID, res.CaseID)
	require.Equal(t, "ACME-1", c.Checks[0].VendorReference)

	// by reference
	res, _, err = svc.IngestVendorUpdate(ctx, vendorUpdate("ACME-1", "", domain.StatusCompletedClear))
	require.NoError(t, err)
	require.Equal(t, existing.CaseID, res.CaseID)

	// new case
	u = vendorUpdate("ACME-2", domain.CheckRightToWork, domain.StatusPending)
	u.VendorData = &domain.VendorCandidateData{
		OrderID:        "ORD-11",
		CandidateName:  "Sam Ortiz",
		CandidateEmail: "sam@example.com",
		StartDate:      "2026-05-01",
	}
	res, c, err = svc.IngestVendorUpdate(ctx, u)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, "system", c.Owner)
	require.Len(t, c.Timeline, 3)
	require.Equal(t, domain.EventCheckUpdated, c.Timeline[2].EventType)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestServiceIngestVendorUpdateFailures(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.IngestVendorUpdate(ctx, vendorUpdate("", domain.CheckRightToWork, domain.StatusPending))
	require.True(t, domain.IsValidation(err))

	u := vendorUpdate("ACME-3", domain.CheckRightToWork, domain.StatusPending)
	u.VendorData = &domain.VendorCandidateData{OrderID: "ORD-12", CandidateName: "No Email"}
	_, _, err = svc.IngestVendorUpdate(ctx, u)
	require.True(t, domain.IsValidation(err))
	all, _ := repo.List(ctx)
	require.Empty(t, all)

	a, err := svc.CreateCase(ctx, payload("ORD-13", "2026-04-01"))
	require.NoError(t, err)
	b, err := svc.CreateCase(ctx, payload("ORD-14", "2026-04-01"))
	require.NoError(t, err)
	for _, c := range []domain.Case{a, b} {
		c.Checks[0].VendorReference = "DUP-1"
		c.Version++
		require.NoError(t, repo.Put(ctx, c))
	}
	_, _, err = svc.IngestVendorUpdate(ctx, vendorUpdate("DUP-1", "", domain.StatusPending))
	require.ErrorIs(t, err, domain.ErrVendorReferenceConflict)
}

func TestServiceListStatsAndRefresh(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	soon, err := svc.CreateCase(ctx, payload("ORD-20", "2026-03-12"))
	require.NoError(t, err)
	later, err := svc.CreateCase(ctx, domain.CreateCasePayload{
		OrderID:        "ORD-21",
		CandidateName:  "Kai",
		CandidateEmail: "kai@example.com",
		StartDate:      "2026-06-01",
		Owner:          "other@example.com",
	})
	require.NoError(t, err)
	_, err = svc.UpdateCheck(ctx, later.CaseID, domain.CheckIdentityVerification, domain.StatusError, domain.CheckUpdate{})
	require.NoError(t, err)

	byOwner, err := svc.ListCases(ctx, CaseFilter{Owner: "other@example.com"})
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	require.Equal(t, later.CaseID, byOwner[0].CaseID)

	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	byDate, err := svc.ListCases(ctx, CaseFilter{StartDateTo: &to})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	require.Equal(t, soon.CaseID, byDate[0].CaseID)

	byStatus, err := svc.ListCases(ctx, CaseFilter{Status: domain.StatusError})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.CaseStats{Total: 2, Error: 1, InProgress: 1}, stats)

	clock.advance(8 * 24 * time.Hour)
	changed, atRisk, err := svc.RefreshAllSLARisk(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, changed)
	require.Equal(t, 1, atRisk)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.SLARisk)
}

func TestServiceSerializesMutationsPerCase(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.CreateCase(ctx, payload("ORD-30", "2026-04-01"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, ct := range domain.CheckTypes {
		wg.Add(1)
		go func(ct domain.CheckType) {
			defer wg.Done()
			_, err := svc.UpdateCheck(ctx, c.CaseID, ct, domain.StatusCompletedClear, domain.CheckUpdate{})
			assert.NoError(t, err)
		}(ct)
	}
	wg.Wait()

	final, err := svc.GetCase(ctx, c.CaseID)
	require.NoError(t, err)
	for _, ch := range final.Checks {
		require.Equal(t, domain.StatusCompletedClear, ch.Status)
	}
	require.Equal(t, domain.ScoreClear, final.OverallScore)
}

func TestServiceSLARefreshKeepsConcurrentUpdate(t *testing.T) {
	repo := newFakeRepo()
	apiManager, _ := newTestManager()
	sweepManager, sweepClock := newTestManager()
	api := NewService(repo, apiManager, zaptest.NewLogger(t))
	sweep := NewService(repo, sweepManager, zaptest.NewLogger(t))
	ctx := context.Background()

	c, err := api.CreateCase(ctx, payload("ORD-40", "2026-03-12"))
	require.NoError(t, err)
	require.False(t, c.SLARisk)

	// the sweep reads the case, then the other process commits first
	sweepClock.advance(8 * 24 * time.Hour)
	repo.beforePut = func(domain.Case) {
		_, err := api.UpdateCheck(ctx, c.CaseID, domain.CheckIdentityVerification, domain.StatusCompletedClear, domain.CheckUpdate{})
		require.NoError(t, err)
	}
	changed, atRisk, err := sweep.RefreshAllSLARisk(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, changed)
	require.Equal(t, 1, atRisk)

	final, err := api.GetCase(ctx, c.CaseID)
	require.NoError(t, err)
	require.True(t, final.SLARisk)
	require.Equal(t, domain.StatusCompletedClear, final.Checks[final.CheckIndex(domain.CheckIdentityVerification)].Status)
	require.Len(t, final.Timeline, 3)
	require.Equal(t, domain.EventStatusChange, final.Timeline[2].EventType)
	require.EqualValues(t, 3, final.Version)
}

func TestServiceMutationRetriesVersionConflicts(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.CreateCase(ctx, payload("ORD-41", "2026-04-01"))
	require.NoError(t, err)

	repo.conflicts = maxWriteAttempts - 1
	updated, err := svc.UpdateCheck(ctx, c.CaseID, domain.CheckRightToWork, domain.StatusInProgress, domain.CheckUpdate{})
	require.NoError(t, err)
	require.EqualValues(t, 2, updated.Version)

	repo.conflicts = maxWriteAttempts
	_, err = svc.RecordDecision(ctx, c.CaseID, domain.AdminDecisionPayload{Decision: domain.DecisionApproved, DecidedBy: "admin@example.com"})
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	stored, err := svc.GetCase(ctx, c.CaseID)
	require.NoError(t, err)
	require.Equal(t, domain.DecisionInProgress, stored.AdminDecision)
	require.EqualValues(t, 2, stored.Version)
}

func TestServiceVendorMetricsIgnoreVendorName(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.CreateCase(ctx, payload("ORD-42", "2026-04-01"))
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.VendorUpdates.WithLabelValues("ok"))
	for i, vendor := range []string{"acme", "Acme Screening Inc.", "globex-eu-west"} {
		u := vendorUpdate(fmt.Sprintf("REF-42-%d", i), domain.CheckTypes[i], domain.StatusInProgress)
		u.Vendor = vendor
		u.VendorData = &domain.VendorCandidateData{OrderID: c.OrderID}
		_, _, err := svc.IngestVendorUpdate(ctx, u)
		require.NoError(t, err)
	}
	require.Equal(t, before+3, testutil.ToFloat64(metrics.VendorUpdates.WithLabelValues("ok")))
	require.LessOrEqual(t, testutil.CollectAndCount(metrics.VendorUpdates), 5)
}
