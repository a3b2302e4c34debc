package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Subicson333/verify/internal/domain"
	"github.com/Subicson333/verify/internal/metrics"
)

// Repository stores cases by caseId. Get returns domain.ErrCaseNotFound for an
// unknown id. Put stores c only when c.Version is one more than the stored
// version (1 for a new case) and returns domain.ErrVersionConflict otherwise.
type Repository interface {
	Get(ctx context.Context, caseID string) (domain.Case, error)
	Put(ctx context.Context, c domain.Case) error
	List(ctx context.Context) ([]domain.Case, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Service runs lifecycle transitions against a Repository. Mutations of one
// case are serialized in-process; operations that create cases or assign
// vendor references also hold the index lock so uniqueness checks see a stable population.
// Writers in other processes are fenced by the repository's version check:
// a read-modify-write that loses the race is re-run against the fresh case.
type Service struct {
	repo    Repository
	manager *Manager
	log     *zap.Logger
	locks   *keyedMutex
	indexMu sync.Mutex
}

// maxWriteAttempts bounds how often a read-modify-write is re-run after a version conflict.
const maxWriteAttempts = 5

func NewService(repo Repository, manager *Manager, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		manager: manager,
		log:     log,
		locks:   newKeyedMutex(),
	}
}

func (s *Service) Manager() *Manager {
	return s.manager
}

// Ping checks the repository when it supports it.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.repo.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Service) CreateCase(ctx context.Context, p domain.CreateCasePayload) (domain.Case, error) {
	c, err := s.manager.CreateNewCase(p)
	if err != nil {
		s.observe("create", err)
		return domain.Case{}, err
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	all, err := s.list(ctx)
	if err != nil {
		s.observe("create", err)
		return domain.Case{}, err
	}
	if findByOrder(all, p.OrderID) >= 0 {
		err := fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, p.OrderID)
		s.observe("create", err)
		return domain.Case{}, err
	}
	c, err = s.put(ctx, c)
	if err != nil {
		s.observe("create", err)
		return domain.Case{}, err
	}
	s.recordEvents(nil, c)
	s.observe("create", nil)
	s.log.Info("case created",
		zap.String("case_id", c.CaseID),
		zap.String("order_id", c.OrderID),
		zap.Bool("sla_risk", c.SLARisk),
	)
	return c, nil
}

func (s *Service) GetCase(ctx context.Context, caseID string) (domain.Case, error) {
	c, err := s.repo.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, domain.ErrCaseNotFound) {
			return domain.Case{}, err
		}
		return domain.Case{}, s.repoErr("get", err)
	}
	return c, nil
}

func (s *Service) ListCases(ctx context.Context, f CaseFilter) ([]domain.Case, error) {
	all, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	return FilterCases(all, f), nil
}

func (s *Service) Stats(ctx context.Context) (domain.CaseStats, error) {
	all, err := s.list(ctx)
	if err != nil {
		return domain.CaseStats{}, err
	}
	return ComputeStats(all), nil
}

func (s *Service) UpdateCheck(ctx context.Context, caseID string, checkType domain.CheckType, status domain.Status, upd domain.CheckUpdate) (domain.Case, error) {
	if upd.VendorReference != "" {
		s.indexMu.Lock()
		defer s.indexMu.Unlock()
		all, err := s.list(ctx)
		if err != nil {
			return domain.Case{}, err
		}
		if holders := casesHoldingReference(all, upd.VendorReference); len(holders) > 0 && (len(holders) > 1 || holders[0] != caseID) {
			err := fmt.Errorf("%w: %s", domain.ErrVendorReferenceConflict, upd.VendorReference)
			s.observe("update_check", err)
			return domain.Case{}, err
		}
	}

	return s.mutate(ctx, "update_check", caseID, func(c domain.Case) (domain.Case, error) {
		return s.manager.UpdateCheckStatus(c, checkType, status, upd)
	})
}

func (s *Service) RecordDecision(ctx context.Context, caseID string, p domain.AdminDecisionPayload) (domain.Case, error) {
	return s.mutate(ctx, "admin_decision", caseID, func(c domain.Case) (domain.Case, error) {
		return s.manager.RecordAdminDecision(c, p)
	})
}

// IngestVendorUpdate resolves the target case by vendor reference, then by
// vendorData.orderId, and otherwise creates a case from vendorData.
func (s *Service) IngestVendorUpdate(ctx context.Context, u domain.VendorUpdate) (domain.IngestResult, domain.Case, error) {
	if err := domain.ValidateVendorUpdate(u); err != nil {
		s.observeVendor(u.Vendor, err)
		return domain.IngestResult{}, domain.Case{}, err
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	all, err := s.list(ctx)
	if err != nil {
		s.observeVendor(u.Vendor, err)
		return domain.IngestResult{}, domain.Case{}, err
	}

	targetID := ""
	holders := casesHoldingReference(all, u.VendorReference)
	switch {
	case len(holders) > 1:
		err := fmt.Errorf("%w: %s is held by %d cases", domain.ErrVendorReferenceConflict, u.VendorReference, len(holders))
		s.observeVendor(u.Vendor, err)
		return domain.IngestResult{}, domain.Case{}, err
	case len(holders) == 1:
		targetID = holders[0]
	case u.VendorData != nil && u.VendorData.OrderID != "":
		if idx := findByOrder(all, u.VendorData.OrderID); idx >= 0 {
			targetID = all[idx].CaseID
		}
	}

	if targetID != "" {
		c, err := s.mutate(ctx, "vendor_update", targetID, func(c domain.Case) (domain.Case, error) {
			return s.manager.ApplyVendorUpdate(c, u)
		})
		s.observeVendor(u.Vendor, err)
		if err != nil {
			return domain.IngestResult{}, domain.Case{}, err
		}
		return domain.IngestResult{CaseID: c.CaseID}, c, nil
	}

	created, err := s.manager.CreateNewCase(domain.CreatePayloadFromVendor(u))
	if err != nil {
		s.observeVendor(u.Vendor, err)
		return domain.IngestResult{}, domain.Case{}, err
	}
	updated, err := s.manager.ApplyVendorUpdate(created, u)
	if err != nil {
		s.observeVendor(u.Vendor, err)
		return domain.IngestResult{}, domain.Case{}, err
	}
	updated, err = s.put(ctx, updated)
	if err != nil {
		s.observeVendor(u.Vendor, err)
		return domain.IngestResult{}, domain.Case{}, err
	}
	s.recordEvents(nil, updated)
	s.observeVendor(u.Vendor, nil)
	s.log.Info("case created from vendor update",
		zap.String("case_id", updated.CaseID),
		zap.String("order_id", updated.OrderID),
		zap.String("vendor", u.Vendor),
		zap.String("vendor_reference", u.VendorReference),
	)
	return domain.IngestResult{CaseID: updated.CaseID, Created: true}, updated, nil
}

// RefreshAllSLARisk re-derives slaRisk for every case and persists only the
// cases whose flag changed. It returns the number changed and the number at risk.
func (s *Service) RefreshAllSLARisk(ctx context.Context) (int, int, error) {
	all, err := s.list(ctx)
	if err != nil {
		return 0, 0, err
	}
	changed, atRisk := 0, 0
	for _, snapshot := range all {
		if err := ctx.Err(); err != nil {
			return changed, atRisk, err
		}
		refreshed, ok, err := s.refreshOne(ctx, snapshot.CaseID)
		if err != nil {
			return changed, atRisk, err
		}
		if ok {
			changed++
		}
		if refreshed.SLARisk {
			atRisk++
		}
	}
	metrics.SLARiskCases.Set(float64(atRisk))
	s.log.Info("sla risk refreshed", zap.Int("cases", len(all)), zap.Int("changed", changed), zap.Int("at_risk", atRisk))
	return changed, atRisk, nil
}

func (s *Service) refreshOne(ctx context.Context, caseID string) (domain.Case, bool, error) {
	unlock := s.locks.Lock(caseID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		c, err := s.GetCase(ctx, caseID)
		if err != nil {
			return domain.Case{}, false, err
		}
		refreshed, ok := s.manager.RefreshSLARisk(c)
		if !ok {
			return refreshed, false, nil
		}
		refreshed, err = s.put(ctx, refreshed)
		if err == nil {
			return refreshed, true, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt == maxWriteAttempts {
			return domain.Case{}, false, err
		}
		s.log.Debug("sla refresh lost a write race, retrying", zap.String("case_id", caseID), zap.Int("attempt", attempt))
	}
}

func (s *Service) ChecklistSummary(ctx context.Context, caseID string) (domain.Case, domain.ChecklistSummary, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return domain.Case{}, domain.ChecklistSummary{}, err
	}
	return c, s.manager.ChecklistSummary(c), nil
}

func (s *Service) mutate(ctx context.Context, op, caseID string, fn func(domain.Case) (domain.Case, error)) (domain.Case, error) {
	unlock := s.locks.Lock(caseID)
	defer unlock()

	var (
		c, out domain.Case
		err    error
	)
	for attempt := 1; ; attempt++ {
		c, err = s.GetCase(ctx, caseID)
		if err != nil {
			s.observe(op, err)
			return domain.Case{}, err
		}
		out, err = fn(c)
		if err != nil {
			s.observe(op, err)
			return domain.Case{}, err
		}
		out, err = s.put(ctx, out)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt == maxWriteAttempts {
			s.observe(op, err)
			return domain.Case{}, err
		}
		s.log.Debug("case write lost a race, retrying",
			zap.String("case_id", caseID),
			zap.String("operation", op),
			zap.Int("attempt", attempt),
		)
	}
	s.recordEvents(c.Timeline, out)
	s.observe(op, nil)
	s.log.Info("case updated",
		zap.String("case_id", out.CaseID),
		zap.String("operation", op),
		zap.String("overall_status", string(out.OverallStatus)),
		zap.String("overall_score", string(out.OverallScore)),
	)
	return out, nil
}

func (s *Service) list(ctx context.Context) ([]domain.Case, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.repoErr("list", err)
	}
	return all, nil
}

// put writes c as the next version and returns what was stored.
func (s *Service) put(ctx context.Context, c domain.Case) (domain.Case, error) {
	next := c
	next.Version = c.Version + 1
	if err := s.repo.Put(ctx, next); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrDuplicateOrder) {
			return domain.Case{}, err
		}
		return domain.Case{}, s.repoErr("put", err)
	}
	return next, nil
}

func (s *Service) repoErr(op string, err error) error {
	s.log.Error("repository failure", zap.String("operation", op), zap.Error(err))
	return &domain.RepositoryError{Op: op, Err: err}
}

func (s *Service) recordEvents(before []domain.TimelineEvent, after domain.Case) {
	for _, evt := range after.Timeline[len(before):] {
		metrics.TimelineEvents.WithLabelValues(string(evt.EventType)).Inc()
	}
}

func (s *Service) observe(op string, err error) {
	metrics.CaseMutations.WithLabelValues(op, outcome(err)).Inc()
	if err != nil && !isRepositoryErr(err) {
		s.log.Warn("case mutation rejected", zap.String("operation", op), zap.Error(err))
	}
}

func (s *Service) observeVendor(vendor string, err error) {
	metrics.VendorUpdates.WithLabelValues(outcome(err)).Inc()
	if err != nil && !isRepositoryErr(err) {
		s.log.Warn("vendor update rejected", zap.String("vendor", vendor), zap.Error(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsValidation(err):
		return "invalid"
	case errors.Is(err, domain.ErrCaseNotFound), errors.Is(err, domain.ErrCheckNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDuplicateOrder), errors.Is(err, domain.ErrVendorReferenceConflict),
		errors.Is(err, domain.ErrVersionConflict):
		return "conflict"
	default:
		return "error"
	}
}

func isRepositoryErr(err error) bool {
	var re *domain.RepositoryError
	return errors.As(err, &re)
}

func findByOrder(cases []domain.Case, orderID string) int {
	for i, c := range cases {
		if c.OrderID == orderID {
			return i
		}
	}
	return -1
}

func casesHoldingReference(cases []domain.Case, ref string) []string {
	var ids []string
	for _, c := range cases {
		if c.VendorReferenceIndex(ref) >= 0 {
			ids = append(ids, c.CaseID)
		}
	}
	return ids
}
