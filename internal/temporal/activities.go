package temporal

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/Subicson333/verify/internal/domain"
)

const (
	ErrTypeInvalidVendorUpdate = "InvalidVendorUpdate"
	ErrTypeVendorConflict      = "VendorConflict"
)

type InboxReader interface {
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
}

type CaseService interface {
	IngestVendorUpdate(ctx context.Context, u domain.VendorUpdate) (domain.IngestResult, domain.Case, error)
	RefreshAllSLARisk(ctx context.Context) (int, int, error)
}

type Activities struct {
	Inbox InboxReader
	Cases CaseService
}

type FetchVendorUpdateInput struct {
	ObjectKey string
}

type FetchVendorUpdateOutput struct {
	Update domain.VendorUpdate
}

type IngestVendorUpdateInput struct {
	ObjectKey string
	Update    domain.VendorUpdate
}

type IngestVendorUpdateOutput struct {
	CaseID  string
	Created bool
}

type RefreshSLARiskOutput struct {
	Changed int
	AtRisk  int
}

// FetchVendorUpdateActivity reads a vendor result file and validates it against the vendor update schema.
func (a *Activities) FetchVendorUpdateActivity(ctx context.Context, input FetchVendorUpdateInput) (FetchVendorUpdateOutput, error) {
	raw, err := a.Inbox.GetObject(ctx, input.ObjectKey)
	if err != nil {
		return FetchVendorUpdateOutput{}, fmt.Errorf("read vendor result %s: %w", input.ObjectKey, err)
	}
	update, err := domain.DecodeVendorUpdate(raw)
	if err != nil {
		return FetchVendorUpdateOutput{}, classify(input.ObjectKey, err)
	}
	if err := domain.ValidateVendorUpdate(update); err != nil {
		return FetchVendorUpdateOutput{}, classify(input.ObjectKey, err)
	}
	return FetchVendorUpdateOutput{Update: update}, nil
}

func (a *Activities) IngestVendorUpdateActivity(ctx context.Context, input IngestVendorUpdateInput) (IngestVendorUpdateOutput, error) {
	result, _, err := a.Cases.IngestVendorUpdate(ctx, input.Update)
	if err != nil {
		return IngestVendorUpdateOutput{}, classify(input.ObjectKey, err)
	}
	return IngestVendorUpdateOutput{CaseID: result.CaseID, Created: result.Created}, nil
}

func (a *Activities) RefreshSLARiskActivity(ctx context.Context) (RefreshSLARiskOutput, error) {
	changed, atRisk, err := a.Cases.RefreshAllSLARisk(ctx)
	if err != nil {
		return RefreshSLARiskOutput{}, err
	}
	return RefreshSLARiskOutput{Changed: changed, AtRisk: atRisk}, nil
}

// classify turns payload and data errors into non-retryable application errors.
// Anything else, repository failures included, is left for the retry policy.
func classify(objectKey string, err error) error {
	msg := fmt.Sprintf("vendor result %s: %v", objectKey, err)
	switch {
	case domain.IsValidation(err), errors.Is(err, domain.ErrCheckNotFound):
		return temporal.NewNonRetryableApplicationError(msg, ErrTypeInvalidVendorUpdate, err)
	case errors.Is(err, domain.ErrVendorReferenceConflict), errors.Is(err, domain.ErrDuplicateOrder):
		return temporal.NewNonRetryableApplicationError(msg, ErrTypeVendorConflict, err)
	default:
		return err
	}
}
