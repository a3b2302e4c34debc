package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Subicson333/verify/internal/domain"
)

func TestMemoryStoreInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, sampleCase(2)))
	require.NoError(t, s.Put(ctx, sampleCase(1)))

	updated := sampleCase(2)
	updated.Owner = "ops@example.com"
	updated.Version = 2
	require.NoError(t, s.Put(ctx, updated))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "case-2", all[0].CaseID)
	require.Equal(t, "ops@example.com", all[0].Owner)
	require.Equal(t, "case-1", all[1].CaseID)
}

func TestMemoryStoreNotFound(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrCaseNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c := sampleCase(1)
	require.NoError(t, s.Put(ctx, c))

	c.Checks[0].Status = domain.StatusError
	got, err := s.Get(ctx, "case-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusNew, got.Checks[0].Status)

	got.Checks[0].Status = domain.StatusError
	again, err := s.Get(ctx, "case-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusNew, again.Checks[0].Status)
}

func TestMemoryStoreRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, sampleCase(1)))

	// a second writer that also read nothing
	require.ErrorIs(t, s.Put(ctx, sampleCase(1)), domain.ErrVersionConflict)

	next := sampleCase(1)
	next.Version = 2
	require.NoError(t, s.Put(ctx, next))

	skipped := sampleCase(1)
	skipped.Version = 4
	require.ErrorIs(t, s.Put(ctx, skipped), domain.ErrVersionConflict)

	got, err := s.Get(ctx, "case-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, got.Version)
}
