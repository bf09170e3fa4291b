package attendance

import (
	"context"

	domain "chapel/internal/domain/attendance"
)

// Store persists attendance records and bucket versions.
// Every write method runs in a single transaction.
type Store interface {
	ListBucket(ctx context.Context, bucket domain.Bucket) ([]domain.Record, error)
	BucketVersion(ctx context.Context, bucket domain.Bucket) (int64, error)
	SaveBucket(ctx context.Context, bucket domain.Bucket, entries []domain.Entry, expectedVersion *int64) (domain.SaveOutcome, error)
	Relocate(ctx context.Context, relocation domain.Relocation) (domain.RelocationOutcome, error)
	ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error)
	CountHistory(ctx context.Context, filter domain.HistoryFilter) (int, error)
	ListByMember(ctx context.Context, memberID int64, filter domain.MemberFilter) ([]domain.Record, error)
}
